// Package session owns the bearer credential's lifecycle. The token is
// process-wide mutable state written only here and read by every outgoing
// engine call.
package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Session holds the bearer token for the current operator session. Its
// absence is the sole determinant of the "authenticated" view.
type Session struct {
	mu    sync.RWMutex
	token string
	path  string // persisted session file, "" disables persistence
}

// sessionData represents persisted session data.
type sessionData struct {
	AccessToken string    `json:"access_token"`
	SavedAt     time.Time `json:"saved_at"`
}

// New creates a session persisted at path. Any saved session is loaded
// automatically; a missing or unreadable file just starts unauthenticated.
func New(path string) *Session {
	s := &Session{path: path}
	_ = s.load()
	return s
}

// NewInMemory creates a session without disk persistence.
func NewInMemory() *Session {
	return &Session{}
}

// IsAuthenticated reports whether a token is present.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// Token returns the current bearer token, or "" when unauthenticated.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetToken stores a freshly issued token and persists it.
func (s *Session) SetToken(token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return s.save(token)
}

// Invalidate clears the token from memory and disk. Called on logout and on
// any authentication-failure response; subsequent calls must not be
// attempted with the old token.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()

	if s.path != "" {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			// Best effort; the in-memory token is already gone.
			_ = err
		}
	}
}

func (s *Session) load() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var saved sessionData
	if err := json.Unmarshal(data, &saved); err != nil {
		return err
	}

	s.mu.Lock()
	s.token = saved.AccessToken
	s.mu.Unlock()
	return nil
}

func (s *Session) save(token string) error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}

	data, err := json.Marshal(sessionData{
		AccessToken: token,
		SavedAt:     time.Now(),
	})
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0600)
}
