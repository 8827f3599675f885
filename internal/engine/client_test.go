package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	apperrors "algopilot-panel/internal/errors"
	"algopilot-panel/internal/models"
	"algopilot-panel/internal/resilience"
	"algopilot-panel/internal/session"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *session.Session, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	sess := session.NewInMemory()
	client := NewClient(ClientConfig{
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
		Session: sess,
		Logger:  zerolog.Nop(),
	})
	return client, sess, server
}

func TestLoginStoresToken(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var creds map[string]string
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			t.Errorf("decoding credentials: %v", err)
		}
		if creds["username"] != "ops" || creds["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
	})
	client, sess, _ := newTestClient(t, handler)

	if err := client.Login(context.Background(), "ops", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.Token() != "tok-123" {
		t.Fatalf("token not stored: %q", sess.Token())
	}
}

func TestLoginBadCredentials(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	client, sess, _ := newTestClient(t, handler)

	// A failed login must not invalidate an existing session.
	if err := sess.SetToken("existing"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}

	err := client.Login(context.Background(), "ops", "wrong")
	if !errors.Is(err, apperrors.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if sess.Token() != "existing" {
		t.Fatal("failed login invalidated the existing session")
	}
}

func TestBearerTokenAttached(t *testing.T) {
	var gotAuth string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(models.OperationalStatus{AlgoState: models.StateRunning})
	})
	client, sess, _ := newTestClient(t, handler)
	if err := sess.SetToken("tok-456"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}

	status, err := client.GetStatus(context.Background())
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if gotAuth != "Bearer tok-456" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if status.AlgoState != models.StateRunning {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestUnauthorizedInvalidatesSession(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	client, sess, _ := newTestClient(t, handler)
	if err := sess.SetToken("stale"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}

	_, err := client.GetStatus(context.Background())
	if !errors.Is(err, apperrors.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if sess.IsAuthenticated() {
		t.Fatal("session still authenticated after 401")
	}
}

func TestErrorDetailDecoded(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"detail": "risk guard locked"})
	})
	client, _, _ := newTestClient(t, handler)

	err := client.Resume(context.Background())
	var rerr *apperrors.RemoteError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if rerr.StatusCode != http.StatusConflict || rerr.Message != "risk guard locked" {
		t.Fatalf("detail not decoded: %+v", rerr)
	}
}

func TestMalformedErrorBodyTolerated(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("<html>gateway error</html>"))
	})
	client, _, _ := newTestClient(t, handler)

	err := client.Pause(context.Background())
	var rerr *apperrors.RemoteError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if rerr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", rerr.StatusCode)
	}
}

func TestRequestTimeout(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{
		BaseURL: server.URL,
		Timeout: 50 * time.Millisecond,
		Session: session.NewInMemory(),
		Logger:  zerolog.Nop(),
	})

	_, err := client.GetStatus(context.Background())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, apperrors.ErrTimeout) {
		t.Fatalf("expected ErrTimeout in chain, got %v", err)
	}
}

func TestUnconfiguredBaseURL(t *testing.T) {
	client := NewClient(ClientConfig{
		Session: session.NewInMemory(),
		Logger:  zerolog.Nop(),
	})

	if _, err := client.GetStatus(context.Background()); !errors.Is(err, apperrors.ErrEngineUnconfigured) {
		t.Fatalf("expected ErrEngineUnconfigured, got %v", err)
	}
	if err := client.Login(context.Background(), "a", "b"); !errors.Is(err, apperrors.ErrEngineUnconfigured) {
		t.Fatalf("expected ErrEngineUnconfigured from Login, got %v", err)
	}
}

func TestSaveConfigUnwrapsEnvelope(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sent models.EngineConfig
		if err := json.NewDecoder(r.Body).Decode(&sent); err != nil {
			t.Errorf("decoding config: %v", err)
		}
		sent.Quantity = 100 // engine adjusts the submitted value
		json.NewEncoder(w).Encode(map[string]models.EngineConfig{"config": sent})
	})
	client, _, _ := newTestClient(t, handler)

	echo, err := client.SaveConfig(context.Background(), models.EngineConfig{Quantity: 999})
	if err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	if echo.Quantity != 100 {
		t.Fatalf("envelope not unwrapped: %+v", echo)
	}
}

func TestGetConfigFieldsUnwrapsEnvelope(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"fields": map[string]interface{}{
				"quantity": map[string]interface{}{"description": "lot size", "type": "int"},
			},
		})
	})
	client, _, _ := newTestClient(t, handler)

	fields, err := client.GetConfigFields(context.Background())
	if err != nil {
		t.Fatalf("GetConfigFields: %v", err)
	}
	if fields["quantity"].Description != "lot size" {
		t.Fatalf("fields not decoded: %+v", fields)
	}
}

func TestHealthTracksOutcomes(t *testing.T) {
	fail := true
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(models.OperationalStatus{AlgoState: models.StateRunning})
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	health := resilience.NewLinkHealth()
	client := NewClient(ClientConfig{
		BaseURL: server.URL,
		Session: session.NewInMemory(),
		Health:  health,
		Logger:  zerolog.Nop(),
	})

	for i := 0; i < 3; i++ {
		client.GetStatus(context.Background())
	}
	if health.Status() != resilience.HealthStatusUnhealthy {
		t.Fatalf("expected UNHEALTHY after 3 failures, got %s", health.Status())
	}

	fail = false
	if _, err := client.GetStatus(context.Background()); err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if health.Status() != resilience.HealthStatusHealthy {
		t.Fatalf("expected HEALTHY after success, got %s", health.Status())
	}
}
