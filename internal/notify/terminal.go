package notify

import (
	"context"
	"fmt"
	"io"
	"os"
)

// TerminalChannel prints notifications to the terminal. It is always wired
// so emergencies reach the operator even with the webhook disabled.
type TerminalChannel struct {
	out     io.Writer
	enabled bool
}

// NewTerminalChannel creates a terminal channel writing to stderr.
func NewTerminalChannel(enabled bool) *TerminalChannel {
	return &TerminalChannel{out: os.Stderr, enabled: enabled}
}

// Name returns the channel name.
func (t *TerminalChannel) Name() string { return "terminal" }

// IsEnabled reports whether the channel is enabled.
func (t *TerminalChannel) IsEnabled() bool { return t.enabled }

// Send prints the notification.
func (t *TerminalChannel) Send(_ context.Context, n Notification) error {
	prefix := "•"
	switch n.Type {
	case TypeEmergency:
		prefix = "🚨"
	case TypeRiskLock:
		prefix = "🔒"
	}
	_, err := fmt.Fprintf(t.out, "%s %s: %s\n", prefix, n.Title, n.Message)
	return err
}
