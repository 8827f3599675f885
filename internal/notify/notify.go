// Package notify pushes operator-relevant panel events to configured
// channels.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Notifier defines the interface for sending notifications.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
	SendEmergency(ctx context.Context, message string) error
	SendCommandFailure(ctx context.Context, command string, err error) error
	SendRiskLock(ctx context.Context, dailyPnL, lossLimit float64) error
}

// Channel defines the interface for a notification channel.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
	IsEnabled() bool
}

// Notification represents a notification message.
type Notification struct {
	Type      Type
	Title     string
	Message   string
	Data      map[string]interface{}
	Timestamp time.Time
}

// Type represents the type of notification.
type Type string

const (
	TypeEmergency Type = "emergency"
	TypeRiskLock  Type = "risk_lock"
	TypeCommand   Type = "command"
	TypeInfo      Type = "info"
)

// Level represents the notification level filter.
type Level string

const (
	LevelAll             Level = "all"
	LevelEmergenciesOnly Level = "emergencies_only"
)

// MultiNotifier sends notifications to multiple channels.
type MultiNotifier struct {
	channels []Channel
	level    Level
	mu       sync.RWMutex
}

// NewMultiNotifier creates a notifier over the given channels.
func NewMultiNotifier(level Level, channels ...Channel) *MultiNotifier {
	if level == "" {
		level = LevelEmergenciesOnly
	}
	return &MultiNotifier{channels: channels, level: level}
}

// Send delivers a notification to every enabled channel that passes the
// level filter. Channel failures are collected but do not block the others.
func (m *MultiNotifier) Send(ctx context.Context, n Notification) error {
	if !m.shouldSend(n.Type) {
		return nil
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	m.mu.RLock()
	channels := make([]Channel, len(m.channels))
	copy(channels, m.channels)
	m.mu.RUnlock()

	var firstErr error
	for _, ch := range channels {
		if !ch.IsEnabled() {
			continue
		}
		if err := ch.Send(ctx, n); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("channel %s: %w", ch.Name(), err)
		}
	}
	return firstErr
}

func (m *MultiNotifier) shouldSend(t Type) bool {
	if m.level == LevelAll {
		return true
	}
	// emergencies_only still covers the risk-guard lockout, which is the
	// engine's own emergency brake.
	return t == TypeEmergency || t == TypeRiskLock
}

// SendEmergency notifies that the engine entered emergency stop.
func (m *MultiNotifier) SendEmergency(ctx context.Context, message string) error {
	return m.Send(ctx, Notification{
		Type:    TypeEmergency,
		Title:   "EMERGENCY STOP",
		Message: message,
	})
}

// SendCommandFailure notifies that a control command failed.
func (m *MultiNotifier) SendCommandFailure(ctx context.Context, command string, err error) error {
	return m.Send(ctx, Notification{
		Type:    TypeCommand,
		Title:   "Command failed",
		Message: fmt.Sprintf("%s: %v", command, err),
		Data:    map[string]interface{}{"command": command},
	})
}

// SendRiskLock notifies that the risk guard locked trading.
func (m *MultiNotifier) SendRiskLock(ctx context.Context, dailyPnL, lossLimit float64) error {
	return m.Send(ctx, Notification{
		Type:    TypeRiskLock,
		Title:   "Risk guard locked",
		Message: fmt.Sprintf("daily P&L %.2f breached limit %.2f", dailyPnL, lossLimit),
		Data: map[string]interface{}{
			"daily_pnl":  dailyPnL,
			"loss_limit": lossLimit,
		},
	})
}
