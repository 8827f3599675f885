// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors
var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrCommandInFlight    = errors.New("another command is in flight")
	ErrPollerStopped      = errors.New("poller stopped")
	ErrNoActiveTrade      = errors.New("no active trade")
	ErrNotConfirmed       = errors.New("operator did not confirm")
	ErrEngineUnconfigured = errors.New("engine URL not configured")
	ErrConfigNotLoaded    = errors.New("configuration not loaded")
	ErrTimeout            = errors.New("operation timed out")
)

// RemoteError represents a failed call to the trading engine. It carries the
// HTTP status code and the engine-provided message when one was decodable.
type RemoteError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("engine error [%s]: %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("engine error [%s]: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("engine error [%s]: HTTP %d", e.Endpoint, e.StatusCode)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// NewRemoteError creates a new RemoteError.
func NewRemoteError(endpoint string, statusCode int, message string, err error) *RemoteError {
	return &RemoteError{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// ValidationError represents a configuration rejected by the engine's
// validation endpoint. Errors holds the human-readable rule violations.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	return fmt.Sprintf("configuration validation failed: %s", strings.Join(e.Errors, "; "))
}

// NewValidationError creates a new ValidationError.
func NewValidationError(errs []string) *ValidationError {
	return &ValidationError{Errors: errs}
}

// PreconditionError represents a control command attempted against a UI state
// that does not permit it. The command is rejected locally, never sent.
type PreconditionError struct {
	Command string
	Reason  string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed [%s]: %s", e.Command, e.Reason)
}

// NewPreconditionError creates a new PreconditionError.
func NewPreconditionError(command, reason string) *PreconditionError {
	return &PreconditionError{Command: command, Reason: reason}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// IsAuth reports whether err is an authentication failure that should force
// a return to the unauthenticated view.
func IsAuth(err error) bool {
	return errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrNotAuthenticated)
}
