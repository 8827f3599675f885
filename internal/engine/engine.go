// Package engine provides the typed gateway for all calls to the remote
// AlgoPilot trading engine.
package engine

import (
	"context"

	"algopilot-panel/internal/models"
)

// API is the full surface of the trading engine consumed by the panel.
// The poller, command dispatcher and settings editor depend on this
// interface rather than the concrete HTTP client.
type API interface {
	// Auth
	Login(ctx context.Context, username, password string) error

	// Control
	GetStatus(ctx context.Context) (models.OperationalStatus, error)
	Resume(ctx context.Context) error
	Pause(ctx context.Context) error
	EmergencyStop(ctx context.Context) error
	ResetEmergency(ctx context.Context) error
	CloseActiveTrade(ctx context.Context) error

	// Reporting
	GetTrades(ctx context.Context) ([]models.Trade, error)
	GetPnL(ctx context.Context) (models.PnLSummary, error)

	// Configuration
	GetConfig(ctx context.Context) (models.EngineConfig, error)
	GetConfigFields(ctx context.Context) (models.FieldSet, error)
	ValidateConfig(ctx context.Context) (ValidationResult, error)
	SaveConfig(ctx context.Context, cfg models.EngineConfig) (models.EngineConfig, error)
	ResetConfig(ctx context.Context) error
	ToggleDryRun(ctx context.Context) (ToggleResult, error)
}

// ValidationResult is the engine's verdict on the server-held configuration.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ToggleResult is the engine's response to a dry-run/live toggle.
type ToggleResult struct {
	DryRun bool   `json:"dry_run"`
	Mode   string `json:"mode"`
}
