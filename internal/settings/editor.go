// Package settings implements the edit session over the engine-owned algo
// configuration: load, local edits, validate-then-save, reset to defaults
// and the dry-run/live toggle.
package settings

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"algopilot-panel/internal/engine"
	apperrors "algopilot-panel/internal/errors"
	"algopilot-panel/internal/models"
	"algopilot-panel/internal/panel"
	"algopilot-panel/internal/store"
)

// State is the edit-session state.
type State string

const (
	StateInitial    State = "INITIAL"
	StateLoaded     State = "LOADED"
	StateEditing    State = "EDITING"
	StateValidating State = "VALIDATING"
	StateValid      State = "VALID"
	StateInvalid    State = "INVALID"
	StateSaving     State = "SAVING"
	StateSaved      State = "SAVED"
)

// Command names recorded in the audit trail for config operations.
const (
	CmdSetConfig    = "set-config"
	CmdSaveConfig   = "save-config"
	CmdResetConfig  = "reset-config"
	CmdToggleDryRun = "toggle-dry-run"
)

// PromptResetDefaults asks before resetting the engine configuration.
const PromptResetDefaults = "Reset all settings to engine defaults?"

var forceExitTimeRe = regexp.MustCompile(`^([0-1][0-9]|2[0-3]):[0-5][0-9]$`)

// StatusFunc reports the current derived UI state. ok is false when no
// status has been observed yet.
type StatusFunc func() (panel.UIState, bool)

// Editor owns the working copy of the engine configuration. The working
// copy is mutated locally and only becomes authoritative when a successful
// save response replaces it with the engine's echo.
type Editor struct {
	api     engine.API
	status  StatusFunc
	confirm panel.ConfirmFunc
	audit   store.AuditStore // nil disables auditing
	logger  zerolog.Logger

	mu         sync.Mutex
	state      State
	working    models.EngineConfig
	saved      models.EngineConfig
	fields     models.FieldSet
	lastErrors []string
	saving     bool
}

// EditorConfig holds dependencies for an Editor.
type EditorConfig struct {
	API     engine.API
	Status  StatusFunc
	Confirm panel.ConfirmFunc
	Audit   store.AuditStore
	Logger  zerolog.Logger
}

// NewEditor creates a configuration editor.
func NewEditor(cfg EditorConfig) *Editor {
	return &Editor{
		api:     cfg.API,
		status:  cfg.Status,
		confirm: cfg.Confirm,
		audit:   cfg.Audit,
		logger:  cfg.Logger,
		state:   StateInitial,
	}
}

// State returns the current edit-session state.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Working returns a copy of the working configuration. ok is false before a
// successful Load.
func (e *Editor) Working() (models.EngineConfig, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateInitial {
		return models.EngineConfig{}, false
	}
	return e.working.Clone(), true
}

// Dirty reports whether the working copy differs from the last-saved one.
func (e *Editor) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateEditing || e.state == StateInvalid
}

// Fields returns the field metadata, which may be empty when the metadata
// fetch failed (it is advisory only).
func (e *Editor) Fields() models.FieldSet {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fields
}

// ValidationErrors returns the rule violations from the last failed save.
func (e *Editor) ValidationErrors() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.lastErrors...)
}

// Load fetches the configuration and its field metadata. A metadata failure
// never blocks configuration display.
func (e *Editor) Load(ctx context.Context) error {
	cfg, err := e.api.GetConfig(ctx)
	if err != nil {
		return apperrors.Wrap(err, "loading configuration")
	}

	fields, ferr := e.api.GetConfigFields(ctx)
	if ferr != nil {
		e.logger.Warn().Err(ferr).Msg("Field metadata fetch failed, continuing without descriptions")
		fields = nil
	}

	e.mu.Lock()
	e.working = cfg.Clone()
	e.saved = cfg.Clone()
	e.fields = fields
	e.state = StateLoaded
	e.lastErrors = nil
	e.mu.Unlock()
	return nil
}

// Discard drops unsaved edits, restoring the last-saved configuration.
// Called on logout so a dead session never leaks half-finished edits into
// the next one.
func (e *Editor) Discard() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateInitial {
		return
	}
	e.working = e.saved.Clone()
	e.state = StateLoaded
	e.lastErrors = nil
}

// Set mutates one key of the working copy. Nothing is sent to the engine
// until an explicit Save. Rejected while the engine is in emergency stop.
func (e *Editor) Set(key, raw string) error {
	if err := e.guardMutation(CmdSetConfig); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateInitial {
		return apperrors.ErrConfigNotLoaded
	}

	if err := applyField(&e.working, key, raw); err != nil {
		return err
	}
	e.state = StateEditing
	return nil
}

// Save runs the validate-then-commit workflow. The engine's validate
// endpoint checks server-held state, so it is treated as an advisory gate;
// the save endpoint's own rejection is the authoritative check. On success
// the working copy is replaced by the engine's echo of what was saved.
func (e *Editor) Save(ctx context.Context) (models.EngineConfig, error) {
	if err := e.guardMutation(CmdSaveConfig); err != nil {
		return models.EngineConfig{}, err
	}

	e.mu.Lock()
	if e.state == StateInitial {
		e.mu.Unlock()
		return models.EngineConfig{}, apperrors.ErrConfigNotLoaded
	}
	if e.saving {
		e.mu.Unlock()
		return models.EngineConfig{}, apperrors.ErrCommandInFlight
	}
	e.saving = true
	e.state = StateValidating
	working := e.working.Clone()
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.saving = false
		e.mu.Unlock()
	}()

	result, err := e.api.ValidateConfig(ctx)
	if err != nil {
		e.setState(StateEditing)
		return models.EngineConfig{}, apperrors.Wrap(err, "validating configuration")
	}
	if !result.Valid {
		e.mu.Lock()
		e.state = StateInvalid
		e.lastErrors = append([]string(nil), result.Errors...)
		e.mu.Unlock()
		return models.EngineConfig{}, apperrors.NewValidationError(result.Errors)
	}

	e.setState(StateSaving)
	echo, err := e.api.SaveConfig(ctx, working)
	e.record(ctx, CmdSaveConfig, err)
	if err != nil {
		e.setState(StateEditing)
		return models.EngineConfig{}, apperrors.Wrap(err, "saving configuration")
	}

	e.mu.Lock()
	e.working = echo.Clone()
	e.saved = echo.Clone()
	e.state = StateSaved
	e.lastErrors = nil
	e.mu.Unlock()

	e.logger.Info().Msg("Configuration saved")
	return echo, nil
}

// ResetToDefaults asks the engine to restore its defaults, then reloads.
// Requires operator confirmation.
func (e *Editor) ResetToDefaults(ctx context.Context) error {
	if err := e.guardMutation(CmdResetConfig); err != nil {
		return err
	}
	if e.confirm == nil || !e.confirm(PromptResetDefaults) {
		return apperrors.ErrNotConfirmed
	}

	err := e.api.ResetConfig(ctx)
	e.record(ctx, CmdResetConfig, err)
	if err != nil {
		return apperrors.Wrap(err, "resetting configuration")
	}

	return e.Load(ctx)
}

// ToggleDryRun flips dry-run/live in one round trip and updates only the
// dry_run field of the working copy. Permitted in every UI state, including
// emergency stop.
func (e *Editor) ToggleDryRun(ctx context.Context) (engine.ToggleResult, error) {
	result, err := e.api.ToggleDryRun(ctx)
	e.record(ctx, CmdToggleDryRun, err)
	if err != nil {
		return engine.ToggleResult{}, apperrors.Wrap(err, "toggling dry-run")
	}

	e.mu.Lock()
	if e.state != StateInitial {
		e.working.DryRun = result.DryRun
		e.saved.DryRun = result.DryRun
	}
	e.mu.Unlock()

	e.logger.Info().Str("mode", result.Mode).Msg("Operating mode switched")
	return result, nil
}

// guardMutation rejects mutating config operations while the engine is in
// emergency stop. The dry-run toggle deliberately bypasses this.
func (e *Editor) guardMutation(command string) error {
	if e.status == nil {
		return nil
	}
	st, ok := e.status()
	if !ok {
		return nil
	}
	if st.IsEmergency {
		return apperrors.NewPreconditionError(command, "configuration is frozen during emergency stop")
	}
	return nil
}

func (e *Editor) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Editor) record(ctx context.Context, command string, cmdErr error) {
	if e.audit == nil {
		return
	}
	uiState := ""
	if e.status != nil {
		if st, ok := e.status(); ok {
			uiState = st.Label
		}
	}
	rec := store.CommandRecord{
		Timestamp: time.Now(),
		Command:   command,
		UIState:   uiState,
		OK:        cmdErr == nil,
	}
	if cmdErr != nil {
		rec.Error = cmdErr.Error()
	}
	if err := e.audit.RecordCommand(ctx, rec); err != nil {
		e.logger.Warn().Err(err).Msg("Audit write failed")
	}
}

// applyField parses a raw CLI value into the matching configuration field.
func applyField(cfg *models.EngineConfig, key, raw string) error {
	switch key {
	case "quantity":
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return fmt.Errorf("quantity must be a positive integer: %q", raw)
		}
		cfg.Quantity = v
	case "stop_loss_pct":
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("stop_loss_pct must be a number: %q", raw)
		}
		cfg.StopLossPct = v
	case "target_pct":
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("target_pct must be a number: %q", raw)
		}
		cfg.TargetPct = v
	case "max_daily_loss":
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("max_daily_loss must be a number: %q", raw)
		}
		cfg.MaxDailyLoss = v
	case "risk_per_trade_pct":
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("risk_per_trade_pct must be a number: %q", raw)
		}
		cfg.RiskPerTradePct = v
	case "max_trades_per_day":
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return fmt.Errorf("max_trades_per_day must be a positive integer: %q", raw)
		}
		cfg.MaxTradesPerDay = v
	case "cooldown_minutes":
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return fmt.Errorf("cooldown_minutes must be a non-negative integer: %q", raw)
		}
		cfg.CooldownMinutes = v
	case "force_exit_time":
		if !forceExitTimeRe.MatchString(raw) {
			return fmt.Errorf("force_exit_time must be HH:MM: %q", raw)
		}
		cfg.ForceExitTime = raw
	case "instrument_priority":
		var list []string
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				list = append(list, strings.ToUpper(item))
			}
		}
		if len(list) == 0 {
			return fmt.Errorf("instrument_priority must be a comma-separated list: %q", raw)
		}
		cfg.InstrumentPriority = list
	case "dry_run":
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("dry_run must be true or false: %q", raw)
		}
		cfg.DryRun = v
	default:
		return fmt.Errorf("unknown configuration key: %q", key)
	}
	return nil
}
