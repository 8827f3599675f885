package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"algopilot-panel/internal/engine"
	apperrors "algopilot-panel/internal/errors"
	"algopilot-panel/internal/models"
	"algopilot-panel/internal/panel"
)

// fakeConfigAPI implements engine.API for editor tests. Only the
// configuration surface is scriptable; the control surface is inert.
type fakeConfigAPI struct {
	config    models.EngineConfig
	configErr error
	fields    models.FieldSet
	fieldsErr error

	validateResult engine.ValidationResult
	validateErr    error
	validateCalls  int

	saveCalls int
	saveErr   error
	saveEcho  *models.EngineConfig
	lastSaved models.EngineConfig

	resetCalls int

	toggleResult engine.ToggleResult
	toggleErr    error
}

func baseConfig() models.EngineConfig {
	return models.EngineConfig{
		Quantity:           75,
		StopLossPct:        20,
		TargetPct:          40,
		MaxDailyLoss:       1500,
		RiskPerTradePct:    1,
		MaxTradesPerDay:    3,
		CooldownMinutes:    15,
		ForceExitTime:      "15:15",
		InstrumentPriority: []string{"NIFTY", "BANKNIFTY"},
		DryRun:             true,
	}
}

func newFakeConfigAPI() *fakeConfigAPI {
	return &fakeConfigAPI{
		config:         baseConfig(),
		validateResult: engine.ValidationResult{Valid: true},
	}
}

func (f *fakeConfigAPI) Login(ctx context.Context, username, password string) error { return nil }
func (f *fakeConfigAPI) GetStatus(ctx context.Context) (models.OperationalStatus, error) {
	return models.OperationalStatus{}, nil
}
func (f *fakeConfigAPI) Resume(ctx context.Context) error           { return nil }
func (f *fakeConfigAPI) Pause(ctx context.Context) error            { return nil }
func (f *fakeConfigAPI) EmergencyStop(ctx context.Context) error    { return nil }
func (f *fakeConfigAPI) ResetEmergency(ctx context.Context) error   { return nil }
func (f *fakeConfigAPI) CloseActiveTrade(ctx context.Context) error { return nil }
func (f *fakeConfigAPI) GetTrades(ctx context.Context) ([]models.Trade, error) {
	return nil, nil
}
func (f *fakeConfigAPI) GetPnL(ctx context.Context) (models.PnLSummary, error) {
	return models.PnLSummary{}, nil
}

func (f *fakeConfigAPI) GetConfig(ctx context.Context) (models.EngineConfig, error) {
	return f.config.Clone(), f.configErr
}

func (f *fakeConfigAPI) GetConfigFields(ctx context.Context) (models.FieldSet, error) {
	return f.fields, f.fieldsErr
}

func (f *fakeConfigAPI) ValidateConfig(ctx context.Context) (engine.ValidationResult, error) {
	f.validateCalls++
	return f.validateResult, f.validateErr
}

func (f *fakeConfigAPI) SaveConfig(ctx context.Context, cfg models.EngineConfig) (models.EngineConfig, error) {
	f.saveCalls++
	f.lastSaved = cfg.Clone()
	if f.saveErr != nil {
		return models.EngineConfig{}, f.saveErr
	}
	if f.saveEcho != nil {
		return f.saveEcho.Clone(), nil
	}
	return cfg, nil
}

func (f *fakeConfigAPI) ResetConfig(ctx context.Context) error {
	f.resetCalls++
	f.config = baseConfig()
	return nil
}

func (f *fakeConfigAPI) ToggleDryRun(ctx context.Context) (engine.ToggleResult, error) {
	return f.toggleResult, f.toggleErr
}

var _ engine.API = (*fakeConfigAPI)(nil)

func newTestEditor(api engine.API, status StatusFunc) *Editor {
	return NewEditor(EditorConfig{
		API:     api,
		Status:  status,
		Confirm: func(string) bool { return true },
		Logger:  zerolog.Nop(),
	})
}

func statusFixed(st panel.UIState) StatusFunc {
	return func() (panel.UIState, bool) { return st, true }
}

func TestEditorLoadAndSet(t *testing.T) {
	api := newFakeConfigAPI()
	e := newTestEditor(api, nil)

	if e.State() != StateInitial {
		t.Fatalf("expected INITIAL, got %s", e.State())
	}
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if e.State() != StateLoaded {
		t.Fatalf("expected LOADED, got %s", e.State())
	}

	if err := e.Set("quantity", "150"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if e.State() != StateEditing || !e.Dirty() {
		t.Fatalf("expected dirty EDITING state, got %s", e.State())
	}

	working, ok := e.Working()
	if !ok || working.Quantity != 150 {
		t.Fatalf("working copy not updated: %+v", working)
	}
}

func TestEditorSetBeforeLoad(t *testing.T) {
	api := newFakeConfigAPI()
	e := newTestEditor(api, nil)

	err := e.Set("quantity", "150")
	if !errors.Is(err, apperrors.ErrConfigNotLoaded) {
		t.Fatalf("expected ErrConfigNotLoaded, got %v", err)
	}
}

func TestEditorSetRejectsBadValues(t *testing.T) {
	api := newFakeConfigAPI()
	e := newTestEditor(api, nil)
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	cases := map[string]string{
		"quantity":            "zero",
		"stop_loss_pct":       "abc",
		"max_trades_per_day":  "0",
		"cooldown_minutes":    "-1",
		"force_exit_time":     "25:99",
		"instrument_priority": "  ,  ",
		"dry_run":             "maybe",
		"no_such_key":         "1",
	}
	for key, raw := range cases {
		if err := e.Set(key, raw); err == nil {
			t.Errorf("Set(%q, %q) accepted an invalid value", key, raw)
		}
	}

	// Rejected edits must not dirty the working copy.
	working, _ := e.Working()
	if working.Quantity != 75 {
		t.Fatalf("invalid edit mutated the working copy: %+v", working)
	}
}

func TestEditorSaveHappyPath(t *testing.T) {
	api := newFakeConfigAPI()
	e := newTestEditor(api, nil)
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := e.Set("quantity", "150"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	saved, err := e.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if api.validateCalls != 1 || api.saveCalls != 1 {
		t.Fatalf("expected validate then save, got %d/%d", api.validateCalls, api.saveCalls)
	}
	if api.lastSaved.Quantity != 150 {
		t.Fatalf("full working copy not submitted: %+v", api.lastSaved)
	}
	if saved.Quantity != 150 {
		t.Fatalf("echo not returned: %+v", saved)
	}
	if e.State() != StateSaved || e.Dirty() {
		t.Fatalf("expected clean SAVED state, got %s", e.State())
	}
}

func TestEditorSaveBlockedByValidation(t *testing.T) {
	api := newFakeConfigAPI()
	api.validateResult = engine.ValidationResult{
		Valid:  false,
		Errors: []string{"stop_loss_pct must be below target_pct"},
	}
	e := newTestEditor(api, nil)
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := e.Set("stop_loss_pct", "90"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	_, err := e.Save(context.Background())
	var verr *apperrors.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if api.saveCalls != 0 {
		t.Fatal("save reached the engine despite failed validation")
	}
	if e.State() != StateInvalid {
		t.Fatalf("expected INVALID, got %s", e.State())
	}
	if got := e.ValidationErrors(); len(got) != 1 || got[0] != verr.Errors[0] {
		t.Fatalf("validation errors not retained: %v", got)
	}

	// The engine configuration is untouched; local edits survive for fixing.
	working, _ := e.Working()
	if working.StopLossPct != 90 {
		t.Fatalf("edits lost after rejected save: %+v", working)
	}
}

func TestEditorSaveEchoIsAuthoritative(t *testing.T) {
	api := newFakeConfigAPI()
	echo := baseConfig()
	echo.Quantity = 100 // engine clamps what was sent
	api.saveEcho = &echo

	e := newTestEditor(api, nil)
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := e.Set("quantity", "999"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	saved, err := e.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.Quantity != 100 {
		t.Fatalf("engine echo not authoritative: %+v", saved)
	}
	working, _ := e.Working()
	if working.Quantity != 100 {
		t.Fatalf("working copy not replaced by echo: %+v", working)
	}
}

func TestEditorMutationsFrozenDuringEmergency(t *testing.T) {
	api := newFakeConfigAPI()
	emergency := statusFixed(panel.UIState{Label: panel.LabelEmergency, IsEmergency: true, DisableAll: true})
	e := newTestEditor(api, emergency)
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	var perr *apperrors.PreconditionError
	if err := e.Set("quantity", "150"); !errors.As(err, &perr) {
		t.Fatalf("Set during emergency: expected precondition error, got %v", err)
	} else if perr.Command != CmdSetConfig {
		t.Fatalf("Set during emergency named %q, want %q", perr.Command, CmdSetConfig)
	}
	if _, err := e.Save(context.Background()); !errors.As(err, &perr) {
		t.Fatalf("Save during emergency: expected precondition error, got %v", err)
	} else if perr.Command != CmdSaveConfig {
		t.Fatalf("Save during emergency named %q, want %q", perr.Command, CmdSaveConfig)
	}
	if err := e.ResetToDefaults(context.Background()); !errors.As(err, &perr) {
		t.Fatalf("Reset during emergency: expected precondition error, got %v", err)
	} else if perr.Command != CmdResetConfig {
		t.Fatalf("Reset during emergency named %q, want %q", perr.Command, CmdResetConfig)
	}
	if api.saveCalls != 0 || api.resetCalls != 0 {
		t.Fatal("frozen mutation reached the engine")
	}

	// The dry-run toggle deliberately stays available in emergency.
	api.toggleResult = engine.ToggleResult{DryRun: true, Mode: "DRY RUN"}
	if _, err := e.ToggleDryRun(context.Background()); err != nil {
		t.Fatalf("ToggleDryRun during emergency: %v", err)
	}
}

func TestEditorToggleDryRunUpdatesOnlyDryRun(t *testing.T) {
	api := newFakeConfigAPI()
	api.toggleResult = engine.ToggleResult{DryRun: false, Mode: "LIVE"}
	e := newTestEditor(api, nil)
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := e.Set("quantity", "150"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	result, err := e.ToggleDryRun(context.Background())
	if err != nil {
		t.Fatalf("ToggleDryRun: %v", err)
	}
	if result.DryRun {
		t.Fatalf("unexpected toggle result %+v", result)
	}

	working, _ := e.Working()
	if working.DryRun {
		t.Fatal("dry_run not updated from toggle response")
	}
	if working.Quantity != 150 {
		t.Fatal("toggle clobbered an unrelated pending edit")
	}
}

func TestEditorMetadataFailureIsNonFatal(t *testing.T) {
	api := newFakeConfigAPI()
	api.fieldsErr = errors.New("metadata endpoint down")
	e := newTestEditor(api, nil)

	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("Load should tolerate metadata failure: %v", err)
	}
	if e.State() != StateLoaded {
		t.Fatalf("expected LOADED, got %s", e.State())
	}
	if len(e.Fields()) != 0 {
		t.Fatalf("expected empty fields, got %v", e.Fields())
	}
}

func TestEditorConfigFailureIsFatal(t *testing.T) {
	api := newFakeConfigAPI()
	api.configErr = errors.New("engine unavailable")
	e := newTestEditor(api, nil)

	if err := e.Load(context.Background()); err == nil {
		t.Fatal("Load should fail when the configuration fetch fails")
	}
	if e.State() != StateInitial {
		t.Fatalf("failed load must not leave a half-loaded state, got %s", e.State())
	}
}

func TestEditorDiscardRestoresSaved(t *testing.T) {
	api := newFakeConfigAPI()
	e := newTestEditor(api, nil)
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := e.Set("quantity", "999"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	e.Discard()
	if e.Dirty() {
		t.Fatal("still dirty after Discard")
	}
	working, _ := e.Working()
	if working.Quantity != 75 {
		t.Fatalf("Discard did not restore the saved copy: %+v", working)
	}
}

func TestEditorResetToDefaults(t *testing.T) {
	api := newFakeConfigAPI()
	e := newTestEditor(api, nil)
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := e.ResetToDefaults(context.Background()); err != nil {
		t.Fatalf("ResetToDefaults: %v", err)
	}
	if api.resetCalls != 1 {
		t.Fatalf("expected 1 reset call, got %d", api.resetCalls)
	}
	if e.State() != StateLoaded {
		t.Fatalf("expected reload after reset, got %s", e.State())
	}
}

func TestEditorResetDeclined(t *testing.T) {
	api := newFakeConfigAPI()
	e := NewEditor(EditorConfig{
		API:     api,
		Confirm: func(string) bool { return false },
		Logger:  zerolog.Nop(),
	})
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	err := e.ResetToDefaults(context.Background())
	if !errors.Is(err, apperrors.ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
	if api.resetCalls != 0 {
		t.Fatal("declined reset reached the engine")
	}
}

func TestEditorInstrumentPriorityParsing(t *testing.T) {
	api := newFakeConfigAPI()
	e := newTestEditor(api, nil)
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := e.Set("instrument_priority", "banknifty, nifty ,finnifty"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	working, _ := e.Working()
	want := []string{"BANKNIFTY", "NIFTY", "FINNIFTY"}
	if len(working.InstrumentPriority) != len(want) {
		t.Fatalf("unexpected list %v", working.InstrumentPriority)
	}
	for i, sym := range want {
		if working.InstrumentPriority[i] != sym {
			t.Fatalf("unexpected list %v", working.InstrumentPriority)
		}
	}
}
