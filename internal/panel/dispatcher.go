package panel

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"algopilot-panel/internal/engine"
	apperrors "algopilot-panel/internal/errors"
	"algopilot-panel/internal/logging"
	"algopilot-panel/internal/models"
	"algopilot-panel/internal/notify"
	"algopilot-panel/internal/store"
)

// ConfirmFunc asks the operator to approve a destructive command. Returning
// false aborts the command without touching the network.
type ConfirmFunc func(prompt string) bool

// Command names as recorded in the audit trail.
const (
	CmdResume         = "resume"
	CmdPause          = "pause"
	CmdEmergencyStop  = "emergency-stop"
	CmdResetEmergency = "reset-emergency"
	CmdCloseTrade     = "close-trade"
)

// Confirmation prompts for destructive commands.
const (
	PromptEmergencyStop  = "Emergency stop will halt all trading immediately. Continue?"
	PromptResetEmergency = "Reset emergency stop? The algo moves to STOPPED and trading will NOT resume automatically. Verify broker positions first."
	PromptCloseTrade     = "Close active trade immediately?"
)

// Dispatcher issues guarded control commands. Commands are serialized: while
// one is unresolved every other command is rejected, and a precondition
// failure is a local no-op that never reaches the engine.
type Dispatcher struct {
	api        engine.API
	poller     *Poller
	confirm    ConfirmFunc
	audit      store.AuditStore // nil disables auditing
	notifier   notify.Notifier  // nil disables notifications
	logger     zerolog.Logger
	staleAfter time.Duration

	inFlight atomic.Bool
}

// DispatcherConfig holds dependencies for a Dispatcher.
type DispatcherConfig struct {
	API      engine.API
	Poller   *Poller
	Confirm  ConfirmFunc
	Audit    store.AuditStore
	Notifier notify.Notifier
	Logger   zerolog.Logger
	// StaleAfter bounds how old a polled snapshot may be before a command
	// re-fetches status to evaluate its precondition. Defaults to 10s.
	StaleAfter time.Duration
}

// NewDispatcher creates a command dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 10 * time.Second
	}
	return &Dispatcher{
		api:        cfg.API,
		poller:     cfg.Poller,
		confirm:    cfg.Confirm,
		audit:      cfg.Audit,
		notifier:   cfg.Notifier,
		logger:     cfg.Logger,
		staleAfter: staleAfter,
	}
}

// InFlight reports whether a command is currently unresolved.
func (d *Dispatcher) InFlight() bool {
	return d.inFlight.Load()
}

// UIState derives the current UI state from the latest snapshot, folding in
// the dispatcher's own in-flight flag.
func (d *Dispatcher) UIState() (UIState, bool) {
	snap, ok := d.poller.Latest()
	if !ok {
		return UIState{}, false
	}
	return Derive(snap.Status, d.inFlight.Load()), true
}

// Resume starts or resumes the algo. Precondition: not emergency, not
// already running.
func (d *Dispatcher) Resume(ctx context.Context) (models.StatusSnapshot, error) {
	return d.run(ctx, CmdResume, "", func(st UIState, _ models.OperationalStatus) *apperrors.PreconditionError {
		if st.IsEmergency {
			return apperrors.NewPreconditionError(CmdResume, "engine is in emergency stop")
		}
		if st.IsRunning {
			return apperrors.NewPreconditionError(CmdResume, "algo is already running")
		}
		return nil
	}, d.api.Resume)
}

// Pause pauses the algo. Precondition: running and not emergency.
func (d *Dispatcher) Pause(ctx context.Context) (models.StatusSnapshot, error) {
	return d.run(ctx, CmdPause, "", func(st UIState, _ models.OperationalStatus) *apperrors.PreconditionError {
		if st.IsEmergency {
			return apperrors.NewPreconditionError(CmdPause, "engine is in emergency stop")
		}
		if !st.IsRunning {
			return apperrors.NewPreconditionError(CmdPause, "algo is not running")
		}
		return nil
	}, d.api.Pause)
}

// EmergencyStop halts all trading immediately. Always reachable (that is the
// point of an emergency brake), but requires explicit confirmation. The nil
// check keeps it dispatchable even when the status endpoint is down.
func (d *Dispatcher) EmergencyStop(ctx context.Context) (models.StatusSnapshot, error) {
	snap, err := d.run(ctx, CmdEmergencyStop, PromptEmergencyStop, nil, d.api.EmergencyStop)
	if err == nil && d.notifier != nil {
		if nerr := d.notifier.SendEmergency(ctx, "operator engaged emergency stop"); nerr != nil {
			d.logger.Warn().Err(nerr).Msg("Emergency notification failed")
		}
	}
	return snap, err
}

// ResetEmergency acknowledges the emergency stop. Precondition: the engine
// is actually in emergency stop. The engine moves to STOPPED; automation
// does not resume on its own.
func (d *Dispatcher) ResetEmergency(ctx context.Context) (models.StatusSnapshot, error) {
	return d.run(ctx, CmdResetEmergency, PromptResetEmergency,
		func(st UIState, _ models.OperationalStatus) *apperrors.PreconditionError {
			if !st.IsEmergency {
				return apperrors.NewPreconditionError(CmdResetEmergency, "engine is not in emergency stop")
			}
			return nil
		}, d.api.ResetEmergency)
}

// CloseActiveTrade closes the open trade at market. Precondition: an active
// trade exists.
func (d *Dispatcher) CloseActiveTrade(ctx context.Context) (models.StatusSnapshot, error) {
	return d.run(ctx, CmdCloseTrade, PromptCloseTrade,
		func(_ UIState, status models.OperationalStatus) *apperrors.PreconditionError {
			if status.ActiveTrade == nil {
				return apperrors.NewPreconditionError(CmdCloseTrade, "no active trade")
			}
			return nil
		}, d.api.CloseActiveTrade)
}

type preconditionCheck func(UIState, models.OperationalStatus) *apperrors.PreconditionError

// run is the shared command path: acquire the single in-flight slot, settle
// on a current status, check the precondition, confirm if destructive, call
// the engine, then re-fetch status. A nil check marks a command with no state
// precondition; it never waits on the status read path, so a broken
// /control/status cannot gate it.
func (d *Dispatcher) run(ctx context.Context, command, prompt string, check preconditionCheck, call func(context.Context) error) (models.StatusSnapshot, error) {
	if !d.inFlight.CompareAndSwap(false, true) {
		return models.StatusSnapshot{}, apperrors.ErrCommandInFlight
	}
	defer d.inFlight.Store(false)

	logger := logging.WithCommand(d.logger, command)

	st := UIState{Label: LabelUnknown}
	if check == nil {
		// Best effort for the audit label only.
		if snap, ok := d.poller.Latest(); ok {
			st = Derive(snap.Status, false)
		}
	} else {
		status, err := d.currentStatus(ctx)
		if err != nil {
			return models.StatusSnapshot{}, apperrors.Wrapf(err, "fetching status before %s", command)
		}
		st = Derive(status, false)
		if perr := check(st, status); perr != nil {
			logger.Debug().Str("ui_state", st.Label).Str("reason", perr.Reason).Msg("Command precondition failed")
			return models.StatusSnapshot{}, perr
		}
	}

	if prompt != "" {
		if d.confirm == nil || !d.confirm(prompt) {
			return models.StatusSnapshot{}, apperrors.ErrNotConfirmed
		}
	}

	cmdErr := call(ctx)
	d.record(ctx, command, st.Label, cmdErr)
	logging.LogCommand(d.logger, command, st.Label, cmdErr)

	if cmdErr != nil {
		if d.notifier != nil {
			if nerr := d.notifier.SendCommandFailure(ctx, command, cmdErr); nerr != nil {
				logger.Warn().Err(nerr).Msg("Failure notification failed")
			}
		}
		return models.StatusSnapshot{}, cmdErr
	}

	// Effect on success: re-fetch status so the operator sees the engine's
	// post-command state. A refresh failure does not fail the command.
	snap, err := d.poller.RefreshNow(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Post-command status refresh failed")
		if last, ok := d.poller.Latest(); ok {
			return last, nil
		}
		return models.StatusSnapshot{}, nil
	}
	return snap, nil
}

// currentStatus uses the latest polled snapshot when fresh enough, falling
// back to a direct fetch for one-shot invocations where the poller is idle.
func (d *Dispatcher) currentStatus(ctx context.Context) (models.OperationalStatus, error) {
	if snap, ok := d.poller.Latest(); ok && time.Since(snap.ReceivedAt) <= d.staleAfter {
		return snap.Status, nil
	}
	snap, err := d.poller.RefreshNow(ctx)
	if err != nil {
		return models.OperationalStatus{}, err
	}
	return snap.Status, nil
}

func (d *Dispatcher) record(ctx context.Context, command, uiState string, cmdErr error) {
	if d.audit == nil {
		return
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
	if err := d.audit.RecordCommand(ctx, rec); err != nil {
		d.logger.Warn().Err(err).Msg("Audit write failed")
	}
}
