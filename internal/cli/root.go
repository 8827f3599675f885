package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"algopilot-panel/internal/config"
	"algopilot-panel/internal/engine"
	apperrors "algopilot-panel/internal/errors"
	"algopilot-panel/internal/logging"
	"algopilot-panel/internal/models"
	"algopilot-panel/internal/notify"
	"algopilot-panel/internal/panel"
	"algopilot-panel/internal/session"
	"algopilot-panel/internal/settings"
	"algopilot-panel/internal/store"
)

// App holds the panel's wired components, shared by every command.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Session    *session.Session
	Engine     *engine.Client
	Poller     *panel.Poller
	Dispatcher *panel.Dispatcher
	Editor     *settings.Editor
	Audit      store.AuditStore // nil when auditing is disabled
	Notifier   notify.Notifier

	assumeYes bool
	debugMode bool

	// risk-lock edge detection for notifications
	lastLocked bool
}

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := newApp(cfg, logger)

	rootCmd := &cobra.Command{
		Use:   "panel",
		Short: "Operator control panel for the AlgoPilot trading engine",
		Long: `panel is the operator console for a remote AlgoPilot trading engine.

It mirrors the engine's operational state over HTTP polling, dispatches
guarded control commands (resume, pause, emergency stop), edits the
engine-owned configuration and keeps a local audit trail of everything
the operator did.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if app.debugMode {
				logging.SetDebugLevel()
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&app.assumeYes, "yes", false, "answer yes to all confirmation prompts")
	rootCmd.PersistentFlags().BoolVar(&app.debugMode, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	// Consumed before cobra runs (the config must exist to build the app);
	// registered here so it shows in help and survives flag validation.
	rootCmd.PersistentFlags().String("config", "", "config directory (default ~/.config/algopilot-panel)")

	addAuthCommands(rootCmd, app)
	addControlCommands(rootCmd, app)
	addStatusCommands(rootCmd, app)
	addSettingsCommands(rootCmd, app)
	addAuditCommands(rootCmd, app)
	addWatchCommand(rootCmd, app)

	return rootCmd
}

// newApp wires the component graph. The audit store is best effort: if it
// cannot be opened the panel still runs, it just stops keeping history.
func newApp(cfg *config.Config, logger zerolog.Logger) *App {
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Session: session.New(config.SessionPath(cfg.Dir)),
	}

	app.Engine = engine.NewClient(engine.ClientConfig{
		BaseURL: cfg.Engine.BaseURL,
		Timeout: cfg.Engine.RequestTimeout,
		Session: app.Session,
		Logger:  logger,
	})

	if cfg.Audit.Enabled {
		auditStore, err := store.NewSQLiteStore(cfg.Audit.DBPath)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.Audit.DBPath).Msg("Audit store unavailable, continuing without history")
		} else {
			app.Audit = auditStore
		}
	}

	channels := []notify.Channel{
		notify.NewTerminalChannel(true),
		notify.NewWebhookChannel(cfg.Notify.WebhookURL, cfg.Notify.Enabled),
	}
	app.Notifier = notify.NewMultiNotifier(notify.Level(cfg.Notify.Level), channels...)

	app.Poller = panel.NewPoller(app.Engine, cfg.Engine.PollInterval, logger)
	app.Poller.Subscribe(app.onSnapshot)

	app.Dispatcher = panel.NewDispatcher(panel.DispatcherConfig{
		API:      app.Engine,
		Poller:   app.Poller,
		Confirm:  app.Confirm,
		Audit:    app.Audit,
		Notifier: app.Notifier,
		Logger:   logger,
	})

	app.Editor = settings.NewEditor(settings.EditorConfig{
		API:     app.Engine,
		Status:  app.Dispatcher.UIState,
		Confirm: app.Confirm,
		Audit:   app.Audit,
		Logger:  logger,
	})

	return app
}

// onSnapshot runs for every applied status snapshot: record it in the audit
// trail and fire a risk-lock notification on the unlocked-to-locked edge.
func (a *App) onSnapshot(snap models.StatusSnapshot) {
	ctx := context.Background()

	if a.Audit != nil {
		rec := store.SnapshotRecord{
			Timestamp:  snap.ReceivedAt,
			Sequence:   snap.Sequence,
			AlgoState:  string(snap.Status.AlgoState),
			Paused:     snap.Status.Paused,
			DryRun:     snap.Status.DryRun,
			DailyPnL:   snap.Status.RiskGuard.DailyPnL,
			TradeCount: snap.Status.RiskGuard.TradeCount,
			Locked:     snap.Status.RiskGuard.Locked,
		}
		if err := a.Audit.RecordSnapshot(ctx, rec); err != nil {
			a.Logger.Warn().Err(err).Msg("Snapshot audit write failed")
		}
	}

	locked := snap.Status.RiskGuard.Locked || snap.Status.RiskGuard.LossLimitBreached()
	if locked && !a.lastLocked {
		rg := snap.Status.RiskGuard
		if err := a.Notifier.SendRiskLock(ctx, rg.DailyPnL, rg.DailyLossLimit); err != nil {
			a.Logger.Warn().Err(err).Msg("Risk-lock notification failed")
		}
	}
	a.lastLocked = locked
}

// Confirm asks the operator to approve a destructive command on the
// terminal. The --yes flag answers every prompt affirmatively.
func (a *App) Confirm(prompt string) bool {
	if a.assumeYes {
		return true
	}
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// RequireAuth fails fast when no session is present, before any engine call
// goes out with no token.
func (a *App) RequireAuth() error {
	if !a.Session.IsAuthenticated() {
		return apperrors.ErrNotAuthenticated
	}
	return nil
}

// Close releases held resources.
func (a *App) Close() {
	if a.Poller.Running() {
		a.Poller.Stop()
	}
	if a.Audit != nil {
		if err := a.Audit.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Audit store close failed")
		}
	}
}

// reportError renders a command failure for the operator. Precondition
// failures and declined confirmations are expected outcomes, shown as
// warnings rather than errors.
func reportError(out *Output, err error) error {
	var perr *apperrors.PreconditionError
	if apperrors.As(err, &perr) {
		out.Warning("Nothing to do: %s", perr.Reason)
		return nil
	}
	var verr *apperrors.ValidationError
	if apperrors.As(err, &verr) {
		out.Error("Configuration rejected:")
		for _, msg := range verr.Errors {
			out.Error("  - %s", msg)
		}
		return err
	}
	switch {
	case apperrors.Is(err, apperrors.ErrNotConfirmed):
		out.Warning("Aborted.")
		return nil
	case apperrors.IsAuth(err):
		out.Error("Not logged in (or session expired). Run 'panel login'.")
		return err
	case apperrors.Is(err, apperrors.ErrEngineUnconfigured):
		out.Error("No engine URL configured. Set engine.base_url in config.toml or ALGOPILOT_URL.")
		return err
	case apperrors.Is(err, apperrors.ErrCommandInFlight):
		out.Warning("Another command is still in flight, try again.")
		return err
	}
	out.Error("Error: %v", err)
	return err
}
