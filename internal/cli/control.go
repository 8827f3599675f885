package cli

import (
	"context"

	"github.com/spf13/cobra"

	"algopilot-panel/internal/models"
	"algopilot-panel/internal/panel"
)

// addControlCommands adds the guarded engine control commands.
func addControlCommands(rootCmd *cobra.Command, app *App) {
	startCmd := &cobra.Command{
		Use:     "start",
		Aliases: []string{"resume"},
		Short:   "Start or resume the algo",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runControl(cmd, app, panel.CmdResume, app.Dispatcher.Resume)
		},
	}

	pauseCmd := &cobra.Command{
		Use:   "pause",
		Short: "Pause the algo (open positions stay open)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runControl(cmd, app, panel.CmdPause, app.Dispatcher.Pause)
		},
	}

	emergencyCmd := &cobra.Command{
		Use:   "emergency-stop",
		Short: "Halt all trading immediately",
		Long: `Halt all trading immediately.

The engine stops entering and managing positions until the emergency is
explicitly reset. Asks for confirmation unless --yes is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runControl(cmd, app, panel.CmdEmergencyStop, app.Dispatcher.EmergencyStop)
		},
	}

	resetEmergencyCmd := &cobra.Command{
		Use:   "reset-emergency",
		Short: "Acknowledge the emergency stop",
		Long: `Acknowledge the emergency stop, moving the engine to STOPPED.

Trading does not resume automatically; run 'panel start' once broker
positions have been verified.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runControl(cmd, app, panel.CmdResetEmergency, app.Dispatcher.ResetEmergency)
		},
	}

	closeTradeCmd := &cobra.Command{
		Use:   "close-trade",
		Short: "Close the active trade at market",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runControl(cmd, app, panel.CmdCloseTrade, app.Dispatcher.CloseActiveTrade)
		},
	}

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(emergencyCmd)
	rootCmd.AddCommand(resetEmergencyCmd)
	rootCmd.AddCommand(closeTradeCmd)
}

// runControl is the shared one-shot path for control commands: require a
// session, dispatch, then show the engine's post-command state.
func runControl(cmd *cobra.Command, app *App, name string, dispatch func(context.Context) (models.StatusSnapshot, error)) error {
	defer app.Close()
	out := NewOutput(cmd)

	if err := app.RequireAuth(); err != nil {
		return reportError(out, err)
	}

	snap, err := dispatch(cmd.Context())
	if err != nil {
		return reportError(out, err)
	}

	if out.IsJSON() {
		return out.JSON(map[string]interface{}{
			"command": name,
			"ok":      true,
			"status":  snap.Status,
		})
	}

	out.Success("✓ %s dispatched", name)
	if snap.Sequence > 0 {
		printStatusSummary(out, snap.Status, app.Dispatcher.InFlight())
	}
	return nil
}
