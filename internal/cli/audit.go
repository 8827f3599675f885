package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"algopilot-panel/internal/store"
)

// addAuditCommands adds the local audit-trail query commands.
func addAuditCommands(rootCmd *cobra.Command, app *App) {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the local audit trail",
	}

	var (
		limit     int
		since     string
		command   string
		onlyError bool
	)
	commandsCmd := &cobra.Command{
		Use:   "commands",
		Short: "Show dispatched control and config commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.Close()
			out := NewOutput(cmd)

			if app.Audit == nil {
				out.Dim("Auditing is disabled (audit.enabled = false).")
				return nil
			}

			filter := store.CommandFilter{Command: command, OnlyError: onlyError, Limit: limit}
			var err error
			if filter.Since, err = parseSince(since); err != nil {
				return err
			}

			records, err := app.Audit.GetCommands(cmd.Context(), filter)
			if err != nil {
				return reportError(out, err)
			}

			if out.IsJSON() {
				return out.JSON(records)
			}
			if len(records) == 0 {
				out.Dim("No matching commands.")
				return nil
			}

			table := NewTable(out, "TIME", "COMMAND", "STATE", "RESULT", "ERROR")
			for _, rec := range records {
				result := out.ColoredString(ColorGreen, "ok")
				if !rec.OK {
					result = out.ColoredString(ColorRed, "failed")
				}
				table.AddRow(
					rec.Timestamp.Format("02 Jan 15:04:05"),
					rec.Command,
					rec.UIState,
					result,
					rec.Error,
				)
			}
			table.Render()
			return nil
		},
	}
	commandsCmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum rows to show")
	commandsCmd.Flags().StringVar(&since, "since", "", "only entries newer than this duration (e.g. 24h)")
	commandsCmd.Flags().StringVar(&command, "command", "", "filter by command name")
	commandsCmd.Flags().BoolVar(&onlyError, "failed", false, "only failed commands")

	var (
		histLimit int
		histSince string
		histState string
	)
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded status snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.Close()
			out := NewOutput(cmd)

			if app.Audit == nil {
				out.Dim("Auditing is disabled (audit.enabled = false).")
				return nil
			}

			filter := store.SnapshotFilter{AlgoState: histState, Limit: histLimit}
			var err error
			if filter.Since, err = parseSince(histSince); err != nil {
				return err
			}

			records, err := app.Audit.GetSnapshots(cmd.Context(), filter)
			if err != nil {
				return reportError(out, err)
			}

			if out.IsJSON() {
				return out.JSON(records)
			}
			if len(records) == 0 {
				out.Dim("No matching snapshots.")
				return nil
			}

			table := NewTable(out, "TIME", "SEQ", "STATE", "MODE", "DAILY P&L", "TRADES", "LOCKED")
			for _, rec := range records {
				mode := "LIVE"
				if rec.DryRun {
					mode = "DRY RUN"
				}
				locked := ""
				if rec.Locked {
					locked = out.ColoredString(ColorRed, "LOCKED")
				}
				table.AddRow(
					rec.Timestamp.Format("02 Jan 15:04:05"),
					fmt.Sprintf("%d", rec.Sequence),
					rec.AlgoState,
					mode,
					out.ColoredString(out.PnLColor(rec.DailyPnL), fmt.Sprintf("%.2f", rec.DailyPnL)),
					fmt.Sprintf("%d", rec.TradeCount),
					locked,
				)
			}
			table.Render()
			return nil
		},
	}
	historyCmd.Flags().IntVarP(&histLimit, "limit", "n", 20, "maximum rows to show")
	historyCmd.Flags().StringVar(&histSince, "since", "", "only entries newer than this duration (e.g. 24h)")
	historyCmd.Flags().StringVar(&histState, "state", "", "filter by algo state (RUNNING, PAUSED, STOPPED, EMERGENCY_STOP)")

	auditCmd.AddCommand(commandsCmd)
	auditCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(auditCmd)
}

func parseSince(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since duration %q: %w", s, err)
	}
	return time.Now().Add(-d), nil
}
