package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"algopilot-panel/internal/models"
)

// addSettingsCommands adds the engine configuration commands.
func addSettingsCommands(rootCmd *cobra.Command, app *App) {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "View and edit the engine-owned algo configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current engine configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.Close()
			out := NewOutput(cmd)

			if err := app.RequireAuth(); err != nil {
				return reportError(out, err)
			}
			if err := app.Editor.Load(cmd.Context()); err != nil {
				return reportError(out, err)
			}

			cfg, _ := app.Editor.Working()
			if out.IsJSON() {
				return out.JSON(cfg)
			}
			printEngineConfig(out, cfg, app.Editor.Fields())
			return nil
		},
	}

	fieldsCmd := &cobra.Command{
		Use:   "fields",
		Short: "Show the configuration field descriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.Close()
			out := NewOutput(cmd)

			if err := app.RequireAuth(); err != nil {
				return reportError(out, err)
			}

			fields, err := app.Engine.GetConfigFields(cmd.Context())
			if err != nil {
				return reportError(out, err)
			}

			if out.IsJSON() {
				return out.JSON(fields)
			}
			if len(fields) == 0 {
				out.Dim("No field metadata available.")
				return nil
			}

			table := NewTable(out, "KEY", "TYPE", "RANGE", "DESCRIPTION")
			for _, key := range models.ConfigKeys {
				meta, ok := fields[key]
				if !ok {
					continue
				}
				table.AddRow(key, meta.Type, rangeCell(meta), meta.Description)
			}
			table.Render()
			return nil
		},
	}

	var preview bool
	setCmd := &cobra.Command{
		Use:   "set <key> <value> [<key> <value>...]",
		Short: "Change configuration values and save them to the engine",
		Long: `Change one or more configuration values and save them to the engine.

Values are validated by the engine before the save; a rejected save
leaves the engine configuration unchanged. With --preview the edited
configuration is shown without saving.

Example:
  panel config set quantity 150 stop_loss_pct 25`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%2 != 0 {
				return fmt.Errorf("expected key value pairs")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.Close()
			out := NewOutput(cmd)

			if err := app.RequireAuth(); err != nil {
				return reportError(out, err)
			}
			if err := app.Editor.Load(cmd.Context()); err != nil {
				return reportError(out, err)
			}

			for i := 0; i < len(args); i += 2 {
				if err := app.Editor.Set(args[i], args[i+1]); err != nil {
					return reportError(out, err)
				}
			}

			if preview {
				cfg, _ := app.Editor.Working()
				if out.IsJSON() {
					return out.JSON(map[string]interface{}{"preview": true, "config": cfg})
				}
				out.Warning("Preview only, nothing saved:")
				printEngineConfig(out, cfg, app.Editor.Fields())
				return nil
			}

			saved, err := app.Editor.Save(cmd.Context())
			if err != nil {
				return reportError(out, err)
			}

			if out.IsJSON() {
				return out.JSON(map[string]interface{}{"saved": true, "config": saved})
			}
			out.Success("✓ Configuration saved")
			printEngineConfig(out, saved, app.Editor.Fields())
			return nil
		},
	}
	setCmd.Flags().BoolVar(&preview, "preview", false, "show the edited configuration without saving")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Ask the engine to validate its configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.Close()
			out := NewOutput(cmd)

			if err := app.RequireAuth(); err != nil {
				return reportError(out, err)
			}

			result, err := app.Engine.ValidateConfig(cmd.Context())
			if err != nil {
				return reportError(out, err)
			}

			if out.IsJSON() {
				return out.JSON(result)
			}
			if result.Valid {
				out.Success("✓ Configuration is valid")
				return nil
			}
			out.Error("Configuration is invalid:")
			for _, msg := range result.Errors {
				out.Error("  - %s", msg)
			}
			return fmt.Errorf("configuration is invalid")
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the engine configuration to its defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.Close()
			out := NewOutput(cmd)

			if err := app.RequireAuth(); err != nil {
				return reportError(out, err)
			}
			if err := app.Editor.ResetToDefaults(cmd.Context()); err != nil {
				return reportError(out, err)
			}

			cfg, _ := app.Editor.Working()
			if out.IsJSON() {
				return out.JSON(map[string]interface{}{"reset": true, "config": cfg})
			}
			out.Success("✓ Configuration reset to defaults")
			printEngineConfig(out, cfg, app.Editor.Fields())
			return nil
		},
	}

	toggleCmd := &cobra.Command{
		Use:   "toggle-dry-run",
		Short: "Flip between dry-run and live trading",
		Long: `Flip between dry-run and live trading in a single round trip.

Allowed in every engine state, including emergency stop, so a runaway
live session can always be demoted to dry-run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.Close()
			out := NewOutput(cmd)

			if err := app.RequireAuth(); err != nil {
				return reportError(out, err)
			}

			result, err := app.Editor.ToggleDryRun(cmd.Context())
			if err != nil {
				return reportError(out, err)
			}

			if out.IsJSON() {
				return out.JSON(result)
			}
			if result.DryRun {
				out.Success("✓ Engine is now in DRY RUN mode")
			} else {
				out.Warning("⚠ Engine is now LIVE")
			}
			return nil
		},
	}

	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(fieldsCmd)
	configCmd.AddCommand(setCmd)
	configCmd.AddCommand(validateCmd)
	configCmd.AddCommand(resetCmd)
	configCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(configCmd)
}

// printEngineConfig renders the configuration keys in display order, with
// descriptions when field metadata is available.
func printEngineConfig(out *Output, cfg models.EngineConfig, fields models.FieldSet) {
	values := map[string]string{
		"quantity":            fmt.Sprintf("%d", cfg.Quantity),
		"stop_loss_pct":       fmt.Sprintf("%g", cfg.StopLossPct),
		"target_pct":          fmt.Sprintf("%g", cfg.TargetPct),
		"max_daily_loss":      fmt.Sprintf("%g", cfg.MaxDailyLoss),
		"risk_per_trade_pct":  fmt.Sprintf("%g", cfg.RiskPerTradePct),
		"max_trades_per_day":  fmt.Sprintf("%d", cfg.MaxTradesPerDay),
		"cooldown_minutes":    fmt.Sprintf("%d", cfg.CooldownMinutes),
		"force_exit_time":     cfg.ForceExitTime,
		"instrument_priority": strings.Join(cfg.InstrumentPriority, ", "),
		"dry_run":             fmt.Sprintf("%t", cfg.DryRun),
	}

	table := NewTable(out, "KEY", "VALUE", "DESCRIPTION")
	for _, key := range models.ConfigKeys {
		desc := ""
		if meta, ok := fields[key]; ok {
			desc = meta.Description
		}
		table.AddRow(key, values[key], desc)
	}
	table.Render()
}

func rangeCell(meta models.FieldMetadata) string {
	if meta.Min == nil && meta.Max == nil {
		return "-"
	}
	min, max := "", ""
	if meta.Min != nil {
		min = fmt.Sprintf("%v", meta.Min)
	}
	if meta.Max != nil {
		max = fmt.Sprintf("%v", meta.Max)
	}
	return fmt.Sprintf("%s..%s", min, max)
}
