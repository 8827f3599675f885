package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"algopilot-panel/internal/models"
	"algopilot-panel/internal/panel"
	"algopilot-panel/pkg/utils"
)

// addStatusCommands adds the read-only view commands.
func addStatusCommands(rootCmd *cobra.Command, app *App) {
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the engine's operational status",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.Close()
			out := NewOutput(cmd)

			if err := app.RequireAuth(); err != nil {
				return reportError(out, err)
			}

			snap, err := app.Poller.RefreshNow(cmd.Context())
			if err != nil {
				return reportError(out, err)
			}

			if out.IsJSON() {
				return out.JSON(snap.Status)
			}
			printStatusSummary(out, snap.Status, false)
			printLinkHealth(out, app)
			return nil
		},
	}

	tradesCmd := &cobra.Command{
		Use:   "trades",
		Short: "Show the engine's trade history",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.Close()
			out := NewOutput(cmd)

			if err := app.RequireAuth(); err != nil {
				return reportError(out, err)
			}

			trades, err := app.Engine.GetTrades(cmd.Context())
			if err != nil {
				return reportError(out, err)
			}

			if out.IsJSON() {
				return out.JSON(trades)
			}
			if len(trades) == 0 {
				out.Dim("No trades yet.")
				return nil
			}

			table := NewTable(out, "TIME", "SYMBOL", "TYPE", "QTY", "ENTRY", "EXIT", "P&L", "RESULT")
			for _, t := range trades {
				exit := "-"
				pnlCell := "-"
				if !t.IsOpen() {
					exit = fmt.Sprintf("%.2f", *t.ExitPrice)
					pnl := t.RealizedPnL()
					pnlCell = out.ColoredString(out.PnLColor(pnl), utils.FormatPnL(pnl))
				}
				table.AddRow(
					t.EntryTime.Format("02 Jan 15:04"),
					t.Symbol,
					t.OptionType,
					utils.FormatQuantity(int64(t.Quantity)),
					fmt.Sprintf("%.2f", t.EntryPrice),
					exit,
					pnlCell,
					resultCell(out, t.Result()),
				)
			}
			table.Render()
			return nil
		},
	}

	pnlCmd := &cobra.Command{
		Use:   "pnl",
		Short: "Show the aggregate performance summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.Close()
			out := NewOutput(cmd)

			if err := app.RequireAuth(); err != nil {
				return reportError(out, err)
			}

			pnl, err := app.Engine.GetPnL(cmd.Context())
			if err != nil {
				return reportError(out, err)
			}

			if out.IsJSON() {
				return out.JSON(pnl)
			}

			out.Bold("Performance")
			out.Printf("  Net P&L:      %s\n", out.ColoredString(out.PnLColor(pnl.NetPnL), utils.FormatPnL(pnl.NetPnL)))
			out.Printf("  Total trades: %d\n", pnl.TotalTrades)
			out.Printf("  Wins:         %s\n", out.ColoredString(ColorGreen, fmt.Sprintf("%d", pnl.Wins)))
			out.Printf("  Losses:       %s\n", out.ColoredString(ColorRed, fmt.Sprintf("%d", pnl.Losses)))
			if pnl.TotalTrades > 0 {
				winRate := float64(pnl.Wins) / float64(pnl.TotalTrades) * 100
				out.Printf("  Win rate:     %.1f%%\n", winRate)
			}
			return nil
		},
	}

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(tradesCmd)
	rootCmd.AddCommand(pnlCmd)
}

// printStatusSummary renders one operational status for the terminal.
func printStatusSummary(out *Output, status models.OperationalStatus, commandInFlight bool) {
	st := panel.Derive(status, commandInFlight)

	out.Println()
	out.Printf("  State:   %s\n", out.ColoredString(out.StateColor(st.Color)+ColorBold, st.Label))
	mode := "LIVE"
	modeColor := ColorRed
	if status.DryRun {
		mode = "DRY RUN"
		modeColor = ColorCyan
	}
	out.Printf("  Mode:    %s\n", out.ColoredString(modeColor, mode))

	if status.ActiveTrade != nil {
		t := status.ActiveTrade
		out.Printf("  Trade:   %s %s x%s @ %.2f\n", t.Symbol, t.OptionType, utils.FormatQuantity(int64(t.Quantity)), t.EntryPrice)
		if status.OpenTradePnL != nil {
			pnl := status.OpenTradePnL.PnL
			out.Printf("  Open P&L: %s\n", out.ColoredString(out.PnLColor(pnl), utils.FormatPnL(pnl)))
		}
	} else {
		out.Printf("  Trade:   %s\n", out.ColoredString(ColorDim, "none"))
	}

	rg := status.RiskGuard
	guardLine := fmt.Sprintf("%s / limit %s, trades %d/%d",
		utils.FormatPnL(rg.DailyPnL),
		utils.FormatIndianCurrency(rg.DailyLossLimit),
		rg.TradeCount, rg.MaxTradesPerDay)
	out.Printf("  Risk:    %s\n", out.ColoredString(out.PnLColor(rg.DailyPnL), guardLine))
	if rg.Locked || rg.LossLimitBreached() {
		out.Printf("  %s\n", out.ColoredString(ColorRed+ColorBold, "⚠ RISK GUARD LOCKED, trading halted for the day"))
	}
	out.Println()
}

func printLinkHealth(out *Output, app *App) {
	health := app.Engine.Health().Snapshot()
	color := ColorGreen
	switch health.Status {
	case "DEGRADED":
		color = ColorYellow
	case "UNHEALTHY":
		color = ColorRed
	case "UNKNOWN":
		color = ColorDim
	}
	out.Printf("  Link:    %s\n", out.ColoredString(color, string(health.Status)))

	phase := utils.MarketPhaseNow()
	phaseColor := ColorDim
	if phase == utils.MarketOpen {
		phaseColor = ColorGreen
	}
	out.Printf("  Market:  %s\n", out.ColoredString(phaseColor, string(phase)))
	out.Println()
}

func resultCell(out *Output, r models.TradeResult) string {
	switch r {
	case models.ResultProfit:
		return out.ColoredString(ColorGreen, string(r))
	case models.ResultLoss:
		return out.ColoredString(ColorRed, string(r))
	default:
		return out.ColoredString(ColorCyan, string(r))
	}
}
