package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	apperrors "algopilot-panel/internal/errors"
	"algopilot-panel/internal/models"
	"algopilot-panel/internal/panel"
	"algopilot-panel/pkg/utils"
)

// addWatchCommand adds the live dashboard command.
func addWatchCommand(rootCmd *cobra.Command, app *App) {
	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Live dashboard with keyboard control",
		Long: `Live dashboard mirroring the engine's state.

The status poll runs on a fixed interval in the background. Keys:

  r  start/resume        p  pause
  e  emergency stop      x  reset emergency
  c  close active trade  d  toggle dry-run/live
  q  quit

Destructive commands ask for an in-dashboard confirmation first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer app.Close()
			out := NewOutput(cmd)

			if err := app.RequireAuth(); err != nil {
				return reportError(out, err)
			}

			// The dashboard renders its own confirmation bar, so the
			// stdin-based prompt must not fire underneath the TUI.
			app.assumeYes = true

			app.Poller.Start()
			defer app.Poller.Stop()

			m := newWatchModel(app)
			program := tea.NewProgram(m, tea.WithAltScreen())
			final, err := program.Run()
			if err != nil {
				return fmt.Errorf("dashboard failed: %w", err)
			}
			if fm, ok := final.(watchModel); ok && fm.fatalErr != nil {
				return reportError(out, fm.fatalErr)
			}
			return nil
		},
	}

	rootCmd.AddCommand(watchCmd)
}

// Dashboard styles.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("57")).
			Padding(0, 2)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(14)

	stateStyles = map[string]lipgloss.Style{
		panel.LabelRunning:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		panel.LabelPaused:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220")),
		panel.LabelStopped:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245")),
		panel.LabelEmergency: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")).Blink(true),
	}

	profitStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	lossStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	confirmStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("220")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1)

	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("57")).
			Padding(1, 2)
)

type tickMsg time.Time

type commandDoneMsg struct {
	command string
	err     error
}

// pendingConfirm is a destructive command awaiting a y/n keystroke.
type pendingConfirm struct {
	command string
	prompt  string
	run     func(context.Context) (models.StatusSnapshot, error)
}

type watchModel struct {
	app *App

	pending    *pendingConfirm
	dispatched string // command in flight, "" when idle
	lastResult string
	lastFailed bool
	fatalErr   error
	width      int
}

func newWatchModel(app *App) watchModel {
	return watchModel{app: app}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m watchModel) Init() tea.Cmd {
	return tickCmd()
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tickMsg:
		// The poller owns fetching; the tick only triggers a re-render and
		// catches a dead session so the dashboard doesn't sit on a corpse.
		if err, _ := m.app.Poller.LastError(); err != nil && apperrors.IsAuth(err) {
			m.fatalErr = err
			return m, tea.Quit
		}
		return m, tickCmd()

	case commandDoneMsg:
		m.dispatched = ""
		if msg.err != nil {
			m.lastFailed = true
			m.lastResult = fmt.Sprintf("%s failed: %v", msg.command, flattenErr(msg.err))
			if apperrors.IsAuth(msg.err) {
				m.fatalErr = msg.err
				return m, tea.Quit
			}
		} else {
			m.lastFailed = false
			m.lastResult = fmt.Sprintf("%s ok", msg.command)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m watchModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if m.pending != nil {
		pc := *m.pending
		m.pending = nil
		if key == "y" || key == "Y" {
			return m.dispatch(pc.command, pc.run)
		}
		m.lastFailed = false
		m.lastResult = fmt.Sprintf("%s cancelled", pc.command)
		return m, nil
	}

	switch key {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "r":
		return m.dispatch(panel.CmdResume, m.app.Dispatcher.Resume)
	case "p":
		return m.dispatch(panel.CmdPause, m.app.Dispatcher.Pause)
	case "e":
		m.pending = &pendingConfirm{panel.CmdEmergencyStop, panel.PromptEmergencyStop, m.app.Dispatcher.EmergencyStop}
		return m, nil
	case "x":
		m.pending = &pendingConfirm{panel.CmdResetEmergency, panel.PromptResetEmergency, m.app.Dispatcher.ResetEmergency}
		return m, nil
	case "c":
		m.pending = &pendingConfirm{panel.CmdCloseTrade, panel.PromptCloseTrade, m.app.Dispatcher.CloseActiveTrade}
		return m, nil
	case "d":
		return m.dispatch("toggle-dry-run", func(ctx context.Context) (models.StatusSnapshot, error) {
			_, err := m.app.Editor.ToggleDryRun(ctx)
			if err != nil {
				return models.StatusSnapshot{}, err
			}
			return m.app.Poller.RefreshNow(ctx)
		})
	}
	return m, nil
}

// dispatch launches one command in the background. The dispatcher serializes
// commands itself; a second keystroke while one runs comes back as a
// rejection, not a queued duplicate.
func (m watchModel) dispatch(name string, run func(context.Context) (models.StatusSnapshot, error)) (tea.Model, tea.Cmd) {
	m.dispatched = name
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_, err := run(ctx)
		return commandDoneMsg{command: name, err: err}
	}
}

func (m watchModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("ALGOPILOT PANEL"))
	b.WriteString("\n\n")

	snap, ok := m.app.Poller.Latest()
	if !ok {
		b.WriteString(dimStyle.Render("Waiting for the first status poll..."))
		b.WriteString("\n")
		if err, _ := m.app.Poller.LastError(); err != nil {
			b.WriteString(lossStyle.Render(fmt.Sprintf("poll error: %v", flattenErr(err))))
			b.WriteString("\n")
		}
		b.WriteString(m.footer())
		return frameStyle.Render(b.String())
	}

	status := snap.Status
	st := panel.Derive(status, m.dispatched != "")

	stateStyle, styled := stateStyles[st.Label]
	stateText := st.Label
	if styled {
		stateText = stateStyle.Render(st.Label)
	}
	b.WriteString(labelStyle.Render("State") + stateText + "\n")

	mode := lossStyle.Render("LIVE")
	if status.DryRun {
		mode = profitStyle.Render("DRY RUN")
	}
	b.WriteString(labelStyle.Render("Mode") + mode + "\n")

	if status.ActiveTrade != nil {
		t := status.ActiveTrade
		b.WriteString(labelStyle.Render("Trade") +
			fmt.Sprintf("%s %s x%d @ %.2f", t.Symbol, t.OptionType, t.Quantity, t.EntryPrice) + "\n")
		if status.OpenTradePnL != nil {
			b.WriteString(labelStyle.Render("Open P&L") + pnlText(status.OpenTradePnL.PnL) + "\n")
		}
	} else {
		b.WriteString(labelStyle.Render("Trade") + dimStyle.Render("none") + "\n")
	}

	rg := status.RiskGuard
	b.WriteString(labelStyle.Render("Daily P&L") + pnlText(rg.DailyPnL) +
		dimStyle.Render(fmt.Sprintf("  (limit %s)", utils.FormatIndianCurrency(rg.DailyLossLimit))) + "\n")
	b.WriteString(labelStyle.Render("Trades today") +
		fmt.Sprintf("%d / %d", rg.TradeCount, rg.MaxTradesPerDay) + "\n")
	if rg.Locked || rg.LossLimitBreached() {
		b.WriteString(warnStyle.Render("⚠ RISK GUARD LOCKED") + "\n")
	}

	health := m.app.Engine.Health().Status()
	healthText := string(health)
	switch health {
	case "DEGRADED":
		healthText = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Render(healthText)
	case "UNHEALTHY":
		healthText = lossStyle.Render(healthText)
	default:
		healthText = dimStyle.Render(healthText)
	}
	b.WriteString(labelStyle.Render("Link") + healthText +
		dimStyle.Render(fmt.Sprintf("  seq %d, %s ago", snap.Sequence, utils.FormatAge(snap.ReceivedAt))) + "\n")

	phase := utils.MarketPhaseNow()
	phaseText := dimStyle.Render(string(phase))
	if phase == utils.MarketOpen {
		phaseText = profitStyle.Render(string(phase))
	}
	b.WriteString(labelStyle.Render("Market") + phaseText + "\n")

	if err, count := m.app.Poller.LastError(); err != nil {
		b.WriteString(lossStyle.Render(fmt.Sprintf("poll error (%d failed): %v", count, flattenErr(err))) + "\n")
	}

	b.WriteString(m.footer())
	return frameStyle.Render(b.String())
}

func (m watchModel) footer() string {
	var b strings.Builder

	if m.pending != nil {
		b.WriteString("\n")
		b.WriteString(confirmStyle.Render(m.pending.prompt + "  [y/n]"))
		b.WriteString("\n")
	} else if m.dispatched != "" {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("dispatching %s...", m.dispatched)))
		b.WriteString("\n")
	} else if m.lastResult != "" {
		b.WriteString("\n")
		if m.lastFailed {
			b.WriteString(lossStyle.Render(m.lastResult))
		} else {
			b.WriteString(profitStyle.Render(m.lastResult))
		}
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("r resume  p pause  e emergency  x reset  c close trade  d dry-run  q quit"))
	return b.String()
}

func pnlText(pnl float64) string {
	text := utils.FormatPnL(pnl)
	if pnl < 0 {
		return lossStyle.Render(text)
	}
	if pnl > 0 {
		return profitStyle.Render(text)
	}
	return text
}

// flattenErr trims wrapped context down to the last segment for the one-line
// dashboard footer.
func flattenErr(err error) string {
	msg := err.Error()
	if idx := strings.LastIndex(msg, ": "); idx >= 0 && idx+2 < len(msg) {
		return msg[idx+2:]
	}
	return msg
}
