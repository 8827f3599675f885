// Package models defines the wire types exposed by the AlgoPilot engine and
// the panel-local calculations derived from them.
package models

import "time"

// AlgoState is the engine's coarse operating mode.
type AlgoState string

const (
	StateRunning       AlgoState = "RUNNING"
	StatePaused        AlgoState = "PAUSED"
	StateStopped       AlgoState = "STOPPED"
	StateEmergencyStop AlgoState = "EMERGENCY_STOP"
)

// OperationalStatus is a snapshot of the engine's operational state. It is
// immutable once received and replaced wholesale on each poll.
type OperationalStatus struct {
	AlgoState    AlgoState       `json:"algo_state"`
	Paused       bool            `json:"paused"`
	Mode         string          `json:"mode"`
	DryRun       bool            `json:"dry_run"`
	ActiveTrade  *Trade          `json:"active_trade,omitempty"`
	OpenTradePnL *OpenTradePnL   `json:"open_trade_pnl,omitempty"`
	RiskGuard    RiskGuardStatus `json:"risk_guard"`
}

// OpenTradePnL is the engine's unrealized P&L for the active trade.
type OpenTradePnL struct {
	PnL float64 `json:"pnl"`
}

// RiskGuardStatus is the engine's daily loss/trade-count circuit breaker.
type RiskGuardStatus struct {
	DailyPnL        float64 `json:"daily_pnl"`
	TradeCount      int     `json:"trade_count"`
	MaxTradesPerDay int     `json:"max_trades_per_day"`
	DailyLossLimit  float64 `json:"daily_loss_limit"`
	Locked          bool    `json:"locked"`
	Date            string  `json:"date"`
}

// LossLimitBreached reports whether the daily loss limit has been hit.
// Computed locally from daily_pnl so the display stays consistent even when
// the engine omits a breach flag.
func (r RiskGuardStatus) LossLimitBreached() bool {
	return r.DailyPnL <= -r.DailyLossLimit
}

// PnLSummary is the engine's aggregate performance report.
type PnLSummary struct {
	NetPnL      float64 `json:"net_pnl"`
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
}

// StatusSnapshot pairs an applied OperationalStatus with the sequence number
// and receive time of the poll that produced it.
type StatusSnapshot struct {
	Status     OperationalStatus
	Sequence   uint64
	ReceivedAt time.Time
}
