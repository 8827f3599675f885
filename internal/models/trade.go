package models

import "time"

// Trade represents a single option trade executed by the engine.
type Trade struct {
	Symbol     string     `json:"symbol"`
	OptionType string     `json:"option_type"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  *float64   `json:"exit_price,omitempty"`
	Quantity   int        `json:"quantity"`
	EntryTime  time.Time  `json:"entry_time"`
	ExitTime   *time.Time `json:"exit_time,omitempty"`
}

// IsOpen reports whether the trade is still open. A trade is closed exactly
// when an exit price is present.
func (t Trade) IsOpen() bool {
	return t.ExitPrice == nil
}

// RealizedPnL returns the locally recomputed realized P&L for a closed
// trade, and 0 for an open one. The engine's figures are never trusted for
// display; sign and rounding are always derived from entry, exit and
// quantity.
func (t Trade) RealizedPnL() float64 {
	if t.ExitPrice == nil {
		return 0
	}
	return (*t.ExitPrice - t.EntryPrice) * float64(t.Quantity)
}

// TradeResult is the display label for a trade row.
type TradeResult string

const (
	ResultOpen   TradeResult = "OPEN"
	ResultProfit TradeResult = "PROFIT"
	ResultLoss   TradeResult = "LOSS"
)

// Result labels the trade OPEN, PROFIT or LOSS. An open trade is always
// OPEN, never PROFIT or LOSS. A break-even close counts as PROFIT.
func (t Trade) Result() TradeResult {
	if t.IsOpen() {
		return ResultOpen
	}
	if t.RealizedPnL() >= 0 {
		return ResultProfit
	}
	return ResultLoss
}
