package models

// EngineConfig is the engine-owned algo configuration. The panel holds a
// working copy that is mutated locally by the operator; it is not
// authoritative until a successful save response replaces it.
type EngineConfig struct {
	Quantity           int      `json:"quantity"`
	StopLossPct        float64  `json:"stop_loss_pct"`
	TargetPct          float64  `json:"target_pct"`
	MaxDailyLoss       float64  `json:"max_daily_loss"`
	RiskPerTradePct    float64  `json:"risk_per_trade_pct"`
	MaxTradesPerDay    int      `json:"max_trades_per_day"`
	CooldownMinutes    int      `json:"cooldown_minutes"`
	ForceExitTime      string   `json:"force_exit_time"`
	InstrumentPriority []string `json:"instrument_priority"`
	DryRun             bool     `json:"dry_run"`
}

// Clone returns a deep copy of the configuration. The slice is copied so a
// working copy never aliases the last-saved one.
func (c EngineConfig) Clone() EngineConfig {
	out := c
	out.InstrumentPriority = append([]string(nil), c.InstrumentPriority...)
	return out
}

// FieldMetadata describes a single configuration key for display purposes.
// It has no effect on validation, which is delegated to the engine.
type FieldMetadata struct {
	Description string `json:"description"`
	Type        string `json:"type,omitempty"`
	Min         any    `json:"min,omitempty"`
	Max         any    `json:"max,omitempty"`
}

// FieldSet maps configuration keys to their display metadata.
type FieldSet map[string]FieldMetadata

// ConfigKeys lists the editable configuration keys in display order.
var ConfigKeys = []string{
	"quantity",
	"stop_loss_pct",
	"target_pct",
	"max_daily_loss",
	"risk_per_trade_pct",
	"max_trades_per_day",
	"cooldown_minutes",
	"force_exit_time",
	"instrument_priority",
	"dry_run",
}
