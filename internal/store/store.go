// Package store provides the local audit trail for the panel.
package store

import (
	"context"
	"time"
)

// AuditStore records what the operator did and what the engine reported.
type AuditStore interface {
	// Commands
	RecordCommand(ctx context.Context, rec CommandRecord) error
	GetCommands(ctx context.Context, filter CommandFilter) ([]CommandRecord, error)

	// Status snapshots
	RecordSnapshot(ctx context.Context, rec SnapshotRecord) error
	GetSnapshots(ctx context.Context, filter SnapshotFilter) ([]SnapshotRecord, error)

	// Lifecycle
	Close() error
}

// CommandRecord is one dispatched control command.
type CommandRecord struct {
	ID        int64
	Timestamp time.Time
	Command   string // resume, pause, emergency-stop, reset-emergency, close-trade, save-config, reset-config, toggle-dry-run
	UIState   string // derived UI state at dispatch time
	OK        bool
	Error     string
}

// SnapshotRecord is one applied status snapshot, reduced to the fields worth
// keeping for an operator timeline.
type SnapshotRecord struct {
	ID         int64
	Timestamp  time.Time
	Sequence   uint64
	AlgoState  string
	Paused     bool
	DryRun     bool
	DailyPnL   float64
	TradeCount int
	Locked     bool
}

// CommandFilter represents filters for querying command records.
type CommandFilter struct {
	Command   string
	OnlyError bool
	Since     time.Time
	Limit     int
}

// SnapshotFilter represents filters for querying snapshot records.
type SnapshotFilter struct {
	AlgoState string
	Since     time.Time
	Limit     int
}
