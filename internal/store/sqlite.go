package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements AuditStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based audit store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Dispatched control and config commands
	CREATE TABLE IF NOT EXISTS command_audit (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		command TEXT NOT NULL,
		ui_state TEXT NOT NULL,
		ok INTEGER NOT NULL,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Applied status snapshots, one row per applied poll
	CREATE TABLE IF NOT EXISTS status_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		sequence INTEGER NOT NULL,
		algo_state TEXT NOT NULL,
		paused INTEGER NOT NULL,
		dry_run INTEGER NOT NULL,
		daily_pnl REAL NOT NULL,
		trade_count INTEGER NOT NULL,
		locked INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_command_audit_ts ON command_audit(timestamp);
	CREATE INDEX IF NOT EXISTS idx_status_history_ts ON status_history(timestamp);
	CREATE INDEX IF NOT EXISTS idx_status_history_state ON status_history(algo_state);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordCommand inserts one command record.
func (s *SQLiteStore) RecordCommand(ctx context.Context, rec CommandRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO command_audit (timestamp, command, ui_state, ok, error)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.Timestamp, rec.Command, rec.UIState, boolToInt(rec.OK), rec.Error,
	)
	if err != nil {
		return fmt.Errorf("recording command: %w", err)
	}
	return nil
}

// GetCommands returns command records matching the filter, newest first.
func (s *SQLiteStore) GetCommands(ctx context.Context, filter CommandFilter) ([]CommandRecord, error) {
	query := `SELECT id, timestamp, command, ui_state, ok, error FROM command_audit`
	var conds []string
	var args []interface{}

	if filter.Command != "" {
		conds = append(conds, "command = ?")
		args = append(args, filter.Command)
	}
	if filter.OnlyError {
		conds = append(conds, "ok = 0")
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, filter.Since)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying commands: %w", err)
	}
	defer rows.Close()

	var out []CommandRecord
	for rows.Next() {
		var rec CommandRecord
		var ok int
		var errStr sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Command, &rec.UIState, &ok, &errStr); err != nil {
			return nil, err
		}
		rec.OK = ok != 0
		rec.Error = errStr.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecordSnapshot inserts one status snapshot record.
func (s *SQLiteStore) RecordSnapshot(ctx context.Context, rec SnapshotRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO status_history (timestamp, sequence, algo_state, paused, dry_run, daily_pnl, trade_count, locked)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp, rec.Sequence, rec.AlgoState, boolToInt(rec.Paused),
		boolToInt(rec.DryRun), rec.DailyPnL, rec.TradeCount, boolToInt(rec.Locked),
	)
	if err != nil {
		return fmt.Errorf("recording snapshot: %w", err)
	}
	return nil
}

// GetSnapshots returns snapshot records matching the filter, newest first.
func (s *SQLiteStore) GetSnapshots(ctx context.Context, filter SnapshotFilter) ([]SnapshotRecord, error) {
	query := `SELECT id, timestamp, sequence, algo_state, paused, dry_run, daily_pnl, trade_count, locked FROM status_history`
	var conds []string
	var args []interface{}

	if filter.AlgoState != "" {
		conds = append(conds, "algo_state = ?")
		args = append(args, filter.AlgoState)
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, filter.Since)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotRecord
	for rows.Next() {
		var rec SnapshotRecord
		var paused, dryRun, locked int
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Sequence, &rec.AlgoState,
			&paused, &dryRun, &rec.DailyPnL, &rec.TradeCount, &locked); err != nil {
			return nil, err
		}
		rec.Paused = paused != 0
		rec.DryRun = dryRun != 0
		rec.Locked = locked != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
