package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Ledger records every relayed attachment in SQLite. It is operational
// bookkeeping for the accumulate-forever media directory, not message
// history.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

func OpenLedger(path string, logger *slog.Logger) (*Ledger, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create ledger directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open ledger: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	l := &Ledger{db: db, logger: logger}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger migration failed: %w", err)
	}
	return l, nil
}

func (l *Ledger) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS relays (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		filename    TEXT NOT NULL,
		source_url  TEXT NOT NULL,
		direction   TEXT NOT NULL,
		size        INTEGER DEFAULT 0,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_relays_filename ON relays(filename);
	`
	_, err := l.db.Exec(schema)
	return err
}

// RelayEntry describes one completed relay.
type RelayEntry struct {
	Filename  string
	SourceURL string
	Direction string // "sinch-to-front" | "front-to-sinch"
	Size      int64
	CreatedAt time.Time
}

func (l *Ledger) Record(ctx context.Context, e RelayEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO relays (filename, source_url, direction, size, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.Filename, e.SourceURL, e.Direction, e.Size, e.CreatedAt,
	)
	return err
}

// LedgerStats summarizes the relays table.
type LedgerStats struct {
	Relays     int64
	TotalBytes int64
}

func (l *Ledger) Stats(ctx context.Context) (LedgerStats, error) {
	var s LedgerStats
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM relays`,
	).Scan(&s.Relays, &s.TotalBytes)
	return s, err
}

func (l *Ledger) Close() error {
	return l.db.Close()
}
