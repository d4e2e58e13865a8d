package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"support-assistant/pkg/metrics"
)

// ErrNotFound is returned when a conversation does not exist
var ErrNotFound = errors.New("not found")

// Fixed-width UTC timestamps sort lexically in time order
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite persists conversations, turns, escalation tickets and operational logs
type SQLite struct {
	db      *sql.DB
	metrics *metrics.Metrics
}

// Open creates the database file and its directory when missing and applies the schema
func Open(path string, m *metrics.Metrics) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{`PRAGMA journal_mode=WAL;`, `PRAGMA busy_timeout=5000;`} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db, metrics: m}, nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			last_active TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			next_actions TEXT NOT NULL DEFAULT '[]'
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_last_active
			ON conversations(last_active DESC);`,
		`CREATE TABLE IF NOT EXISTS turns (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_turns_conversation
			ON turns(conversation_id, created_at, seq);`,
		`CREATE TABLE IF NOT EXISTS escalations (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'queued',
			notes TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_escalations_created
			ON escalations(created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS logs (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			conversation_id TEXT NOT NULL DEFAULT '',
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			meta TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_logs_conversation
			ON logs(conversation_id, created_at, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_logs_created
			ON logs(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate sqlite failed: %w", err)
		}
	}
	return nil
}

func (s *SQLite) observe(operation string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.StoreOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}
	}
	if t, err := time.Parse(timeLayout, trimmed); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

func rollbackTx(tx *sql.Tx) {
	if tx != nil {
		_ = tx.Rollback()
	}
}
