package metrics

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
)

const historySchemaVersion = 1

// History is a SQLite-backed store of every metric observation in a run.
// It backs the status server's recent-metrics endpoint and survives
// orchestrator restarts.
type History struct {
	db *sql.DB
}

// OpenHistory opens (and creates if needed) the observation database at
// the given local path. ":memory:" is accepted for tests.
func OpenHistory(ctx context.Context, path string) (*History, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("metrics history path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(filepath.Clean(path)), 0755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open metrics history: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping metrics history: %w", err)
	}

	h := &History{db: db}
	if err := h.configure(ctx, path); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := h.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return h, nil
}

// configure keeps a single connection and enables WAL for predictable
// behavior alongside the status server's concurrent reads.
func (h *History) configure(ctx context.Context, path string) error {
	if path == ":memory:" {
		h.db.SetMaxOpenConns(1)
		return nil
	}
	h.db.SetMaxOpenConns(1)
	h.db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var journalMode string
	if err := h.db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	var busyTimeout int
	if err := h.db.QueryRowContext(ctx, "PRAGMA busy_timeout=5000").Scan(&busyTimeout); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	return nil
}

func (h *History) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS history_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			schema_version INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`INSERT OR IGNORE INTO history_meta (id, schema_version, created_at) VALUES (1, ?, ?);`,
		`CREATE TABLE IF NOT EXISTS observations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			name TEXT NOT NULL,
			value REAL NOT NULL,
			at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_observations_run ON observations(run_id, id);`,
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for i, stmt := range stmts {
		if i == 1 {
			if _, err := h.db.ExecContext(ctx, stmt, historySchemaVersion, now); err != nil {
				return fmt.Errorf("init history meta: %w", err)
			}
			continue
		}
		if _, err := h.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init history schema: %w", err)
		}
	}
	return nil
}

// Append records one observation for the given run.
func (h *History) Append(ctx context.Context, runID string, obs Observation) error {
	at := obs.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO observations (run_id, step, name, value, at)
		VALUES (?, ?, ?, ?, ?)
	`, runID, obs.Step, obs.Name, obs.Value, at.UTC().Format(time.RFC3339Nano))
	return err
}

// Recent returns the latest n observations for a run, oldest first.
func (h *History) Recent(ctx context.Context, runID string, n int) ([]Observation, error) {
	if n <= 0 {
		n = 50
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT step, name, value, at FROM (
			SELECT id, step, name, value, at FROM observations
			WHERE run_id = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id ASC
	`, runID, n)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Observation
	for rows.Next() {
		var obs Observation
		var at string
		if err := rows.Scan(&obs.Step, &obs.Name, &obs.Value, &at); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, at); err == nil {
			obs.At = t
		}
		out = append(out, obs)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (h *History) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	return h.db.Close()
}

// HistorySink adapts a History to the Sink interface for a single run.
type HistorySink struct {
	history *History
	runID   string
}

// NewHistorySink creates a sink appending observations for runID.
// Closing the sink does not close the shared History.
func NewHistorySink(history *History, runID string) *HistorySink {
	return &HistorySink{history: history, runID: runID}
}

func (s *HistorySink) Observe(ctx context.Context, obs Observation) error {
	return s.history.Append(ctx, s.runID, obs)
}

func (s *HistorySink) Close() error {
	return nil
}

var _ Sink = (*HistorySink)(nil)
