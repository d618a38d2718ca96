// Package history persists a run-by-run ledger of watch executions to a
// local SQLite database, so `--history` can answer "when did this watch
// last trigger, and how often has it failed" across process restarts
// without re-reading the whole cache archive.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed watch-run ledger.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) the ledger database at path, in
// WAL mode for concurrent readers while the driver keeps writing.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("history: ping %s: %w", path, err)
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		hash TEXT NOT NULL,
		executed_at INTEGER NOT NULL,
		triggered INTEGER NOT NULL DEFAULT 0,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS runs_hash_idx ON runs (hash, executed_at);

	CREATE TABLE IF NOT EXISTS watch_state (
		hash TEXT PRIMARY KEY,
		last_executed_at INTEGER,
		last_triggered_at INTEGER,
		consecutive_failures INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordRun appends one execution record for hash and updates its
// rolled-up watch_state row. runErr is nil on a clean (possibly
// non-triggering) run.
func (s *Store) RecordRun(hash string, triggered bool, runErr error) error {
	now := time.Now().Unix()

	errText := sql.NullString{}
	if runErr != nil {
		errText = sql.NullString{String: runErr.Error(), Valid: true}
	}

	if _, err := s.db.Exec(
		`INSERT INTO runs (hash, executed_at, triggered, error) VALUES (?, ?, ?, ?)`,
		hash, now, boolToInt(triggered), errText,
	); err != nil {
		return fmt.Errorf("history: record run: %w", err)
	}

	var triggeredAt interface{}
	if triggered {
		triggeredAt = now
	}

	if runErr != nil {
		_, err := s.db.Exec(`
			INSERT INTO watch_state (hash, last_executed_at, last_triggered_at, consecutive_failures)
			VALUES (?, ?, ?, 1)
			ON CONFLICT(hash) DO UPDATE SET
				last_executed_at = excluded.last_executed_at,
				consecutive_failures = watch_state.consecutive_failures + 1
		`, hash, now, triggeredAt)
		if err != nil {
			return fmt.Errorf("history: update watch_state: %w", err)
		}
		return nil
	}

	_, err := s.db.Exec(`
		INSERT INTO watch_state (hash, last_executed_at, last_triggered_at, consecutive_failures)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(hash) DO UPDATE SET
			last_executed_at = excluded.last_executed_at,
			last_triggered_at = COALESCE(?, watch_state.last_triggered_at),
			consecutive_failures = 0
	`, hash, now, triggeredAt, triggeredAt)
	if err != nil {
		return fmt.Errorf("history: update watch_state: %w", err)
	}
	return nil
}

// State is one watch's rolled-up run history.
type State struct {
	Hash                string
	LastExecutedAt      int64
	LastTriggeredAt     int64
	ConsecutiveFailures int
}

// State returns the rolled-up history for hash, or the zero State (with
// a zero Hash) if the watch has never run.
func (s *Store) State(hash string) (State, error) {
	var st State
	var lastExecuted, lastTriggered sql.NullInt64
	err := s.db.QueryRow(
		`SELECT hash, last_executed_at, last_triggered_at, consecutive_failures FROM watch_state WHERE hash = ?`,
		hash,
	).Scan(&st.Hash, &lastExecuted, &lastTriggered, &st.ConsecutiveFailures)
	if err == sql.ErrNoRows {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("history: read state: %w", err)
	}
	st.LastExecutedAt = lastExecuted.Int64
	st.LastTriggeredAt = lastTriggered.Int64
	return st, nil
}

// Close closes the underlying database, checkpointing the WAL first.
func (s *Store) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
