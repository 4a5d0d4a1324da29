// Package history is the observability journal: every corrective action,
// send failure, and periodic statistics snapshot lands in a SQLite file
// under ~/.termkeep/. The status CLI and the web endpoints read it. It is
// not tracker state; a restarted monitor always begins with an empty
// tracked-window set.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// FileName is the journal file inside the state directory.
const FileName = "history.db"

// DB wraps the SQLite journal. Thread-safe for use from multiple goroutines;
// WAL mode plus busy timeout keeps a concurrent status CLI read safe.
type DB struct {
	db *sql.DB
}

// Action is one journaled monitor event.
type Action struct {
	ID       int64         `json:"id"`
	Time     time.Time     `json:"time"`
	Kind     string        `json:"kind"`
	Handle   uint64        `json:"handle,omitempty"`
	Process  string        `json:"process,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Detail   string        `json:"detail,omitempty"`
}

// Snapshot is one periodic statistics record, stored as a JSON blob so the
// schema does not chase every counter we add.
type Snapshot struct {
	ID   int64           `json:"id"`
	Time time.Time       `json:"time"`
	Data json.RawMessage `json:"data"`
}

// Open creates or opens the journal at dbPath with WAL mode and busy
// timeout, creating parent directories as needed.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("history: mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: wal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: busy timeout: %w", err)
	}
	h := &DB{db: db}
	if err := h.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

// migrate creates the schema inside one transaction.
func (h *DB) migrate() error {
	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("history: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS actions (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			at          INTEGER NOT NULL,
			kind        TEXT NOT NULL,
			handle      INTEGER NOT NULL DEFAULT 0,
			process     TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			detail      TEXT NOT NULL DEFAULT ''
		)
	`); err != nil {
		return fmt.Errorf("history: create actions: %w", err)
	}
	if _, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_actions_at ON actions(at)
	`); err != nil {
		return fmt.Errorf("history: index actions: %w", err)
	}
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			id   INTEGER PRIMARY KEY AUTOINCREMENT,
			at   INTEGER NOT NULL,
			data TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("history: create snapshots: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit migrate: %w", err)
	}
	return nil
}

// RecordAction appends one event to the journal.
func (h *DB) RecordAction(a Action) error {
	if a.Time.IsZero() {
		a.Time = time.Now()
	}
	_, err := h.db.Exec(`
		INSERT INTO actions (at, kind, handle, process, duration_ms, detail)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.Time.UnixMilli(), a.Kind, int64(a.Handle), a.Process,
		a.Duration.Milliseconds(), a.Detail)
	if err != nil {
		return fmt.Errorf("history: record action: %w", err)
	}
	return nil
}

// RecordSnapshot stores a statistics blob.
func (h *DB) RecordSnapshot(data any) error {
	blob, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("history: marshal snapshot: %w", err)
	}
	if _, err := h.db.Exec(`
		INSERT INTO snapshots (at, data) VALUES (?, ?)
	`, time.Now().UnixMilli(), string(blob)); err != nil {
		return fmt.Errorf("history: record snapshot: %w", err)
	}
	return nil
}

// RecentActions returns up to limit events, newest first.
func (h *DB) RecentActions(limit int) ([]Action, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.db.Query(`
		SELECT id, at, kind, handle, process, duration_ms, detail
		FROM actions ORDER BY at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query actions: %w", err)
	}
	defer rows.Close()

	var out []Action
	for rows.Next() {
		var a Action
		var at, handle, durMs int64
		if err := rows.Scan(&a.ID, &at, &a.Kind, &handle, &a.Process, &durMs, &a.Detail); err != nil {
			return nil, fmt.Errorf("history: scan action: %w", err)
		}
		a.Time = time.UnixMilli(at)
		a.Handle = uint64(handle)
		a.Duration = time.Duration(durMs) * time.Millisecond
		out = append(out, a)
	}
	return out, rows.Err()
}

// LatestSnapshot returns the newest statistics blob, or ok=false when none
// has been recorded yet.
func (h *DB) LatestSnapshot() (Snapshot, bool, error) {
	var s Snapshot
	var at int64
	var data string
	err := h.db.QueryRow(`
		SELECT id, at, data FROM snapshots ORDER BY id DESC LIMIT 1
	`).Scan(&s.ID, &at, &data)
	if err == sql.ErrNoRows {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("history: query snapshot: %w", err)
	}
	s.Time = time.UnixMilli(at)
	s.Data = json.RawMessage(data)
	return s, true, nil
}

// Prune deletes actions and snapshots older than keep.
func (h *DB) Prune(keep time.Duration) error {
	cutoff := time.Now().Add(-keep).UnixMilli()
	if _, err := h.db.Exec(`DELETE FROM actions WHERE at < ?`, cutoff); err != nil {
		return fmt.Errorf("history: prune actions: %w", err)
	}
	if _, err := h.db.Exec(`DELETE FROM snapshots WHERE at < ?`, cutoff); err != nil {
		return fmt.Errorf("history: prune snapshots: %w", err)
	}
	return nil
}

// Close checkpoints WAL and closes the journal.
func (h *DB) Close() error {
	_, _ = h.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return h.db.Close()
}
