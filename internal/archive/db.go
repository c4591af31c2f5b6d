// Package archive keeps streamed replays in a local SQLite database so they
// can be listed and played back offline.
package archive

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA busy_timeout = 5000;

CREATE TABLE IF NOT EXISTS recordings (
    session_id  TEXT PRIMARY KEY,
    started_at  TEXT NOT NULL DEFAULT '',
    updated_at  TEXT NOT NULL DEFAULT '',
    event_count INTEGER NOT NULL DEFAULT 0,
    first_ts    INTEGER NOT NULL DEFAULT 0,
    last_ts     INTEGER NOT NULL DEFAULT 0,
    complete    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS events (
    session_id TEXT NOT NULL,
    seq        INTEGER NOT NULL,
    type       INTEGER NOT NULL,
    ts         INTEGER NOT NULL,
    data       BLOB,
    PRIMARY KEY (session_id, seq)
);

CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);
`

// schemaVersion is bumped when the event encoding changes; older archives
// are cleared on open.
const schemaVersion = "1"

const timeLayout = time.RFC3339

type DB struct {
	db  *sql.DB
	now func() time.Time
}

func OpenDB(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one writer; the engine appends from the tail goroutine
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	d := &DB{db: db, now: time.Now}
	if err := d.migrateSchemaVersion(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

func (d *DB) migrateSchemaVersion() error {
	var ver string
	err := d.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&ver)
	if err == nil && ver == schemaVersion {
		return nil
	}
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec("DELETE FROM events"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM recordings"); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?)", schemaVersion); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Raw() *sql.DB {
	return d.db
}

// Recording is one archived replay.
type Recording struct {
	SessionID  string
	StartedAt  time.Time
	UpdatedAt  time.Time
	EventCount int
	FirstTS    int64 // unix millis of the first event
	LastTS     int64
	Complete   bool // the tail ran until the recording went quiet
}

// Duration is the recorded span between the first and last event.
func (r Recording) Duration() time.Duration {
	return time.Duration(r.LastTS-r.FirstTS) * time.Millisecond
}

const recordingColumns = "session_id, started_at, updated_at, event_count, first_ts, last_ts, complete"

type scanner interface {
	Scan(dest ...any) error
}

func scanRecording(row scanner) (Recording, error) {
	var (
		r                Recording
		started, updated string
		complete         int
	)
	if err := row.Scan(&r.SessionID, &started, &updated, &r.EventCount, &r.FirstTS, &r.LastTS, &complete); err != nil {
		return r, err
	}
	r.StartedAt, _ = time.Parse(timeLayout, started)
	r.UpdatedAt, _ = time.Parse(timeLayout, updated)
	r.Complete = complete != 0
	return r, nil
}

// Get returns the recording of sessionID, or nil if there is none.
func (d *DB) Get(sessionID string) (*Recording, error) {
	r, err := scanRecording(d.db.QueryRow(
		"SELECT "+recordingColumns+" FROM recordings WHERE session_id = ?", sessionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// List returns the most recently updated recordings first.
func (d *DB) List(limit int) ([]Recording, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.db.Query(
		"SELECT "+recordingColumns+" FROM recordings ORDER BY updated_at DESC, session_id LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Recording
	for rows.Next() {
		r, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) Delete(sessionID string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := deleteRecording(tx, sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteRecording(x execer, sessionID string) error {
	if _, err := x.Exec("DELETE FROM events WHERE session_id = ?", sessionID); err != nil {
		return err
	}
	_, err := x.Exec("DELETE FROM recordings WHERE session_id = ?", sessionID)
	return err
}

func (d *DB) RecordingCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM recordings").Scan(&n)
	return n, err
}

func (d *DB) EventCount() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM events").Scan(&n)
	return n, err
}
