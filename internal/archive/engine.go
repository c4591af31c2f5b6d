package archive

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/Zuo-Peng/vmon/internal/model"
	"github.com/Zuo-Peng/vmon/internal/replay"
)

// ChunkSize is how many stored events ReplayChunk serves per chunk.
const ChunkSize = 200

// Factory returns a replay engine factory that records into the archive.
// Recording a session again replaces its previous recording. The reset and
// the initial events are written in one transaction; on failure the
// previous recording is left as it was.
func (d *DB) Factory() replay.EngineFactory {
	return func(sessionID string, initial []model.RecordedEvent) (replay.Engine, error) {
		tx, err := d.db.Begin()
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()

		if err := deleteRecording(tx, sessionID); err != nil {
			return nil, fmt.Errorf("reset recording %s: %w", sessionID, err)
		}
		now := d.now().UTC().Format(timeLayout)
		if _, err := tx.Exec(
			"INSERT INTO recordings (session_id, started_at, updated_at) VALUES (?, ?, ?)",
			sessionID, now, now,
		); err != nil {
			return nil, fmt.Errorf("create recording %s: %w", sessionID, err)
		}
		for i, ev := range initial {
			if err := insertEvent(tx, sessionID, i, ev, now); err != nil {
				return nil, fmt.Errorf("record %s: %w", sessionID, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return &engine{db: d, session: sessionID, seq: len(initial)}, nil
	}
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// insertEvent stores ev as event seq and folds it into the recording's counts.
func insertEvent(x execer, sessionID string, seq int, ev model.RecordedEvent, now string) error {
	if _, err := x.Exec(
		"INSERT INTO events (session_id, seq, type, ts, data) VALUES (?, ?, ?, ?, ?)",
		sessionID, seq, ev.Type, ev.Timestamp, []byte(ev.Data),
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if _, err := x.Exec(`UPDATE recordings SET
		event_count = event_count + 1,
		first_ts = CASE WHEN event_count = 0 THEN ? ELSE first_ts END,
		last_ts = MAX(last_ts, ?),
		updated_at = ?
		WHERE session_id = ?`,
		ev.Timestamp, ev.Timestamp, now, sessionID,
	); err != nil {
		return fmt.Errorf("update recording: %w", err)
	}
	return nil
}

type engine struct {
	db      *DB
	session string

	mu     sync.Mutex
	seq    int
	closed bool
}

func (e *engine) Append(ev model.RecordedEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return fmt.Errorf("recording %s is closed", e.session)
	}

	tx, err := e.db.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertEvent(tx, e.session, e.seq, ev, e.db.now().UTC().Format(timeLayout)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.seq++
	return nil
}

// Close marks the recording complete. Closing twice is a no-op.
func (e *engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	_, err := e.db.db.Exec("UPDATE recordings SET complete = 1 WHERE session_id = ?", e.session)
	return err
}

// Events returns all stored events of a recording in order.
func (d *DB) Events(sessionID string) ([]model.RecordedEvent, error) {
	return d.eventRange(context.Background(), sessionID, 0, -1)
}

func (d *DB) eventRange(ctx context.Context, sessionID string, offset, limit int) ([]model.RecordedEvent, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT type, ts, data FROM events WHERE session_id = ? ORDER BY seq LIMIT ? OFFSET ?",
		sessionID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RecordedEvent
	for rows.Next() {
		var (
			ev   model.RecordedEvent
			data sql.RawBytes
		)
		if err := rows.Scan(&ev.Type, &ev.Timestamp, &data); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			ev.Data = append([]byte(nil), data...)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ReplayChunk serves an archived recording in chunks of ChunkSize, so the
// replay dialog can stream it exactly like a live one.
func (d *DB) ReplayChunk(ctx context.Context, sessionID string, n int) (model.Chunk, error) {
	events, err := d.eventRange(ctx, sessionID, n*ChunkSize, ChunkSize+1)
	if err != nil {
		return model.Chunk{Index: n}, fmt.Errorf("archived chunk %d: %w", n, err)
	}
	chunk := model.Chunk{Index: n}
	if len(events) > ChunkSize {
		chunk.HasMore = true
		events = events[:ChunkSize]
	}
	chunk.Events = events
	return chunk, nil
}
