// Package journal persists the phase event stream to SQLite. It is a sink:
// wire it into the fan-out router alongside stdout or webhook delivery.
// Writes are asynchronous so a slow disk never backpressures detection; the
// query side serves session reconstruction and simple analytics.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/typewatch/typewatch/dbopen"
	"github.com/typewatch/typewatch/phase"
)

const schema = `
CREATE TABLE IF NOT EXISTS phase_events (
	id        TEXT PRIMARY KEY,
	page_url  TEXT NOT NULL,
	page_id   TEXT NOT NULL,
	kind      TEXT NOT NULL,
	phase     TEXT NOT NULL,
	length    INTEGER NOT NULL,
	ts        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_phase_events_page_ts ON phase_events(page_id, ts);

CREATE TABLE IF NOT EXISTS pick_events (
	id       TEXT PRIMARY KEY,
	page_id  TEXT NOT NULL,
	kind     TEXT NOT NULL,
	path     TEXT NOT NULL DEFAULT '',
	tag      TEXT NOT NULL DEFAULT '',
	ts       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pick_events_page_ts ON pick_events(page_id, ts);
`

// retention bounds journal growth: rows older than this are swept on open.
const retention = 30 * 24 * time.Hour

// Journal records phase and pick events in SQLite.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger

	queue chan func(context.Context)
	done  chan struct{}
	once  sync.Once
}

// Open creates or opens a journal database at path.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("journal: open failed: %w", err)
	}
	j := &Journal{
		db:     db,
		logger: logger,
		queue:  make(chan func(context.Context), 256),
		done:   make(chan struct{}),
	}
	go j.writer()

	cutoff := time.Now().Add(-retention).UnixMilli()
	if err := j.Prune(context.Background(), cutoff); err != nil {
		logger.Warn("journal: retention sweep failed", "error", err)
	}
	return j, nil
}

// OpenDB wraps an already-open database (tests).
func OpenDB(db *sql.DB, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("journal: apply schema failed: %w", err)
	}
	j := &Journal{
		db:     db,
		logger: logger,
		queue:  make(chan func(context.Context), 256),
		done:   make(chan struct{}),
	}
	go j.writer()
	return j, nil
}

// writer drains the queue until Close. Insert failures are logged, never
// surfaced to the detection path.
func (j *Journal) writer() {
	defer close(j.done)
	ctx := context.Background()
	for fn := range j.queue {
		fn(ctx)
	}
}

func (j *Journal) enqueue(fn func(context.Context)) {
	select {
	case j.queue <- fn:
	default:
		j.logger.Warn("journal: write queue full, event dropped")
	}
}

// SendPhase implements the sink interface. The insert happens on the writer
// goroutine; this never blocks.
func (j *Journal) SendPhase(_ context.Context, ev phase.Event) error {
	j.enqueue(func(ctx context.Context) {
		_, err := dbopen.Exec(ctx, j.db,
			`INSERT OR IGNORE INTO phase_events (id, page_url, page_id, kind, phase, length, ts)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ev.ID, ev.PageURL, ev.PageID, string(ev.Kind), string(ev.Phase), ev.Length, ev.Timestamp)
		if err != nil {
			j.logger.Error("journal: insert phase event failed", "error", err, "id", ev.ID)
		}
	})
	return nil
}

// SendPick implements the sink interface for picker events.
func (j *Journal) SendPick(_ context.Context, ev phase.PickEvent) error {
	j.enqueue(func(ctx context.Context) {
		_, err := dbopen.Exec(ctx, j.db,
			`INSERT OR IGNORE INTO pick_events (id, page_id, kind, path, tag, ts)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			ev.ID, ev.PageID, string(ev.Kind), ev.Path, ev.Tag, ev.Timestamp)
		if err != nil {
			j.logger.Error("journal: insert pick event failed", "error", err, "id", ev.ID)
		}
	})
	return nil
}

// Flush blocks until every write enqueued before the call has been applied.
func (j *Journal) Flush() {
	barrier := make(chan struct{})
	j.queue <- func(context.Context) { close(barrier) }
	<-barrier
}

// Close drains pending writes and closes the database.
func (j *Journal) Close() error {
	j.once.Do(func() { close(j.queue) })
	<-j.done
	return j.db.Close()
}

// Prune deletes events with timestamps before cutoff (epoch milliseconds)
// from both tables in one transaction, so a partial sweep is never visible.
func (j *Journal) Prune(ctx context.Context, cutoff int64) error {
	return dbopen.RunTx(ctx, j.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM phase_events WHERE ts < ?`, cutoff); err != nil {
			return fmt.Errorf("journal: prune phase events: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM pick_events WHERE ts < ?`, cutoff); err != nil {
			return fmt.Errorf("journal: prune pick events: %w", err)
		}
		return nil
	})
}

// Recent returns the most recent phase events for a page, newest first.
func (j *Journal) Recent(ctx context.Context, pageID string, limit int) ([]phase.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, page_url, page_id, kind, phase, length, ts
		 FROM phase_events WHERE page_id = ? ORDER BY ts DESC LIMIT ?`,
		pageID, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query failed: %w", err)
	}
	defer rows.Close()

	var out []phase.Event
	for rows.Next() {
		var ev phase.Event
		var kind, ph string
		if err := rows.Scan(&ev.ID, &ev.PageURL, &ev.PageID, &kind, &ph, &ev.Length, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("journal: scan failed: %w", err)
		}
		ev.Kind = phase.EventKind(kind)
		ev.Phase = phase.Phase(ph)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Sessions aggregates writing bursts per page: count of start events and
// total characters written, derived from stop-event lengths.
type SessionStats struct {
	PageID     string `json:"page_id"`
	Starts     int    `json:"starts"`
	Stops      int    `json:"stops"`
	LastLength int    `json:"last_length"`
}

// Stats summarises journalled activity for one page.
func (j *Journal) Stats(ctx context.Context, pageID string) (*SessionStats, error) {
	s := &SessionStats{PageID: pageID}
	err := j.db.QueryRowContext(ctx,
		`SELECT
			COUNT(CASE WHEN kind = 'start' THEN 1 END),
			COUNT(CASE WHEN kind = 'stop' THEN 1 END),
			COALESCE((SELECT length FROM phase_events WHERE page_id = ? ORDER BY ts DESC LIMIT 1), 0)
		 FROM phase_events WHERE page_id = ?`,
		pageID, pageID).Scan(&s.Starts, &s.Stops, &s.LastLength)
	if err != nil {
		return nil, fmt.Errorf("journal: stats query failed: %w", err)
	}
	return s, nil
}
