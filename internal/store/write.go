package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/cogtask/internal/signal"
)

// Run is one executed block.
type Run struct {
	ID         string
	Task       string
	Block      string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Status     string
}

// BeginRun inserts a run record. Uses ON CONFLICT(id) DO NOTHING so that a
// resumed run keeps its original start time.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, task, block, started_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Task, run.Block, run.StartedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun records the end time and final status of a run.
func (s *Store) FinishRun(ctx context.Context, id, status string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, status = ? WHERE id = ?
	`, at.UnixNano(), status, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %q: %w", id, ErrRunNotFound)
	}
	return nil
}

// Clock is a monotonic logical clock for entry ordering within a run.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// In practice only the async processor calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClockAt creates a clock whose next value is start+1.
// Used to resume appending after the last stored entry.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// ErrLogClosed is returned by writes to a closed RunLog.
var ErrLogClosed = errors.New("run log closed")

// RunLog appends entries for one run. It is the persistence sink driven
// by the async processor.
type RunLog struct {
	db    *sql.DB
	runID string
	clock *Clock

	mu     sync.Mutex
	closed bool
}

// OpenRunLog returns a log appending to run id, which must exist.
// Sequencing resumes after the highest stored seq.
func (s *Store) OpenRunLog(ctx context.Context, runID string) (*RunLog, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("open run log %q: %w", runID, ErrRunNotFound)
	}

	var last int64
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM entries WHERE run_id = ?
	`, runID).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}

	return &RunLog{db: s.db, runID: runID, clock: NewClockAt(last)}, nil
}

// RunID returns the run this log appends to.
func (l *RunLog) RunID() string { return l.runID }

// Write appends entries logged under group at time t, in order, within
// one transaction. Either every entry is stored or none is.
func (l *RunLog) Write(ctx context.Context, t time.Time, group string, entries []signal.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLogClosed
	}
	if len(entries) == 0 {
		return nil
	}

	type row struct {
		field string
		value []byte
	}
	rows := make([]row, len(entries))
	for i, e := range entries {
		data, err := marshalValue(e.Value)
		if err != nil {
			return fmt.Errorf("write %s/%s: %w", group, e.Field, err)
		}
		rows[i] = row{field: normalizeName(e.Field), value: data}
	}
	grp := normalizeName(group)

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write entries: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (run_id, seq, ts, grp, field, value)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write entries: %w", err)
	}
	defer stmt.Close()

	start := l.clock.Current()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, l.runID, l.clock.Next(), t.UnixNano(), grp, r.field, r.value); err != nil {
			l.clock = NewClockAt(start)
			return fmt.Errorf("write %s/%s: %w", grp, r.field, err)
		}
	}

	if err := tx.Commit(); err != nil {
		l.clock = NewClockAt(start)
		return fmt.Errorf("write entries: %w", err)
	}
	return nil
}

// Close stops further writes. It does not close the store.
func (l *RunLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}
