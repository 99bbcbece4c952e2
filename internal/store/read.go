package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrRunNotFound is returned when a run id has no record.
var ErrRunNotFound = errors.New("run not found")

// Entry is one stored log entry.
type Entry struct {
	Seq   int64
	Time  time.Time
	Group string
	Field string
	Value any    // decoded CBOR
	Raw   []byte // CBOR as stored
}

// Diag returns the stored value in CBOR diagnostic notation.
func (e Entry) Diag() string {
	return diagnose(e.Raw)
}

// Runs returns every run, oldest first.
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task, block, started_at, finished_at, status
		FROM runs
		ORDER BY started_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns the run with the given id, or ErrRunNotFound.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, task, block, started_at, finished_at, status
		FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %q: %w", id, ErrRunNotFound)
	}
	return run, err
}

// LatestRun returns the most recently started run, or ErrRunNotFound when
// the store is empty.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, task, block, started_at, finished_at, status
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT 1
	`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run      Run
		started  int64
		finished sql.NullInt64
	)
	if err := sc.Scan(&run.ID, &run.Task, &run.Block, &started, &finished, &run.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = time.Unix(0, started).UTC()
	if finished.Valid {
		run.FinishedAt = time.Unix(0, finished.Int64).UTC()
	}
	return run, nil
}

// Entries returns the entries of a run ordered by seq. A non-empty group
// restricts the result to that group.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) Entries(ctx context.Context, runID, group string) ([]Entry, error) {
	query := `
		SELECT seq, ts, grp, field, value
		FROM entries
		WHERE run_id = ?
		ORDER BY seq ASC
	`
	args := []any{runID}
	if group != "" {
		query = `
			SELECT seq, ts, grp, field, value
			FROM entries
			WHERE run_id = ? AND grp = ?
			ORDER BY seq ASC
		`
		args = append(args, normalizeName(group))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e  Entry
			ts int64
		)
		if err := rows.Scan(&e.Seq, &ts, &e.Group, &e.Field, &e.Raw); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Time = time.Unix(0, ts).UTC()
		if e.Value, err = unmarshalValue(e.Raw); err != nil {
			return nil, fmt.Errorf("entry %d: %w", e.Seq, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}
