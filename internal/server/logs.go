package server

import (
	"context"
	"time"

	"github.com/roach88/cogtask/internal/scheduler"
	"github.com/roach88/cogtask/internal/store"
)

// Logs opens the persistence sink of each run and records its outcome.
type Logs interface {
	Open(ctx context.Context, info scheduler.Info) (scheduler.Sink, error)
	Finish(ctx context.Context, runID string, p Progress, at time.Time) error
}

// StoreLogs persists runs to a SQLite store.
type StoreLogs struct {
	Store *store.Store
}

// Open records the run and returns its log.
func (l StoreLogs) Open(ctx context.Context, info scheduler.Info) (scheduler.Sink, error) {
	run := store.Run{
		ID:        info.RunID,
		Task:      info.Task,
		Block:     info.Block,
		StartedAt: info.Started,
	}
	if err := l.Store.BeginRun(ctx, run); err != nil {
		return nil, err
	}
	log, err := l.Store.OpenRunLog(ctx, info.RunID)
	if err != nil {
		return nil, err
	}
	return log, nil
}

// Finish records the run outcome.
func (l StoreLogs) Finish(ctx context.Context, runID string, p Progress, at time.Time) error {
	return l.Store.FinishRun(ctx, runID, p.Status(), at)
}
