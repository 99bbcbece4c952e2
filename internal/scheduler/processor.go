package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/cogtask/internal/action"
	"github.com/roach88/cogtask/internal/queue"
	"github.com/roach88/cogtask/internal/signal"
)

// Sink is the persistence side of the async processor.
type Sink interface {
	// Write persists entries logged under group at time t, in order.
	Write(ctx context.Context, t time.Time, group string, entries []signal.Entry) error
	// Close flushes and releases the sink.
	Close() error
}

// tree is the action tree and its run-state, guarded by one mutex. The
// mutex is held for exactly one signal or one render pass.
type tree struct {
	mu     sync.Mutex
	root   action.Stateful
	state  action.State
	closed bool
}

// syncProcessor drives the action tree from sync signals. It runs on its
// own goroutine and is the only writer of tree lifecycle state apart from
// the render pass.
type syncProcessor struct {
	tree   *tree
	reader *queue.Reader[signal.Sync]
	sync   signal.SyncWriter
	async  signal.AsyncWriter
	server signal.ServerWriter

	finished bool
	done     chan struct{}
}

func (p *syncProcessor) run() {
	defer close(p.done)
	slog.Info("sync processor starting")

	signal.Log(p.async, signal.MainEvent, "start", "Success")
	if err := p.start(); err != nil {
		p.crash(err)
	}

	for {
		sig, ok := p.reader.Pop()
		if !ok {
			slog.Info("sync processor stopping: queue closed")
			break
		}
		signalsProcessed.WithLabelValues("sync", sig.Kind.String()).Inc()
		if sig.Kind == signal.SyncFinish {
			slog.Info("sync processor stopping: finish")
			break
		}
		if err := p.handle(sig); err != nil {
			p.crash(err)
		}
	}

	p.reader.Close()
	p.tree.mu.Lock()
	p.tree.closed = true
	p.tree.mu.Unlock()

	err := p.tree.root.Close()
	if err != nil {
		slog.Error("closing action tree failed", "error", err)
	}
	p.server.Push(signal.Server{Kind: signal.SyncComplete, Err: err})
}

func (p *syncProcessor) start() error {
	p.tree.mu.Lock()
	defer p.tree.mu.Unlock()
	return p.tree.root.Start(p.sync, p.async, p.tree.state)
}

func (p *syncProcessor) handle(sig signal.Sync) error {
	slog.Debug("processing sync signal", "kind", sig.Kind)

	switch sig.Kind {
	case signal.UpdateGraph:
		return p.updateGraph()
	case signal.KeyPress:
		return p.keyPress(sig)
	default:
		return errors.New("unknown sync signal " + sig.Kind.String())
	}
}

func (p *syncProcessor) updateGraph() error {
	t := p.tree
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.root.Update(action.Event{Kind: action.EventGraph}, p.sync, p.async, t.state); err != nil {
		return err
	}
	over, err := t.root.IsOver()
	if err != nil {
		return err
	}
	if over && !p.finished {
		p.finished = true
		slog.Info("block finished")
		signal.Log(p.async, signal.MainEvent, "finish", "Success")
		p.server.Push(signal.Server{Kind: signal.BlockFinished})
	}
	return nil
}

func (p *syncProcessor) keyPress(sig signal.Sync) error {
	t := p.tree
	t.mu.Lock()
	defer t.mu.Unlock()

	active, err := action.Active(t.root)
	if err != nil {
		return err
	}
	ev := action.Event{Kind: action.EventKeyPress, Time: sig.Time, Keys: sig.Keys}
	for _, a := range active {
		if !a.Props().CapKeys() {
			continue
		}
		if err := a.Update(ev, p.sync, p.async, t.state); err != nil {
			return err
		}
	}
	return nil
}

func (p *syncProcessor) crash(err error) {
	blockCrashes.Inc()
	slog.Error("block crashed", "error", err)
	p.server.Push(signal.Server{Kind: signal.BlockCrashed, Err: err})
}

// asyncProcessor forwards log signals to the sink. It never touches the
// tree.
type asyncProcessor struct {
	ctx    context.Context
	reader *queue.Reader[signal.Async]
	sink   Sink
	server signal.ServerWriter
	done   chan struct{}
}

func (p *asyncProcessor) run() {
	defer close(p.done)
	slog.Info("async processor starting")

	var writeErr error
	for {
		sig, ok := p.reader.Pop()
		if !ok {
			slog.Info("async processor stopping: queue closed")
			break
		}
		signalsProcessed.WithLabelValues("async", sig.Kind.String()).Inc()
		if sig.Kind == signal.AsyncFinish {
			slog.Info("async processor stopping: finish")
			break
		}

		slog.Debug("processing async signal", "kind", sig.Kind, "group", sig.Group)
		if err := p.sink.Write(p.ctx, sig.Time, sig.Group, sig.Entries); err != nil {
			logEntries.WithLabelValues("error").Add(float64(len(sig.Entries)))
			slog.Error("log write failed", "group", sig.Group, "error", err)
			if writeErr == nil {
				writeErr = err
			}
			continue
		}
		logEntries.WithLabelValues("ok").Add(float64(len(sig.Entries)))
	}

	p.reader.Close()
	err := errors.Join(writeErr, p.sink.Close())
	p.server.Push(signal.Server{Kind: signal.AsyncComplete, Err: err})
}
