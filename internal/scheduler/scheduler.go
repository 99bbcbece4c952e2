// Package scheduler runs one block's action tree.
//
// A Scheduler owns three goroutines' worth of work:
//
//	UI tick (Show) ──KeyPress──► sync queue ──► sync processor ──► tree
//	       │                                        │
//	       └──────────── log ──► async queue ──► async processor ──► Sink
//
// The sync processor and the render pass share the tree under one mutex.
// The async processor only ever sees log signals. Both processors report
// to the server queue: BlockFinished, BlockInterrupted, BlockCrashed,
// then SyncComplete and AsyncComplete once each has exited.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/cogtask/internal/action"
	"github.com/roach88/cogtask/internal/config"
	"github.com/roach88/cogtask/internal/queue"
	"github.com/roach88/cogtask/internal/resource"
	"github.com/roach88/cogtask/internal/signal"
	"github.com/roach88/cogtask/internal/ui"
)

// Queues are the two processor queues of one block. They exist before
// the tree is built, since actions push to them from their own
// goroutines.
type Queues struct {
	Sync  *queue.Reader[signal.Sync]
	Async *queue.Reader[signal.Async]
}

// NewQueues creates an empty queue pair.
func NewQueues() Queues {
	return Queues{
		Sync:  queue.New[signal.Sync](),
		Async: queue.New[signal.Async](),
	}
}

// Env returns the build environment for a tree driven by these queues.
func (q Queues) Env(res *resource.Map, cfg config.Config) *action.Env {
	return &action.Env{
		Resources: res,
		Config:    cfg,
		Sync:      q.Sync.Writer(),
		Async:     q.Async.Writer(),
	}
}

// Options configures a Scheduler.
type Options struct {
	Info   Info
	Config config.Config
	Sink   Sink
	Server signal.ServerWriter

	// Now returns the tick time. Defaults to time.Now.
	Now func() time.Time
	// Context is passed to Sink writes. Defaults to context.Background.
	Context context.Context
}

// Scheduler coordinates the UI tick with the two processors of a block.
type Scheduler struct {
	tree   *tree
	sync   signal.SyncWriter
	async  signal.AsyncWriter
	server signal.ServerWriter

	syncDone  chan struct{}
	asyncDone chan struct{}

	cfg config.Config
	now func() time.Time

	// UI thread only.
	held          map[ui.Key]bool
	lastInterrupt time.Time

	closeOnce sync.Once
}

// New spawns the processors for root, logs the run info and config, and
// pushes the initial graph update. root must have been built with
// q.Env.
func New(root action.Stateful, q Queues, opts Options) *Scheduler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	s := &Scheduler{
		tree:      &tree{root: root, state: action.State{}},
		sync:      q.Sync.Writer(),
		async:     q.Async.Writer(),
		server:    opts.Server,
		syncDone:  make(chan struct{}),
		asyncDone: make(chan struct{}),
		cfg:       opts.Config,
		now:       now,
		held:      make(map[ui.Key]bool),
	}

	sp := &syncProcessor{
		tree:   s.tree,
		reader: q.Sync,
		sync:   s.sync,
		async:  s.async,
		server: s.server,
		done:   s.syncDone,
	}
	ap := &asyncProcessor{
		ctx:    ctx,
		reader: q.Async,
		sink:   opts.Sink,
		server: s.server,
		done:   s.asyncDone,
	}
	go sp.run()
	go ap.run()

	s.async.Push(signal.NewLogExtend(now(), signal.MainEvent, []signal.Entry{
		{Field: "info", Value: opts.Info},
		{Field: "config", Value: opts.Config},
	}))
	s.sync.Push(signal.NewUpdateGraph())

	slog.Info("scheduler started", "run_id", opts.Info.RunID, "block", opts.Info.Block)
	return s
}

// Show runs one UI tick against surface. Render errors are logged under
// mainevent/crash and returned; the tick loop should keep going.
func (s *Scheduler) Show(surface ui.Surface) error {
	now := s.now()
	pressed := s.edges(surface.KeysDown())

	if s.interruptGesture(pressed, now) {
		interrupts.Inc()
		slog.Info("block interrupted by user")
		signal.Log(s.async, signal.MainEvent, "interrupt", "user request")
		s.server.Push(signal.Server{Kind: signal.BlockInterrupted})
		surface.RequestRepaint()
		return nil
	}

	if len(pressed) > 0 {
		s.sync.Push(signal.NewKeyPress(now, pressed))
	}

	s.tree.mu.Lock()
	defer s.tree.mu.Unlock()

	if s.tree.closed {
		return nil
	}
	props := s.tree.root.Props()
	if !props.Visual() {
		surface.SetCursorHidden(true)
		return nil
	}
	if err := s.tree.root.Show(surface, s.sync, s.async, s.tree.state); err != nil {
		slog.Error("render failed", "error", err)
		signal.Log(s.async, signal.MainEvent, "crash", err.Error())
		return err
	}
	if props.Animated() {
		surface.RequestRepaint()
	}
	return nil
}

// edges returns the keys held now that were not held on the previous
// tick, sorted.
func (s *Scheduler) edges(down []ui.Key) []ui.Key {
	var pressed []ui.Key
	next := make(map[ui.Key]bool, len(down))
	for _, k := range down {
		if next[k] {
			continue
		}
		next[k] = true
		if !s.held[k] {
			pressed = append(pressed, k)
		}
	}
	s.held = next
	return ui.SortKeys(pressed)
}

// interruptGesture reports whether this tick completes a double press of
// the interrupt key within the configured window.
func (s *Scheduler) interruptGesture(pressed []ui.Key, now time.Time) bool {
	key := ui.Key(s.cfg.InterruptKey)
	hit := false
	for _, k := range pressed {
		if k == key {
			hit = true
			break
		}
	}
	if !hit {
		return false
	}

	if !s.lastInterrupt.IsZero() && now.Sub(s.lastInterrupt) <= s.cfg.InterruptWindow() {
		s.lastInterrupt = time.Time{}
		return true
	}
	s.lastInterrupt = now
	return false
}

// Close tears the block down: it logs mainevent/finish, finishes the sync
// processor and, once that has exited, the async processor. Close does
// not wait; use Done. Idempotent.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		signal.Log(s.async, signal.MainEvent, "finish", "ok")
		s.sync.Push(signal.NewSyncFinish())

		async := s.async
		go func() {
			<-s.syncDone
			async.Push(signal.NewAsyncFinish())
		}()
	})
}

// Done is closed once both processors have exited.
func (s *Scheduler) Done() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		<-s.syncDone
		<-s.asyncDone
		close(done)
	}()
	return done
}
