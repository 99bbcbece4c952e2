// Package server runs the blocks of a task one at a time.
//
// The server owns the callback queue every block reports into. Starting a
// block preloads its resources on a background goroutine; LoadComplete
// then builds the action tree and a scheduler. The block's outcome is
// settled once both processors have reported completion:
//
//	StartBlock ─► preload ─► LoadComplete ─► scheduler ─► Finished/Interrupted/Crashed
//	                   └─► BlockCrashed                        │
//	                                              Close ─► SyncComplete + AsyncComplete
//
// Show must be called from the UI thread; it drains callbacks without
// blocking and then ticks the active scheduler.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/cogtask/internal/action"
	"github.com/roach88/cogtask/internal/queue"
	"github.com/roach88/cogtask/internal/resource"
	"github.com/roach88/cogtask/internal/scheduler"
	"github.com/roach88/cogtask/internal/signal"
	"github.com/roach88/cogtask/internal/task"
	"github.com/roach88/cogtask/internal/taskerr"
	"github.com/roach88/cogtask/internal/ui"
)

// Page is what the front-end should show.
type Page int

const (
	// PageSelection lists the blocks.
	PageSelection Page = iota
	// PageLoading is shown while resources preload.
	PageLoading
	// PageBlock is shown while a scheduler runs.
	PageBlock
)

// Options configures a Server.
type Options struct {
	Task      *task.Task
	Resources *resource.Map
	Textures  ui.TextureAllocator
	Logs      Logs
	IDs       scheduler.RunIDGenerator
	Now       func() time.Time
	Context   context.Context
}

// Server runs the blocks of one task.
type Server struct {
	task *task.Task
	res  *resource.Map
	tex  ui.TextureAllocator
	logs Logs
	ids  scheduler.RunIDGenerator
	now  func() time.Time
	ctx  context.Context

	callbacks *queue.Reader[signal.Server]
	progress  []Progress
	runs      []string

	page   Page
	active int
	status Progress
	sched  *scheduler.Scheduler
	info   scheduler.Info

	loading      bool
	pendingSync  bool
	pendingAsync bool
}

// New creates a server for opts.Task with every block not yet run.
func New(opts Options) *Server {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ids := opts.IDs
	if ids == nil {
		ids = scheduler.UUIDv7Generator{}
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	res := opts.Resources
	if res == nil {
		res = resource.NewMap(opts.Task.Dir())
	}

	return &Server{
		task:      opts.Task,
		res:       res,
		tex:       opts.Textures,
		logs:      opts.Logs,
		ids:       ids,
		now:       now,
		ctx:       ctx,
		callbacks: queue.New[signal.Server](),
		progress:  make([]Progress, len(opts.Task.Blocks)),
		runs:      make([]string, len(opts.Task.Blocks)),
		active:    -1,
	}
}

// Task returns the task being run.
func (s *Server) Task() *task.Task { return s.task }

// Page returns the page the front-end should show.
func (s *Server) Page() Page { return s.page }

// Active returns the index of the running block, or -1.
func (s *Server) Active() int { return s.active }

// Progress returns the outcome of block i.
func (s *Server) Progress(i int) Progress { return s.progress[i] }

// LastRun returns the run id of the latest run of block i, or "".
func (s *Server) LastRun(i int) string { return s.runs[i] }

// RunID returns the id of the running block's run, or "".
func (s *Server) RunID() string {
	if s.active < 0 {
		return ""
	}
	return s.info.RunID
}

// Busy reports whether a block is loading, running or tearing down.
func (s *Server) Busy() bool { return s.active >= 0 }

// StartBlock begins preloading block i. The block starts on the Show call
// that sees LoadComplete.
func (s *Server) StartBlock(i int) error {
	if s.Busy() {
		return fmt.Errorf("block %q is still active", s.task.Block(s.active).Label())
	}
	if i < 0 || i >= len(s.task.Blocks) {
		return fmt.Errorf("block index %d out of range", i)
	}

	block := s.task.Block(i)
	slog.Info("starting experiment block", "index", i, "block", block.Label())

	s.active = i
	s.status = Progress{}
	s.page = PageLoading
	s.loading = true
	s.info = scheduler.NewInfo(s.ids, s.task.Name, s.task.Version, block.Label(), s.now())
	s.runs[i] = s.info.RunID

	paths := block.Resources()
	res, tex, w := s.res, s.tex, s.callbacks.Writer()
	go func() {
		if err := res.Preload(paths, tex); err != nil {
			w.Push(signal.Server{Kind: signal.BlockCrashed, Err: err})
			return
		}
		w.Push(signal.Server{Kind: signal.LoadComplete})
	}()
	return nil
}

// Show drains pending callbacks and ticks the running scheduler, if any.
func (s *Server) Show(surface ui.Surface) error {
	for {
		sig, ok := s.callbacks.TryPop()
		if !ok {
			break
		}
		s.handle(sig)
	}

	if s.sched == nil {
		return nil
	}
	return s.sched.Show(surface)
}

func (s *Server) handle(sig signal.Server) {
	slog.Debug("server callback", "kind", sig.Kind, "error", sig.Err)

	switch sig.Kind {
	case signal.LoadComplete:
		s.loading = false
		s.launch()
	case signal.BlockFinished:
		s.settle(Progress{Kind: ProgressSuccess})
		s.stop()
	case signal.BlockInterrupted:
		s.settle(Progress{Kind: ProgressInterrupt})
		s.stop()
	case signal.BlockCrashed:
		s.settle(Progress{Kind: ProgressFailure, Err: sig.Err})
		if s.loading {
			s.loading = false
			s.finish()
			return
		}
		s.stop()
	case signal.SyncComplete:
		s.pendingSync = false
		s.cleanup(sig.Err)
	case signal.AsyncComplete:
		s.pendingAsync = false
		s.cleanup(sig.Err)
	}
}

// launch builds the tree and starts the scheduler for the active block.
func (s *Server) launch() {
	// Interrupted while loading.
	if s.status.Done() {
		s.finish()
		return
	}

	block := s.task.Block(s.active)
	cfg := block.ResolvedConfig()

	q := scheduler.NewQueues()
	root, err := action.Build(block.Root(), q.Env(s.res, cfg))
	if err != nil {
		s.settle(Progress{Kind: ProgressFailure, Err: err})
		s.finish()
		return
	}

	sink, err := s.logs.Open(s.ctx, s.info)
	if err != nil {
		_ = root.Close()
		s.settle(Progress{Kind: ProgressFailure, Err: taskerr.Wrap(taskerr.KindInternal, err, "open run log")})
		s.finish()
		return
	}

	s.pendingSync, s.pendingAsync = true, true
	s.sched = scheduler.New(root, q, scheduler.Options{
		Info:    s.info,
		Config:  cfg,
		Sink:    sink,
		Server:  s.callbacks.Writer(),
		Now:     s.now,
		Context: s.ctx,
	})
	s.page = PageBlock
}

// settle records the first outcome of the active block.
func (s *Server) settle(p Progress) {
	if s.status.Done() {
		return
	}
	s.status = p
}

func (s *Server) stop() {
	if s.sched != nil {
		s.sched.Close()
	}
}

// cleanup folds a processor completion into the outcome and finishes the
// block once both processors have reported.
func (s *Server) cleanup(err error) {
	if err != nil {
		slog.Error("block clean-up failed", "error", err)
		switch s.status.Kind {
		case ProgressSuccess, ProgressInterrupt:
			s.status = Progress{Kind: ProgressCleanupError, Err: err}
		case ProgressNone:
			s.status = Progress{Kind: ProgressFailure, Err: err}
		}
	}
	if s.pendingSync || s.pendingAsync {
		return
	}
	s.finish()
}

func (s *Server) finish() {
	i := s.active
	if !s.status.Done() {
		s.status = Progress{Kind: ProgressFailure, Err: taskerr.New(taskerr.KindInternal, "block ended without an outcome")}
	}
	s.progress[i] = s.status
	slog.Info("block ended", "block", s.task.Block(i).Label(), "status", s.status.Status())

	if s.sched != nil && s.logs != nil {
		if err := s.logs.Finish(s.ctx, s.info.RunID, s.status, s.now()); err != nil {
			slog.Error("recording run outcome failed", "run_id", s.info.RunID, "error", err)
		}
	}

	s.sched = nil
	s.active = -1
	s.page = PageSelection
}

// RunBlock starts block i and ticks surface every period until the block
// has an outcome or ctx is done. On cancellation the block is interrupted
// and torn down before returning.
func (s *Server) RunBlock(ctx context.Context, i int, surface ui.Surface, period time.Duration) (Progress, error) {
	if err := s.StartBlock(i); err != nil {
		return Progress{}, err
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	cancelled := false
	for s.Busy() {
		if err := s.Show(surface); err != nil {
			slog.Warn("render error", "error", err)
		}
		if !s.Busy() {
			break
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			if !cancelled {
				cancelled = true
				s.callbacks.Writer().Push(signal.Server{Kind: signal.BlockInterrupted})
			}
			<-ticker.C
		}
	}
	return s.progress[i], nil
}

// Close releases the callback queue. Any running block is torn down first.
func (s *Server) Close() {
	if s.sched != nil {
		s.sched.Close()
		<-s.sched.Done()
	}
	s.callbacks.Close()
}
