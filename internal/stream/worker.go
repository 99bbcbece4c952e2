package stream

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/roach88/cogtask/internal/taskerr"
)

const (
	// audioPeriod is the decode loop period of audio-only streams.
	audioPeriod = 5 * time.Millisecond

	// DefaultJoinTimeout bounds how long Close waits for the decode
	// goroutine before giving up on the process.
	DefaultJoinTimeout = 2 * time.Second
)

// Options configures a Worker.
type Options struct {
	// Looping restarts the stream at its end instead of finishing.
	Looping bool

	// OnEnded runs on the supervising goroutine after the decode goroutine
	// has exited. Media actions use it to push UpdateGraph and request a
	// repaint.
	OnEnded func()

	// Sleep replaces time.Sleep in the decode loop. Tests only.
	Sleep func(time.Duration)

	// JoinTimeout bounds Close's wait for the decode goroutine.
	// Zero means DefaultJoinTimeout.
	JoinTimeout time.Duration

	// Fatal is called when Close cannot join the decode goroutine.
	// Defaults to logging and exiting the process.
	Fatal func(error)
}

// Status is a snapshot of a worker's done cell.
type Status struct {
	Ended bool
	Err   error
}

// doneCell is the shared completion record of a worker.
type doneCell struct {
	mu     sync.Mutex
	ended  bool
	err    error
	writes int
}

func (d *doneCell) get() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Status{Ended: d.ended, Err: d.err}
}

// finish records a natural end, unless the cell already holds an outcome.
func (d *doneCell) finish() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ended || d.err != nil {
		return
	}
	d.ended = true
	d.writes++
}

// fail records err, unless the cell already holds an outcome.
func (d *doneCell) fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ended || d.err != nil {
		return
	}
	d.err = err
	d.writes++
}

// force marks the cell ended and returns any error it held before.
func (d *doneCell) force() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	prev := d.err
	d.ended = true
	d.err = nil
	d.writes++
	return prev
}

// Worker plays one stream Handle on a dedicated decode goroutine.
type Worker struct {
	handle    Handle
	looping   bool
	hasVideo  bool
	framerate float64
	period    time.Duration

	onEnded     func()
	sleep       func(time.Duration)
	joinTimeout time.Duration
	fatal       func(error)

	done doneCell

	// start is buffered; one send releases the decode loop, closing it
	// asks the loop to pause and exit.
	start   chan struct{}
	stopped chan struct{}
	exited  chan struct{}
	result  error // decode goroutine return value, valid once exited is closed

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewWorker spawns the decode goroutine for h, parked until Start.
// Metadata is read from h once, here.
func NewWorker(h Handle, opts Options) *Worker {
	w := &Worker{
		handle:      h,
		looping:     opts.Looping,
		hasVideo:    h.HasVideo(),
		framerate:   h.Framerate(),
		onEnded:     opts.OnEnded,
		sleep:       opts.Sleep,
		joinTimeout: opts.JoinTimeout,
		fatal:       opts.Fatal,
		start:       make(chan struct{}, 1),
		stopped:     make(chan struct{}),
		exited:      make(chan struct{}),
	}
	if w.sleep == nil {
		w.sleep = time.Sleep
	}
	if w.joinTimeout <= 0 {
		w.joinTimeout = DefaultJoinTimeout
	}
	if w.fatal == nil {
		w.fatal = exitProcess
	}
	w.period = loopPeriod(w.hasVideo, w.framerate)

	go w.decode()
	return w
}

// loopPeriod is half a frame interval for video, audioPeriod otherwise.
func loopPeriod(hasVideo bool, framerate float64) time.Duration {
	if !hasVideo || framerate <= 0 {
		return audioPeriod
	}
	return time.Duration(float64(time.Second) / (2 * framerate))
}

func exitProcess(err error) {
	slog.Error("stream worker unrecoverable", "error", err)
	os.Exit(2)
}

// Period returns the decode loop period.
func (w *Worker) Period() time.Duration { return w.period }

// HasVideo reports whether the stream has a video channel.
func (w *Worker) HasVideo() bool { return w.hasVideo }

// Framerate returns the stream's frames per second.
func (w *Worker) Framerate() float64 { return w.framerate }

// Status returns the current done cell.
func (w *Worker) Status() Status { return w.done.get() }

// Exited is closed once the decode goroutine has returned.
func (w *Worker) Exited() <-chan struct{} { return w.exited }

// doneWrites returns how many times the done cell was written.
func (w *Worker) doneWrites() int {
	w.done.mu.Lock()
	defer w.done.mu.Unlock()
	return w.done.writes
}

// Start releases the decode loop and spawns the supervising goroutine.
// A worker can be started once.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started || w.closed {
		return taskerr.New(taskerr.KindInternal, "stream worker start link already taken")
	}
	w.started = true
	w.start <- struct{}{}

	go w.supervise()
	return nil
}

// Stop forces the done cell to ended. The decode loop notices on its next
// iteration. Returns the error the cell held before, if any.
func (w *Worker) Stop() error {
	return w.done.force()
}

// Close stops the worker and joins its decode goroutine. Idempotent.
// If the goroutine does not exit within the join timeout, Fatal is called.
func (w *Worker) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	prev := w.Stop()
	close(w.start)
	w.mu.Unlock()

	select {
	case <-w.exited:
	case <-time.After(w.joinTimeout):
		w.fatal(taskerr.New(taskerr.KindInternal, "stream decode goroutine did not exit within %s", w.joinTimeout))
		return prev
	}

	if err := w.handle.Close(); err != nil && prev == nil {
		prev = taskerr.Wrap(taskerr.KindMedia, err, "close stream")
	}
	return prev
}

func (w *Worker) decode() {
	defer close(w.exited)
	defer func() {
		if r := recover(); r != nil {
			w.result = taskerr.New(taskerr.KindInternal, "stream decode goroutine panicked: %v", r)
		}
	}()
	defer close(w.stopped)

	w.result = w.run()
}

func (w *Worker) run() error {
	if _, ok := <-w.start; !ok {
		return nil
	}
	if err := w.handle.Start(); err != nil {
		return taskerr.Wrap(taskerr.KindMedia, err, "start stream")
	}

	for {
		select {
		case _, ok := <-w.start:
			if !ok {
				if err := w.handle.Pause(); err != nil {
					return taskerr.Wrap(taskerr.KindMedia, err, "pause stream")
				}
				return nil
			}
		default:
		}

		w.sleep(w.period)

		if w.step() {
			return nil
		}
	}
}

// step advances the handle once and reports whether the loop must exit.
func (w *Worker) step() bool {
	if w.done.get().Ended {
		return true
	}
	if w.handle.EOS() {
		w.done.finish()
		return true
	}

	ended, err := w.handle.ProcessBus(w.looping)
	switch {
	case err != nil:
		w.done.fail(taskerr.Wrap(taskerr.KindMedia, err, "decode stream"))
		return true
	case ended:
		w.done.finish()
		return true
	}
	return false
}

func (w *Worker) supervise() {
	<-w.stopped
	<-w.exited

	if w.result != nil {
		w.done.fail(w.result)
	}
	if w.onEnded != nil {
		w.onEnded()
	}
}

// String is for logs.
func (w *Worker) String() string {
	st := w.Status()
	return fmt.Sprintf("stream(video=%t fps=%.2f ended=%t err=%v)", w.hasVideo, w.framerate, st.Ended, st.Err)
}
