package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cogtask/internal/action"
	"github.com/roach88/cogtask/internal/config"
	"github.com/roach88/cogtask/internal/queue"
	"github.com/roach88/cogtask/internal/resource"
	"github.com/roach88/cogtask/internal/signal"
	"github.com/roach88/cogtask/internal/stream"
	"github.com/roach88/cogtask/internal/taskerr"
	"github.com/roach88/cogtask/internal/testutil"
	"github.com/roach88/cogtask/internal/ui"
)

type fixture struct {
	q      Queues
	server *queue.Reader[signal.Server]
	sink   *testutil.MemorySink
	clock  *testutil.ManualClock
	sched  *Scheduler
}

func newFixture(t *testing.T, a action.Action, res *resource.Map) *fixture {
	t.Helper()
	return newFixtureWithSink(t, a, res, testutil.NewMemorySink())
}

func newFixtureWithSink(t *testing.T, a action.Action, res *resource.Map, sink *testutil.MemorySink) *fixture {
	t.Helper()
	if res == nil {
		res = resource.NewMap("")
	}
	cfg := config.Default()

	f := &fixture{
		q:      NewQueues(),
		server: queue.New[signal.Server](),
		sink:   sink,
		clock:  testutil.NewManualClock(time.Time{}),
	}
	root, err := action.Build(a, f.q.Env(res, cfg))
	require.NoError(t, err)

	info := NewInfo(testutil.NewFixedRunIDGenerator("run-1"), "demo", "1.0", "block-a", f.clock.Now())
	f.sched = New(root, f.q, Options{
		Info:   info,
		Config: cfg,
		Sink:   sink,
		Server: f.server.Writer(),
		Now:    f.clock.Now,
	})
	t.Cleanup(func() {
		f.sched.Close()
		<-f.sched.Done()
	})
	return f
}

// next pops the next server signal, failing after two seconds.
func (f *fixture) next(t *testing.T) signal.Server {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if v, ok := f.server.TryPop(); ok {
			return v
		}
		select {
		case <-f.server.Wait():
		case <-deadline:
			t.Fatal("timed out waiting for server signal")
		}
	}
}

// await pops server signals until one of kind arrives and returns it
// together with everything popped before it.
func (f *fixture) await(t *testing.T, kind signal.ServerKind) (signal.Server, []signal.Server) {
	t.Helper()
	var seen []signal.Server
	for {
		v := f.next(t)
		if v.Kind == kind {
			return v, seen
		}
		seen = append(seen, v)
	}
}

// closeAndCollect closes the scheduler and returns every server signal up
// to and including both completions.
func (f *fixture) closeAndCollect(t *testing.T) []signal.Server {
	t.Helper()
	f.sched.Close()

	var out []signal.Server
	syncDone, asyncDone := false, false
	for !syncDone || !asyncDone {
		v := f.next(t)
		out = append(out, v)
		switch v.Kind {
		case signal.SyncComplete:
			syncDone = true
		case signal.AsyncComplete:
			asyncDone = true
		}
	}
	<-f.sched.Done()
	return out
}

func count(sigs []signal.Server, kind signal.ServerKind) int {
	n := 0
	for _, s := range sigs {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

func TestScheduler_TrivialTreeFinishesOnce(t *testing.T) {
	f := newFixture(t, action.Nil{}, nil)

	f.await(t, signal.BlockFinished)
	w := f.q.Sync.Writer()
	for i := 0; i < 3; i++ {
		w.Push(signal.NewUpdateGraph())
	}

	rest := f.closeAndCollect(t)
	assert.Zero(t, count(rest, signal.BlockFinished))
	assert.Zero(t, count(rest, signal.BlockCrashed))
	for _, s := range rest {
		assert.NoError(t, s.Err)
	}

	assert.True(t, f.sink.Closed())
	start := f.sink.Find(signal.MainEvent, "start")
	require.Len(t, start, 1)
	assert.Equal(t, "Success", start[0].Value)

	finish := f.sink.Find(signal.MainEvent, "finish")
	require.Len(t, finish, 2)
	assert.Equal(t, "Success", finish[0].Value)
	assert.Equal(t, "ok", finish[1].Value)

	info := f.sink.Find(signal.MainEvent, "info")
	require.Len(t, info, 1)
	got := info[0].Value.(Info)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "block-a", got.Block)
	assert.Equal(t, testutil.Epoch, info[0].Time)

	cfg := f.sink.Find(signal.MainEvent, "config")
	require.Len(t, cfg, 1)
	assert.Equal(t, config.Default(), cfg[0].Value)
}

func TestScheduler_InterruptWithinWindow(t *testing.T) {
	f := newFixture(t, action.KeyLogger{Group: "keys"}, nil)
	surface := testutil.NewSurface()

	require.NoError(t, f.sched.Show(surface.Hold(ui.KeyEscape)))
	f.clock.Advance(100 * time.Millisecond)
	require.NoError(t, f.sched.Show(surface.Hold()))
	f.clock.Advance(100 * time.Millisecond)
	require.NoError(t, f.sched.Show(surface.Hold(ui.KeyEscape)))

	f.await(t, signal.BlockInterrupted)
	assert.Equal(t, 1, surface.Repaints())

	rest := f.closeAndCollect(t)
	assert.Zero(t, count(rest, signal.BlockInterrupted))

	interrupts := f.sink.Find(signal.MainEvent, "interrupt")
	require.Len(t, interrupts, 1)
	assert.Equal(t, "user request", interrupts[0].Value)

	// The interrupting press is not delivered as a key press.
	assert.Len(t, f.sink.Find("keys", "key"), 1)
}

func TestScheduler_InterruptOutsideWindow(t *testing.T) {
	f := newFixture(t, action.KeyLogger{Group: "keys"}, nil)
	surface := testutil.NewSurface()

	require.NoError(t, f.sched.Show(surface.Hold(ui.KeyEscape)))
	f.clock.Advance(200 * time.Millisecond)
	require.NoError(t, f.sched.Show(surface.Hold()))
	f.clock.Advance(200 * time.Millisecond)
	require.NoError(t, f.sched.Show(surface.Hold(ui.KeyEscape)))

	sigs := f.closeAndCollect(t)
	assert.Zero(t, count(sigs, signal.BlockInterrupted))
	assert.Empty(t, f.sink.Find(signal.MainEvent, "interrupt"))
	assert.Len(t, f.sink.Find("keys", "key"), 2)
}

func TestScheduler_HeldKeySendsOneKeyPress(t *testing.T) {
	f := newFixture(t, action.KeyLogger{Group: "keys"}, nil)
	surface := testutil.NewSurface()

	for i := 0; i < 3; i++ {
		require.NoError(t, f.sched.Show(surface.Hold("A")))
		f.clock.Advance(16 * time.Millisecond)
	}

	f.closeAndCollect(t)
	keys := f.sink.Find("keys", "key")
	require.Len(t, keys, 1)
	assert.Equal(t, []string{"A"}, keys[0].Value)
	assert.Equal(t, testutil.Epoch, keys[0].Time)
}

func TestScheduler_KeyPressesAreSortedAndEdgeTriggered(t *testing.T) {
	f := newFixture(t, action.KeyLogger{Group: "keys"}, nil)
	surface := testutil.NewSurface()

	require.NoError(t, f.sched.Show(surface.Hold("B", "A")))
	require.NoError(t, f.sched.Show(surface.Hold("B", "A", "C")))
	require.NoError(t, f.sched.Show(surface.Hold("C")))
	require.NoError(t, f.sched.Show(surface.Hold("A", "C")))

	f.closeAndCollect(t)
	var got [][]string
	for _, r := range f.sink.Find("keys", "key") {
		got = append(got, r.Value.([]string))
	}
	assert.Equal(t, [][]string{{"A", "B"}, {"C"}, {"A"}}, got)
}

func TestScheduler_KeyPressFinishesCounter(t *testing.T) {
	f := newFixture(t, action.Counter{From: 1}, nil)
	surface := testutil.NewSurface()

	require.NoError(t, f.sched.Show(surface))
	assert.Equal(t, []string{"Press any key 1 more time"}, surface.Texts)
	assert.False(t, surface.CursorHidden)

	require.NoError(t, f.sched.Show(surface.Hold(ui.KeySpace)))
	f.await(t, signal.BlockFinished)
}

func TestScheduler_NonVisualRootHidesCursor(t *testing.T) {
	f := newFixture(t, action.KeyLogger{Group: "keys"}, nil)
	surface := testutil.NewSurface()

	require.NoError(t, f.sched.Show(surface))
	assert.True(t, surface.CursorHidden)
	assert.Empty(t, surface.Texts)
}

func TestScheduler_CrashIsReportedAndLoopContinues(t *testing.T) {
	res := resource.NewMap("")
	res.Put("bad"+resource.StreamSuffix, resource.Stream{Source: stream.Synthetic{
		Name: "bad", Width: 2, Height: 2, Frames: 10, Framerate: 200, FailAt: 2,
	}})
	f := newFixture(t, action.Stream{Src: "bad"}, res)

	crash, _ := f.await(t, signal.BlockCrashed)
	assert.True(t, taskerr.IsMedia(crash.Err))

	f.q.Sync.Writer().Push(signal.NewUpdateGraph())
	again, _ := f.await(t, signal.BlockCrashed)
	assert.True(t, taskerr.IsMedia(again.Err))

	sigs := f.closeAndCollect(t)
	assert.Equal(t, 1, count(sigs, signal.SyncComplete))
	assert.Equal(t, 1, count(sigs, signal.AsyncComplete))
	assert.Zero(t, count(sigs, signal.BlockFinished))
}

func TestScheduler_SinkFailureReportedOnAsyncComplete(t *testing.T) {
	sink := testutil.NewMemorySink()
	sink.FailWrites = errors.New("disk full")
	f := newFixtureWithSink(t, action.Nil{}, nil, sink)

	sigs := f.closeAndCollect(t)
	for _, s := range sigs {
		if s.Kind == signal.AsyncComplete {
			assert.ErrorIs(t, s.Err, sink.FailWrites)
		}
		if s.Kind == signal.SyncComplete {
			assert.NoError(t, s.Err)
		}
	}
}

func TestScheduler_CloseIsIdempotent(t *testing.T) {
	f := newFixture(t, action.KeyLogger{Group: "keys"}, nil)

	f.sched.Close()
	sigs := f.closeAndCollect(t)
	assert.Equal(t, 1, count(sigs, signal.SyncComplete))
	assert.Equal(t, 1, count(sigs, signal.AsyncComplete))
	assert.Len(t, f.sink.Find(signal.MainEvent, "finish"), 1)

	// Both queues are torn down once the processors exit.
	assert.False(t, f.q.Sync.Writer().Push(signal.NewUpdateGraph()))
	assert.False(t, f.q.Async.Writer().Push(signal.NewAsyncFinish()))
}

func TestScheduler_ShowAfterTeardownIsNoop(t *testing.T) {
	f := newFixture(t, action.Counter{From: 1}, nil)
	f.closeAndCollect(t)

	surface := testutil.NewSurface()
	require.NoError(t, f.sched.Show(surface))
	assert.Empty(t, surface.Texts)
}

func TestUUIDv7Generator(t *testing.T) {
	gen := UUIDv7Generator{}
	a, err := uuid.Parse(gen.Generate())
	require.NoError(t, err)
	b, err := uuid.Parse(gen.Generate())
	require.NoError(t, err)

	assert.Equal(t, uuid.Version(7), a.Version())
	assert.NotEqual(t, a, b)
}

func TestNewInfo(t *testing.T) {
	info := NewInfo(testutil.NewFixedRunIDGenerator("r"), "task", "2", "block", testutil.Epoch)
	assert.Equal(t, "r", info.RunID)
	assert.Equal(t, "task", info.Task)
	assert.Equal(t, "2", info.TaskVersion)
	assert.Equal(t, testutil.Epoch, info.Started)
	assert.NotEmpty(t, info.Host)
	assert.NotEmpty(t, info.Version)
}
