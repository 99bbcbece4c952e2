package action

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cogtask/internal/config"
	"github.com/roach88/cogtask/internal/queue"
	"github.com/roach88/cogtask/internal/resource"
	"github.com/roach88/cogtask/internal/signal"
	"github.com/roach88/cogtask/internal/taskerr"
	"github.com/roach88/cogtask/internal/testutil"
	"github.com/roach88/cogtask/internal/ui"
)

// harness wires an action tree to real queues.
type harness struct {
	sync  *queue.Reader[signal.Sync]
	async *queue.Reader[signal.Async]
	res   *resource.Map
	state State
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		sync:  queue.New[signal.Sync](),
		async: queue.New[signal.Async](),
		res:   resource.NewMap(""),
		state: State{},
	}
}

func (h *harness) env() *Env {
	return &Env{
		Resources: h.res,
		Config:    config.Default(),
		Sync:      h.sync.Writer(),
		Async:     h.async.Writer(),
	}
}

func (h *harness) build(t *testing.T, a Action) Stateful {
	t.Helper()
	s, err := Build(a, h.env())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func (h *harness) start(t *testing.T, s Stateful) {
	t.Helper()
	require.NoError(t, s.Start(h.sync.Writer(), h.async.Writer(), h.state))
}

func (h *harness) keys(t *testing.T, s Stateful, keys ...ui.Key) {
	t.Helper()
	active, err := Active(s)
	require.NoError(t, err)
	ev := Event{Kind: EventKeyPress, Time: testutil.Epoch, Keys: keys}
	for _, a := range active {
		if a.Props().CapKeys() {
			require.NoError(t, a.Update(ev, h.sync.Writer(), h.async.Writer(), h.state))
		}
	}
}

func (h *harness) graph(t *testing.T, s Stateful) {
	t.Helper()
	require.NoError(t, s.Update(Event{Kind: EventGraph}, h.sync.Writer(), h.async.Writer(), h.state))
}

func (h *harness) drainSync() []signal.Sync {
	var out []signal.Sync
	for {
		v, ok := h.sync.TryPop()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

func (h *harness) drainAsync() []signal.Async {
	var out []signal.Async
	for {
		v, ok := h.async.TryPop()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

func over(t *testing.T, s Stateful) bool {
	t.Helper()
	ok, err := s.IsOver()
	require.NoError(t, err)
	return ok
}

func TestProps_String(t *testing.T) {
	assert.Equal(t, "DEFAULT", Default.String())
	assert.Equal(t, "VISUAL|FINITE|CAP_KEYS", (Visual | Finite | CapKeys).String())
	assert.True(t, (Visual | Animated).Animated())
	assert.False(t, Infinite.Finite())
}

func TestNil_OverOnStart(t *testing.T) {
	h := newHarness(t)
	s := h.build(t, Nil{})

	assert.False(t, over(t, s))
	h.start(t, s)
	assert.True(t, over(t, s))

	sigs := h.drainSync()
	require.Len(t, sigs, 1)
	assert.Equal(t, signal.UpdateGraph, sigs[0].Kind)
}

func TestCounter_CountsDownOnKeys(t *testing.T) {
	h := newHarness(t)
	s := h.build(t, Counter{From: 2})
	h.start(t, s)

	assert.Equal(t, Visual|Finite|CapKeys, s.Props())

	surface := testutil.NewSurface()
	require.NoError(t, s.Show(surface, h.sync.Writer(), h.async.Writer(), h.state))
	assert.Equal(t, []string{"Press any key 2 more times"}, surface.Texts)

	h.keys(t, s, ui.KeySpace)
	assert.False(t, over(t, s))
	assert.Empty(t, h.drainSync())
	assert.Equal(t, uint32(1), s.(*CounterState).Count())

	h.keys(t, s, "A", "B")
	assert.True(t, over(t, s))
	assert.Len(t, h.drainSync(), 1)
	assert.Equal(t, uint32(0), s.(*CounterState).Count())
}

func TestCounter_FromZeroIsOver(t *testing.T) {
	h := newHarness(t)
	s := h.build(t, Counter{From: 0})
	assert.True(t, over(t, s))
}

func TestKeyLogger_LogsLifecycleAndKeys(t *testing.T) {
	h := newHarness(t)
	s := h.build(t, KeyLogger{Group: "answers"})
	assert.Equal(t, "answers", s.(*KeyLoggerState).Group())
	h.start(t, s)

	h.keys(t, s, "A", ui.KeySpace)
	require.NoError(t, s.Stop(h.sync.Writer(), h.async.Writer(), h.state))

	logs := h.drainAsync()
	require.Len(t, logs, 3)

	assert.Equal(t, "answers", logs[0].Group)
	assert.Equal(t, []signal.Entry{{Field: "event", Value: "start"}}, logs[0].Entries)

	assert.Equal(t, testutil.Epoch, logs[1].Time)
	assert.Equal(t, []signal.Entry{{Field: "key", Value: []string{"A", "Space"}}}, logs[1].Entries)

	assert.Equal(t, []signal.Entry{{Field: "event", Value: "stop"}}, logs[2].Entries)
	assert.True(t, over(t, s))
}

func TestKeyLogger_EmptyGroup(t *testing.T) {
	h := newHarness(t)
	_, err := Build(KeyLogger{Group: ""}, h.env())
	require.Error(t, err)
	assert.True(t, taskerr.IsTaskDefinition(err))
}

func TestWait_PushesUpdateGraph(t *testing.T) {
	h := newHarness(t)
	s := h.build(t, Wait{Duration: 5 * time.Millisecond})
	h.start(t, s)

	v, ok := h.sync.Pop()
	require.True(t, ok)
	assert.Equal(t, signal.UpdateGraph, v.Kind)
	assert.True(t, over(t, s))
}

func TestWait_RejectsNonPositive(t *testing.T) {
	h := newHarness(t)
	_, err := Build(Wait{}, h.env())
	assert.True(t, taskerr.IsTaskDefinition(err))
}

func TestSeq_AdvancesThroughChildren(t *testing.T) {
	h := newHarness(t)
	s := h.build(t, Seq{Children: []Action{Nil{}, Counter{From: 1}, Nil{}}})
	h.start(t, s)

	// The leading nil is skipped at start; the counter is now running.
	active, err := Active(s)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.IsType(t, &CounterState{}, active[0])
	assert.True(t, s.Props().Visual())

	h.keys(t, s, ui.KeyEnter)
	h.graph(t, s)

	assert.True(t, over(t, s))
	active, err = Active(s)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestSeq_Empty(t *testing.T) {
	h := newHarness(t)
	s := h.build(t, Seq{})
	h.start(t, s)
	assert.True(t, over(t, s))
}

func TestPar_EndsWithFiniteChildrenAndStopsInfinite(t *testing.T) {
	h := newHarness(t)
	s := h.build(t, Par{Children: []Action{KeyLogger{Group: "keys"}, Counter{From: 1}}})
	h.start(t, s)

	assert.Equal(t, Visual|Finite|CapKeys, s.Props())
	active, err := Active(s)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	h.keys(t, s, "X")
	h.graph(t, s)
	assert.True(t, over(t, s))

	var fields []string
	for _, l := range h.drainAsync() {
		for _, e := range l.Entries {
			fields = append(fields, e.Field+"="+toString(e.Value))
		}
	}
	assert.Equal(t, []string{"event=start", "key=[X]", "event=stop"}, fields)
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []string:
		out := "["
		for i, s := range x {
			if i > 0 {
				out += " "
			}
			out += s
		}
		return out + "]"
	default:
		return "?"
	}
}

func TestPar_Empty(t *testing.T) {
	h := newHarness(t)
	_, err := Build(Par{}, h.env())
	assert.True(t, taskerr.IsTaskDefinition(err))
}

func TestBuild_AssignsDepthFirstIDs(t *testing.T) {
	h := newHarness(t)
	s := h.build(t, Seq{Children: []Action{Nil{}, Par{Children: []Action{Nil{}, Nil{}}}}})

	seq := s.(*SeqState)
	assert.Equal(t, 0, seq.ID())
	assert.Equal(t, 1, seq.children[0].ID())
	par := seq.children[1].(*ParState)
	assert.Equal(t, 2, par.ID())
	assert.Equal(t, 3, par.children[0].ID())
	assert.Equal(t, 4, par.children[1].ID())
}

func TestSpec_DecodeTree(t *testing.T) {
	src := `
seq:
  - key_logger:
  - counter: {from: 5}
  - wait: 1500ms
  - par:
      - stream: {src: "synthetic://4x4?frames=3&fps=30", looping: true}
      - key_logger: {group: answers}
  - nil
`
	var spec Spec
	require.NoError(t, yaml.Unmarshal([]byte(src), &spec))

	want := `seq
  key_logger group=keypress
  counter from=5
  wait 1.5s
  par
    stream src=synthetic://4x4?frames=3&fps=30 looping=true
    key_logger group=answers
  nil
`
	assert.Equal(t, want, Describe(spec.Action))
	assert.Equal(t, []string{"synthetic://4x4?frames=3&fps=30#stream"}, spec.Action.Resources())
}

func TestSpec_DecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown kind", "dance: {}"},
		{"two keys", "{nil: , wait: 1s}"},
		{"unknown field", "counter: {from: 2, to: 5}"},
		{"bad duration", "wait: soon"},
		{"seq needs list", "seq: {a: 1}"},
		{"nil with body", "nil: 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var spec Spec
			err := yaml.Unmarshal([]byte(tt.src), &spec)
			require.Error(t, err)
			assert.True(t, taskerr.IsTaskDefinition(err), "got %v", err)
		})
	}
}
