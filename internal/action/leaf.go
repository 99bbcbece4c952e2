package action

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/roach88/cogtask/internal/signal"
	"github.com/roach88/cogtask/internal/taskerr"
	"github.com/roach88/cogtask/internal/ui"
)

// Nil ends as soon as it starts.
type Nil struct{}

func (Nil) Kind() string        { return "nil" }
func (Nil) Init() error         { return nil }
func (Nil) Resources() []string { return nil }

func (Nil) Stateful(env *Env) (Stateful, error) {
	return &NilState{node: node{id: env.id()}}, nil
}

// NilState is the runtime instance of Nil.
type NilState struct {
	node
}

func (a *NilState) Props() Props          { return Finite }
func (a *NilState) IsOver() (bool, error) { return a.done, nil }

func (a *NilState) Start(sw signal.SyncWriter, _ signal.AsyncWriter, _ State) error {
	a.started = true
	a.done = true
	sw.Push(signal.NewUpdateGraph())
	return nil
}

func (a *NilState) Update(Event, signal.SyncWriter, signal.AsyncWriter, State) error {
	return nil
}

func (a *NilState) Show(ui.Surface, signal.SyncWriter, signal.AsyncWriter, State) error {
	return nil
}

func (a *NilState) Stop(signal.SyncWriter, signal.AsyncWriter, State) error {
	a.done = true
	return nil
}

func (a *NilState) Close() error { return nil }

// Wait ends after a fixed duration.
type Wait struct {
	Duration time.Duration
}

func (Wait) Kind() string        { return "wait" }
func (Wait) Resources() []string { return nil }

func (w Wait) Init() error {
	if w.Duration <= 0 {
		return taskerr.New(taskerr.KindTaskDefinition, "wait duration must be positive, got %s", w.Duration)
	}
	return nil
}

func (w Wait) Stateful(env *Env) (Stateful, error) {
	return &WaitState{node: node{id: env.id()}, duration: w.Duration}, nil
}

// WaitState is the runtime instance of Wait. Its timer fires on its own
// goroutine and pushes UpdateGraph.
type WaitState struct {
	node
	duration time.Duration
	timer    *time.Timer
	expired  atomic.Bool
}

func (a *WaitState) Props() Props { return Finite }

func (a *WaitState) IsOver() (bool, error) {
	return a.done || a.expired.Load(), nil
}

func (a *WaitState) Start(sw signal.SyncWriter, _ signal.AsyncWriter, _ State) error {
	a.started = true
	a.timer = time.AfterFunc(a.duration, func() {
		a.expired.Store(true)
		sw.Push(signal.NewUpdateGraph())
	})
	return nil
}

func (a *WaitState) Update(Event, signal.SyncWriter, signal.AsyncWriter, State) error {
	if a.expired.Load() {
		a.done = true
	}
	return nil
}

func (a *WaitState) Show(ui.Surface, signal.SyncWriter, signal.AsyncWriter, State) error {
	return nil
}

func (a *WaitState) Stop(signal.SyncWriter, signal.AsyncWriter, State) error {
	a.done = true
	if a.timer != nil {
		a.timer.Stop()
	}
	return nil
}

func (a *WaitState) Close() error {
	if a.timer != nil {
		a.timer.Stop()
	}
	return nil
}

// DefaultKeyGroup is the log group of key loggers without one.
const DefaultKeyGroup = "keypress"

// KeyLogger logs every key press under its group until stopped.
type KeyLogger struct {
	Group string `yaml:"group"`
}

func (KeyLogger) Kind() string        { return "key_logger" }
func (KeyLogger) Init() error         { return nil }
func (KeyLogger) Resources() []string { return nil }

func (k KeyLogger) Stateful(env *Env) (Stateful, error) {
	id := env.id()
	if k.Group == "" {
		return nil, taskerr.New(taskerr.KindTaskDefinition, "key_logger group cannot be empty").WithAction(id)
	}
	return &KeyLoggerState{node: node{id: id}, group: k.Group}, nil
}

// KeyLoggerState is the runtime instance of KeyLogger.
type KeyLoggerState struct {
	node
	group string
}

func (a *KeyLoggerState) Props() Props          { return Infinite | CapKeys }
func (a *KeyLoggerState) IsOver() (bool, error) { return a.done, nil }

// Group returns the log group.
func (a *KeyLoggerState) Group() string { return a.group }

func (a *KeyLoggerState) Start(_ signal.SyncWriter, aw signal.AsyncWriter, _ State) error {
	a.started = true
	signal.Log(aw, a.group, "event", "start")
	return nil
}

func (a *KeyLoggerState) Update(ev Event, _ signal.SyncWriter, aw signal.AsyncWriter, _ State) error {
	if ev.Kind != EventKeyPress {
		return nil
	}
	keys := make([]string, len(ev.Keys))
	for i, k := range ev.Keys {
		keys[i] = string(k)
	}
	aw.Push(signal.NewLogAppend(ev.Time, a.group, "key", keys))
	return nil
}

func (a *KeyLoggerState) Show(ui.Surface, signal.SyncWriter, signal.AsyncWriter, State) error {
	return nil
}

func (a *KeyLoggerState) Stop(_ signal.SyncWriter, aw signal.AsyncWriter, _ State) error {
	if a.started && !a.done {
		signal.Log(aw, a.group, "event", "stop")
	}
	a.done = true
	return nil
}

func (a *KeyLoggerState) Close() error { return nil }

// DefaultCounterFrom is the starting count of counters without one.
const DefaultCounterFrom = 3

// Counter counts down one step per key press and ends at zero.
type Counter struct {
	From uint32 `yaml:"from"`
}

func (Counter) Kind() string        { return "counter" }
func (Counter) Init() error         { return nil }
func (Counter) Resources() []string { return nil }

func (c Counter) Stateful(env *Env) (Stateful, error) {
	return &CounterState{
		node:  node{id: env.id(), done: c.From == 0},
		count: c.From,
	}, nil
}

// CounterState is the runtime instance of Counter.
type CounterState struct {
	node
	count uint32
}

func (a *CounterState) Props() Props          { return Visual | Finite | CapKeys }
func (a *CounterState) IsOver() (bool, error) { return a.done, nil }

// Count returns the remaining presses.
func (a *CounterState) Count() uint32 { return a.count }

func (a *CounterState) Start(sw signal.SyncWriter, _ signal.AsyncWriter, _ State) error {
	a.started = true
	if a.done {
		sw.Push(signal.NewUpdateGraph())
	}
	return nil
}

func (a *CounterState) Update(ev Event, sw signal.SyncWriter, _ signal.AsyncWriter, _ State) error {
	if ev.Kind != EventKeyPress || len(ev.Keys) == 0 || a.done {
		return nil
	}
	a.count--
	if a.count == 0 {
		a.done = true
		sw.Push(signal.NewUpdateGraph())
	}
	return nil
}

func (a *CounterState) Show(s ui.Surface, _ signal.SyncWriter, _ signal.AsyncWriter, _ State) error {
	if a.count == 1 {
		s.Text("Press any key 1 more time")
		return nil
	}
	s.Text(fmt.Sprintf("Press any key %d more times", a.count))
	return nil
}

func (a *CounterState) Stop(signal.SyncWriter, signal.AsyncWriter, State) error {
	a.done = true
	return nil
}

func (a *CounterState) Close() error { return nil }
