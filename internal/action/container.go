package action

import (
	"github.com/roach88/cogtask/internal/signal"
	"github.com/roach88/cogtask/internal/taskerr"
	"github.com/roach88/cogtask/internal/ui"
)

// buildChildren builds every child, closing the ones already built if a
// later one fails.
func buildChildren(children []Action, env *Env) ([]Stateful, error) {
	out := make([]Stateful, 0, len(children))
	for _, c := range children {
		s, err := Build(c, env)
		if err != nil {
			_ = closeAll(out)
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func initChildren(children []Action) error {
	for _, c := range children {
		if err := c.Init(); err != nil {
			return err
		}
	}
	return nil
}

func childResources(children []Action) []string {
	var out []string
	seen := make(map[string]bool)
	for _, c := range children {
		for _, r := range c.Resources() {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	return out
}

// stopIfRunning stops a child that was started and has not ended yet.
func stopIfRunning(c Stateful, sw signal.SyncWriter, aw signal.AsyncWriter, state State) error {
	if !c.base().running() {
		return nil
	}
	if err := c.Stop(sw, aw, state); err != nil {
		return flowError(c.ID(), err, "stop")
	}
	return nil
}

// Seq runs its children one after the other.
type Seq struct {
	Children []Action
}

func (Seq) Kind() string { return "seq" }

func (s Seq) Init() error { return initChildren(s.Children) }

func (s Seq) Resources() []string { return childResources(s.Children) }

func (s Seq) Stateful(env *Env) (Stateful, error) {
	id := env.id()
	children, err := buildChildren(s.Children, env)
	if err != nil {
		return nil, err
	}
	return &SeqState{node: node{id: id}, children: children}, nil
}

// SeqState is the runtime instance of Seq.
type SeqState struct {
	node
	children []Stateful
	cur      int
}

// Current returns the running child, or nil once the sequence is over.
func (a *SeqState) Current() Stateful {
	if a.cur < len(a.children) {
		return a.children[a.cur]
	}
	return nil
}

func (a *SeqState) Props() Props {
	if c := a.Current(); c != nil && a.started {
		return c.Props() | Finite
	}
	return Finite
}

func (a *SeqState) IsOver() (bool, error) {
	if a.done {
		return true, nil
	}
	if c := a.Current(); c != nil && a.started {
		if _, err := c.IsOver(); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (a *SeqState) Start(sw signal.SyncWriter, aw signal.AsyncWriter, state State) error {
	a.started = true
	if len(a.children) == 0 {
		a.done = true
		sw.Push(signal.NewUpdateGraph())
		return nil
	}
	if err := a.children[0].Start(sw, aw, state); err != nil {
		return flowError(a.children[0].ID(), err, "start")
	}
	return a.advance(sw, aw, state)
}

// advance moves past every finished child, starting the next one.
func (a *SeqState) advance(sw signal.SyncWriter, aw signal.AsyncWriter, state State) error {
	for a.cur < len(a.children) {
		c := a.children[a.cur]
		over, err := c.IsOver()
		if err != nil {
			return err
		}
		if !over {
			return nil
		}
		if err := stopIfRunning(c, sw, aw, state); err != nil {
			return err
		}

		a.cur++
		if a.cur == len(a.children) {
			a.done = true
			return nil
		}
		next := a.children[a.cur]
		if err := next.Start(sw, aw, state); err != nil {
			return flowError(next.ID(), err, "start")
		}
	}
	return nil
}

func (a *SeqState) Update(ev Event, sw signal.SyncWriter, aw signal.AsyncWriter, state State) error {
	if !a.running() || ev.Kind != EventGraph {
		return nil
	}
	if c := a.Current(); c != nil {
		if err := c.Update(ev, sw, aw, state); err != nil {
			return err
		}
	}
	return a.advance(sw, aw, state)
}

func (a *SeqState) Show(s ui.Surface, sw signal.SyncWriter, aw signal.AsyncWriter, state State) error {
	if c := a.Current(); c != nil && a.running() && c.Props().Visual() {
		return c.Show(s, sw, aw, state)
	}
	return nil
}

func (a *SeqState) Stop(sw signal.SyncWriter, aw signal.AsyncWriter, state State) error {
	var err error
	if c := a.Current(); c != nil && a.started {
		err = stopIfRunning(c, sw, aw, state)
	}
	a.done = true
	return err
}

func (a *SeqState) Close() error { return closeAll(a.children) }

// Par runs its children together. It is over once every finite child is
// over; infinite children are stopped at that point.
type Par struct {
	Children []Action
}

func (Par) Kind() string { return "par" }

func (p Par) Init() error {
	if len(p.Children) == 0 {
		return taskerr.New(taskerr.KindTaskDefinition, "par needs at least one child")
	}
	return initChildren(p.Children)
}

func (p Par) Resources() []string { return childResources(p.Children) }

func (p Par) Stateful(env *Env) (Stateful, error) {
	id := env.id()
	children, err := buildChildren(p.Children, env)
	if err != nil {
		return nil, err
	}
	return &ParState{node: node{id: id}, children: children}, nil
}

// ParState is the runtime instance of Par.
type ParState struct {
	node
	children []Stateful
}

func (a *ParState) Props() Props {
	var p Props
	for _, c := range a.children {
		cp := c.Props()
		p |= cp & Finite
		if !a.started || c.base().running() {
			p |= cp & (Visual | Animated | CapKeys)
		}
	}
	return p
}

func (a *ParState) IsOver() (bool, error) {
	if a.done {
		return true, nil
	}
	for _, c := range a.children {
		if _, err := c.IsOver(); err != nil {
			return false, err
		}
	}
	return false, nil
}

func (a *ParState) Start(sw signal.SyncWriter, aw signal.AsyncWriter, state State) error {
	a.started = true
	for _, c := range a.children {
		if err := c.Start(sw, aw, state); err != nil {
			return flowError(c.ID(), err, "start")
		}
	}
	return a.settle(sw, aw, state)
}

// settle stops finished children and ends the group once every finite
// child is over.
func (a *ParState) settle(sw signal.SyncWriter, aw signal.AsyncWriter, state State) error {
	finite, pending := 0, 0
	for _, c := range a.children {
		over, err := c.IsOver()
		if err != nil {
			return err
		}
		if c.Props().Finite() {
			finite++
			if !over {
				pending++
			}
		}
		if over {
			if err := stopIfRunning(c, sw, aw, state); err != nil {
				return err
			}
		}
	}

	if finite > 0 && pending == 0 {
		return a.Stop(sw, aw, state)
	}
	return nil
}

func (a *ParState) Update(ev Event, sw signal.SyncWriter, aw signal.AsyncWriter, state State) error {
	if !a.running() || ev.Kind != EventGraph {
		return nil
	}
	for _, c := range a.children {
		if !c.base().running() {
			continue
		}
		if err := c.Update(ev, sw, aw, state); err != nil {
			return err
		}
	}
	return a.settle(sw, aw, state)
}

func (a *ParState) Show(s ui.Surface, sw signal.SyncWriter, aw signal.AsyncWriter, state State) error {
	for _, c := range a.children {
		if !c.base().running() || !c.Props().Visual() {
			continue
		}
		if err := c.Show(s, sw, aw, state); err != nil {
			return err
		}
	}
	return nil
}

func (a *ParState) Stop(sw signal.SyncWriter, aw signal.AsyncWriter, state State) error {
	var firstErr error
	for _, c := range a.children {
		if err := stopIfRunning(c, sw, aw, state); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.done = true
	return firstErr
}

func (a *ParState) Close() error { return closeAll(a.children) }
