// Package action defines the schedulable units of an experiment block.
//
// An Action is the static, YAML-decoded description of one unit. Building
// it yields a Stateful, the runtime instance the sync processor drives:
//
//	Start ──► Update* ──► IsOver? ──► Stop ──► Close
//	   └────── Show (UI tick, VISUAL only) ──────┘
//
// The set of stateful kinds is closed. Code that must treat every kind
// (Active, Describe) switches over the concrete types exhaustively and
// reports an internal error for anything else.
package action

import (
	"errors"
	"strings"
	"time"

	"github.com/roach88/cogtask/internal/config"
	"github.com/roach88/cogtask/internal/resource"
	"github.com/roach88/cogtask/internal/signal"
	"github.com/roach88/cogtask/internal/taskerr"
	"github.com/roach88/cogtask/internal/ui"
)

// Props is the capability bitset of a stateful action.
type Props uint8

const (
	// Visual actions are rendered every tick.
	Visual Props = 1 << iota
	// Finite actions end on their own.
	Finite
	// Animated actions change appearance without input.
	Animated
	// CapKeys actions receive key presses.
	CapKeys
)

const (
	// Default has no capability set.
	Default Props = 0
	// Infinite marks an action that only ends when stopped.
	Infinite = Default
)

// Visual reports whether the VISUAL flag is set.
func (p Props) Visual() bool { return p&Visual != 0 }

// Finite reports whether the FINITE flag is set.
func (p Props) Finite() bool { return p&Finite != 0 }

// Animated reports whether the ANIMATED flag is set.
func (p Props) Animated() bool { return p&Animated != 0 }

// CapKeys reports whether the CAP_KEYS flag is set.
func (p Props) CapKeys() bool { return p&CapKeys != 0 }

// String lists the set flags, e.g. "VISUAL|FINITE".
func (p Props) String() string {
	var parts []string
	for _, f := range []struct {
		bit  Props
		name string
	}{
		{Visual, "VISUAL"},
		{Finite, "FINITE"},
		{Animated, "ANIMATED"},
		{CapKeys, "CAP_KEYS"},
	} {
		if p&f.bit != 0 {
			parts = append(parts, f.name)
		}
	}
	if len(parts) == 0 {
		return "DEFAULT"
	}
	return strings.Join(parts, "|")
}

// State is the auxiliary run-state shared by the actions of one tree.
// Keys are small integers; values must be CBOR-encodable.
type State map[uint16]any

// EventKind distinguishes events delivered to Update.
type EventKind int

const (
	// EventGraph asks containers to re-evaluate their children.
	EventGraph EventKind = iota + 1
	// EventKeyPress carries newly pressed keys.
	EventKeyPress
)

// Event is delivered to Stateful.Update.
type Event struct {
	Kind EventKind
	Time time.Time
	Keys []ui.Key
}

// Env carries what building a stateful action needs.
type Env struct {
	Resources *resource.Map
	Config    config.Config
	Sync      signal.SyncWriter
	Async     signal.AsyncWriter

	nextID int
}

func (e *Env) id() int {
	id := e.nextID
	e.nextID++
	return id
}

// Action is a static action description.
type Action interface {
	// Kind returns the YAML key naming this action.
	Kind() string

	// Init validates static configuration.
	Init() error

	// Resources lists the resource paths the action binds to.
	Resources() []string

	// Stateful builds the runtime instance. Called by Build only.
	Stateful(env *Env) (Stateful, error)
}

// Build validates a and builds its stateful instance with the next id.
// On error nothing built so far is left running.
func Build(a Action, env *Env) (Stateful, error) {
	if err := a.Init(); err != nil {
		return nil, err
	}
	return a.Stateful(env)
}

// Stateful is a runtime action instance. The set of implementations is
// closed to this package.
//
// All methods except Close are called with the tree mutex held.
type Stateful interface {
	ID() int
	Props() Props

	// IsOver reports whether the action has ended. An error means the
	// action failed while running.
	IsOver() (bool, error)

	Start(sw signal.SyncWriter, aw signal.AsyncWriter, state State) error
	Update(ev Event, sw signal.SyncWriter, aw signal.AsyncWriter, state State) error
	Show(s ui.Surface, sw signal.SyncWriter, aw signal.AsyncWriter, state State) error
	Stop(sw signal.SyncWriter, aw signal.AsyncWriter, state State) error

	// Close releases resources (decode goroutines, timers). Idempotent.
	Close() error

	base() *node
}

// node holds the lifecycle flags common to every stateful action.
type node struct {
	id      int
	started bool
	done    bool
}

func (n *node) ID() int { return n.id }

func (n *node) base() *node { return n }

func (n *node) running() bool { return n.started && !n.done }

// Active returns the running leaves of tree s in depth-first order.
func Active(s Stateful) ([]Stateful, error) {
	var out []Stateful
	err := walkActive(s, &out)
	return out, err
}

func walkActive(s Stateful, out *[]Stateful) error {
	switch a := s.(type) {
	case *SeqState:
		if a.running() && a.cur < len(a.children) {
			return walkActive(a.children[a.cur], out)
		}
	case *ParState:
		if !a.running() {
			return nil
		}
		for _, c := range a.children {
			if err := walkActive(c, out); err != nil {
				return err
			}
		}
	case *NilState, *WaitState, *KeyLoggerState, *CounterState, *StreamState:
		if s.base().running() {
			*out = append(*out, s)
		}
	default:
		return taskerr.New(taskerr.KindInternal, "unknown stateful action %T", s)
	}
	return nil
}

// closeAll closes every action and joins their errors.
func closeAll(actions []Stateful) error {
	var errs []error
	for _, a := range actions {
		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func flowError(id int, err error, op string) error {
	var te *taskerr.Error
	if errors.As(err, &te) {
		return err
	}
	return taskerr.Wrap(taskerr.KindFlow, err, "%s", op).WithAction(id)
}
