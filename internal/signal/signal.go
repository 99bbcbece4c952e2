// Package signal defines the fixed signal vocabulary exchanged between the
// scheduler, its two processors and the owning server.
//
// Three queues exist per block:
//
//	sync   UI tick / actions  → sync processor   (UpdateGraph, KeyPress, Finish)
//	async  anyone             → async processor  (LogAppend, LogExtend, Finish)
//	server core               → server           (BlockFinished, ..., LoadComplete)
//
// Signals are immutable once pushed. Ordering holds per producer within a
// queue; nothing is guaranteed across queues.
package signal

import (
	"time"

	"github.com/roach88/cogtask/internal/queue"
	"github.com/roach88/cogtask/internal/ui"
)

// SyncKind distinguishes sync signal variants.
type SyncKind int

const (
	// UpdateGraph asks the sync processor to re-evaluate tree completion.
	UpdateGraph SyncKind = iota + 1
	// KeyPress carries an edge-triggered key set.
	KeyPress
	// SyncFinish is terminal.
	SyncFinish
)

// String returns the variant name.
func (k SyncKind) String() string {
	switch k {
	case UpdateGraph:
		return "update_graph"
	case KeyPress:
		return "key_press"
	case SyncFinish:
		return "finish"
	default:
		return "unknown"
	}
}

// Sync is a signal for the sync processor.
type Sync struct {
	Kind SyncKind
	Time time.Time // KeyPress only
	Keys []ui.Key  // KeyPress only
}

// NewUpdateGraph returns an UpdateGraph signal.
func NewUpdateGraph() Sync { return Sync{Kind: UpdateGraph} }

// NewKeyPress returns a KeyPress signal.
func NewKeyPress(t time.Time, keys []ui.Key) Sync {
	return Sync{Kind: KeyPress, Time: t, Keys: keys}
}

// NewSyncFinish returns the terminal sync signal.
func NewSyncFinish() Sync { return Sync{Kind: SyncFinish} }

// AsyncKind distinguishes async signal variants.
type AsyncKind int

const (
	// LogAppend carries one structured log entry.
	LogAppend AsyncKind = iota + 1
	// LogExtend carries a batch of entries sharing one timestamp.
	LogExtend
	// AsyncFinish is terminal: flush and stop.
	AsyncFinish
)

// String returns the variant name.
func (k AsyncKind) String() string {
	switch k {
	case LogAppend:
		return "log_append"
	case LogExtend:
		return "log_extend"
	case AsyncFinish:
		return "finish"
	default:
		return "unknown"
	}
}

// Entry is one (field, value) log pair. Value must be CBOR-encodable.
type Entry struct {
	Field string
	Value any
}

// Async is a signal for the async processor.
type Async struct {
	Kind    AsyncKind
	Time    time.Time // stamped by the producer at push
	Group   string
	Entries []Entry // exactly one for LogAppend
}

// NewLogAppend returns a LogAppend signal stamped with t.
func NewLogAppend(t time.Time, group, field string, value any) Async {
	return Async{Kind: LogAppend, Time: t, Group: group, Entries: []Entry{{Field: field, Value: value}}}
}

// NewLogExtend returns a LogExtend signal stamped with t.
func NewLogExtend(t time.Time, group string, entries []Entry) Async {
	return Async{Kind: LogExtend, Time: t, Group: group, Entries: entries}
}

// NewAsyncFinish returns the terminal async signal.
func NewAsyncFinish() Async { return Async{Kind: AsyncFinish} }

// ServerKind distinguishes server callback variants.
type ServerKind int

const (
	BlockFinished ServerKind = iota + 1
	BlockInterrupted
	BlockCrashed
	SyncComplete
	AsyncComplete
	LoadComplete
)

// String returns the variant name.
func (k ServerKind) String() string {
	switch k {
	case BlockFinished:
		return "block_finished"
	case BlockInterrupted:
		return "block_interrupted"
	case BlockCrashed:
		return "block_crashed"
	case SyncComplete:
		return "sync_complete"
	case AsyncComplete:
		return "async_complete"
	case LoadComplete:
		return "load_complete"
	default:
		return "unknown"
	}
}

// Server is a one-directional notification from the core to the server.
// Err is set for BlockCrashed, and for SyncComplete/AsyncComplete when the
// processor ended with a failure.
type Server struct {
	Kind ServerKind
	Err  error
}

// Writer aliases for the three queues.
type (
	SyncWriter   = queue.Writer[Sync]
	AsyncWriter  = queue.Writer[Async]
	ServerWriter = queue.Writer[Server]
)

// Log pushes a LogAppend stamped with the current time.
func Log(w AsyncWriter, group, field string, value any) bool {
	return w.Push(NewLogAppend(time.Now(), group, field, value))
}

// MainEvent is the log group for block lifecycle events.
const MainEvent = "mainevent"
