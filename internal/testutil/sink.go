package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/roach88/cogtask/internal/signal"
)

// LogRecord is one entry received by a MemorySink.
type LogRecord struct {
	Time  time.Time
	Group string
	Field string
	Value any
}

// MemorySink is an in-memory persistence sink for scheduler tests.
//
// Thread-safety: safe for concurrent use.
type MemorySink struct {
	mu      sync.Mutex
	records []LogRecord
	closed  bool

	// FailWrites, when set, is returned by every Write.
	FailWrites error
	// FailClose, when set, is returned by Close.
	FailClose error
}

// NewMemorySink returns an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

var errSinkClosed = errors.New("memory sink closed")

// Write records entries. Implements scheduler.Sink.
func (m *MemorySink) Write(_ context.Context, t time.Time, group string, entries []signal.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errSinkClosed
	}
	if m.FailWrites != nil {
		return m.FailWrites
	}
	for _, e := range entries {
		m.records = append(m.records, LogRecord{Time: t, Group: group, Field: e.Field, Value: e.Value})
	}
	return nil
}

// Close marks the sink closed. Implements scheduler.Sink.
func (m *MemorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.FailClose
}

// Closed reports whether Close was called.
func (m *MemorySink) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Records returns a copy of everything written so far.
func (m *MemorySink) Records() []LogRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LogRecord(nil), m.records...)
}

// Find returns the records logged under group with the given field.
func (m *MemorySink) Find(group, field string) []LogRecord {
	var out []LogRecord
	for _, r := range m.Records() {
		if r.Group == group && r.Field == field {
			out = append(out, r)
		}
	}
	return out
}
