// Package queue implements the blocking FIFO channel pair used to carry
// signals between the UI tick, the processors and the server.
//
// A queue has exactly one Reader, which owns the consuming side, and any
// number of Writers. Writers are plain values: copying one clones it, and
// every copy may be used from any goroutine, including from inside a
// handler that is itself draining the same queue.
//
// The queue is unbounded so that a handler can push follow-up signals
// (re-entrant pushes) without ever blocking on its own consumer.
package queue

import "sync"

// queue is the shared state behind a Reader and its Writers.
type queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	signal chan struct{} // buffered, size 1; closed on Close
}

// Reader is the exclusive consuming side of a queue.
// Pop, TryPop and Close must be called from a single goroutine.
type Reader[T any] struct {
	q *queue[T]
}

// Writer is a cloneable producing handle for a queue.
// The zero Writer is not usable; obtain one from Reader.Writer.
type Writer[T any] struct {
	q *queue[T]
}

// New creates an empty queue and returns its reader.
func New[T any]() *Reader[T] {
	return &Reader[T]{
		q: &queue[T]{
			items:  make([]T, 0, 64),
			signal: make(chan struct{}, 1),
		},
	}
}

// Writer returns a new producing handle bound to this queue.
func (r *Reader[T]) Writer() Writer[T] {
	return Writer[T]{q: r.q}
}

// Push appends v to the back of the queue.
// Never blocks. Returns false if the queue was closed, in which case v is
// dropped.
func (w Writer[T]) Push(v T) bool {
	q := w.q
	if q == nil {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, v)

	// Non-blocking: the 1-slot buffer coalesces wakeups.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// Valid reports whether the writer is bound to a queue.
func (w Writer[T]) Valid() bool {
	return w.q != nil
}

// Pop removes and returns the front value, blocking until one is
// available. Returns (zero, false) once the queue is closed and empty.
func (r *Reader[T]) Pop() (T, bool) {
	for {
		if v, ok := r.TryPop(); ok {
			return v, true
		}

		r.q.mu.Lock()
		if r.q.closed && len(r.q.items) == 0 {
			r.q.mu.Unlock()
			var zero T
			return zero, false
		}
		r.q.mu.Unlock()

		<-r.q.signal
	}
}

// TryPop removes and returns the front value without blocking.
// Returns (zero, false) if the queue is empty.
func (r *Reader[T]) TryPop() (T, bool) {
	q := r.q
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	v := q.items[0]
	// Clear the slot so the backing array does not pin popped values.
	q.items[0] = zero

	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}

	return v, true
}

// Wait returns a channel that fires when values may be available.
// The channel is closed once the queue is closed.
func (r *Reader[T]) Wait() <-chan struct{} {
	return r.q.signal
}

// Len returns the number of values waiting in the queue.
func (r *Reader[T]) Len() int {
	r.q.mu.Lock()
	defer r.q.mu.Unlock()
	return len(r.q.items)
}

// Close tears the queue down: later pushes fail, and Pop returns false
// once the values already queued have been drained.
// Idempotent.
func (r *Reader[T]) Close() {
	q := r.q
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// Closed reports whether Close has been called.
func (r *Reader[T]) Closed() bool {
	r.q.mu.Lock()
	defer r.q.mu.Unlock()
	return r.q.closed
}
