package stream

import (
	"fmt"
	"sync"

	"github.com/roach88/cogtask/internal/ui"
)

// FrameSlot holds the latest decoded frame of one stream.
//
// Semantics:
//   - Single writer: only the owning decode goroutine (or its sink
//     callback) calls Store.
//   - Overwrite policy: a new frame always replaces the previous one,
//     whether or not it was read. There is no backpressure.
//   - Non-blocking read: TryLoad never waits on the writer. A contended
//     read reports !ok and the caller keeps drawing its previous frame.
//
// The zero value is an empty slot ready for use.
type FrameSlot struct {
	mu     sync.Mutex
	frame  ui.Frame
	filled bool
	unread bool

	stores uint64 // lifetime writes
	drops  uint64 // writes that replaced an unread frame
}

// NewFrameSlot returns an empty slot.
func NewFrameSlot() *FrameSlot {
	return &FrameSlot{}
}

// Store publishes f, replacing any previous frame.
func (s *FrameSlot) Store(f ui.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unread {
		s.drops++
	}
	s.frame = f
	s.filled = true
	s.unread = true
	s.stores++
}

// TryLoad returns the latest frame without blocking.
// ok is false when the slot is empty or the writer holds the lock.
func (s *FrameSlot) TryLoad() (f ui.Frame, ok bool) {
	if !s.mu.TryLock() {
		return ui.Frame{}, false
	}
	defer s.mu.Unlock()

	if !s.filled {
		return ui.Frame{}, false
	}
	s.unread = false
	return s.frame, true
}

// Load returns the latest frame, waiting for the lock if needed.
func (s *FrameSlot) Load() (ui.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.filled {
		return ui.Frame{}, false
	}
	s.unread = false
	return s.frame, true
}

// SlotStats reports write counters of a slot.
type SlotStats struct {
	Stores uint64
	Drops  uint64
}

// Stats returns the slot's write counters.
func (s *FrameSlot) Stats() SlotStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SlotStats{Stores: s.stores, Drops: s.drops}
}

// UploadFrame allocates the texture for frame seq of stream name. With no
// allocator the frame gets a sequence-derived id and nothing is uploaded.
func UploadFrame(alloc ui.TextureAllocator, name string, seq, width, height int, rgba []byte) ui.TextureID {
	if alloc == nil {
		return ui.TextureID(seq + 1)
	}
	return alloc.AllocTexture(fmt.Sprintf("%s#%d", name, seq), width, height, rgba)
}
