package stream

import (
	"errors"
	"fmt"

	"github.com/roach88/cogtask/internal/ui"
)

// Synthetic is a stream source that generates frames instead of decoding a
// file. Every ProcessBus call on a playing handle advances one frame.
//
// Synthetic sources back the synthetic:// resource scheme and tests.
type Synthetic struct {
	Name      string
	Width     int
	Height    int
	Frames    int     // frames until end-of-stream, > 0
	Framerate float64 // 0 for audio-only
	Audio     bool

	// FailAt makes ProcessBus return an error once the position reaches
	// it. Zero disables.
	FailAt int

	// Alloc uploads generated pixels. Nil skips pixel generation and uses
	// the frame position as texture id.
	Alloc ui.TextureAllocator
}

// Clone implements Source.
func (s Synthetic) Clone(slot *FrameSlot, volume float32) (Handle, error) {
	if s.Frames <= 0 {
		return nil, fmt.Errorf("synthetic stream %q: frames must be positive, got %d", s.Name, s.Frames)
	}
	if s.Framerate > 0 && (s.Width <= 0 || s.Height <= 0) {
		return nil, fmt.Errorf("synthetic stream %q: invalid size %dx%d", s.Name, s.Width, s.Height)
	}
	if volume < 0 || volume > 1 {
		return nil, fmt.Errorf("synthetic stream %q: volume %v out of range", s.Name, volume)
	}

	h := &SyntheticHandle{src: s, slot: slot, volume: volume}
	h.publish()
	return h, nil
}

// SyntheticHandle is a playable synthetic stream.
type SyntheticHandle struct {
	src    Synthetic
	slot   *FrameSlot
	volume float32

	pos     int
	playing bool
	eos     bool
	closed  bool

	// Restarts counts loop restarts.
	Restarts int
}

var errClosed = errors.New("stream handle closed")

func (h *SyntheticHandle) Start() error {
	if h.closed {
		return errClosed
	}
	h.playing = true
	return nil
}

func (h *SyntheticHandle) Pause() error {
	if h.closed {
		return errClosed
	}
	h.playing = false
	return nil
}

func (h *SyntheticHandle) Restart() error {
	if h.closed {
		return errClosed
	}
	h.pos = 0
	h.eos = false
	h.playing = true
	h.Restarts++
	h.publish()
	return nil
}

func (h *SyntheticHandle) ProcessBus(looping bool) (bool, error) {
	if h.closed {
		return false, errClosed
	}
	if !h.playing || h.eos {
		return h.eos, nil
	}

	h.pos++
	if h.src.FailAt > 0 && h.pos >= h.src.FailAt {
		return false, fmt.Errorf("synthetic stream %q: decode error at frame %d", h.src.Name, h.pos)
	}
	if h.pos < h.src.Frames {
		h.publish()
		return false, nil
	}

	if looping {
		return false, h.Restart()
	}
	h.eos = true
	h.playing = false
	return true, nil
}

func (h *SyntheticHandle) EOS() bool { return h.eos }

func (h *SyntheticHandle) Framerate() float64 { return h.src.Framerate }

func (h *SyntheticHandle) HasVideo() bool { return h.src.Framerate > 0 }

func (h *SyntheticHandle) HasAudio() bool { return h.src.Audio }

func (h *SyntheticHandle) Close() error {
	h.closed = true
	h.playing = false
	return nil
}

// Position returns the current frame index.
func (h *SyntheticHandle) Position() int { return h.pos }

func (h *SyntheticHandle) publish() {
	if !h.HasVideo() || h.slot == nil {
		return
	}

	var rgba []byte
	if h.src.Alloc != nil {
		rgba = h.pixels()
	}
	tex := UploadFrame(h.src.Alloc, h.src.Name, h.pos, h.src.Width, h.src.Height, rgba)
	h.slot.Store(ui.Frame{
		Texture: tex,
		Width:   float32(h.src.Width),
		Height:  float32(h.src.Height),
	})
}

// pixels renders a horizontal gradient that shifts with the position.
func (h *SyntheticHandle) pixels() []byte {
	w, ht := h.src.Width, h.src.Height
	buf := make([]byte, w*ht*4)
	shift := h.pos * 255 / h.src.Frames
	for y := 0; y < ht; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			buf[i] = byte((x*255/w + shift) % 256)
			buf[i+1] = byte(y * 255 / ht)
			buf[i+2] = byte(shift)
			buf[i+3] = 0xff
		}
	}
	return buf
}
