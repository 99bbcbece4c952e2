package testutil

import (
	"sync"

	"github.com/roach88/cogtask/internal/ui"
)

// Surface is a ui.Surface that records draw calls.
//
// Set the held keys with Hold before each tick. Not safe for concurrent
// use, like the render surfaces it stands in for; Repaints may be read
// from any goroutine.
type Surface struct {
	Keys         []ui.Key
	Texts        []string
	Images       []DrawnImage
	CursorHidden bool

	mu       sync.Mutex
	repaints int
}

// DrawnImage records one Image call.
type DrawnImage struct {
	Frame ui.Frame
	Scale float32
}

// NewSurface returns a surface with no keys held.
func NewSurface() *Surface {
	return &Surface{}
}

// Hold sets the keys held down for the next tick.
func (s *Surface) Hold(keys ...ui.Key) *Surface {
	s.Keys = keys
	return s
}

// Reset clears recorded draw calls.
func (s *Surface) Reset() {
	s.Texts = nil
	s.Images = nil
	s.CursorHidden = false
}

func (s *Surface) KeysDown() []ui.Key { return append([]ui.Key(nil), s.Keys...) }

func (s *Surface) RequestRepaint() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repaints++
}

// Repaints returns how many repaints were requested.
func (s *Surface) Repaints() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repaints
}

func (s *Surface) SetCursorHidden(hidden bool) { s.CursorHidden = hidden }

func (s *Surface) Text(text string) { s.Texts = append(s.Texts, text) }

func (s *Surface) Image(f ui.Frame, scale float32) {
	s.Images = append(s.Images, DrawnImage{Frame: f, Scale: scale})
}

// Textures is a ui.TextureAllocator handing out sequential ids.
type Textures struct {
	mu    sync.Mutex
	names []string
}

func (t *Textures) AllocTexture(name string, _, _ int, _ []byte) ui.TextureID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.names = append(t.names, name)
	return ui.TextureID(len(t.names))
}

// Names returns the names of allocated textures in order.
func (t *Textures) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.names...)
}
