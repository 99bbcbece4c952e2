package tui

import (
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/roach88/cogtask/internal/ui"
)

// Textures is a ui.TextureAllocator for terminals. Pixels are dropped;
// only the texture name is kept so frames can be labelled.
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

// Name returns the name a texture was allocated under.
func (t *Textures) Name(id ui.TextureID) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id == 0 || int(id) > len(t.names) {
		return "placeholder"
	}
	return t.names[id-1]
}

// drawnImage is one Image call.
type drawnImage struct {
	frame ui.Frame
	scale float32
}

// surface is the ui.Surface handed to the server on every tick.
//
// Terminals report key presses but not releases, so a key counts as held
// for the first tick after it was pressed and released on the next.
type surface struct {
	pressed []ui.Key

	texts        []string
	images       []drawnImage
	cursorHidden bool
	repaint      bool
}

// press queues k for the next tick.
func (s *surface) press(k ui.Key) {
	for _, p := range s.pressed {
		if p == k {
			return
		}
	}
	s.pressed = append(s.pressed, k)
}

// begin clears the previous tick's draw calls.
func (s *surface) begin() {
	s.texts = s.texts[:0]
	s.images = s.images[:0]
	s.cursorHidden = false
	s.repaint = false
}

func (s *surface) KeysDown() []ui.Key {
	keys := s.pressed
	s.pressed = nil
	return keys
}

func (s *surface) RequestRepaint()              { s.repaint = true }
func (s *surface) SetCursorHidden(hidden bool) { s.cursorHidden = hidden }
func (s *surface) Text(text string)             { s.texts = append(s.texts, text) }

func (s *surface) Image(f ui.Frame, scale float32) {
	s.images = append(s.images, drawnImage{frame: f, scale: scale})
}

// keyOf maps a terminal key to a surface key. ok is false for keys the
// scheduler never sees.
func keyOf(msg tea.KeyMsg) (ui.Key, bool) {
	switch msg.Type {
	case tea.KeyEsc:
		return ui.KeyEscape, true
	case tea.KeyEnter:
		return ui.KeyEnter, true
	case tea.KeySpace:
		return ui.KeySpace, true
	case tea.KeyUp:
		return "ArrowUp", true
	case tea.KeyDown:
		return "ArrowDown", true
	case tea.KeyLeft:
		return "ArrowLeft", true
	case tea.KeyRight:
		return "ArrowRight", true
	case tea.KeyTab:
		return "Tab", true
	case tea.KeyBackspace:
		return "Backspace", true
	case tea.KeyRunes:
		if len(msg.Runes) != 1 {
			return "", false
		}
		r := string(msg.Runes)
		if r == " " {
			return ui.KeySpace, true
		}
		return ui.Key(strings.ToUpper(r)), true
	}
	return "", false
}
