// Package ui defines the render surface capability the host render loop
// hands to the scheduler on every tick, and the small value types that
// cross it (keys, textures, frames).
package ui

import "sort"

// Key names a keyboard key, e.g. "Escape", "Space", "A".
type Key string

// Well-known keys.
const (
	KeyEscape Key = "Escape"
	KeySpace  Key = "Space"
	KeyEnter  Key = "Enter"
)

// SortKeys sorts keys in place and returns them, for deterministic logs.
func SortKeys(keys []Key) []Key {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// TextureID identifies a texture allocated on the render surface.
// The zero value is the placeholder texture.
type TextureID uint64

// Frame is a decoded image ready to be drawn.
type Frame struct {
	Texture TextureID
	Width   float32
	Height  float32
}

// Placeholder is drawn when no frame has been decoded yet.
var Placeholder = Frame{Width: 1, Height: 1}

// Surface is the render capability available during one tick.
// It is only valid for the duration of the call it was passed to.
type Surface interface {
	// KeysDown returns the keys held down during this tick.
	KeysDown() []Key

	// RequestRepaint asks the host to schedule another tick soon.
	RequestRepaint()

	// SetCursorHidden hides or shows the pointer cursor.
	SetCursorHidden(hidden bool)

	// Text draws a line of text centered on the surface.
	Text(s string)

	// Image draws a frame centered on the surface, scaled by scale.
	Image(f Frame, scale float32)
}

// TextureAllocator uploads RGBA pixel data and returns a texture handle.
// Implementations must be safe for concurrent use: decode goroutines
// allocate while the UI goroutine draws.
type TextureAllocator interface {
	AllocTexture(name string, width, height int, rgba []byte) TextureID
}
