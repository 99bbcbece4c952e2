// Package stream runs media resources on their own decode goroutines.
//
// A Worker owns one Handle for the lifetime of one media action. The
// handle is driven exclusively by the worker's decode goroutine; the
// rest of the program only sees:
//
//   - the worker's done cell (ended / error), written by the decode
//     goroutine, by the supervising goroutine after the decode goroutine
//     exits, and by Stop;
//   - the FrameSlot the handle publishes decoded frames into.
//
// Start/stop handshake:
//
//	NewWorker ──► decode goroutine blocks on start
//	Start     ──► start ← {}     decode loop runs; supervisor waits on stopped
//	EOS/error ──► done set, stopped closed, decode goroutine returns
//	supervisor──► joins, forwards late error into done, calls OnEnded
//	Close     ──► done forced, start closed, join (fatal if it times out)
package stream

// Handle is a decoder instance for one stream. Errors returned by a
// handle are forwarded verbatim into the worker's done cell.
//
// Handles are not safe for concurrent use; a Worker serializes all calls
// on its decode goroutine, except Close, which it calls after joining.
type Handle interface {
	// Start unpauses a stream positioned at its first frame.
	Start() error

	// Pause pauses playback.
	Pause() error

	// Restart seeks to the first frame, clears end-of-stream and unpauses.
	Restart() error

	// ProcessBus advances the decoder and reports whether the stream has
	// ended. With looping set, reaching the end restarts the stream and
	// reports false.
	ProcessBus(looping bool) (ended bool, err error)

	// EOS reports whether the stream has reached its end.
	EOS() bool

	// Framerate returns frames per second, or 0 for audio-only streams.
	Framerate() float64

	// HasVideo reports whether the stream has a video channel.
	HasVideo() bool

	// HasAudio reports whether the stream has an audio channel.
	HasAudio() bool

	// Close releases decoder resources.
	Close() error
}

// Source is a loaded stream resource. Each media action clones its own
// playable Handle from it, bound to a fresh frame slot and volume.
type Source interface {
	// Clone builds a handle that publishes frames into slot and plays
	// audio at volume (0..1). Metadata is probed synchronously and the
	// first frame is decoded before Clone returns.
	Clone(slot *FrameSlot, volume float32) (Handle, error)
}
