// Package resource loads and looks up the typed resources actions bind to.
//
// Paths select the resource kind:
//
//	instructions.txt                       Text
//	clip.mp4#stream                        Stream, opened by the file opener
//	synthetic://64x48?frames=90&fps=30#stream   generated Stream
package resource

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/roach88/cogtask/internal/stream"
	"github.com/roach88/cogtask/internal/taskerr"
	"github.com/roach88/cogtask/internal/ui"
)

// StreamSuffix marks a path as a stream resource.
const StreamSuffix = "#stream"

const syntheticScheme = "synthetic://"

// Value is a loaded resource. The set of kinds is closed.
type Value interface {
	isValue()
}

// Text is a loaded text file.
type Text struct {
	Content string
}

// Stream is a loaded stream source.
type Stream struct {
	Source stream.Source
}

func (Text) isValue()   {}
func (Stream) isValue() {}

// FileOpener opens a media file as a stream source.
type FileOpener func(path string, alloc ui.TextureAllocator) (stream.Source, error)

// Map holds the resources loaded for a task. Safe for concurrent use.
type Map struct {
	dir    string
	opener FileOpener

	mu     sync.RWMutex
	values map[string]Value
}

// NewMap returns an empty map resolving relative paths against dir.
// Media files are opened with the default file opener.
func NewMap(dir string) *Map {
	return &Map{
		dir:    dir,
		opener: defaultOpener,
		values: make(map[string]Value),
	}
}

// WithOpener replaces the media file opener.
func (m *Map) WithOpener(op FileOpener) *Map {
	m.opener = op
	return m
}

// Preload loads every path not loaded yet. Texture uploads of decoded
// frames go through alloc.
func (m *Map) Preload(paths []string, alloc ui.TextureAllocator) error {
	for _, p := range paths {
		m.mu.RLock()
		_, ok := m.values[p]
		m.mu.RUnlock()
		if ok {
			continue
		}

		v, err := m.load(p, alloc)
		if err != nil {
			return err
		}

		m.mu.Lock()
		m.values[p] = v
		m.mu.Unlock()
		slog.Debug("resource loaded", "path", p)
	}
	return nil
}

// Fetch returns a loaded resource.
func (m *Map) Fetch(path string) (Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[path]
	if !ok {
		return nil, taskerr.New(taskerr.KindResourceLoad, "resource not loaded").WithResource(path)
	}
	return v, nil
}

// Put stores v under path, replacing any previous value.
func (m *Map) Put(path string, v Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[path] = v
}

// Len returns the number of loaded resources.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

func (m *Map) load(path string, alloc ui.TextureAllocator) (Value, error) {
	if src, ok := strings.CutSuffix(path, StreamSuffix); ok {
		if strings.HasPrefix(src, syntheticScheme) {
			s, err := ParseSynthetic(src, alloc)
			if err != nil {
				return nil, taskerr.Wrap(taskerr.KindResourceLoad, err, "parse synthetic stream").WithResource(path)
			}
			return Stream{Source: s}, nil
		}

		source, err := m.opener(m.resolve(src), alloc)
		if err != nil {
			return nil, taskerr.Wrap(taskerr.KindResourceLoad, err, "open stream").WithResource(path)
		}
		return Stream{Source: source}, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		data, err := os.ReadFile(m.resolve(path))
		if err != nil {
			return nil, taskerr.Wrap(taskerr.KindResourceLoad, err, "read text").WithResource(path)
		}
		return Text{Content: string(data)}, nil
	default:
		return nil, taskerr.New(taskerr.KindResourceLoad, "unsupported resource type").WithResource(path)
	}
}

func (m *Map) resolve(path string) string {
	if filepath.IsAbs(path) || m.dir == "" {
		return path
	}
	return filepath.Join(m.dir, path)
}

// ParseSynthetic builds a generated stream from a synthetic:// URL:
//
//	synthetic://WIDTHxHEIGHT?frames=N&fps=F&audio=1&fail_at=K
//
// An empty size with fps=0 describes an audio-only stream.
func ParseSynthetic(raw string, alloc ui.TextureAllocator) (stream.Synthetic, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return stream.Synthetic{}, err
	}

	s := stream.Synthetic{Name: raw, Frames: 1, Alloc: alloc}

	if u.Host != "" {
		w, h, ok := strings.Cut(u.Host, "x")
		if !ok {
			return stream.Synthetic{}, fmt.Errorf("size %q: want WIDTHxHEIGHT", u.Host)
		}
		if s.Width, err = strconv.Atoi(w); err != nil {
			return stream.Synthetic{}, fmt.Errorf("width: %w", err)
		}
		if s.Height, err = strconv.Atoi(h); err != nil {
			return stream.Synthetic{}, fmt.Errorf("height: %w", err)
		}
	}

	q := u.Query()
	if v := q.Get("frames"); v != "" {
		if s.Frames, err = strconv.Atoi(v); err != nil {
			return stream.Synthetic{}, fmt.Errorf("frames: %w", err)
		}
	}
	if v := q.Get("fps"); v != "" {
		if s.Framerate, err = strconv.ParseFloat(v, 64); err != nil {
			return stream.Synthetic{}, fmt.Errorf("fps: %w", err)
		}
	}
	if v := q.Get("fail_at"); v != "" {
		if s.FailAt, err = strconv.Atoi(v); err != nil {
			return stream.Synthetic{}, fmt.Errorf("fail_at: %w", err)
		}
	}
	if v := q.Get("audio"); v != "" {
		if s.Audio, err = strconv.ParseBool(v); err != nil {
			return stream.Synthetic{}, fmt.Errorf("audio: %w", err)
		}
	}

	if s.Frames <= 0 {
		return stream.Synthetic{}, fmt.Errorf("frames must be positive")
	}
	if s.Framerate > 0 && (s.Width <= 0 || s.Height <= 0) {
		return stream.Synthetic{}, fmt.Errorf("video stream needs a size")
	}
	if s.Framerate == 0 && !s.Audio {
		return stream.Synthetic{}, fmt.Errorf("stream has neither video nor audio")
	}
	return s, nil
}
