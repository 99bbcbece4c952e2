//go:build gst

// Package gststream decodes media files with GStreamer.
//
// Each clone builds its own playbin pipeline whose video sink is an RGBA
// appsink; decoded frames are uploaded through a ui.TextureAllocator and
// published into the clone's stream.FrameSlot from the appsink callback.
package gststream

import (
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/roach88/cogtask/internal/stream"
	"github.com/roach88/cogtask/internal/ui"
)

const prerollTimeout = 5 * time.Second

var initOnce sync.Once

// Source is a media file that clones into playable handles.
type Source struct {
	path  string
	alloc ui.TextureAllocator
}

// Open validates that path exists as a GStreamer URI source.
func Open(path string, alloc ui.TextureAllocator) (*Source, error) {
	initOnce.Do(func() { gst.Init(nil) })

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	return &Source{path: abs, alloc: alloc}, nil
}

// Clone implements stream.Source.
func (s *Source) Clone(slot *stream.FrameSlot, volume float32) (stream.Handle, error) {
	uri := (&url.URL{Scheme: "file", Path: s.path}).String()
	desc := fmt.Sprintf(
		"playbin uri=%q volume=%f video-sink=\"videoconvert ! video/x-raw,format=RGBA ! appsink name=vsink sync=true max-buffers=1 drop=true\"",
		uri, volume,
	)

	pipeline, err := gst.NewPipelineFromString(desc)
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}

	h := &Handle{
		name:     filepath.Base(s.path),
		pipeline: pipeline,
		bus:      pipeline.GetPipelineBus(),
		slot:     slot,
		alloc:    s.alloc,
	}

	if elem, err := pipeline.GetElementByName("vsink"); err == nil && elem != nil {
		sink := app.SinkFromElement(elem)
		sink.SetCallbacks(&app.SinkCallbacks{
			NewSampleFunc:  h.onSample,
			NewPrerollFunc: h.onPreroll,
		})
		h.sink = sink
	}

	if err := h.preroll(); err != nil {
		pipeline.SetState(gst.StateNull)
		return nil, err
	}
	return h, nil
}

// Handle is one playing pipeline.
type Handle struct {
	name     string
	pipeline *gst.Pipeline
	bus      *gst.Bus
	sink     *app.Sink
	slot     *stream.FrameSlot
	alloc    ui.TextureAllocator

	framerate float64
	hasVideo  bool
	hasAudio  bool
	eos       bool
	frames    uint64
}

// preroll pauses the pipeline until the first frame is decoded and reads
// stream metadata from the negotiated caps.
func (h *Handle) preroll() error {
	if err := h.pipeline.SetState(gst.StatePaused); err != nil {
		return fmt.Errorf("pause pipeline: %w", err)
	}

	deadline := time.Now().Add(prerollTimeout)
	for time.Now().Before(deadline) {
		msg := h.bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageError:
			gerr := msg.ParseError()
			return fmt.Errorf("preroll %s: %s", h.name, gerr.Error())
		case gst.MessageAsyncDone:
			h.probe()
			return nil
		}
	}
	return fmt.Errorf("preroll %s: timeout after %s", h.name, prerollTimeout)
}

func (h *Handle) probe() {
	if n, err := h.pipeline.GetProperty("n-audio"); err == nil {
		if count, ok := n.(int); ok {
			h.hasAudio = count > 0
		}
	}

	if h.sink == nil {
		return
	}
	pad := h.sink.GetStaticPad("sink")
	if pad == nil {
		return
	}
	caps := pad.GetCurrentCaps()
	if caps == nil || caps.GetSize() == 0 {
		return
	}
	h.hasVideo = true

	structure := caps.GetStructureAt(0)
	if val, err := structure.GetValue("framerate"); err == nil {
		h.framerate = parseFramerate(fmt.Sprintf("%v", val))
	}
}

// parseFramerate converts "30000/1001" style fractions to fps.
func parseFramerate(s string) float64 {
	var num, den int
	if _, err := fmt.Sscanf(s, "%d/%d", &num, &den); err == nil && den > 0 {
		return float64(num) / float64(den)
	}
	var fps float64
	if _, err := fmt.Sscanf(s, "%g", &fps); err == nil {
		return fps
	}
	return 0
}

func (h *Handle) onPreroll(sink *app.Sink) gst.FlowReturn {
	return h.publish(sink.PullPreroll())
}

func (h *Handle) onSample(sink *app.Sink) gst.FlowReturn {
	return h.publish(sink.PullSample())
}

func (h *Handle) publish(sample *gst.Sample) gst.FlowReturn {
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}

	width, height := 0, 0
	if caps := sample.GetCaps(); caps != nil && caps.GetSize() > 0 {
		st := caps.GetStructureAt(0)
		if v, err := st.GetValue("width"); err == nil {
			width, _ = v.(int)
		}
		if v, err := st.GetValue("height"); err == nil {
			height, _ = v.(int)
		}
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 || len(data) < width*height*4 {
		buffer.Unmap()
		slog.Warn("gststream: short buffer", "stream", h.name, "size", len(data))
		return gst.FlowOK
	}
	rgba := make([]byte, len(data))
	copy(rgba, data)
	buffer.Unmap()

	tex := stream.UploadFrame(h.alloc, h.name, int(h.frames), width, height, rgba)
	h.frames++
	h.slot.Store(ui.Frame{Texture: tex, Width: float32(width), Height: float32(height)})
	return gst.FlowOK
}

func (h *Handle) Start() error {
	return h.pipeline.SetState(gst.StatePlaying)
}

func (h *Handle) Pause() error {
	return h.pipeline.SetState(gst.StatePaused)
}

func (h *Handle) Restart() error {
	if !h.pipeline.SeekSimple(0, gst.FormatTime, gst.SeekFlagFlush|gst.SeekFlagKeyUnit) {
		return fmt.Errorf("seek %s to start failed", h.name)
	}
	h.eos = false
	return h.pipeline.SetState(gst.StatePlaying)
}

// ProcessBus drains pending bus messages.
func (h *Handle) ProcessBus(looping bool) (bool, error) {
	for {
		msg := h.bus.Pop()
		if msg == nil {
			return h.eos, nil
		}
		switch msg.Type() {
		case gst.MessageEOS:
			if looping {
				if err := h.Restart(); err != nil {
					return false, err
				}
				continue
			}
			h.eos = true
			return true, nil
		case gst.MessageError:
			gerr := msg.ParseError()
			return false, fmt.Errorf("%s: %s (%s)", h.name, gerr.Error(), gerr.DebugString())
		}
	}
}

func (h *Handle) EOS() bool { return h.eos }

func (h *Handle) Framerate() float64 { return h.framerate }

func (h *Handle) HasVideo() bool { return h.hasVideo }

func (h *Handle) HasAudio() bool { return h.hasAudio }

func (h *Handle) Close() error {
	return h.pipeline.SetState(gst.StateNull)
}
