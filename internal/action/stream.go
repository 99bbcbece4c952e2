package action

import (
	"github.com/roach88/cogtask/internal/resource"
	"github.com/roach88/cogtask/internal/signal"
	"github.com/roach88/cogtask/internal/stream"
	"github.com/roach88/cogtask/internal/taskerr"
	"github.com/roach88/cogtask/internal/ui"
)

// Stream plays a media resource on its own decode goroutine.
type Stream struct {
	Src     string   `yaml:"src"`
	Width   *uint16  `yaml:"width,omitempty"`
	Volume  *float32 `yaml:"volume,omitempty"`
	Looping bool     `yaml:"looping,omitempty"`
}

func (Stream) Kind() string { return "stream" }

func (s Stream) path() string { return s.Src + resource.StreamSuffix }

func (s Stream) Resources() []string { return []string{s.path()} }

func (s Stream) Init() error {
	if s.Src == "" {
		return taskerr.New(taskerr.KindTaskDefinition, "stream src cannot be empty")
	}
	if s.Volume != nil && (*s.Volume < 0 || *s.Volume > 1) {
		return taskerr.New(taskerr.KindTaskDefinition, "stream volume should be between 0.0 and 1.0, got %v", *s.Volume)
	}
	return nil
}

func (s Stream) Stateful(env *Env) (Stateful, error) {
	id := env.id()

	v, err := env.Resources.Fetch(s.path())
	if err != nil {
		return nil, err
	}
	res, ok := v.(resource.Stream)
	if !ok {
		return nil, taskerr.New(taskerr.KindInvalidResource, "stream action supplied non-stream resource").
			WithAction(id).WithResource(s.Src)
	}

	slot := stream.NewFrameSlot()
	h, err := res.Source.Clone(slot, env.Config.ResolveVolume(s.Volume))
	if err != nil {
		return nil, taskerr.Wrap(taskerr.KindMedia, err, "clone stream").WithAction(id).WithResource(s.Src)
	}

	if !h.HasVideo() && s.Width != nil {
		_ = h.Close()
		return nil, taskerr.New(taskerr.KindTaskDefinition, "video-less stream should not be supplied a width").
			WithAction(id).WithResource(s.Src)
	}

	sw := env.Sync
	w := stream.NewWorker(h, stream.Options{
		Looping: s.Looping,
		OnEnded: func() { sw.Push(signal.NewUpdateGraph()) },
	})

	return &StreamState{
		node:    node{id: id},
		src:     s.Src,
		worker:  w,
		slot:    slot,
		width:   s.Width,
		looping: s.Looping,
		last:    ui.Placeholder,
	}, nil
}

// StreamState is the runtime instance of Stream.
type StreamState struct {
	node
	src     string
	worker  *stream.Worker
	slot    *stream.FrameSlot
	width   *uint16
	looping bool
	last    ui.Frame
}

// Worker returns the decode worker.
func (a *StreamState) Worker() *stream.Worker { return a.worker }

func (a *StreamState) Props() Props {
	video := a.worker.HasVideo() && a.worker.Framerate() > 0
	switch {
	case video && !a.looping:
		return Finite | Visual | Animated
	case video:
		return Visual | Animated
	case !a.looping:
		return Finite
	default:
		return Default
	}
}

func (a *StreamState) IsOver() (bool, error) {
	if a.done {
		return true, nil
	}
	st := a.worker.Status()
	if st.Err != nil {
		return false, taskerr.Wrap(taskerr.KindMedia, st.Err, "stream failed").WithAction(a.id).WithResource(a.src)
	}
	return st.Ended, nil
}

func (a *StreamState) Start(signal.SyncWriter, signal.AsyncWriter, State) error {
	a.started = true
	if err := a.worker.Start(); err != nil {
		return taskerr.Wrap(taskerr.KindInternal, err, "start stream").WithAction(a.id)
	}
	return nil
}

func (a *StreamState) Update(Event, signal.SyncWriter, signal.AsyncWriter, State) error {
	return nil
}

func (a *StreamState) Show(s ui.Surface, _ signal.SyncWriter, _ signal.AsyncWriter, _ State) error {
	if f, ok := a.slot.TryLoad(); ok {
		a.last = f
	}
	s.SetCursorHidden(true)

	scale := float32(1)
	if a.width != nil && a.last.Width > 0 {
		scale = float32(*a.width) / a.last.Width
	}
	s.Image(a.last, scale)
	return nil
}

func (a *StreamState) Stop(signal.SyncWriter, signal.AsyncWriter, State) error {
	a.done = true
	if err := a.worker.Stop(); err != nil {
		return taskerr.Wrap(taskerr.KindMedia, err, "stream failed before stop").WithAction(a.id).WithResource(a.src)
	}
	return nil
}

func (a *StreamState) Close() error {
	a.done = true
	return a.worker.Close()
}
