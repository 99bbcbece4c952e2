package action

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cogtask/internal/resource"
	"github.com/roach88/cogtask/internal/signal"
	"github.com/roach88/cogtask/internal/stream"
	"github.com/roach88/cogtask/internal/taskerr"
	"github.com/roach88/cogtask/internal/testutil"
)

func putSynthetic(h *harness, src string, s stream.Synthetic) {
	h.res.Put(src+resource.StreamSuffix, resource.Stream{Source: s})
}

func TestStream_PropsFollowVideoAndLooping(t *testing.T) {
	video := stream.Synthetic{Name: "clip", Width: 4, Height: 4, Frames: 3, Framerate: 30}
	audio := stream.Synthetic{Name: "tone", Frames: 3, Audio: true}

	tests := []struct {
		name    string
		src     stream.Synthetic
		looping bool
		want    Props
	}{
		{"video once", video, false, Finite | Visual | Animated},
		{"video looping", video, true, Visual | Animated},
		{"audio once", audio, false, Finite},
		{"audio looping", audio, true, Default},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			putSynthetic(h, "media", tt.src)
			s := h.build(t, Stream{Src: "media", Looping: tt.looping})
			assert.Equal(t, tt.want, s.Props())
		})
	}
}

func TestStream_PlaysToEnd(t *testing.T) {
	h := newHarness(t)
	putSynthetic(h, "clip", stream.Synthetic{Name: "clip", Width: 8, Height: 4, Frames: 4, Framerate: 200})

	width := uint16(16)
	s := h.build(t, Stream{Src: "clip", Width: &width})
	h.start(t, s)

	v, ok := h.sync.Pop()
	require.True(t, ok)
	assert.Equal(t, signal.UpdateGraph, v.Kind)
	assert.True(t, over(t, s))
	assert.True(t, s.(*StreamState).Worker().Status().Ended)

	surface := testutil.NewSurface()
	require.NoError(t, s.Show(surface, h.sync.Writer(), h.async.Writer(), h.state))
	require.Len(t, surface.Images, 1)
	assert.Equal(t, float32(2), surface.Images[0].Scale)
	assert.True(t, surface.CursorHidden)

	require.NoError(t, s.Stop(h.sync.Writer(), h.async.Writer(), h.state))
}

func TestStream_DecodeFailureIsMediaError(t *testing.T) {
	h := newHarness(t)
	putSynthetic(h, "bad", stream.Synthetic{Name: "bad", Width: 2, Height: 2, Frames: 10, Framerate: 200, FailAt: 2})

	s := h.build(t, Stream{Src: "bad"})
	h.start(t, s)

	_, ok := h.sync.Pop()
	require.True(t, ok)

	_, err := s.IsOver()
	require.Error(t, err)
	assert.True(t, taskerr.IsMedia(err))
}

func TestStream_StopEndsLoopingPlayback(t *testing.T) {
	h := newHarness(t)
	putSynthetic(h, "loop", stream.Synthetic{Name: "loop", Width: 2, Height: 2, Frames: 2, Framerate: 200})

	s := h.build(t, Stream{Src: "loop", Looping: true})
	h.start(t, s)

	time.Sleep(20 * time.Millisecond)
	assert.False(t, over(t, s))

	require.NoError(t, s.Stop(h.sync.Writer(), h.async.Writer(), h.state))
	assert.True(t, over(t, s))
}

func TestStream_TextResourceIsInvalid(t *testing.T) {
	h := newHarness(t)
	h.res.Put("notes.txt"+resource.StreamSuffix, resource.Text{Content: "hello"})

	_, err := Build(Stream{Src: "notes.txt"}, h.env())
	require.Error(t, err)
	assert.True(t, taskerr.IsInvalidResource(err))
}

func TestStream_WidthOnAudioOnly(t *testing.T) {
	h := newHarness(t)
	putSynthetic(h, "tone", stream.Synthetic{Name: "tone", Frames: 3, Audio: true})

	width := uint16(100)
	_, err := Build(Stream{Src: "tone", Width: &width}, h.env())
	require.Error(t, err)
	assert.True(t, taskerr.IsTaskDefinition(err))
}

func TestStream_InitErrors(t *testing.T) {
	loud := float32(1.5)
	assert.True(t, taskerr.IsTaskDefinition(Stream{}.Init()))
	assert.True(t, taskerr.IsTaskDefinition(Stream{Src: "a", Volume: &loud}.Init()))
}

func TestStream_MissingResource(t *testing.T) {
	h := newHarness(t)
	_, err := Build(Stream{Src: "absent"}, h.env())
	require.Error(t, err)
	assert.Equal(t, taskerr.KindResourceLoad, taskerr.KindOf(err))
}
