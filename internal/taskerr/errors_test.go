package taskerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "bare",
			err:  New(KindInternal, "missing link"),
			want: "INTERNAL: missing link",
		},
		{
			name: "with action",
			err:  New(KindTaskDefinition, "bad volume").WithAction(4),
			want: "TASK_DEFINITION: bad volume (action=4)",
		},
		{
			name: "with resource and cause",
			err:  Wrap(KindMedia, errors.New("eos"), "decode failed").WithResource("a.mp4#stream"),
			want: "MEDIA: decode failed (resource=a.mp4#stream): eos",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	base := New(KindInvalidResource, "not a stream")
	wrapped := fmt.Errorf("build tree: %w", base)

	assert.Equal(t, KindInvalidResource, KindOf(wrapped))
	assert.True(t, IsInvalidResource(wrapped))
	assert.False(t, IsTaskDefinition(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindFlow, cause, "stop failed")
	assert.ErrorIs(t, err, cause)
}
