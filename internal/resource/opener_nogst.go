//go:build !gst

package resource

import (
	"errors"

	"github.com/roach88/cogtask/internal/stream"
	"github.com/roach88/cogtask/internal/ui"
)

// ErrNoMediaBackend is returned for media files when the binary was built
// without the gst tag.
var ErrNoMediaBackend = errors.New("built without GStreamer support (rebuild with -tags gst)")

func defaultOpener(string, ui.TextureAllocator) (stream.Source, error) {
	return nil, ErrNoMediaBackend
}
