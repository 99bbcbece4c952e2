//go:build gst

package resource

import (
	"github.com/roach88/cogtask/internal/stream"
	"github.com/roach88/cogtask/internal/stream/gststream"
	"github.com/roach88/cogtask/internal/ui"
)

func defaultOpener(path string, alloc ui.TextureAllocator) (stream.Source, error) {
	src, err := gststream.Open(path, alloc)
	if err != nil {
		return nil, err
	}
	return src, nil
}
