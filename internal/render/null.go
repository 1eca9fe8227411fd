package render

import (
	"sync/atomic"

	"github.com/jscyril/golang_media_player/api"
)

// Ensure NullRenderer implements Renderer at compile time
var _ api.Renderer = (*NullRenderer)(nil)

// NullRenderer validates and counts frames without drawing them.
type NullRenderer struct {
	rendered  atomic.Uint64
	presented atomic.Uint64
	lastPTS   atomic.Int64
}

func NewNullRenderer() *NullRenderer { return &NullRenderer{} }

func (r *NullRenderer) RenderFrame(frame *api.VideoFrame) error {
	if _, err := FrameImage(frame); err != nil {
		return err
	}
	r.lastPTS.Store(frame.PTS)
	r.rendered.Add(1)
	return nil
}

func (r *NullRenderer) Present() error {
	r.presented.Add(1)
	return nil
}

func (r *NullRenderer) SetAspectRatio(float32) error { return nil }

func (r *NullRenderer) Resize(int, int) error { return nil }

func (r *NullRenderer) Counters() (rendered, presented uint64, lastPTS int64) {
	return r.rendered.Load(), r.presented.Load(), r.lastPTS.Load()
}
