package compositor

import (
	"image"
	"sync"
)

// Frame is one composited visual output. It wraps a pixel buffer drawn from
// a shared pool; callers must Release it as soon as the encoder has consumed
// it, on every path, or the pool degenerates into per-frame allocation.
type Frame struct {
	RGBA *image.RGBA
	PTS  int64 // presentation timestamp in microseconds

	pool     *framePool
	released bool
}

// Release returns the pixel buffer to the pool. Safe to call twice; the
// second call is a no-op.
func (f *Frame) Release() {
	if f.released || f.pool == nil {
		f.released = true
		return
	}
	f.released = true
	f.pool.put(f.RGBA)
	f.RGBA = nil
}

// framePool recycles fixed-size RGBA buffers between frames.
type framePool struct {
	pool sync.Pool
}

func newFramePool(width, height int) *framePool {
	return &framePool{
		pool: sync.Pool{
			New: func() any {
				return image.NewRGBA(image.Rect(0, 0, width, height))
			},
		},
	}
}

func (p *framePool) get() *image.RGBA {
	return p.pool.Get().(*image.RGBA)
}

func (p *framePool) put(img *image.RGBA) {
	if img != nil {
		p.pool.Put(img)
	}
}
