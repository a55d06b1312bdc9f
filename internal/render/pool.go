package render

import (
	"image"
	"sync"
)

// FramePool recycles canvases of one size between frames.
type FramePool struct {
	pool          sync.Pool
	width, height int
}

func NewFramePool(width, height int) *FramePool {
	p := &FramePool{width: width, height: height}
	p.pool.New = func() interface{} {
		return image.NewRGBA(image.Rect(0, 0, width, height))
	}
	return p
}

func (p *FramePool) Get() *image.RGBA {
	return p.pool.Get().(*image.RGBA)
}

// Put ignores canvases of a different size.
func (p *FramePool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	b := img.Bounds()
	if b.Dx() == p.width && b.Dy() == p.height {
		p.pool.Put(img)
	}
}
