package render

import (
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kr1s0404/fmm/internal/body"
)

const (
	// minDistance is the farthest-body distance below which the view falls
	// back to unit distance.
	minDistance = 1e-10
	// fillRatio is the share of the smaller canvas side the farthest body
	// maps onto.
	fillRatio = 0.4
	// margin lets bodies centered just off-canvas still be drawn.
	margin = 20

	minRadius = 1
	maxRadius = 20
	// outlineRadius is the radius above which a body gets a white ring.
	outlineRadius = 3
)

var (
	blue   = colorful.Color{R: 0, G: 0, B: 1}
	purple = colorful.Color{R: 1, G: 0, B: 1}
	white  = colorful.Color{R: 1, G: 1, B: 1}
	red    = colorful.Color{R: 1, G: 0, B: 0}
)

// Frame is one rendered picture. The driver hands it to a sink and then
// releases it.
type Frame struct {
	Image *image.RGBA
	Index int
	Scale float64
}

type Projector struct {
	cfg  Config
	pool *FramePool
}

func NewProjector(cfg Config) *Projector {
	return &Projector{cfg: cfg, pool: NewFramePool(cfg.Width, cfg.Height)}
}

func (p *Projector) Config() Config { return p.cfg }

// Scale maps world units to pixels so the farthest body lands at 40% of the
// smaller canvas side, never zooming in past MaxScale.
func (p *Projector) Scale(s *body.Store) float64 {
	maxDist := s.MaxDistance()
	if maxDist < minDistance {
		maxDist = 1.0
	}
	screenRadius := float64(min(p.cfg.Width, p.cfg.Height)) * fillRatio
	return math.Min(screenRadius/maxDist, p.cfg.MaxScale)
}

// Project drops z and maps a position to pixel coordinates. ok is false
// when the point falls outside the drawable margin.
func (p *Projector) Project(pos r3.Vec, scale float64) (x, y int, ok bool) {
	x = int(pos.X*scale) + p.cfg.Width/2
	y = int(pos.Y*scale) + p.cfg.Height/2
	ok = x >= -margin && x <= p.cfg.Width+margin && y >= -margin && y <= p.cfg.Height+margin
	return x, y, ok
}

// Radius grows logarithmically with mass, clamped to [1, 20] pixels.
func Radius(mass float64) int {
	r := int(math.Round(3 * math.Log10(mass*100+1)))
	if r < minRadius {
		return minRadius
	}
	if r > maxRadius {
		return maxRadius
	}
	return r
}

// Color maps mass onto blue, purple, white then red. Channels are rounded
// to 8 bits, so adjacent segments meet exactly at 0.3 and 0.6.
func Color(mass float64) color.RGBA {
	m := math.Min(1.0, mass/10)

	var c colorful.Color
	switch {
	case m < 0.3:
		c = blue.BlendRgb(purple, m/0.3)
	case m < 0.6:
		c = purple.BlendRgb(white, (m-0.3)/0.3)
	default:
		c = white.BlendRgb(red, (m-0.6)/0.4)
	}
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// Render draws the store on a black canvas with the frame index label.
func (p *Projector) Render(s *body.Store, index int) *Frame {
	img := p.pool.Get()
	fill(img, color.RGBA{A: 0xff})

	scale := p.Scale(s)
	for i := 0; i < s.Len(); i++ {
		x, y, ok := p.Project(s.Pos[i], scale)
		if !ok {
			continue
		}
		r := Radius(s.Mass[i])
		fillDisc(img, x, y, r, Color(s.Mass[i]))
		if r > outlineRadius {
			drawRing(img, x, y, r, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
		}
	}
	drawLabel(img, labelX, labelY, FrameLabel(index))

	return &Frame{Image: img, Index: index, Scale: scale}
}

// Release returns a frame's pixels for reuse. The frame must not be used
// afterwards.
func (p *Projector) Release(f *Frame) {
	if f == nil {
		return
	}
	p.pool.Put(f.Image)
	f.Image = nil
}
