package viz

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kr1s0404/fmm/internal/body"
)

var (
	axisX = r3.Vec{X: 1}
	axisY = r3.Vec{Y: 1}
	axisZ = r3.Vec{Z: 1}
)

// Camera looks at the scene down the z axis after rotating it by the
// three angles in x, y, z order. Zoom 1 fits a sphere of radius Extent
// into the shorter side of the viewport.
type Camera struct {
	RotX, RotY, RotZ float64
	Zoom             float64
	Extent           float64
}

func NewCamera() *Camera {
	return &Camera{Zoom: 1, Extent: 1}
}

// Rotate adds to the rotation angles in radians.
func (c *Camera) Rotate(dx, dy, dz float64) {
	c.RotX = math.Mod(c.RotX+dx, 2*math.Pi)
	c.RotY = math.Mod(c.RotY+dy, 2*math.Pi)
	c.RotZ = math.Mod(c.RotZ+dz, 2*math.Pi)
}

func (c *Camera) ZoomBy(f float64) {
	c.Zoom = math.Max(0.05, math.Min(c.Zoom*f, 50))
}

func (c *Camera) Reset() {
	c.RotX, c.RotY, c.RotZ = 0, 0, 0
	c.Zoom = 1
}

// Fit sets Extent to the farthest body in st so the whole scene stays in
// view at zoom 1 under any rotation.
func (c *Camera) Fit(st *body.Store) {
	if d := st.MaxDistance(); d > 0 && !math.IsInf(d, 0) {
		c.Extent = d
	}
}

// Transform applies the camera rotation to p.
func (c *Camera) Transform(p r3.Vec) r3.Vec {
	if c.RotX != 0 {
		p = r3.NewRotation(c.RotX, axisX).Rotate(p)
	}
	if c.RotY != 0 {
		p = r3.NewRotation(c.RotY, axisY).Rotate(p)
	}
	if c.RotZ != 0 {
		p = r3.NewRotation(c.RotZ, axisZ).Rotate(p)
	}
	return p
}

// Project maps p to dot coordinates on a w x h canvas, y pointing down.
// ok is false when the point falls outside.
func (c *Camera) Project(p r3.Vec, w, h int) (x, y int, ok bool) {
	q := c.Transform(p)
	half := float64(min(w, h)) / 2
	s := half * c.Zoom / c.Extent
	fx := float64(w)/2 + q.X*s
	fy := float64(h)/2 - q.Y*s
	if math.IsNaN(fx) || math.IsNaN(fy) {
		return 0, 0, false
	}
	x, y = int(math.Floor(fx)), int(math.Floor(fy))
	return x, y, x >= 0 && y >= 0 && x < w && y < h
}
