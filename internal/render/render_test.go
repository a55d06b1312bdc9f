package render

import (
	"errors"
	"image/color"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kr1s0404/fmm/internal/body"
	"github.com/kr1s0404/fmm/internal/dynamo"
)

var (
	pureRed = color.RGBA{R: 255, A: 255}
	black   = color.RGBA{A: 255}
)

func single(pos r3.Vec, mass float64) *body.Store {
	s := body.NewStore(1)
	s.Set(0, pos, r3.Vec{}, mass)
	return s
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("spiral_galaxy")
	want := Config{1280, 720, 30, 1.0, "spiral_galaxy_simulation", "png"}
	if cfg != want {
		t.Errorf("DefaultConfig = %+v, want %+v", cfg, want)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero width", Config{Width: 0, Height: 10, FPS: 1, MaxScale: 1}},
		{"negative height", Config{Width: 10, Height: -1, FPS: 1, MaxScale: 1}},
		{"zero fps", Config{Width: 10, Height: 10, FPS: 0, MaxScale: 1}},
		{"nan scale", Config{Width: 10, Height: 10, FPS: 1, MaxScale: math.NaN()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); !errors.Is(err, dynamo.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestDegenerateScaleCentersBody(t *testing.T) {
	p := NewProjector(DefaultConfig("random"))
	s := single(r3.Vec{}, 100)

	scale := p.Scale(s)
	if scale != 1.0 {
		t.Fatalf("expected scale 1.0, got %v", scale)
	}
	x, y, ok := p.Project(s.Pos[0], scale)
	if !ok || x != 640 || y != 360 {
		t.Errorf("expected (640, 360), got (%d, %d) ok=%v", x, y, ok)
	}

	f := p.Render(s, 0)
	if got := f.Image.RGBAAt(640, 360); got != pureRed {
		t.Errorf("center pixel = %v, want %v", got, pureRed)
	}
}

func TestScaleNeverExceedsMax(t *testing.T) {
	for _, maxScale := range []float64{0.5, 1, 10, 1000} {
		cfg := DefaultConfig("random")
		cfg.MaxScale = maxScale
		p := NewProjector(cfg)
		for _, d := range []float64{0, 1e-12, 0.01, 1, 100, 1e6} {
			if got := p.Scale(single(r3.Vec{Z: d}, 1)); got > maxScale {
				t.Errorf("maxScale=%v d=%v: scale %v", maxScale, d, got)
			}
		}
	}
}

func TestScaleFitsFarthestBody(t *testing.T) {
	cfg := DefaultConfig("random")
	cfg.MaxScale = 100
	p := NewProjector(cfg)

	// z counts towards the distance even though it is not drawn
	if got := p.Scale(single(r3.Vec{X: 3, Z: 4}, 1)); math.Abs(got-720*0.4/5) > 1e-12 {
		t.Errorf("scale = %v, want %v", got, 720*0.4/5)
	}
}

func TestProjectMargin(t *testing.T) {
	cfg := Config{Width: 100, Height: 100, FPS: 1, MaxScale: 1}
	p := NewProjector(cfg)

	tests := []struct {
		pos  r3.Vec
		want bool
	}{
		{r3.Vec{}, true},
		{r3.Vec{X: 70}, true},
		{r3.Vec{X: 71}, false},
		{r3.Vec{Y: -70}, true},
		{r3.Vec{Y: -70.9}, true},
		{r3.Vec{Y: -71}, false},
	}
	for _, tt := range tests {
		if _, _, ok := p.Project(tt.pos, 1); ok != tt.want {
			t.Errorf("Project(%v) ok = %v, want %v", tt.pos, ok, tt.want)
		}
	}
}

func TestRadius(t *testing.T) {
	tests := []struct {
		mass float64
		want int
	}{
		{0, 1},
		{1e-9, 1},
		{0.01, 1},
		{0.1, 3},
		{1, 6},
		{100, 12},
		{1e12, 20},
	}
	for _, tt := range tests {
		if got := Radius(tt.mass); got != tt.want {
			t.Errorf("Radius(%v) = %d, want %d", tt.mass, got, tt.want)
		}
	}

	prev := Radius(0)
	for m := 1e-4; m < 1e10; m *= 1.1 {
		r := Radius(m)
		if r < prev {
			t.Fatalf("radius decreased at mass %v: %d < %d", m, r, prev)
		}
		if r < 1 || r > 20 {
			t.Fatalf("radius %d out of range at mass %v", r, m)
		}
		prev = r
	}
}

func TestColorBreakpoints(t *testing.T) {
	tests := []struct {
		name string
		mass float64
		want color.RGBA
	}{
		{"zero is blue", 0, color.RGBA{B: 255, A: 255}},
		{"0.3 is purple", 3, color.RGBA{R: 255, B: 255, A: 255}},
		{"0.6 is white", 6, color.RGBA{R: 255, G: 255, B: 255, A: 255}},
		{"saturates red", 10, pureRed},
		{"beyond saturation", 500, pureRed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Color(tt.mass); got != tt.want {
				t.Errorf("Color(%v) = %v, want %v", tt.mass, got, tt.want)
			}
		})
	}
}

func TestColorContinuity(t *testing.T) {
	for _, edge := range []float64{3, 6} {
		below := Color(math.Nextafter(edge, 0))
		at := Color(edge)
		above := Color(math.Nextafter(edge, math.Inf(1)))
		if below != at || at != above {
			t.Errorf("discontinuity at mass %v: %v %v %v", edge, below, at, above)
		}
	}
}

func TestRenderClearsAndLabels(t *testing.T) {
	cfg := Config{Width: 200, Height: 100, FPS: 1, MaxScale: 1}
	p := NewProjector(cfg)

	f := p.Render(single(r3.Vec{}, 1), 7)
	if f.Index != 7 {
		t.Errorf("frame index %d", f.Index)
	}

	lit := 0
	for y := 18; y < 34; y++ {
		for x := 10; x < 80; x++ {
			if f.Image.RGBAAt(x, y) != black {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Errorf("no label pixels drawn")
	}
	if got := f.Image.RGBAAt(199, 99); got != black {
		t.Errorf("background pixel = %v, want black", got)
	}

	// a recycled canvas starts black again
	p.Release(f)
	g := p.Render(body.NewStore(0), 8)
	if got := g.Image.RGBAAt(100, 50); got != black {
		t.Errorf("stale pixel %v after release", got)
	}
}

func TestOutlineOnLargeBodies(t *testing.T) {
	cfg := Config{Width: 200, Height: 200, FPS: 1, MaxScale: 1}
	p := NewProjector(cfg)
	outline := color.RGBA{R: 255, G: 255, B: 255, A: 255}

	// mass 100 has radius 12: ring at (100+12, 100)
	f := p.Render(single(r3.Vec{}, 100), 0)
	if got := f.Image.RGBAAt(112, 100); got != outline {
		t.Errorf("expected white outline at radius, got %v", got)
	}

	// mass 0.1 has radius 3: no ring
	f = p.Render(single(r3.Vec{}, 0.1), 0)
	if got := f.Image.RGBAAt(103, 100); got == outline {
		t.Errorf("small body should not be outlined")
	}
}

func TestFrameLabel(t *testing.T) {
	if got := FrameLabel(42); got != "Frame: 42" {
		t.Errorf("FrameLabel = %q", got)
	}
}
