package export

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kr1s0404/fmm/internal/body"
	"github.com/kr1s0404/fmm/internal/render"
)

// Trails records the x/y paths of the first bodies of a run and draws them
// as SVG polylines colored by mass.
type Trails struct {
	limit int
	every int
	paths [][]r3.Vec
	mass  []float64
}

// NewTrails tracks up to limit bodies, sampling every n-th frame.
func NewTrails(limit, every int) *Trails {
	if every < 1 {
		every = 1
	}
	return &Trails{limit: limit, every: every}
}

func (t *Trails) OnFrame(frame, _ int, _ float64, s *body.Store) {
	if frame%t.every != 0 {
		return
	}
	n := min(t.limit, s.Len())
	if t.paths == nil {
		t.paths = make([][]r3.Vec, n)
		t.mass = append([]float64(nil), s.Mass[:n]...)
	}
	for i := 0; i < n && i < len(t.paths); i++ {
		t.paths[i] = append(t.paths[i], s.Pos[i])
	}
}

func (t *Trails) Bodies() int { return len(t.paths) }

func (t *Trails) bounds() (minX, maxX, minY, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, path := range t.paths {
		for _, p := range path {
			minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
			minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
		}
	}
	return
}

// WriteSVG draws every recorded path fitted into a width×height view.
func (t *Trails) WriteSVG(w io.Writer, width, height int) error {
	if len(t.paths) == 0 {
		return fmt.Errorf("no trails recorded")
	}

	minX, maxX, minY, maxY := t.bounds()
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	rangeX *= 1.2
	rangeY *= 1.2

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#000000"/>
`, width, height, width, height))

	for i, path := range t.paths {
		if len(path) < 2 {
			continue
		}
		c, _ := colorful.MakeColor(render.Color(t.mass[i]))
		sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1" d="M`, c.Hex()))
		for j, p := range path {
			x := (p.X - minX) / rangeX * float64(width)
			y := (p.Y - minY) / rangeY * float64(height)
			if j == 0 {
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
			} else {
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
			}
		}
		sb.WriteString("\"/>\n")
	}
	sb.WriteString("</svg>\n")

	_, err := io.WriteString(w, sb.String())
	return err
}
