package compute

import (
	"sync/atomic"
	"time"

	"github.com/dgravesa/go-parallel/parallel"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kr1s0404/fmm/internal/body"
	"github.com/kr1s0404/fmm/internal/physics"
)

// serialCutoff is the body count below which spawning goroutines costs more
// than it saves.
const serialCutoff = 16

// Direct is the O(N²) reference solver. Bodies [0, count) are both the
// targets and the sources. Each body sums its sources in index order
// regardless of the worker count, so results are reproducible.
type Direct struct {
	gravity physics.Gravity
	workers int
	last    Timings
}

func NewDirect(g physics.Gravity, workers int) *Direct {
	if workers < 1 {
		workers = 1
	}
	return &Direct{gravity: g, workers: workers}
}

func (d *Direct) Name() string { return "direct" }

func (d *Direct) LastTimings() Timings { return d.last }

func (d *Direct) Solve(s *body.Store, count int) error {
	count = clampCount(s, count)
	n := count
	start := time.Now()

	if count < serialCutoff || d.workers == 1 {
		for i := 0; i < count; i++ {
			s.Acc[i] = d.accelOn(s, i, n)
		}
	} else {
		parallel.WithNumGoroutines(d.workers).For(count, func(i, _ int) {
			s.Acc[i] = d.accelOn(s, i, n)
		})
	}

	d.last = Timings{
		Traverse:         time.Since(start),
		BodyInteractions: int64(count) * int64(max(n-1, 0)),
	}
	return nil
}

func (d *Direct) accelOn(s *body.Store, i, n int) r3.Vec {
	var a r3.Vec
	pi := s.Pos[i]
	for j := 0; j < n; j++ {
		if j == i {
			continue
		}
		a = r3.Add(a, d.gravity.Accel(pi, s.Pos[j], s.Mass[j]))
	}
	return a
}

type counter struct {
	cells  atomic.Int64
	bodies atomic.Int64
}

func (c *counter) add(cells, bodies int64) {
	c.cells.Add(cells)
	c.bodies.Add(bodies)
}
