package compute

import (
	"math"
	"time"

	"github.com/dgravesa/go-parallel/parallel"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kr1s0404/fmm/internal/body"
	"github.com/kr1s0404/fmm/internal/physics"
)

const (
	DefaultMultipoleTheta = 0.5
	leafSize              = 7
)

// quadrupole is a symmetric traceless tensor Σ m(3xxᵀ − |x|²I) stored as
// its upper triangle.
type quadrupole struct {
	xx, yy, zz, xy, xz, yz float64
}

func (q quadrupole) apply(d r3.Vec) r3.Vec {
	return r3.Vec{
		X: q.xx*d.X + q.xy*d.Y + q.xz*d.Z,
		Y: q.xy*d.X + q.yy*d.Y + q.yz*d.Z,
		Z: q.xz*d.X + q.yz*d.Y + q.zz*d.Z,
	}
}

// shifted adds a point mass m at offset d from the expansion center.
func (q quadrupole) shifted(m float64, d r3.Vec) quadrupole {
	r2 := r3.Norm2(d)
	q.xx += m * (3*d.X*d.X - r2)
	q.yy += m * (3*d.Y*d.Y - r2)
	q.zz += m * (3*d.Z*d.Z - r2)
	q.xy += m * 3 * d.X * d.Y
	q.xz += m * 3 * d.X * d.Z
	q.yz += m * 3 * d.Y * d.Z
	return q
}

func (q quadrupole) add(o quadrupole) quadrupole {
	return quadrupole{
		xx: q.xx + o.xx, yy: q.yy + o.yy, zz: q.zz + o.zz,
		xy: q.xy + o.xy, xz: q.xz + o.xz, yz: q.yz + o.yz,
	}
}

// cell is a kd-tree node. Children are stored after their parent, so a
// reverse walk over the cell slice visits children first.
type cell struct {
	start, end  int
	left, right int
	leaf        bool

	size float64
	mass float64
	com  r3.Vec
	quad quadrupole
}

// Multipole is a kd-tree solver with quadrupole corrected cell
// interactions. It splits a cell at the median of its widest dimension
// until at most leafSize bodies remain.
type Multipole struct {
	gravity physics.Gravity
	theta   float64
	workers int

	order []int
	cells []cell
	last  Timings
}

func NewMultipole(g physics.Gravity, theta float64, workers int) *Multipole {
	if theta <= 0 {
		theta = DefaultMultipoleTheta
	}
	if workers < 1 {
		workers = 1
	}
	return &Multipole{gravity: g, theta: theta, workers: workers}
}

func (m *Multipole) Name() string         { return "multipole" }
func (m *Multipole) Theta() float64       { return m.theta }
func (m *Multipole) LastTimings() Timings { return m.last }

func (m *Multipole) Solve(s *body.Store, count int) error {
	count = clampCount(s, count)
	m.last = Timings{}
	if count == 0 {
		return nil
	}

	start := time.Now()
	m.build(s, count)
	m.last.Build = time.Since(start)

	start = time.Now()
	m.moments(s)
	m.last.Moments = time.Since(start)

	var ctr counter
	start = time.Now()
	parallel.WithNumGoroutines(m.workers).For(count, func(i, _ int) {
		a, cells, bodies := m.accelOn(s, i)
		s.Acc[i] = a
		ctr.add(cells, bodies)
	})
	m.last.Traverse = time.Since(start)
	m.last.CellInteractions = ctr.cells.Load()
	m.last.BodyInteractions = ctr.bodies.Load()
	return nil
}

func (m *Multipole) build(s *body.Store, count int) {
	if cap(m.order) < count {
		m.order = make([]int, count)
	}
	m.order = m.order[:count]
	for i := range m.order {
		m.order[i] = i
	}
	m.cells = m.cells[:0]
	m.split(s, 0, count)
}

// split appends the cell for order[start:end] and its subtree, returning
// the new cell's index.
func (m *Multipole) split(s *body.Store, start, end int) int {
	idx := len(m.cells)
	m.cells = append(m.cells, cell{start: start, end: end, left: -1, right: -1})
	if end-start <= leafSize {
		m.cells[idx].leaf = true
		return idx
	}

	lo, hi := s.Pos[m.order[start]], s.Pos[m.order[start]]
	for _, b := range m.order[start+1 : end] {
		p := s.Pos[b]
		lo = r3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = r3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	spread := r3.Sub(hi, lo)
	dim, size := 0, spread.X
	if spread.Y > size {
		dim, size = 1, spread.Y
	}
	if spread.Z > size {
		dim, size = 2, spread.Z
	}

	mid := (start + end) / 2
	selectNth(m.order[start:end], mid-start, func(b int) float64 { return axis(s.Pos[b], dim) })

	left := m.split(s, start, mid)
	right := m.split(s, mid, end)
	c := &m.cells[idx]
	c.size = size
	c.left = left
	c.right = right
	return idx
}

// moments fills mass, center of mass and quadrupole bottom-up.
func (m *Multipole) moments(s *body.Store) {
	for idx := len(m.cells) - 1; idx >= 0; idx-- {
		c := &m.cells[idx]
		if c.leaf {
			var mass float64
			var weighted r3.Vec
			for _, b := range m.order[c.start:c.end] {
				mass += s.Mass[b]
				weighted = r3.Add(weighted, r3.Scale(s.Mass[b], s.Pos[b]))
			}
			c.mass = mass
			if mass > 0 {
				c.com = r3.Scale(1/mass, weighted)
			}
			var q quadrupole
			for _, b := range m.order[c.start:c.end] {
				q = q.shifted(s.Mass[b], r3.Sub(s.Pos[b], c.com))
			}
			c.quad = q
			continue
		}

		l, r := &m.cells[c.left], &m.cells[c.right]
		c.mass = l.mass + r.mass
		if c.mass > 0 {
			c.com = r3.Scale(1/c.mass, r3.Add(r3.Scale(l.mass, l.com), r3.Scale(r.mass, r.com)))
		}
		q := l.quad.add(r.quad)
		q = q.shifted(l.mass, r3.Sub(l.com, c.com))
		c.quad = q.shifted(r.mass, r3.Sub(r.com, c.com))
	}
}

func (m *Multipole) accelOn(s *body.Store, i int) (a r3.Vec, cells, bodies int64) {
	pi := s.Pos[i]
	theta2 := m.theta * m.theta

	stack := make([]int, 0, 64)
	stack = append(stack, 0)
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		c := &m.cells[idx]

		if c.leaf {
			for _, b := range m.order[c.start:c.end] {
				if b == i {
					continue
				}
				a = r3.Add(a, m.gravity.Accel(pi, s.Pos[b], s.Mass[b]))
				bodies++
			}
			continue
		}

		d := r3.Sub(pi, c.com)
		if c.size*c.size < theta2*r3.Norm2(d) {
			a = r3.Add(a, m.farField(c, d))
			cells++
			continue
		}
		stack = append(stack, c.right, c.left)
	}
	return a, cells, bodies
}

// farField evaluates the monopole and quadrupole terms of a cell at offset
// d from its center of mass.
func (m *Multipole) farField(c *cell, d r3.Vec) r3.Vec {
	g := m.gravity
	r2 := r3.Norm2(d) + g.Softening*g.Softening
	rInv := 1 / math.Sqrt(r2)
	rInv2 := rInv * rInv
	rInv3 := rInv * rInv2
	rInv5 := rInv3 * rInv2
	rInv7 := rInv5 * rInv2

	qd := c.quad.apply(d)
	dqd := r3.Dot(d, qd)

	a := r3.Scale(-c.mass*rInv3, d)
	a = r3.Add(a, r3.Scale(rInv5, qd))
	a = r3.Add(a, r3.Scale(-2.5*dqd*rInv7, d))
	return r3.Scale(g.G, a)
}

func axis(v r3.Vec, dim int) float64 {
	switch dim {
	case 1:
		return v.Y
	case 2:
		return v.Z
	default:
		return v.X
	}
}

// selectNth partially orders idx so that idx[k] holds the element of rank k
// under key, with smaller keys before it and larger keys after.
func selectNth(idx []int, k int, key func(int) float64) {
	lo, hi := 0, len(idx)-1
	for lo < hi {
		pivot := key(idx[(lo+hi)/2])
		i, j := lo, hi
		for i <= j {
			for key(idx[i]) < pivot {
				i++
			}
			for key(idx[j]) > pivot {
				j--
			}
			if i <= j {
				idx[i], idx[j] = idx[j], idx[i]
				i++
				j--
			}
		}
		switch {
		case k <= j:
			hi = j
		case k >= i:
			lo = i
		default:
			return
		}
	}
}
