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
	DefaultTreeTheta = 0.3
	treeLeafSize     = 8

	// bodies closer together than the root side / 2^maxTreeDepth share a leaf
	maxTreeDepth = 32
)

// octant is an octree node covering the cube center ± half. Its bodies are
// order[start:end]. Children are appended after their parent, so a reverse
// walk over the node slice visits children first.
type octant struct {
	center     r3.Vec
	half       float64
	start, end int
	children   [8]int32
	leaf       bool

	mass float64
	com  r3.Vec
}

func (o *octant) contains(p r3.Vec) bool {
	return math.Abs(p.X-o.center.X) <= o.half &&
		math.Abs(p.Y-o.center.Y) <= o.half &&
		math.Abs(p.Z-o.center.Z) <= o.half
}

// Tree is a Barnes-Hut octree solver using monopole cell approximations.
// A cell whose side over the distance to its center of mass is below Theta
// acts as a single mass, unless the target body lies inside it.
type Tree struct {
	gravity physics.Gravity
	theta   float64
	workers int

	order   []int
	scratch []int
	nodes   []octant
	last    Timings
}

func NewTree(g physics.Gravity, theta float64, workers int) *Tree {
	if theta <= 0 {
		theta = DefaultTreeTheta
	}
	if workers < 1 {
		workers = 1
	}
	return &Tree{gravity: g, theta: theta, workers: workers}
}

func (t *Tree) Name() string         { return "tree" }
func (t *Tree) Theta() float64       { return t.theta }
func (t *Tree) LastTimings() Timings { return t.last }

func (t *Tree) Solve(s *body.Store, count int) error {
	count = clampCount(s, count)
	t.last = Timings{}
	if count == 0 {
		return nil
	}

	start := time.Now()
	t.build(s, count)
	t.last.Build = time.Since(start)

	start = time.Now()
	t.moments(s)
	t.last.Moments = time.Since(start)

	var ctr counter
	start = time.Now()
	parallel.WithNumGoroutines(t.workers).For(count, func(i, _ int) {
		a, cells, bodies := t.accelOn(s, i)
		s.Acc[i] = a
		ctr.add(cells, bodies)
	})
	t.last.Traverse = time.Since(start)
	t.last.CellInteractions = ctr.cells.Load()
	t.last.BodyInteractions = ctr.bodies.Load()
	return nil
}

func (t *Tree) build(s *body.Store, count int) {
	if cap(t.order) < count {
		t.order = make([]int, count)
		t.scratch = make([]int, count)
	}
	t.order = t.order[:count]
	t.scratch = t.scratch[:count]
	for i := range t.order {
		t.order[i] = i
	}

	lo, hi := s.Pos[0], s.Pos[0]
	for _, p := range s.Pos[1:count] {
		lo = r3.Vec{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = r3.Vec{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	spread := r3.Sub(hi, lo)
	half := 0.5 * math.Max(spread.X, math.Max(spread.Y, spread.Z))

	t.nodes = t.nodes[:0]
	t.split(s, 0, count, r3.Scale(0.5, r3.Add(lo, hi)), half, 0)
}

// split appends the node for order[start:end] and its subtree, returning
// the new node's index.
func (t *Tree) split(s *body.Store, start, end int, center r3.Vec, half float64, depth int) int {
	idx := len(t.nodes)
	t.nodes = append(t.nodes, octant{center: center, half: half, start: start, end: end, leaf: true})
	if end-start <= treeLeafSize || depth >= maxTreeDepth || half == 0 {
		return idx
	}

	var counts [8]int
	for _, b := range t.order[start:end] {
		counts[octantOf(s.Pos[b], center)]++
	}
	var offsets, next [8]int
	pos := start
	for o, c := range counts {
		offsets[o] = pos
		pos += c
	}
	next = offsets
	for _, b := range t.order[start:end] {
		o := octantOf(s.Pos[b], center)
		t.scratch[next[o]] = b
		next[o]++
	}
	copy(t.order[start:end], t.scratch[start:end])

	var children [8]int32
	q := half / 2
	for o := range children {
		children[o] = -1
		if counts[o] == 0 {
			continue
		}
		c := r3.Vec{X: center.X - q, Y: center.Y - q, Z: center.Z - q}
		if o&1 != 0 {
			c.X += half
		}
		if o&2 != 0 {
			c.Y += half
		}
		if o&4 != 0 {
			c.Z += half
		}
		children[o] = int32(t.split(s, offsets[o], offsets[o]+counts[o], c, q, depth+1))
	}

	n := &t.nodes[idx]
	n.leaf = false
	n.children = children
	return idx
}

func octantOf(p, center r3.Vec) int {
	o := 0
	if p.X >= center.X {
		o |= 1
	}
	if p.Y >= center.Y {
		o |= 2
	}
	if p.Z >= center.Z {
		o |= 4
	}
	return o
}

// moments fills mass and mass-weighted center of every node bottom-up.
func (t *Tree) moments(s *body.Store) {
	for idx := len(t.nodes) - 1; idx >= 0; idx-- {
		n := &t.nodes[idx]
		var mass float64
		var weighted r3.Vec
		if n.leaf {
			for _, b := range t.order[n.start:n.end] {
				mass += s.Mass[b]
				weighted = r3.Add(weighted, r3.Scale(s.Mass[b], s.Pos[b]))
			}
		} else {
			for _, c := range n.children {
				if c < 0 {
					continue
				}
				child := &t.nodes[c]
				mass += child.mass
				weighted = r3.Add(weighted, r3.Scale(child.mass, child.com))
			}
		}
		n.mass = mass
		n.com = n.center
		if mass > 0 {
			n.com = r3.Scale(1/mass, weighted)
		}
	}
}

func (t *Tree) accelOn(s *body.Store, i int) (a r3.Vec, cells, bodies int64) {
	pi := s.Pos[i]
	theta2 := t.theta * t.theta

	stack := make([]int32, 0, 64)
	stack = append(stack, 0)
	for len(stack) > 0 {
		n := &t.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]

		if n.leaf {
			for _, b := range t.order[n.start:n.end] {
				if b == i {
					continue
				}
				a = r3.Add(a, t.gravity.Accel(pi, s.Pos[b], s.Mass[b]))
				bodies++
			}
			continue
		}

		side := 2 * n.half
		if side*side < theta2*r3.Norm2(r3.Sub(pi, n.com)) && !n.contains(pi) {
			a = r3.Add(a, t.gravity.Accel(pi, n.com, n.mass))
			cells++
			continue
		}
		for o := len(n.children) - 1; o >= 0; o-- {
			if c := n.children[o]; c >= 0 {
				stack = append(stack, c)
			}
		}
	}
	return a, cells, bodies
}
