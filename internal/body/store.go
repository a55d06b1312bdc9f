package body

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Store holds the state of every body as parallel slices indexed 0..N-1.
// The index is the only identity a body has; N never changes after
// construction.
type Store struct {
	Pos  []r3.Vec
	Vel  []r3.Vec
	Acc  []r3.Vec
	Mass []float64
}

func NewStore(n int) *Store {
	if n < 0 {
		n = 0
	}
	return &Store{
		Pos:  make([]r3.Vec, n),
		Vel:  make([]r3.Vec, n),
		Acc:  make([]r3.Vec, n),
		Mass: make([]float64, n),
	}
}

func (s *Store) Len() int { return len(s.Mass) }

// Set writes position, velocity and mass of body i and clears its
// acceleration.
func (s *Store) Set(i int, pos, vel r3.Vec, mass float64) {
	s.Pos[i] = pos
	s.Vel[i] = vel
	s.Acc[i] = r3.Vec{}
	s.Mass[i] = mass
}

func (s *Store) Clone() *Store {
	c := NewStore(s.Len())
	copy(c.Pos, s.Pos)
	copy(c.Vel, s.Vel)
	copy(c.Acc, s.Acc)
	copy(c.Mass, s.Mass)
	return c
}

// ClearAcc zeroes the accelerations of bodies [0, count).
func (s *Store) ClearAcc(count int) {
	count = s.clamp(count)
	for i := 0; i < count; i++ {
		s.Acc[i] = r3.Vec{}
	}
}

// IsValid reports whether every position, velocity, acceleration and mass
// is finite and every mass is positive.
func (s *Store) IsValid() bool {
	for i := range s.Mass {
		m := s.Mass[i]
		if !(m > 0) || math.IsInf(m, 0) {
			return false
		}
		if !finite(s.Pos[i]) || !finite(s.Vel[i]) || !finite(s.Acc[i]) {
			return false
		}
	}
	return true
}

// AccFinite reports whether accelerations [0, count) are all finite.
func (s *Store) AccFinite(count int) bool {
	count = s.clamp(count)
	for i := 0; i < count; i++ {
		if !finite(s.Acc[i]) {
			return false
		}
	}
	return true
}

func (s *Store) TotalMass() float64 {
	total := 0.0
	for _, m := range s.Mass {
		total += m
	}
	return total
}

func (s *Store) KineticEnergy() float64 {
	ke := 0.0
	for i, m := range s.Mass {
		ke += 0.5 * m * r3.Norm2(s.Vel[i])
	}
	return ke
}

func (s *Store) Momentum() r3.Vec {
	var p r3.Vec
	for i, m := range s.Mass {
		p = r3.Add(p, r3.Scale(m, s.Vel[i]))
	}
	return p
}

func (s *Store) AngularMomentum() r3.Vec {
	var l r3.Vec
	for i, m := range s.Mass {
		l = r3.Add(l, r3.Scale(m, r3.Cross(s.Pos[i], s.Vel[i])))
	}
	return l
}

func (s *Store) CenterOfMass() r3.Vec {
	total := s.TotalMass()
	if total == 0 {
		return r3.Vec{}
	}
	var c r3.Vec
	for i, m := range s.Mass {
		c = r3.Add(c, r3.Scale(m, s.Pos[i]))
	}
	return r3.Scale(1/total, c)
}

// MaxDistance returns the largest distance of any body from the origin.
func (s *Store) MaxDistance() float64 {
	d := 0.0
	for _, p := range s.Pos {
		if n := r3.Norm(p); n > d {
			d = n
		}
	}
	return d
}

func (s *Store) clamp(count int) int {
	if count < 0 {
		return 0
	}
	if count > s.Len() {
		return s.Len()
	}
	return count
}

func finite(v r3.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}
