package physics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kr1s0404/fmm/internal/body"
)

const (
	DefaultG         = 1.0
	DefaultSoftening = 0.1
)

// Gravity is the softened Newtonian pair law shared by every force backend.
type Gravity struct {
	G         float64
	Softening float64
}

func NewGravity() Gravity {
	return Gravity{G: DefaultG, Softening: DefaultSoftening}
}

// Accel returns the acceleration a body at pi receives from a mass mj at pj:
// G·mj·(pj−pi)/(|pj−pi|²+ε²)^{3/2}.
func (g Gravity) Accel(pi, pj r3.Vec, mj float64) r3.Vec {
	d := r3.Sub(pj, pi)
	r2 := r3.Norm2(d) + g.Softening*g.Softening
	rInv := 1.0 / math.Sqrt(r2)
	return r3.Scale(g.G*mj*rInv*rInv*rInv, d)
}

// Bound is the magnitude no single pair contribution from mass m can exceed.
func (g Gravity) Bound(m float64) float64 {
	return g.G * m / (g.Softening * g.Softening)
}

// PotentialEnergy uses the same softening as Accel, so total energy is the
// quantity the integrator approximately conserves.
func (g Gravity) PotentialEnergy(s *body.Store) float64 {
	n := s.Len()
	eps2 := g.Softening * g.Softening
	pe := 0.0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			r := math.Sqrt(r3.Norm2(r3.Sub(s.Pos[j], s.Pos[i])) + eps2)
			pe -= g.G * s.Mass[i] * s.Mass[j] / r
		}
	}
	return pe
}

func (g Gravity) Energy(s *body.Store) float64 {
	return s.KineticEnergy() + g.PotentialEnergy(s)
}

// OrbitalSpeed is the circular speed at radius r around a central mass.
func (g Gravity) OrbitalSpeed(central, r float64) float64 {
	return math.Sqrt(g.G * central / r)
}
