package metrics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kr1s0404/fmm/internal/body"
)

// MomentumDrift is the largest change of total linear momentum from the
// first frame. Pairwise-symmetric forces keep it at rounding level; an
// approximate backend does not.
type MomentumDrift struct {
	name    string
	initial r3.Vec
	max     float64
	samples int
}

func NewMomentumDrift() *MomentumDrift {
	return &MomentumDrift{name: "momentum_drift"}
}

func (m *MomentumDrift) Name() string { return m.name }

func (m *MomentumDrift) Observe(s *body.Store, t float64) {
	p := s.Momentum()
	if m.samples == 0 {
		m.initial = p
	}
	m.samples++
	m.max = math.Max(m.max, r3.Norm(r3.Sub(p, m.initial)))
}

func (m *MomentumDrift) Value() float64 { return m.max }

func (m *MomentumDrift) Reset() {
	m.initial = r3.Vec{}
	m.max = 0
	m.samples = 0
}
