package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kr1s0404/fmm/internal/body"
	"github.com/kr1s0404/fmm/internal/dynamo"
	"github.com/kr1s0404/fmm/internal/sim"
)

// Stepper advances a store by one cfg.Dt. *sim.Simulator satisfies it.
type Stepper interface {
	Step(st *body.Store, cfg sim.Config) error
}

// Lyapunov estimates the largest Lyapunov exponent of st over cfg.Frames
// steps. A twin of st has the first body shifted by perturbation along x;
// after every step the separation in phase space is logged and the twin
// is pulled back to distance perturbation along the same direction.
// st is not modified.
func Lyapunov(stepper Stepper, st *body.Store, cfg sim.Config, perturbation float64) (float64, error) {
	if perturbation <= 0 || math.IsNaN(perturbation) {
		return 0, fmt.Errorf("%w: perturbation must be positive, got %v", dynamo.ErrInvalidConfig, perturbation)
	}
	if st.Len() == 0 {
		return 0, errors.New("lyapunov: empty scene")
	}
	if cfg.Frames <= 0 || cfg.Dt <= 0 {
		return 0, fmt.Errorf("%w: need positive frames and dt", dynamo.ErrInvalidConfig)
	}

	a := st.Clone()
	b := st.Clone()
	b.Pos[0].X += perturbation

	sumLog := 0.0
	for frame := 0; frame < cfg.Frames; frame++ {
		if err := stepper.Step(a, cfg); err != nil {
			return 0, fmt.Errorf("frame %d: %w", frame, err)
		}
		if err := stepper.Step(b, cfg); err != nil {
			return 0, fmt.Errorf("frame %d: %w", frame, err)
		}

		d := separation(a, b)
		if d == 0 || math.IsInf(d, 0) || math.IsNaN(d) {
			return 0, fmt.Errorf("frame %d: %w", frame, dynamo.ErrNumericInstability)
		}
		sumLog += math.Log(d / perturbation)
		renormalize(a, b, perturbation/d)
	}
	return sumLog / (float64(cfg.Frames) * cfg.Dt), nil
}

func separation(a, b *body.Store) float64 {
	sum := 0.0
	for i := range a.Pos {
		sum += r3.Norm2(r3.Sub(b.Pos[i], a.Pos[i]))
		sum += r3.Norm2(r3.Sub(b.Vel[i], a.Vel[i]))
	}
	return math.Sqrt(sum)
}

func renormalize(a, b *body.Store, scale float64) {
	for i := range a.Pos {
		b.Pos[i] = r3.Add(a.Pos[i], r3.Scale(scale, r3.Sub(b.Pos[i], a.Pos[i])))
		b.Vel[i] = r3.Add(a.Vel[i], r3.Scale(scale, r3.Sub(b.Vel[i], a.Vel[i])))
	}
}
