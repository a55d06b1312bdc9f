package integrators

import (
	"fmt"
	"runtime"
	"sort"

	"github.com/dgravesa/go-parallel/parallel"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kr1s0404/fmm/internal/body"
)

// Integrator advances velocities and positions of a store by dt using the
// accelerations already in it.
type Integrator interface {
	Name() string
	Step(s *body.Store, dt float64)
}

const parallelCutoff = 4096

// SymplecticEuler kicks then drifts: v += a·dt, then p += v·dt with the
// updated velocity.
type SymplecticEuler struct {
	workers int
}

func NewSymplecticEuler() *SymplecticEuler {
	return &SymplecticEuler{workers: runtime.NumCPU()}
}

func (e *SymplecticEuler) Name() string { return "symplectic" }

func (e *SymplecticEuler) Step(s *body.Store, dt float64) {
	forEach(s.Len(), e.workers, func(i int) {
		s.Vel[i] = r3.Add(s.Vel[i], r3.Scale(dt, s.Acc[i]))
		s.Pos[i] = r3.Add(s.Pos[i], r3.Scale(dt, s.Vel[i]))
	})
}

// ExplicitEuler drifts with the old velocity before kicking. It does not
// preserve phase-space volume and its energy drifts secularly.
type ExplicitEuler struct {
	workers int
}

func NewExplicitEuler() *ExplicitEuler {
	return &ExplicitEuler{workers: runtime.NumCPU()}
}

func (e *ExplicitEuler) Name() string { return "explicit" }

func (e *ExplicitEuler) Step(s *body.Store, dt float64) {
	forEach(s.Len(), e.workers, func(i int) {
		s.Pos[i] = r3.Add(s.Pos[i], r3.Scale(dt, s.Vel[i]))
		s.Vel[i] = r3.Add(s.Vel[i], r3.Scale(dt, s.Acc[i]))
	})
}

func forEach(n, workers int, fn func(i int)) {
	if n < parallelCutoff || workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	parallel.WithNumGoroutines(workers).For(n, func(i, _ int) {
		fn(i)
	})
}

var registry = map[string]func() Integrator{
	"symplectic": func() Integrator { return NewSymplecticEuler() },
	"explicit":   func() Integrator { return NewExplicitEuler() },
}

func New(name string) (Integrator, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator %q (available: %v)", name, Names())
	}
	return f(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
