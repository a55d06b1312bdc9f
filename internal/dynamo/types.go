package dynamo

import "github.com/kr1s0404/fmm/internal/body"

// Metric accumulates a scalar over the frames of a run.
type Metric interface {
	Name() string
	Observe(s *body.Store, t float64)
	Value() float64
	Reset()
}

// Observer is notified once per frame, after forces are evaluated and
// before the store is advanced.
type Observer interface {
	OnFrame(frame, total int, t float64, s *body.Store)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(frame, total int, t float64, s *body.Store)

func (f ObserverFunc) OnFrame(frame, total int, t float64, s *body.Store) {
	f(frame, total, t, s)
}

type Result struct {
	Frames      int
	Time        float64
	Times       []float64
	Energies    []float64
	Scales      []float64
	Metrics     map[string]float64
	EnergyDrift float64
	Errors      []error
}
