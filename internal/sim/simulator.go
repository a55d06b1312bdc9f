package sim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/kr1s0404/fmm/internal/body"
	"github.com/kr1s0404/fmm/internal/compute"
	"github.com/kr1s0404/fmm/internal/dynamo"
	"github.com/kr1s0404/fmm/internal/integrators"
	"github.com/kr1s0404/fmm/internal/physics"
	"github.com/kr1s0404/fmm/internal/render"
)

type Simulator struct {
	eval       *compute.Evaluator
	integrator integrators.Integrator
	gravity    physics.Gravity
	projector  *render.Projector
	sink       FrameSink
	metrics    []dynamo.Metric
	observers  []dynamo.Observer
	log        zerolog.Logger
}

func New(eval *compute.Evaluator, integrator integrators.Integrator, g physics.Gravity) *Simulator {
	return &Simulator{
		eval:       eval,
		integrator: integrator,
		gravity:    g,
		metrics:    make([]dynamo.Metric, 0),
		observers:  make([]dynamo.Observer, 0),
		log:        zerolog.Nop(),
	}
}

// WithRenderer renders every frame with p and hands it to sink. Either may
// be nil.
func (s *Simulator) WithRenderer(p *render.Projector, sink FrameSink) *Simulator {
	s.projector = p
	s.sink = sink
	return s
}

func (s *Simulator) WithLogger(l zerolog.Logger) *Simulator {
	s.log = l
	return s
}

func (s *Simulator) AddMetric(m dynamo.Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }

// Run advances st for cfg.Frames frames. Each frame evaluates forces,
// renders and emits the current positions, then integrates. A sink failure
// is recorded in the result and the run continues; non-finite forces end
// the run when cfg.ValidateState is set.
func (s *Simulator) Run(ctx context.Context, st *body.Store, cfg Config) (*dynamo.Result, error) {
	if err := s.validateConfig(st, cfg); err != nil {
		return nil, err
	}

	result := &dynamo.Result{
		Times:   make([]float64, 0, cfg.Frames),
		Metrics: make(map[string]float64),
		Errors:  make([]error, 0),
	}
	if cfg.RecordEnergy {
		result.Energies = make([]float64, 0, cfg.Frames)
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	t := 0.0
	n := st.Len()
	s.log.Info().Int("bodies", n).Int("frames", cfg.Frames).Str("mode", cfg.Mode.String()).
		Str("integrator", s.integrator.Name()).Msg("simulation started")

	for i := 0; i < cfg.Frames; i++ {
		select {
		case <-ctx.Done():
			s.finish(result)
			return result, ctx.Err()
		default:
		}

		if err := s.eval.Evaluate(st, cfg.Mode); err != nil {
			s.finish(result)
			return result, &dynamo.SimError{Frame: i, Time: t, Wrapped: err}
		}
		if cfg.ValidateState && !st.AccFinite(n) {
			err := &dynamo.SimError{Frame: i, Time: t, Wrapped: dynamo.ErrNumericInstability}
			result.Errors = append(result.Errors, err)
			s.finish(result)
			return result, err
		}

		for _, m := range s.metrics {
			m.Observe(st, t)
		}
		for _, obs := range s.observers {
			obs.OnFrame(i, cfg.Frames, t, st)
		}
		if cfg.RecordEnergy {
			result.Energies = append(result.Energies, s.gravity.Energy(st))
		}
		s.emit(st, i, result)

		s.log.Debug().Msgf("processing frame %d of %d", i, cfg.Frames)
		if cfg.ProgressEvery > 0 && i%cfg.ProgressEvery == 0 {
			s.log.Info().Int("frame", i).Int("total", cfg.Frames).Float64("t", t).Msg("progress")
		}

		s.integrator.Step(st, cfg.Dt)
		result.Times = append(result.Times, t)
		t += cfg.Dt
		result.Frames++
	}

	s.finish(result)
	result.Time = t
	s.log.Info().Int("frames", result.Frames).Float64("energy_drift", result.EnergyDrift).
		Msg("simulation finished")
	return result, nil
}

// Step evaluates forces and advances st by one cfg.Dt without rendering,
// observers or metrics. Interactive front ends drive a run with it one
// frame at a time.
func (s *Simulator) Step(st *body.Store, cfg Config) error {
	if err := s.validateConfig(st, cfg); err != nil {
		return err
	}
	if err := s.eval.Evaluate(st, cfg.Mode); err != nil {
		return err
	}
	if cfg.ValidateState && !st.AccFinite(st.Len()) {
		return dynamo.ErrNumericInstability
	}
	s.integrator.Step(st, cfg.Dt)
	return nil
}

func (s *Simulator) emit(st *body.Store, index int, result *dynamo.Result) {
	if s.projector == nil {
		return
	}
	frame := s.projector.Render(st, index)
	result.Scales = append(result.Scales, frame.Scale)
	if s.sink != nil {
		if err := s.sink.WriteFrame(frame); err != nil {
			result.Errors = append(result.Errors, err)
			if !errors.Is(err, dynamo.ErrSinkUnavailable) {
				s.log.Warn().Err(err).Int("frame", index).Msg("frame dropped")
			}
		}
	}
	s.projector.Release(frame)
}

func (s *Simulator) finish(result *dynamo.Result) {
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	if len(result.Energies) > 1 {
		e0 := result.Energies[0]
		e1 := result.Energies[len(result.Energies)-1]
		if e0 != 0 {
			result.EnergyDrift = math.Abs(e1-e0) / math.Abs(e0)
		}
	}
}

func (s *Simulator) validateConfig(st *body.Store, cfg Config) error {
	if st == nil {
		return fmt.Errorf("%w: nil body store", dynamo.ErrInvalidConfig)
	}
	if !(cfg.Dt > 0) || math.IsInf(cfg.Dt, 0) {
		return fmt.Errorf("%w: dt must be positive, got %f", dynamo.ErrInvalidConfig, cfg.Dt)
	}
	if cfg.Frames < 0 {
		return fmt.Errorf("%w: frames must not be negative, got %d", dynamo.ErrInvalidConfig, cfg.Frames)
	}
	if s.eval == nil || s.integrator == nil {
		return fmt.Errorf("%w: simulator needs an evaluator and an integrator", dynamo.ErrInvalidConfig)
	}
	return nil
}
