package experiment

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kr1s0404/fmm/internal/body"
	"github.com/kr1s0404/fmm/internal/compute"
	"github.com/kr1s0404/fmm/internal/dynamo"
	"github.com/kr1s0404/fmm/internal/physics"
	"github.com/kr1s0404/fmm/internal/scene"
	"github.com/kr1s0404/fmm/internal/sim"
)

// Config fully describes one run: which scene to build and how to advance
// it.
type Config struct {
	Scene      string
	Bodies     int
	Seed       int64
	Backend    string
	Integrator string
	Mode       string
	Dt         float64
	Frames     int
	Theta      float64
	Workers    int
	G          float64
	Softening  float64
}

func (c Config) Gravity() physics.Gravity {
	return physics.Gravity{G: c.G, Softening: c.Softening}
}

// Tunable lists the numeric fields Set accepts.
var Tunable = []string{"dt", "theta", "softening", "g"}

// Set assigns one of the Tunable fields by name.
func (c *Config) Set(name string, value float64) error {
	switch name {
	case "dt":
		c.Dt = value
	case "theta":
		c.Theta = value
	case "softening":
		c.Softening = value
	case "g":
		c.G = value
	default:
		return fmt.Errorf("%w: unknown parameter %q (available: %v)", dynamo.ErrInvalidConfig, name, Tunable)
	}
	return nil
}

type Experiment struct {
	cfg       Config
	gravity   physics.Gravity
	variant   scene.Variant
	mode      compute.Mode
	simulator *sim.Simulator
}

func New(cfg Config) *Experiment {
	return &Experiment{
		cfg:     cfg,
		gravity: cfg.Gravity(),
		variant: scene.ParseVariant(cfg.Scene),
	}
}

func (e *Experiment) Config() Config { return e.cfg }

// Setup resolves backends and the integrator by name and builds the
// simulator. Unknown scene names fall back to random.
func (e *Experiment) Setup(reg *Registry, log zerolog.Logger, metrics ...dynamo.Metric) error {
	if e.cfg.Bodies < 1 {
		return fmt.Errorf("%w: %d", dynamo.ErrBodyCount, e.cfg.Bodies)
	}
	mode, err := compute.ParseMode(e.cfg.Mode)
	if err != nil {
		return err
	}
	opts := compute.Options{Theta: e.cfg.Theta, Workers: e.cfg.Workers}

	direct, err := reg.GetBackend("direct", e.gravity, opts)
	if err != nil {
		return err
	}
	var accel compute.Backend
	if e.cfg.Backend != "" && e.cfg.Backend != "direct" {
		if accel, err = reg.GetBackend(e.cfg.Backend, e.gravity, opts); err != nil {
			return fmt.Errorf("%w: %v", dynamo.ErrInvalidConfig, err)
		}
	}
	integ, err := reg.GetIntegrator(e.cfg.Integrator)
	if err != nil {
		return fmt.Errorf("%w: %v", dynamo.ErrInvalidConfig, err)
	}

	e.mode = mode
	e.simulator = sim.New(compute.NewEvaluator(direct, accel), integ, e.gravity).
		WithLogger(log.With().Str("scene", e.variant.String()).Logger())
	for _, m := range metrics {
		e.simulator.AddMetric(m)
	}
	return nil
}

// Scene generates the initial store from the configured seed. Repeated
// calls return identical stores.
func (e *Experiment) Scene() *body.Store {
	return scene.NewGenerator(e.cfg.Seed, e.gravity).Generate(e.variant, e.cfg.Bodies)
}

func (e *Experiment) SimConfig() sim.Config {
	cfg := sim.DefaultConfig()
	cfg.Dt = e.cfg.Dt
	cfg.Frames = e.cfg.Frames
	cfg.Mode = e.mode
	cfg.RecordEnergy = true
	return cfg
}

// Run generates the scene and runs it to completion.
func (e *Experiment) Run(ctx context.Context) (*dynamo.Result, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	return e.simulator.Run(ctx, e.Scene(), e.SimConfig())
}

// GetSimulator returns the underlying simulator for adding observers
func (e *Experiment) GetSimulator() *sim.Simulator {
	return e.simulator
}
