package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kr1s0404/fmm/internal/body"
	"github.com/kr1s0404/fmm/internal/compute"
	"github.com/kr1s0404/fmm/internal/dynamo"
	"github.com/kr1s0404/fmm/internal/integrators"
	"github.com/kr1s0404/fmm/internal/metrics"
	"github.com/kr1s0404/fmm/internal/physics"
	"github.com/kr1s0404/fmm/internal/scene"
)

func restingPair() *body.Store {
	s := body.NewStore(2)
	s.Set(0, r3.Vec{X: -2}, r3.Vec{}, 10)
	s.Set(1, r3.Vec{X: 2}, r3.Vec{}, 10)
	return s
}

func newDirectSim(workers int) *Simulator {
	g := physics.NewGravity()
	return New(compute.NewEvaluator(compute.NewDirect(g, workers), nil), integrators.NewSymplecticEuler(), g)
}

func TestSimulatorInvalidConfig(t *testing.T) {
	sim := newDirectSim(1)

	tests := []struct {
		name string
		st   *body.Store
		cfg  Config
	}{
		{"nil store", nil, Config{Dt: 0.1, Frames: 1}},
		{"zero dt", restingPair(), Config{Dt: 0, Frames: 1}},
		{"negative dt", restingPair(), Config{Dt: -0.1, Frames: 1}},
		{"negative frames", restingPair(), Config{Dt: 0.1, Frames: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sim.Run(context.Background(), tt.st, tt.cfg)
			if !errors.Is(err, dynamo.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestSimulatorZeroFrames(t *testing.T) {
	st := restingPair()
	res, err := newDirectSim(1).Run(context.Background(), st, Config{Dt: 0.1})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Frames != 0 || st.Pos[0].X != -2 {
		t.Errorf("zero frames should leave the store untouched")
	}
}

func TestSimulatorDeterministic(t *testing.T) {
	g := physics.NewGravity()
	initial := scene.NewGenerator(7, g).Generate(scene.SpiralGalaxy, 300)
	cfg := Config{Dt: 0.01, Frames: 30, ValidateState: true}

	a, b := initial.Clone(), initial.Clone()
	if _, err := newDirectSim(1).Run(context.Background(), a, cfg); err != nil {
		t.Fatal(err)
	}
	if _, err := newDirectSim(4).Run(context.Background(), b, cfg); err != nil {
		t.Fatal(err)
	}

	for i := range a.Pos {
		if a.Pos[i] != b.Pos[i] || a.Vel[i] != b.Vel[i] {
			t.Fatalf("body %d diverged: %v vs %v", i, a.Pos[i], b.Pos[i])
		}
	}
}

func TestSimulatorMetrics(t *testing.T) {
	g := physics.NewGravity()
	sim := newDirectSim(1)
	sim.AddMetric(metrics.NewEnergyDrift(g))
	sim.AddMetric(metrics.NewMomentumDrift())

	frames := 0
	sim.AddObserver(dynamo.ObserverFunc(func(frame, total int, now float64, _ *body.Store) {
		if frame != frames || total != 10 {
			t.Errorf("unexpected frame %d of %d", frame, total)
		}
		if math.Abs(now-float64(frame)*0.01) > 1e-9 {
			t.Errorf("frame %d observed at t=%v", frame, now)
		}
		frames++
	}))

	res, err := sim.Run(context.Background(), restingPair(), Config{Dt: 0.01, Frames: 10})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if frames != 10 {
		t.Errorf("expected 10 observer calls, got %d", frames)
	}
	for _, name := range []string{"energy_drift", "momentum_drift"} {
		if _, ok := res.Metrics[name]; !ok {
			t.Errorf("metric %s not found in result", name)
		}
	}
	if p := res.Metrics["momentum_drift"]; p > 1e-12 {
		t.Errorf("direct forces should conserve momentum, drift %v", p)
	}
}

func TestEnsemble(t *testing.T) {
	g := physics.NewGravity()
	gen := func(seed int64) *body.Store {
		return scene.NewGenerator(seed, g).Generate(scene.Random, 16)
	}
	ens := NewEnsemble(func() *Simulator { return newDirectSim(1) }, 3, 100)

	results, err := ens.Run(context.Background(), gen, Config{Dt: 0.01, Frames: 5, RecordEnergy: true})
	if err != nil {
		t.Fatalf("ensemble failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Frames != 5 {
			t.Errorf("run %d: expected 5 frames, got %d", i, r.Frames)
		}
		if want := g.Energy(gen(100 + int64(i))); r.Energies[0] != want {
			t.Errorf("run %d: started from the wrong seed", i)
		}
	}
}

func TestEnsembleError(t *testing.T) {
	ens := NewEnsemble(func() *Simulator { return newDirectSim(1) }, 2, 0)
	_, err := ens.Run(context.Background(), func(int64) *body.Store { return restingPair() }, Config{Dt: 0})
	if !errors.Is(err, dynamo.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestSimulatorStepMatchesRun(t *testing.T) {
	cfg := Config{Dt: 0.01, Frames: 5, ValidateState: true}

	a, b := restingPair(), restingPair()
	if _, err := newDirectSim(1).Run(context.Background(), a, cfg); err != nil {
		t.Fatal(err)
	}
	stepper := newDirectSim(1)
	for i := 0; i < cfg.Frames; i++ {
		if err := stepper.Step(b, cfg); err != nil {
			t.Fatal(err)
		}
	}
	for i := range a.Pos {
		if a.Pos[i] != b.Pos[i] || a.Vel[i] != b.Vel[i] {
			t.Errorf("body %d: step %v, run %v", i, b.Pos[i], a.Pos[i])
		}
	}

	if err := stepper.Step(b, Config{Dt: 0}); !errors.Is(err, dynamo.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
