package automation

import (
	"context"
	"fmt"
	"math"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/kr1s0404/fmm/internal/body"
	"github.com/kr1s0404/fmm/internal/config"
	"github.com/kr1s0404/fmm/internal/dynamo"
	"github.com/kr1s0404/fmm/internal/experiment"
	"github.com/kr1s0404/fmm/internal/sim"
)

// Scenario defines a scripted simulation sequence
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is a single run. Empty fields fall back to the preset, then
// to the base configuration.
type ScenarioStep struct {
	Scene      string  `yaml:"scene"`
	Preset     string  `yaml:"preset"`
	Bodies     int     `yaml:"bodies"`
	Seed       int64   `yaml:"seed"`
	Integrator string  `yaml:"integrator"`
	Backend    string  `yaml:"backend"`
	Mode       string  `yaml:"mode"`
	Dt         float64 `yaml:"dt"`
	Frames     int     `yaml:"frames"`
	SaveAs     string  `yaml:"save_as"`
}

// Config resolves the step against base without modifying it.
func (s ScenarioStep) Config(base *config.Config) (*config.Config, error) {
	cfg := *base
	if s.Scene != "" {
		cfg.SetScene(s.Scene)
	}
	if s.Preset != "" {
		p, ok := config.Presets[cfg.Scene][s.Preset]
		if !ok {
			return nil, fmt.Errorf("%w: no preset %q for scene %s", dynamo.ErrInvalidConfig, s.Preset, cfg.Scene)
		}
		p.Apply(&cfg)
	}
	config.Preset{
		Bodies:     s.Bodies,
		Dt:         s.Dt,
		Frames:     s.Frames,
		Integrator: s.Integrator,
		Backend:    s.Backend,
		Mode:       s.Mode,
		Seed:       s.Seed,
	}.Apply(&cfg)
	if s.SaveAs != "" {
		cfg.Render.Output = s.SaveAs
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}

	return &scenario, nil
}

type StepResult struct {
	Name   string
	Config experiment.Config
	Result *dynamo.Result
}

func prepare(cfg experiment.Config, reg *experiment.Registry, log zerolog.Logger) (*experiment.Experiment, error) {
	exp := experiment.New(cfg)
	if err := exp.Setup(reg, log, reg.DefaultMetrics(cfg.Gravity())...); err != nil {
		return nil, err
	}
	return exp, nil
}

// RunScenario executes all steps in a scenario
func RunScenario(ctx context.Context, scenario *Scenario, base *config.Config, reg *experiment.Registry, log zerolog.Logger) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		cfg, err := step.Config(base)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		log.Info().Int("step", i+1).Int("of", len(scenario.Steps)).Str("scene", cfg.Scene).
			Int("bodies", cfg.Bodies).Msg("running step")

		expCfg := cfg.Experiment()
		exp, err := prepare(expCfg, reg, log)
		if err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}

		result, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		name := step.SaveAs
		if name == "" {
			name = fmt.Sprintf("step%d_%s", i+1, expCfg.Scene)
		}
		results = append(results, StepResult{Name: name, Config: expCfg, Result: result})
	}

	return results, nil
}

// ParameterSweep runs the same scene across a range of one of the
// experiment.Tunable parameters.
type ParameterSweep struct {
	Param    string
	Min      float64
	Max      float64
	NumSteps int
}

// SweepResult holds results from a parameter sweep
type SweepResult struct {
	ParamValue  float64
	EnergyDrift float64
	MaxEnergy   float64
	MinEnergy   float64
}

// RunSweep executes a parameter sweep
func RunSweep(ctx context.Context, sweep *ParameterSweep, base experiment.Config, reg *experiment.Registry, log zerolog.Logger) ([]SweepResult, error) {
	if sweep.NumSteps < 1 {
		return nil, fmt.Errorf("%w: sweep needs at least one step", dynamo.ErrInvalidConfig)
	}
	results := make([]SweepResult, 0, sweep.NumSteps)

	paramStep := 0.0
	if sweep.NumSteps > 1 {
		paramStep = (sweep.Max - sweep.Min) / float64(sweep.NumSteps-1)
	}

	for i := 0; i < sweep.NumSteps; i++ {
		paramVal := sweep.Min + float64(i)*paramStep
		cfg := base
		if err := cfg.Set(sweep.Param, paramVal); err != nil {
			return nil, err
		}

		exp, err := prepare(cfg, reg, zerolog.Nop())
		if err != nil {
			return nil, err
		}
		result, err := exp.Run(ctx)
		if err != nil {
			return nil, err
		}

		sr := SweepResult{ParamValue: paramVal, EnergyDrift: result.EnergyDrift}
		sr.MinEnergy, sr.MaxEnergy = energyRange(result.Energies)
		results = append(results, sr)

		log.Info().Int("step", i+1).Int("of", sweep.NumSteps).Str("param", sweep.Param).
			Float64("value", paramVal).Float64("energy_drift", result.EnergyDrift).Msg("sweep")
	}

	return results, nil
}

func energyRange(energies []float64) (lo, hi float64) {
	if len(energies) == 0 {
		return 0, 0
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, e := range energies {
		lo = math.Min(lo, e)
		hi = math.Max(hi, e)
	}
	return lo, hi
}

// MonteCarloConfig runs NumTrials copies of a scene with consecutive seeds.
type MonteCarloConfig struct {
	NumTrials int
	SeedStart int64
}

// MonteCarloResult holds statistics from Monte Carlo runs
type MonteCarloResult struct {
	Seed        int64
	EnergyDrift float64
	Stability   float64
	Stable      bool // no frame left the stability radius
}

// RunMonteCarlo executes all trials concurrently, one simulator per trial.
func RunMonteCarlo(ctx context.Context, mc *MonteCarloConfig, base experiment.Config, reg *experiment.Registry) ([]MonteCarloResult, error) {
	if mc.NumTrials < 1 {
		return nil, fmt.Errorf("%w: need at least one trial", dynamo.ErrInvalidConfig)
	}
	// resolve names once so the factory below cannot fail
	probe, err := prepare(base, reg, zerolog.Nop())
	if err != nil {
		return nil, err
	}

	newSim := func() *sim.Simulator {
		exp, _ := prepare(base, reg, zerolog.Nop())
		return exp.GetSimulator()
	}
	scene := func(seed int64) *body.Store {
		cfg := base
		cfg.Seed = seed
		return experiment.New(cfg).Scene()
	}

	results, err := sim.NewEnsemble(newSim, mc.NumTrials, mc.SeedStart).Run(ctx, scene, probe.SimConfig())
	if err != nil {
		return nil, err
	}

	out := make([]MonteCarloResult, len(results))
	for i, r := range results {
		stability := r.Metrics["stability"]
		out[i] = MonteCarloResult{
			Seed:        mc.SeedStart + int64(i),
			EnergyDrift: r.EnergyDrift,
			Stability:   stability,
			Stable:      stability == 1,
		}
	}
	return out, nil
}

// MonteCarloStats computes summary statistics from Monte Carlo results
func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}
