package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/kr1s0404/fmm/internal/compute"
	"github.com/kr1s0404/fmm/internal/dynamo"
	"github.com/kr1s0404/fmm/internal/experiment"
	"github.com/kr1s0404/fmm/internal/physics"
	"github.com/kr1s0404/fmm/internal/render"
	"github.com/kr1s0404/fmm/internal/scene"
)

const (
	DefaultScene   = "random"
	DefaultBodies  = 100
	DefaultDt      = 0.01
	DefaultFrames  = 300
	DefaultRunsDir = "runs"
	DefaultTimings = "time2.dat"

	// EnvPrefix namespaces environment overrides, e.g. NBODY_RENDER_WIDTH.
	EnvPrefix = "NBODY"
)

type Config struct {
	Scene      string           `yaml:"scene" mapstructure:"scene"`
	Bodies     int              `yaml:"bodies" mapstructure:"bodies"`
	Seed       int64            `yaml:"seed" mapstructure:"seed"`
	Dt         float64          `yaml:"dt" mapstructure:"dt"`
	Frames     int              `yaml:"frames" mapstructure:"frames"`
	Integrator string           `yaml:"integrator" mapstructure:"integrator"`
	Backend    string           `yaml:"backend" mapstructure:"backend"`
	Mode       string           `yaml:"mode" mapstructure:"mode"`
	Theta      float64          `yaml:"theta" mapstructure:"theta"`
	Workers    int              `yaml:"workers" mapstructure:"workers"`
	Gravity    GravityConfig    `yaml:"gravity" mapstructure:"gravity"`
	Render     render.Config    `yaml:"render" mapstructure:"render"`
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`
	RunsDir    string           `yaml:"runs_dir" mapstructure:"runs_dir"`
}

type GravityConfig struct {
	G         float64 `yaml:"g" mapstructure:"g"`
	Softening float64 `yaml:"softening" mapstructure:"softening"`
}

type ValidationConfig struct {
	Schedule  experiment.Schedule `yaml:"schedule" mapstructure:"schedule"`
	Tolerance float64             `yaml:"tolerance" mapstructure:"tolerance"`
	Seed      int64               `yaml:"seed" mapstructure:"seed"`
	Output    string              `yaml:"output" mapstructure:"output"`
}

func DefaultConfig() *Config {
	return &Config{
		Scene:      DefaultScene,
		Bodies:     DefaultBodies,
		Dt:         DefaultDt,
		Frames:     DefaultFrames,
		Integrator: "symplectic",
		Backend:    "tree",
		Mode:       compute.ModeDirect.String(),
		Gravity: GravityConfig{
			G:         physics.DefaultG,
			Softening: physics.DefaultSoftening,
		},
		Render: render.DefaultConfig(DefaultScene),
		Validation: ValidationConfig{
			Schedule:  experiment.DefaultSchedule(),
			Tolerance: experiment.DefaultTolerance,
			Output:    DefaultTimings,
		},
		RunsDir: DefaultRunsDir,
	}
}

// Load layers the defaults, the YAML file at path (if any) and NBODY_*
// environment variables, later layers winning. An output name left at its
// default follows the loaded scene.
func Load(path string) (*Config, error) {
	base, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(base)); err != nil {
		return nil, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	// a scene set by the file or the environment takes the default output
	// name with it
	if cfg.Render.Output == "" || cfg.Render.Output == render.OutputName(DefaultScene) {
		cfg.Render.Output = render.OutputName(cfg.Scene)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// SetScene switches the scene and follows it with the default output name
// unless one was chosen explicitly.
func (c *Config) SetScene(name string) {
	if c.Render.Output == "" || c.Render.Output == render.OutputName(c.Scene) {
		c.Render.Output = render.OutputName(name)
	}
	c.Scene = name
}

func (c *Config) Validate() error {
	if c.Bodies < 1 {
		return fmt.Errorf("%w: %d", dynamo.ErrBodyCount, c.Bodies)
	}
	if c.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive", dynamo.ErrInvalidConfig)
	}
	if c.Frames < 0 {
		return fmt.Errorf("%w: frames must not be negative", dynamo.ErrInvalidConfig)
	}
	if c.Gravity.Softening < 0 {
		return fmt.Errorf("%w: softening must not be negative", dynamo.ErrInvalidConfig)
	}
	if _, err := compute.ParseMode(c.Mode); err != nil {
		return err
	}
	return c.Render.Validate()
}

// Experiment resolves the run description. The scene name is normalized so
// aliases and unknown names store as the variant actually generated.
func (c *Config) Experiment() experiment.Config {
	return experiment.Config{
		Scene:      scene.ParseVariant(c.Scene).String(),
		Bodies:     c.Bodies,
		Seed:       c.Seed,
		Backend:    c.Backend,
		Integrator: c.Integrator,
		Mode:       c.Mode,
		Dt:         c.Dt,
		Frames:     c.Frames,
		Theta:      c.Theta,
		Workers:    c.Workers,
		G:          c.Gravity.G,
		Softening:  c.Gravity.Softening,
	}
}

// Physics returns the force law the run uses.
func (c *Config) Physics() physics.Gravity {
	return physics.Gravity{G: c.Gravity.G, Softening: c.Gravity.Softening}
}
