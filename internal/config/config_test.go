package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kr1s0404/fmm/internal/dynamo"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Scene != "random" {
		t.Errorf("expected scene random, got %s", cfg.Scene)
	}
	if cfg.Render.Output != "random_simulation" {
		t.Errorf("expected output random_simulation, got %s", cfg.Render.Output)
	}
	if cfg.Gravity.Softening != 0.1 || cfg.Gravity.G != 1 {
		t.Errorf("unexpected gravity %+v", cfg.Gravity)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	def := DefaultConfig()
	if cfg.Bodies != def.Bodies || cfg.Render != def.Render || cfg.Validation != def.Validation {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nbody.yaml")

	cfg := DefaultConfig()
	cfg.SetScene("spiral_galaxy")
	cfg.Bodies = 777
	cfg.Seed = 9
	cfg.Render.Codec = "gif"
	cfg.Validation.Schedule.MaxBodies = 1000
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if *got != *cfg {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, cfg)
	}
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	data := "scene: solar_system\nrender:\n  width: 640\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Scene != "solar_system" || cfg.Render.Width != 640 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Render.Height != 720 || cfg.Dt != DefaultDt {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("NBODY_BODIES", "42")
	t.Setenv("NBODY_RENDER_FPS", "60")
	t.Setenv("NBODY_GRAVITY_SOFTENING", "0.5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Bodies != 42 || cfg.Render.FPS != 60 || cfg.Gravity.Softening != 0.5 {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadOutputFollowsScene(t *testing.T) {
	dir := t.TempDir()
	write := func(name, data string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(data), 0644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	tests := []struct {
		name string
		path string
		env  string
		want string
	}{
		{"scene from file", write("solar.yaml", "scene: solar_system\n"), "", "solar_system_simulation"},
		{"scene from env", "", "binary_system", "binary_system_simulation"},
		{"explicit output kept", write("named.yaml", "scene: solar_system\nrender:\n  output: orbits\n"), "", "orbits"},
		{"default scene", "", "", "random_simulation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.env != "" {
				t.Setenv("NBODY_SCENE", tt.env)
			}
			cfg, err := Load(tt.path)
			if err != nil {
				t.Fatalf("load failed: %v", err)
			}
			if cfg.Render.Output != tt.want {
				t.Errorf("output = %q, want %q", cfg.Render.Output, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"no bodies", func(c *Config) { c.Bodies = 0 }, dynamo.ErrBodyCount},
		{"zero dt", func(c *Config) { c.Dt = 0 }, dynamo.ErrInvalidConfig},
		{"negative frames", func(c *Config) { c.Frames = -1 }, dynamo.ErrInvalidConfig},
		{"negative softening", func(c *Config) { c.Gravity.Softening = -1 }, dynamo.ErrInvalidConfig},
		{"bad mode", func(c *Config) { c.Mode = "warp" }, dynamo.ErrInvalidConfig},
		{"bad canvas", func(c *Config) { c.Render.Width = 0 }, dynamo.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSetSceneKeepsCustomOutput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetScene("binary_system")
	if cfg.Render.Output != "binary_system_simulation" {
		t.Errorf("expected default output to follow scene, got %s", cfg.Render.Output)
	}

	cfg.Render.Output = "movie"
	cfg.SetScene("solar_system")
	if cfg.Render.Output != "movie" {
		t.Errorf("custom output overwritten: %s", cfg.Render.Output)
	}
}

func TestExperimentNormalizesScene(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scene = "galaxy"
	if got := cfg.Experiment().Scene; got != "spiral_galaxy" {
		t.Errorf("expected spiral_galaxy, got %s", got)
	}
	cfg.Scene = "nebula"
	if got := cfg.Experiment().Scene; got != "random" {
		t.Errorf("expected random fallback, got %s", got)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("spiral_galaxy", "large")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Bodies != 20000 || cfg.Backend != "multipole" || cfg.Mode != "accelerated" {
		t.Errorf("preset not applied: %+v", cfg)
	}
	if cfg.Scene != "spiral_galaxy" || cfg.Render.Output != "spiral_galaxy_simulation" {
		t.Errorf("scene not set: %s %s", cfg.Scene, cfg.Render.Output)
	}
	if cfg.Integrator != "symplectic" {
		t.Errorf("unset preset fields should keep defaults, got %s", cfg.Integrator)
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("solar_system", "nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
	if cfg := GetPreset("nonexistent", "planets"); cfg != nil {
		t.Error("expected nil for nonexistent scene")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets("solar_system")
	if len(presets) != 2 || presets[0] != "asteroids" {
		t.Errorf("unexpected presets %v", presets)
	}
	if ListPresets("nonexistent") != nil {
		t.Error("expected nil for nonexistent scene")
	}
	for name := range Presets {
		for _, p := range ListPresets(name) {
			if err := GetPreset(name, p).Validate(); err != nil {
				t.Errorf("%s/%s: %v", name, p, err)
			}
		}
	}
}
