package config

import "sort"

// Preset overrides the run fields of a default configuration. Zero fields
// keep the default.
type Preset struct {
	Bodies     int
	Dt         float64
	Frames     int
	Integrator string
	Backend    string
	Mode       string
	Seed       int64
}

var Presets = map[string]map[string]Preset{
	"random": {
		"cloud":  {Bodies: 200, Dt: 0.01, Frames: 300},
		"swarm":  {Bodies: 5000, Dt: 0.01, Frames: 300, Backend: "tree", Mode: "accelerated"},
		"sparse": {Bodies: 20, Dt: 0.005, Frames: 600},
	},
	"spiral_galaxy": {
		"small":  {Bodies: 500, Dt: 0.005, Frames: 600},
		"large":  {Bodies: 20000, Dt: 0.005, Frames: 600, Backend: "multipole", Mode: "accelerated"},
		"wobbly": {Bodies: 1000, Dt: 0.01, Frames: 300, Integrator: "explicit"},
	},
	"binary_system": {
		"pair":    {Bodies: 2, Dt: 0.001, Frames: 3000},
		"debris":  {Bodies: 300, Dt: 0.005, Frames: 600},
		"crowded": {Bodies: 4000, Dt: 0.005, Frames: 600, Backend: "tree", Mode: "accelerated"},
	},
	"solar_system": {
		"planets":   {Bodies: 10, Dt: 0.005, Frames: 1200},
		"asteroids": {Bodies: 1000, Dt: 0.005, Frames: 1200},
	},
}

// Apply copies the preset's non-zero fields onto cfg.
func (p Preset) Apply(cfg *Config) {
	if p.Bodies > 0 {
		cfg.Bodies = p.Bodies
	}
	if p.Dt > 0 {
		cfg.Dt = p.Dt
	}
	if p.Frames > 0 {
		cfg.Frames = p.Frames
	}
	if p.Integrator != "" {
		cfg.Integrator = p.Integrator
	}
	if p.Backend != "" {
		cfg.Backend = p.Backend
	}
	if p.Mode != "" {
		cfg.Mode = p.Mode
	}
	if p.Seed != 0 {
		cfg.Seed = p.Seed
	}
}

// GetPreset returns a default configuration for scene with the preset
// applied, or nil if either name is unknown.
func GetPreset(scene, preset string) *Config {
	scenePresets, ok := Presets[scene]
	if !ok {
		return nil
	}
	p, ok := scenePresets[preset]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.SetScene(scene)
	p.Apply(cfg)
	return cfg
}

func ListPresets(scene string) []string {
	scenePresets, ok := Presets[scene]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(scenePresets))
	for name := range scenePresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
