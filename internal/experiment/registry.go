package experiment

import (
	"fmt"
	"sort"

	"github.com/kr1s0404/fmm/internal/compute"
	"github.com/kr1s0404/fmm/internal/dynamo"
	"github.com/kr1s0404/fmm/internal/integrators"
	"github.com/kr1s0404/fmm/internal/metrics"
	"github.com/kr1s0404/fmm/internal/physics"
	"github.com/kr1s0404/fmm/internal/scene"
)

// StabilityRadius is the distance from the origin past which a frame counts
// as unstable in the default metrics.
const StabilityRadius = 1e3

type Registry struct {
	scenes map[string]scene.Variant
}

func NewRegistry() *Registry {
	r := &Registry{scenes: make(map[string]scene.Variant)}
	for _, v := range scene.Variants() {
		r.scenes[v.String()] = v
	}
	return r
}

// GetScene resolves a scene by its canonical name. Unlike
// scene.ParseVariant it rejects unknown names, for callers that list
// what is available.
func (r *Registry) GetScene(name string) (scene.Variant, error) {
	v, ok := r.scenes[name]
	if !ok {
		return scene.Random, fmt.Errorf("unknown scene: %s", name)
	}
	return v, nil
}

func (r *Registry) GetBackend(name string, g physics.Gravity, opts compute.Options) (compute.Backend, error) {
	return compute.New(name, g, opts)
}

func (r *Registry) GetIntegrator(name string) (integrators.Integrator, error) {
	return integrators.New(name)
}

func (r *Registry) ListScenes() []string {
	names := make([]string, 0, len(r.scenes))
	for name := range r.scenes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) ListBackends() []string    { return compute.Names() }
func (r *Registry) ListIntegrators() []string { return integrators.Names() }

func (r *Registry) DefaultMetrics(g physics.Gravity) []dynamo.Metric {
	return []dynamo.Metric{
		metrics.NewEnergy(g),
		metrics.NewEnergyDrift(g),
		metrics.NewMomentumDrift(),
		metrics.NewStability(StabilityRadius),
	}
}
