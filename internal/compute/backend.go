package compute

import (
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/kr1s0404/fmm/internal/body"
	"github.com/kr1s0404/fmm/internal/physics"
)

// Backend fills accelerations for bodies [0, count) of a store. Entries at
// count and beyond are left untouched.
type Backend interface {
	Name() string
	Solve(s *body.Store, count int) error
}

// Profiler is implemented by backends that break their last Solve call
// down into phases.
type Profiler interface {
	LastTimings() Timings
}

type Timings struct {
	Build            time.Duration
	Moments          time.Duration
	Traverse         time.Duration
	CellInteractions int64
	BodyInteractions int64
}

type Options struct {
	Theta   float64
	Workers int
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

type factory func(g physics.Gravity, opts Options) Backend

var registry = map[string]factory{
	"direct": func(g physics.Gravity, opts Options) Backend {
		return NewDirect(g, opts.workers())
	},
	"tree": func(g physics.Gravity, opts Options) Backend {
		return NewTree(g, opts.Theta, opts.workers())
	},
	"multipole": func(g physics.Gravity, opts Options) Backend {
		return NewMultipole(g, opts.Theta, opts.workers())
	},
}

func New(name string, g physics.Gravity, opts Options) (Backend, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (available: %v)", name, Names())
	}
	return f(g, opts), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func clampCount(s *body.Store, count int) int {
	if count < 0 {
		return 0
	}
	if count > s.Len() {
		return s.Len()
	}
	return count
}
