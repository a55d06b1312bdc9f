package optim

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/kr1s0404/fmm/internal/dynamo"
	"github.com/kr1s0404/fmm/internal/experiment"
)

// GridSearch runs every combination of parameter values and keeps the one
// with the smallest metric.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	log        zerolog.Logger
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges, log: zerolog.Nop()}
}

func (g *GridSearch) WithLogger(l zerolog.Logger) *GridSearch {
	g.log = l
	return g
}

// Trial is one evaluated grid point.
type Trial struct {
	Params map[string]float64
	Value  float64
}

// Search evaluates metricName for every grid point on top of base. Runs
// that fail numerically score +Inf; configuration errors and cancellation
// stop the search.
func (g *GridSearch) Search(ctx context.Context, base experiment.Config, reg *experiment.Registry, metricName string) (Trial, []Trial, error) {
	if len(g.paramNames) != len(g.ranges) {
		return Trial{}, nil, fmt.Errorf("%w: %d parameters but %d ranges", dynamo.ErrInvalidConfig, len(g.paramNames), len(g.ranges))
	}
	for i, r := range g.ranges {
		if len(r) == 0 {
			return Trial{}, nil, fmt.Errorf("%w: no values for %s", dynamo.ErrInvalidConfig, g.paramNames[i])
		}
	}

	best := Trial{Value: math.Inf(1)}
	var trials []Trial
	err := g.searchRecursive(ctx, 0, base, make(map[string]float64), reg, metricName, &best, &trials)
	return best, trials, err
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	cfg experiment.Config,
	current map[string]float64,
	reg *experiment.Registry,
	metricName string,
	best *Trial,
	trials *[]Trial,
) error {
	if depth == len(g.paramNames) {
		val, err := g.evaluate(ctx, cfg, reg, metricName)
		if err != nil {
			return err
		}

		params := make(map[string]float64, len(current))
		for k, v := range current {
			params[k] = v
		}
		trial := Trial{Params: params, Value: val}
		*trials = append(*trials, trial)
		g.log.Debug().Interface("params", params).Float64(metricName, val).Msg("grid point")

		if val < best.Value || best.Params == nil {
			*best = trial
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		next := cfg
		if err := next.Set(paramName, val); err != nil {
			return err
		}
		current[paramName] = val
		if err := g.searchRecursive(ctx, depth+1, next, current, reg, metricName, best, trials); err != nil {
			return err
		}
	}
	return nil
}

func (g *GridSearch) evaluate(ctx context.Context, cfg experiment.Config, reg *experiment.Registry, metricName string) (float64, error) {
	exp := experiment.New(cfg)
	if err := exp.Setup(reg, zerolog.Nop(), reg.DefaultMetrics(cfg.Gravity())...); err != nil {
		return 0, err
	}

	result, err := exp.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return 0, err
		}
		if result != nil {
			return math.Inf(1), nil
		}
		return 0, err
	}

	val, ok := result.Metrics[metricName]
	if !ok {
		return 0, fmt.Errorf("%w: no metric %q", dynamo.ErrInvalidConfig, metricName)
	}
	if math.IsNaN(val) {
		return math.Inf(1), nil
	}
	return val, nil
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n < 1 {
		return nil
	}
	if n == 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}
