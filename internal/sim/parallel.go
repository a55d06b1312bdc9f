package sim

import (
	"context"
	"sync"

	"github.com/kr1s0404/fmm/internal/body"
	"github.com/kr1s0404/fmm/internal/dynamo"
)

// Ensemble runs the same configuration over numRuns seeded scenes. Each run
// gets its own Simulator from the factory, since backends carry per-solve
// state.
type Ensemble struct {
	newSim    func() *Simulator
	numRuns   int
	seedStart int64
}

func NewEnsemble(newSim func() *Simulator, numRuns int, seedStart int64) *Ensemble {
	return &Ensemble{newSim: newSim, numRuns: numRuns, seedStart: seedStart}
}

// Run calls scene once per run with seeds seedStart, seedStart+1, ... and
// returns the results in seed order. The first error aborts the batch.
func (e *Ensemble) Run(ctx context.Context, scene func(seed int64) *body.Store, cfg Config) ([]*dynamo.Result, error) {
	results := make([]*dynamo.Result, e.numRuns)
	errs := make([]error, e.numRuns)

	var wg sync.WaitGroup
	for i := 0; i < e.numRuns; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			st := scene(e.seedStart + int64(idx))
			results[idx], errs[idx] = e.newSim().Run(ctx, st, cfg)
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}
