package compute

import (
	"fmt"
	"strings"

	"github.com/kr1s0404/fmm/internal/body"
	"github.com/kr1s0404/fmm/internal/dynamo"
)

type Mode int

const (
	ModeDirect Mode = iota
	ModeAccelerated
)

func (m Mode) String() string {
	if m == ModeAccelerated {
		return "accelerated"
	}
	return "direct"
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "direct":
		return ModeDirect, nil
	case "accelerated", "fast":
		return ModeAccelerated, nil
	default:
		return ModeDirect, fmt.Errorf("%w: unknown force mode %q", dynamo.ErrInvalidConfig, s)
	}
}

// Evaluator fills every acceleration of a store, either with the exact
// direct sum or with an accelerated backend approximating the same law.
type Evaluator struct {
	direct      Backend
	accelerator Backend
}

func NewEvaluator(direct, accelerator Backend) *Evaluator {
	return &Evaluator{direct: direct, accelerator: accelerator}
}

func (e *Evaluator) Accelerator() Backend { return e.accelerator }

func (e *Evaluator) backend(mode Mode) (Backend, error) {
	if mode == ModeAccelerated {
		if e.accelerator == nil {
			return nil, dynamo.ErrNoAccelerator
		}
		return e.accelerator, nil
	}
	return e.direct, nil
}

func (e *Evaluator) Evaluate(s *body.Store, mode Mode) error {
	b, err := e.backend(mode)
	if err != nil {
		return err
	}
	s.ClearAcc(s.Len())
	if err := b.Solve(s, s.Len()); err != nil {
		return fmt.Errorf("%s forces: %w", b.Name(), err)
	}
	return nil
}
