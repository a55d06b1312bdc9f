package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation runs.
var (
	// ErrNumericInstability indicates non-finite accelerations or state.
	ErrNumericInstability = errors.New("dynamo: numeric instability (NaN or Inf detected)")

	// ErrSinkUnavailable indicates the frame sink could not be opened. Frame
	// emission is disabled for the rest of the run.
	ErrSinkUnavailable = errors.New("dynamo: frame sink unavailable")

	// ErrInvalidConfig indicates a run or render configuration out of range.
	ErrInvalidConfig = errors.New("dynamo: invalid configuration")

	// ErrNoAccelerator indicates accelerated forces were requested without
	// an accelerated backend.
	ErrNoAccelerator = errors.New("dynamo: no accelerated backend configured")

	// ErrBodyCount indicates a body count outside the supported range.
	ErrBodyCount = errors.New("dynamo: body count out of range")
)

// SimError wraps an error with the frame and simulated time it occurred at.
type SimError struct {
	Frame   int
	Time    float64
	Wrapped error
}

func (e *SimError) Error() string {
	return fmt.Sprintf("frame %d (t=%.4f): %v", e.Frame, e.Time, e.Wrapped)
}

func (e *SimError) Unwrap() error {
	return e.Wrapped
}
