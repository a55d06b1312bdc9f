// Package dynamo holds the vocabulary shared by the simulation packages:
// domain errors, the per-frame [Metric] and [Observer] hooks, and the
// [Result] of a run.
//
// # Errors
//
// Failures are reported as the sentinel values in this package, wrapped
// with context. Errors raised inside the frame loop carry the frame and
// simulated time in a [SimError]:
//
//	if errors.Is(err, dynamo.ErrNumericInstability) {
//	    var se *dynamo.SimError
//	    errors.As(err, &se)
//	    log.Printf("diverged at frame %d", se.Frame)
//	}
//
// # Thread Safety
//
// A body store has a single owner for the duration of a run. Metrics and
// observers are called from the frame loop and need no locking of their
// own unless they share state with other goroutines.
package dynamo
