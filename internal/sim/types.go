package sim

import (
	"github.com/kr1s0404/fmm/internal/compute"
	"github.com/kr1s0404/fmm/internal/render"
)

// FrameSink receives each rendered frame. The driver never closes it.
type FrameSink interface {
	WriteFrame(f *render.Frame) error
}

// Config controls a single run. RecordEnergy stores the total energy of
// every frame in the result at the cost of one O(N²) pass per frame.
type Config struct {
	Dt            float64
	Frames        int
	Mode          compute.Mode
	ValidateState bool
	RecordEnergy  bool
	ProgressEvery int
}

func DefaultConfig() Config {
	return Config{
		Dt:            0.01,
		Frames:        300,
		Mode:          compute.ModeDirect,
		ValidateState: true,
		ProgressEvery: 100,
	}
}
