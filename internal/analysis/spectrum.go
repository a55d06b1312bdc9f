package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// PowerSpectrum returns |X_k|^2 for k in [0, n/2] of the Hann-windowed
// series with its mean removed, so bin 0 carries no offset.
func PowerSpectrum(data []float64) []float64 {
	n := len(data)
	if n == 0 {
		return nil
	}

	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(n)

	x := make([]float64, n)
	for i, v := range data {
		x[i] = v - mean
	}
	if n > 2 {
		window.Apply(x, window.Hann)
	}

	coef := fft.FFTReal(x)
	ps := make([]float64, n/2+1)
	for i := range ps {
		a := cmplx.Abs(coef[i])
		ps[i] = a * a
	}
	return ps
}

// DominantPeriod finds the strongest non-zero frequency of a series sampled
// every dt and returns its period. ok is false when the series is flat or
// too short to hold a full cycle.
func DominantPeriod(data []float64, dt float64) (period float64, ok bool) {
	ps := PowerSpectrum(data)
	if len(ps) < 2 || dt <= 0 {
		return 0, false
	}

	peak := 0
	for k := 1; k < len(ps); k++ {
		if ps[k] > ps[peak] || peak == 0 {
			peak = k
		}
	}
	if ps[peak] == 0 {
		return 0, false
	}
	freq := float64(peak) / (float64(len(data)) * dt)
	return 1 / freq, true
}
