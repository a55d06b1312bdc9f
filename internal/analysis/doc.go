// Package analysis characterizes finished and running simulations.
//
//   - [PowerSpectrum] and [DominantPeriod]: oscillations in a recorded
//     series such as the total energy of a run
//   - [Lyapunov]: finite-time largest Lyapunov exponent of a scene
//
// # Chaos Detection
//
// A positive exponent means nearby initial states separate exponentially:
//
//	lambda, err := analysis.Lyapunov(simulator, st, cfg, 1e-8)
//	if lambda > 0 {
//	    // scene is chaotic on this time scale
//	}
package analysis
