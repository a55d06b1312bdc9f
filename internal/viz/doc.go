// Package viz is the terminal front end of the simulator.
//
// [Model] steps a simulation on every tick and draws the bodies on a
// Braille [Canvas] through a rotatable [Camera], next to an energy plot.
// [Menu] picks a scene and its parameters before handing over to a Model.
//
// # Key Bindings
//
//	Space - Pause/Resume simulation
//	R     - Reset to initial state
//	T     - Cycle color themes
//	G     - Toggle frame recording
//	?     - Show help overlay
//	[]    - Time travel (rewind/forward)
//	xyz   - Rotate the view (shift reverses)
//	+-    - Zoom
//
// # Recording
//
// G streams rendered frames through the same sink as a batch run, so a
// recording made here looks exactly like the output of nbody run.
package viz
