// Package compute provides the force backends.
//
// Every backend implements [Backend]: Solve overwrites the accelerations of
// bodies [0, count) and leaves the rest of the store alone. Three are
// registered by name:
//
//   - direct: exact O(N²) softened sum, parallel over targets
//   - tree: Barnes-Hut octree with monopole cells
//   - multipole: kd-tree with quadrupole corrected cells
//
// Approximate backends also implement [Profiler] and report how long the
// last call spent building the tree, computing cell moments and walking it,
// plus how many cell and body interactions were evaluated.
//
// # Choosing a backend
//
//	direct, _ := compute.New("direct", physics.NewGravity(), compute.Options{})
//	fast, _ := compute.New("tree", physics.NewGravity(), compute.Options{Theta: 0.3})
//	eval := compute.NewEvaluator(direct, fast)
//	err := eval.Evaluate(store, compute.ModeAccelerated)
package compute
