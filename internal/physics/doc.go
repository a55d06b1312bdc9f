// Package physics holds the softened gravitational pair law.
//
// Every force backend in [compute] evaluates the same kernel
//
//	a_i += G·m_j·(p_j − p_i) / (|p_j − p_i|² + ε²)^{3/2}
//
// so exact and approximate solvers are comparable term by term. The
// softening length ε bounds any single pair contribution by G·m_j/ε².
//
// # Energy
//
// [Gravity.Energy] uses the softened potential −G·m_i·m_j/sqrt(r²+ε²),
// which is the potential the kernel above is the gradient of:
//
//	g := physics.NewGravity()
//	e0 := g.Energy(store)
package physics
