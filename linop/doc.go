// Package linop defines the linear operators consumed by the solvers.
//
// The linop package provides:
//
//   - Operator: Shape, IsHermitian and a batched Apply. Optional
//     capabilities (Transposer, Differentiable) are discovered by assertion.
//   - Matrix: an operator over an explicit array, with ApplyT and gradients.
//   - Func: an operator defined by callbacks, for matrix-free problems.
//   - Helpers: FullMatrix materializes any operator; Transpose returns the
//     transposed view.
//
// Hermitian-ness is always a declaration, never inferred from values.
// NewSymmetric verifies it once at construction time.
package linop
