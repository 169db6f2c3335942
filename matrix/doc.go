// Package matrix offers batched dense arrays and the kernels the solvers in
// lvlinalg are built on.
//
// The matrix package provides:
//
//   - Dense: a row-major N-d array of shape (*batch, rows, cols), or
//     (*batch, k) for vector batches, with gonum views per batch element.
//   - NumPy-style broadcasting (BroadcastShapes, BroadcastTo, SumTo).
//   - Batched products, elementwise arithmetic and column kernels on
//     gonum mat, blas64 and floats.
//   - Decompositions: Eigh, Cholesky, InverseTri, Solve, SolveShifted.
//   - Orthogonalize and TallQR in an optional metric.
//   - Seeded random fills (NewRand, Randn, RandUniform).
//
// Dense arrays are best for small to moderate n where O(batch·n²) memory is
// acceptable. Every public kernel validates its inputs and returns sentinel
// errors from errors.go; none panic on user input.
//
// See the examples in this package for usage patterns.
package matrix
