// Package linalg solves batched symmetric eigenproblems and shifted linear
// systems over linop operators, and differentiates both.
//
// The linalg package provides:
//
//   - Eigh: neig lowest or uppest eigenpairs of A·x = λ·M·x, computed densely
//     ("exacteig") or by Davidson subspace iteration ("davidson").
//   - Solve: x with A·x − M·x·diag(E) = B, by dense LU ("direct") or
//     restarted GMRES ("gmres").
//   - Backward on both results: gradients with respect to B, E and the
//     parameters of differentiable operators.
//   - Functional options (WithX), keyed dictionaries (WithConfig) and YAML
//     files (LoadConfig).
//
// Operand batch dimensions broadcast NumPy-style. Iterative methods return
// their best iterate with a logged warning when the budget runs out, unless
// WithStrict(true) asks for ErrNotConverged instead.
//
// Logging goes through log/slog; WithLogger routes it, WithVerbose adds
// per-iteration records at Info level.
package linalg
