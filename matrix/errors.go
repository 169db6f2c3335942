// SPDX-License-Identifier: MIT
// Package matrix: sentinel error set (unified, consistent).
// This file defines ONLY package-level sentinel errors used across the matrix
// package. All kernels MUST return these sentinels and tests MUST check them
// via errors.Is. No kernel should panic on user-triggered error conditions.

package matrix

import "errors"

// NOTE ON NAMING & PREFIXING
// --------------------------
// Every message is prefixed with "matrix: ..." for consistency and to allow
// easy grepping across logs. Kernels wrap with fmt.Errorf("Op: %w", ErrX)
// so callers still match with errors.Is.
//
// ERROR PRIORITY (enforced in tests):
// nil -> shape/index/NaN -> dimension mismatch -> broadcast -> numeric failure.

var (
	// ErrBadShape is returned when a requested shape is invalid
	// (non-positive extent, data length disagreeing with the shape, rank too low).
	ErrBadShape = errors.New("matrix: invalid shape")

	// ErrOutOfRange indicates that an index is outside valid bounds.
	// Public indexers (At/Set) MUST return this, not panic.
	ErrOutOfRange = errors.New("matrix: index out of range")

	// ErrDimensionMismatch indicates incompatible trailing dimensions between
	// operands, e.g. MatMul where a.Cols != b.Rows.
	ErrDimensionMismatch = errors.New("matrix: dimension mismatch")

	// ErrNonSquare signals that a square matrix was required but the input wasn't.
	ErrNonSquare = errors.New("matrix: matrix is not square")

	// ErrBroadcast signals that leading (batch) dimensions cannot be broadcast
	// together: right-aligned extents must be equal or one of them must be 1.
	ErrBroadcast = errors.New("matrix: batch shapes do not broadcast")

	// ErrAsymmetry signals that a matrix expected to be symmetric violated symmetry
	// within the given tolerance.
	ErrAsymmetry = errors.New("matrix: matrix is not symmetric within eps")

	// ErrNaNInf signals a NaN or ±Inf value was encountered where finite values
	// are required (ingestion, Set).
	ErrNaNInf = errors.New("matrix: NaN or Inf encountered")

	// ErrNilMatrix indicates that a nil *Dense (receiver or argument) was used.
	ErrNilMatrix = errors.New("matrix: nil receiver")

	// ErrEigenFailed indicates that the symmetric eigensolver did not converge.
	ErrEigenFailed = errors.New("matrix: eigen decomposition failed")

	// ErrNotPosDef is returned when a Cholesky factorization fails because
	// the input is not symmetric positive-definite.
	ErrNotPosDef = errors.New("matrix: matrix is not positive definite")

	// ErrSingular is returned when a linear system or triangular inverse is
	// exactly singular.
	ErrSingular = errors.New("matrix: singular matrix")
)
