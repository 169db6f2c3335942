// SPDX-License-Identifier: MIT
// Package: matrix
//
// Purpose:
//   - Provide a single, canonical source of truth for common validation checks.
//   - Keep kernels minimal by delegating nil/rank/shape/symmetry checks here.
//
// Determinism & Performance:
//   - All checks are pure and deterministic.
//   - Symmetry check runs O(batch·n²) on the upper triangle only.
//
// Note:
//   - Each composite validator follows a fixed sequence (NotNil → Rank → Shape).

package matrix

import (
	"fmt"
	"math"
)

// validatorErrorf wraps an underlying error with the given validator tag.
func validatorErrorf(tag string, err error) error {
	return fmt.Errorf("%s: %w", tag, err)
}

// ValidateNotNil ensures the array reference is non-nil.
func ValidateNotNil(d *Dense) error {
	if d == nil {
		return validatorErrorf("ValidateNotNil", ErrNilMatrix)
	}

	return nil
}

// ValidateMatrix ensures d is non-nil and has at least two dimensions.
func ValidateMatrix(d *Dense) error {
	if err := ValidateNotNil(d); err != nil {
		return err
	}
	if d.Rank() < 2 {
		return validatorErrorf("ValidateMatrix", ErrBadShape)
	}

	return nil
}

// ValidateSameShape ensures a and b have identical shapes.
// Assumes a and b are not nil.
func ValidateSameShape(a, b *Dense) error {
	if !equalInts(a.shape, b.shape) {
		return validatorErrorf(fmt.Sprintf("ValidateSameShape(%v,%v)", a.shape, b.shape), ErrDimensionMismatch)
	}

	return nil
}

// ValidateSquare checks that every matrix of the batch is square.
//
// Errors: ErrNilMatrix, ErrBadShape (rank < 2), ErrNonSquare.
func ValidateSquare(d *Dense) error {
	if err := ValidateMatrix(d); err != nil {
		return err
	}
	if d.Rows() != d.Cols() {
		return validatorErrorf("ValidateSquare", ErrNonSquare)
	}

	return nil
}

// ValidateSymmetric checks |a_ij − a_ji| <= eps for every batch element.
//
// Errors: those of ValidateSquare, then ErrAsymmetry.
// Complexity: O(batch·n²).
func ValidateSymmetric(d *Dense, eps float64) error {
	if err := ValidateSquare(d); err != nil {
		return err
	}
	n := d.Rows()
	for b := 0; b < d.Len(); b++ {
		base := b * n * n
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if math.Abs(d.data[base+i*n+j]-d.data[base+j*n+i]) > eps {
					return validatorErrorf(fmt.Sprintf("ValidateSymmetric(batch %d, %d,%d)", b, i, j), ErrAsymmetry)
				}
			}
		}
	}

	return nil
}
