// SPDX-License-Identifier: MIT
// Package linalg: error taxonomy.
//
// Every boundary failure is reported before any numeric work and matched with
// errors.Is / errors.As:
//   - ErrShape (as *ShapeError): square/broadcast/dimension mismatches.
//   - ErrNotHermitian: eigendecomposition of an operator not declared hermitian.
//   - ErrNotPosDef: Cholesky of M failed.
//   - ErrConfig: unknown method, unknown option key or invalid value.
//   - ErrNotConverged: only under strict mode.

package linalg

import (
	"errors"
	"fmt"

	"github.com/katalvlaran/lvlinalg/matrix"
)

var (
	// ErrShape marks a shape contract violation between operands.
	ErrShape = errors.New("linalg: shape mismatch")

	// ErrNotHermitian is returned when a hermitian operator is required.
	ErrNotHermitian = errors.New("linalg: operator is not hermitian")

	// ErrNotPosDef is returned when the metric operator is not positive-definite.
	ErrNotPosDef = matrix.ErrNotPosDef

	// ErrConfig marks an invalid method, option key or option value.
	ErrConfig = errors.New("linalg: invalid configuration")

	// ErrNotConverged is returned by iterative methods in strict mode when the
	// iteration budget runs out before the tolerance is met.
	ErrNotConverged = errors.New("linalg: iteration did not converge")
)

// ShapeError names the operand that violated a shape contract.
type ShapeError struct {
	Op      string // entry point, e.g. "Eigh"
	Operand string // "A", "M", "B", "E", "neig", ...
	Shape   []int  // offending shape, if any
	Err     error  // underlying matrix sentinel, if any
}

// Error implements error.
func (e *ShapeError) Error() string {
	msg := fmt.Sprintf("%s: operand %s", e.Op, e.Operand)
	if e.Shape != nil {
		msg += fmt.Sprintf(" with shape %v", e.Shape)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap exposes both ErrShape and the underlying sentinel.
func (e *ShapeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrShape}
	}

	return []error{ErrShape, e.Err}
}

func shapeErrorf(op, operand string, shape []int, err error) error {
	return &ShapeError{Op: op, Operand: operand, Shape: shape, Err: err}
}

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}
