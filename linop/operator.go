// SPDX-License-Identifier: MIT

// Package linop - the linear-operator contract shared by every solver.
//
// An Operator is a possibly batched linear map of shape (*batch, n, m). It is
// either backed by an explicit matrix (Matrix) or by a user callback (Func).
// Optional capabilities are separate interfaces discovered by assertion:
//   - Transposer: apply the transposed map without materializing it.
//   - Differentiable: fold an outer-product term into parameter gradients.

package linop

import (
	"errors"
	"fmt"

	"github.com/katalvlaran/lvlinalg/matrix"
)

// Sentinel errors.
var (
	// ErrNoTranspose is returned when a non-hermitian operator without a
	// transpose capability is asked for its transpose.
	ErrNoTranspose = errors.New("linop: operator has no transpose")

	// ErrBadOperator marks an operator whose declared shape is unusable.
	ErrBadOperator = errors.New("linop: invalid operator")
)

// Operator is a linear map of shape (*batch, n, m).
type Operator interface {
	// Shape returns (*batch, n, m).
	Shape() []int

	// IsHermitian reports the declared symmetry. It is never inferred from values.
	IsHermitian() bool

	// Apply maps x (*batch', m, k) to (*broadcast(batch, batch'), n, k).
	Apply(x *matrix.Dense) (*matrix.Dense, error)
}

// Transposer is implemented by operators that can apply their transpose.
type Transposer interface {
	// ApplyT maps x (*batch', n, k) to (*broadcast(batch, batch'), m, k).
	ApplyT(x *matrix.Dense) (*matrix.Dense, error)
}

// Differentiable is implemented by operators with trainable parameters.
type Differentiable interface {
	// Params returns the parameter arrays in a fixed order.
	Params() []*matrix.Dense

	// AccumulateGrad adds ∂⟨u, Op(x)⟩/∂θ_i into grads[i] for every parameter θ_i,
	// where ⟨·,·⟩ sums over all elements, batch included. grads[i] has the
	// shape of Params()[i]; u is (*batch', n, k) and x is (*batch', m, k).
	AccumulateGrad(grads []*matrix.Dense, u, x *matrix.Dense) error
}

// CheckShape reports an operator whose shape is not (*batch, n, m) with
// positive extents.
func CheckShape(op Operator) error {
	s := op.Shape()
	if len(s) < 2 {
		return fmt.Errorf("CheckShape(%v): rank %d: %w", s, len(s), matrix.ErrBadShape)
	}
	for _, d := range s {
		if d < 1 {
			return fmt.Errorf("CheckShape(%v): %w", s, matrix.ErrBadShape)
		}
	}

	return nil
}

// Batch returns the leading dimensions of op's shape; nil below rank 2.
func Batch(op Operator) []int {
	s := op.Shape()
	if len(s) < 2 {
		return nil
	}

	return s[:len(s)-2]
}

// Dims returns the trailing (n, m) extents of op; (0, 0) below rank 2.
func Dims(op Operator) (n, m int) {
	s := op.Shape()
	if len(s) < 2 {
		return 0, 0
	}

	return s[len(s)-2], s[len(s)-1]
}

// IsSquare reports whether op maps a space onto itself.
func IsSquare(op Operator) bool {
	if len(op.Shape()) < 2 {
		return false
	}
	n, m := Dims(op)

	return n == m
}

// FullMatrix materializes op by applying it to the m×m identity.
// The result has shape (*batch, n, m). Expensive: O(batch·n·m) memory and m
// applications' worth of work.
func FullMatrix(op Operator) (*matrix.Dense, error) {
	_, m := Dims(op)
	eye, err := matrix.Eye(m)
	if err != nil {
		return nil, fmt.Errorf("FullMatrix: %w", err)
	}
	full, err := op.Apply(eye)
	if err != nil {
		return nil, fmt.Errorf("FullMatrix: %w", err)
	}

	return full, nil
}

// Transpose returns the transposed operator. A hermitian operator is its own
// transpose; otherwise op must implement Transposer.
func Transpose(op Operator) (Operator, error) {
	if op.IsHermitian() {
		return op, nil
	}
	t, ok := op.(Transposer)
	if f, isFunc := op.(*Func); !ok || (isFunc && f.applyT == nil) {
		return nil, fmt.Errorf("Transpose: %w", ErrNoTranspose)
	}

	return &transposed{op: op, t: t}, nil
}

// transposed adapts a Transposer into an Operator. Gradients are forwarded
// with u and x swapped, since ⟨u, Aᵀx⟩ = ⟨x, A u⟩.
type transposed struct {
	op Operator
	t  Transposer
}

func (o *transposed) Shape() []int {
	s := o.op.Shape()
	s[len(s)-2], s[len(s)-1] = s[len(s)-1], s[len(s)-2]

	return s
}

func (o *transposed) IsHermitian() bool { return false }

func (o *transposed) Apply(x *matrix.Dense) (*matrix.Dense, error) { return o.t.ApplyT(x) }

func (o *transposed) ApplyT(x *matrix.Dense) (*matrix.Dense, error) { return o.op.Apply(x) }

func (o *transposed) Params() []*matrix.Dense {
	if d, ok := o.op.(Differentiable); ok {
		return d.Params()
	}

	return nil
}

func (o *transposed) AccumulateGrad(grads []*matrix.Dense, u, x *matrix.Dense) error {
	d, ok := o.op.(Differentiable)
	if !ok {
		return nil
	}

	return d.AccumulateGrad(grads, x, u)
}

// checkApply validates x against an operator with m input rows.
func checkApply(tag string, x *matrix.Dense, m int) error {
	if err := matrix.ValidateMatrix(x); err != nil {
		return fmt.Errorf("%s: %w", tag, err)
	}
	if x.Rows() != m {
		return fmt.Errorf("%s: %d rows for %d columns: %w", tag, x.Rows(), m, matrix.ErrDimensionMismatch)
	}

	return nil
}
