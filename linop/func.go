// SPDX-License-Identifier: MIT

package linop

import (
	"fmt"

	"github.com/katalvlaran/lvlinalg/matrix"
)

// ApplyFunc maps a column batch through a linear map.
type ApplyFunc func(x *matrix.Dense) (*matrix.Dense, error)

// GradFunc adds ∂⟨u, Op(x)⟩/∂θ_i into grads[i]; see Differentiable.
type GradFunc func(grads []*matrix.Dense, u, x *matrix.Dense) error

// Func is an operator defined only by its matrix-vector product.
type Func struct {
	shape     []int
	hermitian bool
	apply     ApplyFunc
	applyT    ApplyFunc
	params    []*matrix.Dense
	grad      GradFunc
}

// FuncOption configures optional Func capabilities.
type FuncOption func(*Func)

// WithTranspose supplies the transposed product.
func WithTranspose(applyT ApplyFunc) FuncOption {
	return func(f *Func) { f.applyT = applyT }
}

// WithGrad declares the operator's parameters and their gradient rule.
func WithGrad(params []*matrix.Dense, grad GradFunc) FuncOption {
	return func(f *Func) {
		f.params = params
		f.grad = grad
	}
}

var (
	_ Operator       = (*Func)(nil)
	_ Transposer     = (*Func)(nil)
	_ Differentiable = (*Func)(nil)
)

// NewFunc builds a callback operator of the given shape (*batch, n, m).
//
// Errors:
//   - ErrBadOperator if shape has rank < 2, a non-positive extent, a nil
//     apply, or a hermitian flag on a non-square shape.
func NewFunc(shape []int, hermitian bool, apply ApplyFunc, opts ...FuncOption) (*Func, error) {
	if len(shape) < 2 || apply == nil {
		return nil, fmt.Errorf("NewFunc(%v): %w", shape, ErrBadOperator)
	}
	for _, s := range shape {
		if s < 1 {
			return nil, fmt.Errorf("NewFunc(%v): %w", shape, ErrBadOperator)
		}
	}
	if hermitian && shape[len(shape)-1] != shape[len(shape)-2] {
		return nil, fmt.Errorf("NewFunc(%v): hermitian: %w", shape, ErrBadOperator)
	}
	f := &Func{shape: append([]int(nil), shape...), hermitian: hermitian, apply: apply}
	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// Shape returns the declared shape.
func (f *Func) Shape() []int { return append([]int(nil), f.shape...) }

// IsHermitian returns the declared flag.
func (f *Func) IsHermitian() bool { return f.hermitian }

// Apply validates x and calls the product callback.
func (f *Func) Apply(x *matrix.Dense) (*matrix.Dense, error) {
	_, m := Dims(f)
	if err := checkApply("Func.Apply", x, m); err != nil {
		return nil, err
	}

	return f.apply(x)
}

// ApplyT calls the transposed product. A hermitian Func without an explicit
// transpose uses its forward product.
func (f *Func) ApplyT(x *matrix.Dense) (*matrix.Dense, error) {
	n, _ := Dims(f)
	if err := checkApply("Func.ApplyT", x, n); err != nil {
		return nil, err
	}
	switch {
	case f.applyT != nil:
		return f.applyT(x)
	case f.hermitian:
		return f.apply(x)
	default:
		return nil, fmt.Errorf("Func.ApplyT: %w", ErrNoTranspose)
	}
}

// Params returns the declared parameters, or nil.
func (f *Func) Params() []*matrix.Dense { return f.params }

// AccumulateGrad forwards to the declared gradient rule; it is a no-op for a
// Func without parameters.
func (f *Func) AccumulateGrad(grads []*matrix.Dense, u, x *matrix.Dense) error {
	if f.grad == nil {
		return nil
	}
	if len(grads) != len(f.params) {
		return fmt.Errorf("Func.AccumulateGrad: %d slots for %d params: %w", len(grads), len(f.params), matrix.ErrDimensionMismatch)
	}

	return f.grad(grads, u, x)
}
