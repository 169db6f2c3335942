// SPDX-License-Identifier: MIT

package linop

import (
	"fmt"

	"github.com/katalvlaran/lvlinalg/matrix"
)

// Matrix is an operator backed by an explicit (*batch, n, m) array.
// Apply is a batched matrix product; the array itself is the single parameter.
type Matrix struct {
	m         *matrix.Dense
	hermitian bool
}

// Compile-time capability assertions.
var (
	_ Operator       = (*Matrix)(nil)
	_ Transposer     = (*Matrix)(nil)
	_ Differentiable = (*Matrix)(nil)
)

// NewMatrix wraps m. The hermitian flag is the caller's declaration and is
// not checked; use NewSymmetric to verify it instead.
//
// Errors:
//   - ErrBadOperator (wrapping the matrix sentinel) if m is nil or rank < 2.
func NewMatrix(m *matrix.Dense, hermitian bool) (*Matrix, error) {
	if err := matrix.ValidateMatrix(m); err != nil {
		return nil, fmt.Errorf("NewMatrix: %w: %w", ErrBadOperator, err)
	}
	if hermitian && m.Rows() != m.Cols() {
		return nil, fmt.Errorf("NewMatrix: hermitian %dx%d: %w: %w", m.Rows(), m.Cols(), ErrBadOperator, matrix.ErrNonSquare)
	}

	return &Matrix{m: m, hermitian: hermitian}, nil
}

// NewSymmetric wraps m as a hermitian operator after verifying symmetry
// within eps.
func NewSymmetric(m *matrix.Dense, eps float64) (*Matrix, error) {
	if err := matrix.ValidateSymmetric(m, eps); err != nil {
		return nil, fmt.Errorf("NewSymmetric: %w", err)
	}

	return &Matrix{m: m, hermitian: true}, nil
}

// Shape returns the shape of the backing array.
func (o *Matrix) Shape() []int { return o.m.Shape() }

// IsHermitian returns the declared flag.
func (o *Matrix) IsHermitian() bool { return o.hermitian }

// Dense returns the backing array (shared, not copied).
func (o *Matrix) Dense() *matrix.Dense { return o.m }

// Apply returns m·x.
func (o *Matrix) Apply(x *matrix.Dense) (*matrix.Dense, error) {
	if err := checkApply("Matrix.Apply", x, o.m.Cols()); err != nil {
		return nil, err
	}

	return matrix.MatMul(o.m, x)
}

// ApplyT returns mᵀ·x.
func (o *Matrix) ApplyT(x *matrix.Dense) (*matrix.Dense, error) {
	if err := checkApply("Matrix.ApplyT", x, o.m.Rows()); err != nil {
		return nil, err
	}

	return matrix.MatMulTA(o.m, x)
}

// Params returns the backing array.
func (o *Matrix) Params() []*matrix.Dense { return []*matrix.Dense{o.m} }

// AccumulateGrad adds u·xᵀ, summed over broadcast batch dimensions, into grads[0].
func (o *Matrix) AccumulateGrad(grads []*matrix.Dense, u, x *matrix.Dense) error {
	if len(grads) != 1 {
		return fmt.Errorf("Matrix.AccumulateGrad: %d gradient slots: %w", len(grads), matrix.ErrDimensionMismatch)
	}
	outer, err := matrix.MatMulTB(u, x)
	if err != nil {
		return fmt.Errorf("Matrix.AccumulateGrad: %w", err)
	}
	folded, err := matrix.SumTo(outer, o.m.Shape())
	if err != nil {
		return fmt.Errorf("Matrix.AccumulateGrad: %w", err)
	}
	if err = matrix.AddTo(grads[0], folded); err != nil {
		return fmt.Errorf("Matrix.AccumulateGrad: %w", err)
	}

	return nil
}
