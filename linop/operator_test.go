// Package linop_test contains unit tests for the operator implementations.
package linop_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gonum.org/v1/gonum/floats"

	"github.com/katalvlaran/lvlinalg/linop"
	"github.com/katalvlaran/lvlinalg/matrix"
)

func mustRandn(tb testing.TB, seed uint64, shape ...int) *matrix.Dense {
	tb.Helper()
	d, err := matrix.Randn(matrix.NewRand(seed), shape...)
	require.NoError(tb, err)

	return d
}

func requireClose(tb testing.TB, want, got *matrix.Dense, atol float64) {
	tb.Helper()
	require.Equal(tb, want.Shape(), got.Shape())
	ok, err := matrix.AllClose(got, want, 0, atol)
	require.NoError(tb, err)
	require.True(tb, ok, "want\n%v\ngot\n%v", want, got)
}

// OperatorSuite exercises Matrix, Func and the shared helpers.
type OperatorSuite struct {
	suite.Suite
}

func (s *OperatorSuite) TestMatrixApply() {
	m := mustRandn(s.T(), 1, 2, 3, 4)
	op, err := linop.NewMatrix(m, false)
	require.NoError(s.T(), err)
	require.Equal(s.T(), []int{2, 3, 4}, op.Shape())
	require.False(s.T(), op.IsHermitian())
	require.Equal(s.T(), []int{2}, linop.Batch(op))
	n, k := linop.Dims(op)
	require.Equal(s.T(), 3, n)
	require.Equal(s.T(), 4, k)
	require.False(s.T(), linop.IsSquare(op))

	x := mustRandn(s.T(), 2, 4, 5)
	got, err := op.Apply(x)
	require.NoError(s.T(), err)
	want, err := matrix.MatMul(m, x)
	require.NoError(s.T(), err)
	requireClose(s.T(), want, got, 1e-12)

	y := mustRandn(s.T(), 3, 3, 2)
	gotT, err := op.ApplyT(y)
	require.NoError(s.T(), err)
	wantT, err := matrix.MatMulTA(m, y)
	require.NoError(s.T(), err)
	requireClose(s.T(), wantT, gotT, 1e-12)

	_, err = op.Apply(y)
	require.ErrorIs(s.T(), err, matrix.ErrDimensionMismatch)
}

func (s *OperatorSuite) TestMatrixConstructors() {
	_, err := linop.NewMatrix(nil, false)
	require.ErrorIs(s.T(), err, linop.ErrBadOperator)
	require.ErrorIs(s.T(), err, matrix.ErrNilMatrix)

	_, err = linop.NewMatrix(mustRandn(s.T(), 1, 2, 3), true)
	require.ErrorIs(s.T(), err, linop.ErrBadOperator)

	asym := mustRandn(s.T(), 1, 3, 3)
	_, err = linop.NewSymmetric(asym, 1e-12)
	require.ErrorIs(s.T(), err, matrix.ErrAsymmetry)

	sym, err := matrix.NewFromData([]float64{2, 1, 1, 2}, 2, 2)
	require.NoError(s.T(), err)
	op, err := linop.NewSymmetric(sym, 0)
	require.NoError(s.T(), err)
	require.True(s.T(), op.IsHermitian())
	require.Same(s.T(), sym, op.Dense())
}

func (s *OperatorSuite) TestFullMatrix() {
	m := mustRandn(s.T(), 4, 3, 2, 2)
	op, err := linop.NewMatrix(m, false)
	require.NoError(s.T(), err)
	full, err := linop.FullMatrix(op)
	require.NoError(s.T(), err)
	requireClose(s.T(), m, full, 1e-14)
}

func (s *OperatorSuite) TestTranspose() {
	m := mustRandn(s.T(), 5, 3, 2)
	op, err := linop.NewMatrix(m, false)
	require.NoError(s.T(), err)
	tr, err := linop.Transpose(op)
	require.NoError(s.T(), err)
	require.Equal(s.T(), []int{2, 3}, tr.Shape())
	require.Equal(s.T(), []int{3, 2}, op.Shape(), "Transpose must not alter the source shape")

	full, err := linop.FullMatrix(tr)
	require.NoError(s.T(), err)
	mt, err := matrix.Transpose(m)
	require.NoError(s.T(), err)
	requireClose(s.T(), mt, full, 1e-14)

	back, err := linop.Transpose(tr)
	require.NoError(s.T(), err)
	full, err = linop.FullMatrix(back)
	require.NoError(s.T(), err)
	requireClose(s.T(), m, full, 1e-14)

	sym, err := linop.NewMatrix(mustRandn(s.T(), 6, 2, 2), true)
	require.NoError(s.T(), err)
	same, err := linop.Transpose(sym)
	require.NoError(s.T(), err)
	require.Same(s.T(), linop.Operator(sym), same)
}

func (s *OperatorSuite) TestFunc() {
	m := mustRandn(s.T(), 7, 3, 3)
	apply := func(x *matrix.Dense) (*matrix.Dense, error) { return matrix.MatMul(m, x) }
	f, err := linop.NewFunc([]int{3, 3}, false, apply)
	require.NoError(s.T(), err)
	require.Nil(s.T(), f.Params())
	require.NoError(s.T(), f.AccumulateGrad(nil, nil, nil), "no gradient rule is a no-op")

	_, err = f.ApplyT(mustRandn(s.T(), 1, 3, 1))
	require.ErrorIs(s.T(), err, linop.ErrNoTranspose)
	_, err = linop.Transpose(f)
	require.ErrorIs(s.T(), err, linop.ErrNoTranspose)

	withT, err := linop.NewFunc([]int{3, 3}, false, apply, linop.WithTranspose(func(x *matrix.Dense) (*matrix.Dense, error) {
		return matrix.MatMulTA(m, x)
	}))
	require.NoError(s.T(), err)
	tr, err := linop.Transpose(withT)
	require.NoError(s.T(), err)
	full, err := linop.FullMatrix(tr)
	require.NoError(s.T(), err)
	mt, err := matrix.Transpose(m)
	require.NoError(s.T(), err)
	requireClose(s.T(), mt, full, 1e-14)

	herm, err := linop.NewFunc([]int{3, 3}, true, apply)
	require.NoError(s.T(), err)
	x := mustRandn(s.T(), 8, 3, 2)
	a, err := herm.Apply(x)
	require.NoError(s.T(), err)
	b, err := herm.ApplyT(x)
	require.NoError(s.T(), err)
	requireClose(s.T(), a, b, 0)
}

func (s *OperatorSuite) TestFuncValidation() {
	apply := func(x *matrix.Dense) (*matrix.Dense, error) { return x, nil }
	for _, shape := range [][]int{{3}, {0, 3}, {2, 0, 2}} {
		_, err := linop.NewFunc(shape, false, apply)
		require.ErrorIs(s.T(), err, linop.ErrBadOperator, "shape %v", shape)
	}
	_, err := linop.NewFunc([]int{2, 3}, true, apply)
	require.ErrorIs(s.T(), err, linop.ErrBadOperator)
	_, err = linop.NewFunc([]int{2, 2}, false, nil)
	require.ErrorIs(s.T(), err, linop.ErrBadOperator)

	f, err := linop.NewFunc([]int{2, 2}, false, apply)
	require.NoError(s.T(), err)
	_, err = f.Apply(mustRandn(s.T(), 1, 3, 1))
	require.ErrorIs(s.T(), err, matrix.ErrDimensionMismatch)
}

// TestMatrixGradMatchesFiniteDifference checks the gradient of
// L = ⟨u, M·x⟩ with respect to a batch-broadcast M.
func (s *OperatorSuite) TestMatrixGradMatchesFiniteDifference() {
	m := mustRandn(s.T(), 9, 3, 3)
	u := mustRandn(s.T(), 10, 2, 3, 2)
	x := mustRandn(s.T(), 11, 2, 3, 2)
	op, err := linop.NewMatrix(m, false)
	require.NoError(s.T(), err)

	grads := []*matrix.Dense{matrix.ZerosLike(m)}
	require.NoError(s.T(), op.AccumulateGrad(grads, u, x))

	loss := func() float64 {
		y, err := op.Apply(x)
		require.NoError(s.T(), err)
		return floats.Dot(u.Data(), y.Data())
	}
	const h = 1e-6
	for p := range m.Data() {
		orig := m.Data()[p]
		m.Data()[p] = orig + h
		up := loss()
		m.Data()[p] = orig - h
		down := loss()
		m.Data()[p] = orig
		require.InDelta(s.T(), (up-down)/(2*h), grads[0].Data()[p], 1e-6)
	}

	require.ErrorIs(s.T(), op.AccumulateGrad(nil, u, x), matrix.ErrDimensionMismatch)
}

// TestTransposedGradSwapsArguments checks ⟨u, Mᵀx⟩ = ⟨x, M·u⟩ at the gradient level.
func (s *OperatorSuite) TestTransposedGradSwapsArguments() {
	m := mustRandn(s.T(), 12, 3, 3)
	op, err := linop.NewMatrix(m, false)
	require.NoError(s.T(), err)
	tr, err := linop.Transpose(op)
	require.NoError(s.T(), err)
	d, ok := tr.(linop.Differentiable)
	require.True(s.T(), ok)
	require.Len(s.T(), d.Params(), 1)

	u := mustRandn(s.T(), 13, 3, 1)
	x := mustRandn(s.T(), 14, 3, 1)
	viaT := []*matrix.Dense{matrix.ZerosLike(m)}
	require.NoError(s.T(), d.AccumulateGrad(viaT, u, x))
	direct := []*matrix.Dense{matrix.ZerosLike(m)}
	require.NoError(s.T(), op.AccumulateGrad(direct, x, u))
	requireClose(s.T(), direct[0], viaT[0], 0)
}

// rankOneOp reports a vector shape.
type rankOneOp struct{}

func (rankOneOp) Shape() []int { return []int{3} }
func (rankOneOp) IsHermitian() bool { return false }
func (rankOneOp) Apply(*matrix.Dense) (*matrix.Dense, error) { return nil, matrix.ErrBadShape }

func (s *OperatorSuite) TestShapeHelpersBelowRankTwo() {
	op := rankOneOp{}
	require.ErrorIs(s.T(), linop.CheckShape(op), matrix.ErrBadShape)
	require.Nil(s.T(), linop.Batch(op))
	n, m := linop.Dims(op)
	require.Zero(s.T(), n)
	require.Zero(s.T(), m)
	require.False(s.T(), linop.IsSquare(op))

	sq, err := linop.NewMatrix(mustRandn(s.T(), 4, 2, 3, 3), false)
	require.NoError(s.T(), err)
	require.NoError(s.T(), linop.CheckShape(sq))
	require.True(s.T(), linop.IsSquare(sq))
}

func TestOperatorSuite(t *testing.T) {
	suite.Run(t, new(OperatorSuite))
}
