// Package matrix_test contains shared fixtures for the matrix tests.
package matrix_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/lvlinalg/matrix"
)

const tol = 1e-10

// mustFromData builds an array or fails the test.
func mustFromData(tb testing.TB, data []float64, shape ...int) *matrix.Dense {
	tb.Helper()
	d, err := matrix.NewFromData(data, shape...)
	require.NoError(tb, err)

	return d
}

// mustRandn draws a standard-normal array from a fixed seed.
func mustRandn(tb testing.TB, seed uint64, shape ...int) *matrix.Dense {
	tb.Helper()
	d, err := matrix.Randn(matrix.NewRand(seed), shape...)
	require.NoError(tb, err)

	return d
}

// mustSPD returns a well-conditioned symmetric positive-definite batch
// G·Gᵀ + n·I.
func mustSPD(tb testing.TB, seed uint64, n int, batch ...int) *matrix.Dense {
	tb.Helper()
	g := mustRandn(tb, seed, append(append([]int(nil), batch...), n, n)...)
	ggt, err := matrix.MatMulTB(g, g)
	require.NoError(tb, err)
	eye, err := matrix.Eye(n, batch...)
	require.NoError(tb, err)
	out, err := matrix.Add(ggt, matrix.Scale(eye, float64(n)))
	require.NoError(tb, err)

	return out
}

// mustSymmetric returns (G + Gᵀ)/2.
func mustSymmetric(tb testing.TB, seed uint64, n int, batch ...int) *matrix.Dense {
	tb.Helper()
	g := mustRandn(tb, seed, append(append([]int(nil), batch...), n, n)...)
	gt, err := matrix.Transpose(g)
	require.NoError(tb, err)
	s, err := matrix.Add(g, gt)
	require.NoError(tb, err)

	return matrix.Scale(s, 0.5)
}

// requireClose asserts identical shapes and elementwise agreement within atol.
func requireClose(tb testing.TB, want, got *matrix.Dense, atol float64, msgAndArgs ...any) {
	tb.Helper()
	require.Equal(tb, want.Shape(), got.Shape(), msgAndArgs...)
	ok, err := matrix.AllClose(got, want, 0, atol)
	require.NoError(tb, err)
	require.True(tb, ok, "want\n%v\ngot\n%v", want, got)
}

// requireOrthonormal asserts qᵀ·m·q = I for every batch element; m may be nil.
func requireOrthonormal(tb testing.TB, q, m *matrix.Dense) {
	tb.Helper()
	mq := q
	if m != nil {
		var err error
		mq, err = matrix.MatMul(m, q)
		require.NoError(tb, err)
	}
	gram, err := matrix.MatMulTA(q, mq)
	require.NoError(tb, err)
	eye, err := matrix.Eye(q.Cols(), q.BatchShape()...)
	require.NoError(tb, err)
	requireClose(tb, eye, gram, 1e-9)
}

func nanValue() float64 { return math.NaN() }

func infValue() float64 { return math.Inf(1) }
