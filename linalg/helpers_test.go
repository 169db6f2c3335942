// Package linalg_test contains shared fixtures for the solver tests.
package linalg_test

import (
	"bytes"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/lvlinalg/linop"
	"github.com/katalvlaran/lvlinalg/matrix"
)

func mustRandn(tb testing.TB, seed uint64, shape ...int) *matrix.Dense {
	tb.Helper()
	d, err := matrix.Randn(matrix.NewRand(seed), shape...)
	require.NoError(tb, err)

	return d
}

func mustFromData(tb testing.TB, data []float64, shape ...int) *matrix.Dense {
	tb.Helper()
	d, err := matrix.NewFromData(data, shape...)
	require.NoError(tb, err)

	return d
}

// mustSpectrum returns Q·diag(d)·Qᵀ for a random orthogonal Q per batch element,
// so every batch element has exactly the eigenvalues d.
func mustSpectrum(tb testing.TB, seed uint64, d []float64, batch ...int) *matrix.Dense {
	tb.Helper()
	n := len(d)
	shape := append(append([]int(nil), batch...), n, n)
	q, _, err := matrix.TallQR(mustRandn(tb, seed, shape...), nil, matrix.NewRand(seed))
	require.NoError(tb, err)
	qd, err := matrix.ScaleCols(q, mustFromData(tb, d, n))
	require.NoError(tb, err)
	a, err := matrix.MatMulTB(qd, q)
	require.NoError(tb, err)

	return symmetrize(tb, a)
}

// mustSPD returns G·Gᵀ/n + I, a well-conditioned metric.
func mustSPD(tb testing.TB, seed uint64, n int, batch ...int) *matrix.Dense {
	tb.Helper()
	g := mustRandn(tb, seed, append(append([]int(nil), batch...), n, n)...)
	ggt, err := matrix.MatMulTB(g, g)
	require.NoError(tb, err)
	eye, err := matrix.Eye(n, batch...)
	require.NoError(tb, err)
	out, err := matrix.Add(matrix.Scale(ggt, 1/float64(n)), eye)
	require.NoError(tb, err)

	return symmetrize(tb, out)
}

// symmetrize returns (a + aᵀ)/2, removing roundoff asymmetry.
func symmetrize(tb testing.TB, a *matrix.Dense) *matrix.Dense {
	tb.Helper()
	at, err := matrix.Transpose(a)
	require.NoError(tb, err)
	s, err := matrix.Add(a, at)
	require.NoError(tb, err)

	return matrix.Scale(s, 0.5)
}

func mustSym(tb testing.TB, a *matrix.Dense) *linop.Matrix {
	tb.Helper()
	op, err := linop.NewSymmetric(a, 1e-12)
	require.NoError(tb, err)

	return op
}

func mustGeneral(tb testing.TB, a *matrix.Dense) *linop.Matrix {
	tb.Helper()
	op, err := linop.NewMatrix(a, false)
	require.NoError(tb, err)

	return op
}

func requireClose(tb testing.TB, want, got *matrix.Dense, atol float64) {
	tb.Helper()
	require.Equal(tb, want.Shape(), got.Shape())
	ok, err := matrix.AllClose(got, want, 0, atol)
	require.NoError(tb, err)
	require.True(tb, ok, "want\n%v\ngot\n%v", want, got)
}

// eigResidual returns max|A·X − M·X·diag(λ)|; m may be nil.
func eigResidual(tb testing.TB, a, m, vals, vecs *matrix.Dense) float64 {
	tb.Helper()
	ax, err := matrix.MatMul(a, vecs)
	require.NoError(tb, err)
	mx := vecs
	if m != nil {
		mx, err = matrix.MatMul(m, vecs)
		require.NoError(tb, err)
	}
	mxl, err := matrix.ScaleCols(mx, vals)
	require.NoError(tb, err)
	r, err := matrix.Sub(ax, mxl)
	require.NoError(tb, err)

	return matrix.MaxAbs(r)
}

// requireMOrthonormal asserts Xᵀ·M·X = I per batch element; m may be nil.
func requireMOrthonormal(tb testing.TB, x, m *matrix.Dense, atol float64) {
	tb.Helper()
	mx := x
	if m != nil {
		var err error
		mx, err = matrix.MatMul(m, x)
		require.NoError(tb, err)
	}
	gram, err := matrix.MatMulTA(x, mx)
	require.NoError(tb, err)
	eye, err := matrix.Eye(x.Cols(), x.BatchShape()...)
	require.NoError(tb, err)
	requireClose(tb, eye, gram, atol)
}

// solveResidual returns max|A·X − M·X·diag(E) − B| with broadcasting; m and e may be nil.
func solveResidual(tb testing.TB, a, m, e, b, x *matrix.Dense) float64 {
	tb.Helper()
	lhs, err := matrix.MatMul(a, x)
	require.NoError(tb, err)
	if e != nil {
		mx := x
		if m != nil {
			mx, err = matrix.MatMul(m, x)
			require.NoError(tb, err)
		}
		mxe, err := matrix.ScaleCols(mx, e)
		require.NoError(tb, err)
		lhs, err = matrix.Sub(lhs, mxe)
		require.NoError(tb, err)
	}
	r, err := matrix.Sub(lhs, b)
	require.NoError(tb, err)

	return matrix.MaxAbs(r)
}

// fd4 is the fourth-order central difference of f at t = 0.
func fd4(f func(t float64) float64, h float64) float64 {
	return (-f(2*h) + 8*f(h) - 8*f(-h) + f(-2*h)) / (12 * h)
}

// captureLogger returns a text logger writing into the returned buffer.
func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer

	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func nanValue() float64 { return math.NaN() }

// shapedOp is an operator that reports an arbitrary shape; Apply is never
// reached by the boundary checks.
type shapedOp []int

func (s shapedOp) Shape() []int { return append([]int(nil), s...) }
func (s shapedOp) IsHermitian() bool { return true }
func (s shapedOp) Apply(*matrix.Dense) (*matrix.Dense, error) {
	return nil, matrix.ErrBadShape
}
