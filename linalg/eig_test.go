// Package linalg_test contains unit tests for Eigh.
package linalg_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/katalvlaran/lvlinalg/linalg"
	"github.com/katalvlaran/lvlinalg/linop"
	"github.com/katalvlaran/lvlinalg/matrix"
)

// EighSuite exercises both eigen engines, the generalized problem and the
// boundary checks.
type EighSuite struct {
	suite.Suite
}

var spectrum8 = []float64{-3, -1, 0.5, 2, 4, 5.5, 7, 10}

func (s *EighSuite) TestExactEigKnownSpectrum() {
	a := mustSpectrum(s.T(), 1, spectrum8, 2)
	res, err := linalg.Eigh(mustSym(s.T(), a), 3)
	require.NoError(s.T(), err)
	require.Equal(s.T(), []int{2, 3}, res.Values.Shape())
	require.Equal(s.T(), []int{2, 8, 3}, res.Vectors.Shape())
	require.InDeltaSlice(s.T(), []float64{-3, -1, 0.5, -3, -1, 0.5}, res.Values.Data(), 1e-10)
	require.Less(s.T(), eigResidual(s.T(), a, nil, res.Values, res.Vectors), 1e-10)
	requireMOrthonormal(s.T(), res.Vectors, nil, 1e-10)
	require.Equal(s.T(), linalg.MethodExactEig, res.Stats.Method)
	require.True(s.T(), res.Stats.Converged)

	up, err := linalg.Eigh(mustSym(s.T(), a), 2, linalg.WithMode(linalg.Uppest))
	require.NoError(s.T(), err)
	require.InDeltaSlice(s.T(), []float64{7, 10, 7, 10}, up.Values.Data(), 1e-10)
}

// TestExactEigGeneralized checks A·X = M·X·diag(λ) with XᵀMX = I.
func (s *EighSuite) TestExactEigGeneralized() {
	a := mustSpectrum(s.T(), 2, spectrum8)
	m := mustSPD(s.T(), 3, 8)
	res, err := linalg.Eigh(mustSym(s.T(), a), 4, linalg.WithM(mustSym(s.T(), m)))
	require.NoError(s.T(), err)
	require.Less(s.T(), eigResidual(s.T(), a, m, res.Values, res.Vectors), 1e-9)
	requireMOrthonormal(s.T(), res.Vectors, m, 1e-9)

	lane := res.Values.Data()
	for j := 1; j < len(lane); j++ {
		require.Less(s.T(), lane[j-1], lane[j], "eigenvalues must ascend")
	}
}

func (s *EighSuite) TestDavidsonMatchesExact() {
	a := mustSpectrum(s.T(), 4, spectrum8, 3)
	for _, neig := range []int{1, 2, 8} {
		exact, err := linalg.Eigh(mustSym(s.T(), a), neig)
		require.NoError(s.T(), err)
		dav, err := linalg.Eigh(mustSym(s.T(), a), neig,
			linalg.WithMethod(linalg.MethodDavidson), linalg.WithMinEps(1e-9))
		require.NoError(s.T(), err, "neig=%d", neig)
		require.True(s.T(), dav.Stats.Converged)
		require.Equal(s.T(), linalg.MethodDavidson, dav.Stats.Method)
		requireClose(s.T(), exact.Values, dav.Values, 1e-8)
		require.Less(s.T(), eigResidual(s.T(), a, nil, dav.Values, dav.Vectors), 1e-8)
		requireMOrthonormal(s.T(), dav.Vectors, nil, 1e-9)
	}
}

func (s *EighSuite) TestDavidsonUppestGeneralized() {
	a := mustSpectrum(s.T(), 5, spectrum8)
	m := mustSPD(s.T(), 6, 8)
	opts := []linalg.Option{linalg.WithM(mustSym(s.T(), m)), linalg.WithMode(linalg.Uppest)}
	exact, err := linalg.Eigh(mustSym(s.T(), a), 2, opts...)
	require.NoError(s.T(), err)
	dav, err := linalg.Eigh(mustSym(s.T(), a), 2,
		append(opts, linalg.WithMethod(linalg.MethodDavidson), linalg.WithMinEps(1e-9))...)
	require.NoError(s.T(), err)
	requireClose(s.T(), exact.Values, dav.Values, 1e-8)
	require.Less(s.T(), eigResidual(s.T(), a, m, dav.Values, dav.Vectors), 1e-8)
	requireMOrthonormal(s.T(), dav.Vectors, m, 1e-9)
}

// TestBatchBroadcast combines A with batch (2, 3) and M with batch (2, 1).
func (s *EighSuite) TestBatchBroadcast() {
	a := mustSpectrum(s.T(), 7, []float64{1, 2, 3, 4, 5, 6}, 2, 3)
	m := mustSPD(s.T(), 8, 6, 2, 1)
	for _, method := range []linalg.Method{linalg.MethodExactEig, linalg.MethodDavidson} {
		res, err := linalg.Eigh(mustSym(s.T(), a), 2,
			linalg.WithM(mustSym(s.T(), m)), linalg.WithMethod(method), linalg.WithMinEps(1e-9))
		require.NoError(s.T(), err, "method %s", method)
		require.Equal(s.T(), []int{2, 3, 2}, res.Values.Shape())
		require.Equal(s.T(), []int{2, 3, 6, 2}, res.Vectors.Shape())
		require.Less(s.T(), eigResidual(s.T(), a, m, res.Values, res.Vectors), 1e-8)
	}
}

func (s *EighSuite) TestDavidsonInitialSubspaces() {
	a := mustSpectrum(s.T(), 9, spectrum8)
	exact, err := linalg.Eigh(mustSym(s.T(), a), 2)
	require.NoError(s.T(), err)
	for _, v := range []string{linalg.VInitRandn, linalg.VInitRand, linalg.VInitRandom, linalg.VInitEye} {
		res, err := linalg.Eigh(mustSym(s.T(), a), 2,
			linalg.WithMethod(linalg.MethodDavidson), linalg.WithVInit(v),
			linalg.WithNGuess(3), linalg.WithMaxAddition(1), linalg.WithMinEps(1e-9))
		require.NoError(s.T(), err, "v_init %s", v)
		requireClose(s.T(), exact.Values, res.Values, 1e-8)
	}
}

// TestDavidsonSingleAddition grows the subspace one column at a time; the
// later pairs must keep converging after the first one has.
func (s *EighSuite) TestDavidsonSingleAddition() {
	n := 120
	d := []float64{0.1, 0.2, 0.3}
	for i := 3; i < n; i++ {
		d = append(d, 10+10*float64(i-3)/float64(n-3))
	}
	a := mustSym(s.T(), mustSpectrum(s.T(), 13, d))
	res, err := linalg.Eigh(a, 3,
		linalg.WithMethod(linalg.MethodDavidson), linalg.WithMaxAddition(1),
		linalg.WithMinEps(1e-8), linalg.WithMaxNiter(100), linalg.WithStrict(true))
	require.NoError(s.T(), err)
	require.True(s.T(), res.Stats.Converged)
	require.Less(s.T(), res.Stats.SubspaceSize, n)
	requireClose(s.T(), mustFromData(s.T(), d[:3], 3), res.Values, 1e-7)
}

func (s *EighSuite) TestDavidsonDeterministic() {
	a := mustSpectrum(s.T(), 10, spectrum8)
	logger, _ := captureLogger()
	run := func() *linalg.EigResult {
		res, err := linalg.Eigh(mustSym(s.T(), a), 2, linalg.WithLogger(logger),
			linalg.WithMethod(linalg.MethodDavidson), linalg.WithSeed(99), linalg.WithMaxNiter(2))
		require.NoError(s.T(), err)
		return res
	}
	r1, r2 := run(), run()
	require.Equal(s.T(), r1.Values.Data(), r2.Values.Data())
	require.Equal(s.T(), r1.Vectors.Data(), r2.Vectors.Data())
}

// TestDavidsonBudget covers the lenient and strict outcomes of running out
// of iterations, and the verbose trace.
func (s *EighSuite) TestDavidsonBudget() {
	n := 30
	d := make([]float64, n)
	for i := range d {
		d[i] = float64(i + 1)
	}
	a := mustSym(s.T(), mustSpectrum(s.T(), 11, d))

	logger, buf := captureLogger()
	res, err := linalg.Eigh(a, 2, linalg.WithMethod(linalg.MethodDavidson),
		linalg.WithMaxNiter(1), linalg.WithVerbose(true), linalg.WithLogger(logger))
	require.NoError(s.T(), err)
	require.False(s.T(), res.Stats.Converged)
	require.Equal(s.T(), 1, res.Stats.Iterations)
	require.Greater(s.T(), res.Stats.Residual, linalg.DefaultMinEps)
	require.Contains(s.T(), buf.String(), "davidson iteration")
	require.Contains(s.T(), buf.String(), "davidson did not converge")

	_, err = linalg.Eigh(a, 2, linalg.WithMethod(linalg.MethodDavidson),
		linalg.WithMaxNiter(1), linalg.WithStrict(true), linalg.WithLogger(logger))
	require.ErrorIs(s.T(), err, linalg.ErrNotConverged)
}

func (s *EighSuite) TestBoundaryErrors() {
	a := mustSym(s.T(), mustSpectrum(s.T(), 12, []float64{1, 2, 3}))

	rect, err := linop.NewMatrix(mustRandn(s.T(), 1, 3, 2), false)
	require.NoError(s.T(), err)
	_, err = linalg.Eigh(rect, 1)
	var se *linalg.ShapeError
	require.True(s.T(), errors.As(err, &se))
	require.Equal(s.T(), "A", se.Operand)
	require.ErrorIs(s.T(), err, linalg.ErrShape)
	require.ErrorIs(s.T(), err, matrix.ErrNonSquare)

	m4 := mustSym(s.T(), mustSPD(s.T(), 2, 4))
	_, err = linalg.Eigh(a, 1, linalg.WithM(m4))
	require.True(s.T(), errors.As(err, &se))
	require.Equal(s.T(), "M", se.Operand)
	require.ErrorIs(s.T(), err, matrix.ErrDimensionMismatch)

	ab := mustSym(s.T(), mustSpectrum(s.T(), 3, []float64{1, 2, 3}, 2))
	mb := mustSym(s.T(), mustSPD(s.T(), 4, 3, 3))
	_, err = linalg.Eigh(ab, 1, linalg.WithM(mb))
	require.ErrorIs(s.T(), err, linalg.ErrShape)
	require.ErrorIs(s.T(), err, matrix.ErrBroadcast)

	for _, neig := range []int{0, 4} {
		_, err = linalg.Eigh(a, neig)
		require.True(s.T(), errors.As(err, &se), "neig=%d", neig)
		require.Equal(s.T(), "neig", se.Operand)
	}

	_, err = linalg.Eigh(nil, 1)
	require.ErrorIs(s.T(), err, matrix.ErrNilMatrix)

	for _, shape := range [][]int{{3}, {}, {3, 0}} {
		_, err = linalg.Eigh(shapedOp(shape), 1)
		require.True(s.T(), errors.As(err, &se), "shape %v", shape)
		require.Equal(s.T(), "A", se.Operand)
		require.ErrorIs(s.T(), err, matrix.ErrBadShape)
	}
	_, err = linalg.Eigh(a, 1, linalg.WithM(shapedOp{3}))
	require.True(s.T(), errors.As(err, &se))
	require.Equal(s.T(), "M", se.Operand)
	require.ErrorIs(s.T(), err, matrix.ErrBadShape)
}

func (s *EighSuite) TestHermitianAndDefiniteness() {
	g := mustRandn(s.T(), 13, 3, 3)
	_, err := linalg.Eigh(mustGeneral(s.T(), g), 1)
	require.ErrorIs(s.T(), err, linalg.ErrNotHermitian)

	a := mustSym(s.T(), mustSpectrum(s.T(), 14, []float64{1, 2, 3}))
	_, err = linalg.Eigh(a, 1, linalg.WithM(mustGeneral(s.T(), mustSPD(s.T(), 15, 3))))
	require.ErrorIs(s.T(), err, linalg.ErrNotHermitian)

	indefinite := mustSym(s.T(), mustSpectrum(s.T(), 16, []float64{-1, 2, 3}))
	_, err = linalg.Eigh(a, 1, linalg.WithM(indefinite))
	require.ErrorIs(s.T(), err, linalg.ErrNotPosDef)
}

func (s *EighSuite) TestConfigErrors() {
	a := mustSym(s.T(), mustSpectrum(s.T(), 17, []float64{1, 2, 3}))
	for name, opt := range map[string]linalg.Option{
		"unknown method":  linalg.WithMethod("lanczos"),
		"solve method":    linalg.WithMethod(linalg.MethodGMRES),
		"solve-only key":  linalg.WithRTol(1e-3),
		"shift":           linalg.WithE(mustFromData(s.T(), []float64{1}, 1)),
		"bad mode":        linalg.WithMode("middle"),
		"bad min_eps":     linalg.WithMinEps(-1),
		"bad v_init":      linalg.WithVInit("zeros"),
		"bad max_niter":   linalg.WithMaxNiter(0),
		"bad nguess":      linalg.WithNGuess(0),
		"bad addition":    linalg.WithMaxAddition(-2),
		"restart for eig": linalg.WithRestart(5),
	} {
		_, err := linalg.Eigh(a, 1, opt)
		require.ErrorIs(s.T(), err, linalg.ErrConfig, name)
	}
}

// TestNGuessClamped accepts nguess outside [neig, n].
func (s *EighSuite) TestNGuessClamped() {
	a := mustSym(s.T(), mustSpectrum(s.T(), 18, spectrum8))
	for _, ng := range []int{1, 50} {
		res, err := linalg.Eigh(a, 2, linalg.WithMethod(linalg.MethodDavidson),
			linalg.WithNGuess(ng), linalg.WithMinEps(1e-9))
		require.NoError(s.T(), err, "nguess=%d", ng)
		require.InDeltaSlice(s.T(), []float64{-3, -1}, res.Values.Data(), 1e-8)
	}
}

func TestEighSuite(t *testing.T) {
	suite.Run(t, new(EighSuite))
}
