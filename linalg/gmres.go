// SPDX-License-Identifier: MIT

package linalg

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"

	"github.com/katalvlaran/lvlinalg/linop"
	"github.com/katalvlaran/lvlinalg/matrix"
)

// gmresBreakdown is the relative size of a new Krylov direction below which
// the subspace is taken to be invariant (the cycle's solution is exact).
const gmresBreakdown = 1e-14

// bestIterate keeps, per column system, the iterate with the lowest true
// residual norm seen so far.
type bestIterate struct {
	x     *matrix.Dense
	resid []float64
}

func newBestIterate(x *matrix.Dense, resid []float64) *bestIterate {
	return &bestIterate{x: x.Clone(), resid: append([]float64(nil), resid...)}
}

// observe copies every column system of x whose residual improved.
func (b *bestIterate) observe(x *matrix.Dense, resid []float64) {
	for s, r := range resid {
		if r < b.resid[s] || math.IsNaN(b.resid[s]) {
			blas64.Copy(x.Column(s), b.x.Column(s))
			b.resid[s] = r
		}
	}
}

// arnoldi holds the per-system Hessenberg state of one restart cycle.
type arnoldi struct {
	restart int
	h       [][]float64 // (restart+1)×restart, row-major, rotated in place into R
	g       [][]float64 // rotated right-hand side, length restart+1
	cs, sn  [][]float64 // Givens rotations
	steps   []int       // columns of R in use
	active  []bool      // still iterating in this cycle
}

func newArnoldi(ns, restart int) *arnoldi {
	a := &arnoldi{
		restart: restart,
		h:       make([][]float64, ns),
		g:       make([][]float64, ns),
		cs:      make([][]float64, ns),
		sn:      make([][]float64, ns),
		steps:   make([]int, ns),
		active:  make([]bool, ns),
	}
	for s := 0; s < ns; s++ {
		a.h[s] = make([]float64, (restart+1)*restart)
		a.g[s] = make([]float64, restart+1)
		a.cs[s] = make([]float64, restart)
		a.sn[s] = make([]float64, restart)
	}

	return a
}

// reset starts a cycle from residual norms rn; systems already within tol stay idle.
func (a *arnoldi) reset(rn, tol []float64) {
	for s := range a.h {
		clear(a.h[s])
		clear(a.g[s])
		a.g[s][0] = rn[s]
		a.steps[s] = 0
		a.active[s] = rn[s] > tol[s]
	}
}

// rotate folds column j of system s into R with Givens rotations and returns
// the new residual estimate |g[j+1]|. A zero pivot ends the system's cycle.
func (a *arnoldi) rotate(s, j int) float64 {
	r := a.restart
	h := a.h[s]
	for i := 0; i < j; i++ {
		hi, hi1 := h[i*r+j], h[(i+1)*r+j]
		h[i*r+j] = a.cs[s][i]*hi + a.sn[s][i]*hi1
		h[(i+1)*r+j] = -a.sn[s][i]*hi + a.cs[s][i]*hi1
	}
	c, sn, rr, _ := blas64.Implementation().Drotg(h[j*r+j], h[(j+1)*r+j])
	if rr == 0 {
		a.active[s] = false
		return math.Abs(a.g[s][j])
	}
	a.cs[s][j], a.sn[s][j] = c, sn
	h[j*r+j], h[(j+1)*r+j] = rr, 0
	a.g[s][j+1] = -sn * a.g[s][j]
	a.g[s][j] *= c
	a.steps[s] = j + 1

	return math.Abs(a.g[s][j+1])
}

// coefficients solves R·y = g for every system and returns y transposed:
// coef[i][s] multiplies Krylov vector i of system s.
func (a *arnoldi) coefficients(nvec int) [][]float64 {
	ns := len(a.h)
	coef := make([][]float64, nvec)
	for i := range coef {
		coef[i] = make([]float64, ns)
	}
	for s := 0; s < ns; s++ {
		m := a.steps[s]
		if m == 0 {
			continue
		}
		y := append([]float64(nil), a.g[s][:m]...)
		blas64.Trsv(blas.NoTrans,
			blas64.Triangular{Uplo: blas.Upper, Diag: blas.NonUnit, N: m, Stride: a.restart, Data: a.h[s]},
			blas64.Vector{N: m, Inc: 1, Data: y})
		for i := 0; i < m; i++ {
			coef[i][s] = y[i]
		}
	}

	return coef
}

// gmres solves A·x − M·x·diag(E) = B with restarted GMRES.
// MAIN DESCRIPTION:
//   - Every (batch element, column) pair is an independent system; all of
//     them advance together so the operators are applied to whole batches.
//
// Implementation:
//   - Stage 1: x = 0; tol_s = max(rtol·‖b_s‖, atol).
//   - Stage 2: per cycle, compute the true residual, record the best iterate,
//     stop if every system is within tol or the budget is spent.
//   - Stage 3: Arnoldi with modified Gram–Schmidt; Givens rotations per system
//     keep a running residual estimate; systems that converge or break down
//     go idle for the rest of the cycle.
//   - Stage 4: back-substitute R·y = g and update x.
//
// Behavior highlights:
//   - max_niter counts Krylov steps (operator applications), default 10·n.
//   - restart defaults to min(n, 30).
func gmres(a linop.Operator, b, e *matrix.Dense, m linop.Operator, n int, batch []int, o *options) (*matrix.Dense, Stats, error) {
	stats := Stats{Method: MethodGMRES}
	ncols := b.Cols()
	full := append(append([]int(nil), batch...), n, ncols)
	bb, err := matrix.BroadcastTo(b, full)
	if err != nil {
		return nil, stats, fmt.Errorf("gmres: %w", err)
	}
	ns := bb.NumColumns()

	restart := o.restart
	if restart == 0 {
		restart = DefaultRestart
	}
	restart = min(restart, n)
	maxNiter := o.maxNiter
	if maxNiter == 0 {
		maxNiter = DefaultSolveNiterPerDim * n
	}

	bnorm := matrix.ColNorms(bb)
	tol := make([]float64, ns)
	for s := range tol {
		tol[s] = math.Max(o.rtol*bnorm[s], o.atol)
	}

	x, err := matrix.New(full...)
	if err != nil {
		return nil, stats, fmt.Errorf("gmres: %w", err)
	}
	best := newBestIterate(x, bnorm)
	arn := newArnoldi(ns, restart)
	inv := make([]float64, ns)

	for {
		ax, err := applyEffective(a, m, e, x)
		if err != nil {
			return nil, stats, fmt.Errorf("gmres: %w", err)
		}
		r, err := matrix.Sub(bb, ax)
		if err != nil {
			return nil, stats, fmt.Errorf("gmres: %w", err)
		}
		rn := matrix.ColNorms(r)
		best.observe(x, rn)
		if withinTol(rn, tol) {
			stats.Converged = true
			break
		}
		if stats.Iterations >= maxNiter {
			break
		}

		arn.reset(rn, tol)
		for s := range inv {
			inv[s] = 0
			if arn.active[s] {
				inv[s] = 1 / rn[s]
			}
		}
		matrix.ScaleColumns(r, inv)
		basis := []*matrix.Dense{r}

		for j := 0; j < restart && stats.Iterations < maxNiter; j++ {
			stats.Iterations++
			w, err := applyEffective(a, m, e, basis[j])
			if err != nil {
				return nil, stats, fmt.Errorf("gmres: %w", err)
			}
			for i := 0; i <= j; i++ {
				dots, err := matrix.ColDots(basis[i], w)
				if err != nil {
					return nil, stats, fmt.Errorf("gmres: %w", err)
				}
				hij := dots.Data()
				for s := range hij {
					if arn.active[s] {
						arn.h[s][i*restart+j] = hij[s]
					}
					hij[s] = -hij[s]
				}
				if err = matrix.AxpyColumns(hij, basis[i], w); err != nil {
					return nil, stats, fmt.Errorf("gmres: %w", err)
				}
			}

			wn := matrix.ColNorms(w)
			anyActive := false
			worst := 0.0
			for s := range wn {
				inv[s] = 0
				if !arn.active[s] {
					continue
				}
				arn.h[s][(j+1)*restart+j] = wn[s]
				est := arn.rotate(s, j)
				if bnorm[s] > 0 {
					worst = math.Max(worst, est/bnorm[s])
				}
				if !arn.active[s] || est <= tol[s] || wn[s] <= gmresBreakdown*rn[s] {
					arn.active[s] = false
					continue
				}
				inv[s] = 1 / wn[s]
				anyActive = true
			}
			matrix.ScaleColumns(w, inv)
			basis = append(basis, w)

			if o.verbose {
				o.logger.Info("gmres iteration",
					slog.Int("iter", stats.Iterations), slog.Int("cycle_step", j+1),
					slog.Float64("rel_resid", worst))
			}
			if !anyActive {
				break
			}
		}

		for i, c := range arn.coefficients(len(basis)) {
			if err = matrix.AxpyColumns(c, basis[i], x); err != nil {
				return nil, stats, fmt.Errorf("gmres: %w", err)
			}
		}
	}

	for _, r := range best.resid {
		stats.Residual = math.Max(stats.Residual, r)
	}
	if !stats.Converged {
		o.logger.Warn("gmres did not converge",
			slog.Int("max_niter", maxNiter), slog.Float64("resid", stats.Residual))
		if o.strict {
			return nil, stats, fmt.Errorf("gmres: residual %g after %d steps: %w", stats.Residual, stats.Iterations, ErrNotConverged)
		}
	}

	return best.x, stats, nil
}

func withinTol(rn, tol []float64) bool {
	for s, r := range rn {
		if !(r <= tol[s]) {
			return false
		}
	}

	return true
}
