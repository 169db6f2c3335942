// SPDX-License-Identifier: MIT

package linalg

import (
	"cmp"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/katalvlaran/lvlinalg/linop"
	"github.com/katalvlaran/lvlinalg/matrix"
)

// bestEigpairs keeps the lowest-residual eigenpairs seen so far.
// It is updated only when the residual strictly improves.
type bestEigpairs struct {
	vals, vecs *matrix.Dense
	resid      float64
	iter       int
}

func (b *bestEigpairs) observe(vals, vecs *matrix.Dense, resid float64, iter int) {
	if b.vals != nil && !(resid < b.resid) {
		return
	}
	b.vals, b.vecs, b.resid, b.iter = vals, vecs, resid, iter
}

// davidson runs the subspace iteration.
// MAIN DESCRIPTION:
//   - Keeps an (M-)orthonormal basis V (*batch, n, k) and AV = A·V.
//
// Implementation (per iteration):
//   - Stage 1: project T = Vᵀ·AV and decompose it densely; keep neig pairs by mode.
//   - Stage 2: lift X = V·Y and form R = A·X − M·X·diag(λ) (AX = AV·Y, no new apply).
//   - Stage 3: stop when max|R| < min_eps or k == n.
//   - Stage 4: expand with −R, taking up to min(neig, max_addition, n−k)
//     unconverged columns with the largest residuals, orthogonalized against
//     V; apply A only to the new columns.
//
// Behavior highlights:
//   - Running out of max_niter returns the best pairs seen with a warning,
//     or ErrNotConverged in strict mode.
func davidson(a, m linop.Operator, neig, n int, batch []int, o *options) (*matrix.Dense, *matrix.Dense, Stats, error) {
	stats := Stats{Method: MethodDavidson}
	rng := matrix.NewRand(o.seed)
	metric := metricOf(m)

	nguess := o.nguess
	if nguess == 0 {
		nguess = neig
	}
	nguess = min(max(nguess, neig), n)
	maxAdd := o.maxAddition
	if maxAdd == 0 {
		maxAdd = neig
	}
	maxNiter := o.maxNiter
	if maxNiter == 0 {
		maxNiter = DefaultEigMaxNiter
	}

	v0, err := initialSubspace(o.vInit, rng, batch, n, nguess)
	if err != nil {
		return nil, nil, stats, err
	}
	v, _, err := matrix.TallQR(v0, metric, rng)
	if err != nil {
		return nil, nil, stats, fmt.Errorf("davidson: initial subspace: %w", err)
	}
	av, err := a.Apply(v)
	if err != nil {
		return nil, nil, stats, fmt.Errorf("davidson: A: %w", err)
	}

	var (
		best    bestEigpairs
		prevVal *matrix.Dense
	)
	for iter := 1; iter <= maxNiter; iter++ {
		stats.Iterations = iter
		k := v.Cols()
		stats.SubspaceSize = k

		t, err := matrix.MatMulTA(v, av)
		if err != nil {
			return nil, nil, stats, fmt.Errorf("davidson: %w", err)
		}
		tvals, tvecs, err := matrix.Eigh(t)
		if err != nil {
			return nil, nil, stats, fmt.Errorf("davidson: %w", err)
		}
		lam, y, err := takePairs(tvals, tvecs, neig, o.mode)
		if err != nil {
			return nil, nil, stats, fmt.Errorf("davidson: %w", err)
		}
		resid, x, err := ritzResidual(m, v, av, lam, y)
		if err != nil {
			return nil, nil, stats, err
		}
		rmax := matrix.MaxAbs(resid)
		best.observe(lam, x, rmax, iter)

		if o.verbose {
			dlam := math.Inf(1)
			if prevVal != nil {
				if d, err := matrix.Sub(lam, prevVal); err == nil {
					dlam = matrix.MaxAbs(d)
				}
			}
			o.logger.Info("davidson iteration",
				slog.Int("iter", iter), slog.Int("subspace", k),
				slog.Float64("resid", rmax), slog.Float64("dlambda", dlam))
		}
		prevVal = lam

		if rmax < o.minEps || k >= n {
			stats.Converged = true
			break
		}

		dir, err := expansionCols(resid, min(neig, maxAdd, n-k), o.minEps)
		if err != nil {
			return nil, nil, stats, fmt.Errorf("davidson: %w", err)
		}
		tnew, err := matrix.Orthogonalize(v, matrix.Scale(dir, -1), metric, rng)
		if err != nil {
			return nil, nil, stats, fmt.Errorf("davidson: expand: %w", err)
		}
		atnew, err := a.Apply(tnew)
		if err != nil {
			return nil, nil, stats, fmt.Errorf("davidson: A: %w", err)
		}
		if v, err = matrix.ConcatCols(v, tnew); err != nil {
			return nil, nil, stats, fmt.Errorf("davidson: %w", err)
		}
		if av, err = matrix.ConcatCols(av, atnew); err != nil {
			return nil, nil, stats, fmt.Errorf("davidson: %w", err)
		}
	}

	stats.Residual = best.resid
	if !stats.Converged {
		o.logger.Warn("davidson did not converge",
			slog.Int("max_niter", maxNiter), slog.Float64("resid", best.resid),
			slog.Float64("min_eps", o.minEps), slog.Int("best_iter", best.iter))
		if o.strict {
			return nil, nil, stats, fmt.Errorf("davidson: residual %g after %d iterations: %w", best.resid, maxNiter, ErrNotConverged)
		}
	}

	return best.vals, best.vecs, stats, nil
}

// ritzResidual lifts the Ritz vectors X = V·Y and returns
// R = AV·Y − M·X·diag(λ) together with X.
func ritzResidual(m linop.Operator, v, av, lam, y *matrix.Dense) (*matrix.Dense, *matrix.Dense, error) {
	x, err := matrix.MatMul(v, y)
	if err != nil {
		return nil, nil, fmt.Errorf("davidson: %w", err)
	}
	ax, err := matrix.MatMul(av, y)
	if err != nil {
		return nil, nil, fmt.Errorf("davidson: %w", err)
	}
	mx, err := applyOrSelf(m, x)
	if err != nil {
		return nil, nil, fmt.Errorf("davidson: M: %w", err)
	}
	mxl, err := matrix.ScaleCols(mx, lam)
	if err != nil {
		return nil, nil, fmt.Errorf("davidson: %w", err)
	}
	r, err := matrix.Sub(ax, mxl)
	if err != nil {
		return nil, nil, fmt.Errorf("davidson: %w", err)
	}

	return r, x, nil
}

// expansionCols picks at most nadd residual columns, largest max-abs residual
// (over the batch) first, skipping columns already below minEps. The first
// pick is always kept.
func expansionCols(resid *matrix.Dense, nadd int, minEps float64) (*matrix.Dense, error) {
	k := resid.Cols()
	norms := make([]float64, k)
	data := resid.Data()
	for p, v := range data {
		j := p % k
		norms[j] = math.Max(norms[j], math.Abs(v))
	}
	order := make([]int, k)
	for j := range order {
		order[j] = j
	}
	slices.SortStableFunc(order, func(i, j int) int { return cmp.Compare(norms[j], norms[i]) })

	var out *matrix.Dense
	for _, j := range order[:min(nadd, k)] {
		if out != nil && norms[j] < minEps {
			break
		}
		col, err := matrix.SliceCols(resid, j, j+1)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = col
			continue
		}
		if out, err = matrix.ConcatCols(out, col); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// initialSubspace draws the nguess starting directions.
func initialSubspace(vInit string, rng *rand.Rand, batch []int, n, nguess int) (*matrix.Dense, error) {
	shape := append(append([]int(nil), batch...), n, nguess)
	switch vInit {
	case VInitRandn:
		return matrix.Randn(rng, shape...)
	case VInitRand, VInitRandom:
		return matrix.RandUniform(rng, shape...)
	case VInitEye:
		v, err := matrix.New(shape...)
		if err != nil {
			return nil, err
		}
		for b := 0; b < v.Len(); b++ {
			vm := v.Mat(b)
			for j := 0; j < nguess; j++ {
				vm.Set(j, j, 1)
			}
		}

		return v, nil
	}

	return nil, configErrorf("unknown %s %q", KeyVInit, vInit)
}
