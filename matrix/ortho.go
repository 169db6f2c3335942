// SPDX-License-Identifier: MIT

// Package matrix - orthogonalization of tall column batches.
//
// Purpose:
//   - Orthogonalize: extend an orthonormal basis with new directions.
//   - TallQR: orthonormalize a tall batch from scratch, returning q and r.
//
// Both work in the inner product ⟨x, y⟩ = xᵀ·M·y when a Metric is supplied,
// and in the Euclidean one otherwise.
//
// Implementation notes:
//   - Modified Gram–Schmidt, one column at a time, vectorized over the batch.
//   - Two projection passes per column ("twice is enough") keep the loss of
//     orthogonality at roundoff level even for nearly dependent inputs.
//   - A column whose norm collapses below orthoDropTol of its original norm
//     is dependent on the basis; it is refilled from the caller's generator
//     and retried, so every batch element keeps the same column count.

package matrix

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Metric applies a symmetric positive-definite operator to a column batch.
type Metric func(x *Dense) (*Dense, error)

const (
	opOrthogonalize = "Orthogonalize"
	opTallQR        = "TallQR"

	orthoPasses  = 2
	orthoRefills = 8
	orthoDropTol = 1e-8
)

// applyMetric returns metric(x), or x itself for the Euclidean case.
func applyMetric(metric Metric, x *Dense) (*Dense, error) {
	if metric == nil {
		return x, nil
	}
	mx, err := metric(x)
	if err != nil {
		return nil, err
	}
	if !equalInts(mx.shape, x.shape) {
		return nil, fmt.Errorf("metric output %v for input %v: %w", mx.shape, x.shape, ErrBroadcast)
	}

	return mx, nil
}

// Orthogonalize returns q whose columns are orthonormal (in the metric) to each
// other and to the columns of basis, spanning the same directions as t modulo basis.
// MAIN DESCRIPTION:
//   - basis: (*batch, n, kb) with orthonormal columns, or nil.
//   - t: (*batch, n, p) candidate directions; it is not modified.
//   - rng: source for refilling dependent columns.
//
// Implementation:
//   - Stage 1: validate shapes and kb+p <= n.
//   - Stage 2: precompute M·basis once.
//   - Stage 3: for each column of t, project twice against basis and the
//     columns accepted so far, normalize, and refill dependent batch elements.
//
// Errors:
//   - ErrNilMatrix, ErrBadShape, ErrDimensionMismatch, ErrBroadcast, or any
//     error from metric.
//
// Complexity:
//   - Time O(batch·n·p·(kb+p)) plus p·(orthoPasses+1) metric applications.
func Orthogonalize(basis, t *Dense, metric Metric, rng *rand.Rand) (*Dense, error) {
	if err := ValidateMatrix(t); err != nil {
		return nil, matrixErrorf(opOrthogonalize, err)
	}
	n, p := t.Rows(), t.Cols()
	kb := 0
	var mbasis *Dense
	if basis != nil {
		if err := ValidateMatrix(basis); err != nil {
			return nil, matrixErrorf(opOrthogonalize, err)
		}
		if basis.Rows() != n || !equalInts(basis.BatchShape(), t.BatchShape()) {
			return nil, matrixErrorf(opOrthogonalize, fmt.Errorf("basis %v vs directions %v: %w", basis.shape, t.shape, ErrDimensionMismatch))
		}
		kb = basis.Cols()
		var err error
		if mbasis, err = applyMetric(metric, basis); err != nil {
			return nil, matrixErrorf(opOrthogonalize, err)
		}
	}
	if kb+p > n {
		return nil, matrixErrorf(opOrthogonalize, fmt.Errorf("%d+%d columns in dimension %d: %w", kb, p, n, ErrDimensionMismatch))
	}

	var q, mq *Dense
	for j := 0; j < p; j++ {
		cur, err := SliceCols(t, j, j+1)
		if err != nil {
			return nil, matrixErrorf(opOrthogonalize, err)
		}
		w, mw, err := orthoColumn(cur, basis, mbasis, q, mq, metric, rng)
		if err != nil {
			return nil, matrixErrorf(opOrthogonalize, err)
		}
		if q == nil {
			q, mq = w, mw
			continue
		}
		if q, err = ConcatCols(q, w); err != nil {
			return nil, matrixErrorf(opOrthogonalize, err)
		}
		if mq, err = ConcatCols(mq, mw); err != nil {
			return nil, matrixErrorf(opOrthogonalize, err)
		}
	}

	return q, nil
}

// orthoColumn orthonormalizes a single column batch cur (*batch, n, 1)
// against the given bases and returns it with its metric image.
func orthoColumn(cur, basis, mbasis, q, mq *Dense, metric Metric, rng *rand.Rand) (w, mw *Dense, err error) {
	n := cur.Rows()
	for attempt := 0; attempt <= orthoRefills; attempt++ {
		mcur, err := applyMetric(metric, cur)
		if err != nil {
			return nil, nil, err
		}
		orig, err := ColDots(cur, mcur)
		if err != nil {
			return nil, nil, err
		}

		w = cur.Clone()
		for pass := 0; pass < orthoPasses; pass++ {
			if w, err = projectOut(w, basis, mbasis); err != nil {
				return nil, nil, err
			}
			if w, err = projectOut(w, q, mq); err != nil {
				return nil, nil, err
			}
		}
		if mw, err = applyMetric(metric, w); err != nil {
			return nil, nil, err
		}
		sq, err := ColDots(w, mw)
		if err != nil {
			return nil, nil, err
		}

		inv := make([]float64, len(sq.data))
		degenerate := false
		for b, v := range sq.data {
			norm := math.Sqrt(math.Max(v, 0))
			if !(norm > orthoDropTol*math.Sqrt(math.Max(orig.data[b], 0))) || norm == 0 {
				degenerate = true
				fillNormal(rng, cur.data[b*n:(b+1)*n])
				continue
			}
			inv[b] = 1 / norm
		}
		if degenerate {
			continue
		}
		if mw == w {
			mw = w.Clone()
		}
		ScaleColumns(w, inv)
		ScaleColumns(mw, inv)

		return w, mw, nil
	}

	return nil, nil, fmt.Errorf("column stays dependent after %d refills: %w", orthoRefills, ErrSingular)
}

// projectOut returns w − basis·(mbasisᵀ·w).
func projectOut(w, basis, mbasis *Dense) (*Dense, error) {
	if basis == nil {
		return w, nil
	}
	coef, err := MatMulTA(mbasis, w)
	if err != nil {
		return nil, err
	}
	proj, err := MatMul(basis, coef)
	if err != nil {
		return nil, err
	}

	return Sub(w, proj)
}

// TallQR orthonormalizes the columns of v (*batch, n, p), p <= n, and returns
// q with orthonormal columns in the metric together with r = qᵀ·M·v.
// For full-rank v, v = q·r with r upper triangular. Columns that are dependent
// are replaced by fresh directions from rng, in which case q·r is only the
// projection of v onto span(q).
func TallQR(v *Dense, metric Metric, rng *rand.Rand) (q, r *Dense, err error) {
	if q, err = Orthogonalize(nil, v, metric, rng); err != nil {
		return nil, nil, matrixErrorf(opTallQR, err)
	}
	mq, err := applyMetric(metric, q)
	if err != nil {
		return nil, nil, matrixErrorf(opTallQR, err)
	}
	if r, err = MatMulTA(mq, v); err != nil {
		return nil, nil, matrixErrorf(opTallQR, err)
	}

	return q, r, nil
}
