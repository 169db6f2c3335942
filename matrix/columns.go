// SPDX-License-Identifier: MIT

// Package matrix - per-column kernels.
//
// A batch of shape (*batch, n, k) is viewed as batch·k independent column
// vectors ("systems"), numbered s = b*k + j for batch element b and column j.
// Iterative solvers keep one scalar per system in a []float64 indexed by s
// and drive these kernels with it. Column access is strided (Inc = k) and
// runs on gonum blas64.

package matrix

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas/blas64"
)

// Column returns the s-th column of a matrix batch as a strided blas64 vector
// sharing d's storage.
func (d *Dense) Column(s int) blas64.Vector {
	n, k := d.Rows(), d.Cols()
	b, j := s/k, s%k
	off := b*n*k + j

	return blas64.Vector{N: n, Inc: k, Data: d.data[off : off+(n-1)*k+1]}
}

// NumColumns returns the number of column systems in a matrix batch.
func (d *Dense) NumColumns() int { return d.Len() * d.Cols() }

// ColDots returns the column-wise inner products aᵀb as a (*batch, k) array.
// Entry s of the result's buffer is the dot product of system s.
//
// Errors:
//   - ErrDimensionMismatch unless a and b have identical shapes.
func ColDots(a, b *Dense) (*Dense, error) {
	if err := ValidateMatrix(a); err != nil {
		return nil, matrixErrorf("ColDots", err)
	}
	if err := ValidateSameShape(a, b); err != nil {
		return nil, matrixErrorf("ColDots", err)
	}
	out := newDense(append(a.BatchShape(), a.Cols()))
	for s := range out.data {
		out.data[s] = blas64.Dot(a.Column(s), b.Column(s))
	}

	return out, nil
}

// ColNorms returns the Euclidean norm of every column system.
func ColNorms(a *Dense) []float64 {
	out := make([]float64, a.NumColumns())
	for s := range out {
		out[s] = blas64.Nrm2(a.Column(s))
	}

	return out
}

// ScaleColumns multiplies column system s of d by alpha[s], in place.
func ScaleColumns(d *Dense, alpha []float64) {
	for s, a := range alpha {
		blas64.Scal(a, d.Column(s))
	}
}

// AxpyColumns computes y_s += alpha[s]·x_s for every column system, in place.
// x and y must share a shape.
func AxpyColumns(alpha []float64, x, y *Dense) error {
	if err := ValidateSameShape(x, y); err != nil {
		return matrixErrorf("AxpyColumns", err)
	}
	if len(alpha) != x.NumColumns() {
		return matrixErrorf("AxpyColumns", fmt.Errorf("%d coefficients for %d columns: %w", len(alpha), x.NumColumns(), ErrDimensionMismatch))
	}
	for s, a := range alpha {
		if a != 0 {
			blas64.Axpy(a, x.Column(s), y.Column(s))
		}
	}

	return nil
}

// MaxColumnNorm returns the largest column norm of a, or 0 for an all-zero batch.
func MaxColumnNorm(a *Dense) float64 {
	m := 0.0
	for _, v := range ColNorms(a) {
		m = math.Max(m, v)
	}

	return m
}
