// SPDX-License-Identifier: MIT

// Package matrix - batched decompositions on gonum/mat.
//
// Purpose:
//   - Eigh: symmetric eigendecomposition (ascending eigenvalues, upper triangle read).
//   - Cholesky: lower factor L with A = L·Lᵀ.
//   - InverseTri: inverse of a lower-triangular batch.
//   - Solve / SolveShifted: LU-based dense solves, optionally with a per-column
//     diagonal shift (A − e_j·M)·x_j = b_j.
//
// Determinism:
//   - Each batch element is factorized independently, in row-major batch order.
//   - Failure of any element aborts the whole call with a sentinel error that
//     names the batch element.

package matrix

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

const (
	opEigh         = "Eigh"
	opCholesky     = "Cholesky"
	opInverseTri   = "InverseTri"
	opSolve        = "Solve"
	opSolveShifted = "SolveShifted"
)

// batchErrorf tags an error with the operation and the failing batch element.
func batchErrorf(tag string, i int, err error) error {
	return fmt.Errorf("%s(batch %d): %w", tag, i, err)
}

// conditionErr maps gonum's singularity reports onto ErrSingular: mat.ErrSingular
// for an exactly singular factor and mat.Condition when the condition number
// exceeds mat.ConditionTolerance. Other errors pass through.
func conditionErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mat.ErrSingular) {
		return fmt.Errorf("%v: %w", err, ErrSingular)
	}
	var c mat.Condition
	if errors.As(err, &c) {
		return fmt.Errorf("condition %g: %w", float64(c), ErrSingular)
	}

	return err
}

// Eigh computes the full eigendecomposition of a batch of symmetric matrices.
// MAIN DESCRIPTION:
//   - Returns vals (*batch, n) in ascending order and vecs (*batch, n, n) whose
//     column j is the unit eigenvector of vals[..., j].
//
// Implementation:
//   - Stage 1: validate the batch is square.
//   - Stage 2: per element, wrap the upper triangle as a mat.SymDense and
//     factorize with mat.EigenSym.
//
// Behavior highlights:
//   - Only the upper triangle is read; slight asymmetry from roundoff is ignored.
//
// Errors:
//   - ErrNilMatrix, ErrBadShape, ErrNonSquare, ErrEigenFailed.
//
// Complexity:
//   - Time O(batch·n³), Space O(batch·n²).
func Eigh(a *Dense) (vals, vecs *Dense, err error) {
	if err = ValidateSquare(a); err != nil {
		return nil, nil, matrixErrorf(opEigh, err)
	}
	n := a.Rows()
	batch := a.BatchShape()
	vals = newDense(append(cloneInts(batch), n))
	vecs = newDense(append(cloneInts(batch), n, n))

	var es mat.EigenSym
	for i := 0; i < a.Len(); i++ {
		sym := mat.NewSymDense(n, a.data[i*n*n:(i+1)*n*n])
		if ok := es.Factorize(sym, true); !ok {
			return nil, nil, batchErrorf(opEigh, i, ErrEigenFailed)
		}
		es.Values(vals.Vector(i))
		es.VectorsTo(vecs.Mat(i))
	}

	return vals, vecs, nil
}

// Cholesky returns the lower-triangular factor L of every batch element.
//
// Errors:
//   - ErrNilMatrix, ErrBadShape, ErrNonSquare, ErrNotPosDef.
func Cholesky(a *Dense) (*Dense, error) {
	if err := ValidateSquare(a); err != nil {
		return nil, matrixErrorf(opCholesky, err)
	}
	n := a.Rows()
	out := newDense(a.shape)

	var ch mat.Cholesky
	for i := 0; i < a.Len(); i++ {
		sym := mat.NewSymDense(n, a.data[i*n*n:(i+1)*n*n])
		if ok := ch.Factorize(sym); !ok {
			return nil, batchErrorf(opCholesky, i, ErrNotPosDef)
		}
		var l mat.TriDense
		ch.LTo(&l)
		out.Mat(i).Copy(&l)
	}

	return out, nil
}

// InverseTri inverts a batch of lower-triangular matrices (the strict upper
// triangle is ignored).
//
// Errors:
//   - ErrNilMatrix, ErrBadShape, ErrNonSquare, ErrSingular.
func InverseTri(l *Dense) (*Dense, error) {
	if err := ValidateSquare(l); err != nil {
		return nil, matrixErrorf(opInverseTri, err)
	}
	n := l.Rows()
	out := newDense(l.shape)
	for i := 0; i < l.Len(); i++ {
		t := mat.NewTriDense(n, mat.Lower, l.data[i*n*n:(i+1)*n*n])
		var inv mat.TriDense
		if err := conditionErr(inv.InverseTri(t)); err != nil {
			return nil, batchErrorf(opInverseTri, i, err)
		}
		out.Mat(i).Copy(&inv)
	}

	return out, nil
}

// Solve returns x with a·x = b for every batch element (LU with partial pivoting).
// a is (*ba, n, n), b is (*bb, n, k); the result is (*broadcast, n, k).
//
// Errors:
//   - ErrNonSquare, ErrDimensionMismatch, ErrBroadcast, ErrSingular.
func Solve(a, b *Dense) (*Dense, error) {
	if err := ValidateSquare(a); err != nil {
		return nil, matrixErrorf(opSolve, err)
	}
	if err := ValidateMatrix(b); err != nil {
		return nil, matrixErrorf(opSolve, err)
	}
	n, k := a.Rows(), b.Cols()
	if b.Rows() != n {
		return nil, matrixErrorf(opSolve, ErrDimensionMismatch)
	}
	batch, err := BroadcastShapes(a.BatchShape(), b.BatchShape())
	if err != nil {
		return nil, matrixErrorf(opSolve, err)
	}
	out := newDense(append(batch, n, k))
	ia := BroadcastIndex(batch, a.BatchShape())
	ib := BroadcastIndex(batch, b.BatchShape())
	for i := range ia {
		if err = conditionErr(out.Mat(i).Solve(a.Mat(ia[i]), b.Mat(ib[i]))); err != nil {
			return nil, batchErrorf(opSolve, i, err)
		}
	}

	return out, nil
}

// SolveShifted solves (a − e_j·m)·x_j = b_j column by column.
// MAIN DESCRIPTION:
//   - a (*ba, n, n); m (*bm, n, n) or nil for the identity; e (*be, k) or nil
//     for a zero shift; b (*bb, n, k). Result (*broadcast, n, k).
//
// Implementation:
//   - Stage 1: nil e reduces to a single batched Solve.
//   - Stage 2: otherwise, per batch element and column, assemble the shifted
//     matrix and solve it with mat.VecDense.SolveVec.
//
// Errors:
//   - ErrNonSquare, ErrDimensionMismatch, ErrBroadcast, ErrSingular.
//
// Complexity:
//   - Time O(batch·k·n³) with a shift, O(batch·n³) without.
func SolveShifted(a, m, e, b *Dense) (*Dense, error) {
	if e == nil {
		return Solve(a, b)
	}
	if err := ValidateSquare(a); err != nil {
		return nil, matrixErrorf(opSolveShifted, err)
	}
	if err := ValidateMatrix(b); err != nil {
		return nil, matrixErrorf(opSolveShifted, err)
	}
	n, k := a.Rows(), b.Cols()
	if b.Rows() != n || (e.Cols() != k && e.Cols() != 1) {
		return nil, matrixErrorf(opSolveShifted, ErrDimensionMismatch)
	}
	shapes := [][]int{a.BatchShape(), b.BatchShape(), e.VectorBatchShape()}
	if m != nil {
		if err := ValidateSquare(m); err != nil {
			return nil, matrixErrorf(opSolveShifted, err)
		}
		if m.Rows() != n {
			return nil, matrixErrorf(opSolveShifted, ErrDimensionMismatch)
		}
		shapes = append(shapes, m.BatchShape())
	}
	batch, err := BroadcastShapes(shapes...)
	if err != nil {
		return nil, matrixErrorf(opSolveShifted, err)
	}

	out := newDense(append(batch, n, k))
	ia := BroadcastIndex(batch, a.BatchShape())
	ib := BroadcastIndex(batch, b.BatchShape())
	ie := BroadcastIndex(batch, e.VectorBatchShape())
	var im []int
	if m != nil {
		im = BroadcastIndex(batch, m.BatchShape())
	}

	shifted := mat.NewDense(n, n, nil)
	raw := shifted.RawMatrix().Data
	x := mat.NewVecDense(n, nil)
	for i := range ia {
		av := a.data[ia[i]*n*n : (ia[i]+1)*n*n]
		ev := e.Vector(ie[i])
		for j := 0; j < k; j++ {
			shift := ev[0]
			if len(ev) == k {
				shift = ev[j]
			}
			copy(raw, av)
			if m != nil {
				mv := m.data[im[i]*n*n : (im[i]+1)*n*n]
				for p := range raw {
					raw[p] -= shift * mv[p]
				}
			} else {
				for d := 0; d < n; d++ {
					raw[d*n+d] -= shift
				}
			}
			if err = conditionErr(x.SolveVec(shifted, b.Mat(ib[i]).ColView(j))); err != nil {
				return nil, batchErrorf(opSolveShifted, i, err)
			}
			out.Mat(i).SetCol(j, x.RawVector().Data)
		}
	}

	return out, nil
}
