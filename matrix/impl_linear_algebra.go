// SPDX-License-Identifier: MIT

// Package matrix - batched linear-algebra kernels.
//
// Purpose:
//   - Batched products (MatMul and its transposed variants) on gonum/mat.
//   - Elementwise Add/Sub/Scale with a floats fast path for equal shapes and a
//     broadcasting fallback otherwise.
//   - Column scaling (x·diag(e)), identity batches, slicing and concatenation
//     along the last axis, max-abs and approximate equality.
//
// Determinism:
//   - Batches are visited in row-major order of the broadcast batch shape.

package matrix

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Operation tags (no magic strings).
const (
	opMatMul     = "MatMul"
	opMatMulTA   = "MatMulTA"
	opMatMulTB   = "MatMulTB"
	opTranspose  = "Transpose"
	opAdd        = "Add"
	opSub        = "Sub"
	opScaleCols  = "ScaleCols"
	opSliceCols  = "SliceCols"
	opConcatCols = "ConcatCols"
	opEye        = "Eye"
)

// matrixErrorf wraps an underlying error with the given operation tag.
func matrixErrorf(tag string, err error) error {
	return fmt.Errorf("%s: %w", tag, err)
}

// MatMul returns the batched product a·b.
// MAIN DESCRIPTION:
//   - a is (*ba, n, k), b is (*bb, k, m); the result is (*broadcast(ba, bb), n, m).
//
// Implementation:
//   - Stage 1: validate ranks, inner dimensions and batch broadcast.
//   - Stage 2: for each output batch element, gonum Mul into a view of the output.
//
// Errors:
//   - ErrNilMatrix, ErrBadShape (rank < 2), ErrDimensionMismatch, ErrBroadcast.
//
// Complexity:
//   - Time O(batch·n·k·m), Space O(batch·n·m).
func MatMul(a, b *Dense) (*Dense, error) { return matmul(opMatMul, a, b, false, false) }

// MatMulTA returns the batched product aᵀ·b.
func MatMulTA(a, b *Dense) (*Dense, error) { return matmul(opMatMulTA, a, b, true, false) }

// MatMulTB returns the batched product a·bᵀ.
func MatMulTB(a, b *Dense) (*Dense, error) { return matmul(opMatMulTB, a, b, false, true) }

func matmul(tag string, a, b *Dense, ta, tb bool) (*Dense, error) {
	if err := ValidateMatrix(a); err != nil {
		return nil, matrixErrorf(tag, err)
	}
	if err := ValidateMatrix(b); err != nil {
		return nil, matrixErrorf(tag, err)
	}
	n, ka := a.Rows(), a.Cols()
	if ta {
		n, ka = ka, n
	}
	kb, m := b.Rows(), b.Cols()
	if tb {
		kb, m = m, kb
	}
	if ka != kb {
		return nil, matrixErrorf(tag, fmt.Errorf("inner %d vs %d: %w", ka, kb, ErrDimensionMismatch))
	}
	batch, err := BroadcastShapes(a.BatchShape(), b.BatchShape())
	if err != nil {
		return nil, matrixErrorf(tag, err)
	}

	out := newDense(append(batch, n, m))
	ia := BroadcastIndex(batch, a.BatchShape())
	ib := BroadcastIndex(batch, b.BatchShape())
	for i := range ia {
		var am, bm mat.Matrix = a.Mat(ia[i]), b.Mat(ib[i])
		if ta {
			am = am.T()
		}
		if tb {
			bm = bm.T()
		}
		out.Mat(i).Mul(am, bm)
	}

	return out, nil
}

// Transpose swaps the last two axes of every batch element.
func Transpose(a *Dense) (*Dense, error) {
	if err := ValidateMatrix(a); err != nil {
		return nil, matrixErrorf(opTranspose, err)
	}
	out := newDense(append(a.BatchShape(), a.Cols(), a.Rows()))
	for i := 0; i < a.Len(); i++ {
		out.Mat(i).Copy(a.Mat(i).T())
	}

	return out, nil
}

// Add returns a+b with full-shape broadcasting.
func Add(a, b *Dense) (*Dense, error) { return elementwise(opAdd, a, b, 1) }

// Sub returns a−b with full-shape broadcasting.
func Sub(a, b *Dense) (*Dense, error) { return elementwise(opSub, a, b, -1) }

// elementwise computes a + sign·b. Equal shapes take the floats fast path.
func elementwise(tag string, a, b *Dense, sign float64) (*Dense, error) {
	if err := ValidateNotNil(a); err != nil {
		return nil, matrixErrorf(tag, err)
	}
	if err := ValidateNotNil(b); err != nil {
		return nil, matrixErrorf(tag, err)
	}
	if equalInts(a.shape, b.shape) {
		out := a.Clone()
		floats.AddScaled(out.data, sign, b.data)

		return out, nil
	}
	shape, err := BroadcastShapes(a.shape, b.shape)
	if err != nil {
		return nil, matrixErrorf(tag, err)
	}
	out := newDense(shape)
	ia := BroadcastIndex(shape, a.shape)
	ib := BroadcastIndex(shape, b.shape)
	for p := range out.data {
		out.data[p] = a.data[ia[p]] + sign*b.data[ib[p]]
	}

	return out, nil
}

// Scale returns s·a.
func Scale(a *Dense, s float64) *Dense {
	out := a.Clone()
	floats.Scale(s, out.data)

	return out
}

// ScaleCols returns x·diag(e) for every batch element.
// MAIN DESCRIPTION:
//   - x is (*bx, n, k); e is (*be, k) or (*be, 1). Column j of batch element b
//     is multiplied by e[b, j] (or e[b, 0] for a single scale per element).
//
// Errors:
//   - ErrDimensionMismatch if e's last extent is neither k nor 1.
//   - ErrBroadcast if the batch shapes do not broadcast.
func ScaleCols(x, e *Dense) (*Dense, error) {
	if err := ValidateMatrix(x); err != nil {
		return nil, matrixErrorf(opScaleCols, err)
	}
	if err := ValidateNotNil(e); err != nil {
		return nil, matrixErrorf(opScaleCols, err)
	}
	k := x.Cols()
	ke := e.Cols()
	if ke != k && ke != 1 {
		return nil, matrixErrorf(opScaleCols, fmt.Errorf("scale length %d vs %d columns: %w", ke, k, ErrDimensionMismatch))
	}
	eb := e.VectorBatchShape()
	batch, err := BroadcastShapes(x.BatchShape(), eb)
	if err != nil {
		return nil, matrixErrorf(opScaleCols, err)
	}
	n := x.Rows()
	out := newDense(append(batch, n, k))
	ix := BroadcastIndex(batch, x.BatchShape())
	ie := BroadcastIndex(batch, eb)
	for i := range ix {
		src := x.data[ix[i]*n*k : (ix[i]+1)*n*k]
		dst := out.data[i*n*k : (i+1)*n*k]
		scale := e.Vector(ie[i])
		for r := 0; r < n; r++ {
			for j := 0; j < k; j++ {
				s := scale[0]
				if ke == k {
					s = scale[j]
				}
				dst[r*k+j] = src[r*k+j] * s
			}
		}
	}

	return out, nil
}

// SliceCols copies the half-open range [j0, j1) of the last axis.
// Works on matrix batches and vector batches alike.
func SliceCols(a *Dense, j0, j1 int) (*Dense, error) {
	if err := ValidateNotNil(a); err != nil {
		return nil, matrixErrorf(opSliceCols, err)
	}
	c := a.Cols()
	if j0 < 0 || j1 > c || j0 >= j1 {
		return nil, matrixErrorf(opSliceCols, fmt.Errorf("[%d,%d) of %d: %w", j0, j1, c, ErrOutOfRange))
	}
	shape := a.Shape()
	shape[len(shape)-1] = j1 - j0
	out := newDense(shape)
	w := j1 - j0
	for i := 0; i < len(a.data)/c; i++ {
		copy(out.data[i*w:(i+1)*w], a.data[i*c+j0:i*c+j1])
	}

	return out, nil
}

// ConcatCols joins a and b along the last axis. All other extents must match.
func ConcatCols(a, b *Dense) (*Dense, error) {
	if err := ValidateNotNil(a); err != nil {
		return nil, matrixErrorf(opConcatCols, err)
	}
	if err := ValidateNotNil(b); err != nil {
		return nil, matrixErrorf(opConcatCols, err)
	}
	if a.Rank() != b.Rank() || !equalInts(a.shape[:a.Rank()-1], b.shape[:b.Rank()-1]) {
		return nil, matrixErrorf(opConcatCols, fmt.Errorf("%v vs %v: %w", a.shape, b.shape, ErrDimensionMismatch))
	}
	ca, cb := a.Cols(), b.Cols()
	shape := a.Shape()
	shape[len(shape)-1] = ca + cb
	out := newDense(shape)
	w := ca + cb
	for i := 0; i < len(a.data)/ca; i++ {
		copy(out.data[i*w:i*w+ca], a.Vector(i))
		copy(out.data[i*w+ca:(i+1)*w], b.Vector(i))
	}

	return out, nil
}

// Eye returns a batch of n×n identity matrices with the given batch shape.
func Eye(n int, batch ...int) (*Dense, error) {
	if n < 1 {
		return nil, matrixErrorf(opEye, ErrBadShape)
	}
	out, err := New(append(cloneInts(batch), n, n)...)
	if err != nil {
		return nil, matrixErrorf(opEye, err)
	}
	for i := 0; i < out.Len(); i++ {
		base := i * n * n
		for k := 0; k < n; k++ {
			out.data[base+k*n+k] = 1
		}
	}

	return out, nil
}

// MaxAbs returns max|a_ij| over the whole array (the L∞ norm of the buffer).
func MaxAbs(a *Dense) float64 {
	return floats.Norm(a.data, math.Inf(1))
}

// EqualApprox reports whether a and b have identical shapes and every pair of
// elements agrees within tol (absolute or relative).
func EqualApprox(a, b *Dense, tol float64) bool {
	if a == nil || b == nil || !equalInts(a.shape, b.shape) {
		return false
	}

	return floats.EqualApprox(a.data, b.data, tol)
}

// AddTo accumulates src into dst in place. Shapes must match exactly.
func AddTo(dst, src *Dense) error {
	if err := ValidateNotNil(dst); err != nil {
		return matrixErrorf("AddTo", err)
	}
	if err := ValidateNotNil(src); err != nil {
		return matrixErrorf("AddTo", err)
	}
	if err := ValidateSameShape(dst, src); err != nil {
		return matrixErrorf("AddTo", err)
	}
	floats.Add(dst.data, src.data)

	return nil
}

// MulElem returns the elementwise (Hadamard) product a∘b with full-shape
// broadcasting.
func MulElem(a, b *Dense) (*Dense, error) {
	if err := ValidateNotNil(a); err != nil {
		return nil, matrixErrorf("MulElem", err)
	}
	if err := ValidateNotNil(b); err != nil {
		return nil, matrixErrorf("MulElem", err)
	}
	if equalInts(a.shape, b.shape) {
		out := a.Clone()
		floats.Mul(out.data, b.data)

		return out, nil
	}
	shape, err := BroadcastShapes(a.shape, b.shape)
	if err != nil {
		return nil, matrixErrorf("MulElem", err)
	}
	out := newDense(shape)
	ia := BroadcastIndex(shape, a.shape)
	ib := BroadcastIndex(shape, b.shape)
	for p := range out.data {
		out.data[p] = a.data[ia[p]] * b.data[ib[p]]
	}

	return out, nil
}

// ZerosLike returns a zero array with d's shape.
func ZerosLike(d *Dense) *Dense { return newDense(d.shape) }

// AllClose reports whether |a−b| <= atol + rtol·|b| holds elementwise.
// Negative tolerances are taken by magnitude.
//
// Errors:
//   - ErrNaNInf for a non-finite tolerance, ErrNilMatrix, ErrDimensionMismatch
//     unless the shapes are identical.
func AllClose(a, b *Dense, rtol, atol float64) (bool, error) {
	if math.IsNaN(rtol) || math.IsNaN(atol) || math.IsInf(rtol, 0) || math.IsInf(atol, 0) {
		return false, matrixErrorf("AllClose", ErrNaNInf)
	}
	rtol, atol = math.Abs(rtol), math.Abs(atol)
	if err := ValidateNotNil(a); err != nil {
		return false, matrixErrorf("AllClose", err)
	}
	if err := ValidateNotNil(b); err != nil {
		return false, matrixErrorf("AllClose", err)
	}
	if err := ValidateSameShape(a, b); err != nil {
		return false, matrixErrorf("AllClose", err)
	}
	for p, bv := range b.data {
		if math.Abs(a.data[p]-bv) > atol+rtol*math.Abs(bv) {
			return false, nil
		}
	}

	return true, nil
}
