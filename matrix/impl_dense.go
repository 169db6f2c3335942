// SPDX-License-Identifier: MIT

// Package matrix - batched Dense storage (row-major) & safe accessors.
//
// Purpose:
//   - Provide one flat row-major buffer for an N-d array of shape (*batch, rows, cols)
//     or, for vector batches, (*batch, k).
//   - Guarantee safety at the public surface: At/Set return errors instead of panicking.
//   - Keep algorithmic determinism (fixed loop orders, no map iteration).
//   - Expose no-copy gonum views (Mat) so every per-batch kernel runs on gonum/mat.
//
// AI-Hints:
//   - The i-th matrix of a batch lives at data[i*rows*cols : (i+1)*rows*cols].
//   - Use Mat(i) for gonum kernels; mutations through the view reflect in the batch.
//   - Vector batches are rank-1-trailing Dense values; Vector(i) returns the i-th lane.
//
// Complexity quicksheet:
//   - New: O(size) zero-init; At/Set: O(rank); Clone: O(size); Mat/Vector: O(1).

package matrix

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ---------- error context tags ----------

const (
	ctxAt  = "At"  // method tag used in error wrappers
	ctxSet = "Set" // method tag used in error wrappers
	ctxNew = "New" // ctor tag
)

// ---------- Formatting literals  ----------
const (
	_fmtRowOpen  = "["
	_fmtRowClose = "]\n"
	_fmtSep      = ", "
)

// denseErrorf wraps an error with a uniform Dense context and the offending index.
func denseErrorf(method string, idx []int, err error) error {
	return fmt.Errorf("Dense.%s(%v): %w", method, idx, err)
}

// Dense is a batched row-major array.
//   - shape holds every extent, leading batch dimensions first.
//   - data is a flat buffer of length prod(shape) in row-major order.
type Dense struct {
	shape []int     // extents (len >= 1, every entry >= 1)
	data  []float64 // contiguous row-major storage
}

// Compile-time assertion for fmt.Stringer conformance.
var _ fmt.Stringer = (*Dense)(nil)

// New creates a zero array with the given shape.
//
// Errors:
//   - ErrBadShape if shape is empty or any extent is < 1.
//
// Complexity: Time O(size), Space O(size).
func New(shape ...int) (*Dense, error) {
	size, err := shapeSize(shape)
	if err != nil {
		return nil, fmt.Errorf("%s%v: %w", ctxNew, shape, err)
	}

	return &Dense{shape: cloneInts(shape), data: make([]float64, size)}, nil
}

// NewFromData wraps a copy of data into an array of the given shape.
// MAIN DESCRIPTION:
//   - Public ingestion constructor with strict shape and numeric validation.
//
// Implementation:
//   - Stage 1: validate shape and len(data) == prod(shape).
//   - Stage 2: reject NaN/±Inf (ErrNaNInf) so no kernel ever sees poisoned input.
//   - Stage 3: copy data into a fresh buffer.
//
// Inputs:
//   - data: row-major values.
//   - shape: extents, batch dimensions first.
//
// Returns:
//   - *Dense owning its own copy of data.
//
// Errors:
//   - ErrBadShape, ErrNaNInf.
//
// Complexity:
//   - Time O(size), Space O(size).
func NewFromData(data []float64, shape ...int) (*Dense, error) {
	size, err := shapeSize(shape)
	if err != nil {
		return nil, fmt.Errorf("%s%v: %w", ctxNew, shape, err)
	}
	if len(data) != size {
		return nil, fmt.Errorf("%s%v: data length %d: %w", ctxNew, shape, len(data), ErrBadShape)
	}
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%s%v: element %d: %w", ctxNew, shape, i, ErrNaNInf)
		}
	}
	buf := make([]float64, size)
	copy(buf, data)

	return &Dense{shape: cloneInts(shape), data: buf}, nil
}

// newDense allocates without validation; callers guarantee a valid shape.
func newDense(shape []int) *Dense {
	size := 1
	for _, s := range shape {
		size *= s
	}

	return &Dense{shape: cloneInts(shape), data: make([]float64, size)}
}

// shapeSize validates shape and returns prod(shape).
func shapeSize(shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, ErrBadShape
	}
	size := 1
	for _, s := range shape {
		if s < 1 {
			return 0, ErrBadShape
		}
		size *= s
	}

	return size, nil
}

// Shape returns a copy of the full shape.
func (d *Dense) Shape() []int { return cloneInts(d.shape) }

// Rank returns the number of dimensions.
func (d *Dense) Rank() int { return len(d.shape) }

// Size returns the total number of elements.
func (d *Dense) Size() int { return len(d.data) }

// Rows returns the second-to-last extent. For rank-1 arrays it returns 1.
func (d *Dense) Rows() int {
	if len(d.shape) < 2 {
		return 1
	}

	return d.shape[len(d.shape)-2]
}

// Cols returns the last extent.
func (d *Dense) Cols() int { return d.shape[len(d.shape)-1] }

// BatchShape returns the leading dimensions of a matrix batch (everything
// except the trailing rows and cols).
func (d *Dense) BatchShape() []int {
	if len(d.shape) < 2 {
		return []int{}
	}

	return cloneInts(d.shape[:len(d.shape)-2])
}

// VectorBatchShape returns the leading dimensions of a vector batch
// (everything except the trailing extent).
func (d *Dense) VectorBatchShape() []int { return cloneInts(d.shape[:len(d.shape)-1]) }

// Len returns the number of matrices in the batch.
func (d *Dense) Len() int { return prod(d.BatchShape()) }

// Data returns the backing buffer. Mutations are visible to the array.
func (d *Dense) Data() []float64 { return d.data }

// Mat returns a gonum view of the i-th matrix of the batch. The view shares
// storage with d. Panics if i is out of range (programmer error).
func (d *Dense) Mat(i int) *mat.Dense {
	r, c := d.Rows(), d.Cols()
	off := i * r * c

	return mat.NewDense(r, c, d.data[off:off+r*c:off+r*c])
}

// Vector returns the i-th trailing lane (length Cols()) without copying.
func (d *Dense) Vector(i int) []float64 {
	c := d.Cols()

	return d.data[i*c : (i+1)*c : (i+1)*c]
}

// offset converts a full multi-index into a flat offset.
func (d *Dense) offset(idx []int) (int, bool) {
	if len(idx) != len(d.shape) {
		return 0, false
	}
	off := 0
	for k, i := range idx {
		if i < 0 || i >= d.shape[k] {
			return 0, false
		}
		off = off*d.shape[k] + i
	}

	return off, true
}

// At returns the element at the full multi-index idx.
//
// Errors:
//   - ErrOutOfRange if idx has the wrong length or any coordinate is out of bounds.
func (d *Dense) At(idx ...int) (float64, error) {
	off, ok := d.offset(idx)
	if !ok {
		return 0, denseErrorf(ctxAt, idx, ErrOutOfRange)
	}

	return d.data[off], nil
}

// Set assigns v at the full multi-index idx.
//
// Errors:
//   - ErrOutOfRange for bad indices, ErrNaNInf for non-finite v.
func (d *Dense) Set(v float64, idx ...int) error {
	off, ok := d.offset(idx)
	if !ok {
		return denseErrorf(ctxSet, idx, ErrOutOfRange)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return denseErrorf(ctxSet, idx, ErrNaNInf)
	}
	d.data[off] = v

	return nil
}

// Clone returns a deep copy.
func (d *Dense) Clone() *Dense {
	buf := make([]float64, len(d.data))
	copy(buf, d.data)

	return &Dense{shape: cloneInts(d.shape), data: buf}
}

// Reshape returns a view with a new shape over the same buffer.
//
// Errors:
//   - ErrBadShape if the sizes differ.
func (d *Dense) Reshape(shape ...int) (*Dense, error) {
	size, err := shapeSize(shape)
	if err != nil || size != len(d.data) {
		return nil, fmt.Errorf("Reshape%v->%v: %w", d.shape, shape, ErrBadShape)
	}

	return &Dense{shape: cloneInts(shape), data: d.data}, nil
}

// String implements fmt.Stringer. Each trailing lane is printed on its own line.
func (d *Dense) String() string {
	var sb strings.Builder
	c := d.Cols()
	for i := 0; i < len(d.data)/c; i++ {
		sb.WriteString(_fmtRowOpen)
		for j, v := range d.Vector(i) {
			if j > 0 {
				sb.WriteString(_fmtSep)
			}
			fmt.Fprintf(&sb, "%g", v)
		}
		sb.WriteString(_fmtRowClose)
	}

	return sb.String()
}

func cloneInts(s []int) []int {
	out := make([]int, len(s))
	copy(out, s)

	return out
}

func prod(s []int) int {
	p := 1
	for _, v := range s {
		p *= v
	}

	return p
}
