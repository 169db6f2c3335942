// SPDX-License-Identifier: MIT

// Package matrix - NumPy-style broadcasting over leading dimensions.
//
// Rules:
//   - Shapes are right-aligned; missing leading extents count as 1.
//   - Two extents are compatible when equal or when either is 1.
//   - The combined extent is the maximum of the pair.
//
// Every batched kernel sizes its output with BroadcastShapes and addresses its
// operands with BroadcastIndex, so the law holds uniformly across the module.

package matrix

import "fmt"

// BroadcastShapes returns the combined shape of all inputs.
//
// Errors:
//   - ErrBroadcast if any pair of right-aligned extents is incompatible.
//
// Complexity: O(sum of ranks).
func BroadcastShapes(shapes ...[]int) ([]int, error) {
	rank := 0
	for _, s := range shapes {
		if len(s) > rank {
			rank = len(s)
		}
	}
	out := make([]int, rank)
	for i := range out {
		out[i] = 1
	}
	for _, s := range shapes {
		off := rank - len(s)
		for k, v := range s {
			cur := out[off+k]
			switch {
			case cur == v || v == 1:
			case cur == 1:
				out[off+k] = v
			default:
				return nil, fmt.Errorf("BroadcastShapes%v: %w", shapes, ErrBroadcast)
			}
		}
	}

	return out, nil
}

// BroadcastIndex maps every flat position of an array shaped out onto the
// flat position of an array shaped in that broadcasts to out.
// MAIN DESCRIPTION:
//   - idx[p] is the element of in that is read at position p of out.
//
// Implementation:
//   - Stage 1: right-align in; extents of 1 get stride 0.
//   - Stage 2: walk out in row-major order with an odometer counter.
//
// Inputs:
//   - out: target shape; in: source shape (must broadcast to out, unchecked).
//
// Complexity:
//   - Time O(prod(out)·rank), Space O(prod(out)).
func BroadcastIndex(out, in []int) []int {
	rank := len(out)
	strides := make([]int, rank)
	stride := 1
	for k := len(in) - 1; k >= 0; k-- {
		pos := rank - len(in) + k
		if in[k] != 1 {
			strides[pos] = stride
		}
		stride *= in[k]
	}

	total := prod(out)
	idx := make([]int, total)
	counter := make([]int, rank)
	cur := 0
	for p := 0; p < total; p++ {
		idx[p] = cur
		// advance odometer
		for k := rank - 1; k >= 0; k-- {
			counter[k]++
			cur += strides[k]
			if counter[k] < out[k] {
				break
			}
			cur -= strides[k] * counter[k]
			counter[k] = 0
		}
	}

	return idx
}

// BroadcastTo materializes d expanded to shape.
//
// Errors:
//   - ErrBroadcast if d's shape does not broadcast to shape.
func BroadcastTo(d *Dense, shape []int) (*Dense, error) {
	if err := ValidateNotNil(d); err != nil {
		return nil, err
	}
	full, err := BroadcastShapes(shape, d.shape)
	if err != nil || !equalInts(full, shape) {
		return nil, fmt.Errorf("BroadcastTo(%v->%v): %w", d.shape, shape, ErrBroadcast)
	}
	if equalInts(d.shape, shape) {
		return d.Clone(), nil
	}
	out := newDense(shape)
	for p, q := range BroadcastIndex(shape, d.shape) {
		out.data[p] = d.data[q]
	}

	return out, nil
}

// SumTo reduces d onto shape by summing over every broadcast dimension.
// It is the adjoint of BroadcastTo and is used to fold gradients back onto
// parameters that were broadcast in the forward pass.
//
// Errors:
//   - ErrBroadcast if shape does not broadcast to d's shape.
func SumTo(d *Dense, shape []int) (*Dense, error) {
	if err := ValidateNotNil(d); err != nil {
		return nil, err
	}
	full, err := BroadcastShapes(shape, d.shape)
	if err != nil || !equalInts(full, d.shape) {
		return nil, fmt.Errorf("SumTo(%v->%v): %w", d.shape, shape, ErrBroadcast)
	}
	if equalInts(d.shape, shape) {
		return d.Clone(), nil
	}
	out := newDense(shape)
	for p, q := range BroadcastIndex(d.shape, shape) {
		out.data[q] += d.data[p]
	}

	return out, nil
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
