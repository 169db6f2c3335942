// SPDX-License-Identifier: MIT

package linalg

import (
	"fmt"

	"github.com/katalvlaran/lvlinalg/linop"
	"github.com/katalvlaran/lvlinalg/matrix"
)

// Stats reports how a call terminated.
type Stats struct {
	Method       Method
	Iterations   int     // davidson iterations or gmres Krylov steps; 0 for direct methods
	Residual     float64 // max-abs residual (davidson) or worst column residual norm (gmres)
	Converged    bool
	SubspaceSize int // final davidson subspace size
}

// EigResult holds the selected eigenpairs and what is needed to differentiate them.
type EigResult struct {
	Values  *matrix.Dense // (*batch, neig), ascending within the selection
	Vectors *matrix.Dense // (*batch, n, neig), M-normalized columns
	Stats   Stats

	a, m linop.Operator
	opts *options
}

// Eigh computes neig eigenpairs of the symmetric (generalized) problem
// A·x = λ·M·x.
// MAIN DESCRIPTION:
//   - Returns the lowest or uppest neig pairs (WithMode) computed by exacteig
//     (default) or davidson (WithMethod).
//
// Implementation:
//   - Stage 1: gather options; unknown keys or values are ErrConfig.
//   - Stage 2: boundary checks, all before numeric work: square A/M,
//     matching n, hermitian flags, batch broadcast, 1 <= neig <= n.
//   - Stage 3: dispatch to the engine.
//
// Errors:
//   - *ShapeError (ErrShape), ErrNotHermitian, ErrNotPosDef, ErrConfig,
//     ErrNotConverged (strict davidson only), or an operator error.
//
// Determinism:
//   - davidson draws its initial subspace from WithSeed (default 12421).
func Eigh(a linop.Operator, neig int, opts ...Option) (*EigResult, error) {
	o, err := gatherOptions(engineEigh, opts)
	if err != nil {
		return nil, err
	}
	n, batch, err := checkOperators(engineEigh, a, o.m)
	if err != nil {
		return nil, err
	}
	if !a.IsHermitian() {
		return nil, fmt.Errorf("%s: operand A: %w", engineEigh, ErrNotHermitian)
	}
	if o.m != nil && !o.m.IsHermitian() {
		return nil, fmt.Errorf("%s: operand M: %w", engineEigh, ErrNotHermitian)
	}
	if neig < 1 || neig > n {
		return nil, shapeErrorf(engineEigh, "neig", []int{neig},
			fmt.Errorf("want 1 <= neig <= %d: %w", n, matrix.ErrOutOfRange))
	}

	res := &EigResult{a: a, m: o.m, opts: o}
	switch o.method {
	case MethodExactEig:
		res.Values, res.Vectors, err = exactEig(a, o.m, neig, o.mode)
		res.Stats = Stats{Method: MethodExactEig, Converged: true, SubspaceSize: n}
	case MethodDavidson:
		res.Values, res.Vectors, res.Stats, err = davidson(a, o.m, neig, n, batch, o)
	}
	if err != nil {
		return nil, err
	}

	return res, nil
}

// checkOperators validates A and an optional M and returns n and the
// broadcast batch shape.
func checkOperators(op string, a, m linop.Operator) (int, []int, error) {
	if a == nil {
		return 0, nil, shapeErrorf(op, "A", nil, matrix.ErrNilMatrix)
	}
	if err := linop.CheckShape(a); err != nil {
		return 0, nil, shapeErrorf(op, "A", a.Shape(), matrix.ErrBadShape)
	}
	if !linop.IsSquare(a) {
		return 0, nil, shapeErrorf(op, "A", a.Shape(), matrix.ErrNonSquare)
	}
	n, _ := linop.Dims(a)
	batch := linop.Batch(a)
	if m == nil {
		return n, batch, nil
	}
	if err := linop.CheckShape(m); err != nil {
		return 0, nil, shapeErrorf(op, "M", m.Shape(), matrix.ErrBadShape)
	}
	if !linop.IsSquare(m) {
		return 0, nil, shapeErrorf(op, "M", m.Shape(), matrix.ErrNonSquare)
	}
	if nm, _ := linop.Dims(m); nm != n {
		return 0, nil, shapeErrorf(op, "M", m.Shape(), matrix.ErrDimensionMismatch)
	}
	batch, err := matrix.BroadcastShapes(batch, linop.Batch(m))
	if err != nil {
		return 0, nil, shapeErrorf(op, "M", m.Shape(), err)
	}

	return n, batch, nil
}

// metricOf adapts M into an orthogonalization metric; nil means Euclidean.
func metricOf(m linop.Operator) matrix.Metric {
	if m == nil {
		return nil
	}

	return m.Apply
}

// applyOrSelf returns op(x), or x when op is nil (the identity).
func applyOrSelf(op linop.Operator, x *matrix.Dense) (*matrix.Dense, error) {
	if op == nil {
		return x, nil
	}

	return op.Apply(x)
}

// takePairs keeps neig of the ascending pairs per mode.
func takePairs(vals, vecs *matrix.Dense, neig int, mode Mode) (*matrix.Dense, *matrix.Dense, error) {
	k := vals.Cols()
	j0 := 0
	if mode == Uppest {
		j0 = k - neig
	}
	v, err := matrix.SliceCols(vals, j0, j0+neig)
	if err != nil {
		return nil, nil, err
	}
	x, err := matrix.SliceCols(vecs, j0, j0+neig)
	if err != nil {
		return nil, nil, err
	}

	return v, x, nil
}
