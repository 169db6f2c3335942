// SPDX-License-Identifier: MIT

package linalg

import (
	"fmt"

	"github.com/katalvlaran/lvlinalg/linop"
	"github.com/katalvlaran/lvlinalg/matrix"
)

// SolveResult holds the solution and what is needed to differentiate it.
type SolveResult struct {
	X     *matrix.Dense // (*batch, n, ncols)
	Stats Stats

	a, m linop.Operator
	b, e *matrix.Dense
	opts *options
}

// Solve returns x with A·x − M·x·diag(E) = B.
// MAIN DESCRIPTION:
//   - A (*ba, n, n), B (*bb, n, ncols), optional E (*be, ncols) via WithE and
//     M (*bm, n, n) via WithM. Defaults: E = 0, M = I.
//   - The result batch is the broadcast of all operand batches.
//
// Implementation:
//   - Stage 1: gather options (ErrConfig).
//   - Stage 2: boundary checks in operand order A, B, E, M (ShapeError).
//   - Stage 3: "direct" materializes and LU-solves; "gmres" iterates with
//     apply only.
//
// Errors:
//   - *ShapeError (ErrShape), ErrConfig, matrix.ErrSingular (direct),
//     ErrNotConverged (strict gmres), or an operator error.
func Solve(a linop.Operator, b *matrix.Dense, opts ...Option) (*SolveResult, error) {
	o, err := gatherOptions(engineSolve, opts)
	if err != nil {
		return nil, err
	}
	n, batch, err := checkSolveOperands(a, b, o.e, o.m)
	if err != nil {
		return nil, err
	}

	res := &SolveResult{a: a, m: o.m, b: b, e: o.e, opts: o}
	switch o.method {
	case MethodDirect:
		res.X, err = directSolve(a, b, o.e, o.m, batch)
		res.Stats = Stats{Method: MethodDirect, Converged: true}
	case MethodGMRES:
		res.X, res.Stats, err = gmres(a, b, o.e, o.m, n, batch, o)
	}
	if err != nil {
		return nil, err
	}

	return res, nil
}

// checkSolveOperands validates every operand against A and returns n and the
// broadcast batch shape.
func checkSolveOperands(a linop.Operator, b, e *matrix.Dense, m linop.Operator) (int, []int, error) {
	if a == nil {
		return 0, nil, shapeErrorf(engineSolve, "A", nil, matrix.ErrNilMatrix)
	}
	if err := linop.CheckShape(a); err != nil {
		return 0, nil, shapeErrorf(engineSolve, "A", a.Shape(), matrix.ErrBadShape)
	}
	if !linop.IsSquare(a) {
		return 0, nil, shapeErrorf(engineSolve, "A", a.Shape(), matrix.ErrNonSquare)
	}
	n, _ := linop.Dims(a)
	batch := linop.Batch(a)

	if err := matrix.ValidateMatrix(b); err != nil {
		return 0, nil, shapeErrorf(engineSolve, "B", nil, err)
	}
	if b.Rows() != n {
		return 0, nil, shapeErrorf(engineSolve, "B", b.Shape(), matrix.ErrDimensionMismatch)
	}
	batch, err := matrix.BroadcastShapes(batch, b.BatchShape())
	if err != nil {
		return 0, nil, shapeErrorf(engineSolve, "B", b.Shape(), err)
	}

	if e != nil {
		if e.Cols() != b.Cols() {
			return 0, nil, shapeErrorf(engineSolve, "E", e.Shape(), matrix.ErrDimensionMismatch)
		}
		if batch, err = matrix.BroadcastShapes(batch, e.VectorBatchShape()); err != nil {
			return 0, nil, shapeErrorf(engineSolve, "E", e.Shape(), err)
		}
	}

	if m != nil {
		if err := linop.CheckShape(m); err != nil {
			return 0, nil, shapeErrorf(engineSolve, "M", m.Shape(), matrix.ErrBadShape)
		}
		if !linop.IsSquare(m) {
			return 0, nil, shapeErrorf(engineSolve, "M", m.Shape(), matrix.ErrNonSquare)
		}
		if nm, _ := linop.Dims(m); nm != n {
			return 0, nil, shapeErrorf(engineSolve, "M", m.Shape(), matrix.ErrDimensionMismatch)
		}
		if batch, err = matrix.BroadcastShapes(batch, linop.Batch(m)); err != nil {
			return 0, nil, shapeErrorf(engineSolve, "M", m.Shape(), err)
		}
	}

	return n, batch, nil
}

// directSolve materializes A (and M) and solves densely. The solution is
// expanded to the full operand batch, which matters when M's batch is the
// largest but E is absent.
func directSolve(a linop.Operator, b, e *matrix.Dense, m linop.Operator, batch []int) (*matrix.Dense, error) {
	af, err := linop.FullMatrix(a)
	if err != nil {
		return nil, fmt.Errorf("direct: A: %w", err)
	}
	var mf *matrix.Dense
	if m != nil && e != nil {
		if mf, err = linop.FullMatrix(m); err != nil {
			return nil, fmt.Errorf("direct: M: %w", err)
		}
	}
	x, err := matrix.SolveShifted(af, mf, e, b)
	if err != nil {
		return nil, fmt.Errorf("direct: %w", err)
	}
	full := append(append([]int(nil), batch...), x.Rows(), x.Cols())
	if x, err = matrix.BroadcastTo(x, full); err != nil {
		return nil, fmt.Errorf("direct: %w", err)
	}

	return x, nil
}

// applyEffective returns A·x − M·x·diag(E), the operator both solve methods
// and their adjoints work with.
func applyEffective(a, m linop.Operator, e, x *matrix.Dense) (*matrix.Dense, error) {
	ax, err := a.Apply(x)
	if err != nil {
		return nil, fmt.Errorf("A: %w", err)
	}
	if e == nil {
		return ax, nil
	}
	mx, err := applyOrSelf(m, x)
	if err != nil {
		return nil, fmt.Errorf("M: %w", err)
	}
	mxe, err := matrix.ScaleCols(mx, e)
	if err != nil {
		return nil, err
	}

	return matrix.Sub(ax, mxe)
}
