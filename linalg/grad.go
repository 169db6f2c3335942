// SPDX-License-Identifier: MIT

// Package linalg - reverse-mode gradients by the implicit function theorem.
//
// Neither Backward differentiates the forward iteration. Each one solves an
// adjoint linear system with Solve and hands the resulting outer-product terms
// to the operators' own gradient rules (linop.Differentiable). The cost is
// independent of how many iterations the forward call took.

package linalg

import (
	"fmt"

	"github.com/katalvlaran/lvlinalg/linop"
	"github.com/katalvlaran/lvlinalg/matrix"
)

const opBackward = "Backward"

// SolveGrads holds dL/d(input) for a Solve call.
type SolveGrads struct {
	B *matrix.Dense   // shape of B
	E *matrix.Dense   // shape of E; nil when Solve had no E
	A []*matrix.Dense // aligned with A's Params(); nil unless A is Differentiable
	M []*matrix.Dense // aligned with M's Params(); nil unless M is Differentiable
}

// EigGrads holds dL/d(parameters) for an Eigh call.
type EigGrads struct {
	A []*matrix.Dense // aligned with A's Params(); nil unless A is Differentiable
	M []*matrix.Dense // aligned with M's Params(); nil unless M is Differentiable
}

// Backward propagates gx = dL/dX to the inputs of the solve.
// MAIN DESCRIPTION:
//   - Solves the adjoint system Aᵀ·v − Mᵀ·v·diag(E) = gx with the same method.
//
// Returns:
//   - dL/dB = v (reduced to B's shape);
//   - dL/dE_j = v_jᵀ·M·x_j (reduced to E's shape);
//   - A's parameters receive the term (−v, x), M's the term (v·diag(E), x).
//
// Errors:
//   - *ShapeError if gx does not match X, linop.ErrNoTranspose for a
//     non-hermitian operator without a transpose, or any Solve error.
func (r *SolveResult) Backward(gx *matrix.Dense) (*SolveGrads, error) {
	if gx == nil || !sameShape(gx, r.X) {
		return nil, shapeErrorf(opBackward, "gX", shapeOf(gx), matrix.ErrDimensionMismatch)
	}
	at, err := linop.Transpose(r.a)
	if err != nil {
		return nil, fmt.Errorf("%s: A: %w", opBackward, err)
	}
	opts := r.opts.adjointOptions(r.opts.method, true)
	if r.e != nil {
		opts = append(opts, WithE(r.e))
	}
	if r.m != nil {
		mt, err := linop.Transpose(r.m)
		if err != nil {
			return nil, fmt.Errorf("%s: M: %w", opBackward, err)
		}
		opts = append(opts, WithM(mt))
	}
	adj, err := Solve(at, gx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: adjoint: %w", opBackward, err)
	}
	v := adj.X

	g := &SolveGrads{}
	if g.B, err = matrix.SumTo(v, r.b.Shape()); err != nil {
		return nil, fmt.Errorf("%s: %w", opBackward, err)
	}
	if g.A, err = accumulate(r.a, matrix.Scale(v, -1), r.X); err != nil {
		return nil, fmt.Errorf("%s: A: %w", opBackward, err)
	}
	if r.e == nil {
		if g.M, err = accumulate(r.m, nil, r.X); err != nil {
			return nil, fmt.Errorf("%s: M: %w", opBackward, err)
		}

		return g, nil
	}

	mx, err := applyOrSelf(r.m, r.X)
	if err != nil {
		return nil, fmt.Errorf("%s: M: %w", opBackward, err)
	}
	dots, err := matrix.ColDots(v, mx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opBackward, err)
	}
	if g.E, err = matrix.SumTo(dots, r.e.Shape()); err != nil {
		return nil, fmt.Errorf("%s: E: %w", opBackward, err)
	}
	ve, err := matrix.ScaleCols(v, r.e)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opBackward, err)
	}
	if g.M, err = accumulate(r.m, ve, r.X); err != nil {
		return nil, fmt.Errorf("%s: M: %w", opBackward, err)
	}

	return g, nil
}

// Backward propagates gvals = dL/dλ and gvecs = dL/dX to the operator
// parameters. Either gradient may be nil.
// MAIN DESCRIPTION:
//   - Eigenvalues: dλ_i = x_iᵀ(dA − λ_i·dM)x_i.
//   - Eigenvectors: for each pair, solve the deflated system
//     (A − λ_i·M + M·x_i·x_iᵀ·M)·w_i = (I − M·x_i·x_iᵀ)·g_i,
//     which is nonsingular for a simple eigenvalue and leaves w_i M-orthogonal
//     to x_i. The normalization xᵀMx = 1 contributes −½(x_iᵀg_i)·x_i·x_iᵀ to M.
//
// Implementation:
//   - Stage 1: accumulate the outer-product terms uA, uM (*batch, n, neig).
//   - Stage 2: one Solve per eigenpair, with "direct" for exacteig results and
//     "gmres" for davidson results.
//   - Stage 3: hand (uA, X) and (uM, X) to the operators' gradient rules.
//
// Notes:
//   - Degenerate eigenvalues make the eigenvector gradient ill-defined; the
//     deflated solve then fails with matrix.ErrSingular (direct) or does not
//     converge (gmres).
func (r *EigResult) Backward(gvals, gvecs *matrix.Dense) (*EigGrads, error) {
	if gvals != nil && !sameShape(gvals, r.Values) {
		return nil, shapeErrorf(opBackward, "gvals", gvals.Shape(), matrix.ErrDimensionMismatch)
	}
	if gvecs != nil && !sameShape(gvecs, r.Vectors) {
		return nil, shapeErrorf(opBackward, "gvecs", gvecs.Shape(), matrix.ErrDimensionMismatch)
	}
	x := r.Vectors
	uA := matrix.ZerosLike(x)
	uM := matrix.ZerosLike(x)

	var err error
	if gvals != nil {
		if uA, uM, err = r.valueTerms(gvals, uA, uM); err != nil {
			return nil, fmt.Errorf("%s: %w", opBackward, err)
		}
	}
	if gvecs != nil {
		if uA, uM, err = r.vectorTerms(gvecs, uA, uM); err != nil {
			return nil, fmt.Errorf("%s: %w", opBackward, err)
		}
	}
	g := &EigGrads{}
	if g.A, err = accumulate(r.a, uA, x); err != nil {
		return nil, fmt.Errorf("%s: A: %w", opBackward, err)
	}
	if g.M, err = accumulate(r.m, uM, x); err != nil {
		return nil, fmt.Errorf("%s: M: %w", opBackward, err)
	}

	return g, nil
}

// valueTerms adds X·diag(gλ) to uA and −X·diag(gλ∘λ) to uM.
func (r *EigResult) valueTerms(gvals, uA, uM *matrix.Dense) (*matrix.Dense, *matrix.Dense, error) {
	xg, err := matrix.ScaleCols(r.Vectors, gvals)
	if err != nil {
		return nil, nil, err
	}
	if uA, err = matrix.Add(uA, xg); err != nil {
		return nil, nil, err
	}
	gl, err := matrix.MulElem(gvals, r.Values)
	if err != nil {
		return nil, nil, err
	}
	xgl, err := matrix.ScaleCols(r.Vectors, gl)
	if err != nil {
		return nil, nil, err
	}
	if uM, err = matrix.Sub(uM, xgl); err != nil {
		return nil, nil, err
	}

	return uA, uM, nil
}

// vectorTerms solves the deflated systems and adds −W to uA and
// W·diag(λ) − ½·X·diag(c) to uM, with c_i = x_iᵀ·g_i.
func (r *EigResult) vectorTerms(gvecs, uA, uM *matrix.Dense) (*matrix.Dense, *matrix.Dense, error) {
	x, lam := r.Vectors, r.Values
	mx, err := applyOrSelf(r.m, x)
	if err != nil {
		return nil, nil, fmt.Errorf("M: %w", err)
	}
	c, err := matrix.ColDots(x, gvecs)
	if err != nil {
		return nil, nil, err
	}
	mxc, err := matrix.ScaleCols(mx, c)
	if err != nil {
		return nil, nil, err
	}
	gproj, err := matrix.Sub(gvecs, mxc)
	if err != nil {
		return nil, nil, err
	}

	method := MethodDirect
	if r.Stats.Method == MethodDavidson {
		method = MethodGMRES
	}
	opts := r.opts.adjointOptions(method, false)

	var w *matrix.Dense
	for i := 0; i < x.Cols(); i++ {
		wi, err := r.deflatedSolve(i, mx, gproj, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("eigenpair %d: %w", i, err)
		}
		if w == nil {
			w = wi
			continue
		}
		if w, err = matrix.ConcatCols(w, wi); err != nil {
			return nil, nil, err
		}
	}

	if uA, err = matrix.Sub(uA, w); err != nil {
		return nil, nil, err
	}
	wl, err := matrix.ScaleCols(w, lam)
	if err != nil {
		return nil, nil, err
	}
	xc, err := matrix.ScaleCols(x, c)
	if err != nil {
		return nil, nil, err
	}
	if uM, err = matrix.Add(uM, wl); err != nil {
		return nil, nil, err
	}
	if uM, err = matrix.Sub(uM, matrix.Scale(xc, 0.5)); err != nil {
		return nil, nil, err
	}

	return uA, uM, nil
}

// deflatedSolve solves (A − λ_i·M + M·x_i·x_iᵀ·M)·w = gproj_i for pair i.
func (r *EigResult) deflatedSolve(i int, mx, gproj *matrix.Dense, opts []Option) (*matrix.Dense, error) {
	li, err := matrix.SliceCols(r.Values, i, i+1)
	if err != nil {
		return nil, err
	}
	mxi, err := matrix.SliceCols(mx, i, i+1)
	if err != nil {
		return nil, err
	}
	gi, err := matrix.SliceCols(gproj, i, i+1)
	if err != nil {
		return nil, err
	}

	a, m := r.a, r.m
	apply := func(v *matrix.Dense) (*matrix.Dense, error) {
		av, err := a.Apply(v)
		if err != nil {
			return nil, err
		}
		mv, err := applyOrSelf(m, v)
		if err != nil {
			return nil, err
		}
		shift, err := matrix.ScaleCols(mv, li)
		if err != nil {
			return nil, err
		}
		proj, err := matrix.MatMulTA(mxi, v)
		if err != nil {
			return nil, err
		}
		rank1, err := matrix.MatMul(mxi, proj)
		if err != nil {
			return nil, err
		}
		out, err := matrix.Sub(av, shift)
		if err != nil {
			return nil, err
		}

		return matrix.Add(out, rank1)
	}
	n := mx.Rows()
	shape := append(mx.BatchShape(), n, n)
	op, err := linop.NewFunc(shape, true, apply)
	if err != nil {
		return nil, err
	}
	sol, err := Solve(op, gi, opts...)
	if err != nil {
		return nil, err
	}

	return sol.X, nil
}

// adjointOptions carries the caller's tuning into the backward solves. The
// iteration budget only transfers between solves (withBudget), since davidson
// counts iterations differently.
func (o *options) adjointOptions(method Method, withBudget bool) []Option {
	opts := []Option{
		WithMethod(method),
		WithRTol(o.rtol),
		WithATol(o.atol),
		WithVerbose(o.verbose),
		WithStrict(o.strict),
		WithLogger(o.logger),
	}
	if withBudget && o.restart > 0 {
		opts = append(opts, WithRestart(o.restart))
	}
	if withBudget && o.maxNiter > 0 {
		opts = append(opts, WithMaxNiter(o.maxNiter))
	}

	return opts
}

// accumulate returns zero-initialized parameter gradients of op with the
// term (u, x) folded in; u may be nil for a zero term. Operators that are not
// Differentiable yield nil.
func accumulate(op linop.Operator, u, x *matrix.Dense) ([]*matrix.Dense, error) {
	d, ok := op.(linop.Differentiable)
	if !ok {
		return nil, nil
	}
	params := d.Params()
	if len(params) == 0 {
		return nil, nil
	}
	grads := make([]*matrix.Dense, len(params))
	for i, p := range params {
		grads[i] = matrix.ZerosLike(p)
	}
	if u == nil {
		return grads, nil
	}
	if err := d.AccumulateGrad(grads, u, x); err != nil {
		return nil, err
	}

	return grads, nil
}

func sameShape(a, b *matrix.Dense) bool {
	sa, sb := a.Shape(), b.Shape()
	if len(sa) != len(sb) {
		return false
	}
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}

	return true
}

func shapeOf(d *matrix.Dense) []int {
	if d == nil {
		return nil
	}

	return d.Shape()
}
