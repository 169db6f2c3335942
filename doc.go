// Package lvlinalg is a batched, differentiable linear-algebra toolkit for
// symmetric eigenproblems and shifted linear systems.
//
// What is in the box?
//
//	A small, pure-Go library built on gonum that brings together:
//		• Batched dense arrays with NumPy-style broadcasting
//		• Linear operators backed by matrices or by callbacks
//		• Eigh: lowest/uppest eigenpairs of A·x = λ·M·x (exacteig, davidson)
//		• Solve: A·x − M·x·diag(E) = B (direct, gmres)
//		• Backward passes for both, by the implicit function theorem
//
// Everything is organized under three subpackages:
//
//	matrix/  Dense storage, broadcasting, batched kernels, decompositions
//	linop/   Operator contract, Matrix and Func operators, transposes
//	linalg/  Eigh, Solve, options & YAML config, gradients
//
// Quick example:
//
//	a, _ := matrix.NewFromData([]float64{2, 1, 1, 3}, 2, 2)
//	op, _ := linop.NewSymmetric(a, 1e-12)
//	res, _ := linalg.Eigh(op, 1)
//	fmt.Println(res.Values)
//
//	go get github.com/katalvlaran/lvlinalg
package lvlinalg
