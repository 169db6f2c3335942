// SPDX-License-Identifier: MIT

package linalg

import (
	"fmt"

	"github.com/katalvlaran/lvlinalg/linop"
	"github.com/katalvlaran/lvlinalg/matrix"
)

// exactEig materializes the operators and decomposes them densely.
// With M, the problem is symmetrized by the congruence A' = L⁻¹·A·L⁻ᵀ
// (M = L·Lᵀ) and the eigenvectors are mapped back with L⁻ᵀ, which leaves
// them M-normalized.
func exactEig(a, m linop.Operator, neig int, mode Mode) (*matrix.Dense, *matrix.Dense, error) {
	af, err := linop.FullMatrix(a)
	if err != nil {
		return nil, nil, fmt.Errorf("exacteig: A: %w", err)
	}
	if m == nil {
		vals, vecs, err := matrix.Eigh(af)
		if err != nil {
			return nil, nil, fmt.Errorf("exacteig: %w", err)
		}

		return takePairs(vals, vecs, neig, mode)
	}

	mf, err := linop.FullMatrix(m)
	if err != nil {
		return nil, nil, fmt.Errorf("exacteig: M: %w", err)
	}
	l, err := matrix.Cholesky(mf)
	if err != nil {
		return nil, nil, fmt.Errorf("exacteig: operand M: %w", err)
	}
	linv, err := matrix.InverseTri(l)
	if err != nil {
		return nil, nil, fmt.Errorf("exacteig: operand M: %w", err)
	}
	la, err := matrix.MatMul(linv, af)
	if err != nil {
		return nil, nil, fmt.Errorf("exacteig: %w", err)
	}
	a2, err := matrix.MatMulTB(la, linv)
	if err != nil {
		return nil, nil, fmt.Errorf("exacteig: %w", err)
	}
	vals, vecs, err := matrix.Eigh(a2)
	if err != nil {
		return nil, nil, fmt.Errorf("exacteig: %w", err)
	}
	vals, vecs, err = takePairs(vals, vecs, neig, mode)
	if err != nil {
		return nil, nil, fmt.Errorf("exacteig: %w", err)
	}
	if vecs, err = matrix.MatMulTA(linv, vecs); err != nil {
		return nil, nil, fmt.Errorf("exacteig: %w", err)
	}

	return vals, vecs, nil
}
