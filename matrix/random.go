// SPDX-License-Identifier: MIT

package matrix

import "math/rand/v2"

// seedStream is the fixed second word of the PCG state; only the first word
// is user-facing.
const seedStream = 0x9e3779b97f4a7c15

// NewRand returns a deterministic generator for the given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seedStream))
}

// Randn returns an array of standard-normal samples.
func Randn(rng *rand.Rand, shape ...int) (*Dense, error) {
	out, err := New(shape...)
	if err != nil {
		return nil, err
	}
	fillNormal(rng, out.data)

	return out, nil
}

// RandUniform returns an array of samples drawn uniformly from [0, 1).
func RandUniform(rng *rand.Rand, shape ...int) (*Dense, error) {
	out, err := New(shape...)
	if err != nil {
		return nil, err
	}
	for i := range out.data {
		out.data[i] = rng.Float64()
	}

	return out, nil
}

func fillNormal(rng *rand.Rand, dst []float64) {
	for i := range dst {
		dst[i] = rng.NormFloat64()
	}
}
