// Package sampling draws indices from discrete distributions.
package sampling

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// SampleOne returns an index i with probability w[i] / sum(w).
//
// The weights must be non-negative but need not sum to 1. If the total
// weight is zero, SampleOne returns -1.
func SampleOne(rng *rand.Rand, w []float64) int {
	total := floats.Sum(w)
	if !(total > 0) {
		return -1
	}

	x := rng.Float64() * total
	var cum float64
	last := -1
	for i, p := range w {
		if p <= 0 {
			continue
		}

		cum += p
		last = i
		if cum > x {
			return i
		}
	}

	// Floating point error may leave x just above the cumulative sum.
	return last
}

// Uniform returns an index in [0, n) chosen uniformly at random.
func Uniform(rng *rand.Rand, n int) int {
	return rng.Intn(n)
}
