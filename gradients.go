package a3c

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// ZeroGrads resets the gradient of every parameter to zero.
func ZeroGrads(params []*Param) {
	for _, p := range params {
		for i := range p.Grad {
			p.Grad[i] = 0
		}
	}
}

// GradNorm returns the L2 norm of all gradients taken together.
func GradNorm(params []*Param) float64 {
	var sumSq float64
	for _, p := range params {
		sumSq += floats.Dot(p.Grad, p.Grad)
	}

	return math.Sqrt(sumSq)
}

// ClipGradNorm rescales all gradients so that their global norm is at most
// maxNorm and returns the norm before clipping.
func ClipGradNorm(params []*Param, maxNorm float64) float64 {
	norm := GradNorm(params)
	if norm > maxNorm {
		scale := maxNorm / (norm + 1e-6)
		for _, p := range params {
			floats.Scale(scale, p.Grad)
		}
	}

	return norm
}

// GradsFinite reports whether every gradient entry is finite.
func GradsFinite(params []*Param) bool {
	for _, p := range params {
		for _, g := range p.Grad {
			if math.IsNaN(g) || math.IsInf(g, 0) {
				return false
			}
		}
	}

	return true
}
