package a3c

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/timpalpant/go-a3c/internal/sampling"
)

// LegalMask returns the action legality mask for the given state.
// A tile is a legal move source iff its army count is strictly positive,
// and the per-tile mask is repeated for each of the NumDirections.
func LegalMask(s *State) []bool {
	army := s.Plane(ArmyChannel)
	n := len(army)
	mask := make([]bool, NumDirections*n)
	for tile, x := range army {
		if x > 0 {
			for d := 0; d < NumDirections; d++ {
				mask[d*n+tile] = true
			}
		}
	}

	return mask
}

// ActionDist is the legality-masked action distribution for one step.
//
// Masked is the raw softmax distribution with illegal entries zeroed. It is
// not renormalized: the mass the model places on illegal moves is reported
// as OffTarget and penalized in the loss instead.
type ActionDist struct {
	Probs     []float64 // softmax(logits)
	LogProbs  []float64 // log_softmax(logits)
	Mask      []bool
	Masked    []float64 // Probs ⊙ Mask
	LegalMass float64   // sum(Masked)
	OffTarget float64   // sum(Probs ⊙ (1 - Mask))
	Entropy   float64   // -sum(Masked ⊙ LogProbs)
}

// NewActionDist computes the masked distribution for the given logits.
func NewActionDist(logits []float64, mask []bool) *ActionDist {
	return newActionDist(nil, logits, mask)
}

func newActionDist(pool *floatSlicePool, logits []float64, mask []bool) *ActionDist {
	n := len(logits)
	d := &ActionDist{
		Probs:    pool.alloc(n),
		LogProbs: pool.alloc(n),
		Mask:     mask,
		Masked:   pool.alloc(n),
	}

	lse := floats.LogSumExp(logits)
	for i, z := range logits {
		lp := z - lse
		p := math.Exp(lp)
		d.LogProbs[i] = lp
		d.Probs[i] = p
		if mask[i] {
			d.Masked[i] = p
			d.LegalMass += p
			d.Entropy -= p * lp
		} else {
			d.OffTarget += p
		}
	}

	return d
}

// Sample selects an action with probability proportional to Masked.
//
// If no legal action has positive probability, Sample falls back to a
// uniform choice over the entire action space and reports ok = false.
func (d *ActionDist) Sample(rng *rand.Rand) (action int, ok bool) {
	if i := sampling.SampleOne(rng, d.Masked); i >= 0 {
		return i, true
	}

	return sampling.Uniform(rng, len(d.Probs)), false
}

// LogitGrad returns the gradient, with respect to each logit, of the
// per-step policy loss
//
//	-LogProbs[action]*advantage - entropyCoef*Entropy + offTileCoef*OffTarget
//
// where advantage is treated as a constant.
func (d *ActionDist) LogitGrad(action int, advantage, entropyCoef, offTileCoef float64) []float64 {
	return d.logitGrad(nil, action, advantage, entropyCoef, offTileCoef)
}

func (d *ActionDist) logitGrad(pool *floatSlicePool, action int, advantage, entropyCoef, offTileCoef float64) []float64 {
	// S = sum_j m_j p_j (log p_j + 1), which appears in dEntropy/dz.
	s := d.LegalMass - d.Entropy

	grad := pool.alloc(len(d.Probs))
	for k, p := range d.Probs {
		var m float64
		if d.Mask[k] {
			m = 1
		}

		g := advantage * p
		g += entropyCoef * p * (m*(d.LogProbs[k]+1) - s)
		g += offTileCoef * p * (d.LegalMass - m)
		grad[k] = g
	}

	grad[action] -= advantage
	return grad
}

func (d *ActionDist) free(pool *floatSlicePool) {
	pool.free(d.Probs)
	pool.free(d.LogProbs)
	pool.free(d.Masked)
}
