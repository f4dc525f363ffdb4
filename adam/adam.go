// Package adam implements the Adam optimizer (adaptive moment estimation)
// over parameters that are shared by many concurrent writers.
//
// See: https://arxiv.org/abs/1412.6980.
package adam

import (
	"math"

	"github.com/pkg/errors"

	"github.com/timpalpant/go-a3c/internal/atomicf64"
)

// Params are the Adam hyperparameters.
type Params struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	WeightDecay  float64
}

// DefaultParams returns the standard Adam hyperparameters with the given
// learning rate.
func DefaultParams(lr float64) Params {
	return Params{
		LearningRate: lr,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
	}
}

func (p Params) Validate() error {
	if !(p.LearningRate > 0) {
		return errors.Errorf("learning rate must be positive, got %v", p.LearningRate)
	}

	if p.Beta1 < 0 || p.Beta1 >= 1 {
		return errors.Errorf("beta1 must be in [0, 1), got %v", p.Beta1)
	}

	if p.Beta2 < 0 || p.Beta2 >= 1 {
		return errors.Errorf("beta2 must be in [0, 1), got %v", p.Beta2)
	}

	if !(p.Epsilon > 0) {
		return errors.Errorf("epsilon must be positive, got %v", p.Epsilon)
	}

	if p.WeightDecay < 0 {
		return errors.Errorf("weight decay must be non-negative, got %v", p.WeightDecay)
	}

	return nil
}

// State holds the weights of one parameter tensor and its moment estimates.
type State struct {
	Weights *atomicf64.Vec
	M       *atomicf64.Vec // First moment.
	V       *atomicf64.Vec // Second moment.
}

// NewState returns a State with the given initial weights and zero moments.
func NewState(weights []float64) *State {
	return &State{
		Weights: atomicf64.New(weights),
		M:       atomicf64.Zeros(len(weights)),
		V:       atomicf64.Zeros(len(weights)),
	}
}

// Update applies one Adam step with gradient g. step is the 1-based count of
// updates applied to this parameter, used for bias correction.
//
// Concurrent updates of the same State are permitted; elements are
// read-modify-written individually, so racing updates may lose one
// another's contribution but never tear a value.
func (p Params) Update(s *State, g []float64, step int64) {
	bc1 := 1 - math.Pow(p.Beta1, float64(step))
	bc2 := 1 - math.Pow(p.Beta2, float64(step))
	stepSize := p.LearningRate / bc1
	for i, gi := range g {
		w := s.Weights.Load(i)
		if p.WeightDecay != 0 {
			gi += p.WeightDecay * w
		}

		m := p.Beta1*s.M.Load(i) + (1-p.Beta1)*gi
		v := p.Beta2*s.V.Load(i) + (1-p.Beta2)*gi*gi
		s.M.Store(i, m)
		s.V.Store(i, v)

		denom := math.Sqrt(v)/math.Sqrt(bc2) + p.Epsilon
		s.Weights.Store(i, w-stepSize*m/denom)
	}
}
