package a3c

import (
	"math"
	"testing"
)

func TestClipGradNorm(t *testing.T) {
	params := []*Param{
		{Name: "a", Grad: []float64{3, 0}},
		{Name: "b", Grad: []float64{4}},
	}

	if norm := ClipGradNorm(params, 10); norm != 5 {
		t.Errorf("expected norm 5, got %v", norm)
	}
	if params[0].Grad[0] != 3 {
		t.Errorf("expected gradients below the limit to be unchanged, got %v", params[0].Grad)
	}

	if norm := ClipGradNorm(params, 1); norm != 5 {
		t.Errorf("expected norm 5 before clipping, got %v", norm)
	}
	if after := GradNorm(params); math.Abs(after-1) > 1e-6 {
		t.Errorf("expected clipped norm 1, got %v", after)
	}

	ZeroGrads(params)
	if GradNorm(params) != 0 {
		t.Errorf("expected zero gradients, got %v %v", params[0].Grad, params[1].Grad)
	}
}

func TestGradsFinite(t *testing.T) {
	params := []*Param{{Name: "a", Grad: []float64{1, 2}}}
	if !GradsFinite(params) {
		t.Error("expected finite gradients")
	}

	for _, x := range []float64{math.NaN(), math.Inf(-1)} {
		params[0].Grad[1] = x
		if GradsFinite(params) {
			t.Errorf("expected %v to be detected", x)
		}
	}
}

func TestParamsValidate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Errorf("expected default params to be valid, got %v", err)
	}

	testCases := []func(p *Params){
		func(p *Params) { p.Gamma = 1.5 },
		func(p *Params) { p.Tau = -0.1 },
		func(p *Params) { p.EntropyCoef = -1 },
		func(p *Params) { p.MaxGradNorm = 0 },
		func(p *Params) { p.NumSteps = 0 },
		func(p *Params) { p.MaxEpisodeLength = 0 },
		func(p *Params) { p.NumWorkers = 0 },
		func(p *Params) { p.MaxRestarts = -1 },
		func(p *Params) { p.Optimizer.LearningRate = 0 },
	}

	for i, modify := range testCases {
		p := DefaultParams()
		modify(&p)
		if err := p.Validate(); err == nil {
			t.Errorf("case %d: expected error for %+v", i, p)
		}
	}
}
