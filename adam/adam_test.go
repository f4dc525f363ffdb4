package adam

import (
	"math"
	"testing"
)

func TestUpdate_FirstStep(t *testing.T) {
	p := DefaultParams(0.1)
	s := NewState([]float64{1.0, -1.0, 0.5})
	g := []float64{2.0, -0.5, 0.0}
	p.Update(s, g, 1)

	// After bias correction the first step moves each weight by lr * sign(g).
	expected := []float64{0.9, -0.9, 0.5}
	for i, w := range s.Weights.Slice() {
		if math.Abs(w-expected[i]) > 1e-6 {
			t.Errorf("weight %d: expected %v, got %v", i, expected[i], w)
		}
	}

	if m := s.M.Load(0); math.Abs(m-0.2) > 1e-12 {
		t.Errorf("expected first moment %v, got %v", 0.2, m)
	}

	if v := s.V.Load(0); math.Abs(v-0.004) > 1e-12 {
		t.Errorf("expected second moment %v, got %v", 0.004, v)
	}
}

// Minimizing f(x) = (x-3)^2 should converge to 3.
func TestUpdate_Quadratic(t *testing.T) {
	p := DefaultParams(0.01)
	s := NewState([]float64{0})
	for step := int64(1); step <= 5000; step++ {
		x := s.Weights.Load(0)
		p.Update(s, []float64{2 * (x - 3)}, step)
	}

	if x := s.Weights.Load(0); math.Abs(x-3) > 0.05 {
		t.Errorf("expected convergence to 3, got %v", x)
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name  string
		p     Params
		valid bool
	}{
		{"default", DefaultParams(1e-4), true},
		{"zero lr", DefaultParams(0), false},
		{"beta1", Params{LearningRate: 1, Beta1: 1, Beta2: 0.9, Epsilon: 1e-8}, false},
		{"beta2", Params{LearningRate: 1, Beta1: 0.9, Beta2: -0.1, Epsilon: 1e-8}, false},
		{"eps", Params{LearningRate: 1, Beta1: 0.9, Beta2: 0.9}, false},
	}

	for _, tc := range testCases {
		err := tc.p.Validate()
		if (err == nil) != tc.valid {
			t.Errorf("%s: expected valid=%v, got err=%v", tc.name, tc.valid, err)
		}
	}
}
