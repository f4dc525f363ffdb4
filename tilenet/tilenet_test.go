package tilenet

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/timpalpant/go-a3c"
)

func randomState(rng *rand.Rand, channels, height, width int) *a3c.State {
	s := a3c.NewState(channels, height, width)
	for i := range s.Data {
		s.Data[i] = float64(rng.Intn(5))
	}

	return s
}

func TestForward_Shapes(t *testing.T) {
	net := New(Config{Channels: 3, Hidden: 4, Seed: 1})
	s := randomState(rand.New(rand.NewSource(1)), 3, 2, 5)
	if _, err := net.Forward(s); err == nil {
		t.Error("expected error before InitHidden")
	}

	net.InitHidden(2, 5)
	out, err := net.Forward(s)
	if err != nil {
		t.Fatal(err)
	}

	if n := len(out.Logits()); n != a3c.NumActions(2, 5) {
		t.Errorf("expected %d logits, got %d", a3c.NumActions(2, 5), n)
	}

	if _, err := net.Forward(randomState(rand.New(rand.NewSource(2)), 3, 3, 5)); err == nil {
		t.Error("expected error for mismatched state shape")
	}
}

func TestHiddenLifecycle(t *testing.T) {
	net := New(Config{Channels: 2, Hidden: 3, Seed: 2})
	net.InitHidden(2, 2)
	s := randomState(rand.New(rand.NewSource(3)), 2, 2, 2)
	s.Data[0] = 4

	if _, err := net.Forward(s); err != nil {
		t.Fatal(err)
	}

	if mat.Norm(net.hidden, 2) == 0 {
		t.Error("expected forward to update hidden state")
	}

	net.ResetHidden()
	if mat.Norm(net.hidden, 2) != 0 {
		t.Error("expected hidden state to be zero after reset")
	}

	net.InitHidden(3, 4)
	if r, c := net.hidden.Dims(); r != 12 || c != 3 {
		t.Errorf("expected hidden dims 12x3, got %dx%d", r, c)
	}
}

// Backward must agree with central finite differences of the scalar
// L = dValue*value + sum_k dLogits[k]*logits[k].
func TestBackward_FiniteDifferences(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	net := New(Config{Channels: 3, Hidden: 4, Seed: 5})
	for _, p := range net.Params() {
		for i := range p.Value {
			p.Value[i] = 0.5 * rng.NormFloat64()
		}
	}

	net.InitHidden(2, 3)
	// Advance once so that the hidden state input is non-zero.
	if _, err := net.Forward(randomState(rng, 3, 2, 3)); err != nil {
		t.Fatal(err)
	}

	hidden := mat.DenseCopyOf(net.hidden)
	s := randomState(rng, 3, 2, 3)
	dValue := rng.NormFloat64()
	dLogits := make([]float64, a3c.NumActions(2, 3))
	for i := range dLogits {
		dLogits[i] = rng.NormFloat64()
	}

	objective := func() float64 {
		net.hidden.Copy(hidden)
		out, err := net.Forward(s)
		if err != nil {
			t.Fatal(err)
		}

		l := dValue * out.Value()
		for k, z := range out.Logits() {
			l += dLogits[k] * z
		}
		return l
	}

	net.hidden.Copy(hidden)
	out, err := net.Forward(s)
	if err != nil {
		t.Fatal(err)
	}
	a3c.ZeroGrads(net.Params())
	out.Backward(dValue, dLogits)

	const eps = 1e-6
	for _, p := range net.Params() {
		for i := range p.Value {
			orig := p.Value[i]
			p.Value[i] = orig + eps
			fPlus := objective()
			p.Value[i] = orig - eps
			fMinus := objective()
			p.Value[i] = orig

			numeric := (fPlus - fMinus) / (2 * eps)
			if math.Abs(numeric-p.Grad[i]) > 1e-5*math.Max(1, math.Abs(numeric)) {
				t.Errorf("param %s[%d]: expected gradient %.8f, got %.8f", p.Name, i, numeric, p.Grad[i])
			}
		}
	}
}

func TestFactory(t *testing.T) {
	newModel := Factory(Config{Channels: 2, Hidden: 2, Seed: 10})
	m1, m2 := newModel(), newModel()
	if m1.Params()[0].Value[0] == m2.Params()[0].Value[0] {
		t.Error("expected differently seeded networks")
	}
}

func BenchmarkForwardBackward(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	net := New(Config{Channels: 7, Hidden: 16, Seed: 1})
	net.InitHidden(20, 20)
	s := randomState(rng, 7, 20, 20)
	dLogits := make([]float64, a3c.NumActions(20, 20))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		out, err := net.Forward(s)
		if err != nil {
			b.Fatal(err)
		}
		out.Backward(1, dLogits)
	}
}
