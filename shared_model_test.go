package a3c

import (
	"math"
	"sync"
	"testing"

	"github.com/pkg/errors"

	"github.com/timpalpant/go-a3c/adam"
)

func newTestParams() []*Param {
	return []*Param{
		NewParam("w", []float64{1, 2, 3}),
		NewParam("b", []float64{-1}),
	}
}

type paramModel struct {
	fakeModel
	params []*Param
}

func (m *paramModel) Params() []*Param { return m.params }

func newParamModel() *paramModel {
	return &paramModel{params: newTestParams()}
}

func setGrads(params []*Param, g float64) {
	for _, p := range params {
		for i := range p.Grad {
			p.Grad[i] = g
		}
	}
}

func TestSharedModelPull(t *testing.T) {
	shared := NewSharedModel(newParamModel(), adam.DefaultParams(0.1))
	if shared.NumParams() != 2 {
		t.Errorf("expected 2 params, got %d", shared.NumParams())
	}

	local := newTestParams()
	local[0].Value[1] = 100
	if err := shared.Pull(local); err != nil {
		t.Fatal(err)
	}

	if !floatsClose(local[0].Value, []float64{1, 2, 3}, 0) {
		t.Errorf("expected pulled weights [1 2 3], got %v", local[0].Value)
	}
}

func TestSharedModelFirstWriterWins(t *testing.T) {
	opt := adam.DefaultParams(0.1)
	shared := NewSharedModel(newParamModel(), opt)

	first := newTestParams()
	setGrads(first, 1)
	accepted, err := shared.PushGradients(first)
	if err != nil {
		t.Fatal(err)
	}
	if accepted != 2 {
		t.Errorf("expected 2 accepted gradients, got %d", accepted)
	}

	second := newTestParams()
	setGrads(second, -1)
	accepted, err = shared.PushGradients(second)
	if err != nil {
		t.Fatal(err)
	}
	if accepted != 0 {
		t.Errorf("expected second push to be dropped, got %d accepted", accepted)
	}

	// Reusing the source buffers must not alter the pushed gradients.
	setGrads(first, 1000)
	if shared.Pending() != 2 {
		t.Errorf("expected 2 pending gradients, got %d", shared.Pending())
	}

	if applied := shared.Step(); applied != 2 {
		t.Errorf("expected 2 params updated, got %d", applied)
	}
	if shared.Pending() != 0 {
		t.Errorf("expected no pending gradients after step, got %d", shared.Pending())
	}

	// Only the first gradient (all ones) was applied: Adam moves every
	// weight down by the learning rate on its first step.
	local := newTestParams()
	if err := shared.Pull(local); err != nil {
		t.Fatal(err)
	}

	expected := []float64{0.9, 1.9, 2.9}
	if !floatsClose(local[0].Value, expected, 1e-6) {
		t.Errorf("expected weights %v, got %v", expected, local[0].Value)
	}
	if math.Abs(local[1].Value[0]-(-1.1)) > 1e-6 {
		t.Errorf("expected bias -1.1, got %v", local[1].Value[0])
	}

	if applied := shared.Step(); applied != 0 {
		t.Errorf("expected step with empty slots to update nothing, got %d", applied)
	}
}

func TestSharedModelIncompatible(t *testing.T) {
	shared := NewSharedModel(newParamModel(), adam.DefaultParams(0.1))

	cases := [][]*Param{
		newTestParams()[:1],
		{NewParam("w", []float64{1, 2}), NewParam("b", []float64{0})},
		{NewParam("b", []float64{1, 2, 3}), NewParam("w", []float64{0})},
	}

	for i, params := range cases {
		if err := shared.Pull(params); errors.Cause(err) != ErrContract {
			t.Errorf("case %d: expected contract error from Pull, got %v", i, err)
		}

		if _, err := shared.PushGradients(params); errors.Cause(err) != ErrContract {
			t.Errorf("case %d: expected contract error from PushGradients, got %v", i, err)
		}
	}
}

func TestSharedModelConcurrentPush(t *testing.T) {
	shared := NewSharedModel(newParamModel(), adam.DefaultParams(0.1))

	const nWorkers = 16
	var wg sync.WaitGroup
	results := make([]int, nWorkers)
	for i := 0; i < nWorkers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			params := newTestParams()
			setGrads(params, float64(i+1))
			accepted, err := shared.PushGradients(params)
			if err != nil {
				t.Error(err)
			}
			results[i] = accepted
		}(i)
	}
	wg.Wait()

	total := 0
	for _, n := range results {
		total += n
	}

	if total != shared.NumParams() {
		t.Errorf("expected exactly one accepted gradient per param, got %d", total)
	}
}

func TestSharedModelSnapshot(t *testing.T) {
	shared := NewSharedModel(newParamModel(), adam.DefaultParams(0.1))
	grads := newTestParams()
	setGrads(grads, 0.5)
	for i := 0; i < 3; i++ {
		if _, err := shared.PushGradients(grads); err != nil {
			t.Fatal(err)
		}
		shared.Step()
	}

	buf, err := shared.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	restored := NewSharedModel(newParamModel(), adam.DefaultParams(0.1))
	if err := restored.Restore(buf); err != nil {
		t.Fatal(err)
	}

	expected := newTestParams()
	got := newTestParams()
	if err := shared.Pull(expected); err != nil {
		t.Fatal(err)
	}
	if err := restored.Pull(got); err != nil {
		t.Fatal(err)
	}

	for i := range expected {
		if !floatsClose(expected[i].Value, got[i].Value, 0) {
			t.Errorf("param %s: expected %v, got %v", expected[i].Name, expected[i].Value, got[i].Value)
		}
	}

	// Continuing training from the restored model must match the saved one,
	// which requires the moments and step counts to have been saved.
	for _, m := range []*SharedModel{shared, restored} {
		if _, err := m.PushGradients(grads); err != nil {
			t.Fatal(err)
		}
		m.Step()
	}

	if err := shared.Pull(expected); err != nil {
		t.Fatal(err)
	}
	if err := restored.Pull(got); err != nil {
		t.Fatal(err)
	}

	for i := range expected {
		if !floatsClose(expected[i].Value, got[i].Value, 0) {
			t.Errorf("param %s after step: expected %v, got %v", expected[i].Name, expected[i].Value, got[i].Value)
		}
	}
}

func TestSharedModelRestoreMismatch(t *testing.T) {
	shared := NewSharedModel(newParamModel(), adam.DefaultParams(0.1))
	buf, err := shared.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}

	other := NewSharedModel(newFakeModel(), adam.DefaultParams(0.1))
	if err := other.Restore(buf); err == nil {
		t.Error("expected error restoring snapshot with a different layout")
	}

	if err := other.Restore([]byte("garbage")); err == nil {
		t.Error("expected error restoring corrupt snapshot")
	}
}

func BenchmarkPushStep(b *testing.B) {
	init := &paramModel{params: []*Param{NewParam("w", make([]float64, 10000))}}
	shared := NewSharedModel(init, adam.DefaultParams(0.001))
	b.RunParallel(func(pb *testing.PB) {
		params := []*Param{NewParam("w", make([]float64, 10000))}
		setGrads(params, 0.1)
		for pb.Next() {
			shared.PushGradients(params)
			shared.Step()
		}
	})
}
