package a3c

import (
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/timpalpant/go-a3c/adam"
)

// SharedModel holds the canonical model parameters and optimizer state
// for a training run. It is shared by reference between all workers.
//
// SharedModel is safe for concurrent use but provides no isolation between
// operations: Pull may observe a partially applied Step, and PushGradients
// and Step calls from different workers may interleave in any order.
// Updates are lock-free in the manner of Hogwild.
//
// Each parameter has a single gradient slot. PushGradients only fills
// empty slots, so within one optimizer cycle the first writer for a
// parameter wins and later pushes for that parameter are dropped.
// Gradients from different workers are never summed.
type SharedModel struct {
	opt    adam.Params
	params []*sharedParam
}

type sharedParam struct {
	name  string
	state *adam.State
	step  atomic.Int64 // Number of optimizer updates applied.
	grad  atomic.Pointer[[]float64]
}

// NewSharedModel returns a SharedModel initialized with a copy of the
// parameters of the given Model.
func NewSharedModel(init Model, opt adam.Params) *SharedModel {
	params := init.Params()
	shared := make([]*sharedParam, len(params))
	for i, p := range params {
		shared[i] = &sharedParam{
			name:  p.Name,
			state: adam.NewState(p.Value),
		}
	}

	return &SharedModel{opt: opt, params: shared}
}

// NumParams returns the number of parameter tensors.
func (m *SharedModel) NumParams() int {
	return len(m.params)
}

// Pull copies the current shared weights into dst.
func (m *SharedModel) Pull(dst []*Param) error {
	if err := m.checkCompatible(dst); err != nil {
		return err
	}

	for i, p := range m.params {
		p.state.Weights.CopyTo(dst[i].Value)
	}

	return nil
}

// PushGradients offers the gradients of src to the shared gradient slots
// and returns the number of parameters whose gradient was accepted.
//
// A parameter's gradient is stored only if its slot is empty; if another
// worker's gradient is waiting to be consumed by Step the push for that
// parameter is a no-op. The gradients are copied, so src may be reused.
func (m *SharedModel) PushGradients(src []*Param) (int, error) {
	if err := m.checkCompatible(src); err != nil {
		return 0, err
	}

	accepted := 0
	for i, p := range m.params {
		g := append([]float64(nil), src[i].Grad...)
		if p.grad.CompareAndSwap(nil, &g) {
			accepted++
		}
	}

	return accepted, nil
}

// Step applies one optimizer update to every parameter whose gradient slot
// is filled, empties those slots, and returns the number of parameters
// updated.
func (m *SharedModel) Step() int {
	applied := 0
	for _, p := range m.params {
		g := p.grad.Swap(nil)
		if g == nil {
			continue
		}

		step := p.step.Inc()
		m.opt.Update(p.state, *g, step)
		applied++
	}

	return applied
}

// Pending returns the number of gradient slots currently filled.
func (m *SharedModel) Pending() int {
	n := 0
	for _, p := range m.params {
		if p.grad.Load() != nil {
			n++
		}
	}

	return n
}

func (m *SharedModel) checkCompatible(params []*Param) error {
	if len(params) != len(m.params) {
		return errors.Wrapf(ErrContract, "model has %d params, shared model has %d",
			len(params), len(m.params))
	}

	for i, p := range m.params {
		if params[i].Name != p.name || len(params[i].Value) != p.state.Weights.Len() {
			return errors.Wrapf(ErrContract, "param %d (%s, len %d) does not match shared param (%s, len %d)",
				i, params[i].Name, len(params[i].Value), p.name, p.state.Weights.Len())
		}
	}

	return nil
}
