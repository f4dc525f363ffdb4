package a3c

import (
	"bytes"
	"encoding/gob"

	"github.com/pkg/errors"

	"github.com/timpalpant/go-a3c/adam"
)

type paramSnapshot struct {
	Name    string
	Weights []float64
	M       []float64
	V       []float64
	Step    int64
}

// MarshalBinary implements encoding.BinaryMarshaler.
//
// Pending gradients are not saved. Since the shared model may be updated
// concurrently, the snapshot is not guaranteed to be consistent across
// parameters.
func (m *SharedModel) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	if err := enc.Encode(m.opt); err != nil {
		return nil, err
	}

	snapshots := make([]paramSnapshot, len(m.params))
	for i, p := range m.params {
		snapshots[i] = paramSnapshot{
			Name:    p.name,
			Weights: p.state.Weights.Slice(),
			M:       p.state.M.Slice(),
			V:       p.state.V.Slice(),
			Step:    p.step.Load(),
		}
	}

	if err := enc.Encode(snapshots); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
// It must not be called while the SharedModel is in use by workers.
func (m *SharedModel) UnmarshalBinary(buf []byte) error {
	r := bytes.NewReader(buf)
	dec := gob.NewDecoder(r)

	var opt adam.Params
	if err := dec.Decode(&opt); err != nil {
		return err
	}

	var snapshots []paramSnapshot
	if err := dec.Decode(&snapshots); err != nil {
		return err
	}

	params := make([]*sharedParam, len(snapshots))
	for i, s := range snapshots {
		if len(s.M) != len(s.Weights) || len(s.V) != len(s.Weights) {
			return errors.Errorf("corrupt snapshot for param %s", s.Name)
		}

		state := adam.NewState(s.Weights)
		state.M.CopyFrom(s.M)
		state.V.CopyFrom(s.V)
		params[i] = &sharedParam{
			name:  s.Name,
			state: state,
		}
		params[i].step.Store(s.Step)
	}

	m.opt = opt
	m.params = params
	return nil
}

// Restore replaces the weights and optimizer state of m with those of a
// snapshot produced by MarshalBinary. The snapshot must describe the same
// parameter layout as m. Optimizer hyperparameters of m are kept.
func (m *SharedModel) Restore(snapshot []byte) error {
	var loaded SharedModel
	if err := loaded.UnmarshalBinary(snapshot); err != nil {
		return errors.Wrap(err, "error decoding snapshot")
	}

	if len(loaded.params) != len(m.params) {
		return errors.Errorf("snapshot has %d params, expected %d",
			len(loaded.params), len(m.params))
	}

	for i, p := range loaded.params {
		if p.name != m.params[i].name || p.state.Weights.Len() != m.params[i].state.Weights.Len() {
			return errors.Errorf("snapshot param %d (%s) does not match %s",
				i, p.name, m.params[i].name)
		}
	}

	loaded.opt = m.opt
	*m = loaded
	return nil
}

func init() {
	gob.Register(&SharedModel{})
}
