package a3c

import (
	"math"

	"github.com/pkg/errors"

	"github.com/timpalpant/go-a3c/adam"
)

// fakeEnv is a scripted environment. Tiles listed in legal carry one army,
// and channel 1 of every state holds the number of steps taken in the
// current episode.
type fakeEnv struct {
	dims    [][2]int // Map dimensions of successive episodes; the last repeats.
	legal   []int
	doneAt  int // The episode ends after this many steps. Zero means never.
	reward  float64
	stepErr error

	episode int
	t       int
	resets  int
	actions []int
}

func (e *fakeEnv) MapHeight() int { return e.curDims()[0] }
func (e *fakeEnv) MapWidth() int  { return e.curDims()[1] }

func (e *fakeEnv) curDims() [2]int {
	if e.episode < len(e.dims) {
		return e.dims[e.episode]
	}

	return e.dims[len(e.dims)-1]
}

func (e *fakeEnv) state() *State {
	d := e.curDims()
	s := NewState(2, d[0], d[1])
	for _, tile := range e.legal {
		s.Plane(ArmyChannel)[tile] = 1
	}
	s.Plane(1)[0] = float64(e.t)
	return s
}

func (e *fakeEnv) Reset() (*State, error) {
	if e.resets > 0 {
		e.episode++
	}

	e.resets++
	e.t = 0
	return e.state(), nil
}

func (e *fakeEnv) Step(action int) (*State, float64, bool, error) {
	if e.stepErr != nil {
		return nil, 0, false, e.stepErr
	}

	e.actions = append(e.actions, action)
	e.t++
	done := e.doneAt > 0 && e.t >= e.doneAt
	return e.state(), e.reward, done, nil
}

// fakeModel has two scalar parameters: a value bias v, and z, the logit of
// action 0. All other logits are zero. The value estimate of a state is
// v plus the step counter held in channel 1.
type fakeModel struct {
	v, z    *Param
	badGrad bool

	hiddenDims  [][2]int
	resetHidden int
	inits       []int // Number of InitHidden calls seen by each Forward.
}

func newFakeModel() *fakeModel {
	return &fakeModel{
		v: NewParam("v", []float64{0.5}),
		z: NewParam("z", []float64{0.0}),
	}
}

func (m *fakeModel) Params() []*Param {
	return []*Param{m.v, m.z}
}

func (m *fakeModel) InitHidden(height, width int) {
	m.hiddenDims = append(m.hiddenDims, [2]int{height, width})
}

func (m *fakeModel) ResetHidden() {
	m.resetHidden++
}

func (m *fakeModel) Forward(s *State) (Output, error) {
	if len(m.hiddenDims) == 0 {
		return nil, errors.New("forward before InitHidden")
	}

	last := m.hiddenDims[len(m.hiddenDims)-1]
	if last[0] != s.Height || last[1] != s.Width {
		return nil, errors.Errorf("hidden state %v does not match state %dx%d", last, s.Height, s.Width)
	}

	m.inits = append(m.inits, len(m.hiddenDims))
	logits := make([]float64, NumActions(s.Height, s.Width))
	logits[0] = m.z.Value[0]
	return &fakeOutput{
		m:      m,
		value:  m.v.Value[0] + s.Plane(1)[0],
		logits: logits,
	}, nil
}

type fakeOutput struct {
	m      *fakeModel
	value  float64
	logits []float64
}

func (o *fakeOutput) Value() float64    { return o.value }
func (o *fakeOutput) Logits() []float64 { return o.logits }

func (o *fakeOutput) Backward(dValue float64, dLogits []float64) {
	if o.m.badGrad {
		o.m.v.Grad[0] = math.NaN()
		return
	}

	o.m.v.Grad[0] += dValue
	o.m.z.Grad[0] += dLogits[0]
}

func testParams() Params {
	p := DefaultParams()
	p.NumSteps = 5
	p.Optimizer = adam.DefaultParams(0.01)
	p.NumWorkers = 1
	return p
}
