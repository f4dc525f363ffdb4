package a3c

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

// NumDirections is the number of move directions available from each tile.
const NumDirections = 8

// ArmyChannel is the index of the state plane holding the acting player's
// army counts. Only tiles owned by the acting player carry a positive value.
const ArmyChannel = 0

// ErrContract is the cause of errors reported when an environment or model
// violates its interface contract. Such errors are fatal to a worker.
var ErrContract = errors.New("contract violation")

// NumActions returns the size of the flattened action space for a map of
// the given dimensions. Action a moves from tile a % (h*w) in direction
// a / (h*w).
func NumActions(height, width int) int {
	return NumDirections * height * width
}

// State is one observation of the game, stored as a stack of
// Height x Width planes in channel-major order.
type State struct {
	Height   int
	Width    int
	Channels int
	Data     []float64
}

// NewState returns a zeroed State of the given dimensions.
func NewState(channels, height, width int) *State {
	return &State{
		Height:   height,
		Width:    width,
		Channels: channels,
		Data:     make([]float64, channels*height*width),
	}
}

// NumTiles returns Height * Width.
func (s *State) NumTiles() int {
	return s.Height * s.Width
}

// Plane returns the slice of Data holding channel c.
func (s *State) Plane(c int) []float64 {
	n := s.NumTiles()
	return s.Data[c*n : (c+1)*n]
}

// Validate checks that the State is well-formed.
func (s *State) Validate() error {
	if s == nil {
		return errors.Wrap(ErrContract, "nil state")
	}

	if s.Height <= 0 || s.Width <= 0 || s.Channels <= ArmyChannel {
		return errors.Wrapf(ErrContract, "invalid state shape %dx%dx%d",
			s.Channels, s.Height, s.Width)
	}

	if len(s.Data) != s.Channels*s.Height*s.Width {
		return errors.Wrapf(ErrContract, "state has %d values, expected %d",
			len(s.Data), s.Channels*s.Height*s.Width)
	}

	for i, x := range s.Data {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return errors.Wrapf(ErrContract, "state value %d is %v", i, x)
		}
	}

	return nil
}

// Env is a game environment that a Worker drives.
type Env interface {
	// Reset starts a new episode and returns its initial state.
	Reset() (*State, error)
	// Step applies the given action index and returns the next state,
	// the reward for the transition, and whether the episode has ended.
	// A returned error indicates that the environment contract was violated.
	Step(action int) (next *State, reward float64, done bool, err error)
	// MapHeight and MapWidth are the spatial extent of the current map.
	// They size the model hidden state and the action space.
	MapHeight() int
	MapWidth() int
}

// EnvFactory creates the environment for the worker with the given rank.
type EnvFactory func(rank int) (Env, error)

// Param is a named parameter tensor of a Model together with its
// accumulated gradient.
type Param struct {
	Name  string
	Value []float64
	Grad  []float64
}

// NewParam returns a Param with the given initial values and zero gradient.
func NewParam(name string, values []float64) *Param {
	return &Param{
		Name:  name,
		Value: values,
		Grad:  make([]float64, len(values)),
	}
}

// Output is the result of one forward pass of a Model.
type Output interface {
	// Value is the estimated state value.
	Value() float64
	// Logits are the unnormalized action scores, one per action index.
	Logits() []float64
	// Backward accumulates into the Model's parameter gradients the
	// gradient of a scalar loss, given the partial derivatives of the loss
	// with respect to Value and to each entry of Logits. dLogits must not
	// be retained.
	Backward(dValue float64, dLogits []float64)
}

// Model is a recurrent policy/value network.
//
// Models are not safe for concurrent use; each Worker owns its own.
type Model interface {
	// Forward evaluates the model on the given state, advancing the hidden
	// state. Gradients do not propagate into hidden state produced by
	// earlier calls.
	Forward(s *State) (Output, error)
	// InitHidden reinitializes the hidden state for a map of the given size.
	InitHidden(height, width int)
	// ResetHidden discards the current hidden state, keeping its dimensions.
	ResetHidden()
	// Params returns the model's parameters, in a stable order.
	Params() []*Param
}

// ModelFactory creates a new Model with freshly initialized parameters.
type ModelFactory func() Model

// Checkpointer persists snapshots of a SharedModel.
type Checkpointer interface {
	SaveCheckpoint(runID string, iter int64, snapshot []byte) error
	// LoadLatest returns the most recently saved checkpoint.
	// If no checkpoint has been saved it returns a nil snapshot and no error.
	LoadLatest() (runID string, iter int64, snapshot []byte, err error)
	io.Closer
}
