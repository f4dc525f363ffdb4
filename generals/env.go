package generals

import (
	"math/rand"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/timpalpant/go-a3c"
)

// EnvParams configure the training environment.
type EnvParams struct {
	Height             int
	Width              int
	Mountains          int
	Cities             int
	Rules              Rules
	MaxTurns           int     // The episode ends after this many turns. Zero means unbounded.
	IllegalMovePenalty float64 // Subtracted from the reward when the agent's move is illegal.
	Seed               int64
}

func DefaultEnvParams() EnvParams {
	return EnvParams{
		Height:             10,
		Width:              10,
		Mountains:          10,
		Cities:             4,
		Rules:              DefaultRules(),
		MaxTurns:           1000,
		IllegalMovePenalty: 0.01,
		Seed:               1,
	}
}

// Env implements a3c.Env for a two-player game in which the learning agent
// is player 0 and player 1 moves uniformly at random among its legal moves.
//
// Each Step applies the agent's move followed by the opponent's and ends
// the turn. The reward is the change in the agent's share of passable land,
// plus 1 for capturing the opponent's general or minus 1 for losing its own.
type Env struct {
	params EnvParams
	rng    *rand.Rand
	game   *Game
	share  float64
}

// NewEnv creates a new Env. Reset must be called before Step.
func NewEnv(params EnvParams) *Env {
	return &Env{
		params: params,
		rng:    rand.New(rand.NewSource(params.Seed)),
	}
}

// Game returns the game in progress.
func (e *Env) Game() *Game {
	return e.game
}

// MapHeight implements a3c.Env.
func (e *Env) MapHeight() int {
	return e.params.Height
}

// MapWidth implements a3c.Env.
func (e *Env) MapWidth() int {
	return e.params.Width
}

// Reset implements a3c.Env.
func (e *Env) Reset() (*a3c.State, error) {
	spec := RandomMapSpec(e.rng, e.params.Height, e.params.Width, e.params.Mountains, e.params.Cities)
	game, err := NewGame(spec, e.params.Rules)
	if err != nil {
		return nil, err
	}

	e.game = game
	e.share = e.landShare()
	return game.Observe(0), nil
}

// Step implements a3c.Env.
func (e *Env) Step(action int) (*a3c.State, float64, bool, error) {
	if e.game == nil {
		return nil, 0, false, errors.New("step called before reset")
	}

	n := a3c.NumActions(e.params.Height, e.params.Width)
	if action < 0 || action >= n {
		return nil, 0, false, errors.Errorf("action %d out of range [0, %d)", action, n)
	}

	var reward float64
	tile, d := e.game.DecodeAction(action)
	if end, ok := e.game.Neighbor(tile, d); ok && e.game.CanMove(0, tile, end) {
		if err := e.game.Move(0, tile, end, false); err != nil {
			return nil, 0, false, err
		}
	} else {
		glog.V(3).Infof("Illegal move %d (tile %d, direction %d)", action, tile, d)
		reward -= e.params.IllegalMovePenalty
	}

	if e.game.Winner() == -1 {
		if moves := e.game.LegalMoves(1); len(moves) > 0 {
			tile, d := e.game.DecodeAction(moves[e.rng.Intn(len(moves))])
			end, _ := e.game.Neighbor(tile, d)
			if err := e.game.Move(1, tile, end, false); err != nil {
				return nil, 0, false, err
			}
		}
	}

	e.game.EndTurn()

	share := e.landShare()
	reward += share - e.share
	e.share = share

	done := false
	switch e.game.Winner() {
	case 0:
		reward += 1
		done = true
	case 1:
		reward -= 1
		done = true
	}

	if e.params.MaxTurns > 0 && e.game.Turn() >= e.params.MaxTurns {
		done = true
	}

	return e.game.Observe(0), reward, done, nil
}

func (e *Env) landShare() float64 {
	return float64(e.game.OwnedTiles(0)) / float64(e.game.PassableTiles())
}
