package a3c

import (
	"time"

	"github.com/pkg/errors"

	"github.com/timpalpant/go-a3c/adam"
)

// Params are the configuration options for an A3C training run.
type Params struct {
	Gamma         float64 // Discount factor.
	Tau           float64 // GAE trace decay.
	EntropyCoef   float64 // Weight of the entropy bonus.
	OffTileCoef   float64 // Weight of the penalty on probability mass assigned to illegal actions.
	ValueLossCoef float64 // Weight of the value regression loss.
	MaxGradNorm   float64 // Global gradient norm is clipped to this value.

	NumSteps         int // Rollout step cap per training iteration.
	MaxEpisodeLength int // Episodes are forced to end after this many steps.

	Optimizer adam.Params
	Seed      int64 // Worker k seeds its random number generator with Seed + k.

	NumWorkers    int
	MaxRestarts   int   // Times a failed worker is restarted before it is abandoned.
	MaxIterations int64 // Per-worker iteration budget. Zero means unbounded.

	ReportInterval     time.Duration
	CheckpointInterval time.Duration
}

// DefaultParams returns the hyperparameters used for the generals.io agent.
func DefaultParams() Params {
	return Params{
		Gamma:              0.99,
		Tau:                1.0,
		EntropyCoef:        0.01,
		OffTileCoef:        1.0,
		ValueLossCoef:      0.5,
		MaxGradNorm:        50,
		NumSteps:           20,
		MaxEpisodeLength:   1000000,
		Optimizer:          adam.DefaultParams(0.0001),
		Seed:               1,
		NumWorkers:         4,
		MaxRestarts:        3,
		ReportInterval:     time.Minute,
		CheckpointInterval: 10 * time.Minute,
	}
}

// Validate returns an error if any parameter is out of range.
func (p Params) Validate() error {
	if p.Gamma < 0 || p.Gamma > 1 {
		return errors.Errorf("gamma must be in [0, 1], got %v", p.Gamma)
	}

	if p.Tau < 0 || p.Tau > 1 {
		return errors.Errorf("tau must be in [0, 1], got %v", p.Tau)
	}

	if p.EntropyCoef < 0 || p.OffTileCoef < 0 || p.ValueLossCoef < 0 {
		return errors.Errorf("loss coefficients must be non-negative, got entropy=%v off_tile=%v value=%v",
			p.EntropyCoef, p.OffTileCoef, p.ValueLossCoef)
	}

	if !(p.MaxGradNorm > 0) {
		return errors.Errorf("max gradient norm must be positive, got %v", p.MaxGradNorm)
	}

	if p.NumSteps <= 0 {
		return errors.Errorf("num steps must be positive, got %d", p.NumSteps)
	}

	if p.MaxEpisodeLength <= 0 {
		return errors.Errorf("max episode length must be positive, got %d", p.MaxEpisodeLength)
	}

	if p.NumWorkers <= 0 {
		return errors.Errorf("num workers must be positive, got %d", p.NumWorkers)
	}

	if p.MaxRestarts < 0 || p.MaxIterations < 0 {
		return errors.Errorf("max restarts and iterations must be non-negative")
	}

	return errors.Wrap(p.Optimizer.Validate(), "invalid optimizer params")
}
