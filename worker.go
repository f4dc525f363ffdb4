package a3c

import (
	"context"
	"math"
	"math/rand"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// IterationResult summarizes one training iteration of a Worker.
type IterationResult struct {
	Steps     int
	Done      bool    // The rollout ended because the episode ended.
	Bootstrap float64 // Return used beyond the last step.
	Loss      Loss
	GradNorm  float64 // Global gradient norm before clipping.
	Committed bool    // Gradients were pushed and an optimizer step was taken.
	Accepted  int     // Parameter gradients accepted by the shared model.
	Applied   int     // Parameters updated by the optimizer step.
	Episodes  int     // Episodes that ended during the iteration.
}

// Worker repeatedly collects a rollout with its local model, computes the
// actor-critic loss, and pushes its gradients into the shared model.
//
// A Worker exclusively owns its environment, model, and trajectory buffers.
// It is not safe for concurrent use.
type Worker struct {
	rank   int
	params Params
	env    Env
	model  Model
	shared *SharedModel
	stats  *Stats
	rng    *rand.Rand
	pool   floatSlicePool

	state         *State
	episodeLength int
	iter          int64
}

// NewWorker creates a new Worker. The Model must have the same parameter
// layout as the SharedModel. stats may be nil.
func NewWorker(rank int, params Params, env Env, model Model, shared *SharedModel, stats *Stats) *Worker {
	if stats == nil {
		stats = &Stats{}
	}

	return &Worker{
		rank:   rank,
		params: params,
		env:    env,
		model:  model,
		shared: shared,
		stats:  stats,
		rng:    rand.New(rand.NewSource(params.Seed + int64(rank))),
	}
}

// EpisodeLength returns the number of steps taken in the current episode.
func (w *Worker) EpisodeLength() int {
	return w.episodeLength
}

// Run performs training iterations until the context is cancelled, the
// iteration budget is exhausted, or an unrecoverable error occurs.
func (w *Worker) Run(ctx context.Context) error {
	for w.params.MaxIterations == 0 || w.iter < w.params.MaxIterations {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		result, err := w.Iterate()
		if err != nil {
			return errors.Wrapf(err, "worker %d failed on iteration %d", w.rank, w.iter)
		}

		glog.V(1).Infof("[worker=%d iter=%d] steps=%d loss=%.4f (policy=%.4f value=%.4f) grad_norm=%.3f committed=%v",
			w.rank, w.iter, result.Steps, result.Loss.Total, result.Loss.Policy, result.Loss.Value,
			result.GradNorm, result.Committed)
	}

	return nil
}

// Iterate runs one training iteration: sync weights from the shared model,
// collect up to NumSteps of experience, and apply one update.
//
// An error aborts the iteration before any gradients are pushed.
func (w *Worker) Iterate() (IterationResult, error) {
	var result IterationResult
	if w.state == nil {
		if err := w.resetEpisode(); err != nil {
			return result, err
		}
	}

	params := w.model.Params()
	if err := w.shared.Pull(params); err != nil {
		return result, err
	}
	ZeroGrads(params)

	traj := make(Trajectory, 0, w.params.NumSteps)
	defer func() { traj.release(&w.pool) }()
	for len(traj) < w.params.NumSteps {
		w.episodeLength++
		step, err := w.act()
		if err != nil {
			return result, err
		}

		next, reward, done, err := w.env.Step(step.action)
		if err != nil {
			return result, errors.Wrapf(ErrContract, "env step failed: %v", err)
		}

		step.Reward = reward
		traj = append(traj, step)
		result.Done = done || w.episodeLength >= w.params.MaxEpisodeLength
		if result.Done {
			result.Episodes++
			if err := w.resetEpisode(); err != nil {
				return result, err
			}

			break
		}

		if err := next.Validate(); err != nil {
			return result, err
		}
		w.state = next
	}

	result.Steps = len(traj)
	w.stats.Steps.Add(int64(result.Steps))
	w.stats.Episodes.Add(int64(result.Episodes))

	if !result.Done {
		out, err := w.model.Forward(w.state)
		if err != nil {
			return result, errors.Wrap(err, "error evaluating bootstrap value")
		}

		result.Bootstrap = out.Value()
	}

	loss, adv := ComputeLoss(traj, result.Bootstrap, w.params)
	result.Loss = loss
	traj.backward(&w.pool, adv, w.params)
	result.GradNorm = ClipGradNorm(params, w.params.MaxGradNorm)

	if isFinite(loss.Total) && GradsFinite(params) {
		accepted, err := w.shared.PushGradients(params)
		if err != nil {
			return result, err
		}

		result.Accepted = accepted
		result.Applied = w.shared.Step()
		result.Committed = true
		w.stats.Updates.Inc()
		w.stats.AcceptedGrads.Add(int64(accepted))
		w.stats.DroppedGrads.Add(int64(len(params) - accepted))
	} else {
		glog.Warningf("[worker=%d iter=%d] skipping update with non-finite loss %v or gradients (norm %v)",
			w.rank, w.iter, loss.Total, result.GradNorm)
		w.stats.SkippedUpdates.Inc()
	}

	w.model.ResetHidden()
	ZeroGrads(params)
	w.iter++
	w.stats.Iterations.Inc()
	return result, nil
}

// act evaluates the model on the current state and samples an action.
func (w *Worker) act() (Step, error) {
	out, err := w.model.Forward(w.state)
	if err != nil {
		return Step{}, errors.Wrap(err, "model forward failed")
	}

	logits := out.Logits()
	if n := NumActions(w.state.Height, w.state.Width); len(logits) != n {
		return Step{}, errors.Wrapf(ErrContract, "model produced %d logits, expected %d", len(logits), n)
	}

	dist := newActionDist(&w.pool, logits, LegalMask(w.state))
	action, ok := dist.Sample(w.rng)
	if !ok {
		glog.V(2).Infof("[worker=%d] no legal probability mass, sampling uniformly", w.rank)
		w.stats.ZeroLegalMass.Inc()
	}

	return Step{
		Value:     out.Value(),
		LogProb:   dist.LogProbs[action],
		Entropy:   dist.Entropy,
		OffTarget: dist.OffTarget,
		action:    action,
		dist:      dist,
		out:       out,
	}, nil
}

// resetEpisode starts a new episode and reinitializes the hidden state
// for the new map.
func (w *Worker) resetEpisode() error {
	state, err := w.env.Reset()
	if err != nil {
		return errors.Wrapf(ErrContract, "env reset failed: %v", err)
	}

	if err := state.Validate(); err != nil {
		return err
	}

	w.state = state
	w.episodeLength = 0
	w.model.InitHidden(w.env.MapHeight(), w.env.MapWidth())
	return nil
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
