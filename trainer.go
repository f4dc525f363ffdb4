package a3c

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Trainer runs asynchronous advantage actor-critic training with a pool
// of parallel workers sharing one SharedModel.
type Trainer struct {
	params       Params
	newEnv       EnvFactory
	newModel     ModelFactory
	checkpointer Checkpointer

	runID  string
	shared *SharedModel
	stats  Stats
}

// NewTrainer creates a Trainer. If a Checkpointer is given and it holds a
// saved checkpoint, training resumes from it; otherwise the shared model
// is initialized from a new Model.
func NewTrainer(params Params, newEnv EnvFactory, newModel ModelFactory, checkpointer Checkpointer) (*Trainer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	t := &Trainer{
		params:       params,
		newEnv:       newEnv,
		newModel:     newModel,
		checkpointer: checkpointer,
		runID:        uuid.New().String(),
		shared:       NewSharedModel(newModel(), params.Optimizer),
	}

	if checkpointer != nil {
		runID, iter, snapshot, err := checkpointer.LoadLatest()
		if err != nil {
			return nil, errors.Wrap(err, "error loading checkpoint")
		}

		if snapshot != nil {
			if err := t.shared.Restore(snapshot); err != nil {
				return nil, err
			}

			glog.Infof("Resuming run %s from checkpoint at iteration %d", runID, iter)
			t.runID = runID
			t.stats.Iterations.Store(iter)
		}
	}

	return t, nil
}

// RunID returns the identifier under which checkpoints are saved.
func (t *Trainer) RunID() string {
	return t.runID
}

// SharedModel returns the model shared by all workers.
func (t *Trainer) SharedModel() *SharedModel {
	return t.shared
}

// Stats returns the live counters of the run.
func (t *Trainer) Stats() *Stats {
	return &t.stats
}

// Run starts NumWorkers workers and blocks until all of them have exited.
//
// A worker that fails is logged and restarted with a new environment and
// model, up to MaxRestarts times. Failures never affect other workers.
// Run returns an error only if every worker was abandoned.
func (t *Trainer) Run(ctx context.Context) error {
	glog.Infof("Starting run %s with %d workers", t.runID, t.params.NumWorkers)
	reportCtx, stopReporting := context.WithCancel(ctx)
	var reporter sync.WaitGroup
	reporter.Add(1)
	go func() {
		defer reporter.Done()
		t.report(reportCtx)
	}()

	var wg sync.WaitGroup
	errs := make([]error, t.params.NumWorkers)
	for rank := 0; rank < t.params.NumWorkers; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			errs[rank] = t.runWorker(ctx, rank)
		}(rank)
	}

	wg.Wait()
	stopReporting()
	reporter.Wait()

	if err := t.Checkpoint(); err != nil {
		glog.Errorf("Error saving final checkpoint: %v", err)
	}

	glog.Infof("Run %s finished: %v", t.runID, t.stats.Snapshot())
	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}

	if len(failed) == t.params.NumWorkers {
		return errors.Wrapf(failed[0], "all %d workers failed", len(failed))
	}

	return nil
}

func (t *Trainer) runWorker(ctx context.Context, rank int) error {
	params := t.params
	for attempt := 0; ; attempt++ {
		if t.params.MaxIterations > 0 && params.MaxIterations <= 0 {
			return nil
		}

		w, err := t.startWorker(rank, params)
		if err == nil {
			err = runRecovered(ctx, rank, w)
			if params.MaxIterations > 0 {
				params.MaxIterations -= w.iter
			}
		}

		if err == nil {
			return nil
		}

		t.stats.WorkerFailures.Inc()
		if attempt >= t.params.MaxRestarts {
			glog.Errorf("Worker %d abandoned after %d failures: %v", rank, attempt+1, err)
			return err
		}

		glog.Errorf("Worker %d failed, restarting: %v", rank, err)
	}
}

// runRecovered runs w, converting a panic in its env or model into an
// error so that only this worker is restarted.
func runRecovered(ctx context.Context, rank int, w *Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("worker %d panicked: %v", rank, r)
		}
	}()

	return w.Run(ctx)
}

func (t *Trainer) startWorker(rank int, params Params) (*Worker, error) {
	env, err := t.newEnv(rank)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating env for worker %d", rank)
	}

	return NewWorker(rank, params, env, t.newModel(), t.shared, &t.stats), nil
}

func (t *Trainer) report(ctx context.Context) {
	var reportC, checkpointC <-chan time.Time
	if t.params.ReportInterval > 0 {
		ticker := time.NewTicker(t.params.ReportInterval)
		defer ticker.Stop()
		reportC = ticker.C
	}

	if t.params.CheckpointInterval > 0 && t.checkpointer != nil {
		ticker := time.NewTicker(t.params.CheckpointInterval)
		defer ticker.Stop()
		checkpointC = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-reportC:
			glog.Infof("[run=%s] %v", t.runID, t.stats.Snapshot())
		case <-checkpointC:
			if err := t.Checkpoint(); err != nil {
				glog.Errorf("Error saving checkpoint: %v", err)
			}
		}
	}
}

// Checkpoint saves a snapshot of the shared model. It is a no-op if the
// Trainer has no Checkpointer.
func (t *Trainer) Checkpoint() error {
	if t.checkpointer == nil {
		return nil
	}

	buf, err := t.shared.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "error encoding shared model")
	}

	iter := t.stats.Iterations.Load()
	if err := t.checkpointer.SaveCheckpoint(t.runID, iter, buf); err != nil {
		return err
	}

	glog.V(1).Infof("Saved checkpoint for run %s at iteration %d (%d bytes)", t.runID, iter, len(buf))
	return nil
}
