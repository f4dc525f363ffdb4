package a3c

import (
	"expvar"
	"fmt"

	"go.uber.org/atomic"
)

// Stats are counters shared by all workers of a training run.
type Stats struct {
	Iterations     atomic.Int64
	Steps          atomic.Int64
	Episodes       atomic.Int64
	Updates        atomic.Int64 // Iterations whose gradients were pushed and stepped.
	SkippedUpdates atomic.Int64 // Iterations dropped because of non-finite loss or gradients.
	AcceptedGrads  atomic.Int64 // Parameter gradients accepted by the shared model.
	DroppedGrads   atomic.Int64 // Parameter gradients dropped because the slot was occupied.
	ZeroLegalMass  atomic.Int64 // Steps whose masked distribution had no legal mass.
	WorkerFailures atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Iterations     int64
	Steps          int64
	Episodes       int64
	Updates        int64
	SkippedUpdates int64
	AcceptedGrads  int64
	DroppedGrads   int64
	ZeroLegalMass  int64
	WorkerFailures int64
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Iterations:     s.Iterations.Load(),
		Steps:          s.Steps.Load(),
		Episodes:       s.Episodes.Load(),
		Updates:        s.Updates.Load(),
		SkippedUpdates: s.SkippedUpdates.Load(),
		AcceptedGrads:  s.AcceptedGrads.Load(),
		DroppedGrads:   s.DroppedGrads.Load(),
		ZeroLegalMass:  s.ZeroLegalMass.Load(),
		WorkerFailures: s.WorkerFailures.Load(),
	}
}

// Publish exports the counters as an expvar with the given name.
// It panics if the name is already registered.
func (s *Stats) Publish(name string) {
	expvar.Publish(name, expvar.Func(func() interface{} {
		return s.Snapshot()
	}))
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf("iter=%d steps=%d episodes=%d updates=%d skipped=%d grads(accepted=%d dropped=%d) zero_legal=%d failures=%d",
		s.Iterations, s.Steps, s.Episodes, s.Updates, s.SkippedUpdates,
		s.AcceptedGrads, s.DroppedGrads, s.ZeroLegalMass, s.WorkerFailures)
}
