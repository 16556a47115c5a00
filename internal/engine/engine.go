// Package engine contains the three polling loops of the job system: the
// scheduler that turns due schedules into pending runs, the worker that
// claims and executes them, and the reconciler that corrects stalled
// executions. Coordination between replicas happens entirely through
// conditional updates in the store; the loops share no memory.
package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"answerpulse/internal/config"
	"answerpulse/internal/store"
)

type Engine struct {
	Scheduler  *Scheduler
	Worker     *Worker
	Reconciler *Reconciler
	log        zerolog.Logger
}

func New(
	cfg *config.Config,
	schedules store.ScheduleStore,
	runs store.RunStore,
	executions store.ExecutionStore,
	collection CollectionRunner,
	scoring ScoringRunner,
	log zerolog.Logger,
) *Engine {
	instance := cfg.Instance
	if instance == "" {
		instance = uuid.NewString()
	}

	return &Engine{
		Scheduler: NewScheduler(schedules, runs, cfg.SchedulerInterval, cfg.ScheduleBatchSize, log),
		Worker: NewWorker(runs, schedules, executions, collection, scoring, WorkerConfig{
			Instance:  instance,
			Interval:  cfg.WorkerInterval,
			BatchSize: cfg.RunBatchSize,
			Lookback:  cfg.RetryLookback,
		}, log),
		Reconciler: NewReconciler(executions, cfg.ReconcilerInterval, cfg.StuckThreshold, cfg.StuckBatchSize, log),
		log:        log,
	}
}

// Run starts all three loops and blocks until the context is cancelled or a
// loop returns. Per-item failures never propagate here; the only errors that
// end Run are context cancellation and loop teardown.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info().Msg("engine starting")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.Scheduler.Run(ctx) })
	g.Go(func() error { return e.Worker.Run(ctx) })
	g.Go(func() error { return e.Reconciler.Run(ctx) })
	return g.Wait()
}
