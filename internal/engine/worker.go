package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"answerpulse/internal/models"
	"answerpulse/internal/state"
	"answerpulse/internal/store"
)

// WorkerConfig carries the per-replica knobs for a Worker.
type WorkerConfig struct {
	// Instance is stamped into claimed_by on every claim.
	Instance  string
	Interval  time.Duration
	BatchSize int
	// Lookback is the window retry job types search for failed executions.
	Lookback time.Duration
}

// Worker claims pending runs and dispatches them to the collaborators. Claims
// are conditional updates, so any number of replicas can poll the same table:
// exactly one wins each run, the rest skip it silently.
type Worker struct {
	runs       store.RunStore
	schedules  store.ScheduleStore
	executions store.ExecutionStore
	collection CollectionRunner
	scoring    ScoringRunner
	cfg        WorkerConfig
	busy       atomic.Bool
	log        zerolog.Logger
	now        func() time.Time
}

func NewWorker(
	runs store.RunStore,
	schedules store.ScheduleStore,
	executions store.ExecutionStore,
	collection CollectionRunner,
	scoring ScoringRunner,
	cfg WorkerConfig,
	log zerolog.Logger,
) *Worker {
	return &Worker{
		runs:       runs,
		schedules:  schedules,
		executions: executions,
		collection: collection,
		scoring:    scoring,
		cfg:        cfg,
		log:        log.With().Str("component", "worker").Str("instance", cfg.Instance).Logger(),
		now:        time.Now,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("worker stopped")
			return ctx.Err()
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick claims and processes one batch of pending runs sequentially. Once a
// run is claimed it is carried to a terminal state; there is no mid-dispatch
// cancellation, crashes are corrected later by the reconciler.
func (w *Worker) Tick(ctx context.Context) {
	if !w.busy.CompareAndSwap(false, true) {
		w.log.Debug().Msg("previous tick still running, skipping")
		return
	}
	defer w.busy.Store(false)

	pending, err := w.runs.FetchPending(ctx, w.cfg.BatchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("failed to fetch pending runs")
		return
	}

	processed := 0
	for i := range pending {
		claimed, err := w.runs.Claim(ctx, pending[i].ID, w.cfg.Instance)
		if err != nil {
			w.log.Error().Err(err).Str("run_id", pending[i].ID).Msg("claim failed")
			continue
		}
		if claimed == nil {
			// Another replica won the race. Not an error, not worth a log.
			continue
		}
		w.process(ctx, claimed)
		processed++
	}

	if processed > 0 {
		if counts, err := w.runs.CountByStatus(ctx); err == nil {
			w.log.Debug().
				Int("pending", counts[state.StatusPending]).
				Int("processing", counts[state.StatusProcessing]).
				Int("completed", counts[state.StatusCompleted]).
				Int("failed", counts[state.StatusFailed]).
				Msg("run counts after tick")
		}
	}
}

func (w *Worker) process(ctx context.Context, run *models.JobRun) {
	started := w.now()
	log := w.log.With().
		Str("run_id", run.ID).
		Str("schedule_id", run.ScheduleID).
		Str("job_type", run.JobType.String()).
		Logger()

	sch, err := w.schedules.FindByID(ctx, run.ScheduleID)
	if errors.Is(err, store.ErrNotFound) {
		w.finish(ctx, log, run, started, &dispatchOutcome{errs: []string{"schedule not found"}})
		return
	}
	if err != nil {
		w.finish(ctx, log, run, started, &dispatchOutcome{errs: []string{"schedule lookup failed: " + err.Error()}})
		return
	}
	if !sch.IsActive {
		w.finish(ctx, log, run, started, &dispatchOutcome{errs: []string{"schedule inactive"}})
		return
	}

	out := w.dispatch(ctx, sch, run)

	if err := w.schedules.SetLastRunAt(ctx, sch.ID, w.now()); err != nil {
		log.Error().Err(err).Msg("failed to update schedule last_run_at")
	}

	w.finish(ctx, log, run, started, out)
}

// finish records the run's terminal state. Completion requires that the
// dispatch produced at least one metric; a retry short-circuit completes
// without metrics but with an explanatory note.
func (w *Worker) finish(ctx context.Context, log zerolog.Logger, run *models.JobRun, started time.Time, out *dispatchOutcome) {
	elapsed := w.now().Sub(started)

	metadata := out.metadata
	if metadata == nil {
		metadata = models.JSONMap{}
	}
	metadata["duration_ms"] = elapsed.Milliseconds()
	if len(out.errs) > 0 {
		metadata["errors"] = out.errs
	}

	var err error
	var status state.RunStatus
	switch {
	case out.note != "":
		metadata["note"] = out.note
		status = state.StatusCompleted
		err = w.runs.MarkCompleted(ctx, run.ID, out.metrics, metadata)
	case len(out.metrics) > 0:
		status = state.StatusCompleted
		err = w.runs.MarkCompleted(ctx, run.ID, out.metrics, metadata)
	default:
		message := strings.Join(out.errs, "; ")
		if message == "" {
			message = "no metrics produced"
		}
		status = state.StatusFailed
		err = w.runs.MarkFailed(ctx, run.ID, message, metadata)
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to record run outcome")
		return
	}

	log.Info().
		Str("status", status.String()).
		Dur("duration", elapsed).
		Int("error_count", len(out.errs)).
		Msg("run finished")
}

type dispatchOutcome struct {
	metrics  models.JSONMap
	metadata models.JSONMap
	errs     []string
	// note marks an informational completion, e.g. a retry job that found
	// nothing to retry.
	note string
}

// dispatch invokes the collaborators selected by the run's job type. Each
// sub-operation runs inside its own error boundary so a failing collection
// never blocks scoring and vice versa.
func (w *Worker) dispatch(ctx context.Context, sch *models.Schedule, run *models.JobRun) *dispatchOutcome {
	out := &dispatchOutcome{
		metrics:  models.JSONMap{},
		metadata: models.JSONMap{},
	}
	brandID := sch.BrandID()

	switch run.JobType {
	case state.JobCollection:
		w.runCollection(ctx, sch, brandID, nil, out)

	case state.JobScoring:
		w.runScoring(ctx, sch, brandID, nil, out)

	case state.JobCollectionAndScoring:
		w.runCollection(ctx, sch, brandID, nil, out)
		w.runScoring(ctx, sch, brandID, nil, out)

	case state.JobCollectionRetry:
		ids, err := w.failedWorkItems(ctx, sch.OwnerID, brandID)
		if err != nil {
			out.errs = append(out.errs, err.Error())
			return out
		}
		if len(ids) == 0 {
			out.note = "no failed executions in lookback window, nothing to retry"
			return out
		}
		out.metadata["retried_work_items"] = len(ids)
		w.runCollection(ctx, sch, brandID, ids, out)

	case state.JobScoringRetry:
		since := w.now().Add(-w.cfg.Lookback)
		w.runScoring(ctx, sch, brandID, &since, out)

	default:
		out.errs = append(out.errs, fmt.Sprintf("unknown job type %q", run.JobType))
	}

	return out
}

func (w *Worker) runCollection(ctx context.Context, sch *models.Schedule, brandID string, workItemIDs []string, out *dispatchOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out.errs = append(out.errs, fmt.Sprintf("collection panicked: %v", r))
		}
	}()

	opts := CollectionOptions{
		Collectors:  sch.Parameters.StringSlice("collectors"),
		Locale:      sch.Parameters.String("locale"),
		Country:     sch.Parameters.String("country"),
		WorkItemIDs: workItemIDs,
	}

	stats, err := w.collection.Execute(ctx, sch.OwnerID, brandID, opts)
	if err != nil {
		out.errs = append(out.errs, "collection: "+err.Error())
		return
	}
	if stats == nil {
		out.errs = append(out.errs, "collection: no stats returned")
		return
	}

	out.metrics["items_processed"] = stats.ItemsProcessed
	out.metrics["results_produced"] = stats.ResultsProduced
	out.metrics["collection_succeeded"] = stats.Succeeded
	out.metrics["collection_failed"] = stats.Failed
	for _, msg := range stats.Errors {
		out.errs = append(out.errs, "collection: "+msg)
	}
}

func (w *Worker) runScoring(ctx context.Context, sch *models.Schedule, brandID string, since *time.Time, out *dispatchOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out.errs = append(out.errs, fmt.Sprintf("scoring panicked: %v", r))
		}
	}()

	opts := ScoringOptions{Since: since}

	stats, err := w.scoring.Score(ctx, brandID, sch.OwnerID, opts)
	if err != nil {
		out.errs = append(out.errs, "scoring: "+err.Error())
		return
	}
	if stats == nil {
		out.errs = append(out.errs, "scoring: no stats returned")
		return
	}

	out.metrics["positions_processed"] = stats.PositionsProcessed
	out.metrics["sentiments_processed"] = stats.SentimentsProcessed
	out.metrics["competitor_sentiments_processed"] = stats.CompetitorSentimentsProcessed
	out.metrics["citations_processed"] = stats.CitationsProcessed
	for _, msg := range stats.Errors {
		out.errs = append(out.errs, "scoring: "+msg)
	}
}

// failedWorkItems resolves the deduplicated set of work items whose
// executions failed inside the lookback window for this owner and brand.
func (w *Worker) failedWorkItems(ctx context.Context, ownerID, brandID string) ([]string, error) {
	since := w.now().Add(-w.cfg.Lookback)
	failed, err := w.executions.FailedSince(ctx, ownerID, brandID, since)
	if err != nil {
		return nil, fmt.Errorf("lookup failed executions: %w", err)
	}

	seen := make(map[string]struct{}, len(failed))
	ids := make([]string, 0, len(failed))
	for _, ex := range failed {
		if ex.WorkItemID == "" {
			continue
		}
		if _, ok := seen[ex.WorkItemID]; ok {
			continue
		}
		seen[ex.WorkItemID] = struct{}{}
		ids = append(ids, ex.WorkItemID)
	}
	return ids, nil
}
