package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"answerpulse/internal/cronexpr"
	"answerpulse/internal/models"
	"answerpulse/internal/store"
)

// Scheduler turns due schedules into pending runs. It is safe to run as
// several replicas: the busy flag only stops a single process from
// overlapping its own ticks, while cross-replica duplicate enqueues are
// rejected by the run store's uniqueness guarantees.
type Scheduler struct {
	schedules store.ScheduleStore
	runs      store.RunStore
	interval  time.Duration
	batchSize int
	busy      atomic.Bool
	log       zerolog.Logger
	now       func() time.Time
}

func NewScheduler(schedules store.ScheduleStore, runs store.RunStore, interval time.Duration, batchSize int, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		schedules: schedules,
		runs:      runs,
		interval:  interval,
		batchSize: batchSize,
		log:       log.With().Str("component", "scheduler").Logger(),
		now:       time.Now,
	}
}

// Run polls until the context is cancelled. Per-tick failures are logged and
// never end the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick evaluates one batch of due schedules. An overlapping tick is skipped
// entirely rather than queued.
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.busy.CompareAndSwap(false, true) {
		s.log.Debug().Msg("previous tick still running, skipping")
		return
	}
	defer s.busy.Store(false)

	now := s.now()
	due, err := s.schedules.FetchDue(ctx, now, s.batchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to fetch due schedules")
		return
	}

	for i := range due {
		if err := s.enqueue(ctx, &due[i], now); err != nil {
			// One failing schedule never aborts the batch.
			s.log.Error().
				Err(err).
				Str("schedule_id", due[i].ID).
				Msg("failed to enqueue schedule")
		}
	}
}

func (s *Scheduler) enqueue(ctx context.Context, sch *models.Schedule, now time.Time) error {
	active, err := s.runs.HasActiveRun(ctx, sch.ID)
	if err != nil {
		return fmt.Errorf("check active run: %w", err)
	}
	if active {
		// The worker has not caught up yet; enqueueing again would only
		// pile runs up behind it.
		s.log.Debug().
			Str("schedule_id", sch.ID).
			Msg("schedule already has a run in flight, skipping")
		return nil
	}

	// A schedule that has fired before advances from its previous scheduled
	// time, not from now, so missed ticks do not compress the cadence.
	scheduledFor := now
	if sch.NextRunAt != nil {
		scheduledFor = *sch.NextRunAt
	}

	var nextRunAt *time.Time
	next, err := cronexpr.Next(sch.CronExpression, sch.Timezone, scheduledFor)
	if err != nil {
		// Fail open: keep enqueueing from the stale reference instead of
		// silently freezing or silently advancing the schedule.
		s.log.Error().
			Err(err).
			Str("schedule_id", sch.ID).
			Str("cron", sch.CronExpression).
			Msg("cron evaluation failed, leaving next_run_at unchanged")
	} else {
		nextRunAt = &next
	}

	runID, err := s.runs.Enqueue(ctx, sch, scheduledFor, nextRunAt)
	if err != nil {
		return fmt.Errorf("enqueue run: %w", err)
	}

	s.log.Info().
		Str("schedule_id", sch.ID).
		Str("run_id", runID).
		Str("job_type", sch.JobType.String()).
		Time("scheduled_for", scheduledFor).
		Msg("run enqueued")
	return nil
}
