package store

import (
	"context"
	"time"

	"answerpulse/internal/models"
	"answerpulse/internal/state"
)

type RunStore interface {
	// Enqueue inserts a pending run for the schedule and, when nextRunAt is
	// non-nil, advances the schedule's next_run_at in the same transaction.
	// A nil nextRunAt leaves the schedule untouched (the fail-open path when
	// the cron expression could not be evaluated). Returns the new run id.
	Enqueue(ctx context.Context, sch *models.Schedule, scheduledFor time.Time, nextRunAt *time.Time) (string, error)

	// FindByID returns ErrNotFound when the run does not exist.
	FindByID(ctx context.Context, id string) (*models.JobRun, error)

	// FetchPending returns up to limit pending runs ordered by scheduled_for
	// ascending.
	FetchPending(ctx context.Context, limit int) ([]models.JobRun, error)

	// HasActiveRun reports whether the schedule already has a run in pending
	// or processing.
	HasActiveRun(ctx context.Context, scheduleID string) (bool, error)

	// Claim atomically moves the run from pending to processing, stamping
	// started_at and claimed_by, and returns the updated row. It returns
	// (nil, nil) when the run was no longer pending, i.e. another worker won
	// the race. The check and the write are a single storage round trip.
	Claim(ctx context.Context, runID, claimedBy string) (*models.JobRun, error)

	// MarkCompleted finishes the run with its merged metrics and metadata and
	// stamps finished_at.
	MarkCompleted(ctx context.Context, runID string, metrics, metadata models.JSONMap) error

	// MarkFailed finishes the run with an error message and stamps
	// finished_at.
	MarkFailed(ctx context.Context, runID, errMsg string, metadata models.JSONMap) error

	// CountByStatus returns run counts grouped by status, with zero entries
	// for statuses that have no rows.
	CountByStatus(ctx context.Context) (map[state.RunStatus]int, error)

	Close() error
}
