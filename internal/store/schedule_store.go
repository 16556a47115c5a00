package store

import (
	"context"
	"time"

	"answerpulse/internal/models"
)

type ScheduleStore interface {
	// Create inserts a new schedule and returns its id.
	Create(ctx context.Context, sch *models.Schedule) (string, error)

	// FindByID returns ErrNotFound when the schedule does not exist.
	FindByID(ctx context.Context, id string) (*models.Schedule, error)

	// FetchDue returns up to limit active schedules whose next_run_at is null
	// or not after now. Order is unspecified; the batch is best-effort.
	FetchDue(ctx context.Context, now time.Time, limit int) ([]models.Schedule, error)

	// SetLastRunAt records the completion instant of the latest run.
	SetLastRunAt(ctx context.Context, id string, lastRunAt time.Time) error

	Activate(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error

	Close() error
}
