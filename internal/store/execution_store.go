package store

import (
	"context"
	"time"

	"answerpulse/internal/models"
)

// ExecutionStore gives the engine its limited view of collaborator-owned
// execution rows: failure lookups for retry jobs and status corrections for
// stalled work.
type ExecutionStore interface {
	// FailedSince returns failed executions for the owner/brand whose
	// updated_at is at or after since.
	FailedSince(ctx context.Context, ownerID, brandID string, since time.Time) ([]models.ExecutionRecord, error)

	// StuckRunning returns up to limit executions still in running whose
	// updated_at is older than olderThan.
	StuckRunning(ctx context.Context, olderThan time.Time, limit int) ([]models.ExecutionRecord, error)

	// HasResult reports whether a non-empty result payload exists for the
	// execution.
	HasResult(ctx context.Context, executionID string) (bool, error)

	// MarkCompleted corrects a running execution whose result was written
	// but whose status never advanced.
	MarkCompleted(ctx context.Context, executionID string) error

	// MarkFailed marks a running execution failed, merging the given
	// diagnostic metadata into the row.
	MarkFailed(ctx context.Context, executionID, errMsg string, metadata models.JSONMap) error
}
