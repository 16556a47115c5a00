package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"answerpulse/internal/models"
	"answerpulse/internal/state"
	"answerpulse/internal/store"
)

const executionColumns = `id, owner_id, brand_id, work_item_id, status,
	error_message, metadata, updated_at, created_at`

type PostgresExecutionStore struct {
	db *sqlx.DB
}

func NewExecutionStore(db *sqlx.DB) *PostgresExecutionStore {
	return &PostgresExecutionStore{db: db}
}

func (e *PostgresExecutionStore) FailedSince(ctx context.Context, ownerID, brandID string, since time.Time) ([]models.ExecutionRecord, error) {
	var records []models.ExecutionRecord
	err := e.db.SelectContext(ctx, &records, `
		SELECT `+executionColumns+`
		FROM executions
		WHERE owner_id = $1
		  AND brand_id = $2
		  AND status = $3
		  AND updated_at >= $4
	`, ownerID, brandID, state.ExecutionFailed, since)
	if err != nil {
		return nil, fmt.Errorf("fetch failed executions: %w", err)
	}
	return records, nil
}

func (e *PostgresExecutionStore) StuckRunning(ctx context.Context, olderThan time.Time, limit int) ([]models.ExecutionRecord, error) {
	var records []models.ExecutionRecord
	err := e.db.SelectContext(ctx, &records, `
		SELECT `+executionColumns+`
		FROM executions
		WHERE status = $1
		  AND updated_at < $2
		ORDER BY updated_at ASC
		LIMIT $3
	`, state.ExecutionRunning, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch stuck executions: %w", err)
	}
	return records, nil
}

func (e *PostgresExecutionStore) HasResult(ctx context.Context, executionID string) (bool, error) {
	var exists bool
	err := e.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM results
			WHERE execution_id = $1
			  AND payload IS NOT NULL
			  AND payload::text NOT IN ('{}', '[]', 'null', '""')
		)
	`, executionID)
	if err != nil {
		return false, fmt.Errorf("check result for execution %s: %w", executionID, err)
	}
	return exists, nil
}

// MarkCompleted only matches rows still in running, which is what makes the
// reconciler sweep idempotent.
func (e *PostgresExecutionStore) MarkCompleted(ctx context.Context, executionID string) error {
	_, err := e.db.ExecContext(ctx, `
		UPDATE executions
		SET status = $2,
		    updated_at = now()
		WHERE id = $1 AND status = $3
	`, executionID, state.ExecutionCompleted, state.ExecutionRunning)
	if err != nil {
		return fmt.Errorf("mark execution %s completed: %w", executionID, err)
	}
	return nil
}

func (e *PostgresExecutionStore) MarkFailed(ctx context.Context, executionID, errMsg string, metadata models.JSONMap) error {
	if metadata == nil {
		metadata = models.JSONMap{}
	}
	_, err := e.db.ExecContext(ctx, `
		UPDATE executions
		SET status = $2,
		    error_message = $3,
		    metadata = metadata || $4,
		    updated_at = now()
		WHERE id = $1 AND status = $5
	`, executionID, state.ExecutionFailed, errMsg, metadata, state.ExecutionRunning)
	if err != nil {
		return fmt.Errorf("mark execution %s failed: %w", executionID, err)
	}
	return nil
}

var _ store.ExecutionStore = (*PostgresExecutionStore)(nil)
