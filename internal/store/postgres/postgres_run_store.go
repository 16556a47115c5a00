package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"answerpulse/internal/models"
	"answerpulse/internal/state"
	"answerpulse/internal/store"
)

const runColumns = `id, schedule_id, owner_id, job_type, status, scheduled_for,
	started_at, finished_at, claimed_by, metrics, error_message, metadata, created_at`

type PostgresRunStore struct {
	db *sqlx.DB
}

func NewRunStore(db *sqlx.DB) *PostgresRunStore {
	return &PostgresRunStore{db: db}
}

// Enqueue inserts the pending run and advances the schedule in one
// transaction, so a crash between the two writes cannot leave the schedule
// due again with a run already queued.
func (r *PostgresRunStore) Enqueue(ctx context.Context, sch *models.Schedule, scheduledFor time.Time, nextRunAt *time.Time) (string, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin enqueue tx: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO job_runs (id, schedule_id, owner_id, job_type, status, scheduled_for)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, sch.ID, sch.OwnerID, sch.JobType, state.StatusPending, scheduledFor)
	if err != nil {
		return "", fmt.Errorf("insert run for schedule %s: %w", sch.ID, err)
	}

	if nextRunAt != nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE schedules
			SET next_run_at = $2
			WHERE id = $1
		`, sch.ID, nextRunAt)
		if err != nil {
			return "", fmt.Errorf("advance schedule %s: %w", sch.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit enqueue tx: %w", err)
	}
	return id, nil
}

func (r *PostgresRunStore) FindByID(ctx context.Context, id string) (*models.JobRun, error) {
	var run models.JobRun
	err := r.db.GetContext(ctx, &run, `
		SELECT `+runColumns+`
		FROM job_runs
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find run %s: %w", id, err)
	}
	return &run, nil
}

func (r *PostgresRunStore) FetchPending(ctx context.Context, limit int) ([]models.JobRun, error) {
	var runs []models.JobRun
	err := r.db.SelectContext(ctx, &runs, `
		SELECT `+runColumns+`
		FROM job_runs
		WHERE status = $1
		ORDER BY scheduled_for ASC
		LIMIT $2
	`, state.StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch pending runs: %w", err)
	}
	return runs, nil
}

func (r *PostgresRunStore) HasActiveRun(ctx context.Context, scheduleID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM job_runs
			WHERE schedule_id = $1 AND status IN ($2, $3)
		)
	`, scheduleID, state.StatusPending, state.StatusProcessing)
	if err != nil {
		return false, fmt.Errorf("check active run for schedule %s: %w", scheduleID, err)
	}
	return exists, nil
}

// Claim is the engine's only cross-process synchronization primitive: the
// status check and the transition happen in one conditional UPDATE. When the
// run is no longer pending the statement matches nothing and (nil, nil) is
// returned; the caller lost the race and must move on.
func (r *PostgresRunStore) Claim(ctx context.Context, runID, claimedBy string) (*models.JobRun, error) {
	var run models.JobRun
	err := r.db.GetContext(ctx, &run, `
		UPDATE job_runs
		SET status = $3,
		    started_at = now(),
		    claimed_by = $2
		WHERE id = $1 AND status = $4
		RETURNING `+runColumns+`
	`, runID, claimedBy, state.StatusProcessing, state.StatusPending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim run %s: %w", runID, err)
	}
	return &run, nil
}

func (r *PostgresRunStore) MarkCompleted(ctx context.Context, runID string, metrics, metadata models.JSONMap) error {
	if metrics == nil {
		metrics = models.JSONMap{}
	}
	if metadata == nil {
		metadata = models.JSONMap{}
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE job_runs
		SET status = $2,
		    metrics = $3,
		    metadata = metadata || $4,
		    finished_at = now()
		WHERE id = $1
	`, runID, state.StatusCompleted, metrics, metadata)
	if err != nil {
		return fmt.Errorf("mark run %s completed: %w", runID, err)
	}
	return nil
}

func (r *PostgresRunStore) MarkFailed(ctx context.Context, runID, errMsg string, metadata models.JSONMap) error {
	if metadata == nil {
		metadata = models.JSONMap{}
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE job_runs
		SET status = $2,
		    error_message = $3,
		    metadata = metadata || $4,
		    finished_at = now()
		WHERE id = $1
	`, runID, state.StatusFailed, errMsg, metadata)
	if err != nil {
		return fmt.Errorf("mark run %s failed: %w", runID, err)
	}
	return nil
}

func (r *PostgresRunStore) CountByStatus(ctx context.Context) (map[state.RunStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM job_runs
		GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("count runs by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[state.RunStatus]int)
	for rows.Next() {
		var status state.RunStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, status := range state.AllRunStatuses {
		if _, ok := counts[status]; !ok {
			counts[status] = 0
		}
	}
	return counts, nil
}

func (r *PostgresRunStore) Close() error {
	return r.db.Close()
}

var _ store.RunStore = (*PostgresRunStore)(nil)
