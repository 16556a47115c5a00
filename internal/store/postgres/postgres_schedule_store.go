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
	"answerpulse/internal/store"
)

const scheduleColumns = `id, owner_id, job_type, cron_expression, timezone, is_active,
	next_run_at, last_run_at, parameters, created_at`

type PostgresScheduleStore struct {
	db *sqlx.DB
}

func NewScheduleStore(db *sqlx.DB) *PostgresScheduleStore {
	return &PostgresScheduleStore{db: db}
}

func (s *PostgresScheduleStore) Create(ctx context.Context, sch *models.Schedule) (string, error) {
	id := sch.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schedules (id, owner_id, job_type, cron_expression, timezone, is_active, next_run_at, parameters)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, sch.OwnerID, sch.JobType, sch.CronExpression, sch.Timezone, sch.IsActive, sch.NextRunAt, sch.Parameters)
	if err != nil {
		return "", fmt.Errorf("insert schedule: %w", err)
	}
	return id, nil
}

func (s *PostgresScheduleStore) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	var sch models.Schedule
	err := s.db.GetContext(ctx, &sch, `
		SELECT `+scheduleColumns+`
		FROM schedules
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find schedule %s: %w", id, err)
	}
	return &sch, nil
}

func (s *PostgresScheduleStore) FetchDue(ctx context.Context, now time.Time, limit int) ([]models.Schedule, error) {
	var schedules []models.Schedule
	err := s.db.SelectContext(ctx, &schedules, `
		SELECT `+scheduleColumns+`
		FROM schedules
		WHERE is_active
		  AND (next_run_at IS NULL OR next_run_at <= $1)
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch due schedules: %w", err)
	}
	return schedules, nil
}

func (s *PostgresScheduleStore) SetLastRunAt(ctx context.Context, id string, lastRunAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE schedules
		SET last_run_at = $2
		WHERE id = $1
	`, id, lastRunAt)
	return err
}

func (s *PostgresScheduleStore) Activate(ctx context.Context, id string) error {
	return s.setActive(ctx, id, true)
}

func (s *PostgresScheduleStore) Deactivate(ctx context.Context, id string) error {
	return s.setActive(ctx, id, false)
}

func (s *PostgresScheduleStore) setActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE schedules
		SET is_active = $2
		WHERE id = $1
	`, id, active)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *PostgresScheduleStore) Close() error {
	return s.db.Close()
}

var _ store.ScheduleStore = (*PostgresScheduleStore)(nil)
