package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaLockID is the advisory lock key guarding schema initialization so
// that concurrent replicas do not race CREATE statements.
const schemaLockID = 874219

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS schedules (
		id              uuid PRIMARY KEY,
		owner_id        text NOT NULL,
		job_type        text NOT NULL,
		cron_expression text NOT NULL,
		timezone        text NOT NULL DEFAULT 'UTC',
		is_active       boolean NOT NULL DEFAULT true,
		next_run_at     timestamptz,
		last_run_at     timestamptz,
		parameters      jsonb NOT NULL DEFAULT '{}',
		created_at      timestamptz NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS schedules_due_idx
		ON schedules (next_run_at)
		WHERE is_active`,

	`CREATE TABLE IF NOT EXISTS job_runs (
		id            uuid PRIMARY KEY,
		schedule_id   uuid NOT NULL REFERENCES schedules (id),
		owner_id      text NOT NULL,
		job_type      text NOT NULL,
		status        text NOT NULL DEFAULT 'pending',
		scheduled_for timestamptz NOT NULL,
		started_at    timestamptz,
		finished_at   timestamptz,
		claimed_by    text,
		metrics       jsonb NOT NULL DEFAULT '{}',
		error_message text,
		metadata      jsonb NOT NULL DEFAULT '{}',
		created_at    timestamptz NOT NULL DEFAULT now()
	)`,

	// At most one non-terminal run per schedule. The scheduler also
	// pre-checks, but this index is what actually holds under races.
	`CREATE UNIQUE INDEX IF NOT EXISTS job_runs_one_active_per_schedule_idx
		ON job_runs (schedule_id)
		WHERE status IN ('pending', 'processing')`,

	// A retried enqueue for the same tick is rejected instead of duplicated.
	`CREATE UNIQUE INDEX IF NOT EXISTS job_runs_schedule_tick_idx
		ON job_runs (schedule_id, scheduled_for)`,

	`CREATE INDEX IF NOT EXISTS job_runs_claimable_idx
		ON job_runs (scheduled_for)
		WHERE status = 'pending'`,

	`CREATE TABLE IF NOT EXISTS executions (
		id            uuid PRIMARY KEY,
		owner_id      text NOT NULL,
		brand_id      text NOT NULL,
		work_item_id  text NOT NULL DEFAULT '',
		status        text NOT NULL DEFAULT 'running',
		error_message text,
		metadata      jsonb NOT NULL DEFAULT '{}',
		updated_at    timestamptz NOT NULL DEFAULT now(),
		created_at    timestamptz NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS executions_status_updated_idx
		ON executions (status, updated_at)`,

	`CREATE INDEX IF NOT EXISTS executions_owner_brand_idx
		ON executions (owner_id, brand_id, status)`,

	`CREATE TABLE IF NOT EXISTS results (
		id           uuid PRIMARY KEY,
		execution_id uuid NOT NULL REFERENCES executions (id),
		payload      jsonb,
		created_at   timestamptz NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS results_execution_idx
		ON results (execution_id)`,
}

// Init creates the engine's tables and indexes if they do not exist. It takes
// a session advisory lock first so that only one replica runs the statements
// at a time.
func Init(ctx context.Context, db *sqlx.DB) error {
	conn, err := db.Connx(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	defer conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, schemaLockID)

	for _, stmt := range schemaStatements {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
