package models

import (
	"time"

	"answerpulse/internal/state"
)

// JobRun is one dispatch instance of a schedule. Rows are append-only: they
// act as the audit trail of everything the engine ever attempted.
type JobRun struct {
	ID           string          `db:"id"`
	ScheduleID   string          `db:"schedule_id"`
	OwnerID      string          `db:"owner_id"`
	JobType      state.JobType   `db:"job_type"`
	Status       state.RunStatus `db:"status"`
	ScheduledFor time.Time       `db:"scheduled_for"`
	StartedAt    *time.Time      `db:"started_at"`
	FinishedAt   *time.Time      `db:"finished_at"`
	ClaimedBy    *string         `db:"claimed_by"`
	Metrics      JSONMap         `db:"metrics"`
	ErrorMessage *string         `db:"error_message"`
	Metadata     JSONMap         `db:"metadata"`
	CreatedAt    time.Time       `db:"created_at"`
}
