package models

import (
	"time"

	"answerpulse/internal/state"
)

// Schedule is the durable description of a recurring job: whose data to work
// on, how often, and which collaborators to dispatch to. Schedules are created
// by onboarding/admin flows; the engine only advances next_run_at and
// last_run_at.
type Schedule struct {
	ID             string        `db:"id"`
	OwnerID        string        `db:"owner_id"`
	JobType        state.JobType `db:"job_type"`
	CronExpression string        `db:"cron_expression"`
	Timezone       string        `db:"timezone"`
	IsActive       bool          `db:"is_active"`
	NextRunAt      *time.Time    `db:"next_run_at"`
	LastRunAt      *time.Time    `db:"last_run_at"`
	Parameters     JSONMap       `db:"parameters"`
	CreatedAt      time.Time     `db:"created_at"`
}

// BrandID returns the brand this schedule targets, read from parameters.
// Collaborators are scoped per owner and brand.
func (s *Schedule) BrandID() string {
	return s.Parameters.String("brandId")
}
