// Package cronexpr computes next fire times for standard five-field cron
// expressions in a schedule's own timezone. It performs no I/O and is safe to
// call concurrently.
package cronexpr

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Next returns the first instant strictly after ref at which the expression
// fires, evaluated on the wall clock of timezone. Evaluating in the schedule's
// location keeps the cadence stable across DST transitions: a daily 09:00
// schedule fires at 09:00 local time on both sides of a clock change.
func Next(expression, timezone string, ref time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("unsupported timezone %q: %w", timezone, err)
	}

	schedule, err := cron.ParseStandard(expression)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", expression, err)
	}

	next := schedule.Next(ref.In(loc))
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("cron expression %q never fires after %s", expression, ref)
	}
	return next, nil
}

// Validate reports whether the expression and timezone are usable without
// computing a fire time.
func Validate(expression, timezone string) error {
	if _, err := time.LoadLocation(timezone); err != nil {
		return fmt.Errorf("unsupported timezone %q: %w", timezone, err)
	}
	if _, err := cron.ParseStandard(expression); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expression, err)
	}
	return nil
}
