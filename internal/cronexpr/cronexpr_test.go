package cronexpr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext_EveryFiveMinutes(t *testing.T) {
	ref := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	next, err := Next("*/5 * * * *", "UTC", ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC), next.UTC())
}

func TestNext_StrictlyAfterReference(t *testing.T) {
	// A reference that lands exactly on a fire time must advance a full step,
	// so missed ticks never compress.
	ref := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	next, err := Next("0 * * * *", "UTC", ref)
	require.NoError(t, err)
	assert.True(t, next.After(ref), "next fire must be strictly after the reference")
	assert.Equal(t, time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC), next.UTC())
}

func TestNext_WallClockStableAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// DST began 2024-03-10 in America/New_York. A daily 09:00 schedule must
	// still fire at 09:00 local time on the other side of the transition.
	ref := time.Date(2024, 3, 9, 9, 0, 0, 0, loc)

	next, err := Next("0 9 * * *", "America/New_York", ref)
	require.NoError(t, err)

	local := next.In(loc)
	assert.Equal(t, 9, local.Hour())
	assert.Equal(t, 10, local.Day())
	// Wall clocks jumped forward one hour, so only 23 real hours elapsed.
	assert.Equal(t, 23*time.Hour, next.Sub(ref))
}

func TestNext_TimezoneApplied(t *testing.T) {
	// Midnight Tokyo time is 15:00 UTC the previous day.
	ref := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	next, err := Next("0 0 * * *", "Asia/Tokyo", ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC), next.UTC())
}

func TestNext_MalformedExpression(t *testing.T) {
	_, err := Next("not a cron", "UTC", time.Now())
	assert.Error(t, err)

	_, err = Next("61 * * * *", "UTC", time.Now())
	assert.Error(t, err)
}

func TestNext_UnsupportedTimezone(t *testing.T) {
	_, err := Next("* * * * *", "Mars/Olympus_Mons", time.Now())
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("*/5 * * * *", "UTC"))
	assert.Error(t, Validate("bad", "UTC"))
	assert.Error(t, Validate("* * * * *", "Nowhere/Nowhere"))
}
