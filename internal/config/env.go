package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Environment variables understood by FromEnv. Interval and window values are
// plain integers (seconds for intervals, minutes for the retry/stuck
// windows), matching how the deployment environment has always expressed
// them.
const (
	EnvPostgresURL = "ANSWERPULSE_POSTGRES_URL"
	EnvInstance    = "ANSWERPULSE_INSTANCE"
	EnvLogLevel    = "ANSWERPULSE_LOG_LEVEL"

	EnvSchedulerIntervalSeconds  = "ANSWERPULSE_SCHEDULER_INTERVAL_SECONDS"
	EnvWorkerIntervalSeconds     = "ANSWERPULSE_WORKER_INTERVAL_SECONDS"
	EnvReconcilerIntervalSeconds = "ANSWERPULSE_RECONCILER_INTERVAL_SECONDS"

	EnvScheduleBatchSize = "ANSWERPULSE_SCHEDULE_BATCH_SIZE"
	EnvRunBatchSize      = "ANSWERPULSE_RUN_BATCH_SIZE"

	EnvRetryLookbackMinutes  = "ANSWERPULSE_RETRY_LOOKBACK_MINUTES"
	EnvStuckThresholdMinutes = "ANSWERPULSE_STUCK_THRESHOLD_MINUTES"
)

// FromEnv builds a Config from the environment, falling back to defaults for
// anything unset. The instance name defaults to the hostname plus a random
// suffix so two replicas on one machine stay distinguishable.
func FromEnv() (*Config, error) {
	instance := os.Getenv(EnvInstance)
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			host = "engine"
		}
		instance = host + "-" + uuid.NewString()[:8]
	}

	opts := []Option{
		WithPostgresURL(os.Getenv(EnvPostgresURL)),
	}

	if level := os.Getenv(EnvLogLevel); level != "" {
		opts = append(opts, WithLogLevel(level))
	}

	durations := []struct {
		env  string
		unit time.Duration
		opt  func(time.Duration) Option
	}{
		{EnvSchedulerIntervalSeconds, time.Second, WithSchedulerInterval},
		{EnvWorkerIntervalSeconds, time.Second, WithWorkerInterval},
		{EnvReconcilerIntervalSeconds, time.Second, WithReconcilerInterval},
		{EnvRetryLookbackMinutes, time.Minute, WithRetryLookback},
		{EnvStuckThresholdMinutes, time.Minute, WithStuckThreshold},
	}
	for _, d := range durations {
		raw := os.Getenv(d.env)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid integer %q", d.env, raw)
		}
		opts = append(opts, d.opt(time.Duration(n)*d.unit))
	}

	sizes := []struct {
		env string
		opt func(int) Option
	}{
		{EnvScheduleBatchSize, WithScheduleBatchSize},
		{EnvRunBatchSize, WithRunBatchSize},
	}
	for _, s := range sizes {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid integer %q", s.env, raw)
		}
		opts = append(opts, s.opt(n))
	}

	return New(instance, opts...)
}
