// Package config holds the engine's runtime settings: poll intervals, batch
// sizes and the retry/stuck windows, with defaults that are safe for a single
// replica. Every numeric knob can be overridden from the environment.
package config

import (
	"errors"
	"time"
)

const (
	DefaultSchedulerInterval  = time.Minute
	DefaultWorkerInterval     = 30 * time.Second
	DefaultReconcilerInterval = 5 * time.Minute

	DefaultScheduleBatchSize = 50
	DefaultRunBatchSize      = 20
	DefaultStuckBatchSize    = 100

	DefaultRetryLookback  = 60 * time.Minute
	DefaultStuckThreshold = 5 * time.Minute
)

type Config struct {
	// PostgresURL is the connection string of the shared relational store.
	PostgresURL string

	// Instance identifies this process replica in claim stamps and logs.
	Instance string

	LogLevel string

	SchedulerInterval  time.Duration
	WorkerInterval     time.Duration
	ReconcilerInterval time.Duration

	// ScheduleBatchSize caps the due schedules evaluated per scheduler tick.
	ScheduleBatchSize int
	// RunBatchSize caps the pending runs claimed per worker tick.
	RunBatchSize int
	// StuckBatchSize caps the executions examined per reconciler sweep.
	StuckBatchSize int

	// RetryLookback is how far back retry job types search for failed
	// executions.
	RetryLookback time.Duration

	// StuckThreshold is how long an execution may sit in running before the
	// reconciler treats it as stalled.
	StuckThreshold time.Duration
}

// Option mutates a Config during construction and may reject bad values.
type Option func(*Config) error

// New builds a Config from defaults and the given options. Option errors are
// aggregated so a caller sees every invalid setting at once.
func New(instance string, opts ...Option) (*Config, error) {
	cfg := &Config{
		Instance:           instance,
		LogLevel:           "info",
		SchedulerInterval:  DefaultSchedulerInterval,
		WorkerInterval:     DefaultWorkerInterval,
		ReconcilerInterval: DefaultReconcilerInterval,
		ScheduleBatchSize:  DefaultScheduleBatchSize,
		RunBatchSize:       DefaultRunBatchSize,
		StuckBatchSize:     DefaultStuckBatchSize,
		RetryLookback:      DefaultRetryLookback,
		StuckThreshold:     DefaultStuckThreshold,
	}

	validationErrs := &ValidationError{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			validationErrs.Add(err)
		}
	}
	if validationErrs.HasError() {
		return nil, validationErrs
	}
	return cfg, nil
}

func WithPostgresURL(url string) Option {
	return func(c *Config) error {
		if url == "" {
			return errors.New("postgres URL is required")
		}
		c.PostgresURL = url
		return nil
	}
}

func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.LogLevel = level
		return nil
	}
}

func WithSchedulerInterval(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return errors.New("scheduler interval must be positive")
		}
		c.SchedulerInterval = d
		return nil
	}
}

func WithWorkerInterval(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return errors.New("worker interval must be positive")
		}
		c.WorkerInterval = d
		return nil
	}
}

func WithReconcilerInterval(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return errors.New("reconciler interval must be positive")
		}
		c.ReconcilerInterval = d
		return nil
	}
}

func WithScheduleBatchSize(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return errors.New("schedule batch size must be positive")
		}
		c.ScheduleBatchSize = n
		return nil
	}
}

func WithRunBatchSize(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return errors.New("run batch size must be positive")
		}
		c.RunBatchSize = n
		return nil
	}
}

func WithRetryLookback(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return errors.New("retry lookback must be positive")
		}
		c.RetryLookback = d
		return nil
	}
}

func WithStuckThreshold(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return errors.New("stuck threshold must be positive")
		}
		c.StuckThreshold = d
		return nil
	}
}
