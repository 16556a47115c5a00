package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"answerpulse/internal/config"
	"answerpulse/internal/engine"
	"answerpulse/internal/logging"
	"answerpulse/internal/store/postgres"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	if err := postgres.Init(ctx, db); err != nil {
		logger.Fatal().Err(err).Msg("schema initialization failed")
	}

	schedules := postgres.NewScheduleStore(db)
	runs := postgres.NewRunStore(db)
	executions := postgres.NewExecutionStore(db)

	// The real collection and scoring services run elsewhere and are wired
	// in by the deployment. This binary falls back to logging collaborators
	// so the engine can run standalone.
	collection := &loggingCollection{log: logger}
	scoring := &loggingScoring{log: logger}

	eng := engine.New(cfg, schedules, runs, executions, collection, scoring, logger)

	logger.Info().
		Str("instance", cfg.Instance).
		Dur("scheduler_interval", cfg.SchedulerInterval).
		Dur("worker_interval", cfg.WorkerInterval).
		Dur("reconciler_interval", cfg.ReconcilerInterval).
		Msg("answerpulse engine starting")

	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("engine exited with error")
		os.Exit(1)
	}
	logger.Info().Msg("answerpulse engine shut down")
}

type loggingCollection struct {
	log zerolog.Logger
}

func (c *loggingCollection) Execute(ctx context.Context, ownerID, brandID string, opts engine.CollectionOptions) (*engine.CollectionStats, error) {
	c.log.Info().
		Str("owner_id", ownerID).
		Str("brand_id", brandID).
		Strs("collectors", opts.Collectors).
		Int("work_item_ids", len(opts.WorkItemIDs)).
		Msg("collection dispatch (no collaborator wired)")
	return &engine.CollectionStats{}, nil
}

type loggingScoring struct {
	log zerolog.Logger
}

func (s *loggingScoring) Score(ctx context.Context, brandID, ownerID string, opts engine.ScoringOptions) (*engine.ScoringStats, error) {
	s.log.Info().
		Str("owner_id", ownerID).
		Str("brand_id", brandID).
		Msg("scoring dispatch (no collaborator wired)")
	return &engine.ScoringStats{}, nil
}
