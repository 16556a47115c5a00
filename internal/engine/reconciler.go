package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"answerpulse/internal/models"
	"answerpulse/internal/store"
)

// ReasonStuckTimeout is the machine-readable code written by the reconciler
// so downstream consumers can tell timed-out executions apart from ones that
// genuinely failed.
const ReasonStuckTimeout = "stuck_timeout"

// Reconciler corrects executions that a collaborator left in running: the
// crash window between writing a result and advancing the status. It is a
// backstop, not the primary mechanism. Sweeping the same state twice changes
// nothing.
type Reconciler struct {
	executions store.ExecutionStore
	interval   time.Duration
	threshold  time.Duration
	batchSize  int
	busy       atomic.Bool
	log        zerolog.Logger
	now        func() time.Time
}

func NewReconciler(executions store.ExecutionStore, interval, threshold time.Duration, batchSize int, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		executions: executions,
		interval:   interval,
		threshold:  threshold,
		batchSize:  batchSize,
		log:        log.With().Str("component", "reconciler").Logger(),
		now:        time.Now,
	}
}

func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("reconciler stopped")
			return ctx.Err()
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep examines one batch of executions stuck in running past the threshold.
func (r *Reconciler) Sweep(ctx context.Context) {
	if !r.busy.CompareAndSwap(false, true) {
		r.log.Debug().Msg("previous sweep still running, skipping")
		return
	}
	defer r.busy.Store(false)

	cutoff := r.now().Add(-r.threshold)
	stuck, err := r.executions.StuckRunning(ctx, cutoff, r.batchSize)
	if err != nil {
		r.log.Error().Err(err).Msg("failed to fetch stuck executions")
		return
	}

	for i := range stuck {
		if err := r.reconcile(ctx, &stuck[i]); err != nil {
			r.log.Error().
				Err(err).
				Str("execution_id", stuck[i].ID).
				Msg("failed to reconcile execution")
		}
	}
}

func (r *Reconciler) reconcile(ctx context.Context, ex *models.ExecutionRecord) error {
	hasResult, err := r.executions.HasResult(ctx, ex.ID)
	if err != nil {
		return fmt.Errorf("check result: %w", err)
	}

	if hasResult {
		// The work finished; only the status write was lost.
		if err := r.executions.MarkCompleted(ctx, ex.ID); err != nil {
			return err
		}
		r.log.Info().
			Str("execution_id", ex.ID).
			Msg("execution had a result but never advanced, marked completed")
		return nil
	}

	stuckFor := r.now().Sub(ex.UpdatedAt)
	metadata := models.JSONMap{
		"reason_code":            ReasonStuckTimeout,
		"stuck_duration_minutes": int(stuckFor.Minutes()),
	}
	msg := fmt.Sprintf("execution stuck in running for %s", stuckFor.Round(time.Second))
	if err := r.executions.MarkFailed(ctx, ex.ID, msg, metadata); err != nil {
		return err
	}

	r.log.Warn().
		Str("execution_id", ex.ID).
		Dur("stuck_for", stuckFor).
		Msg("execution stuck without a result, marked failed")
	return nil
}
