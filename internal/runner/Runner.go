/*

This file contains the run orchestration: the daily loop that computes a
fresh protocol CLF result and persists it, and the backfill mode that
replays a range of historical dates.

A run that fails leaves earlier persisted runs untouched. The loop keeps
going on the next tick; the backfill moves on to the next date.

*/

package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/analyzer"
	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/logger"
	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/state"
	"github.com/Risk-DAO/dex-history-fetcher-sub001/internal/types"
)

// Runner drives the CLF engine on a schedule and persists each finished
// run.
type Runner struct {
	engine  *analyzer.Engine
	markets []types.Market
	logger  zerolog.Logger

	runCount int
}

// Config holds the configuration for creating a new Runner instance.
type Config struct {
	Engine  *analyzer.Engine
	Markets []types.Market
}

// NewRunner creates a Runner with dependency injection.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if len(cfg.Markets) == 0 {
		return nil, fmt.Errorf("at least one market must be configured")
	}

	return &Runner{
		engine:  cfg.Engine,
		markets: cfg.Markets,
		logger:  logger.GetForComponent("clf_runner"),
	}, nil
}

// RunLoop starts the main scheduling loop with the specified interval.
// The first run starts immediately; later runs fire on the ticker.
func (r *Runner) RunLoop(ctx context.Context, interval time.Duration) {
	r.logger.Info().
		Dur("interval", interval).
		Int("markets", len(r.markets)).
		Msg("Starting CLF run loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.runCount++
	r.logger.Info().Int("run", r.runCount).Msg("Initiating CLF run")
	r.RunOnce(ctx, time.Time{})
	r.logger.Info().Int("run", r.runCount).Msg("CLF run completed")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("CLF run loop stopped due to context cancellation")
			return
		case <-ticker.C:
			r.runCount++
			r.logger.Info().Int("run", r.runCount).Msg("Initiating CLF run")
			r.RunOnce(ctx, time.Time{})
			r.logger.Info().Int("run", r.runCount).Msg("CLF run completed")
		}
	}
}

// RunOnce executes one complete CLF computation and persists the result.
// A zero asOf computes against the current chain head; a non-zero asOf
// replays that historical date.
func (r *Runner) RunOnce(ctx context.Context, asOf time.Time) {
	runStartTime := time.Now()

	// Unique run ID for tracing logs across the entire run.
	runID := uuid.New().String()
	runLogger := r.logger.With().Str("run_id", runID).Logger()

	runDate := asOf
	if runDate.IsZero() {
		runDate = runStartTime.UTC()
	}

	runLogger.Info().
		Str("runDate", runDate.Format("2006-01-02")).
		Msg("--- Starting CLF Run ---")

	result, err := r.engine.ComputeProtocolResult(ctx, r.markets, asOf)
	if err != nil {
		runLogger.Error().Err(err).Msg("Run aborted: failed to compute protocol result.")
		return
	}

	endBlock := r.resolveEndBlock(ctx, runLogger, asOf)

	snapshotID, err := state.SaveRun(runDate, endBlock, result)
	if err != nil {
		runLogger.Error().Err(err).Msg("Failed to save CLF run to database")
	} else {
		runLogger.Info().Int64("run_db_id", snapshotID).Msg("CLF run saved successfully")
	}

	runLogger.Info().
		Bool("protocolScoreDefined", result.WeightedCLF != nil).
		Int("pools", len(result.Results)).
		Str("runDuration", time.Since(runStartTime).String()).
		Msg("--- CLF Run Completed ---")
}

// Backfill replays one run per day over [start, end] inclusive, anchored
// at midnight UTC. A failed date is logged and skipped.
func (r *Runner) Backfill(ctx context.Context, start, end time.Time) error {
	start = midnightUTC(start)
	end = midnightUTC(end)
	if end.Before(start) {
		return fmt.Errorf("backfill end %s before start %s", end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	days := int(end.Sub(start).Hours()/24) + 1
	r.logger.Info().
		Str("start", start.Format("2006-01-02")).
		Str("end", end.Format("2006-01-02")).
		Int("days", days).
		Msg("Starting CLF backfill")

	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		if ctx.Err() != nil {
			r.logger.Info().Msg("CLF backfill stopped due to context cancellation")
			return ctx.Err()
		}
		r.RunOnce(ctx, date)
	}

	r.logger.Info().Msg("CLF backfill complete")
	return nil
}

// resolveEndBlock re-derives the end block of the finished run for the
// persisted record. Failures degrade to 0 rather than dropping the run.
func (r *Runner) resolveEndBlock(ctx context.Context, runLogger zerolog.Logger, asOf time.Time) uint64 {
	endBlock, err := r.engine.EndBlockFor(ctx, asOf)
	if err != nil {
		runLogger.Warn().Err(err).Msg("Failed to resolve end block for run record, storing 0")
		return 0
	}
	return endBlock
}

func midnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
