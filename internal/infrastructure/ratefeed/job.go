package ratefeed

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/bistroledger/internal/usecase"
)

// Refresher applies a fresh quote to the stored currencies.
type Refresher interface {
	RefreshRates(ctx context.Context) (*usecase.RefreshResult, error)
}

// Job refreshes exchange rates on a fixed interval.
type Job struct {
	refresher Refresher
	interval  time.Duration
	logger    zerolog.Logger
}

// NewJob creates a new Job.
func NewJob(refresher Refresher, interval time.Duration, logger zerolog.Logger) *Job {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Job{
		refresher: refresher,
		interval:  interval,
		logger:    logger.With().Str("component", "rate_refresh").Logger(),
	}
}

// Start refreshes once immediately and then on every tick until ctx ends.
func (j *Job) Start(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *Job) runOnce(ctx context.Context) {
	res, err := j.refresher.RefreshRates(ctx)
	if err != nil {
		j.logger.Error().Err(err).Msg("rate refresh failed")
		return
	}

	event := j.logger.Info()
	if len(res.Failed) > 0 {
		event = j.logger.Warn().Interface("failed", res.Failed)
	}
	event.
		Str("base", res.Base).
		Bool("cached", res.Cached).
		Strs("updated", res.Updated).
		Int("skipped", len(res.Skipped)).
		Msg("rates refreshed")
}
