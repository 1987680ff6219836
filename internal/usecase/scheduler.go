package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ArticleWatch/internal/domain"
	"ArticleWatch/internal/logging"
	"ArticleWatch/internal/ports"
)

// Scheduler wires the periodic driver with discovery runs and retention sweeps.
type Scheduler struct {
	driver    ports.Scheduler
	discovery *Discovery
	retention *Retention
	logger    *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, discovery *Discovery, retention *Retention, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, discovery: discovery, retention: retention, logger: logging.OrDiscard(logger)}
}

// Start registers the periodic job with the driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Start(ctx, func(trigger time.Time) { s.Tick(ctx, trigger) })
}

// Tick runs one synchronous discovery run and one retention sweep.
func (s *Scheduler) Tick(ctx context.Context, trigger time.Time) {
	log := s.logger.With("trigger", trigger.Format(time.RFC3339))

	if s.discovery != nil {
		run, err := s.discovery.Trigger(ctx, true)
		switch {
		case errors.Is(err, domain.ErrRunInProgress):
			log.Info("scheduled run skipped, another run is in flight")
		case err != nil:
			log.Error("scheduled run not started", "error", err)
		default:
			log.Info("scheduled run finished", "run_id", run.ID, "status", string(run.Status), "items", run.ItemsCount)
		}
	}

	if s.retention != nil {
		if _, err := s.retention.Sweep(ctx); err != nil {
			log.Error("retention sweep failed", "error", err)
		}
	}
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
