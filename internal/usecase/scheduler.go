package usecase

import (
	"context"
	"log/slog"
	"time"

	"SmartphoneRanker/internal/ports"
)

// Scheduler wires the ticker driver with the ranking service refresh job.
type Scheduler struct {
	driver  ports.Scheduler
	service *RankingService
	logger  *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring refreshes.
func NewScheduler(driver ports.Scheduler, service *RankingService, log *slog.Logger) *Scheduler {
	s := &Scheduler{driver: driver, service: service}
	if log != nil {
		s.logger = log.With("component", "scheduler")
	}
	return s
}

// Start registers the refresh job with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.service == nil {
		return nil
	}

	job := func(trigger time.Time) {
		products, err := s.service.RefreshJob(ctx)
		if s.logger == nil {
			return
		}
		if err != nil {
			s.logger.Warn("scheduled refresh failed", "trigger", trigger, "error", err)
			return
		}
		s.logger.Info("scheduled refresh finished", "trigger", trigger, "products", len(products))
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
