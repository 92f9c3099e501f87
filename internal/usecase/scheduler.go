package usecase

import (
	"context"
	"log/slog"
	"time"

	"NewsletterAgent/internal/domain"
	"NewsletterAgent/internal/ports"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, state domain.PipelineState) (domain.PipelineState, error)
}

// Scheduler wires the weekly driver with the orchestrator.
type Scheduler struct {
	driver ports.Scheduler
	runner Runner
	newID  func() string
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring runs. newID supplies
// the run identifier for every trigger.
func NewScheduler(driver ports.Scheduler, runner Runner, newID func() string, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, runner: runner, newID: newID, logger: orDiscard(logger)}
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.runner == nil {
		return nil
	}

	job := func(trigger time.Time) {
		runID := s.newID()
		s.logger.Info("scheduled run triggered", "run_id", runID, "trigger", trigger)
		if _, err := s.runner.Run(ctx, domain.NewState(runID)); err != nil {
			s.logger.Error("scheduled run failed", "run_id", runID, "error", err)
		}
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
