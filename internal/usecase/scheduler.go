package usecase

import (
	"context"
	"log/slog"
	"time"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/logging"
	"ArxivDigest/internal/ports"
)

// Runner is the part of Pipeline the scheduler drives.
type Runner interface {
	Run(ctx context.Context, window domain.CrawlWindow) error
}

// ScheduleOptions picks the days each trigger covers, counted back from the
// trigger day.
type ScheduleOptions struct {
	FromDaysAgo int
	ToDaysAgo   int
	Logger      *slog.Logger
}

// Scheduler wires the cron driver with the pipeline use case.
type Scheduler struct {
	driver ports.Scheduler
	runner Runner
	opts   ScheduleOptions
}

// NewScheduler returns a helper to start/stop recurring runs.
func NewScheduler(driver ports.Scheduler, runner Runner, opts ScheduleOptions) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Scheduler{driver: driver, runner: runner, opts: opts}
}

// Start registers the pipeline with the driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.runner == nil {
		return nil
	}
	return s.driver.Start(ctx, func(trigger time.Time) {
		s.RunFor(ctx, trigger)
	})
}

// RunFor runs the pipeline once for the window ending on trigger's day.
// Failures are logged; the next trigger tries again.
func (s *Scheduler) RunFor(ctx context.Context, trigger time.Time) {
	window, err := domain.WindowForDays(domain.DayOf(trigger), s.opts.FromDaysAgo, s.opts.ToDaysAgo)
	if err != nil {
		s.opts.Logger.Error("scheduled run skipped", "trigger", trigger, "error", err)
		return
	}
	s.opts.Logger.Info("scheduled run", "trigger", trigger.Format(time.RFC3339), "window", window.String())
	if err := s.runner.Run(ctx, window); err != nil {
		s.opts.Logger.Error("scheduled run failed", "window", window.String(), "error", err)
	}
}

// Stop gracefully tears down the underlying driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.Stop(ctx)
}
