/**
 * @description
 * Cron scheduler setup for the accrual job.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/NikolaiGurianov/BankingApp/internal/config"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	job    *AccrualJob
	logger *slog.Logger
	config config.Config
}

// NewScheduler creates a new scheduler instance. SkipIfStillRunning keeps the
// accrual pass single-flight: a new run never starts while one is in progress.
func NewScheduler(job *AccrualJob, logger *slog.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger),
		cron.Recover(cronLogger),
	))

	return &Scheduler{
		cron:   c,
		job:    job,
		logger: logger,
		config: cfg,
	}
}

// Start registers the accrual job and starts the cron scheduler.
func (s *Scheduler) Start() {
	if _, err := s.cron.AddFunc(s.config.AccrualSchedule, s.job.Run); err != nil {
		s.logger.Error("failed to schedule accrual job", "error", err)
	} else {
		s.logger.Info("scheduled accrual job", "schedule", s.config.AccrualSchedule)
	}

	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
