/**
 * @description
 * Cron scheduler setup for scheduled jobs.
 */
package app

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/idorocodes/paxify-backend/internal/config"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *zap.Logger
	config config.Config
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(jobs *Jobs, logger *zap.Logger, cfg config.Config) *Scheduler {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:   c,
		jobs:   jobs,
		logger: logger,
		config: cfg,
	}
}

// Start registers the jobs and starts the cron scheduler. It returns the
// number of jobs scheduled.
func (s *Scheduler) Start() int {
	entries := []struct {
		name     string
		schedule string
		run      func()
	}{
		{"stale payment reconciliation", s.config.ReconcileJobSchedule, s.jobs.ReconcileStalePayments},
		{"receipt backfill", s.config.ReceiptBackfillSchedule, s.jobs.BackfillReceipts},
		{"overdue assignments", s.config.OverdueJobSchedule, s.jobs.MarkOverdueAssignments},
		{"token purge", s.config.TokenPurgeSchedule, s.jobs.PurgeTokens},
	}

	scheduled := 0
	for _, entry := range entries {
		if entry.schedule == "" {
			s.logger.Info("job disabled", zap.String("job", entry.name))
			continue
		}
		if _, err := s.cron.AddFunc(entry.schedule, entry.run); err != nil {
			s.logger.Error("failed to schedule job", zap.String("job", entry.name), zap.Error(err))
			continue
		}
		s.logger.Info("scheduled job", zap.String("job", entry.name), zap.String("schedule", entry.schedule))
		scheduled++
	}

	s.cron.Start()
	return scheduled
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
