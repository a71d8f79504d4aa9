/**
 * @description
 * Scheduled job implementations run by the scheduler binary.
 *
 * @notes
 * - Every job is bounded by jobTimeout and only logs failures; the next tick retries.
 */
package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/idorocodes/paxify-backend/internal/config"
	"github.com/idorocodes/paxify-backend/internal/store"
)

const (
	jobTimeout             = 5 * time.Minute
	defaultStalePaymentAge = 30 * time.Minute
	usedTokenRetention     = 7 * 24 * time.Hour
)

// JobsRepository defines database operations needed by the jobs.
type JobsRepository interface {
	MarkOverdueAssignments(ctx context.Context, now time.Time) (int64, error)
	PurgeTokens(ctx context.Context, kind store.TokenKind, before time.Time) (int64, error)
}

// PaymentReconciler is the part of the payment engine the jobs drive.
type PaymentReconciler interface {
	ReconcileStalePayments(ctx context.Context, olderThan time.Duration) (int, error)
	BackfillReceipts(ctx context.Context) (int, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	repo     JobsRepository
	payments PaymentReconciler
	logger   *zap.Logger
	config   config.Config
	now      func() time.Time
}

// NewJobs creates a new Jobs runner.
func NewJobs(repo JobsRepository, payments PaymentReconciler, logger *zap.Logger, cfg config.Config) *Jobs {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Jobs{
		repo:     repo,
		payments: payments,
		logger:   logger.With(zap.String("component", "jobs")),
		config:   cfg,
		now:      time.Now,
	}
}

func (j *Jobs) stalePaymentAge() time.Duration {
	if j.config.StalePaymentMinutes > 0 {
		return time.Duration(j.config.StalePaymentMinutes) * time.Minute
	}
	return defaultStalePaymentAge
}

// ReconcileStalePayments re-verifies pending payments that never heard back
// from the gateway.
func (j *Jobs) ReconcileStalePayments() {
	j.logger.Info("starting stale payment reconciliation job")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	resolved, err := j.payments.ReconcileStalePayments(ctx, j.stalePaymentAge())
	if err != nil {
		j.logger.Error("stale payment reconciliation failed", zap.Error(err))
		return
	}
	j.logger.Info("stale payment reconciliation job finished", zap.Int("resolved", resolved))
}

// BackfillReceipts generates receipts that failed at completion time.
func (j *Jobs) BackfillReceipts() {
	j.logger.Info("starting receipt backfill job")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	stored, err := j.payments.BackfillReceipts(ctx)
	if err != nil {
		j.logger.Error("receipt backfill failed", zap.Error(err))
		return
	}
	j.logger.Info("receipt backfill job finished", zap.Int("stored", stored))
}

// MarkOverdueAssignments flips pending assignments past their due date to overdue.
func (j *Jobs) MarkOverdueAssignments() {
	j.logger.Info("starting overdue assignment job")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	updated, err := j.repo.MarkOverdueAssignments(ctx, j.now().UTC())
	if err != nil {
		j.logger.Error("failed to mark overdue assignments", zap.Error(err))
		return
	}
	j.logger.Info("overdue assignment job finished", zap.Int64("updated", updated))
}

// PurgeTokens removes expired and long-used one-time tokens.
func (j *Jobs) PurgeTokens() {
	j.logger.Info("starting token purge job")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	cutoff := j.now().Add(-usedTokenRetention).UTC()
	for _, kind := range []store.TokenKind{store.TokenPasswordReset, store.TokenEmailVerification} {
		purged, err := j.repo.PurgeTokens(ctx, kind, cutoff)
		if err != nil {
			j.logger.Error("failed to purge tokens", zap.String("kind", string(kind)), zap.Error(err))
			continue
		}
		j.logger.Info("tokens purged", zap.String("kind", string(kind)), zap.Int64("count", purged))
	}
}
