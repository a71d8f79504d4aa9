package app

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idorocodes/paxify-backend/internal/domain"
	"github.com/idorocodes/paxify-backend/internal/store"
)

const recentPaymentsLimit = 5

// StudentService composes the student dashboard.
type StudentService struct {
	repo   store.Repository
	logger *zap.Logger
}

func NewStudentService(repo store.Repository, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, logger: logger.With(zap.String("component", "student"))}
}

// Dashboard returns the student's totals, open obligations and recent payments.
func (s *StudentService) Dashboard(ctx context.Context, userID uuid.UUID) (*domain.StudentDashboard, error) {
	stats, err := s.repo.GetUserPaymentStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	openCount, outstanding, err := s.repo.SumOpenAssignments(ctx, userID)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.CountUnreadNotifications(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, _, err := s.repo.ListPaymentsByUser(ctx, userID, domain.PaymentListOptions{Page: 1, Limit: recentPaymentsLimit})
	if err != nil {
		return nil, err
	}
	return &domain.StudentDashboard{
		TotalPaid:           stats.TotalPaid,
		CompletedPayments:   stats.CompletedCount,
		PendingAssignments:  openCount,
		OutstandingAmount:   outstanding,
		UnreadNotifications: unread,
		RecentPayments:      recent,
	}, nil
}
