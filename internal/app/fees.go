package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/idorocodes/paxify-backend/internal/domain"
	"github.com/idorocodes/paxify-backend/internal/store"
	"github.com/idorocodes/paxify-backend/pkg/rabbitmq"
)

// FeeService manages the fee catalog and per-student assignments.
type FeeService struct {
	repo      store.Repository
	notifier  Notifier
	publisher rabbitmq.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewFeeService(repo store.Repository, notifier Notifier, publisher rabbitmq.Publisher, logger *zap.Logger) *FeeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeeService{
		repo:      repo,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger.With(zap.String("component", "fees")),
		now:       time.Now,
	}
}

// CreateFee adds an active fee category.
func (s *FeeService) CreateFee(ctx context.Context, actorID uuid.UUID, in domain.FeeCategoryInput) (*domain.FeeCategory, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, NewValidationError("fee name is required")
	}
	if !in.Amount.IsPositive() {
		return nil, NewValidationError("fee amount must be greater than zero")
	}
	fee := &domain.FeeCategory{
		ID:              uuid.New(),
		Name:            name,
		Description:     in.Description,
		Amount:          in.Amount.Round(2),
		CategoryType:    in.CategoryType,
		Department:      in.Department,
		Level:           in.Level,
		IsMandatory:     in.IsMandatory,
		AcademicSession: in.AcademicSession,
		DueDate:         in.DueDate,
		IsActive:        true,
		CreatedBy:       &actorID,
	}
	if fee.CategoryType == "" {
		fee.CategoryType = domain.FeeTypeOther
	}
	if err := s.repo.CreateFeeCategory(ctx, fee); err != nil {
		return nil, err
	}
	recordAudit(ctx, s.repo, s.logger, &actorID, "fee_created", "fee_category", fee.ID, map[string]any{
		"name":   fee.Name,
		"amount": fee.Amount,
	})
	return fee, nil
}

// UpdateFee applies a partial update to a fee category.
func (s *FeeService) UpdateFee(ctx context.Context, actorID, feeID uuid.UUID, update domain.FeeCategoryUpdate) (*domain.FeeCategory, error) {
	if update.Amount != nil && !update.Amount.IsPositive() {
		return nil, NewValidationError("fee amount must be greater than zero")
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return nil, NewValidationError("fee name cannot be empty")
	}
	fee, err := s.repo.UpdateFeeCategory(ctx, feeID, update)
	if err != nil {
		return nil, err
	}
	action := "fee_updated"
	if update.IsActive != nil && !*update.IsActive {
		action = "fee_deactivated"
	}
	recordAudit(ctx, s.repo, s.logger, &actorID, action, "fee_category", fee.ID, nil)
	return fee, nil
}

// DeactivateFee hides a fee category from students. Existing payments keep
// their item snapshots.
func (s *FeeService) DeactivateFee(ctx context.Context, actorID, feeID uuid.UUID) (*domain.FeeCategory, error) {
	inactive := false
	return s.UpdateFee(ctx, actorID, feeID, domain.FeeCategoryUpdate{IsActive: &inactive})
}

// ListFees returns active fee categories matching filter.
func (s *FeeService) ListFees(ctx context.Context, filter domain.FeeFilter) ([]domain.FeeCategory, error) {
	return s.repo.ListActiveFeeCategories(ctx, filter)
}

// ListFeesForStudent returns the active fees that apply to the student's
// department and level.
func (s *FeeService) ListFeesForStudent(ctx context.Context, userID uuid.UUID, categoryType string) ([]domain.FeeCategory, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	filter := domain.FeeFilter{Level: user.Level, CategoryType: categoryType}
	if user.Department != nil {
		filter.Department = *user.Department
	}
	return s.repo.ListActiveFeeCategories(ctx, filter)
}

// GetFee returns one fee category.
func (s *FeeService) GetFee(ctx context.Context, feeID uuid.UUID) (*domain.FeeCategory, error) {
	return s.repo.FindFeeCategoryByID(ctx, feeID)
}

// AssignFee creates open assignments of one fee for every active student the
// target matches. Students who already owe the fee are skipped.
func (s *FeeService) AssignFee(ctx context.Context, actorID uuid.UUID, in domain.AssignFeeInput) (*domain.AssignFeeResult, error) {
	target := domain.NotificationTarget{
		Type:        in.TargetType,
		Levels:      in.Levels,
		Departments: in.Departments,
		FacultyIDs:  in.FacultyIDs,
		UserIDs:     in.StudentIDs,
	}
	if err := validateTarget(target); err != nil {
		return nil, err
	}

	fee, err := s.repo.FindFeeCategoryByID(ctx, in.FeeCategoryID)
	if err != nil {
		return nil, err
	}
	if !fee.IsActive {
		return nil, NewValidationError("fee category %s is not active", fee.Name)
	}

	students, err := s.repo.FindActiveStudentsByTarget(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("resolve assignment target: %w", err)
	}
	if len(students) == 0 {
		return nil, ErrNoTargets
	}

	dueDate := in.DueDate
	if dueDate == nil {
		dueDate = fee.DueDate
	}
	ids := make([]uuid.UUID, 0, len(students))
	for _, st := range students {
		ids = append(ids, st.ID)
	}
	assignedIDs, err := s.repo.CreateFeeAssignments(ctx, store.CreateFeeAssignmentsParams{
		FeeCategoryID: fee.ID,
		Amount:        fee.Amount,
		DueDate:       dueDate,
		Description:   in.Description,
		TargetType:    in.TargetType,
		AssignedBy:    &actorID,
		UserIDs:       ids,
	})
	if err != nil {
		return nil, fmt.Errorf("create fee assignments: %w", err)
	}

	result := &domain.AssignFeeResult{
		FeeCategoryID: fee.ID,
		Matched:       len(students),
		Assigned:      len(assignedIDs),
		Skipped:       len(students) - len(assignedIDs),
	}
	if len(assignedIDs) == 0 {
		return result, nil
	}

	assigned := selectUsers(students, assignedIDs)
	if s.notifier != nil {
		notified, err := s.notifier.DispatchToUsers(ctx, assigned, target, domain.NotificationMessage{
			Type:    domain.NotificationFeeAssigned,
			Title:   "New fee assigned",
			Message: feeAssignedMessage(fee.Name, fee.Amount, dueDate),
			Metadata: map[string]any{
				"fee_category_id": fee.ID.String(),
				"amount":          fee.Amount.StringFixed(2),
			},
		})
		if err != nil {
			s.logger.Error("failed to notify assigned students", zap.String("fee_id", fee.ID.String()), zap.Error(err))
		}
		result.Notified = notified
	}

	now := s.now().UTC()
	for _, st := range assigned {
		publishEvent(ctx, s.publisher, s.logger, domain.EventFeeAssigned, domain.FeeAssignedEvent{
			UserID:    st.ID,
			Email:     st.Email,
			FirstName: st.FirstName,
			FeeName:   fee.Name,
			Amount:    fee.Amount,
			DueDate:   dueDate,
			Timestamp: now,
		})
	}

	recordAudit(ctx, s.repo, s.logger, &actorID, "fee_assigned", "fee_category", fee.ID, map[string]any{
		"target_type": in.TargetType,
		"matched":     result.Matched,
		"assigned":    result.Assigned,
	})
	s.logger.Info("fee assigned",
		zap.String("fee_id", fee.ID.String()),
		zap.Int("matched", result.Matched),
		zap.Int("assigned", result.Assigned),
	)
	return result, nil
}

// DuePayments returns a page of the student's assignments.
func (s *FeeService) DuePayments(ctx context.Context, userID uuid.UUID, opts domain.DueListOptions) ([]domain.FeeAssignment, domain.Pagination, error) {
	opts.Page, opts.Limit = domain.NormalizePage(opts.Page, opts.Limit, 20, 100)
	switch opts.Status {
	case "", domain.AssignmentPending, domain.AssignmentOverdue, domain.AssignmentPaid, domain.AssignmentCancelled:
	default:
		return nil, domain.Pagination{}, NewValidationError("unsupported status %q", opts.Status)
	}
	items, total, err := s.repo.ListDueAssignments(ctx, userID, opts)
	if err != nil {
		return nil, domain.Pagination{}, err
	}
	return items, domain.NewPagination(opts.Page, opts.Limit, total), nil
}

func selectUsers(users []domain.User, ids []uuid.UUID) []domain.User {
	wanted := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	out := make([]domain.User, 0, len(ids))
	for _, u := range users {
		if _, ok := wanted[u.ID]; ok {
			out = append(out, u)
		}
	}
	return out
}

func feeAssignedMessage(name string, amount decimal.Decimal, dueDate *time.Time) string {
	msg := fmt.Sprintf("%s (NGN %s) has been assigned to you.", name, amount.StringFixed(2))
	if dueDate != nil {
		msg += " Due " + dueDate.Format("02 Jan 2006") + "."
	}
	return msg
}
