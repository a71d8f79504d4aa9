package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idorocodes/paxify-backend/internal/domain"
	"github.com/idorocodes/paxify-backend/internal/store"
)

// Dispatcher fans one notification out to every active student a target matches.
type Dispatcher struct {
	repo   store.Repository
	logger *zap.Logger
}

func NewDispatcher(repo store.Repository, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{repo: repo, logger: logger.With(zap.String("component", "dispatcher"))}
}

// Dispatch resolves target and writes one notification per matched student.
// An empty match is a no-op, except for an explicit id list, which reports
// ErrNoTargets.
func (d *Dispatcher) Dispatch(ctx context.Context, target domain.NotificationTarget, msg domain.NotificationMessage) (int, error) {
	if err := validateTarget(target); err != nil {
		return 0, err
	}
	if strings.TrimSpace(msg.Title) == "" || strings.TrimSpace(msg.Message) == "" {
		return 0, NewValidationError("notification title and message are required")
	}
	if msg.Type == "" {
		msg.Type = domain.NotificationAnnouncement
	}

	users, err := d.repo.FindActiveStudentsByTarget(ctx, target)
	if err != nil {
		return 0, fmt.Errorf("resolve notification target: %w", err)
	}
	if len(users) == 0 {
		if target.Type == domain.TargetCustomGroup {
			return 0, ErrNoTargets
		}
		d.logger.Info("notification matched no users", zap.String("target_type", target.Type))
		return 0, nil
	}

	return d.write(ctx, users, target, msg)
}

// DispatchToUsers writes the notification for an already-resolved user set.
func (d *Dispatcher) DispatchToUsers(ctx context.Context, users []domain.User, target domain.NotificationTarget, msg domain.NotificationMessage) (int, error) {
	if len(users) == 0 {
		return 0, nil
	}
	return d.write(ctx, users, target, msg)
}

func (d *Dispatcher) write(ctx context.Context, users []domain.User, target domain.NotificationTarget, msg domain.NotificationMessage) (int, error) {
	ids := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}

	var metadata json.RawMessage
	if len(msg.Metadata) > 0 {
		raw, err := json.Marshal(msg.Metadata)
		if err != nil {
			return 0, fmt.Errorf("encode notification metadata: %w", err)
		}
		metadata = raw
	}
	criteria, err := json.Marshal(target)
	if err != nil {
		return 0, fmt.Errorf("encode target criteria: %w", err)
	}

	written, err := d.repo.CreateNotificationBatch(ctx, store.CreateNotificationBatchParams{
		UserIDs:        ids,
		Type:           msg.Type,
		Title:          msg.Title,
		Message:        msg.Message,
		Metadata:       metadata,
		TargetType:     target.Type,
		TargetCriteria: criteria,
	})
	if err != nil {
		return 0, fmt.Errorf("write notifications: %w", err)
	}

	d.logger.Info("notifications dispatched",
		zap.String("target_type", target.Type),
		zap.String("type", msg.Type),
		zap.Int64("count", written),
	)
	return int(written), nil
}

func validateTarget(target domain.NotificationTarget) error {
	switch target.Type {
	case domain.TargetAll:
		return nil
	case domain.TargetLevel:
		if len(target.Levels) == 0 {
			return NewValidationError("levels are required for LEVEL targets")
		}
	case domain.TargetDepartment:
		if len(target.Departments) == 0 {
			return NewValidationError("departments are required for DEPARTMENT targets")
		}
	case domain.TargetFaculty:
		if len(target.FacultyIDs) == 0 {
			return NewValidationError("faculty_ids are required for FACULTY targets")
		}
	case domain.TargetCustomGroup:
		if len(target.UserIDs) == 0 {
			return NewValidationError("student_ids are required for CUSTOM_GROUP targets")
		}
	default:
		return NewValidationError("unsupported target type %q", target.Type)
	}
	return nil
}

// ListNotifications returns a page of the user's notifications and the unread count.
func (d *Dispatcher) ListNotifications(ctx context.Context, userID uuid.UUID, opts domain.NotificationListOptions) ([]domain.Notification, domain.Pagination, int, error) {
	opts.Page, opts.Limit = domain.NormalizePage(opts.Page, opts.Limit, 20, 100)
	items, total, err := d.repo.ListNotifications(ctx, userID, opts)
	if err != nil {
		return nil, domain.Pagination{}, 0, err
	}
	unread, err := d.repo.CountUnreadNotifications(ctx, userID)
	if err != nil {
		return nil, domain.Pagination{}, 0, err
	}
	return items, domain.NewPagination(opts.Page, opts.Limit, total), unread, nil
}

// MarkRead marks the user's notifications read; an empty list marks all.
func (d *Dispatcher) MarkRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	return d.repo.MarkNotificationsRead(ctx, userID, ids)
}
