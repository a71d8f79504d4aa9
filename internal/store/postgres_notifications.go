package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/idorocodes/paxify-backend/internal/domain"
)

// CreateNotificationBatch writes one row per user in a single statement.
func (r *PostgresRepository) CreateNotificationBatch(ctx context.Context, params CreateNotificationBatchParams) (int64, error) {
	if len(params.UserIDs) == 0 {
		return 0, nil
	}
	var targetType *string
	if params.TargetType != "" {
		targetType = &params.TargetType
	}
	query := `
		INSERT INTO notifications (user_id, type, title, message, metadata, target_type, target_criteria)
		SELECT u, $2, $3, $4, $5::jsonb, $6, $7::jsonb
		FROM unnest($1::uuid[]) AS u
	`
	tag, err := r.db.Exec(ctx, query,
		uuidStrings(params.UserIDs),
		params.Type,
		params.Title,
		params.Message,
		jsonArg(params.Metadata),
		targetType,
		jsonArg(params.TargetCriteria),
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListNotifications pages through a user's notifications, newest first.
func (r *PostgresRepository) ListNotifications(ctx context.Context, userID uuid.UUID, opts domain.NotificationListOptions) ([]domain.Notification, int, error) {
	where := "user_id = $1"
	args := []any{userID}
	if opts.Type != "" {
		args = append(args, opts.Type)
		where += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if opts.IsRead != nil {
		args = append(args, *opts.IsRead)
		where += fmt.Sprintf(" AND is_read = $%d", len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, opts.Limit, offset(opts.Page, opts.Limit))
	query := fmt.Sprintf(`
		SELECT id, user_id, type, title, message, metadata, target_type, target_criteria, is_read, read_at, created_at
		FROM notifications
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]domain.Notification, 0)
	for rows.Next() {
		var (
			n                  domain.Notification
			metadata, criteria []byte
		)
		if err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.Type,
			&n.Title,
			&n.Message,
			&metadata,
			&n.TargetType,
			&criteria,
			&n.IsRead,
			&n.ReadAt,
			&n.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		if len(metadata) > 0 {
			n.Metadata = json.RawMessage(metadata)
		}
		if len(criteria) > 0 {
			n.TargetCriteria = json.RawMessage(criteria)
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

// MarkNotificationsRead marks the caller's notifications read. An empty id
// list marks all of them.
func (r *PostgresRepository) MarkNotificationsRead(ctx context.Context, userID uuid.UUID, notificationIDs []uuid.UUID) (int64, error) {
	query := `UPDATE notifications SET is_read = TRUE, read_at = NOW() WHERE user_id = $1 AND is_read = FALSE`
	args := []any{userID}
	if len(notificationIDs) > 0 {
		query += ` AND id = ANY($2::uuid[])`
		args = append(args, uuidStrings(notificationIDs))
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`, userID).Scan(&count)
	return count, err
}
