package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/idorocodes/paxify-backend/internal/domain"
)

const feeColumns = `
	id, name, description, amount, category_type, department, level, is_mandatory,
	academic_session, due_date, is_active, created_by, created_at, updated_at`

func scanFee(row pgx.Row) (*domain.FeeCategory, error) {
	var fee domain.FeeCategory
	err := row.Scan(
		&fee.ID,
		&fee.Name,
		&fee.Description,
		&fee.Amount,
		&fee.CategoryType,
		&fee.Department,
		&fee.Level,
		&fee.IsMandatory,
		&fee.AcademicSession,
		&fee.DueDate,
		&fee.IsActive,
		&fee.CreatedBy,
		&fee.CreatedAt,
		&fee.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFeeCategoryNotFound
		}
		return nil, err
	}
	return &fee, nil
}

func collectFees(rows pgx.Rows) ([]domain.FeeCategory, error) {
	defer rows.Close()
	fees := make([]domain.FeeCategory, 0)
	for rows.Next() {
		fee, err := scanFee(rows)
		if err != nil {
			return nil, err
		}
		fees = append(fees, *fee)
	}
	return fees, rows.Err()
}

func (r *PostgresRepository) CreateFeeCategory(ctx context.Context, fee *domain.FeeCategory) error {
	if fee.ID == uuid.Nil {
		fee.ID = uuid.New()
	}
	query := `
		INSERT INTO fee_categories (
			id, name, description, amount, category_type, department, level,
			is_mandatory, academic_session, due_date, is_active, created_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		fee.ID,
		fee.Name,
		fee.Description,
		fee.Amount,
		fee.CategoryType,
		fee.Department,
		fee.Level,
		fee.IsMandatory,
		fee.AcademicSession,
		fee.DueDate,
		fee.IsActive,
		fee.CreatedBy,
	).Scan(&fee.CreatedAt, &fee.UpdatedAt)
}

func (r *PostgresRepository) FindFeeCategoryByID(ctx context.Context, feeID uuid.UUID) (*domain.FeeCategory, error) {
	return scanFee(r.db.QueryRow(ctx, `SELECT `+feeColumns+` FROM fee_categories WHERE id = $1`, feeID))
}

// UpdateFeeCategory applies the non-nil fields of update.
func (r *PostgresRepository) UpdateFeeCategory(ctx context.Context, feeID uuid.UUID, update domain.FeeCategoryUpdate) (*domain.FeeCategory, error) {
	var amount *string
	if update.Amount != nil {
		s := update.Amount.String()
		amount = &s
	}
	query := `
		UPDATE fee_categories SET
			name             = COALESCE($2, name),
			description      = COALESCE($3, description),
			amount           = COALESCE($4::numeric, amount),
			category_type    = COALESCE($5, category_type),
			department       = COALESCE($6, department),
			level            = COALESCE($7, level),
			is_mandatory     = COALESCE($8, is_mandatory),
			academic_session = COALESCE($9, academic_session),
			due_date         = COALESCE($10, due_date),
			is_active        = COALESCE($11, is_active),
			updated_at       = NOW()
		WHERE id = $1
		RETURNING ` + feeColumns
	return scanFee(r.db.QueryRow(ctx, query,
		feeID,
		update.Name,
		update.Description,
		amount,
		update.CategoryType,
		update.Department,
		update.Level,
		update.IsMandatory,
		update.AcademicSession,
		update.DueDate,
		update.IsActive,
	))
}

// ListActiveFeeCategories lists active fees. Department and level filters also
// match fees that leave the column NULL.
func (r *PostgresRepository) ListActiveFeeCategories(ctx context.Context, filter domain.FeeFilter) ([]domain.FeeCategory, error) {
	where := []string{"is_active = TRUE"}
	args := []any{}
	if filter.Department != "" {
		args = append(args, filter.Department)
		where = append(where, fmt.Sprintf("(department IS NULL OR department = $%d)", len(args)))
	}
	if filter.Level != nil {
		args = append(args, *filter.Level)
		where = append(where, fmt.Sprintf("(level IS NULL OR level = $%d)", len(args)))
	}
	if filter.CategoryType != "" {
		args = append(args, filter.CategoryType)
		where = append(where, fmt.Sprintf("category_type = $%d", len(args)))
	}
	query := `SELECT ` + feeColumns + ` FROM fee_categories WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectFees(rows)
}

// FindActiveFeeCategoriesByIDs returns the active fees among feeIDs. Missing or
// inactive ids are simply absent from the result.
func (r *PostgresRepository) FindActiveFeeCategoriesByIDs(ctx context.Context, feeIDs []uuid.UUID) ([]domain.FeeCategory, error) {
	if len(feeIDs) == 0 {
		return []domain.FeeCategory{}, nil
	}
	query := `SELECT ` + feeColumns + ` FROM fee_categories WHERE id = ANY($1::uuid[]) AND is_active = TRUE`
	rows, err := r.db.Query(ctx, query, uuidStrings(feeIDs))
	if err != nil {
		return nil, err
	}
	return collectFees(rows)
}

// CreateFeeAssignments inserts one pending assignment per user in a single
// statement. Users with an open assignment for the fee are skipped; the ids of
// the users actually assigned are returned.
func (r *PostgresRepository) CreateFeeAssignments(ctx context.Context, params CreateFeeAssignmentsParams) ([]uuid.UUID, error) {
	if len(params.UserIDs) == 0 {
		return []uuid.UUID{}, nil
	}
	query := `
		INSERT INTO fee_assignments (
			user_id, fee_category_id, amount, status, due_date, description, target_type, assigned_by
		)
		SELECT u, $2, $3, 'pending', $4, $5, $6, $7
		FROM unnest($1::uuid[]) AS u
		ON CONFLICT (user_id, fee_category_id) WHERE status IN ('pending', 'overdue') DO NOTHING
		RETURNING user_id
	`
	rows, err := r.db.Query(ctx, query,
		uuidStrings(params.UserIDs),
		params.FeeCategoryID,
		params.Amount,
		params.DueDate,
		params.Description,
		params.TargetType,
		params.AssignedBy,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assigned := make([]uuid.UUID, 0, len(params.UserIDs))
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		assigned = append(assigned, id)
	}
	return assigned, rows.Err()
}

// ListDueAssignments pages through a student's assignments with the fee name.
func (r *PostgresRepository) ListDueAssignments(ctx context.Context, userID uuid.UUID, opts domain.DueListOptions) ([]domain.FeeAssignment, int, error) {
	where := "a.user_id = $1"
	args := []any{userID}
	if opts.Status != "" {
		args = append(args, opts.Status)
		where += fmt.Sprintf(" AND a.status = $%d", len(args))
	} else {
		where += " AND a.status IN ('pending', 'overdue')"
	}

	order := "a.due_date ASC NULLS LAST, a.created_at DESC"
	switch opts.SortBy {
	case "amount":
		order = "a.amount DESC, a.created_at DESC"
	case "created_at":
		order = "a.created_at DESC"
	}

	from := ` FROM fee_assignments a JOIN fee_categories f ON f.id = a.fee_category_id WHERE ` + where

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*)`+from, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, opts.Limit, offset(opts.Page, opts.Limit))
	query := fmt.Sprintf(`
		SELECT a.id, a.user_id, a.fee_category_id, f.name, a.amount, a.status, a.due_date,
			a.description, a.target_type, a.assigned_by, a.payment_id, a.created_at, a.updated_at
		%s ORDER BY %s LIMIT $%d OFFSET $%d`, from, order, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]domain.FeeAssignment, 0)
	for rows.Next() {
		var a domain.FeeAssignment
		if err := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.FeeCategoryID,
			&a.FeeName,
			&a.Amount,
			&a.Status,
			&a.DueDate,
			&a.Description,
			&a.TargetType,
			&a.AssignedBy,
			&a.PaymentID,
			&a.CreatedAt,
			&a.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

// SumOpenAssignments counts a student's pending and overdue assignments and their amount.
func (r *PostgresRepository) SumOpenAssignments(ctx context.Context, userID uuid.UUID) (int, decimal.Decimal, error) {
	var (
		count  int
		amount decimal.Decimal
	)
	query := `
		SELECT COUNT(*), COALESCE(SUM(amount), 0)
		FROM fee_assignments
		WHERE user_id = $1 AND status IN ('pending', 'overdue')
	`
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count, &amount); err != nil {
		return 0, decimal.Zero, err
	}
	return count, amount, nil
}

// MarkFeeAssignmentsPaid settles the user's open assignments for the paid fees.
func (r *PostgresRepository) MarkFeeAssignmentsPaid(ctx context.Context, userID uuid.UUID, feeIDs []uuid.UUID, paymentID uuid.UUID) (int64, error) {
	if len(feeIDs) == 0 {
		return 0, nil
	}
	query := `
		UPDATE fee_assignments
		SET status = 'paid', payment_id = $3, updated_at = NOW()
		WHERE user_id = $1 AND fee_category_id = ANY($2::uuid[]) AND status IN ('pending', 'overdue')
	`
	tag, err := r.db.Exec(ctx, query, userID, uuidStrings(feeIDs), paymentID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) MarkOverdueAssignments(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE fee_assignments
		SET status = 'overdue', updated_at = NOW()
		WHERE status = 'pending' AND due_date IS NOT NULL AND due_date < $1
	`
	tag, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
