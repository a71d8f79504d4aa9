/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface:
 * the storage sentinels, shared helpers, and the user and one-time token queries.
 * Payments, fees, notifications, catalog and reporting live in sibling files.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 *
 * @notes
 * - The pool runs in simple protocol mode, so UUID slices are passed as []string
 *   and JSON values as strings with explicit casts.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/idorocodes/paxify-backend/internal/domain"
)

var (
	ErrUserNotFound            = errors.New("user not found")
	ErrUserExists              = errors.New("user already exists")
	ErrTokenNotFound           = errors.New("token not found")
	ErrFeeCategoryNotFound     = errors.New("fee category not found")
	ErrPaymentNotFound         = errors.New("payment not found")
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
	ErrDuplicateReference      = errors.New("duplicate payment reference")
	ErrFacultyNotFound         = errors.New("faculty not found")
	ErrDepartmentNotFound      = errors.New("department not found")
	ErrDuplicateName           = errors.New("name already exists")
)

const uniqueViolation = "23505"

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// uniqueConstraint returns the violated constraint name for a unique violation.
func uniqueConstraint(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

// jsonArg renders raw JSON for a ::jsonb parameter; empty input becomes NULL.
func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func offset(page, limit int) int {
	if page < 1 {
		return 0
	}
	return (page - 1) * limit
}

const userColumns = `
	id, first_name, last_name, email, matric_number, password_hash, role,
	department, faculty_id, level, phone, is_active, email_verified,
	last_login_at, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.MatricNumber,
		&user.PasswordHash,
		&user.Role,
		&user.Department,
		&user.FacultyID,
		&user.Level,
		&user.Phone,
		&user.IsActive,
		&user.EmailVerified,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a user. Email or matric number collisions map to ErrUserExists.
func (r *PostgresRepository) CreateUser(ctx context.Context, user *domain.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	query := `
		INSERT INTO users (
			id, first_name, last_name, email, matric_number, password_hash, role,
			department, faculty_id, level, phone, is_active, email_verified
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Email,
		user.MatricNumber,
		user.PasswordHash,
		user.Role,
		user.Department,
		user.FacultyID,
		user.Level,
		user.Phone,
		user.IsActive,
		user.EmailVerified,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return ErrUserExists
		}
		return err
	}
	return nil
}

// FindUserByID retrieves a user from the database by their ID.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
}

// FindUserByEmail looks a user up by lower-cased e-mail.
func (r *PostgresRepository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

// FindUserByMatricNumber looks a student up by matric number.
func (r *PostgresRepository) FindUserByMatricNumber(ctx context.Context, matric string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE upper(matric_number) = upper($1)`, matric))
}

func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_login_at = $2, updated_at = NOW() WHERE id = $1`, userID, at)
	return err
}

// UpdateUserProfile applies the non-nil fields of update and returns the stored user.
func (r *PostgresRepository) UpdateUserProfile(ctx context.Context, userID uuid.UUID, update domain.ProfileUpdate) (*domain.User, error) {
	query := `
		UPDATE users SET
			first_name = COALESCE($2, first_name),
			last_name  = COALESCE($3, last_name),
			phone      = COALESCE($4, phone),
			department = COALESCE($5, department),
			level      = COALESCE($6, level),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRow(ctx, query,
		userID,
		update.FirstName,
		update.LastName,
		update.Phone,
		update.Department,
		update.Level,
	))
}

func (r *PostgresRepository) UpdateUserPassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, userID, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PostgresRepository) MarkEmailVerified(ctx context.Context, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET email_verified = TRUE, updated_at = NOW() WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListUsers pages through users, newest first, optionally filtered by role and a search term.
func (r *PostgresRepository) ListUsers(ctx context.Context, opts domain.UserListOptions) ([]domain.User, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if opts.Role != "" {
		args = append(args, opts.Role)
		where = append(where, fmt.Sprintf("role = $%d", len(args)))
	}
	if term := strings.TrimSpace(opts.Search); term != "" {
		args = append(args, "%"+strings.ToLower(term)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(lower(first_name) LIKE $%d OR lower(last_name) LIKE $%d OR lower(email) LIKE $%d OR lower(COALESCE(matric_number, '')) LIKE $%d)",
			n, n, n, n,
		))
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, opts.Limit, offset(opts.Page, opts.Limit))
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		userColumns, clause, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *user)
	}
	return users, total, rows.Err()
}

// FindActiveStudentsByTarget resolves a target to active student accounts.
func (r *PostgresRepository) FindActiveStudentsByTarget(ctx context.Context, target domain.NotificationTarget) ([]domain.User, error) {
	base := `SELECT ` + userColumns + ` FROM users WHERE role = 'student' AND is_active = TRUE`
	var (
		query string
		args  []any
	)
	switch target.Type {
	case domain.TargetAll:
		query = base
	case domain.TargetLevel:
		levels := make([]int32, 0, len(target.Levels))
		for _, level := range target.Levels {
			levels = append(levels, int32(level))
		}
		query = base + ` AND level = ANY($1::int[])`
		args = []any{levels}
	case domain.TargetDepartment:
		query = base + ` AND department = ANY($1::text[])`
		args = []any{target.Departments}
	case domain.TargetFaculty:
		query = base + ` AND faculty_id = ANY($1::uuid[])`
		args = []any{uuidStrings(target.FacultyIDs)}
	case domain.TargetCustomGroup:
		query = base + ` AND id = ANY($1::uuid[])`
		args = []any{uuidStrings(target.UserIDs)}
	default:
		return nil, fmt.Errorf("unsupported target type %q", target.Type)
	}

	rows, err := r.db.Query(ctx, query+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func tokenTable(kind TokenKind) (string, error) {
	switch kind {
	case TokenPasswordReset:
		return "password_reset_tokens", nil
	case TokenEmailVerification:
		return "email_verification_tokens", nil
	default:
		return "", fmt.Errorf("unknown token kind %q", kind)
	}
}

// CreateToken stores a hashed one-time token.
func (r *PostgresRepository) CreateToken(ctx context.Context, kind TokenKind, token *domain.OneTimeToken) error {
	table, err := tokenTable(kind)
	if err != nil {
		return err
	}
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	query := `INSERT INTO ` + table + ` (id, user_id, token_hash, expires_at) VALUES ($1, $2, $3, $4) RETURNING created_at`
	return r.db.QueryRow(ctx, query, token.ID, token.UserID, token.TokenHash, token.ExpiresAt).Scan(&token.CreatedAt)
}

func (r *PostgresRepository) FindTokenByHash(ctx context.Context, kind TokenKind, tokenHash string) (*domain.OneTimeToken, error) {
	table, err := tokenTable(kind)
	if err != nil {
		return nil, err
	}
	var token domain.OneTimeToken
	query := `SELECT id, user_id, token_hash, expires_at, used_at, created_at FROM ` + table + ` WHERE token_hash = $1`
	err = r.db.QueryRow(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.UsedAt,
		&token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return &token, nil
}

// ConsumeToken marks an unused token as used. It reports false when another
// request consumed it first.
func (r *PostgresRepository) ConsumeToken(ctx context.Context, kind TokenKind, tokenID uuid.UUID) (bool, error) {
	table, err := tokenTable(kind)
	if err != nil {
		return false, err
	}
	tag, err := r.db.Exec(ctx, `UPDATE `+table+` SET used_at = NOW() WHERE id = $1 AND used_at IS NULL`, tokenID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// PurgeTokens deletes tokens that expired or were used before the cutoff.
func (r *PostgresRepository) PurgeTokens(ctx context.Context, kind TokenKind, before time.Time) (int64, error) {
	table, err := tokenTable(kind)
	if err != nil {
		return 0, err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM `+table+` WHERE expires_at < $1 OR used_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CreateAuditLog appends an audit entry.
func (r *PostgresRepository) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	query := `
		INSERT INTO audit_logs (id, user_id, action, entity_type, entity_id, details)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
	`
	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		jsonArg(entry.Details),
	)
	return err
}
