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

	"github.com/idorocodes/paxify-backend/internal/domain"
)

const paymentColumns = `
	p.id, p.user_id, p.total_amount, p.currency, p.reference, p.idempotency_key,
	p.status, p.access_code, p.gateway_response, p.channel, p.paid_at,
	p.receipt_url, p.created_at, p.updated_at`

func paymentScanTargets(p *domain.Payment, gatewayResponse *[]byte) []any {
	return []any{
		&p.ID,
		&p.UserID,
		&p.TotalAmount,
		&p.Currency,
		&p.Reference,
		&p.IdempotencyKey,
		&p.Status,
		&p.AccessCode,
		gatewayResponse,
		&p.Channel,
		&p.PaidAt,
		&p.ReceiptURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		payment domain.Payment
		raw     []byte
	)
	if err := row.Scan(paymentScanTargets(&payment, &raw)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if len(raw) > 0 {
		payment.GatewayResponse = json.RawMessage(raw)
	}
	return &payment, nil
}

func (r *PostgresRepository) findPayment(ctx context.Context, where string, arg any) (*domain.Payment, error) {
	payment, err := scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments p WHERE `+where, arg))
	if err != nil {
		return nil, err
	}
	items, err := r.paymentItems(ctx, []uuid.UUID{payment.ID})
	if err != nil {
		return nil, err
	}
	payment.Items = items[payment.ID]
	return payment, nil
}

func (r *PostgresRepository) paymentItems(ctx context.Context, paymentIDs []uuid.UUID) (map[uuid.UUID][]domain.PaymentItem, error) {
	out := make(map[uuid.UUID][]domain.PaymentItem, len(paymentIDs))
	if len(paymentIDs) == 0 {
		return out, nil
	}
	query := `
		SELECT id, payment_id, fee_category_id, name, amount
		FROM payment_items
		WHERE payment_id = ANY($1::uuid[])
		ORDER BY name, id
	`
	rows, err := r.db.Query(ctx, query, uuidStrings(paymentIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.PaymentItem
		if err := rows.Scan(&item.ID, &item.PaymentID, &item.FeeCategoryID, &item.Name, &item.Amount); err != nil {
			return nil, err
		}
		out[item.PaymentID] = append(out[item.PaymentID], item)
	}
	return out, rows.Err()
}

// CreatePaymentWithItems inserts a payment intent and its item rows atomically.
// Unique violations are reported per constraint so the caller can re-read the
// winning intent or regenerate the reference.
func (r *PostgresRepository) CreatePaymentWithItems(ctx context.Context, payment *domain.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if payment.Currency == "" {
		payment.Currency = domain.DefaultCurrency
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	paymentQuery := `
		INSERT INTO payments (id, user_id, total_amount, currency, reference, idempotency_key, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(ctx, paymentQuery,
		payment.ID,
		payment.UserID,
		payment.TotalAmount,
		payment.Currency,
		payment.Reference,
		payment.IdempotencyKey,
		payment.Status,
	).Scan(&payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		if constraint, ok := uniqueConstraint(err); ok {
			if strings.Contains(constraint, "reference") {
				return ErrDuplicateReference
			}
			return ErrDuplicateIdempotencyKey
		}
		return err
	}

	itemQuery := `
		INSERT INTO payment_items (id, payment_id, fee_category_id, name, amount)
		VALUES ($1, $2, $3, $4, $5)
	`
	for i := range payment.Items {
		item := &payment.Items[i]
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.PaymentID = payment.ID
		if _, err := tx.Exec(ctx, itemQuery, item.ID, item.PaymentID, item.FeeCategoryID, item.Name, item.Amount); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *PostgresRepository) FindPaymentByID(ctx context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	return r.findPayment(ctx, "p.id = $1", paymentID)
}

func (r *PostgresRepository) FindPaymentByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	return r.findPayment(ctx, "p.reference = $1", reference)
}

func (r *PostgresRepository) FindPaymentByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	return r.findPayment(ctx, "p.idempotency_key = $1", key)
}

// FindLatestPaymentByIdempotencyBase returns the newest intent that is not
// failed among the one keyed by base and its "base:<suffix>" retries.
func (r *PostgresRepository) FindLatestPaymentByIdempotencyBase(ctx context.Context, base string) (*domain.Payment, error) {
	where := `(p.idempotency_key = $1::text OR left(p.idempotency_key, length($1::text) + 1) = $1::text || ':')
		AND p.status <> 'failed'
		ORDER BY p.created_at DESC
		LIMIT 1`
	return r.findPayment(ctx, where, base)
}

// SavePaymentCheckout stores the gateway checkout on a pending intent.
func (r *PostgresRepository) SavePaymentCheckout(ctx context.Context, paymentID uuid.UUID, accessCode string, gatewayResponse json.RawMessage) error {
	query := `
		UPDATE payments
		SET access_code = $2, gateway_response = $3::jsonb, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	_, err := r.db.Exec(ctx, query, paymentID, accessCode, jsonArg(gatewayResponse))
	return err
}

// MarkPaymentFailed moves a pending intent to failed. It reports false when
// the intent was no longer pending.
func (r *PostgresRepository) MarkPaymentFailed(ctx context.Context, paymentID uuid.UUID, gatewayResponse json.RawMessage) (bool, error) {
	query := `
		UPDATE payments
		SET status = 'failed', gateway_response = COALESCE($2::jsonb, gateway_response), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	tag, err := r.db.Exec(ctx, query, paymentID, jsonArg(gatewayResponse))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkPaymentCompleted moves a pending intent to completed. Only one concurrent
// caller observes true.
func (r *PostgresRepository) MarkPaymentCompleted(ctx context.Context, paymentID uuid.UUID, params MarkPaymentCompletedParams) (bool, error) {
	var channel *string
	if params.Channel != "" {
		channel = &params.Channel
	}
	query := `
		UPDATE payments
		SET status = 'completed',
			paid_at = $2,
			channel = COALESCE($3, channel),
			gateway_response = COALESCE($4::jsonb, gateway_response),
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`
	tag, err := r.db.Exec(ctx, query, paymentID, params.PaidAt, channel, jsonArg(params.GatewayResponse))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetPaymentReceiptURL records the receipt location once.
func (r *PostgresRepository) SetPaymentReceiptURL(ctx context.Context, paymentID uuid.UUID, receiptURL string) error {
	query := `
		UPDATE payments SET receipt_url = $2, updated_at = NOW()
		WHERE id = $1 AND receipt_url IS NULL
	`
	_, err := r.db.Exec(ctx, query, paymentID, receiptURL)
	return err
}

func (r *PostgresRepository) collectPayments(ctx context.Context, rows pgx.Rows) ([]domain.Payment, error) {
	defer rows.Close()
	payments := make([]domain.Payment, 0)
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *payment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	ids := make([]uuid.UUID, 0, len(payments))
	for _, p := range payments {
		ids = append(ids, p.ID)
	}
	items, err := r.paymentItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range payments {
		payments[i].Items = items[payments[i].ID]
	}
	return payments, nil
}

// ListPaymentsByUser pages through one user's payments, newest first.
func (r *PostgresRepository) ListPaymentsByUser(ctx context.Context, userID uuid.UUID, opts domain.PaymentListOptions) ([]domain.Payment, int, error) {
	where := "p.user_id = $1"
	args := []any{userID}
	if opts.Status != "" {
		args = append(args, opts.Status)
		where += fmt.Sprintf(" AND p.status = $%d", len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM payments p WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, opts.Limit, offset(opts.Page, opts.Limit))
	query := fmt.Sprintf(`SELECT %s FROM payments p WHERE %s ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d`,
		paymentColumns, where, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	payments, err := r.collectPayments(ctx, rows)
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

func (r *PostgresRepository) GetUserPaymentStats(ctx context.Context, userID uuid.UUID) (*domain.PaymentStats, error) {
	var stats domain.PaymentStats
	query := `
		SELECT
			COALESCE(SUM(total_amount) FILTER (WHERE status = 'completed'), 0),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM payments
		WHERE user_id = $1
	`
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&stats.TotalPaid,
		&stats.CompletedCount,
		&stats.PendingCount,
		&stats.FailedCount,
	)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// ListPayments is the admin listing with payer details.
func (r *PostgresRepository) ListPayments(ctx context.Context, opts domain.PaymentListOptions) ([]domain.PaymentWithPayer, int, error) {
	where := []string{"1=1"}
	args := []any{}
	if opts.Status != "" {
		args = append(args, opts.Status)
		where = append(where, fmt.Sprintf("p.status = $%d", len(args)))
	}
	if term := strings.TrimSpace(opts.Search); term != "" {
		args = append(args, "%"+strings.ToLower(term)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(lower(p.reference) LIKE $%d OR lower(u.email) LIKE $%d OR lower(u.first_name || ' ' || u.last_name) LIKE $%d)",
			n, n, n,
		))
	}
	clause := strings.Join(where, " AND ")
	from := ` FROM payments p JOIN users u ON u.id = p.user_id WHERE ` + clause

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*)`+from, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, opts.Limit, offset(opts.Page, opts.Limit))
	query := fmt.Sprintf(`SELECT %s, u.first_name || ' ' || u.last_name, u.email, u.matric_number%s ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d`,
		paymentColumns, from, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]domain.PaymentWithPayer, 0)
	for rows.Next() {
		var (
			row domain.PaymentWithPayer
			raw []byte
		)
		targets := append(paymentScanTargets(&row.Payment, &raw), &row.PayerName, &row.PayerEmail, &row.MatricNumber)
		if err := rows.Scan(targets...); err != nil {
			return nil, 0, err
		}
		if len(raw) > 0 {
			row.GatewayResponse = json.RawMessage(raw)
		}
		out = append(out, row)
	}
	return out, total, rows.Err()
}

// ListStalePendingPayments returns pending intents created before olderThan
// that reached the gateway (a checkout was stored).
func (r *PostgresRepository) ListStalePendingPayments(ctx context.Context, olderThan time.Time, limit int) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments p
		WHERE p.status = 'pending' AND p.access_code IS NOT NULL AND p.created_at < $1
		ORDER BY p.created_at
		LIMIT $2`
	rows, err := r.db.Query(ctx, query, olderThan, limit)
	if err != nil {
		return nil, err
	}
	return r.collectPayments(ctx, rows)
}

func (r *PostgresRepository) ListCompletedPaymentsWithoutReceipt(ctx context.Context, limit int) ([]domain.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments p
		WHERE p.status = 'completed' AND p.receipt_url IS NULL
		ORDER BY p.paid_at
		LIMIT $1`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return r.collectPayments(ctx, rows)
}
