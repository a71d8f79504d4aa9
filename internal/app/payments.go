/**
 * @description
 * The payment lifecycle engine. It turns a fee selection into exactly one
 * gateway checkout per logical request and drives each payment intent through
 * pending -> completed | failed from client polls, webhooks and the scheduler.
 *
 * Key features:
 * - Derived or client-supplied idempotency keys, backed by a unique constraint.
 * - Atomic creation of the payment and its item snapshot.
 * - Gateway calls bounded by a timeout; initialize timeouts fail the intent,
 *   verify timeouts leave it untouched.
 * - Completion side effects (receipt, assignments, audit, notification, event)
 *   run once, for the caller whose conditional update won.
 *
 * @dependencies
 * - internal/store: Repository and its sentinel errors.
 * - pkg/paystack: Gateway request and verification types.
 * - pkg/rabbitmq: Event publishing.
 * - go.uber.org/zap: Structured logging.
 */

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idorocodes/paxify-backend/internal/domain"
	"github.com/idorocodes/paxify-backend/internal/store"
	"github.com/idorocodes/paxify-backend/pkg/paystack"
	"github.com/idorocodes/paxify-backend/pkg/rabbitmq"
)

const (
	defaultGatewayTimeout = 15 * time.Second
	jobBatchSize          = 50
)

// PaymentGateway is the subset of the Paystack client the engine uses.
type PaymentGateway interface {
	InitializeTransaction(ctx context.Context, req paystack.InitializeRequest) (*paystack.Checkout, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystack.Verification, error)
	VerifySignature(body []byte, signature string) bool
}

// ReceiptGenerator stores receipts and serves them back.
type ReceiptGenerator interface {
	Generate(ctx context.Context, data domain.ReceiptData) (string, error)
	Document(ctx context.Context, data domain.ReceiptData, receiptURL string) ([]byte, error)
}

// Notifier writes in-app notifications for known users.
type Notifier interface {
	DispatchToUsers(ctx context.Context, users []domain.User, target domain.NotificationTarget, msg domain.NotificationMessage) (int, error)
}

// PaymentEngineConfig carries the engine's tunables.
type PaymentEngineConfig struct {
	CallbackURL    string
	GatewayTimeout time.Duration
}

// PaymentEngine owns the payment intent state machine.
type PaymentEngine struct {
	repo      store.Repository
	gateway   PaymentGateway
	receipts  ReceiptGenerator
	notifier  Notifier
	publisher rabbitmq.Publisher
	logger    *zap.Logger

	callbackURL    string
	gatewayTimeout time.Duration

	now          func() time.Time
	newReference func(time.Time) (string, error)
}

// NewPaymentEngine wires the engine. notifier and publisher may be nil.
func NewPaymentEngine(
	repo store.Repository,
	gateway PaymentGateway,
	receipts ReceiptGenerator,
	notifier Notifier,
	publisher rabbitmq.Publisher,
	logger *zap.Logger,
	cfg PaymentEngineConfig,
) *PaymentEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.GatewayTimeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	return &PaymentEngine{
		repo:           repo,
		gateway:        gateway,
		receipts:       receipts,
		notifier:       notifier,
		publisher:      publisher,
		logger:         logger.With(zap.String("component", "payment_engine")),
		callbackURL:    cfg.CallbackURL,
		gatewayTimeout: timeout,
		now:            time.Now,
		newReference:   NewPaymentReference,
	}
}

// Initialize opens a checkout for the selected fees, or replays the intent an
// earlier identical request created.
func (e *PaymentEngine) Initialize(ctx context.Context, in domain.InitializePaymentInput) (*domain.PaymentResult, error) {
	feeIDs := uniqueFeeIDs(in.FeeIDs)
	if len(feeIDs) == 0 {
		return nil, &ValidationError{Message: "at least one fee must be selected", Err: ErrInvalidFeeSelection}
	}
	clientKey := strings.TrimSpace(in.IdempotencyKey)
	if len(clientKey) > maxClientIdempotencyLen {
		return nil, NewValidationError("idempotency_key must be at most %d characters", maxClientIdempotencyLen)
	}

	key := DeriveIdempotencyKey(in.UserID, feeIDs, clientKey)
	existing, err := e.repo.FindPaymentByIdempotencyKey(ctx, key)
	switch {
	case err == nil:
		if existing.UserID != in.UserID {
			return nil, ErrIdempotencyKeyConflict
		}
		if existing.Status != domain.PaymentFailed {
			return e.replay(existing), nil
		}
		// A failed intent keeps its key. Retries live under "key:<suffix>",
		// and a live retry is replayed rather than opening another checkout.
		retry, err := e.repo.FindLatestPaymentByIdempotencyBase(ctx, key)
		switch {
		case err == nil:
			if retry.UserID != in.UserID {
				return nil, ErrIdempotencyKeyConflict
			}
			return e.replay(retry), nil
		case !errors.Is(err, store.ErrPaymentNotFound):
			return nil, fmt.Errorf("lookup retried intent: %w", err)
		}
		key, err = retryIdempotencyKey(key)
		if err != nil {
			return nil, err
		}
		e.logger.Info("previous attempt failed, creating new intent",
			zap.String("previous_reference", existing.Reference),
			zap.String("user_id", in.UserID.String()),
		)
	case errors.Is(err, store.ErrPaymentNotFound):
	default:
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}

	user, err := e.repo.FindUserByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	fees, err := e.repo.FindActiveFeeCategoriesByIDs(ctx, feeIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve fees: %w", err)
	}
	payment, err := buildPayment(in.UserID, key, feeIDs, fees)
	if err != nil {
		return nil, err
	}

	winner, err := e.persist(ctx, payment)
	if err != nil {
		return nil, err
	}
	if winner != nil {
		if winner.UserID != in.UserID {
			return nil, ErrIdempotencyKeyConflict
		}
		if winner.Status == domain.PaymentFailed {
			return nil, ErrGatewayUnavailable
		}
		return e.replay(winner), nil
	}

	return e.openCheckout(ctx, payment, user)
}

// buildPayment snapshots the resolved fees into a pending intent.
func buildPayment(userID uuid.UUID, key string, feeIDs []uuid.UUID, fees []domain.FeeCategory) (*domain.Payment, error) {
	byID := make(map[uuid.UUID]domain.FeeCategory, len(fees))
	for _, fee := range fees {
		byID[fee.ID] = fee
	}

	payment := &domain.Payment{
		ID:             uuid.New(),
		UserID:         userID,
		Currency:       domain.DefaultCurrency,
		IdempotencyKey: key,
		Status:         domain.PaymentPending,
		Items:          make([]domain.PaymentItem, 0, len(feeIDs)),
	}
	var missing []string
	for _, id := range feeIDs {
		fee, ok := byID[id]
		if !ok || !fee.IsActive {
			missing = append(missing, id.String())
			continue
		}
		payment.Items = append(payment.Items, domain.PaymentItem{
			ID:            uuid.New(),
			PaymentID:     payment.ID,
			FeeCategoryID: fee.ID,
			Name:          fee.Name,
			Amount:        fee.Amount,
		})
	}
	if len(missing) > 0 {
		return nil, &ValidationError{
			Message: "invalid or inactive fee selection: " + strings.Join(missing, ", "),
			Err:     ErrInvalidFeeSelection,
		}
	}

	payment.TotalAmount = payment.ItemsTotal()
	if !payment.TotalAmount.IsPositive() {
		return nil, &ValidationError{Message: "payment total must be greater than zero", Err: ErrInvalidFeeSelection}
	}
	if !payment.TotalAmount.Equal(payment.ItemsTotal()) {
		return nil, fmt.Errorf("payment total %s does not match items", payment.TotalAmount)
	}
	return payment, nil
}

// persist inserts the intent. When a concurrent request already inserted the
// same key, the stored winner is returned instead.
func (e *PaymentEngine) persist(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	for attempt := 0; attempt < 2; attempt++ {
		reference, err := e.newReference(e.now())
		if err != nil {
			return nil, err
		}
		payment.Reference = reference

		err = e.repo.CreatePaymentWithItems(ctx, payment)
		switch {
		case err == nil:
			return nil, nil
		case errors.Is(err, store.ErrDuplicateIdempotencyKey):
			winner, findErr := e.repo.FindPaymentByIdempotencyKey(ctx, payment.IdempotencyKey)
			if findErr != nil {
				return nil, fmt.Errorf("reload concurrent intent: %w", findErr)
			}
			e.logger.Info("concurrent initialize resolved to existing intent",
				zap.String("reference", winner.Reference),
			)
			return winner, nil
		case errors.Is(err, store.ErrDuplicateReference):
			e.logger.Warn("payment reference collision, regenerating", zap.String("reference", reference))
			continue
		default:
			return nil, fmt.Errorf("create payment: %w", err)
		}
	}
	return nil, errors.New("could not allocate a unique payment reference")
}

func (e *PaymentEngine) openCheckout(ctx context.Context, payment *domain.Payment, user *domain.User) (*domain.PaymentResult, error) {
	feeIDs := make([]string, 0, len(payment.Items))
	for _, item := range payment.Items {
		feeIDs = append(feeIDs, item.FeeCategoryID.String())
	}

	gatewayCtx, cancel := context.WithTimeout(ctx, e.gatewayTimeout)
	checkout, err := e.gateway.InitializeTransaction(gatewayCtx, paystack.InitializeRequest{
		Email:       user.Email,
		Amount:      payment.TotalAmount,
		Reference:   payment.Reference,
		CallbackURL: e.callbackURL,
		Metadata: map[string]any{
			"payment_id": payment.ID.String(),
			"user_id":    user.ID.String(),
			"fee_ids":    feeIDs,
		},
	})
	cancel()
	if err == nil && (checkout == nil || checkout.AuthorizationURL == "") {
		err = paystack.ErrMalformedResponse
	}
	if err != nil {
		e.logger.Error("gateway initialize failed",
			zap.String("reference", payment.Reference),
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err),
		)
		blob, _ := json.Marshal(map[string]string{"error": err.Error()})
		// The intent must not stay pending after the caller has gone away.
		if _, markErr := e.repo.MarkPaymentFailed(context.WithoutCancel(ctx), payment.ID, blob); markErr != nil {
			e.logger.Error("failed to mark payment failed",
				zap.String("reference", payment.Reference),
				zap.Error(markErr),
			)
		}
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if checkout.Reference != "" && checkout.Reference != payment.Reference {
		e.logger.Warn("gateway echoed a different reference",
			zap.String("reference", payment.Reference),
			zap.String("gateway_reference", checkout.Reference),
		)
	}

	blob, err := json.Marshal(domain.CheckoutDetails{
		AuthorizationURL: checkout.AuthorizationURL,
		AccessCode:       checkout.AccessCode,
		Reference:        payment.Reference,
	})
	if err != nil {
		return nil, err
	}
	if err := e.repo.SavePaymentCheckout(context.WithoutCancel(ctx), payment.ID, checkout.AccessCode, blob); err != nil {
		// The webhook still reconciles by reference, so the checkout is usable.
		e.logger.Error("failed to store checkout",
			zap.String("reference", payment.Reference),
			zap.Error(err),
		)
	}
	payment.AccessCode = &checkout.AccessCode
	payment.GatewayResponse = blob

	e.logger.Info("payment initialized",
		zap.String("reference", payment.Reference),
		zap.String("payment_id", payment.ID.String()),
		zap.String("user_id", payment.UserID.String()),
		zap.String("amount", payment.TotalAmount.StringFixed(2)),
	)
	return domain.NewPaymentResult(payment), nil
}

func (e *PaymentEngine) replay(p *domain.Payment) *domain.PaymentResult {
	result := domain.NewPaymentResult(p)
	result.Replayed = true
	switch p.Status {
	case domain.PaymentCompleted:
		result.Message = "Payment already completed"
	case domain.PaymentPending:
		result.Message = "Payment already initialized"
	}
	e.logger.Info("idempotent replay",
		zap.String("reference", p.Reference),
		zap.String("status", p.Status),
	)
	return result
}

// ReconcileByReference brings the intent in line with the gateway's view.
// Terminal intents are returned unchanged.
func (e *PaymentEngine) ReconcileByReference(ctx context.Context, reference string) (*domain.PaymentResult, error) {
	payment, err := e.repo.FindPaymentByReference(ctx, strings.TrimSpace(reference))
	if err != nil {
		return nil, err
	}
	return e.reconcile(ctx, payment)
}

// VerifyForUser reconciles a payment on behalf of its owner.
func (e *PaymentEngine) VerifyForUser(ctx context.Context, userID uuid.UUID, reference string) (*domain.PaymentResult, error) {
	payment, err := e.repo.FindPaymentByReference(ctx, strings.TrimSpace(reference))
	if err != nil {
		return nil, err
	}
	if payment.UserID != userID {
		return nil, store.ErrPaymentNotFound
	}
	return e.reconcile(ctx, payment)
}

func (e *PaymentEngine) reconcile(ctx context.Context, payment *domain.Payment) (*domain.PaymentResult, error) {
	switch payment.Status {
	case domain.PaymentCompleted:
		return domain.NewPaymentResult(payment), nil
	case domain.PaymentFailed:
		e.flagLateSuccess(ctx, payment)
		return domain.NewPaymentResult(payment), nil
	}

	verifyCtx, cancel := context.WithTimeout(ctx, e.gatewayTimeout)
	verification, err := e.gateway.VerifyTransaction(verifyCtx, payment.Reference)
	cancel()
	if err != nil {
		e.logger.Warn("gateway verify failed, leaving payment pending",
			zap.String("reference", payment.Reference),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	switch {
	case verification.Succeeded():
		expected := paystack.ToKobo(payment.TotalAmount)
		if verification.AmountKobo != expected {
			e.logger.Error("verified amount does not match intent",
				zap.String("reference", payment.Reference),
				zap.Int64("expected_kobo", expected),
				zap.Int64("received_kobo", verification.AmountKobo),
			)
			blob, _ := json.Marshal(map[string]any{
				"error":         "amount_mismatch",
				"expected_kobo": expected,
				"received_kobo": verification.AmountKobo,
				"status":        verification.Status,
			})
			if err := e.fail(ctx, payment, blob); err != nil {
				return nil, err
			}
			break
		}
		if err := e.complete(ctx, payment, verification); err != nil {
			return nil, err
		}
	case verification.Failed():
		if err := e.fail(ctx, payment, verification.Raw); err != nil {
			return nil, err
		}
	default:
		// Abandoned checkouts stay pending; the payer can still complete them.
		e.logger.Info("payment still in flight at gateway",
			zap.String("reference", payment.Reference),
			zap.String("gateway_status", verification.Status),
		)
		return domain.NewPaymentResult(payment), nil
	}

	fresh, err := e.repo.FindPaymentByID(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	return domain.NewPaymentResult(fresh), nil
}

func (e *PaymentEngine) fail(ctx context.Context, payment *domain.Payment, gatewayResponse json.RawMessage) error {
	changed, err := e.repo.MarkPaymentFailed(ctx, payment.ID, gatewayResponse)
	if err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}
	if changed {
		e.logger.Info("payment failed", zap.String("reference", payment.Reference))
	}
	return nil
}

func (e *PaymentEngine) complete(ctx context.Context, payment *domain.Payment, v *paystack.Verification) error {
	paidAt := e.now().UTC()
	if v.PaidAt != nil && !v.PaidAt.IsZero() {
		paidAt = v.PaidAt.UTC()
	}
	won, err := e.repo.MarkPaymentCompleted(ctx, payment.ID, store.MarkPaymentCompletedParams{
		Channel:         v.Channel,
		PaidAt:          paidAt,
		GatewayResponse: v.Raw,
	})
	if err != nil {
		return fmt.Errorf("mark payment completed: %w", err)
	}
	if !won {
		// Another reconcile finished first; its side effects already ran.
		return nil
	}

	e.logger.Info("payment completed",
		zap.String("reference", payment.Reference),
		zap.String("payment_id", payment.ID.String()),
	)
	payment.Status = domain.PaymentCompleted
	payment.PaidAt = &paidAt
	if v.Channel != "" {
		payment.Channel = &v.Channel
	}
	e.afterCompletion(context.WithoutCancel(ctx), payment)
	return nil
}

// afterCompletion runs the best-effort side effects of a completed payment.
// None of them can undo the completion.
func (e *PaymentEngine) afterCompletion(ctx context.Context, payment *domain.Payment) {
	log := e.logger.With(zap.String("reference", payment.Reference))

	user, err := e.repo.FindUserByID(ctx, payment.UserID)
	if err != nil {
		log.Error("failed to load payer", zap.Error(err))
		return
	}

	receiptURL := e.storeReceipt(ctx, payment, user)

	feeIDs := make([]uuid.UUID, 0, len(payment.Items))
	for _, item := range payment.Items {
		feeIDs = append(feeIDs, item.FeeCategoryID)
	}
	if settled, err := e.repo.MarkFeeAssignmentsPaid(ctx, payment.UserID, feeIDs, payment.ID); err != nil {
		log.Error("failed to settle fee assignments", zap.Error(err))
	} else if settled > 0 {
		log.Info("fee assignments settled", zap.Int64("count", settled))
	}

	details, _ := json.Marshal(map[string]any{
		"reference":    payment.Reference,
		"total_amount": payment.TotalAmount,
	})
	if err := e.repo.CreateAuditLog(ctx, domain.AuditLog{
		UserID:     &payment.UserID,
		Action:     "payment_completed",
		EntityType: "payment",
		EntityID:   &payment.ID,
		Details:    details,
	}); err != nil {
		log.Error("failed to write audit log", zap.Error(err))
	}

	if e.notifier != nil {
		_, err := e.notifier.DispatchToUsers(ctx,
			[]domain.User{*user},
			domain.NotificationTarget{Type: domain.TargetCustomGroup, UserIDs: []uuid.UUID{payment.UserID}},
			domain.NotificationMessage{
				Type:    domain.NotificationPaymentCompleted,
				Title:   "Payment successful",
				Message: fmt.Sprintf("Your payment of NGN %s (%s) was successful.", payment.TotalAmount.StringFixed(2), payment.Reference),
				Metadata: map[string]any{
					"payment_id": payment.ID.String(),
					"reference":  payment.Reference,
				},
			},
		)
		if err != nil {
			log.Error("failed to notify payer", zap.Error(err))
		}
	}

	if e.publisher != nil {
		event := domain.PaymentCompletedEvent{
			PaymentID:  payment.ID,
			UserID:     payment.UserID,
			Email:      user.Email,
			FirstName:  user.FirstName,
			Reference:  payment.Reference,
			Amount:     payment.TotalAmount,
			PaidAt:     *payment.PaidAt,
			ReceiptURL: receiptURL,
			Timestamp:  e.now().UTC(),
		}
		if err := e.publisher.Publish(ctx, domain.EventPaymentCompleted, event); err != nil {
			log.Warn("failed to publish payment completed event", zap.Error(err))
		}
	}
}

func (e *PaymentEngine) storeReceipt(ctx context.Context, payment *domain.Payment, user *domain.User) string {
	if e.receipts == nil {
		return ""
	}
	url, err := e.receipts.Generate(ctx, receiptData(payment, user))
	if err != nil {
		e.logger.Error("receipt generation failed",
			zap.String("reference", payment.Reference),
			zap.Error(err),
		)
		return ""
	}
	if err := e.repo.SetPaymentReceiptURL(ctx, payment.ID, url); err != nil {
		e.logger.Error("failed to store receipt url",
			zap.String("reference", payment.Reference),
			zap.Error(err),
		)
		return ""
	}
	payment.ReceiptURL = &url
	return url
}

// flagLateSuccess logs when the gateway reports success for an intent that was
// already failed. The intent stays failed; settlement is a manual follow-up.
func (e *PaymentEngine) flagLateSuccess(ctx context.Context, payment *domain.Payment) {
	verifyCtx, cancel := context.WithTimeout(ctx, e.gatewayTimeout)
	defer cancel()
	verification, err := e.gateway.VerifyTransaction(verifyCtx, payment.Reference)
	if err != nil || !verification.Succeeded() {
		return
	}
	e.logger.Warn("gateway reports success for a failed payment; manual review required",
		zap.String("reference", payment.Reference),
		zap.String("payment_id", payment.ID.String()),
		zap.Int64("amount_kobo", verification.AmountKobo),
	)
}

// HandleWebhook authenticates a gateway delivery and reconciles charge.success
// events. Once authenticated, every delivery is acknowledged.
func (e *PaymentEngine) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !e.gateway.VerifySignature(body, signature) {
		e.logger.Warn("rejected webhook with invalid signature")
		return ErrInvalidSignature
	}

	event, err := paystack.ParseWebhookEvent(body)
	if err != nil {
		e.logger.Warn("ignoring malformed webhook payload", zap.Error(err))
		return nil
	}
	if event.Event != paystack.EventChargeSuccess {
		e.logger.Info("ignoring webhook event", zap.String("event", event.Event))
		return nil
	}
	if event.Data.Reference == "" {
		e.logger.Warn("charge.success webhook without reference")
		return nil
	}

	if _, err := e.ReconcileByReference(ctx, event.Data.Reference); err != nil {
		level := e.logger.Error
		if errors.Is(err, store.ErrPaymentNotFound) {
			level = e.logger.Warn
		}
		level("webhook reconciliation failed",
			zap.String("reference", event.Data.Reference),
			zap.Error(err),
		)
	}
	return nil
}

// ListUserPayments returns a page of the user's payments with their totals.
func (e *PaymentEngine) ListUserPayments(ctx context.Context, userID uuid.UUID, opts domain.PaymentListOptions) (*domain.PaymentHistory, error) {
	opts.Page, opts.Limit = domain.NormalizePage(opts.Page, opts.Limit, 10, 100)
	payments, total, err := e.repo.ListPaymentsByUser(ctx, userID, opts)
	if err != nil {
		return nil, err
	}
	stats, err := e.repo.GetUserPaymentStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &domain.PaymentHistory{
		Payments:   payments,
		Stats:      *stats,
		Pagination: domain.NewPagination(opts.Page, opts.Limit, total),
	}, nil
}

// GetUserPayment returns one of the user's payments with its items.
func (e *PaymentEngine) GetUserPayment(ctx context.Context, userID, paymentID uuid.UUID) (*domain.Payment, error) {
	payment, err := e.repo.FindPaymentByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.UserID != userID {
		return nil, store.ErrPaymentNotFound
	}
	return payment, nil
}

// ReceiptPDF returns the receipt document of a completed payment.
func (e *PaymentEngine) ReceiptPDF(ctx context.Context, userID, paymentID uuid.UUID) ([]byte, string, error) {
	payment, err := e.GetUserPayment(ctx, userID, paymentID)
	if err != nil {
		return nil, "", err
	}
	if payment.Status != domain.PaymentCompleted {
		return nil, "", ErrReceiptUnavailable
	}
	if e.receipts == nil {
		return nil, "", errors.New("receipts are not configured")
	}
	user, err := e.repo.FindUserByID(ctx, payment.UserID)
	if err != nil {
		return nil, "", err
	}
	receiptURL := ""
	if payment.ReceiptURL != nil {
		receiptURL = *payment.ReceiptURL
	}
	doc, err := e.receipts.Document(ctx, receiptData(payment, user), receiptURL)
	if err != nil {
		return nil, "", err
	}
	return doc, "receipt-" + payment.Reference + ".pdf", nil
}

// ReconcileStalePayments re-verifies pending intents older than the cutoff.
func (e *PaymentEngine) ReconcileStalePayments(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := e.repo.ListStalePendingPayments(ctx, e.now().Add(-olderThan), jobBatchSize)
	if err != nil {
		return 0, err
	}
	resolved := 0
	for i := range stale {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}
		result, err := e.reconcile(ctx, &stale[i])
		if err != nil {
			e.logger.Warn("stale payment reconciliation failed",
				zap.String("reference", stale[i].Reference),
				zap.Error(err),
			)
			continue
		}
		if result.Status != domain.PaymentPending {
			resolved++
		}
	}
	return resolved, nil
}

// BackfillReceipts generates receipts for completed payments that have none.
func (e *PaymentEngine) BackfillReceipts(ctx context.Context) (int, error) {
	if e.receipts == nil {
		return 0, nil
	}
	payments, err := e.repo.ListCompletedPaymentsWithoutReceipt(ctx, jobBatchSize)
	if err != nil {
		return 0, err
	}
	stored := 0
	for i := range payments {
		if ctx.Err() != nil {
			return stored, ctx.Err()
		}
		user, err := e.repo.FindUserByID(ctx, payments[i].UserID)
		if err != nil {
			e.logger.Warn("receipt backfill skipped", zap.String("reference", payments[i].Reference), zap.Error(err))
			continue
		}
		if e.storeReceipt(ctx, &payments[i], user) != "" {
			stored++
		}
	}
	return stored, nil
}

func receiptData(payment *domain.Payment, user *domain.User) domain.ReceiptData {
	data := domain.ReceiptData{
		PaymentID:  payment.ID,
		Reference:  payment.Reference,
		PayerName:  user.FullName(),
		PayerEmail: user.Email,
		Items:      payment.Items,
		Total:      payment.TotalAmount,
		Currency:   payment.Currency,
	}
	if payment.PaidAt != nil {
		data.PaidAt = *payment.PaidAt
	}
	if user.MatricNumber != nil {
		data.MatricNumber = *user.MatricNumber
	}
	if user.Department != nil {
		data.Department = *user.Department
	}
	if payment.Channel != nil {
		data.Channel = *payment.Channel
	}
	return data
}
