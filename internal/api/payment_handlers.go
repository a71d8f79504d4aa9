package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idorocodes/paxify-backend/internal/app"
	"github.com/idorocodes/paxify-backend/internal/domain"
	"github.com/idorocodes/paxify-backend/pkg/paystack"
)

// IdempotencyKeyHeader may carry the client key instead of the body field.
const IdempotencyKeyHeader = "Idempotency-Key"

type initializePaymentRequest struct {
	FeeIDs         []uuid.UUID `json:"fee_ids" validate:"required,min=1"`
	IdempotencyKey string      `json:"idempotency_key" validate:"omitempty,max=200"`
}

// InitializePaymentHandler opens a checkout for the selected fees. A repeated
// request answers with the intent the first one created.
func (h *Handlers) InitializePaymentHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	var req initializePaymentRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	key := req.IdempotencyKey
	if strings.TrimSpace(key) == "" {
		key = r.Header.Get(IdempotencyKeyHeader)
	}

	result, err := h.svc.Payments.Initialize(r.Context(), domain.InitializePaymentInput{
		UserID:         user.ID,
		FeeIDs:         req.FeeIDs,
		IdempotencyKey: key,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if result.Replayed {
		writeSuccess(w, http.StatusOK, result.Message, result)
		return
	}
	writeSuccess(w, http.StatusCreated, "Payment initialized", result)
}

// VerifyPaymentHandler reconciles one of the caller's payments with the gateway.
func (h *Handlers) VerifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	reference := strings.TrimSpace(chi.URLParam(r, "reference"))
	if reference == "" {
		h.writeError(w, r, app.NewValidationError("reference is required"))
		return
	}
	result, err := h.svc.Payments.VerifyForUser(r.Context(), user.ID, reference)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", result)
}

// PaystackWebhookHandler accepts gateway deliveries. Authenticated deliveries
// are always acknowledged with 200 so the gateway stops retrying.
func (h *Handlers) PaystackWebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	// Reconciliation finishes even if the gateway hangs up.
	ctx := context.WithoutCancel(r.Context())
	err = h.svc.Payments.HandleWebhook(ctx, body, r.Header.Get(paystack.SignatureHeader))
	if errors.Is(err, app.ErrInvalidSignature) {
		h.fail(w, http.StatusUnauthorized, "Invalid signature", nil)
		return
	}
	if err != nil {
		h.logger.Error("webhook handling failed", zap.Error(err))
	}
	writeSuccess(w, http.StatusOK, "", nil)
}

func (h *Handlers) ListPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	opts, err := paymentListOptions(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	history, err := h.svc.Payments.ListUserPayments(r.Context(), user.ID, opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", history)
}

func (h *Handlers) GetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	paymentID, err := uuidParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	payment, err := h.svc.Payments.GetUserPayment(r.Context(), user.ID, paymentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "", payment)
}

// ReceiptHandler streams the receipt PDF of a completed payment.
func (h *Handlers) ReceiptHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	paymentID, err := uuidParam(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	doc, filename, err := h.svc.Payments.ReceiptPDF(r.Context(), user.ID, paymentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writePDF(w, filename, doc)
}

func paymentListOptions(r *http.Request) (domain.PaymentListOptions, error) {
	page, limit, err := pageQuery(r)
	if err != nil {
		return domain.PaymentListOptions{}, err
	}
	q := r.URL.Query()
	return domain.PaymentListOptions{
		Page:   page,
		Limit:  limit,
		Status: strings.TrimSpace(q.Get("status")),
		Search: strings.TrimSpace(q.Get("search")),
	}, nil
}
