/**
 * @description
 * Response helpers for the API. Every body uses the same envelope:
 * {success, message, data} on success and {success:false, message} on failure.
 * Internal error detail is added under "error" outside production only.
 *
 * @dependencies
 * - internal/app, internal/store: business and storage sentinels mapped to statuses.
 */

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/idorocodes/paxify-backend/internal/app"
	"github.com/idorocodes/paxify-backend/internal/store"
)

type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// responder writes envelopes and hides internal detail in production.
type responder struct {
	production bool
	logger     *zap.Logger
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func writePDF(w http.ResponseWriter, filename string, doc []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

// fail writes a failure envelope with an explicit status and message.
func (rs responder) fail(w http.ResponseWriter, status int, message string, cause error) {
	body := envelope{Success: false, Message: message}
	if cause != nil && !rs.production {
		body.Error = cause.Error()
	}
	writeJSON(w, status, body)
}

// writeError maps err to a status and a client-safe message.
func (rs responder) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classify(err)
	if status >= http.StatusInternalServerError {
		rs.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	rs.fail(w, status, message, err)
}

func classify(err error) (int, string) {
	var validation *app.ValidationError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Message
	case errors.Is(err, app.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, app.ErrInvalidToken):
		return http.StatusUnauthorized, "Invalid or expired token"
	case errors.Is(err, app.ErrInvalidSignature):
		return http.StatusUnauthorized, "Invalid signature"
	case errors.Is(err, app.ErrForbidden):
		return http.StatusForbidden, "Admin access required"
	case errors.Is(err, app.ErrAccountInactive):
		return http.StatusForbidden, "Account is inactive"
	case errors.Is(err, app.ErrReceiptUnavailable):
		return http.StatusBadRequest, "Receipt is only available for completed payments"
	case errors.Is(err, app.ErrNoTargets):
		return http.StatusNotFound, "No matching recipients"
	case errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, store.ErrPaymentNotFound):
		return http.StatusNotFound, "Payment not found"
	case errors.Is(err, store.ErrFeeCategoryNotFound):
		return http.StatusNotFound, "Fee category not found"
	case errors.Is(err, store.ErrFacultyNotFound):
		return http.StatusNotFound, "Faculty not found"
	case errors.Is(err, store.ErrDepartmentNotFound):
		return http.StatusNotFound, "Department not found"
	case errors.Is(err, store.ErrUserExists):
		return http.StatusConflict, "An account with these details already exists"
	case errors.Is(err, app.ErrIdempotencyKeyConflict):
		return http.StatusConflict, "Idempotency key already used"
	case errors.Is(err, store.ErrDuplicateName):
		return http.StatusConflict, "Name already exists"
	case errors.Is(err, app.ErrGatewayUnavailable):
		return http.StatusBadGateway, "Payment service is temporarily unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
