package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Routing keys published on the events exchange.
const (
	EventUserRegistered         = "user.registered"
	EventPasswordResetRequested = "password.reset_requested"
	EventPasswordChanged        = "password.changed"
	EventPaymentCompleted       = "payment.completed"
	EventFeeAssigned            = "fee.assigned"
)

// UserRegisteredEvent triggers the welcome and verification e-mail.
type UserRegisteredEvent struct {
	UserID            uuid.UUID `json:"user_id"`
	Email             string    `json:"email"`
	FirstName         string    `json:"first_name"`
	VerificationToken string    `json:"verification_token"`
	Timestamp         time.Time `json:"timestamp"`
}

// PasswordResetRequestedEvent carries the raw reset token to the mailer only.
type PasswordResetRequestedEvent struct {
	UserID     uuid.UUID `json:"user_id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	ResetToken string    `json:"reset_token"`
	ExpiresAt  time.Time `json:"expires_at"`
	Timestamp  time.Time `json:"timestamp"`
}

// PasswordChangedEvent notifies the owner of a password change.
type PasswordChangedEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentCompletedEvent is published once per completed payment.
type PaymentCompletedEvent struct {
	PaymentID  uuid.UUID       `json:"payment_id"`
	UserID     uuid.UUID       `json:"user_id"`
	Email      string          `json:"email"`
	FirstName  string          `json:"first_name"`
	Reference  string          `json:"reference"`
	Amount     decimal.Decimal `json:"amount"`
	PaidAt     time.Time       `json:"paid_at"`
	ReceiptURL string          `json:"receipt_url,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// FeeAssignedEvent is published per assigned student.
type FeeAssignedEvent struct {
	UserID    uuid.UUID       `json:"user_id"`
	Email     string          `json:"email"`
	FirstName string          `json:"first_name"`
	FeeName   string          `json:"fee_name"`
	Amount    decimal.Decimal `json:"amount"`
	DueDate   *time.Time      `json:"due_date,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
