package app

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidFeeSelection    = errors.New("one or more selected fees are invalid or inactive")
	ErrIdempotencyKeyConflict = errors.New("idempotency key belongs to another payment")
	ErrGatewayUnavailable     = errors.New("payment gateway is unavailable")
	ErrInvalidSignature       = errors.New("invalid webhook signature")
	ErrReceiptUnavailable     = errors.New("receipt is only available for completed payments")
	ErrNoTargets              = errors.New("no matching recipients")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrAccountInactive        = errors.New("account is inactive")
	ErrInvalidToken           = errors.New("invalid or expired token")
	ErrForbidden              = errors.New("admin access required")
)

// ValidationError is a caller mistake reported before anything is persisted.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError formats a ValidationError.
func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
