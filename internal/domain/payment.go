/**
 * @description
 * Payment intent models. A Payment is one attempt to collect a fixed total
 * from one user for a set of fee categories; its PaymentItems snapshot the
 * fee amounts at creation time.
 *
 * @notes
 * - Status only moves pending -> completed or pending -> failed.
 * - A failed intent is never reused. A retry creates a new Payment.
 * - Amounts are naira decimals; gateway calls convert to kobo.
 */

package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// total_amount and friends are emitted as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

const DefaultCurrency = "NGN"

// Payment maps to the `payments` table.
type Payment struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Currency        string          `json:"currency"`
	Reference       string          `json:"reference"`
	IdempotencyKey  string          `json:"-"`
	Status          string          `json:"status"`
	AccessCode      *string         `json:"-"`
	GatewayResponse json.RawMessage `json:"-"`
	Channel         *string         `json:"channel,omitempty"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	ReceiptURL      *string         `json:"receipt_url,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Items           []PaymentItem   `json:"items,omitempty"`
}

// IsTerminal reports whether the intent can no longer change status.
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentCompleted || p.Status == PaymentFailed
}

// ItemsTotal sums the snapshotted item amounts.
func (p *Payment) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range p.Items {
		total = total.Add(item.Amount)
	}
	return total
}

// Checkout reads the stored checkout details back from the gateway response blob.
func (p *Payment) Checkout() CheckoutDetails {
	var details CheckoutDetails
	if len(p.GatewayResponse) == 0 {
		return details
	}
	if err := json.Unmarshal(p.GatewayResponse, &details); err != nil {
		return CheckoutDetails{}
	}
	if details.AuthorizationURL == "" && details.Data != nil {
		return *details.Data
	}
	return details
}

// CheckoutDetails is the part of the gateway response kept for pending replays.
type CheckoutDetails struct {
	AuthorizationURL string           `json:"authorization_url,omitempty"`
	AccessCode       string           `json:"access_code,omitempty"`
	Reference        string           `json:"reference,omitempty"`
	Error            string           `json:"error,omitempty"`
	Data             *CheckoutDetails `json:"data,omitempty"`
}

// PaymentItem binds a payment to one fee category at a snapshotted amount.
type PaymentItem struct {
	ID            uuid.UUID       `json:"id"`
	PaymentID     uuid.UUID       `json:"payment_id"`
	FeeCategoryID uuid.UUID       `json:"fee_category_id"`
	Name          string          `json:"name"`
	Amount        decimal.Decimal `json:"amount"`
}

// InitializePaymentInput is what the engine needs to open a checkout.
type InitializePaymentInput struct {
	UserID         uuid.UUID
	FeeIDs         []uuid.UUID
	IdempotencyKey string
}

// PaymentResult is the engine's answer for initialize and verify calls.
type PaymentResult struct {
	PaymentID        uuid.UUID       `json:"payment_id"`
	Reference        string          `json:"reference"`
	Status           string          `json:"status"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	AuthorizationURL *string         `json:"authorization_url,omitempty"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	ReceiptURL       *string         `json:"receipt_url,omitempty"`
	Items            []PaymentItem   `json:"items,omitempty"`
	Replayed         bool            `json:"-"`
	Message          string          `json:"-"`
}

// NewPaymentResult builds a result from a stored payment.
func NewPaymentResult(p *Payment) *PaymentResult {
	result := &PaymentResult{
		PaymentID:   p.ID,
		Reference:   p.Reference,
		Status:      p.Status,
		TotalAmount: p.TotalAmount,
		PaidAt:      p.PaidAt,
		ReceiptURL:  p.ReceiptURL,
		Items:       p.Items,
	}
	if p.Status == PaymentPending {
		if url := p.Checkout().AuthorizationURL; url != "" {
			result.AuthorizationURL = &url
		}
	}
	return result
}

// PaymentListOptions filters payment listings.
type PaymentListOptions struct {
	Page   int
	Limit  int
	Status string
	Search string
}

// PaymentStats summarizes a user's payment history.
type PaymentStats struct {
	TotalPaid      decimal.Decimal `json:"total_paid"`
	CompletedCount int             `json:"completed_count"`
	PendingCount   int             `json:"pending_count"`
	FailedCount    int             `json:"failed_count"`
}

// PaymentWithPayer is an admin listing row.
type PaymentWithPayer struct {
	Payment
	PayerName    string  `json:"payer_name"`
	PayerEmail   string  `json:"payer_email"`
	MatricNumber *string `json:"matric_number,omitempty"`
}

// ReceiptData is everything needed to render a receipt.
type ReceiptData struct {
	PaymentID    uuid.UUID
	Reference    string
	PaidAt       time.Time
	PayerName    string
	PayerEmail   string
	MatricNumber string
	Department   string
	Channel      string
	Items        []PaymentItem
	Total        decimal.Decimal
	Currency     string
}

// Pagination is the page envelope for list responses.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes total pages for a listing.
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// NormalizePage clamps page and limit to sane bounds.
func NormalizePage(page, limit, defaultLimit, maxLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

// PaymentHistory is a page of a user's payments with their running totals.
type PaymentHistory struct {
	Payments   []Payment    `json:"payments"`
	Stats      PaymentStats `json:"stats"`
	Pagination Pagination   `json:"pagination"`
}
