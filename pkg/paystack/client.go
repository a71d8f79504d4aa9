/**
 * @description
 * This package provides a client for the Paystack transaction API. It covers the
 * calls the payment engine depends on: opening a hosted checkout, verifying a
 * transaction by reference, and authenticating webhook deliveries.
 *
 * @notes
 * - Paystack amounts are integers in kobo. Callers pass naira decimals and the
 *   client converts.
 * - Webhooks are signed with HMAC-SHA512 over the raw body using the secret key,
 *   delivered hex-encoded in the x-paystack-signature header.
 */
package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultBaseURL  = "https://api.paystack.co"
	SignatureHeader = "x-paystack-signature"

	StatusSuccess    = "success"
	StatusFailed     = "failed"
	StatusReversed   = "reversed"
	StatusAbandoned  = "abandoned"
	StatusOngoing    = "ongoing"
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusQueued     = "queued"

	EventChargeSuccess = "charge.success"
)

// ErrMalformedResponse is returned when Paystack answers 2xx with an unusable body.
var ErrMalformedResponse = errors.New("paystack returned a malformed response")

// APIError is a non-2xx answer from Paystack.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paystack API error: status %d: %s", e.StatusCode, e.Message)
}

// Client is a client for the Paystack API.
type Client struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	HTTPClient    *http.Client
}

// NewClient creates a new Paystack client. webhookSecret defaults to secretKey.
func NewClient(baseURL, secretKey, webhookSecret string, timeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if webhookSecret == "" {
		webhookSecret = secretKey
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL:       strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		SecretKey:     secretKey,
		WebhookSecret: webhookSecret,
		HTTPClient:    &http.Client{Timeout: timeout},
	}
}

// InitializeRequest opens a hosted checkout.
type InitializeRequest struct {
	Email       string
	Amount      decimal.Decimal
	Reference   string
	CallbackURL string
	Metadata    map[string]any
}

type initializePayload struct {
	Email       string         `json:"email"`
	Amount      int64          `json:"amount"`
	Reference   string         `json:"reference"`
	CallbackURL string         `json:"callback_url,omitempty"`
	Currency    string         `json:"currency,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Checkout is the hosted checkout Paystack opened.
type Checkout struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Verification is Paystack's authoritative view of a transaction.
type Verification struct {
	Reference       string          `json:"reference"`
	Status          string          `json:"status"`
	AmountKobo      int64           `json:"amount"`
	Currency        string          `json:"currency"`
	Channel         string          `json:"channel"`
	GatewayResponse string          `json:"gateway_response"`
	PaidAt          *time.Time      `json:"paid_at"`
	FeesKobo        int64           `json:"fees"`
	Raw             json.RawMessage `json:"-"`
}

// Amount returns the verified amount in naira.
func (v *Verification) Amount() decimal.Decimal {
	return FromKobo(v.AmountKobo)
}

// Succeeded reports whether the charge went through.
func (v *Verification) Succeeded() bool {
	return v.Status == StatusSuccess
}

// Failed reports whether the charge definitively did not go through.
func (v *Verification) Failed() bool {
	return v.Status == StatusFailed || v.Status == StatusReversed
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// ToKobo converts a naira amount to kobo, rounding to the nearest kobo.
func ToKobo(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromKobo converts kobo to naira.
func FromKobo(kobo int64) decimal.Decimal {
	return decimal.New(kobo, -2)
}

// InitializeTransaction opens a hosted checkout for the given amount and reference.
func (c *Client) InitializeTransaction(ctx context.Context, req InitializeRequest) (*Checkout, error) {
	if strings.TrimSpace(req.Reference) == "" {
		return nil, fmt.Errorf("reference is required")
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive")
	}

	payload := initializePayload{
		Email:       req.Email,
		Amount:      ToKobo(req.Amount),
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
		Currency:    "NGN",
		Metadata:    req.Metadata,
	}

	var checkout Checkout
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", payload, &checkout); err != nil {
		return nil, err
	}
	if checkout.AuthorizationURL == "" {
		return nil, ErrMalformedResponse
	}
	if checkout.Reference == "" {
		checkout.Reference = req.Reference
	}
	return &checkout, nil
}

// VerifyTransaction fetches the authoritative status for a reference.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*Verification, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("reference is required")
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &raw); err != nil {
		return nil, err
	}

	var verification Verification
	if err := json.Unmarshal(raw, &verification); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if verification.Status == "" {
		return nil, ErrMalformedResponse
	}
	verification.Raw = raw
	return &verification, nil
}

// VerifySignature checks the webhook HMAC in constant time.
func (c *Client) VerifySignature(body []byte, signature string) bool {
	return ValidSignature(c.WebhookSecret, body, signature)
}

// ValidSignature reports whether signature is the hex HMAC-SHA512 of body under secret.
func ValidSignature(secret string, body []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	if secret == "" || signature == "" {
		return false
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(provided, Sign(secret, body))
}

// Sign returns the raw HMAC-SHA512 of body under secret.
func Sign(secret string, body []byte) []byte {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request to paystack: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read paystack response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(respBody, &env)

	if resp.StatusCode >= 400 {
		message := strings.TrimSpace(env.Message)
		if decodeErr != nil || message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: message}
	}
	if decodeErr != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, decodeErr)
	}
	if !env.Status {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return ErrMalformedResponse
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// WebhookEvent is the envelope Paystack posts to the webhook endpoint.
type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"data"`
}

// ParseWebhookEvent decodes a webhook body.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &event, nil
}
