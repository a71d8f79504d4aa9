package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/idorocodes/paxify-backend/internal/domain"
	"github.com/idorocodes/paxify-backend/pkg/mail"
)

type senderStub struct {
	sent []mail.Message
	err  error
}

func (s *senderStub) Send(ctx context.Context, msg mail.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return body
}

func TestMailHandler_PasswordResetLinksToFrontend(t *testing.T) {
	sender := &senderStub{}
	h := NewMailEventHandler(sender, "https://paxify.test/", nil)

	ok := h.HandlePasswordResetRequested(mustJSON(t, domain.PasswordResetRequestedEvent{
		UserID:     uuid.New(),
		Email:      "ada@students.test",
		FirstName:  "Ada",
		ResetToken: "abc123",
	}))

	if !ok || len(sender.sent) != 1 {
		t.Fatalf("expected one e-mail, ack=%v sent=%d", ok, len(sender.sent))
	}
	if !strings.Contains(sender.sent[0].HTML, "https://paxify.test/reset-password?token=abc123") {
		t.Fatalf("reset link missing from body: %s", sender.sent[0].HTML)
	}
}

func TestMailHandler_PaymentCompletedIncludesReceipt(t *testing.T) {
	sender := &senderStub{}
	h := NewMailEventHandler(sender, "https://paxify.test", nil)

	ok := h.HandlePaymentCompleted(mustJSON(t, domain.PaymentCompletedEvent{
		Email:      "ada@students.test",
		FirstName:  "Ada",
		Reference:  "PAX-1-abcd1234",
		Amount:     decimal.NewFromInt(8000),
		PaidAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		ReceiptURL: "https://receipts.test/PAX-1-abcd1234.pdf",
	}))

	if !ok || len(sender.sent) != 1 {
		t.Fatal("expected one e-mail")
	}
	msg := sender.sent[0]
	if !strings.Contains(msg.Subject, "PAX-1-abcd1234") || !strings.Contains(msg.Text, "8000.00") {
		t.Fatalf("unexpected message %+v", msg)
	}
	if !strings.Contains(msg.HTML, "https://receipts.test/PAX-1-abcd1234.pdf") {
		t.Fatal("expected receipt link in body")
	}
}

func TestMailHandler_AckAndRetrySemantics(t *testing.T) {
	h := NewMailEventHandler(&senderStub{}, "https://paxify.test", nil)
	if !h.HandleUserRegistered([]byte("{not json")) {
		t.Fatal("malformed messages must be acknowledged")
	}
	if !h.HandlePasswordChanged(mustJSON(t, domain.PasswordChangedEvent{FirstName: "Ada"})) {
		t.Fatal("messages without a recipient must be acknowledged")
	}

	failing := NewMailEventHandler(&senderStub{err: errors.New("smtp down")}, "https://paxify.test", nil)
	if failing.HandlePasswordChanged(mustJSON(t, domain.PasswordChangedEvent{Email: "ada@students.test"})) {
		t.Fatal("send failures must be re-queued")
	}
}

func TestMailHandler_BindsEveryEvent(t *testing.T) {
	bindings := NewMailEventHandler(&senderStub{}, "", nil).Bindings()
	for _, key := range []string{
		domain.EventUserRegistered,
		domain.EventPasswordResetRequested,
		domain.EventPasswordChanged,
		domain.EventPaymentCompleted,
		domain.EventFeeAssigned,
	} {
		if bindings[key] == nil {
			t.Fatalf("no handler bound for %s", key)
		}
	}
}
