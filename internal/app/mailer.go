/**
 * @description
 * Event handlers for the mailer binary. Each handler turns one domain event
 * from the events exchange into a transactional e-mail.
 *
 * @notes
 * - Malformed messages are acknowledged so they do not loop.
 * - A failed send returns false; the consumer re-queues it once.
 */
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/idorocodes/paxify-backend/internal/domain"
	"github.com/idorocodes/paxify-backend/pkg/mail"
)

const mailSendTimeout = 30 * time.Second

// MailEventHandler renders and sends e-mails for domain events.
type MailEventHandler struct {
	sender      mail.Sender
	frontendURL string
	logger      *zap.Logger
}

func NewMailEventHandler(sender mail.Sender, frontendURL string, logger *zap.Logger) *MailEventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailEventHandler{
		sender:      sender,
		frontendURL: strings.TrimSuffix(strings.TrimSpace(frontendURL), "/"),
		logger:      logger.With(zap.String("component", "mailer")),
	}
}

// Bindings maps each routing key to its handler.
func (h *MailEventHandler) Bindings() map[string]func([]byte) bool {
	return map[string]func([]byte) bool{
		domain.EventUserRegistered:         h.HandleUserRegistered,
		domain.EventPasswordResetRequested: h.HandlePasswordResetRequested,
		domain.EventPasswordChanged:        h.HandlePasswordChanged,
		domain.EventPaymentCompleted:       h.HandlePaymentCompleted,
		domain.EventFeeAssigned:            h.HandleFeeAssigned,
	}
}

func (h *MailEventHandler) link(path string, token string) string {
	link := h.frontendURL + path
	if token != "" {
		link += "?token=" + url.QueryEscape(token)
	}
	return link
}

func (h *MailEventHandler) HandleUserRegistered(body []byte) bool {
	var event domain.UserRegisteredEvent
	if !h.decode(domain.EventUserRegistered, body, &event) {
		return true
	}
	content := mail.Content{
		Name:       event.FirstName,
		Paragraphs: []string{"Welcome to Paxify. Your student account is ready and you can now view and pay your fees online."},
	}
	if event.VerificationToken != "" {
		content.Paragraphs = append(content.Paragraphs, "Please confirm your e-mail address to finish setting up your account. The link expires in 24 hours.")
		content.ActionURL = h.link("/verify-email", event.VerificationToken)
		content.ActionLabel = "Verify e-mail"
	}
	return h.send(domain.EventUserRegistered, event.Email, "Welcome to Paxify", content)
}

func (h *MailEventHandler) HandlePasswordResetRequested(body []byte) bool {
	var event domain.PasswordResetRequestedEvent
	if !h.decode(domain.EventPasswordResetRequested, body, &event) {
		return true
	}
	if event.ResetToken == "" {
		h.logger.Warn("password reset event without token; dropping", zap.String("user_id", event.UserID.String()))
		return true
	}
	return h.send(domain.EventPasswordResetRequested, event.Email, "Reset your Paxify password", mail.Content{
		Name: event.FirstName,
		Paragraphs: []string{
			"We received a request to reset your password.",
			"The link below is valid for one hour. If you did not ask for a reset you can ignore this e-mail.",
		},
		ActionURL:   h.link("/reset-password", event.ResetToken),
		ActionLabel: "Reset password",
	})
}

func (h *MailEventHandler) HandlePasswordChanged(body []byte) bool {
	var event domain.PasswordChangedEvent
	if !h.decode(domain.EventPasswordChanged, body, &event) {
		return true
	}
	return h.send(domain.EventPasswordChanged, event.Email, "Your Paxify password was changed", mail.Content{
		Name: event.FirstName,
		Paragraphs: []string{
			fmt.Sprintf("Your password was changed on %s.", event.Timestamp.Format("02 Jan 2006 15:04 MST")),
			"If this was not you, reset your password immediately and contact the bursary.",
		},
	})
}

func (h *MailEventHandler) HandlePaymentCompleted(body []byte) bool {
	var event domain.PaymentCompletedEvent
	if !h.decode(domain.EventPaymentCompleted, body, &event) {
		return true
	}
	content := mail.Content{
		Name: event.FirstName,
		Paragraphs: []string{
			fmt.Sprintf("We received your payment of NGN %s.", event.Amount.StringFixed(2)),
			fmt.Sprintf("Reference: %s. Paid on %s.", event.Reference, event.PaidAt.Format("02 Jan 2006 15:04 MST")),
		},
	}
	if event.ReceiptURL != "" {
		content.ActionURL = event.ReceiptURL
		content.ActionLabel = "Download receipt"
	}
	return h.send(domain.EventPaymentCompleted, event.Email, "Payment received: "+event.Reference, content)
}

func (h *MailEventHandler) HandleFeeAssigned(body []byte) bool {
	var event domain.FeeAssignedEvent
	if !h.decode(domain.EventFeeAssigned, body, &event) {
		return true
	}
	return h.send(domain.EventFeeAssigned, event.Email, "New fee: "+event.FeeName, mail.Content{
		Name:        event.FirstName,
		Paragraphs:  []string{feeAssignedMessage(event.FeeName, event.Amount, event.DueDate)},
		ActionURL:   h.link("/dashboard/dues", ""),
		ActionLabel: "View dues",
	})
}

func (h *MailEventHandler) decode(routingKey string, body []byte, out any) bool {
	if err := json.Unmarshal(body, out); err != nil {
		h.logger.Warn("malformed event; acking", zap.String("routing_key", routingKey), zap.Error(err))
		return false
	}
	return true
}

func (h *MailEventHandler) send(routingKey, to, subject string, content mail.Content) bool {
	if strings.TrimSpace(to) == "" {
		h.logger.Warn("event without recipient; acking", zap.String("routing_key", routingKey))
		return true
	}
	html, err := mail.Render(content)
	if err != nil {
		h.logger.Error("failed to render e-mail", zap.String("routing_key", routingKey), zap.Error(err))
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), mailSendTimeout)
	defer cancel()
	err = h.sender.Send(ctx, mail.Message{
		To:      to,
		Subject: subject,
		HTML:    html,
		Text:    strings.Join(content.Paragraphs, "\n\n"),
	})
	if err != nil {
		h.logger.Error("failed to send e-mail", zap.String("routing_key", routingKey), zap.Error(err))
		return false
	}
	h.logger.Info("e-mail sent", zap.String("routing_key", routingKey))
	return true
}
