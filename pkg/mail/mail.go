// Package mail sends transactional e-mail over SMTP.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"gopkg.in/gomail.v2"
)

// Message is one outbound e-mail.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender sends through an SMTP relay.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender builds a sender for host:port with optional credentials.
func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// Send delivers msg. The context is checked before dialing; gomail itself is not cancellable.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return fmt.Errorf("recipient is required")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	if msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
		if msg.HTML != "" {
			m.AddAlternative("text/html", msg.HTML)
		}
	} else {
		m.SetBody("text/html", msg.HTML)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

var layout = template.Must(template.New("layout").Parse(`<!DOCTYPE html>
<html><body style="font-family:Arial,Helvetica,sans-serif;color:#1f2933;max-width:560px;margin:0 auto;padding:24px">
<h2 style="color:#143c78;margin-top:0">Paxify</h2>
<p>Hello {{.Name}},</p>
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}{{if .ActionURL}}<p><a href="{{.ActionURL}}" style="display:inline-block;background:#143c78;color:#fff;padding:10px 18px;border-radius:4px;text-decoration:none">{{.ActionLabel}}</a></p>
<p style="font-size:12px;color:#616e7c">If the button does not work, copy this link into your browser:<br>{{.ActionURL}}</p>
{{end}}<p style="font-size:12px;color:#616e7c">The Paxify Team</p>
</body></html>`))

// Content is the variable part of a templated e-mail.
type Content struct {
	Name        string
	Paragraphs  []string
	ActionURL   string
	ActionLabel string
}

// Render builds the HTML body for content.
func Render(content Content) (string, error) {
	if content.Name == "" {
		content.Name = "there"
	}
	var buf bytes.Buffer
	if err := layout.Execute(&buf, content); err != nil {
		return "", err
	}
	return buf.String(), nil
}
