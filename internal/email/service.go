// Package email provides email sending capabilities via SMTP.
package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/mail"
	"net/smtp"
	"strings"
	"time"
)

// ErrNotConfigured is returned when SMTP settings are incomplete.
var ErrNotConfigured = errors.New("email not configured")

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
	AppURL   string
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   SendFunc
}

// NewService creates a new email service
func NewService(config Config) *Service {
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
	}
}

// WithSender replaces the SMTP transport.
func (s *Service) WithSender(send SendFunc) *Service {
	s.send = send
	return s
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendHTMLEmail sends an HTML email with a plain text alternative.
func (s *Service) SendHTMLEmail(to []string, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}
	for _, addr := range to {
		if _, err := mail.ParseAddress(addr); err != nil {
			return fmt.Errorf("invalid recipient %q: %w", addr, err)
		}
	}

	from := (&mail.Address{Name: s.config.FromName, Address: s.config.From}).String()
	boundary := "boundary-concierge"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", textBody)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return s.send(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// ItemCompletedData describes a required checklist item a client finished.
type ItemCompletedData struct {
	AgentName    string
	FamilyName   string
	ItemTitle    string
	CompletedAt  time.Time
	ChecklistURL string
}

// SendItemCompletedEmail tells an agent that one of their clients finished a
// required checklist item.
func (s *Service) SendItemCompletedEmail(to string, data ItemCompletedData) error {
	if data.ChecklistURL == "" && s.config.AppURL != "" {
		data.ChecklistURL = strings.TrimRight(s.config.AppURL, "/") + "/clients"
	}

	subject := fmt.Sprintf("%s completed: %s", data.FamilyName, data.ItemTitle)
	var html bytes.Buffer
	if err := itemCompletedTmpl.Execute(&html, data); err != nil {
		return fmt.Errorf("render item completed template: %w", err)
	}
	text := fmt.Sprintf("%s marked %q as done on %s.", data.FamilyName, data.ItemTitle, data.CompletedAt.Format("Jan 2, 2006"))
	return s.SendHTMLEmail([]string{to}, subject, text, html.String())
}

var itemCompletedTmpl = template.Must(template.New("item-completed").Parse(itemCompletedTemplate))

const itemCompletedTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Checklist update</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #1f4e79; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #1f4e79; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Relocation Concierge</h1>
    </div>

    <p>Hi {{if .AgentName}}{{.AgentName}}{{else}}there{{end}},</p>

    <p>The {{.FamilyName}} family marked a required item as done:</p>
    <p><strong>{{.ItemTitle}}</strong> on {{.CompletedAt.Format "Jan 2, 2006"}}</p>

    {{if .ChecklistURL}}<p><a href="{{.ChecklistURL}}" class="button">Open checklist</a></p>{{end}}

    <div class="footer">
        <p>You receive this because you are the assigned agent for this family.</p>
    </div>
</body>
</html>`
