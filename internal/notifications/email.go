package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/azure/mentions-monitor/internal/models"
)

// SMTPConfig holds the mail relay settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends mail through an SMTP relay
type SMTPMailer struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
}

var _ Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer creates a mailer; From defaults to the username
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPMailer{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg *EmailMessage) error {
	if len(msg.To) == 0 {
		return models.NewValidationError("to", "at least one recipient is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	message := gomail.NewMessage()
	message.SetHeader("From", m.cfg.From)
	message.SetHeader("To", msg.To...)
	message.SetHeader("Subject", msg.Subject)
	message.SetBody("text/plain", msg.TextBody)
	if msg.HTMLBody != "" {
		message.AddAlternative("text/html", msg.HTMLBody)
	}

	if err := m.dialer.DialAndSend(message); err != nil {
		return models.NewExternalError("smtp", fmt.Errorf("failed to send email: %w", err))
	}
	logrus.Infof("Sent alert email %q to %d recipients", msg.Subject, len(msg.To))
	return nil
}

const alertEmailHTML = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { color: white; padding: 20px; border-radius: 5px; }
        .critical { background-color: #d13438; }
        .high { background-color: #ca5010; }
        .medium { background-color: #0078d4; }
        .low, .info { background-color: #605e5c; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
    </style>
</head>
<body>
    <div class="header {{.Severity}}">
        <h1>{{.Title}}</h1>
        <p>Severity: {{upper .Severity}} | Profile: {{.ProfileName}}</p>
    </div>

    <div class="summary">
        <h2>Summary</h2>
        <p>{{.Summary}}</p>
    </div>

    {{if .KeyInsights}}
    <h2>Key insights</h2>
    <ul>
    {{range .KeyInsights}}<li>{{.}}</li>
    {{end}}</ul>
    {{end}}

    <hr>
    <p><small>Raised {{.CreatedAt.Format "January 2, 2006 at 3:04 PM UTC"}} by the mentions monitor.</small></p>
</body>
</html>
`

var alertEmailTemplate = template.Must(template.New("alert").Funcs(template.FuncMap{
	"upper": func(s models.Severity) string { return strings.ToUpper(string(s)) },
}).Parse(alertEmailHTML))

// ComposeEmail renders the alert as a plain text mail with an HTML alternative
func ComposeEmail(msg *AlertMessage, recipients []string) (*EmailMessage, error) {
	var html bytes.Buffer
	if err := alertEmailTemplate.Execute(&html, msg); err != nil {
		return nil, fmt.Errorf("failed to build email HTML: %w", err)
	}

	return &EmailMessage{
		To:       recipients,
		Subject:  fmt.Sprintf("[%s] %s", strings.ToUpper(string(msg.Severity)), msg.Title),
		TextBody: buildEmailText(msg),
		HTMLBody: html.String(),
	}, nil
}

func buildEmailText(msg *AlertMessage) string {
	var text strings.Builder

	text.WriteString(msg.Title + "\n")
	text.WriteString(fmt.Sprintf("Severity: %s | Profile: %s\n", strings.ToUpper(string(msg.Severity)), msg.ProfileName))
	text.WriteString(fmt.Sprintf("Raised: %s\n\n", msg.CreatedAt.Format("2006-01-02 15:04:05 UTC")))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	text.WriteString(msg.Summary + "\n")

	if len(msg.KeyInsights) > 0 {
		text.WriteString("\nKEY INSIGHTS\n")
		text.WriteString("============\n")
		for i, insight := range msg.KeyInsights {
			text.WriteString(fmt.Sprintf("%d. %s\n", i+1, insight))
		}
	}

	text.WriteString("\n---\nThis alert was generated automatically by the mentions monitor.\n")
	return text.String()
}
