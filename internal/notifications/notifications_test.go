package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azure/mentions-monitor/internal/models"
)

func sampleMessage() *AlertMessage {
	return &AlertMessage{
		AlertID:     "alert-1",
		Severity:    models.SeverityCritical,
		Title:       "CRISIS ALERT: Acme recalls devices",
		ProfileName: "Acme brand",
		Summary:     "Acme recalls devices after battery fires",
		KeyInsights: []string{"Recall covers 2M units", "Stock down 8%"},
		Sentiment:   models.SentimentNegative,
		Topics:      []string{"recall"},
		CreatedAt:   time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestComposeEmail(t *testing.T) {
	email, err := ComposeEmail(sampleMessage(), []string{"ops@example.com"})
	require.NoError(t, err)

	assert.Equal(t, []string{"ops@example.com"}, email.To)
	assert.Contains(t, email.Subject, "CRITICAL")
	assert.Contains(t, email.Subject, "CRISIS ALERT: Acme recalls devices")

	for _, body := range []string{email.TextBody, email.HTMLBody} {
		assert.Contains(t, body, "Acme recalls devices after battery fires")
		assert.Contains(t, body, "Recall covers 2M units")
		assert.Contains(t, body, "Stock down 8%")
	}
	assert.Contains(t, email.HTMLBody, `class="header critical"`)
}

func TestComposeEmail_EscapesHTML(t *testing.T) {
	msg := sampleMessage()
	msg.Summary = "<script>alert(1)</script>"

	email, err := ComposeEmail(msg, []string{"ops@example.com"})
	require.NoError(t, err)
	assert.NotContains(t, email.HTMLBody, "<script>alert(1)</script>")
	assert.Contains(t, email.TextBody, "<script>alert(1)</script>")
}

func TestSMTPMailer_RequiresRecipients(t *testing.T) {
	mailer := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 25, Username: "bot@example.com"})
	err := mailer.Send(context.Background(), &EmailMessage{Subject: "x"})
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestTeamsNotifier_SendAlert(t *testing.T) {
	var received TeamsMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := NewTeamsNotifier(server.URL, time.Second).SendAlert(context.Background(), sampleMessage())
	require.NoError(t, err)

	assert.Equal(t, "MessageCard", received.Type)
	assert.Equal(t, "CRISIS ALERT: Acme recalls devices", received.Title)
	assert.Equal(t, "D13438", received.ThemeColor)
	require.Len(t, received.Sections, 2)
	assert.Contains(t, received.Sections[0].Facts, TeamsFact{Name: "Severity", Value: "CRITICAL"})
	assert.Contains(t, received.Sections[1].ActivityText, "Recall covers 2M units")
}

func TestTeamsNotifier_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	err := NewTeamsNotifier(server.URL, time.Second).SendAlert(context.Background(), sampleMessage())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrExternalService))
}

func TestUserChannel(t *testing.T) {
	assert.Equal(t, "notifications:user-42", UserChannel("user-42"))
}
