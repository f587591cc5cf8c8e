package notifications

import (
	"context"
	"time"

	"github.com/azure/mentions-monitor/internal/models"
)

// AlertMessage is everything a channel needs to describe one alert
type AlertMessage struct {
	AlertID     string
	Severity    models.Severity
	Title       string
	ProfileName string
	Summary     string
	KeyInsights []string
	Sentiment   models.Sentiment
	Topics      []string
	CreatedAt   time.Time
}

// EmailMessage is a composed mail ready for dispatch
type EmailMessage struct {
	To       []string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mailer dispatches composed emails
type Mailer interface {
	Send(ctx context.Context, msg *EmailMessage) error
}

// Publisher pushes real-time events to subscribers of a channel
type Publisher interface {
	Publish(ctx context.Context, channel string, event any) error
}

// ChatNotifier posts alerts to a team chat
type ChatNotifier interface {
	SendAlert(ctx context.Context, msg *AlertMessage) error
}

// RealtimeEvent is published on the user's channel for in-app alerts
type RealtimeEvent struct {
	Type        string          `json:"type"`
	AlertID     string          `json:"alert_id"`
	Severity    models.Severity `json:"severity"`
	Title       string          `json:"title"`
	ProfileName string          `json:"profile_name"`
	Timestamp   time.Time       `json:"timestamp"`
}

// UserChannel is the real-time channel a user's clients subscribe to
func UserChannel(userID string) string {
	return "notifications:" + userID
}
