package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/azure/mentions-monitor/internal/models"
	"github.com/azure/mentions-monitor/internal/monitoring"
	"github.com/azure/mentions-monitor/internal/notifications"
	"github.com/azure/mentions-monitor/internal/store"
)

// Repository is the slice of the store the generator needs
type Repository interface {
	store.ProfileStore
	store.InsightStore
	store.AlertStore
	store.NotificationStore
}

// Request identifies the insight to alert on
type Request struct {
	InsightID string          `json:"insightId"`
	ProfileID string          `json:"profileId"`
	Severity  models.Severity `json:"severity"`
	Title     string          `json:"title"`
}

// Result reports the alert and where it was delivered
type Result struct {
	AlertID          string           `json:"alertId"`
	NotificationSent bool             `json:"notificationSent"`
	Channels         []models.Channel `json:"channels"`
}

// Generator persists alerts and fans them out to the profile's channels
type Generator struct {
	repo       Repository
	publisher  notifications.Publisher
	mailer     notifications.Mailer
	chat       notifications.ChatNotifier
	recipients []string
	metrics    *monitoring.Metrics
	now        func() time.Time
}

// Options wires the delivery channels; nil members disable that channel
type Options struct {
	Publisher notifications.Publisher
	Mailer    notifications.Mailer
	Chat      notifications.ChatNotifier
	// DefaultRecipients receive email alerts for profiles without their own list
	DefaultRecipients []string
	Metrics           *monitoring.Metrics
}

// NewGenerator creates an alert generator
func NewGenerator(repo Repository, opts Options) *Generator {
	publisher := opts.Publisher
	if publisher == nil {
		publisher = notifications.LogPublisher{}
	}
	return &Generator{
		repo:       repo,
		publisher:  publisher,
		mailer:     opts.Mailer,
		chat:       opts.Chat,
		recipients: opts.DefaultRecipients,
		metrics:    opts.Metrics,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func validate(req Request) error {
	switch {
	case req.InsightID == "":
		return models.NewValidationError("insightId", "is required")
	case req.ProfileID == "":
		return models.NewValidationError("profileId", "is required")
	case req.Title == "":
		return models.NewValidationError("title", "is required")
	case !req.Severity.Valid():
		return models.NewValidationError("severity", fmt.Sprintf("unknown level %q", req.Severity))
	}
	return nil
}

// GenerateAlert records an alert for the insight and notifies the profile's
// channels. An insight alerts at most once; repeated calls return the first
// alert without notifying anyone.
func (g *Generator) GenerateAlert(ctx context.Context, req Request) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	insight, err := g.repo.GetInsight(ctx, req.InsightID)
	if err != nil {
		return nil, err
	}
	profile, err := g.repo.GetProfile(ctx, req.ProfileID)
	if err != nil {
		return nil, err
	}

	alert := models.Alert{
		ProfileID: profile.ID,
		InsightID: insight.ID,
		Severity:  req.Severity,
		Title:     req.Title,
		Status:    models.AlertStatusNew,
		CreatedAt: g.now(),
	}
	created, err := g.repo.CreateAlert(ctx, &alert)
	if err != nil {
		return nil, err
	}
	if !created {
		existing, err := g.repo.GetAlertByInsight(ctx, insight.ID)
		if err != nil {
			return nil, err
		}
		logrus.Infof("Alert for insight %s already exists (%s), not notifying again", insight.ID, existing.ID)
		return &Result{AlertID: existing.ID, Channels: []models.Channel{}}, nil
	}

	g.metrics.Inc(monitoring.AlertsRaised)
	logger := logrus.WithFields(logrus.Fields{
		"alert_id":   alert.ID,
		"insight_id": insight.ID,
		"profile_id": profile.ID,
		"severity":   alert.Severity,
	})
	logger.Infof("Alert raised: %s", alert.Title)

	msg := &notifications.AlertMessage{
		AlertID:     alert.ID,
		Severity:    alert.Severity,
		Title:       alert.Title,
		ProfileName: profile.Name,
		Summary:     insight.Summary,
		KeyInsights: insight.KeyInsights,
		Sentiment:   insight.Sentiment,
		Topics:      insight.Topics,
		CreatedAt:   alert.CreatedAt,
	}

	channels := []models.Channel{}
	for _, channel := range profile.AlertConfig.NotificationChannels {
		var err error
		switch channel {
		case models.ChannelInApp:
			err = g.notifyInApp(ctx, profile, msg)
		case models.ChannelEmail:
			err = g.notifyEmail(ctx, profile, msg)
		case models.ChannelTeams:
			err = g.notifyChat(ctx, msg)
		default:
			logger.Warnf("Unknown notification channel %q ignored", channel)
			continue
		}
		if err != nil {
			g.metrics.Inc(monitoring.NotificationErrors)
			logger.Errorf("Failed to deliver alert via %s: %v", channel, err)
			continue
		}
		g.metrics.Inc(monitoring.NotificationsSent)
		channels = append(channels, channel)
	}

	return &Result{
		AlertID:          alert.ID,
		NotificationSent: len(channels) > 0,
		Channels:         channels,
	}, nil
}

func (g *Generator) notifyInApp(ctx context.Context, profile *models.MonitoringProfile, msg *notifications.AlertMessage) error {
	event := notifications.RealtimeEvent{
		Type:        "alert",
		AlertID:     msg.AlertID,
		Severity:    msg.Severity,
		Title:       msg.Title,
		ProfileName: profile.Name,
		Timestamp:   msg.CreatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}

	notification := models.Notification{
		UserID:    profile.UserID,
		AlertID:   msg.AlertID,
		Type:      "alert",
		Payload:   datatypes.JSON(payload),
		CreatedAt: msg.CreatedAt,
	}
	if err := g.repo.CreateNotification(ctx, &notification); err != nil {
		return err
	}

	// the notification row is the durable record; a missed push is only logged
	if err := g.publisher.Publish(ctx, notifications.UserChannel(profile.UserID), event); err != nil {
		logrus.Warnf("Realtime publish for alert %s failed: %v", msg.AlertID, err)
	}
	return nil
}

func (g *Generator) notifyEmail(ctx context.Context, profile *models.MonitoringProfile, msg *notifications.AlertMessage) error {
	if g.mailer == nil {
		return fmt.Errorf("email delivery is not configured")
	}
	recipients := profile.AlertConfig.EmailRecipients
	if len(recipients) == 0 {
		recipients = g.recipients
	}
	if len(recipients) == 0 {
		return fmt.Errorf("profile %s has no email recipients", profile.ID)
	}

	email, err := notifications.ComposeEmail(msg, recipients)
	if err != nil {
		return err
	}
	return g.mailer.Send(ctx, email)
}

func (g *Generator) notifyChat(ctx context.Context, msg *notifications.AlertMessage) error {
	if g.chat == nil {
		return fmt.Errorf("teams webhook is not configured")
	}
	return g.chat.SendAlert(ctx, msg)
}
