package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/azure/mentions-monitor/internal/models"
)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	Sections   []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle string      `json:"activityTitle,omitempty"`
	ActivityText  string      `json:"activityText,omitempty"`
	Facts         []TeamsFact `json:"facts,omitempty"`
	Markdown      bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

var severityColors = map[models.Severity]string{
	models.SeverityCritical: "D13438",
	models.SeverityHigh:     "CA5010",
	models.SeverityMedium:   "0078D4",
	models.SeverityLow:      "605E5C",
	models.SeverityInfo:     "605E5C",
}

// TeamsNotifier posts alerts to an incoming webhook
type TeamsNotifier struct {
	webhookURL string
	client     *resty.Client
}

var _ ChatNotifier = (*TeamsNotifier)(nil)

// NewTeamsNotifier creates a notifier for the webhook
func NewTeamsNotifier(webhookURL string, timeout time.Duration) *TeamsNotifier {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &TeamsNotifier{
		webhookURL: webhookURL,
		client:     resty.New().SetTimeout(timeout),
	}
}

func (n *TeamsNotifier) SendAlert(ctx context.Context, msg *AlertMessage) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(BuildTeamsMessage(msg)).
		Post(n.webhookURL)
	if err != nil {
		return models.NewExternalError("teams", fmt.Errorf("failed to send Teams message: %w", err))
	}
	if resp.StatusCode() != 200 {
		return models.NewExternalError("teams", fmt.Errorf("webhook returned status %d: %s", resp.StatusCode(), string(resp.Body())))
	}
	return nil
}

// BuildTeamsMessage renders the alert as a MessageCard
func BuildTeamsMessage(msg *AlertMessage) *TeamsMessage {
	message := &TeamsMessage{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: severityColors[msg.Severity],
		Title:      msg.Title,
		Text:       msg.Summary,
	}

	facts := []TeamsFact{
		{Name: "Severity", Value: strings.ToUpper(string(msg.Severity))},
		{Name: "Profile", Value: msg.ProfileName},
		{Name: "Raised", Value: msg.CreatedAt.Format("2006-01-02 15:04:05 UTC")},
	}
	if msg.Sentiment != "" {
		facts = append(facts, TeamsFact{Name: "Sentiment", Value: string(msg.Sentiment)})
	}
	if len(msg.Topics) > 0 {
		facts = append(facts, TeamsFact{Name: "Topics", Value: strings.Join(msg.Topics, ", ")})
	}
	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Alert",
		Facts:         facts,
		Markdown:      true,
	})

	if len(msg.KeyInsights) > 0 {
		var lines []string
		for _, insight := range msg.KeyInsights {
			lines = append(lines, "- "+insight)
		}
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle: "Key insights",
			ActivityText:  strings.Join(lines, "\n\n"),
			Markdown:      true,
		})
	}
	return message
}
