package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/azure/mentions-monitor/internal/models"
)

// MediumSource proposes Medium tag feeds that carry posts about a keyword
type MediumSource struct {
	client *resty.Client
}

type mediumFeed struct {
	Channel struct {
		Title       string `xml:"title"`
		Description string `xml:"description"`
		Items       []struct {
			Title string `xml:"title"`
			Link  string `xml:"link"`
		} `xml:"item"`
	} `xml:"channel"`
}

// NewMediumSource creates a new Medium source
func NewMediumSource() *MediumSource {
	return &MediumSource{
		client: resty.New().
			SetBaseURL("https://medium.com").
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", "Mentions-Monitor/1.0"),
	}
}

func (m *MediumSource) GetName() string {
	return "medium"
}

func (m *MediumSource) IsEnabled() bool {
	return true // tag feeds are public
}

func (m *MediumSource) Find(ctx context.Context, keywords []string) ([]models.Candidate, error) {
	var candidates []models.Candidate

	for _, keyword := range keywords {
		tag := tagSlug(keyword)
		if tag == "" {
			continue
		}

		candidate, err := m.checkTag(ctx, tag)
		if err != nil {
			logrus.Warnf("Failed to fetch Medium feed for tag '%s': %v", tag, err)
			continue
		}
		if candidate != nil {
			candidates = append(candidates, *candidate)
		}
	}

	return deduplicate(candidates), nil
}

// checkTag returns the tag feed as a candidate when it has any posts
func (m *MediumSource) checkTag(ctx context.Context, tag string) (*models.Candidate, error) {
	path := "/feed/tag/" + tag
	resp, err := m.client.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("RSS feed returned status %d", resp.StatusCode())
	}

	var feed mediumFeed
	if err := xml.Unmarshal(resp.Body(), &feed); err != nil {
		return nil, fmt.Errorf("failed to parse RSS feed: %w", err)
	}
	if len(feed.Channel.Items) == 0 {
		return nil, nil
	}

	var titles []string
	for i, item := range feed.Channel.Items {
		if i == 3 {
			break
		}
		titles = append(titles, item.Title)
	}

	title := feed.Channel.Title
	if title == "" {
		title = "Medium: " + tag
	}

	return &models.Candidate{
		URL:         "https://medium.com" + path,
		Title:       title,
		Description: plainText("Recent posts: " + strings.Join(titles, "; ")),
		SourceType:  TypeBlog,
		Provider:    m.GetName(),
	}, nil
}

func tagSlug(keyword string) string {
	return strings.Join(strings.Fields(strings.ToLower(keyword)), "-")
}
