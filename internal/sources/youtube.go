package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/azure/mentions-monitor/internal/models"
)

// YouTubeSource finds channels through the YouTube Data API
type YouTubeSource struct {
	apiKey string
	client *resty.Client
}

type youTubeSearchResponse struct {
	Items []youTubeSearchItem `json:"items"`
}

type youTubeSearchItem struct {
	ID struct {
		Kind      string `json:"kind"`
		ChannelID string `json:"channelId"`
		VideoID   string `json:"videoId"`
	} `json:"id"`
	Snippet struct {
		Title        string `json:"title"`
		Description  string `json:"description"`
		ChannelID    string `json:"channelId"`
		ChannelTitle string `json:"channelTitle"`
	} `json:"snippet"`
}

// NewYouTubeSource creates a new YouTube source
func NewYouTubeSource(apiKey string) *YouTubeSource {
	return &YouTubeSource{
		apiKey: apiKey,
		client: resty.New().
			SetBaseURL("https://www.googleapis.com").
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", "Mentions-Monitor/1.0"),
	}
}

func (y *YouTubeSource) GetName() string {
	return "youtube"
}

func (y *YouTubeSource) IsEnabled() bool {
	return y.apiKey != ""
}

func (y *YouTubeSource) Find(ctx context.Context, keywords []string) ([]models.Candidate, error) {
	if !y.IsEnabled() {
		logrus.Debug("YouTube source disabled - missing API key")
		return nil, nil
	}

	var candidates []models.Candidate
	for _, keyword := range keywords {
		found, err := y.searchChannels(ctx, keyword)
		if err != nil {
			logrus.Errorf("Failed to search YouTube channels for keyword '%s': %v", keyword, err)
			continue
		}
		candidates = append(candidates, found...)
	}

	return deduplicate(candidates), nil
}

func (y *YouTubeSource) searchChannels(ctx context.Context, keyword string) ([]models.Candidate, error) {
	resp, err := y.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"part":       "snippet",
			"q":          keyword,
			"type":       "channel",
			"maxResults": "10",
			"key":        y.apiKey,
		}).
		Get("/youtube/v3/search")
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("youtube API returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var searchResp youTubeSearchResponse
	if err := json.Unmarshal(resp.Body(), &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse YouTube response: %w", err)
	}

	var candidates []models.Candidate
	for _, item := range searchResp.Items {
		channelID := item.ID.ChannelID
		if channelID == "" {
			channelID = item.Snippet.ChannelID
		}
		if channelID == "" {
			continue
		}

		candidates = append(candidates, models.Candidate{
			URL:         "https://www.youtube.com/channel/" + channelID,
			Title:       item.Snippet.Title,
			Description: plainText(item.Snippet.Description),
			SourceType:  TypeVideo,
			Provider:    y.GetName(),
		})
	}

	return candidates, nil
}
