package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/azure/mentions-monitor/internal/models"
)

// HackerNewsSource finds stories through the Hacker News Algolia search API
type HackerNewsSource struct {
	client *resty.Client
}

type hackerNewsSearchResponse struct {
	Hits []hackerNewsHit `json:"hits"`
}

type hackerNewsHit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	StoryText   string `json:"story_text"`
	Author      string `json:"author"`
	Points      int    `json:"points"`
	NumComments int    `json:"num_comments"`
}

// NewHackerNewsSource creates a new Hacker News source
func NewHackerNewsSource() *HackerNewsSource {
	return &HackerNewsSource{
		client: resty.New().
			SetBaseURL("https://hn.algolia.com").
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", "Mentions-Monitor/1.0"),
	}
}

func (h *HackerNewsSource) GetName() string {
	return "hackernews"
}

func (h *HackerNewsSource) IsEnabled() bool {
	return true // the Algolia search API doesn't require authentication
}

func (h *HackerNewsSource) Find(ctx context.Context, keywords []string) ([]models.Candidate, error) {
	var candidates []models.Candidate

	for _, keyword := range keywords {
		found, err := h.searchKeyword(ctx, keyword)
		if err != nil {
			logrus.Errorf("Failed to search Hacker News for keyword '%s': %v", keyword, err)
			continue
		}
		candidates = append(candidates, found...)
	}

	return deduplicate(candidates), nil
}

func (h *HackerNewsSource) searchKeyword(ctx context.Context, keyword string) ([]models.Candidate, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"query":       keyword,
			"tags":        "story",
			"hitsPerPage": "20",
		}).
		Get("/api/v1/search")
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("hacker news API returned status %d", resp.StatusCode())
	}

	var searchResp hackerNewsSearchResponse
	if err := json.Unmarshal(resp.Body(), &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse Hacker News response: %w", err)
	}

	var candidates []models.Candidate
	for _, hit := range searchResp.Hits {
		if hit.Title == "" {
			continue
		}

		// Link to the story itself when it points off-site, otherwise to the discussion
		link := hit.URL
		if link == "" {
			if _, err := strconv.Atoi(hit.ObjectID); err != nil {
				continue
			}
			link = "https://news.ycombinator.com/item?id=" + hit.ObjectID
		}

		description := plainText(hit.StoryText)
		if description == "" {
			description = fmt.Sprintf("%d points, %d comments on Hacker News", hit.Points, hit.NumComments)
		}

		candidates = append(candidates, models.Candidate{
			URL:         link,
			Title:       hit.Title,
			Description: description,
			SourceType:  TypeNews,
			Provider:    h.GetName(),
		})
	}

	return candidates, nil
}
