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

// WebSearchSource queries a Brave-compatible web search API
type WebSearchSource struct {
	endpoint string
	apiKey   string
	client   *resty.Client
}

type webSearchResponse struct {
	Web struct {
		Results []webSearchResult `json:"results"`
	} `json:"web"`
	News struct {
		Results []webSearchResult `json:"results"`
	} `json:"news"`
}

type webSearchResult struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// NewWebSearchSource creates a web search source for the given endpoint
func NewWebSearchSource(endpoint, apiKey string) *WebSearchSource {
	return &WebSearchSource{
		endpoint: endpoint,
		apiKey:   apiKey,
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", "Mentions-Monitor/1.0"),
	}
}

func (w *WebSearchSource) GetName() string {
	return "websearch"
}

func (w *WebSearchSource) IsEnabled() bool {
	return w.endpoint != "" && w.apiKey != ""
}

func (w *WebSearchSource) Find(ctx context.Context, keywords []string) ([]models.Candidate, error) {
	if !w.IsEnabled() {
		logrus.Debug("Web search source disabled - missing endpoint or API key")
		return nil, nil
	}

	var candidates []models.Candidate
	for _, keyword := range keywords {
		found, err := w.search(ctx, keyword)
		if err != nil {
			logrus.Errorf("Web search failed for keyword '%s': %v", keyword, err)
			continue
		}
		candidates = append(candidates, found...)
	}

	return deduplicate(candidates), nil
}

func (w *WebSearchSource) search(ctx context.Context, keyword string) ([]models.Candidate, error) {
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("X-Subscription-Token", w.apiKey).
		SetQueryParams(map[string]string{
			"q":     keyword,
			"count": "10",
		}).
		Get(w.endpoint)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("web search API returned status %d", resp.StatusCode())
	}

	var searchResp webSearchResponse
	if err := json.Unmarshal(resp.Body(), &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse web search response: %w", err)
	}

	var candidates []models.Candidate
	for _, result := range searchResp.News.Results {
		candidates = append(candidates, w.toCandidate(result, TypeNews))
	}
	for _, result := range searchResp.Web.Results {
		candidates = append(candidates, w.toCandidate(result, TypeWeb))
	}
	return candidates, nil
}

func (w *WebSearchSource) toCandidate(result webSearchResult, sourceType string) models.Candidate {
	return models.Candidate{
		URL:         result.URL,
		Title:       plainText(result.Title),
		Description: plainText(result.Description),
		SourceType:  sourceType,
		Provider:    w.GetName(),
	}
}
