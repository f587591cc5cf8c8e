package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/azure/mentions-monitor/internal/models"
)

// StackOverflowSource finds questions through the Stack Exchange API
type StackOverflowSource struct {
	client *resty.Client
}

type stackOverflowResponse struct {
	Items []stackOverflowQuestion `json:"items"`
}

type stackOverflowQuestion struct {
	QuestionID  int      `json:"question_id"`
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	Tags        []string `json:"tags"`
	Score       int      `json:"score"`
	AnswerCount int      `json:"answer_count"`
	Link        string   `json:"link"`
}

// NewStackOverflowSource creates a new Stack Overflow source
func NewStackOverflowSource() *StackOverflowSource {
	return &StackOverflowSource{
		client: resty.New().
			SetBaseURL("https://api.stackexchange.com").
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", "Mentions-Monitor/1.0"),
	}
}

func (s *StackOverflowSource) GetName() string {
	return "stackoverflow"
}

func (s *StackOverflowSource) IsEnabled() bool {
	return true // Stack Overflow API doesn't require authentication for basic searches
}

func (s *StackOverflowSource) Find(ctx context.Context, keywords []string) ([]models.Candidate, error) {
	var candidates []models.Candidate

	for _, keyword := range keywords {
		found, err := s.searchKeyword(ctx, keyword)
		if err != nil {
			logrus.Errorf("Failed to search Stack Overflow for keyword '%s': %v", keyword, err)
			continue
		}
		candidates = append(candidates, found...)
	}

	return deduplicate(candidates), nil
}

func (s *StackOverflowSource) searchKeyword(ctx context.Context, keyword string) ([]models.Candidate, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"order":    "desc",
			"sort":     "relevance",
			"q":        keyword,
			"site":     "stackoverflow",
			"pagesize": "20",
			"filter":   "withbody",
		}).
		Get("/2.3/search/advanced")
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("stack overflow API returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var searchResp stackOverflowResponse
	if err := json.Unmarshal(resp.Body(), &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse Stack Overflow response: %w", err)
	}

	var candidates []models.Candidate
	for _, question := range searchResp.Items {
		if question.Link == "" {
			continue
		}
		candidates = append(candidates, models.Candidate{
			URL:         question.Link,
			Title:       html.UnescapeString(question.Title),
			Description: plainText(question.Body),
			SourceType:  TypeQA,
			Provider:    s.GetName(),
		})
	}

	return candidates, nil
}
