package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/azure/mentions-monitor/internal/models"
)

// RedditSource finds subreddits whose topic matches the keywords
type RedditSource struct {
	clientID     string
	clientSecret string
	client       *resty.Client
	authURL      string
	apiURL       string
	accessToken  string
}

type redditAuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditSubreddit `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditSubreddit struct {
	DisplayName       string `json:"display_name"`
	Title             string `json:"title"`
	PublicDescription string `json:"public_description"`
	URL               string `json:"url"`
	Subscribers       int    `json:"subscribers"`
	Over18            bool   `json:"over18"`
}

// NewRedditSource creates a new Reddit source
func NewRedditSource(clientID, clientSecret string) *RedditSource {
	return &RedditSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", "Mentions-Monitor/1.0"),
		authURL: "https://www.reddit.com",
		apiURL:  "https://oauth.reddit.com",
	}
}

func (r *RedditSource) GetName() string {
	return "reddit"
}

func (r *RedditSource) IsEnabled() bool {
	return r.clientID != "" && r.clientSecret != ""
}

func (r *RedditSource) Find(ctx context.Context, keywords []string) ([]models.Candidate, error) {
	if !r.IsEnabled() {
		logrus.Debug("Reddit source disabled - missing credentials")
		return nil, nil
	}

	if err := r.authenticate(ctx); err != nil {
		return nil, fmt.Errorf("reddit authentication failed: %w", err)
	}

	var candidates []models.Candidate
	for _, keyword := range keywords {
		found, err := r.searchSubreddits(ctx, keyword)
		if err != nil {
			logrus.Errorf("Failed to search Reddit for keyword '%s': %v", keyword, err)
			continue
		}
		candidates = append(candidates, found...)
	}

	return deduplicate(candidates), nil
}

func (r *RedditSource) authenticate(ctx context.Context) error {
	resp, err := r.client.R().
		SetContext(ctx).
		SetBasicAuth(r.clientID, r.clientSecret).
		SetFormData(map[string]string{
			"grant_type": "client_credentials",
		}).
		Post(r.authURL + "/api/v1/access_token")
	if err != nil {
		return err
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("token endpoint returned status %d", resp.StatusCode())
	}

	var authResp redditAuthResponse
	if err := json.Unmarshal(resp.Body(), &authResp); err != nil {
		return err
	}
	if authResp.AccessToken == "" {
		return fmt.Errorf("token endpoint returned no access token")
	}

	r.accessToken = authResp.AccessToken
	return nil
}

func (r *RedditSource) searchSubreddits(ctx context.Context, keyword string) ([]models.Candidate, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetAuthToken(r.accessToken).
		SetQueryParams(map[string]string{
			"q":     keyword,
			"limit": "10",
		}).
		Get(r.apiURL + "/subreddits/search")
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("reddit API returned status %d", resp.StatusCode())
	}

	var listing redditListing
	if err := json.Unmarshal(resp.Body(), &listing); err != nil {
		return nil, err
	}

	var candidates []models.Candidate
	for _, child := range listing.Data.Children {
		sub := child.Data
		if sub.Over18 || sub.URL == "" {
			continue
		}

		title := sub.Title
		if title == "" {
			title = "r/" + sub.DisplayName
		}

		candidates = append(candidates, models.Candidate{
			URL:         "https://www.reddit.com" + strings.TrimSuffix(sub.URL, "/") + "/",
			Title:       title,
			Description: plainText(fmt.Sprintf("%s (%d subscribers)", sub.PublicDescription, sub.Subscribers)),
			SourceType:  TypeForum,
			Provider:    r.GetName(),
		})
	}

	return candidates, nil
}
