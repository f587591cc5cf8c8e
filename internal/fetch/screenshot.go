package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Screenshotter renders a page to an image
type Screenshotter interface {
	Capture(ctx context.Context, pageURL string) ([]byte, string, error)
}

// ScreenshotService calls an external rendering service that accepts
// {"url": ..., "full_page": true} and answers with the image bytes.
type ScreenshotService struct {
	client   *resty.Client
	endpoint string
}

var _ Screenshotter = (*ScreenshotService)(nil)

// NewScreenshotService creates a client for the rendering service at endpoint
func NewScreenshotService(endpoint string, timeout time.Duration) *ScreenshotService {
	return &ScreenshotService{
		client:   resty.New().SetTimeout(timeout),
		endpoint: endpoint,
	}
}

func (s *ScreenshotService) Capture(ctx context.Context, pageURL string) ([]byte, string, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"url": pageURL, "full_page": true}).
		Post(s.endpoint)
	if err != nil {
		return nil, "", fmt.Errorf("screenshot request failed: %w", err)
	}
	if resp.IsError() {
		return nil, "", fmt.Errorf("screenshot service returned status %d", resp.StatusCode())
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}
	return resp.Body(), contentType, nil
}
