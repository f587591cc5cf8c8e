package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"

	"github.com/azure/mentions-monitor/internal/models"
)

// ErrDisallowed is returned when robots.txt forbids fetching the URL
var ErrDisallowed = errors.New("disallowed by robots.txt")

// ErrInvalidURL is returned for a stored source URL that cannot be fetched
var ErrInvalidURL = errors.New("invalid source url")

// Page is the result of fetching one source
type Page struct {
	URL            string
	Title          string
	Text           string
	HTML           string
	Screenshot     []byte
	ScreenshotType string
}

// Fetcher retrieves and extracts the content behind a URL
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, cfg models.ScrapeConfig) (*Page, error)
}

// Options configures HTTPFetcher
type Options struct {
	Timeout       time.Duration
	RetryCount    int
	UserAgent     string
	RespectRobots bool
	Screenshots   Screenshotter
}

// HTTPFetcher fetches pages over HTTP and extracts their readable text
type HTTPFetcher struct {
	client        *resty.Client
	userAgent     string
	respectRobots bool
	screenshots   Screenshotter

	mu     sync.Mutex
	robots map[string]*robotstxt.Group
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher retrying transient failures with backoff
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mentions-Monitor/1.0"
	}

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(retryTransient)

	return &HTTPFetcher{
		client:        client,
		userAgent:     opts.UserAgent,
		respectRobots: opts.RespectRobots,
		screenshots:   opts.Screenshots,
		robots:        make(map[string]*robotstxt.Group),
	}
}

func retryTransient(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	return resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= 500
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, cfg models.ScrapeConfig) (*Page, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil || pageURL.Host == "" {
		return nil, models.NewExternalError("fetch", fmt.Errorf("%w %q", ErrInvalidURL, rawURL))
	}

	if f.respectRobots && !f.allowed(ctx, pageURL) {
		return nil, models.NewExternalError("fetch", fmt.Errorf("%s: %w", rawURL, ErrDisallowed))
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8").
		Get(rawURL)
	if err != nil {
		return nil, models.NewExternalError("fetch", fmt.Errorf("GET %s: %w", rawURL, err))
	}
	if resp.IsError() {
		return nil, models.NewExternalError("fetch", fmt.Errorf("GET %s: status %d", rawURL, resp.StatusCode()))
	}

	rawHTML := resp.String()
	page, err := Extract(rawHTML, pageURL, cfg.Selectors)
	if err != nil {
		return nil, models.NewExternalError("fetch", fmt.Errorf("extract %s: %w", rawURL, err))
	}
	if cfg.SaveHTML {
		page.HTML = rawHTML
	}

	if cfg.CaptureScreenshot && f.screenshots != nil {
		shot, contentType, err := f.screenshots.Capture(ctx, rawURL)
		if err != nil {
			// the text is what matters; a missing screenshot is not fatal
			logrus.Warnf("Screenshot of %s failed: %v", rawURL, err)
		} else {
			page.Screenshot = shot
			page.ScreenshotType = contentType
		}
	}

	return page, nil
}

// allowed consults the cached robots.txt group for the host; unreachable robots files allow everything
func (f *HTTPFetcher) allowed(ctx context.Context, pageURL *url.URL) bool {
	host := pageURL.Scheme + "://" + pageURL.Host

	f.mu.Lock()
	group, ok := f.robots[host]
	f.mu.Unlock()

	if !ok {
		group = f.loadRobots(ctx, host)
		f.mu.Lock()
		f.robots[host] = group
		f.mu.Unlock()
	}

	if group == nil {
		return true
	}
	path := pageURL.EscapedPath()
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

func (f *HTTPFetcher) loadRobots(ctx context.Context, host string) *robotstxt.Group {
	resp, err := f.client.R().SetContext(ctx).Get(host + "/robots.txt")
	if err != nil {
		logrus.Debugf("Failed to load robots.txt for %s (ignoring): %v", host, err)
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode(), resp.Body())
	if err != nil {
		logrus.Debugf("Failed to parse robots.txt for %s (ignoring): %v", host, err)
		return nil
	}
	return data.FindGroup(f.userAgent)
}
