package scraper

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/azure/mentions-monitor/internal/fetch"
	"github.com/azure/mentions-monitor/internal/models"
	"github.com/azure/mentions-monitor/internal/monitoring"
	"github.com/azure/mentions-monitor/internal/queue"
	"github.com/azure/mentions-monitor/internal/storage"
	"github.com/azure/mentions-monitor/internal/store"
)

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, rawURL string, cfg models.ScrapeConfig) (*fetch.Page, error) {
	args := m.Called(ctx, rawURL, cfg)
	if p, ok := args.Get(0).(*fetch.Page); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

type failingStorage struct{}

func (failingStorage) Store(ctx context.Context, name, contentType string, data []byte) (string, error) {
	return "", errors.New("bucket unavailable")
}
func (failingStorage) Retrieve(ctx context.Context, name string) ([]byte, error) { return nil, nil }
func (failingStorage) List(ctx context.Context, prefix string) ([]string, error) { return nil, nil }
func (failingStorage) Delete(ctx context.Context, name string) error            { return nil }

var fixedNow = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	repo    *store.MemoryStore
	source  *models.DataSource
	fetcher *MockFetcher
	tasks   *queue.MemoryQueue
	metrics *monitoring.Metrics
	service *Service
}

func newFixture(t *testing.T, cfg models.ScrapeConfig, objects storage.StorageInterface) *fixture {
	t.Helper()
	ctx := context.Background()
	repo := store.NewMemoryStore()

	profile := &models.MonitoringProfile{Name: "Acme", Keywords: []string{"acme"}}
	require.NoError(t, repo.CreateProfile(ctx, profile))

	source := &models.DataSource{
		ProfileID:      profile.ID,
		URL:            "https://news.example.com/acme",
		Enabled:        true,
		FrequencyHours: 6,
		ScrapeConfig:   cfg,
	}
	_, err := repo.CreateSource(ctx, source)
	require.NoError(t, err)

	f := &fixture{
		repo:    repo,
		source:  source,
		fetcher: &MockFetcher{},
		tasks:   queue.NewMemoryQueue(10, 0),
		metrics: monitoring.NewMetrics(),
	}
	f.service = NewService(repo, f.fetcher, objects, f.tasks, f.metrics, true)
	f.service.now = func() time.Time { return fixedNow }
	return f
}

func (f *fixture) assertRescheduled(t *testing.T) {
	t.Helper()
	source, err := f.repo.GetSource(context.Background(), f.source.ID)
	require.NoError(t, err)
	require.NotNil(t, source.LastScrapedAt)
	assert.Equal(t, fixedNow, *source.LastScrapedAt)
	assert.Equal(t, fixedNow.Add(6*time.Hour), source.NextScrapeAt)
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", Fingerprint(""))
	assert.Equal(t, Fingerprint("Acme"), Fingerprint("Acme"))
	assert.NotEqual(t, Fingerprint("Acme"), Fingerprint("acme"))
	assert.Len(t, Fingerprint("anything"), 32)
}

func TestScrape_DeduplicatesIdenticalText(t *testing.T) {
	f := newFixture(t, models.ScrapeConfig{}, nil)
	ctx := context.Background()
	f.fetcher.On("Fetch", mock.Anything, f.source.URL, mock.Anything).Return(&fetch.Page{Text: "Acme ships new chips"}, nil)

	first, err := f.service.Scrape(ctx, f.source.ID)
	require.NoError(t, err)
	assert.False(t, first.Duplicate)
	assert.Equal(t, Fingerprint("Acme ships new chips"), first.ContentHash)

	stored, err := f.repo.GetContent(ctx, first.ContentID)
	require.NoError(t, err)
	assert.False(t, stored.AIProcessed)

	second, err := f.service.Scrape(ctx, f.source.ID)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.ContentID, second.ContentID)
	assert.Equal(t, 1, f.repo.CountContents(f.source.ID))

	// analysis was requested once, for the first scrape only
	assert.Equal(t, 1, f.tasks.Len())
	tasks, err := f.tasks.Dequeue(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, first.ContentID, tasks[0].ContentID)
	assert.True(t, tasks[0].GenerateEmbedding)

	assert.Equal(t, 1, f.metrics.Get(monitoring.ContentNew))
	assert.Equal(t, 1, f.metrics.Get(monitoring.ContentDuplicate))
	f.assertRescheduled(t)
}

func TestScrape_ChangedTextIsNewContent(t *testing.T) {
	f := newFixture(t, models.ScrapeConfig{}, nil)
	ctx := context.Background()
	f.fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(&fetch.Page{Text: "v1"}, nil).Once()
	f.fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(&fetch.Page{Text: "v2"}, nil).Once()

	first, err := f.service.Scrape(ctx, f.source.ID)
	require.NoError(t, err)
	second, err := f.service.Scrape(ctx, f.source.ID)
	require.NoError(t, err)

	assert.NotEqual(t, first.ContentID, second.ContentID)
	assert.False(t, second.Duplicate)
	assert.Equal(t, 2, f.repo.CountContents(f.source.ID))
	assert.Equal(t, 2, f.tasks.Len())
}

func TestScrape_StoresSnapshots(t *testing.T) {
	objects, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	f := newFixture(t, models.ScrapeConfig{SaveHTML: true, CaptureScreenshot: true}, objects)

	f.fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(&fetch.Page{
		Text:           "Acme",
		HTML:           "<p>Acme</p>",
		Screenshot:     []byte{1, 2, 3},
		ScreenshotType: "image/png",
	}, nil)

	result, err := f.service.Scrape(context.Background(), f.source.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(result.SnapshotURL, storage.SnapshotName(f.source.ID, result.ContentHash)))
	assert.True(t, strings.HasSuffix(result.ScreenshotURL, ".png"))

	html, err := objects.Retrieve(context.Background(), storage.SnapshotName(f.source.ID, result.ContentHash))
	require.NoError(t, err)
	assert.Equal(t, "<p>Acme</p>", string(html))

	stored, err := f.repo.GetContent(context.Background(), result.ContentID)
	require.NoError(t, err)
	require.NotNil(t, stored.SnapshotRef)
	assert.Equal(t, result.SnapshotURL, *stored.SnapshotRef)
}

func TestScrape_StorageFailureIsSkipped(t *testing.T) {
	f := newFixture(t, models.ScrapeConfig{SaveHTML: true}, failingStorage{})
	f.fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(&fetch.Page{Text: "Acme", HTML: "<p>Acme</p>"}, nil)

	result, err := f.service.Scrape(context.Background(), f.source.ID)
	require.NoError(t, err)
	assert.Empty(t, result.SnapshotURL)
	assert.NotEmpty(t, result.ContentID)
}

func TestScrape_FetchErrorStillReschedules(t *testing.T) {
	f := newFixture(t, models.ScrapeConfig{}, nil)
	f.fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, models.NewExternalError("fetch", errors.New("timeout")))

	_, err := f.service.Scrape(context.Background(), f.source.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrExternalService))
	assert.Equal(t, 0, f.tasks.Len())
	assert.Equal(t, 1, f.metrics.Get(monitoring.ScrapeErrors))
	f.assertRescheduled(t)
}

func TestScrape_EmptyTextIsAnError(t *testing.T) {
	f := newFixture(t, models.ScrapeConfig{}, nil)
	f.fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(&fetch.Page{}, nil)

	_, err := f.service.Scrape(context.Background(), f.source.ID)
	require.Error(t, err)
	assert.Equal(t, 0, f.repo.CountContents(f.source.ID))
	f.assertRescheduled(t)
}

func TestScrape_Errors(t *testing.T) {
	f := newFixture(t, models.ScrapeConfig{}, nil)

	_, err := f.service.Scrape(context.Background(), "")
	assert.True(t, errors.Is(err, models.ErrValidation))

	_, err = f.service.Scrape(context.Background(), "missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))

	orphan := &models.DataSource{ProfileID: "gone", URL: "https://orphan.example.com", Enabled: true}
	_, err = f.repo.CreateSource(context.Background(), orphan)
	require.NoError(t, err)
	_, err = f.service.Scrape(context.Background(), orphan.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))
	f.fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything)
}
