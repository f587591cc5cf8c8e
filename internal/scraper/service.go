package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/azure/mentions-monitor/internal/fetch"
	"github.com/azure/mentions-monitor/internal/models"
	"github.com/azure/mentions-monitor/internal/monitoring"
	"github.com/azure/mentions-monitor/internal/queue"
	"github.com/azure/mentions-monitor/internal/storage"
	"github.com/azure/mentions-monitor/internal/store"
)

// Repository is the slice of the store the scraper needs
type Repository interface {
	store.ProfileStore
	store.SourceStore
	store.ContentStore
}

// Enqueuer hands analysis tasks to the queue
type Enqueuer interface {
	Enqueue(ctx context.Context, task queue.Task) error
}

// Result describes the outcome of one scrape
type Result struct {
	ContentID     string `json:"contentId"`
	ContentHash   string `json:"contentHash"`
	Duplicate     bool   `json:"duplicate"`
	SnapshotURL   string `json:"snapshotUrl,omitempty"`
	ScreenshotURL string `json:"screenshotUrl,omitempty"`
}

// Service fetches sources and stores new content exactly once
type Service struct {
	repo      Repository
	fetcher   fetch.Fetcher
	objects   storage.StorageInterface
	tasks     Enqueuer
	metrics   *monitoring.Metrics
	embedding bool
	now       func() time.Time
}

// NewService creates a scraper; objects may be nil to skip snapshots.
// generateEmbedding is forwarded to every analysis task.
func NewService(repo Repository, fetcher fetch.Fetcher, objects storage.StorageInterface, tasks Enqueuer, metrics *monitoring.Metrics, generateEmbedding bool) *Service {
	return &Service{
		repo:      repo,
		fetcher:   fetcher,
		objects:   objects,
		tasks:     tasks,
		metrics:   metrics,
		embedding: generateEmbedding,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Scrape fetches the source, fingerprints its text and stores it unless the
// same text was already stored for this source. The source is rescheduled
// whatever the outcome.
func (s *Service) Scrape(ctx context.Context, sourceID string) (*Result, error) {
	if sourceID == "" {
		return nil, models.NewValidationError("sourceId", "is required")
	}

	source, err := s.repo.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetProfile(ctx, source.ProfileID); err != nil {
		return nil, err
	}

	now := s.now()
	defer s.reschedule(source, now)

	s.metrics.Inc(monitoring.ScrapesTotal)
	result, err := s.scrape(ctx, source, now)
	if err != nil {
		s.metrics.Inc(monitoring.ScrapeErrors)
		return nil, err
	}
	return result, nil
}

func (s *Service) scrape(ctx context.Context, source *models.DataSource, now time.Time) (*Result, error) {
	logger := logrus.WithFields(logrus.Fields{"source_id": source.ID, "profile_id": source.ProfileID})

	page, err := s.fetcher.Fetch(ctx, source.URL, source.ScrapeConfig)
	if err != nil {
		return nil, fmt.Errorf("scrape source %s: %w", source.ID, err)
	}
	if page.Text == "" {
		return nil, models.NewExternalError("fetch", fmt.Errorf("no text extracted from %s", source.URL))
	}

	hash := Fingerprint(page.Text)

	existing, err := s.repo.FindContentByHash(ctx, source.ID, hash)
	if err == nil {
		return s.duplicate(existing, logger), nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	result := &Result{ContentHash: hash}
	content := models.RawContent{
		SourceID:    source.ID,
		ProfileID:   source.ProfileID,
		Text:        page.Text,
		ContentHash: hash,
		ExtractedAt: now,
	}

	if source.ScrapeConfig.SaveHTML && page.HTML != "" {
		if ref := s.store(ctx, storage.SnapshotName(source.ID, hash), "text/html; charset=utf-8", []byte(page.HTML), logger); ref != "" {
			content.SnapshotRef = &ref
			result.SnapshotURL = ref
		}
	}
	if source.ScrapeConfig.CaptureScreenshot && len(page.Screenshot) > 0 {
		name := storage.ScreenshotName(source.ID, hash, page.ScreenshotType)
		if ref := s.store(ctx, name, page.ScreenshotType, page.Screenshot, logger); ref != "" {
			content.ScreenshotRef = &ref
			result.ScreenshotURL = ref
		}
	}

	inserted, err := s.repo.InsertContent(ctx, &content)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// lost the race against a concurrent scrape of the same text
		existing, err := s.repo.FindContentByHash(ctx, source.ID, hash)
		if err != nil {
			return nil, err
		}
		return s.duplicate(existing, logger), nil
	}

	s.metrics.Inc(monitoring.ContentNew)
	result.ContentID = content.ID
	logger.WithField("content_id", content.ID).Infof("Stored new content from %s", source.URL)

	if s.tasks != nil {
		if err := s.tasks.Enqueue(ctx, queue.NewAnalyzeTask(content.ID, s.embedding)); err != nil {
			logger.Errorf("Failed to enqueue analysis of content %s: %v", content.ID, err)
		}
	}
	return result, nil
}

func (s *Service) duplicate(existing *models.RawContent, logger *logrus.Entry) *Result {
	s.metrics.Inc(monitoring.ContentDuplicate)
	logger.Debugf("Content unchanged (hash %s), keeping %s", existing.ContentHash, existing.ID)

	result := &Result{ContentID: existing.ID, ContentHash: existing.ContentHash, Duplicate: true}
	if existing.SnapshotRef != nil {
		result.SnapshotURL = *existing.SnapshotRef
	}
	if existing.ScreenshotRef != nil {
		result.ScreenshotURL = *existing.ScreenshotRef
	}
	return result
}

func (s *Service) store(ctx context.Context, name, contentType string, data []byte, logger *logrus.Entry) string {
	if s.objects == nil {
		return ""
	}
	ref, err := s.objects.Store(ctx, name, contentType, data)
	if err != nil {
		logger.Warnf("Failed to store %s: %v", name, err)
		return ""
	}
	return ref
}

func (s *Service) reschedule(source *models.DataSource, now time.Time) {
	frequency := source.FrequencyHours
	if frequency <= 0 {
		frequency = 24
	}
	// detached so a cancelled request still moves the schedule forward
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	next := now.Add(time.Duration(frequency) * time.Hour)
	if err := s.repo.UpdateScrapeSchedule(ctx, source.ID, now, next); err != nil {
		logrus.Errorf("Failed to reschedule source %s: %v", source.ID, err)
	}
}
