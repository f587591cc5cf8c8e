package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/azure/mentions-monitor/internal/models"
)

// MemoryStore is an in-process Store used for local runs and tests.
// Uniqueness rules match the gorm schema: (profile, url key) for sources,
// (source, hash) for content, one insight per content and one alert per insight.
type MemoryStore struct {
	mu            sync.RWMutex
	profiles      map[string]models.MonitoringProfile
	sources       map[string]models.DataSource
	contents      map[string]models.RawContent
	insights      map[string]models.Insight
	alerts        map[string]models.Alert
	notifications []models.Notification
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]models.MonitoringProfile),
		sources:  make(map[string]models.DataSource),
		contents: make(map[string]models.RawContent),
		insights: make(map[string]models.Insight),
		alerts:   make(map[string]models.Alert),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) CreateProfile(ctx context.Context, profile *models.MonitoringProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}
	m.profiles[profile.ID] = *profile
	return nil
}

func (m *MemoryStore) GetProfile(ctx context.Context, id string) (*models.MonitoringProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	profile, ok := m.profiles[id]
	if !ok {
		return nil, models.NotFoundError("profile", id)
	}
	return &profile, nil
}

func (m *MemoryStore) ListDueProfiles(ctx context.Context, now time.Time) ([]models.MonitoringProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []models.MonitoringProfile
	for _, profile := range m.profiles {
		if !profile.NextRunAt.After(now) {
			due = append(due, profile)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextRunAt.Before(due[j].NextRunAt)
	})
	return due, nil
}

func (m *MemoryStore) UpdateProfileSchedule(ctx context.Context, id string, lastRunAt, nextRunAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	profile, ok := m.profiles[id]
	if !ok {
		return models.NotFoundError("profile", id)
	}
	last := lastRunAt
	profile.LastRunAt = &last
	profile.NextRunAt = nextRunAt
	m.profiles[id] = profile
	return nil
}

func (m *MemoryStore) CreateSource(ctx context.Context, source *models.DataSource) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := URLKey(source.URL)
	for _, existing := range m.sources {
		if existing.ProfileID == source.ProfileID && existing.URLKey == key {
			return false, nil
		}
	}

	if source.ID == "" {
		source.ID = uuid.NewString()
	}
	source.URLKey = key
	m.sources[source.ID] = *source
	return true, nil
}

func (m *MemoryStore) GetSource(ctx context.Context, id string) (*models.DataSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	source, ok := m.sources[id]
	if !ok {
		return nil, models.NotFoundError("source", id)
	}
	return &source, nil
}

func (m *MemoryStore) ListSourceURLs(ctx context.Context, profileID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var urls []string
	for _, source := range m.sources {
		if source.ProfileID == profileID {
			urls = append(urls, source.URL)
		}
	}
	return urls, nil
}

func (m *MemoryStore) ListDueSources(ctx context.Context, profileID string, now time.Time) ([]models.DataSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var due []models.DataSource
	for _, source := range m.sources {
		if source.ProfileID == profileID && source.Enabled && !source.NextScrapeAt.After(now) {
			due = append(due, source)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextScrapeAt.Before(due[j].NextScrapeAt)
	})
	return due, nil
}

func (m *MemoryStore) UpdateScrapeSchedule(ctx context.Context, id string, lastScrapedAt, nextScrapeAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	source, ok := m.sources[id]
	if !ok {
		return models.NotFoundError("source", id)
	}
	last := lastScrapedAt
	source.LastScrapedAt = &last
	source.NextScrapeAt = nextScrapeAt
	m.sources[id] = source
	return nil
}

func (m *MemoryStore) GetContent(ctx context.Context, id string) (*models.RawContent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	content, ok := m.contents[id]
	if !ok {
		return nil, models.NotFoundError("content", id)
	}
	return &content, nil
}

func (m *MemoryStore) FindContentByHash(ctx context.Context, sourceID, contentHash string) (*models.RawContent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if content, ok := m.findContent(sourceID, contentHash); ok {
		return &content, nil
	}
	return nil, models.NotFoundError("content", sourceID+"/"+contentHash)
}

func (m *MemoryStore) findContent(sourceID, contentHash string) (models.RawContent, bool) {
	for _, content := range m.contents {
		if content.SourceID == sourceID && content.ContentHash == contentHash {
			return content, true
		}
	}
	return models.RawContent{}, false
}

func (m *MemoryStore) InsertContent(ctx context.Context, content *models.RawContent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.findContent(content.SourceID, content.ContentHash); exists {
		return false, nil
	}
	if content.ID == "" {
		content.ID = uuid.NewString()
	}
	m.contents[content.ID] = *content
	return true, nil
}

func (m *MemoryStore) MarkProcessed(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	content, ok := m.contents[id]
	if !ok {
		return models.NotFoundError("content", id)
	}
	content.AIProcessed = true
	m.contents[id] = content
	return nil
}

func (m *MemoryStore) CreateInsight(ctx context.Context, insight *models.Insight) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.insights {
		if existing.RawContentID == insight.RawContentID {
			return false, nil
		}
	}
	if insight.ID == "" {
		insight.ID = uuid.NewString()
	}
	m.insights[insight.ID] = *insight
	return true, nil
}

func (m *MemoryStore) GetInsight(ctx context.Context, id string) (*models.Insight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	insight, ok := m.insights[id]
	if !ok {
		return nil, models.NotFoundError("insight", id)
	}
	return &insight, nil
}

func (m *MemoryStore) GetInsightByContent(ctx context.Context, rawContentID string) (*models.Insight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, insight := range m.insights {
		if insight.RawContentID == rawContentID {
			return &insight, nil
		}
	}
	return nil, models.NotFoundError("insight", rawContentID)
}

func (m *MemoryStore) CreateAlert(ctx context.Context, alert *models.Alert) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.alerts {
		if existing.InsightID == alert.InsightID {
			return false, nil
		}
	}
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	m.alerts[alert.ID] = *alert
	return true, nil
}

func (m *MemoryStore) GetAlertByInsight(ctx context.Context, insightID string) (*models.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, alert := range m.alerts {
		if alert.InsightID == insightID {
			return &alert, nil
		}
	}
	return nil, models.NotFoundError("alert", insightID)
}

func (m *MemoryStore) CreateNotification(ctx context.Context, notification *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	m.notifications = append(m.notifications, *notification)
	return nil
}

func (m *MemoryStore) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []models.Notification
	for _, notification := range m.notifications {
		if notification.UserID == userID {
			result = append(result, notification)
		}
	}
	return result, nil
}

// CountContents returns the number of stored raw content rows for a source
func (m *MemoryStore) CountContents(sourceID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, content := range m.contents {
		if content.SourceID == sourceID {
			count++
		}
	}
	return count
}

// CountSources returns the number of sources known to a profile
func (m *MemoryStore) CountSources(profileID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, source := range m.sources {
		if source.ProfileID == profileID {
			count++
		}
	}
	return count
}
