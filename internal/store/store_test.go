package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azure/mentions-monitor/internal/models"
)

func newStores(t *testing.T) map[string]Store {
	t.Helper()

	gormStore, err := Open("sqlite", filepath.Join(t.TempDir(), "monitor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = gormStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"gorm":   gormStore,
	}
}

func seedProfile(t *testing.T, s Store, nextRun time.Time) *models.MonitoringProfile {
	t.Helper()
	profile := &models.MonitoringProfile{
		UserID:         "user-1",
		Name:           "chips",
		Keywords:       []string{"chips"},
		FrequencyHours: 6,
		NextRunAt:      nextRun,
		CreatedAt:      nextRun.Add(-time.Hour),
		AlertConfig: models.AlertConfig{
			Sensitivity:          models.SensitivityMedium,
			NotificationChannels: []models.Channel{models.ChannelInApp},
		},
	}
	require.NoError(t, s.CreateProfile(context.Background(), profile))
	return profile
}

func TestStore_Profiles(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			due := seedProfile(t, s, now.Add(-time.Hour))
			seedProfile(t, s, now.Add(time.Hour))

			profiles, err := s.ListDueProfiles(ctx, now)
			require.NoError(t, err)
			require.Len(t, profiles, 1)
			assert.Equal(t, due.ID, profiles[0].ID)
			assert.Equal(t, []string{"chips"}, profiles[0].Keywords)
			assert.Contains(t, profiles[0].AlertConfig.NotificationChannels, models.ChannelInApp)

			next := now.Add(6 * time.Hour)
			require.NoError(t, s.UpdateProfileSchedule(ctx, due.ID, now, next))

			got, err := s.GetProfile(ctx, due.ID)
			require.NoError(t, err)
			assert.True(t, got.NextRunAt.Equal(next))
			require.NotNil(t, got.LastRunAt)
			assert.True(t, got.LastRunAt.Equal(now))

			_, err = s.GetProfile(ctx, "missing")
			assert.True(t, errors.Is(err, models.ErrNotFound))
			assert.True(t, errors.Is(s.UpdateProfileSchedule(ctx, "missing", now, next), models.ErrNotFound))
		})
	}
}

func TestStore_SourceURLUniquePerProfile(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p1 := seedProfile(t, s, now)
			p2 := seedProfile(t, s, now)

			created, err := s.CreateSource(ctx, &models.DataSource{ProfileID: p1.ID, URL: "https://Example.com/News", Enabled: true, NextScrapeAt: now})
			require.NoError(t, err)
			assert.True(t, created)

			created, err = s.CreateSource(ctx, &models.DataSource{ProfileID: p1.ID, URL: "https://example.com/news", Enabled: true, NextScrapeAt: now})
			require.NoError(t, err)
			assert.False(t, created, "same URL differing only in case must not be inserted twice")

			created, err = s.CreateSource(ctx, &models.DataSource{ProfileID: p2.ID, URL: "https://example.com/news", Enabled: true, NextScrapeAt: now})
			require.NoError(t, err)
			assert.True(t, created, "uniqueness is scoped to the profile")

			urls, err := s.ListSourceURLs(ctx, p1.ID)
			require.NoError(t, err)
			assert.Equal(t, []string{"https://Example.com/News"}, urls)
		})
	}
}

func TestStore_DueSources(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := seedProfile(t, s, now)

			due := &models.DataSource{ProfileID: p.ID, URL: "https://a.example", Enabled: true, NextScrapeAt: now.Add(-time.Minute), FrequencyHours: 24}
			later := &models.DataSource{ProfileID: p.ID, URL: "https://b.example", Enabled: true, NextScrapeAt: now.Add(time.Hour)}
			disabled := &models.DataSource{ProfileID: p.ID, URL: "https://c.example", Enabled: false, NextScrapeAt: now.Add(-time.Hour)}
			for _, src := range []*models.DataSource{due, later, disabled} {
				_, err := s.CreateSource(ctx, src)
				require.NoError(t, err)
			}

			sources, err := s.ListDueSources(ctx, p.ID, now)
			require.NoError(t, err)
			require.Len(t, sources, 1)
			assert.Equal(t, due.ID, sources[0].ID)

			next := now.Add(24 * time.Hour)
			require.NoError(t, s.UpdateScrapeSchedule(ctx, due.ID, now, next))
			got, err := s.GetSource(ctx, due.ID)
			require.NoError(t, err)
			assert.True(t, got.NextScrapeAt.Equal(next))
		})
	}
}

func TestStore_ContentDedup(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first := &models.RawContent{SourceID: "src-1", ProfileID: "p-1", Text: "hello", ContentHash: "5d41402abc4b2a76b9719d911017c592", ExtractedAt: now}
			created, err := s.InsertContent(ctx, first)
			require.NoError(t, err)
			assert.True(t, created)

			second := &models.RawContent{SourceID: "src-1", ProfileID: "p-1", Text: "hello", ContentHash: first.ContentHash, ExtractedAt: now}
			created, err = s.InsertContent(ctx, second)
			require.NoError(t, err)
			assert.False(t, created)

			found, err := s.FindContentByHash(ctx, "src-1", first.ContentHash)
			require.NoError(t, err)
			assert.Equal(t, first.ID, found.ID)
			assert.False(t, found.AIProcessed)

			_, err = s.FindContentByHash(ctx, "src-2", first.ContentHash)
			assert.True(t, errors.Is(err, models.ErrNotFound))

			require.NoError(t, s.MarkProcessed(ctx, first.ID))
			got, err := s.GetContent(ctx, first.ID)
			require.NoError(t, err)
			assert.True(t, got.AIProcessed)
		})
	}
}

func TestMemoryStore_ConcurrentInsertCreatesOneRow(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	createdCount := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := s.InsertContent(ctx, &models.RawContent{SourceID: "src", ContentHash: "h"})
			assert.NoError(t, err)
			if created {
				mu.Lock()
				createdCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, createdCount)
	assert.Equal(t, 1, s.CountContents("src"))
}

func TestStore_InsightAndAlertUniqueness(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			insight := &models.Insight{
				RawContentID: "content-1",
				Summary:      "Supply shortage",
				Sentiment:    models.SentimentNegative,
				Entities:     []models.Entity{{Name: "Acme", Type: "company", Importance: 0.8}},
				Topics:       []string{"supply"},
				KeyInsights:  []string{"shortage expected"},
				Embedding:    []float32{0.1, 0.2},
				ImpactAssessment: models.ImpactAssessment{
					Business: 4, Market: 3, Reputation: 2,
				},
				ProcessedAt: now,
			}
			created, err := s.CreateInsight(ctx, insight)
			require.NoError(t, err)
			assert.True(t, created)

			created, err = s.CreateInsight(ctx, &models.Insight{RawContentID: "content-1"})
			require.NoError(t, err)
			assert.False(t, created)

			got, err := s.GetInsightByContent(ctx, "content-1")
			require.NoError(t, err)
			assert.Equal(t, insight.ID, got.ID)
			assert.Equal(t, 4, got.ImpactAssessment.Business)
			assert.Equal(t, []float32{0.1, 0.2}, got.Embedding)
			assert.Equal(t, "Acme", got.Entities[0].Name)

			alert := &models.Alert{ProfileID: "p-1", InsightID: insight.ID, Severity: models.SeverityCritical, Title: "CRISIS ALERT: x", Status: models.AlertStatusNew, CreatedAt: now}
			created, err = s.CreateAlert(ctx, alert)
			require.NoError(t, err)
			assert.True(t, created)

			created, err = s.CreateAlert(ctx, &models.Alert{ProfileID: "p-1", InsightID: insight.ID, Severity: models.SeverityLow, Status: models.AlertStatusNew, CreatedAt: now})
			require.NoError(t, err)
			assert.False(t, created)

			existing, err := s.GetAlertByInsight(ctx, insight.ID)
			require.NoError(t, err)
			assert.Equal(t, alert.ID, existing.ID)
		})
	}
}

func TestStore_Notifications(t *testing.T) {
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.CreateNotification(ctx, &models.Notification{
				UserID:  "user-1",
				AlertID: "alert-1",
				Type:    "alert",
				Payload: []byte(`{"severity":"critical"}`),
			}))

			list, err := s.ListNotifications(ctx, "user-1")
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, "alert-1", list[0].AlertID)
			assert.False(t, list[0].Read)
		})
	}
}
