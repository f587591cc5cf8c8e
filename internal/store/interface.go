package store

import (
	"context"
	"time"

	"github.com/azure/mentions-monitor/internal/models"
)

// ProfileStore persists monitoring profiles
type ProfileStore interface {
	CreateProfile(ctx context.Context, profile *models.MonitoringProfile) error
	GetProfile(ctx context.Context, id string) (*models.MonitoringProfile, error)
	ListDueProfiles(ctx context.Context, now time.Time) ([]models.MonitoringProfile, error)
	UpdateProfileSchedule(ctx context.Context, id string, lastRunAt, nextRunAt time.Time) error
}

// SourceStore persists data sources
type SourceStore interface {
	// CreateSource inserts the source unless the profile already knows its URL
	// (case-insensitive); the returned bool reports whether a row was inserted.
	CreateSource(ctx context.Context, source *models.DataSource) (bool, error)
	GetSource(ctx context.Context, id string) (*models.DataSource, error)
	ListSourceURLs(ctx context.Context, profileID string) ([]string, error)
	ListDueSources(ctx context.Context, profileID string, now time.Time) ([]models.DataSource, error)
	UpdateScrapeSchedule(ctx context.Context, id string, lastScrapedAt, nextScrapeAt time.Time) error
}

// ContentStore is the dedup store for raw content
type ContentStore interface {
	GetContent(ctx context.Context, id string) (*models.RawContent, error)
	FindContentByHash(ctx context.Context, sourceID, contentHash string) (*models.RawContent, error)
	// InsertContent atomically inserts the content unless (SourceID, ContentHash)
	// already exists; the returned bool is false on conflict.
	InsertContent(ctx context.Context, content *models.RawContent) (bool, error)
	MarkProcessed(ctx context.Context, id string) error
}

// InsightStore persists analysis results
type InsightStore interface {
	// CreateInsight returns false when an insight already exists for the raw content.
	CreateInsight(ctx context.Context, insight *models.Insight) (bool, error)
	GetInsight(ctx context.Context, id string) (*models.Insight, error)
	GetInsightByContent(ctx context.Context, rawContentID string) (*models.Insight, error)
}

// AlertStore persists alerts
type AlertStore interface {
	// CreateAlert returns false when an alert already exists for the insight.
	CreateAlert(ctx context.Context, alert *models.Alert) (bool, error)
	GetAlertByInsight(ctx context.Context, insightID string) (*models.Alert, error)
}

// NotificationStore persists in-app notifications
type NotificationStore interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
	ListNotifications(ctx context.Context, userID string) ([]models.Notification, error)
}

// Store groups every repository used by the pipeline
type Store interface {
	ProfileStore
	SourceStore
	ContentStore
	InsightStore
	AlertStore
	NotificationStore
	Close() error
}
