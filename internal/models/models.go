package models

import (
	"time"

	"gorm.io/datatypes"
)

// Sensitivity controls how readily an insight raises an alert for a profile
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// Channel identifies a notification channel an alert can be fanned out to
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelTeams Channel = "teams"
)

// Sentiment of a classified piece of content
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Severity of an alert
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Valid reports whether s is one of the known severity levels
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	}
	return false
}

// AlertStatus is the lifecycle state of an alert
type AlertStatus string

const (
	AlertStatusNew          AlertStatus = "new"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// AlertConfig is the alerting policy attached to a profile
type AlertConfig struct {
	Sensitivity          Sensitivity `json:"sensitivity" gorm:"column:sensitivity"`
	NotificationChannels []Channel   `json:"notification_channels" gorm:"column:notification_channels;serializer:json"`
	EmailRecipients      []string    `json:"email_recipients,omitempty" gorm:"column:email_recipients;serializer:json"`
}

// MonitoringProfile is a user's configured monitoring target
type MonitoringProfile struct {
	ID                     string      `json:"id" gorm:"primaryKey;size:36"`
	UserID                 string      `json:"user_id" gorm:"size:64;index"`
	Name                   string      `json:"name"`
	Keywords               []string    `json:"keywords" gorm:"serializer:json"`
	FrequencyHours         int         `json:"frequency_hours"`
	LastRunAt              *time.Time  `json:"last_run_at,omitempty"`
	NextRunAt              time.Time   `json:"next_run_at" gorm:"index"`
	SourceDiscoveryEnabled bool        `json:"source_discovery_enabled"`
	AlertConfig            AlertConfig `json:"alert_config" gorm:"embedded;embeddedPrefix:alert_"`
	CreatedAt              time.Time   `json:"created_at"`
}

func (MonitoringProfile) TableName() string {
	return "monitoring_profiles"
}

// ScrapeConfig tells the fetcher how to extract content from a source
type ScrapeConfig struct {
	Selectors         []string `json:"selectors,omitempty" gorm:"column:selectors;serializer:json"`
	CaptureScreenshot bool     `json:"capture_screenshot" gorm:"column:capture_screenshot"`
	SaveHTML          bool     `json:"save_html" gorm:"column:save_html"`
}

// DataSource is one external origin periodically fetched for a profile
type DataSource struct {
	ID                 string       `json:"id" gorm:"primaryKey;size:36"`
	ProfileID          string       `json:"profile_id" gorm:"size:36;not null;uniqueIndex:idx_source_profile_url"`
	URL                string       `json:"url" gorm:"not null"`
	URLKey             string       `json:"-" gorm:"column:url_key;not null;uniqueIndex:idx_source_profile_url"`
	SourceType         string       `json:"source_type"`
	Title              string       `json:"title,omitempty"`
	Description        string       `json:"description,omitempty"`
	ScrapeConfig       ScrapeConfig `json:"scrape_config" gorm:"embedded;embeddedPrefix:scrape_"`
	FrequencyHours     int          `json:"frequency_hours"`
	Enabled            bool         `json:"enabled" gorm:"index"`
	LastScrapedAt      *time.Time   `json:"last_scraped_at,omitempty"`
	NextScrapeAt       time.Time    `json:"next_scrape_at" gorm:"index"`
	DiscoveredAt       *time.Time   `json:"discovered_at,omitempty"`
	RelevanceScore     float64      `json:"relevance_score"`
	RelevanceRationale string       `json:"relevance_rationale,omitempty"`
}

func (DataSource) TableName() string {
	return "data_sources"
}

// RawContent is one fetched, fingerprinted piece of content
type RawContent struct {
	ID            string    `json:"id" gorm:"primaryKey;size:36"`
	SourceID      string    `json:"source_id" gorm:"size:36;not null;uniqueIndex:idx_content_source_hash"`
	ProfileID     string    `json:"profile_id" gorm:"size:36;not null;index"`
	Text          string    `json:"text"`
	ContentHash   string    `json:"content_hash" gorm:"size:32;not null;uniqueIndex:idx_content_source_hash"`
	ExtractedAt   time.Time `json:"extracted_at"`
	SnapshotRef   *string   `json:"snapshot_ref,omitempty"`
	ScreenshotRef *string   `json:"screenshot_ref,omitempty"`
	AIProcessed   bool      `json:"ai_processed" gorm:"index"`
}

func (RawContent) TableName() string {
	return "raw_contents"
}

// Entity is a named thing the analysis found in the content
type Entity struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Importance float64 `json:"importance"`
}

// ImpactAssessment scores impact on a 1-5 scale per dimension
type ImpactAssessment struct {
	Business   int `json:"business" gorm:"column:business"`
	Market     int `json:"market" gorm:"column:market"`
	Reputation int `json:"reputation" gorm:"column:reputation"`
}

// Insight is the structured output of classifying one RawContent
type Insight struct {
	ID               string           `json:"id" gorm:"primaryKey;size:36"`
	RawContentID     string           `json:"raw_content_id" gorm:"size:36;not null;uniqueIndex"`
	SourceID         string           `json:"source_id" gorm:"size:36;index"`
	ProfileID        string           `json:"profile_id" gorm:"size:36;index"`
	Summary          string           `json:"summary"`
	Sentiment        Sentiment        `json:"sentiment"`
	SentimentScore   float64          `json:"sentiment_score"`
	Entities         []Entity         `json:"entities" gorm:"serializer:json"`
	Topics           []string         `json:"topics" gorm:"serializer:json"`
	IsCrisis         bool             `json:"is_crisis"`
	IsOpportunity    bool             `json:"is_opportunity"`
	ImpactAssessment ImpactAssessment `json:"impact_assessment" gorm:"embedded;embeddedPrefix:impact_"`
	KeyInsights      []string         `json:"key_insights" gorm:"serializer:json"`
	Embedding        []float32        `json:"embedding,omitempty" gorm:"serializer:json"`
	ProcessedAt      time.Time        `json:"processed_at"`
}

func (Insight) TableName() string {
	return "insights"
}

// Alert is raised for an insight that crossed the profile's policy
type Alert struct {
	ID        string      `json:"id" gorm:"primaryKey;size:36"`
	ProfileID string      `json:"profile_id" gorm:"size:36;index"`
	InsightID string      `json:"insight_id" gorm:"size:36;not null;uniqueIndex"`
	Severity  Severity    `json:"severity"`
	Title     string      `json:"title"`
	Status    AlertStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

func (Alert) TableName() string {
	return "alerts"
}

// Notification is an in-app message delivered to a user for an alert
type Notification struct {
	ID        string         `json:"id" gorm:"primaryKey;size:36"`
	UserID    string         `json:"user_id" gorm:"size:64;index"`
	AlertID   string         `json:"alert_id" gorm:"size:36;index"`
	Type      string         `json:"type"`
	Payload   datatypes.JSON `json:"payload"`
	Read      bool           `json:"read"`
	CreatedAt time.Time      `json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

// Candidate is a potential new source returned by discovery
type Candidate struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	SourceType  string `json:"source_type"` // "forum", "qa", "video", "news", "web"
	Provider    string `json:"provider,omitempty"`
}
