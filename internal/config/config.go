package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Schedule configuration
	CycleSchedule  string // cron expression with seconds field
	ProfileWorkers int
	SourceWorkers  int

	// Persistence
	StoreDriver string // "postgres", "sqlite" or "memory"
	DatabaseURL string

	// Task queue between scraper and analyzer
	QueueDriver      string // "memory" or "redis"
	QueueStream      string
	QueueGroup       string
	QueueConsumer    string
	QueueDLQStream   string
	QueueWorkers     int
	QueueMaxAttempts int
	QueueRetryDelay  time.Duration
	QueueClaimIdle   time.Duration // pending tasks idle this long are taken over from dead consumers

	// Redis (queue + realtime notifications)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Object storage for snapshots and screenshots
	StorageProvider  string // "azure", "gcs", "file" or "none"
	StorageAccount   string
	StorageContainer string
	GCSBucket        string
	GCSEndpoint      string // emulator endpoint; empty uses the real service
	StorageDir       string

	// Outbound HTTP
	HTTPTimeout    time.Duration
	HTTPRetryCount int
	UserAgent      string
	RespectRobots  bool
	ScreenshotURL  string

	// AI analysis
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	AnalysisModel     string
	EmbeddingModel    string
	AITimeout         time.Duration
	AIMaxRetries      int
	GenerateEmbedding bool
	MaxAnalysisChars  int
	RelevanceMinScore float64

	// Notification configuration
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	SMTPFrom          string

	// Discovery providers
	DiscoveryProviders []string
	RedditClientID     string
	RedditClientSecret string
	YouTubeAPIKey      string
	WebSearchURL       string
	WebSearchAPIKey    string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		CycleSchedule:  getEnv("CYCLE_SCHEDULE", "0 */15 * * * *"),
		ProfileWorkers: getIntEnv("SCHEDULER_PROFILE_WORKERS", 4),
		SourceWorkers:  getIntEnv("SCHEDULER_SOURCE_WORKERS", 8),

		StoreDriver: getEnv("STORE_DRIVER", "postgres"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		QueueDriver:      getEnv("QUEUE_DRIVER", "memory"),
		QueueStream:      getEnv("QUEUE_STREAM", "monitor:analyze"),
		QueueGroup:       getEnv("QUEUE_GROUP", "analyzers"),
		QueueConsumer:    getEnv("QUEUE_CONSUMER", hostname()),
		QueueDLQStream:   getEnv("QUEUE_DLQ_STREAM", "monitor:analyze:dlq"),
		QueueWorkers:     getIntEnv("QUEUE_WORKERS", 4),
		QueueMaxAttempts: getIntEnv("QUEUE_MAX_ATTEMPTS", 3),
		QueueRetryDelay:  getDurationEnv("QUEUE_RETRY_DELAY", 5*time.Second),
		QueueClaimIdle:   getDurationEnv("QUEUE_CLAIM_IDLE", 10*time.Minute),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		StorageProvider:  getEnv("STORAGE_PROVIDER", "none"),
		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "snapshots"),
		GCSBucket:        getEnv("GCS_BUCKET", ""),
		GCSEndpoint:      getEnv("GCS_ENDPOINT", ""),
		StorageDir:       getEnv("STORAGE_DIR", "data/snapshots"),

		HTTPTimeout:    getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		HTTPRetryCount: getIntEnv("HTTP_RETRY_COUNT", 2),
		UserAgent:      getEnv("USER_AGENT", "Mentions-Monitor/1.0"),
		RespectRobots:  getBoolEnv("RESPECT_ROBOTS", true),
		ScreenshotURL:  getEnv("SCREENSHOT_SERVICE_URL", ""),

		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		AnalysisModel:     getEnv("ANALYSIS_MODEL", "gpt-4o-mini"),
		EmbeddingModel:    getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		AITimeout:         getDurationEnv("AI_TIMEOUT", 60*time.Second),
		AIMaxRetries:      getIntEnv("AI_MAX_RETRIES", 2),
		GenerateEmbedding: getBoolEnv("GENERATE_EMBEDDINGS", true),
		MaxAnalysisChars:  getIntEnv("MAX_ANALYSIS_CHARS", 8000),
		RelevanceMinScore: getFloatEnv("RELEVANCE_MIN_SCORE", 0.6),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:          getEnv("SMTP_FROM", ""),

		DiscoveryProviders: getSliceEnv("DISCOVERY_PROVIDERS", []string{"hackernews", "stackoverflow", "reddit", "youtube", "websearch"}),
		RedditClientID:     getEnv("REDDIT_CLIENT_ID", ""),
		RedditClientSecret: getEnv("REDDIT_CLIENT_SECRET", ""),
		YouTubeAPIKey:      getEnv("YOUTUBE_API_KEY", ""),
		WebSearchURL:       getEnv("WEB_SEARCH_URL", ""),
		WebSearchAPIKey:    getEnv("WEB_SEARCH_API_KEY", ""),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case "postgres", "sqlite":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %s", c.StoreDriver)
		}
	case "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be 'postgres', 'sqlite' or 'memory'")
	}

	switch c.QueueDriver {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when QUEUE_DRIVER is redis")
		}
	default:
		return fmt.Errorf("QUEUE_DRIVER must be 'memory' or 'redis'")
	}

	switch c.StorageProvider {
	case "azure":
		if c.StorageAccount == "" {
			return fmt.Errorf("AZURE_STORAGE_ACCOUNT is required when STORAGE_PROVIDER is azure")
		}
	case "gcs":
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required when STORAGE_PROVIDER is gcs")
		}
	case "file", "none":
	default:
		return fmt.Errorf("STORAGE_PROVIDER must be 'azure', 'gcs', 'file' or 'none'")
	}

	if c.ProfileWorkers < 1 || c.SourceWorkers < 1 || c.QueueWorkers < 1 {
		return fmt.Errorf("worker counts must be at least 1")
	}

	if c.QueueMaxAttempts < 1 {
		return fmt.Errorf("QUEUE_MAX_ATTEMPTS must be at least 1")
	}

	if c.RelevanceMinScore < 0 || c.RelevanceMinScore > 1 {
		return fmt.Errorf("RELEVANCE_MIN_SCORE must be between 0 and 1")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// EmailEnabled reports whether SMTP delivery is configured
func (c *Config) EmailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPUsername != ""
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return items
	}
	return defaultValue
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "monitor"
	}
	return name
}
