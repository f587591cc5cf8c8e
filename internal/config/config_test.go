package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "0 */15 * * * *", cfg.CycleSchedule)
	assert.Equal(t, 4, cfg.ProfileWorkers)
	assert.Equal(t, 8, cfg.SourceWorkers)
	assert.Equal(t, "memory", cfg.QueueDriver)
	assert.Equal(t, 3, cfg.QueueMaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.QueueClaimIdle)
	assert.Equal(t, 0.6, cfg.RelevanceMinScore)
	assert.Equal(t, 8000, cfg.MaxAnalysisChars)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.True(t, cfg.RespectRobots)
	assert.True(t, cfg.GenerateEmbedding)
	assert.False(t, cfg.EmailEnabled())
	assert.Equal(t, []string{"hackernews", "stackoverflow", "reddit", "youtube", "websearch"}, cfg.DiscoveryProviders)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file::memory:")
	t.Setenv("QUEUE_DRIVER", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("DISCOVERY_PROVIDERS", " hackernews , medium,,")
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("RELEVANCE_MIN_SCORE", "0.75")
	t.Setenv("SCHEDULER_PROFILE_WORKERS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"hackernews", "medium"}, cfg.DiscoveryProviders)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 0.75, cfg.RelevanceMinScore)
	assert.Equal(t, 4, cfg.ProfileWorkers, "unparsable values fall back to the default")
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown store", map[string]string{"STORE_DRIVER": "mongo"}},
		{"postgres without dsn", map[string]string{"STORE_DRIVER": "postgres"}},
		{"redis without addr", map[string]string{"STORE_DRIVER": "memory", "QUEUE_DRIVER": "redis"}},
		{"unknown queue", map[string]string{"STORE_DRIVER": "memory", "QUEUE_DRIVER": "kafka"}},
		{"azure without account", map[string]string{"STORE_DRIVER": "memory", "STORAGE_PROVIDER": "azure"}},
		{"gcs without bucket", map[string]string{"STORE_DRIVER": "memory", "STORAGE_PROVIDER": "gcs"}},
		{"unknown storage", map[string]string{"STORE_DRIVER": "memory", "STORAGE_PROVIDER": "s3"}},
		{"zero workers", map[string]string{"STORE_DRIVER": "memory", "QUEUE_WORKERS": "0"}},
		{"zero attempts", map[string]string{"STORE_DRIVER": "memory", "QUEUE_MAX_ATTEMPTS": "0"}},
		{"score out of range", map[string]string{"STORE_DRIVER": "memory", "RELEVANCE_MIN_SCORE": "1.5"}},
		{"email without smtp", map[string]string{"STORE_DRIVER": "memory", "NOTIFICATION_EMAIL": "ops@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
