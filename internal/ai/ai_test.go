package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azure/mentions-monitor/internal/models"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "chip shortage hits Acme", "chip shortage hits Acme", 1.0},
		{"case and punctuation ignored", "Chip shortage!", "chip, SHORTAGE", 1.0},
		{"disjoint", "alpha beta", "gamma delta", 0},
		{"half overlap", "alpha beta", "beta gamma", 1.0 / 3.0},
		{"empty left", "", "anything", 0},
		{"empty right", "anything", "", 0},
		{"punctuation only", "!!!", "!!!", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 1e-9)
			assert.InDelta(t, Similarity(tt.a, tt.b), Similarity(tt.b, tt.a), 1e-9, "similarity must be symmetric")
		})
	}
}

func TestKeywordScorer(t *testing.T) {
	scorer := KeywordScorer{}
	ctx := context.Background()

	relevant, err := scorer.Score(ctx, models.Candidate{
		URL:         "https://forum.example.com/t/chips",
		Title:       "Chips supply news",
		Description: "Everything about semiconductor chips",
	}, []string{"chips"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, relevant.Score, 0.8)
	assert.Contains(t, relevant.Rationale, "matched 1 of 1")

	unrelated, err := scorer.Score(ctx, models.Candidate{
		URL:   "https://cooking.example.com",
		Title: "Pasta recipes",
	}, []string{"chips"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, unrelated.Score)

	none, err := scorer.Score(ctx, models.Candidate{Title: "chips"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, none.Score)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewOpenAIClient(Config{APIKey: "test-key", BaseURL: server.URL + "/v1/", MaxRetries: 0})
	require.NoError(t, err)
	return client
}

func chatResponse(t *testing.T, w http.ResponseWriter, content any) {
	t.Helper()
	body, err := json.Marshal(content)
	require.NoError(t, err)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": string(body)},
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
}

func TestOpenAIClient_Classify(t *testing.T) {
	var requestBody map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&requestBody))

		chatResponse(t, w, map[string]any{
			"summary":         "Acme reports a chip shortage",
			"sentiment":       "NEGATIVE",
			"sentiment_score": -1.7,
			"entities":        []map[string]any{{"name": "Acme", "type": "company", "importance": 1.4}},
			"topics":          []string{"supply"},
			"is_crisis":       true,
			"is_opportunity":  false,
			"impact_assessment": map[string]any{
				"business": 9, "market": 0, "reputation": 3,
			},
			"key_insights": []string{"shortage through Q3"},
		})
	})

	got, err := client.Classify(context.Background(), ClassifyRequest{
		Text:     "Acme cannot ship chips",
		Keywords: []string{"chips"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Acme reports a chip shortage", got.Summary)
	assert.Equal(t, models.SentimentNegative, got.Sentiment)
	assert.Equal(t, -1.0, got.SentimentScore)
	assert.Equal(t, 1.0, got.Entities[0].Importance)
	assert.Equal(t, models.ImpactAssessment{Business: 5, Market: 1, Reputation: 3}, got.ImpactAssessment)
	assert.True(t, got.IsCrisis)

	format := requestBody["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	schema := format["json_schema"].(map[string]any)
	assert.Equal(t, "content_classification", schema["name"])
	assert.Equal(t, true, schema["strict"])
}

func TestOpenAIClient_Score(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatResponse(t, w, map[string]any{"score": 0.82, "rationale": "dedicated chips forum"})
	})

	got, err := client.Score(context.Background(), models.Candidate{URL: "https://chips.example"}, []string{"chips"})
	require.NoError(t, err)
	assert.Equal(t, 0.82, got.Score)
	assert.Equal(t, "dedicated chips forum", got.Rationale)
}

func TestOpenAIClient_Embed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/embeddings"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": []float64{0.25, -0.5}}},
			"usage":  map[string]any{"prompt_tokens": 3, "total_tokens": 3},
		})
	})

	vector, err := client.Embed(context.Background(), "chips")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5}, vector)
}

func TestOpenAIClient_ErrorsAreExternal(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
	})

	_, err := client.Classify(context.Background(), ClassifyRequest{Text: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrExternalService))
	assert.False(t, IsRetryable(err))
}

func TestNewOpenAIClient_RequiresKey(t *testing.T) {
	_, err := NewOpenAIClient(Config{})
	assert.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-6)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 1}, []float32{-1, -1}), 1e-6)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestUnconfigured(t *testing.T) {
	_, err := Unconfigured{}.Classify(context.Background(), ClassifyRequest{Text: "x"})
	assert.True(t, errors.Is(err, ErrNotConfigured))
	assert.True(t, errors.Is(err, models.ErrExternalService))
	assert.False(t, IsRetryable(err))

	_, err = Unconfigured{}.Embed(context.Background(), "x")
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(context.Canceled))
	assert.False(t, IsRetryable(fmt.Errorf("classify: %w", context.DeadlineExceeded)))
	assert.False(t, IsRetryable(models.NewExternalError("ai", ErrNotConfigured)))
	assert.True(t, IsRetryable(models.NewExternalError("openai chat", errors.New("connection reset"))))
}
