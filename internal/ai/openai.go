package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"

	"github.com/azure/mentions-monitor/internal/models"
)

// Config configures the OpenAI backed capabilities
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
	MaxRetries     int
}

// OpenAIClient implements Classifier, Scorer and Embedder with structured chat completions
type OpenAIClient struct {
	client         openai.Client
	model          string
	embeddingModel string
}

var (
	_ Classifier = (*OpenAIClient)(nil)
	_ Scorer     = (*OpenAIClient)(nil)
	_ Embedder   = (*OpenAIClient)(nil)
)

// NewOpenAIClient creates a client; the SDK retries 429 and 5xx responses up to MaxRetries times
func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = "text-embedding-3-small"
	}

	return &OpenAIClient{
		client:         openai.NewClient(opts...),
		model:          model,
		embeddingModel: embeddingModel,
	}, nil
}

type classificationSchema struct {
	Summary        string  `json:"summary" jsonschema:"description=Two or three sentence summary of the content"`
	Sentiment      string  `json:"sentiment" jsonschema:"enum=positive,enum=neutral,enum=negative"`
	SentimentScore float64 `json:"sentiment_score" jsonschema:"description=Sentiment between -1 (very negative) and 1 (very positive)"`
	Entities       []struct {
		Name       string  `json:"name"`
		Type       string  `json:"type"`
		Importance float64 `json:"importance" jsonschema:"description=Importance between 0 and 1"`
	} `json:"entities"`
	Topics           []string `json:"topics"`
	IsCrisis         bool     `json:"is_crisis"`
	IsOpportunity    bool     `json:"is_opportunity"`
	ImpactAssessment struct {
		Business   int `json:"business" jsonschema:"description=Business impact from 1 to 5"`
		Market     int `json:"market" jsonschema:"description=Market impact from 1 to 5"`
		Reputation int `json:"reputation" jsonschema:"description=Reputation impact from 1 to 5"`
	} `json:"impact_assessment"`
	KeyInsights []string `json:"key_insights"`
}

type relevanceSchema struct {
	Score     float64 `json:"score" jsonschema:"description=Relevance between 0 and 1"`
	Rationale string  `json:"rationale"`
}

const classifyPrompt = `You analyse content collected for a brand and market monitoring service.
Summarise the content, rate its sentiment, list the entities and topics it covers,
and flag whether it signals a crisis or a business opportunity for the monitored keywords.
Impact scores range from 1 (negligible) to 5 (severe).`

const scorePrompt = `You decide whether a web source is worth monitoring for a set of keywords.
Score 1 means the source is squarely about the keywords, 0 means it is unrelated.`

// Classify sends the text to the analysis model and normalises the result
func (c *OpenAIClient) Classify(ctx context.Context, req ClassifyRequest) (*Classification, error) {
	user := fmt.Sprintf("Keywords: %s\nSource: %s (%s)\n\nContent:\n%s",
		strings.Join(req.Keywords, ", "), req.SourceURL, req.SourceType, req.Text)

	var out classificationSchema
	if err := c.chat(ctx, "content_classification", generateSchema[classificationSchema](), classifyPrompt, user, 1500, &out); err != nil {
		return nil, err
	}

	result := &Classification{
		Summary:        strings.TrimSpace(out.Summary),
		Sentiment:      normalizeSentiment(out.Sentiment),
		SentimentScore: clamp(out.SentimentScore, -1, 1),
		Topics:         out.Topics,
		IsCrisis:       out.IsCrisis,
		IsOpportunity:  out.IsOpportunity,
		ImpactAssessment: models.ImpactAssessment{
			Business:   clampInt(out.ImpactAssessment.Business, 1, 5),
			Market:     clampInt(out.ImpactAssessment.Market, 1, 5),
			Reputation: clampInt(out.ImpactAssessment.Reputation, 1, 5),
		},
		KeyInsights: out.KeyInsights,
	}
	for _, e := range out.Entities {
		result.Entities = append(result.Entities, models.Entity{
			Name:       e.Name,
			Type:       e.Type,
			Importance: clamp(e.Importance, 0, 1),
		})
	}
	return result, nil
}

// Score asks the model to rate a candidate source against the keywords
func (c *OpenAIClient) Score(ctx context.Context, candidate models.Candidate, keywords []string) (Relevance, error) {
	user := fmt.Sprintf("Keywords: %s\nURL: %s\nTitle: %s\nType: %s\nDescription: %s",
		strings.Join(keywords, ", "), candidate.URL, candidate.Title, candidate.SourceType, candidate.Description)

	var out relevanceSchema
	if err := c.chat(ctx, "source_relevance", generateSchema[relevanceSchema](), scorePrompt, user, 300, &out); err != nil {
		return Relevance{}, err
	}
	return Relevance{Score: clamp(out.Score, 0, 1), Rationale: out.Rationale}, nil
}

// Embed returns the embedding vector for text
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.embeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		return nil, models.NewExternalError("openai embeddings", err)
	}
	if len(resp.Data) == 0 {
		return nil, models.NewExternalError("openai embeddings", errors.New("empty embedding response"))
	}

	vector := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vector[i] = float32(v)
	}
	return vector, nil
}

func (c *OpenAIClient) chat(ctx context.Context, schemaName string, schema any, system, user string, maxTokens int64, result any) error {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		MaxTokens:   openai.Int(maxTokens),
		Temperature: openai.Float(0),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   schemaName,
					Schema: schema,
					Strict: openai.Bool(true),
				},
			},
		},
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return models.NewExternalError("openai chat", err)
	}

	logrus.WithFields(logrus.Fields{
		"model":             c.model,
		"schema":            schemaName,
		"duration_ms":       time.Since(start).Milliseconds(),
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
	}).Debug("AI chat completed")

	if len(resp.Choices) == 0 {
		return models.NewExternalError("openai chat", errors.New("no choices in response"))
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), result); err != nil {
		return models.NewExternalError("openai chat", fmt.Errorf("unmarshal %s: %w", schemaName, err))
	}
	return nil
}

// IsRetryable reports whether an AI failure is worth another attempt
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrNotConfigured) {
		return false
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	// no API response at all, most likely a network error
	return true
}

func generateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

func normalizeSentiment(s string) models.Sentiment {
	switch models.Sentiment(strings.ToLower(strings.TrimSpace(s))) {
	case models.SentimentPositive:
		return models.SentimentPositive
	case models.SentimentNegative:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
