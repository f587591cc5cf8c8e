package ai

import (
	"context"
	"errors"

	"github.com/azure/mentions-monitor/internal/models"
)

// ClassifyRequest is the context handed to the analysis capability
type ClassifyRequest struct {
	Text       string
	SourceURL  string
	SourceType string
	Keywords   []string
}

// Classification is the structured result of analysing one piece of content
type Classification struct {
	Summary          string
	Sentiment        models.Sentiment
	SentimentScore   float64
	Entities         []models.Entity
	Topics           []string
	IsCrisis         bool
	IsOpportunity    bool
	ImpactAssessment models.ImpactAssessment
	KeyInsights      []string
}

// Relevance is a candidate source's score in [0,1] against a keyword set
type Relevance struct {
	Score     float64
	Rationale string
}

// Classifier turns content text into a Classification
type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (*Classification, error)
}

// Scorer rates how relevant a discovered candidate is to the keywords
type Scorer interface {
	Score(ctx context.Context, candidate models.Candidate, keywords []string) (Relevance, error)
}

// Embedder produces a vector for text
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrNotConfigured is returned by Unconfigured
var ErrNotConfigured = errors.New("analysis service not configured")

// Unconfigured stands in for the analysis service when no API key is set;
// content stays unprocessed until one is configured
type Unconfigured struct{}

var (
	_ Classifier = Unconfigured{}
	_ Embedder   = Unconfigured{}
)

func (Unconfigured) Classify(ctx context.Context, req ClassifyRequest) (*Classification, error) {
	return nil, models.NewExternalError("ai", ErrNotConfigured)
}

func (Unconfigured) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, models.NewExternalError("ai", ErrNotConfigured)
}
