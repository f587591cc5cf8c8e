package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/azure/mentions-monitor/internal/ai"
	"github.com/azure/mentions-monitor/internal/alerts"
	"github.com/azure/mentions-monitor/internal/models"
	"github.com/azure/mentions-monitor/internal/monitoring"
	"github.com/azure/mentions-monitor/internal/store"
)

// DefaultMaxChars is how much content text is sent for analysis and embedding
const DefaultMaxChars = 8000

// Repository is the slice of the store the analyzer needs
type Repository interface {
	store.ProfileStore
	store.SourceStore
	store.ContentStore
	store.InsightStore
	store.AlertStore
}

// AlertGenerator raises alerts for insights
type AlertGenerator interface {
	GenerateAlert(ctx context.Context, req alerts.Request) (*alerts.Result, error)
}

// Result reports the insight produced for a piece of content
type Result struct {
	InsightID        string `json:"insightId,omitempty"`
	AlertID          string `json:"alertId,omitempty"`
	AlertGenerated   bool   `json:"alertGenerated"`
	Summary          string `json:"summary"`
	AlreadyProcessed bool   `json:"alreadyProcessed,omitempty"`
}

// Service classifies stored content and applies the alert policy
type Service struct {
	repo       Repository
	classifier ai.Classifier
	embedder   ai.Embedder
	alerts     AlertGenerator
	metrics    *monitoring.Metrics
	maxChars   int
	now        func() time.Time
}

// NewService creates an analyzer; embedder may be nil to disable embeddings
func NewService(repo Repository, classifier ai.Classifier, embedder ai.Embedder, generator AlertGenerator, metrics *monitoring.Metrics, maxChars int) *Service {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Service{
		repo:       repo,
		classifier: classifier,
		embedder:   embedder,
		alerts:     generator,
		metrics:    metrics,
		maxChars:   maxChars,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Analyze classifies the content once. Content already processed is not
// analysed again; the existing insight is returned instead.
func (s *Service) Analyze(ctx context.Context, rawContentID string, generateEmbedding bool) (*Result, error) {
	if rawContentID == "" {
		return nil, models.NewValidationError("rawContentId", "is required")
	}

	content, err := s.repo.GetContent(ctx, rawContentID)
	if err != nil {
		return nil, err
	}
	if content.AIProcessed {
		return s.existing(ctx, content.ID)
	}
	_, err = s.repo.GetInsightByContent(ctx, content.ID)
	switch {
	case err == nil:
		// an earlier attempt stored the insight but failed to mark the content
		if err := s.repo.MarkProcessed(ctx, content.ID); err != nil {
			return nil, err
		}
		return s.existing(ctx, content.ID)
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}

	profile, err := s.repo.GetProfile(ctx, content.ProfileID)
	if err != nil {
		return nil, err
	}

	req := ai.ClassifyRequest{
		Text:     truncateRunes(content.Text, s.maxChars),
		Keywords: profile.Keywords,
	}
	if source, err := s.repo.GetSource(ctx, content.SourceID); err == nil {
		req.SourceURL = source.URL
		req.SourceType = source.SourceType
	} else {
		logrus.Warnf("Source %s of content %s unavailable: %v", content.SourceID, content.ID, err)
	}

	classification, err := s.classifier.Classify(ctx, req)
	if err != nil {
		s.metrics.Inc(monitoring.AnalysisErrors)
		return nil, fmt.Errorf("analyze content %s: %w", content.ID, err)
	}

	insight := models.Insight{
		RawContentID:     content.ID,
		SourceID:         content.SourceID,
		ProfileID:        content.ProfileID,
		Summary:          classification.Summary,
		Sentiment:        classification.Sentiment,
		SentimentScore:   classification.SentimentScore,
		Entities:         classification.Entities,
		Topics:           classification.Topics,
		IsCrisis:         classification.IsCrisis,
		IsOpportunity:    classification.IsOpportunity,
		ImpactAssessment: classification.ImpactAssessment,
		KeyInsights:      classification.KeyInsights,
		ProcessedAt:      s.now(),
	}

	if generateEmbedding && s.embedder != nil {
		vector, err := s.embedder.Embed(ctx, req.Text)
		if err != nil {
			logrus.Warnf("Embedding for content %s failed, storing insight without it: %v", content.ID, err)
		} else {
			insight.Embedding = vector
		}
	}

	created, err := s.repo.CreateInsight(ctx, &insight)
	if err != nil {
		return nil, err
	}
	if !created {
		// a concurrent delivery of the same task won the insert
		if err := s.repo.MarkProcessed(ctx, content.ID); err != nil {
			return nil, err
		}
		return s.existing(ctx, content.ID)
	}

	if err := s.repo.MarkProcessed(ctx, content.ID); err != nil {
		return nil, err
	}
	s.metrics.Inc(monitoring.AnalysesTotal)

	logger := logrus.WithFields(logrus.Fields{
		"content_id": content.ID,
		"insight_id": insight.ID,
		"profile_id": profile.ID,
	})
	logger.Infof("Content analysed: sentiment=%s crisis=%t opportunity=%t", insight.Sentiment, insight.IsCrisis, insight.IsOpportunity)

	result := &Result{InsightID: insight.ID, Summary: insight.Summary}
	s.alert(ctx, logger, profile, &insight, result)
	return result, nil
}

// alert applies the alert policy to the insight and records the outcome in
// result. Generation failures are logged; the insight stands regardless.
func (s *Service) alert(ctx context.Context, logger *logrus.Entry, profile *models.MonitoringProfile, insight *models.Insight, result *Result) {
	decision := Evaluate(profile.AlertConfig.Sensitivity, insight)
	if !decision.Raise || s.alerts == nil {
		return
	}

	alert, err := s.alerts.GenerateAlert(ctx, alerts.Request{
		InsightID: insight.ID,
		ProfileID: profile.ID,
		Severity:  decision.Severity,
		Title:     decision.Title,
	})
	if err != nil {
		logger.Errorf("Alert generation failed: %v", err)
		return
	}
	result.AlertID = alert.AlertID
	result.AlertGenerated = true
}

// existing reports the stored insight of processed content. An insight
// without an alert goes through the alert policy again, since an earlier
// attempt may have stopped between storing the insight and alerting.
func (s *Service) existing(ctx context.Context, contentID string) (*Result, error) {
	result := &Result{AlreadyProcessed: true}

	insight, err := s.repo.GetInsightByContent(ctx, contentID)
	if errors.Is(err, models.ErrNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	result.InsightID = insight.ID
	result.Summary = insight.Summary

	alert, err := s.repo.GetAlertByInsight(ctx, insight.ID)
	if err == nil {
		result.AlertID = alert.ID
		return result, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	profile, err := s.repo.GetProfile(ctx, insight.ProfileID)
	if err != nil {
		return nil, err
	}
	logger := logrus.WithFields(logrus.Fields{
		"content_id": contentID,
		"insight_id": insight.ID,
		"profile_id": profile.ID,
	})
	s.alert(ctx, logger, profile, insight, result)
	return result, nil
}
