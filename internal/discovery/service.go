package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/azure/mentions-monitor/internal/ai"
	"github.com/azure/mentions-monitor/internal/models"
	"github.com/azure/mentions-monitor/internal/monitoring"
	"github.com/azure/mentions-monitor/internal/store"
)

const (
	// DefaultMinScore is the relevance a candidate needs to become a source
	DefaultMinScore = 0.6
	// NeutralScore is assigned when the scorer fails for a candidate
	NeutralScore = 0.5
	// DefaultFrequencyHours is the scrape interval of newly discovered sources
	DefaultFrequencyHours = 24

	scoreWorkers = 4
)

// Repository is the slice of the store discovery needs
type Repository interface {
	store.ProfileStore
	store.SourceStore
}

// Result reports what a discovery run added
type Result struct {
	Candidates   int                 `json:"candidates"`
	AddedSources []models.DataSource `json:"added_sources"`
}

// Service discovers new sources for a profile
type Service struct {
	repo     Repository
	finder   Finder
	scorer   ai.Scorer
	metrics  *monitoring.Metrics
	minScore float64
	now      func() time.Time
}

// NewService creates a discovery service; minScore <= 0 selects DefaultMinScore
func NewService(repo Repository, finder Finder, scorer ai.Scorer, metrics *monitoring.Metrics, minScore float64) *Service {
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	return &Service{
		repo:     repo,
		finder:   finder,
		scorer:   scorer,
		metrics:  metrics,
		minScore: minScore,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Discover finds candidates for the profile's keywords, drops the URLs the
// profile already knows, scores the rest and stores those that qualify.
func (s *Service) Discover(ctx context.Context, profileID string) (*Result, error) {
	if profileID == "" {
		return nil, models.NewValidationError("profileId", "is required")
	}

	profile, err := s.repo.GetProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}

	knownURLs, err := s.repo.ListSourceURLs(ctx, profileID)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(knownURLs))
	for _, u := range knownURLs {
		known[store.URLKey(u)] = true
	}

	candidates, err := s.finder.Find(ctx, profile.Keywords)
	if err != nil {
		s.metrics.Inc(monitoring.DiscoveryErrors)
		return nil, fmt.Errorf("discover sources for profile %s: %w", profileID, err)
	}

	result := &Result{Candidates: len(candidates)}
	now := s.now()

	var fresh []models.Candidate
	for _, candidate := range candidates {
		key := store.URLKey(candidate.URL)
		if key == "" || known[key] {
			continue
		}
		known[key] = true
		fresh = append(fresh, candidate)
	}

	scores := s.score(ctx, fresh, profile.Keywords)

	for i, candidate := range fresh {
		relevance := scores[i]
		if relevance.Score < s.minScore {
			logrus.Debugf("Candidate %s discarded with score %.2f", candidate.URL, relevance.Score)
			continue
		}

		discoveredAt := now
		source := models.DataSource{
			ProfileID:          profileID,
			URL:                candidate.URL,
			SourceType:         candidate.SourceType,
			Title:              candidate.Title,
			Description:        candidate.Description,
			FrequencyHours:     DefaultFrequencyHours,
			Enabled:            true,
			NextScrapeAt:       now.Add(DefaultFrequencyHours * time.Hour),
			DiscoveredAt:       &discoveredAt,
			RelevanceScore:     relevance.Score,
			RelevanceRationale: relevance.Rationale,
		}

		created, err := s.repo.CreateSource(ctx, &source)
		if err != nil {
			return result, err
		}
		if !created {
			// another discovery run added the same URL in the meantime
			continue
		}
		result.AddedSources = append(result.AddedSources, source)
	}

	s.metrics.Add(monitoring.SourcesDiscovered, len(result.AddedSources))
	logrus.Infof("Discovery for profile %s: %d candidates, %d sources added", profileID, result.Candidates, len(result.AddedSources))
	return result, nil
}

// score rates candidates concurrently; a failed score becomes NeutralScore
func (s *Service) score(ctx context.Context, candidates []models.Candidate, keywords []string) []ai.Relevance {
	scores := make([]ai.Relevance, len(candidates))

	var g errgroup.Group
	g.SetLimit(scoreWorkers)
	for i, candidate := range candidates {
		i, candidate := i, candidate
		g.Go(func() error {
			relevance, err := s.scorer.Score(ctx, candidate, keywords)
			if err != nil {
				logrus.Warnf("Scoring %s failed, using neutral score: %v", candidate.URL, err)
				relevance = ai.Relevance{Score: NeutralScore, Rationale: "scoring unavailable"}
			}
			scores[i] = relevance
			return nil
		})
	}
	_ = g.Wait()
	return scores
}
