package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/azure/mentions-monitor/internal/ai"
	"github.com/azure/mentions-monitor/internal/models"
	"github.com/azure/mentions-monitor/internal/monitoring"
	"github.com/azure/mentions-monitor/internal/store"
)

// MockFinder is a mock implementation of Finder
type MockFinder struct {
	mock.Mock
}

func (m *MockFinder) Find(ctx context.Context, keywords []string) ([]models.Candidate, error) {
	args := m.Called(keywords)
	candidates, _ := args.Get(0).([]models.Candidate)
	return candidates, args.Error(1)
}

// MockScorer is a mock implementation of ai.Scorer keyed by candidate URL
type MockScorer struct {
	mock.Mock
}

func (m *MockScorer) Score(ctx context.Context, candidate models.Candidate, keywords []string) (ai.Relevance, error) {
	args := m.Called(candidate.URL)
	return args.Get(0).(ai.Relevance), args.Error(1)
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, finder Finder, scorer ai.Scorer) (*Service, *store.MemoryStore, *models.MonitoringProfile) {
	t.Helper()
	repo := store.NewMemoryStore()
	profile := &models.MonitoringProfile{
		Name:                   "chips",
		Keywords:               []string{"chips"},
		FrequencyHours:         6,
		NextRunAt:              fixedNow,
		SourceDiscoveryEnabled: true,
	}
	require.NoError(t, repo.CreateProfile(context.Background(), profile))

	svc := NewService(repo, finder, scorer, monitoring.NewMetrics(), 0)
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, profile
}

func candidates(urls ...string) []models.Candidate {
	var out []models.Candidate
	for _, u := range urls {
		out = append(out, models.Candidate{URL: u, Title: "title " + u, SourceType: "forum"})
	}
	return out
}

func TestDiscover_KeepsCandidatesAboveThreshold(t *testing.T) {
	finder := &MockFinder{}
	scorer := &MockScorer{}
	svc, repo, profile := newTestService(t, finder, scorer)

	finder.On("Find", []string{"chips"}).Return(candidates("https://a.example", "https://b.example", "https://c.example", "https://d.example", "https://e.example"), nil)
	scorer.On("Score", "https://a.example").Return(ai.Relevance{Score: 0.9, Rationale: "on topic"}, nil)
	scorer.On("Score", "https://b.example").Return(ai.Relevance{Score: 0.3}, nil)
	scorer.On("Score", "https://c.example").Return(ai.Relevance{Score: 0.7}, nil)
	scorer.On("Score", "https://d.example").Return(ai.Relevance{Score: 0.5}, nil)
	scorer.On("Score", "https://e.example").Return(ai.Relevance{Score: 0.8}, nil)

	result, err := svc.Discover(context.Background(), profile.ID)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Candidates)
	require.Len(t, result.AddedSources, 3)
	assert.Equal(t, 3, repo.CountSources(profile.ID))

	var urls []string
	for _, source := range result.AddedSources {
		urls = append(urls, source.URL)
	}
	assert.Equal(t, []string{"https://a.example", "https://c.example", "https://e.example"}, urls)

	first := result.AddedSources[0]
	assert.True(t, first.Enabled)
	assert.Equal(t, 24, first.FrequencyHours)
	assert.True(t, first.NextScrapeAt.Equal(fixedNow.Add(24*time.Hour)))
	require.NotNil(t, first.DiscoveredAt)
	assert.Equal(t, 0.9, first.RelevanceScore)
	assert.Equal(t, "on topic", first.RelevanceRationale)

	scorer.AssertExpectations(t)
}

func TestDiscover_ScoringFailureUsesNeutralScore(t *testing.T) {
	finder := &MockFinder{}
	scorer := &MockScorer{}
	svc, repo, profile := newTestService(t, finder, scorer)

	finder.On("Find", mock.Anything).Return(candidates("https://a.example", "https://b.example"), nil)
	scorer.On("Score", "https://a.example").Return(ai.Relevance{}, errors.New("timeout"))
	scorer.On("Score", "https://b.example").Return(ai.Relevance{Score: 0.95}, nil)

	result, err := svc.Discover(context.Background(), profile.ID)
	require.NoError(t, err, "one failed score must not abort discovery")
	require.Len(t, result.AddedSources, 1)
	assert.Equal(t, "https://b.example", result.AddedSources[0].URL)
	assert.Equal(t, 1, repo.CountSources(profile.ID))

	// with a lower threshold the neutral score qualifies
	svc.minScore = 0.5
	finder.ExpectedCalls = nil
	finder.On("Find", mock.Anything).Return(candidates("https://c.example"), nil)
	scorer.On("Score", "https://c.example").Return(ai.Relevance{}, errors.New("timeout"))

	result, err = svc.Discover(context.Background(), profile.ID)
	require.NoError(t, err)
	require.Len(t, result.AddedSources, 1)
	assert.Equal(t, NeutralScore, result.AddedSources[0].RelevanceScore)
}

func TestDiscover_SkipsKnownURLsCaseInsensitively(t *testing.T) {
	finder := &MockFinder{}
	scorer := &MockScorer{}
	svc, repo, profile := newTestService(t, finder, scorer)

	_, err := repo.CreateSource(context.Background(), &models.DataSource{ProfileID: profile.ID, URL: "https://Known.example/Feed", Enabled: true})
	require.NoError(t, err)

	finder.On("Find", mock.Anything).Return(candidates("https://known.example/feed", "https://new.example", "https://NEW.example"), nil)
	scorer.On("Score", "https://new.example").Return(ai.Relevance{Score: 0.9}, nil)

	result, err := svc.Discover(context.Background(), profile.ID)
	require.NoError(t, err)
	require.Len(t, result.AddedSources, 1)
	assert.Equal(t, 2, repo.CountSources(profile.ID))

	scorer.AssertNotCalled(t, "Score", "https://known.example/feed")
	scorer.AssertNumberOfCalls(t, "Score", 1)
}

func TestDiscover_Errors(t *testing.T) {
	finder := &MockFinder{}
	scorer := &MockScorer{}
	svc, _, profile := newTestService(t, finder, scorer)

	_, err := svc.Discover(context.Background(), "")
	assert.True(t, errors.Is(err, models.ErrValidation))

	_, err = svc.Discover(context.Background(), "missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))

	finder.On("Find", mock.Anything).Return(nil, models.NewExternalError("discovery", errors.New("down")))
	_, err = svc.Discover(context.Background(), profile.ID)
	assert.True(t, errors.Is(err, models.ErrExternalService))
	assert.Equal(t, 1, svc.metrics.Get(monitoring.DiscoveryErrors))
}
