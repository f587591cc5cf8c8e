package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azure/mentions-monitor/internal/models"
)

type stubSource struct {
	name       string
	candidates []models.Candidate
	err        error
}

func (s stubSource) GetName() string { return s.name }
func (s stubSource) IsEnabled() bool { return true }
func (s stubSource) Find(ctx context.Context, keywords []string) ([]models.Candidate, error) {
	return s.candidates, s.err
}

func TestMultiFinder_MergesAndDeduplicates(t *testing.T) {
	finder := NewMultiFinder(
		stubSource{name: "one", candidates: candidates("https://a.example", "https://b.example")},
		stubSource{name: "two", candidates: candidates("HTTPS://A.example", "https://c.example")},
		stubSource{name: "broken", err: errors.New("rate limited")},
	)

	found, err := finder.Find(context.Background(), []string{"chips"})
	require.NoError(t, err)
	assert.Len(t, found, 3)
}

func TestMultiFinder_AllProvidersFailing(t *testing.T) {
	finder := NewMultiFinder(
		stubSource{name: "one", err: errors.New("down")},
		stubSource{name: "two", err: errors.New("down")},
	)

	_, err := finder.Find(context.Background(), []string{"chips"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrExternalService))
}

func TestMultiFinder_NoProviders(t *testing.T) {
	found, err := NewMultiFinder().Find(context.Background(), []string{"chips"})
	require.NoError(t, err)
	assert.Empty(t, found)
}
