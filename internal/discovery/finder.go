package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/azure/mentions-monitor/internal/models"
	"github.com/azure/mentions-monitor/internal/sources"
)

// Finder proposes candidate sources for a keyword set
type Finder interface {
	Find(ctx context.Context, keywords []string) ([]models.Candidate, error)
}

// MultiFinder queries every discovery provider concurrently and merges the results
type MultiFinder struct {
	sources []sources.Source
}

var _ Finder = (*MultiFinder)(nil)

// NewMultiFinder creates a finder over the given providers
func NewMultiFinder(providers ...sources.Source) *MultiFinder {
	return &MultiFinder{sources: providers}
}

// Find fails only when every provider failed
func (f *MultiFinder) Find(ctx context.Context, keywords []string) ([]models.Candidate, error) {
	if len(f.sources) == 0 {
		return nil, nil
	}

	var wg sync.WaitGroup
	resultsChan := make(chan []models.Candidate, len(f.sources))
	errorsChan := make(chan error, len(f.sources))

	for _, source := range f.sources {
		wg.Add(1)
		go func(src sources.Source) {
			defer wg.Done()

			found, err := src.Find(ctx, keywords)
			if err != nil {
				logrus.Errorf("Discovery provider %s failed: %v", src.GetName(), err)
				errorsChan <- fmt.Errorf("%s: %w", src.GetName(), err)
				return
			}

			logrus.Debugf("Discovery provider %s proposed %d candidates", src.GetName(), len(found))
			resultsChan <- found
		}(source)
	}

	wg.Wait()
	close(resultsChan)
	close(errorsChan)

	var errs []error
	for err := range errorsChan {
		errs = append(errs, err)
	}
	if len(errs) == len(f.sources) {
		return nil, models.NewExternalError("discovery", errors.Join(errs...))
	}

	seen := make(map[string]bool)
	var merged []models.Candidate
	for found := range resultsChan {
		for _, candidate := range found {
			key := strings.ToLower(strings.TrimSpace(candidate.URL))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, candidate)
		}
	}
	return merged, nil
}
