package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/azure/mentions-monitor/internal/discovery"
	"github.com/azure/mentions-monitor/internal/models"
	"github.com/azure/mentions-monitor/internal/monitoring"
	"github.com/azure/mentions-monitor/internal/scraper"
	"github.com/azure/mentions-monitor/internal/store"
)

// DefaultSchedule runs a cycle every 15 minutes
const DefaultSchedule = "0 */15 * * * *"

// Repository is the slice of the store the scheduler needs
type Repository interface {
	store.ProfileStore
	store.SourceStore
}

// Discoverer finds new sources for a profile
type Discoverer interface {
	Discover(ctx context.Context, profileID string) (*discovery.Result, error)
}

// Scraper fetches one source
type Scraper interface {
	Scrape(ctx context.Context, sourceID string) (*scraper.Result, error)
}

// Options sizes the worker pools and the cron trigger
type Options struct {
	Schedule       string
	ProfileWorkers int
	SourceWorkers  int
}

// Service drives monitoring cycles over due profiles
type Service struct {
	repo       Repository
	discoverer Discoverer
	scraper    Scraper
	metrics    *monitoring.Metrics
	opts       Options
	cron       *cron.Cron
	now        func() time.Time

	running sync.WaitGroup
}

// NewService creates a new scheduler service
func NewService(repo Repository, discoverer Discoverer, scraper Scraper, metrics *monitoring.Metrics, opts Options) *Service {
	if opts.Schedule == "" {
		opts.Schedule = DefaultSchedule
	}
	if opts.ProfileWorkers < 1 {
		opts.ProfileWorkers = 1
	}
	if opts.SourceWorkers < 1 {
		opts.SourceWorkers = 1
	}

	logger := cron.PrintfLogger(logrus.StandardLogger())
	return &Service{
		repo:       repo,
		discoverer: discoverer,
		scraper:    scraper,
		metrics:    metrics,
		opts:       opts,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Start begins the scheduled cycles
func (s *Service) Start() error {
	_, err := s.cron.AddFunc(s.opts.Schedule, func() {
		logrus.Info("Starting scheduled monitoring cycle")
		if _, err := s.RunCycle(context.Background()); err != nil {
			logrus.Errorf("Scheduled monitoring cycle failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cycle schedule %q: %w", s.opts.Schedule, err)
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with schedule %q", s.opts.Schedule)
	return nil
}

// Stop stops the scheduler and waits for running cycles
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.running.Wait()
	logrus.Info("Scheduler stopped")
}

// Trigger runs a cycle in the background
func (s *Service) Trigger() {
	s.running.Add(1)
	go func() {
		defer s.running.Done()
		logrus.Info("Manual monitoring cycle triggered")
		if _, err := s.RunCycle(context.Background()); err != nil {
			logrus.Errorf("Manual monitoring cycle failed: %v", err)
		}
	}()
}

// RunCycle processes every due profile and returns how many were processed.
// A failing profile or source is logged and never aborts the cycle; only a
// failure to list due profiles is returned.
func (s *Service) RunCycle(ctx context.Context) (int, error) {
	started := time.Now()
	now := s.now()

	profiles, err := s.repo.ListDueProfiles(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list due profiles: %w", err)
	}
	logrus.Infof("Monitoring cycle: %d due profiles", len(profiles))

	var processed atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.opts.ProfileWorkers)
	for _, profile := range profiles {
		profile := profile
		g.Go(func() error {
			s.processProfile(ctx, profile, now)
			processed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	s.metrics.RecordCycle(started, time.Since(started))
	logrus.Infof("Monitoring cycle completed: %d profiles in %v", processed.Load(), time.Since(started))
	return int(processed.Load()), nil
}

func (s *Service) processProfile(ctx context.Context, profile models.MonitoringProfile, now time.Time) {
	logger := logrus.WithField("profile_id", profile.ID)
	defer s.reschedule(profile, now)
	s.metrics.Inc(monitoring.ProfilesProcessed)

	if profile.SourceDiscoveryEnabled {
		if _, err := s.discoverer.Discover(ctx, profile.ID); err != nil {
			s.metrics.Inc(monitoring.ProfileErrors)
			logger.Errorf("Source discovery failed: %v", err)
		}
	}

	sources, err := s.repo.ListDueSources(ctx, profile.ID, now)
	if err != nil {
		s.metrics.Inc(monitoring.ProfileErrors)
		logger.Errorf("Failed to list due sources: %v", err)
		return
	}

	var g errgroup.Group
	g.SetLimit(s.opts.SourceWorkers)
	for _, source := range sources {
		source := source
		g.Go(func() error {
			if _, err := s.scraper.Scrape(ctx, source.ID); err != nil {
				logger.WithField("source_id", source.ID).Errorf("Scrape of %s failed: %v", source.URL, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	logger.Infof("Profile %q processed: %d sources scraped", profile.Name, len(sources))
}

func (s *Service) reschedule(profile models.MonitoringProfile, now time.Time) {
	frequency := profile.FrequencyHours
	if frequency <= 0 {
		frequency = 24
	}
	next := now.Add(time.Duration(frequency) * time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.repo.UpdateProfileSchedule(ctx, profile.ID, now, next); err != nil {
		logrus.Errorf("Failed to reschedule profile %s: %v", profile.ID, err)
	}
}
