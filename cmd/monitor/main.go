package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/azure/mentions-monitor/internal/ai"
	"github.com/azure/mentions-monitor/internal/alerts"
	"github.com/azure/mentions-monitor/internal/analyzer"
	"github.com/azure/mentions-monitor/internal/api"
	"github.com/azure/mentions-monitor/internal/config"
	"github.com/azure/mentions-monitor/internal/discovery"
	"github.com/azure/mentions-monitor/internal/fetch"
	"github.com/azure/mentions-monitor/internal/monitoring"
	"github.com/azure/mentions-monitor/internal/notifications"
	"github.com/azure/mentions-monitor/internal/queue"
	"github.com/azure/mentions-monitor/internal/scheduler"
	"github.com/azure/mentions-monitor/internal/scraper"
	"github.com/azure/mentions-monitor/internal/sources"
	"github.com/azure/mentions-monitor/internal/storage"
	"github.com/azure/mentions-monitor/internal/store"
	"github.com/azure/mentions-monitor/internal/worker"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting mentions monitor")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := openStore(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize store: %v", err)
	}
	defer repo.Close()

	objects, err := openStorage(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logrus.Fatalf("Failed to connect to redis at %s: %v", cfg.RedisAddr, err)
		}
	}

	tasks, err := openQueue(ctx, cfg, rdb)
	if err != nil {
		logrus.Fatalf("Failed to initialize task queue: %v", err)
	}
	defer tasks.Close()

	metrics := monitoring.NewMetrics()

	var (
		classifier ai.Classifier = ai.Unconfigured{}
		embedder   ai.Embedder   = ai.Unconfigured{}
		scorer     ai.Scorer     = ai.KeywordScorer{}
	)
	if cfg.OpenAIAPIKey != "" {
		client, err := ai.NewOpenAIClient(ai.Config{
			APIKey:         cfg.OpenAIAPIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			Model:          cfg.AnalysisModel,
			EmbeddingModel: cfg.EmbeddingModel,
			Timeout:        cfg.AITimeout,
			MaxRetries:     cfg.AIMaxRetries,
		})
		if err != nil {
			logrus.Fatalf("Failed to initialize AI client: %v", err)
		}
		classifier, embedder, scorer = client, client, client
	} else {
		logrus.Warn("OPENAI_API_KEY not set - discovery uses keyword scoring and content will not be analysed")
	}

	var publisher notifications.Publisher = notifications.LogPublisher{}
	if rdb != nil {
		publisher = notifications.NewRedisPublisher(rdb)
	}
	// left nil without SMTP so the email channel reports as undelivered
	var mailer notifications.Mailer
	if cfg.EmailEnabled() {
		mailer = notifications.NewSMTPMailer(notifications.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}
	var chat notifications.ChatNotifier
	if cfg.TeamsWebhookURL != "" {
		chat = notifications.NewTeamsNotifier(cfg.TeamsWebhookURL, cfg.HTTPTimeout)
	}
	var recipients []string
	if cfg.NotificationEmail != "" {
		recipients = []string{cfg.NotificationEmail}
	}

	fetchOpts := fetch.Options{
		Timeout:       cfg.HTTPTimeout,
		RetryCount:    cfg.HTTPRetryCount,
		UserAgent:     cfg.UserAgent,
		RespectRobots: cfg.RespectRobots,
	}
	if cfg.ScreenshotURL != "" {
		fetchOpts.Screenshots = fetch.NewScreenshotService(cfg.ScreenshotURL, cfg.HTTPTimeout)
	}

	providers := sources.FromConfig(cfg)
	logrus.Infof("Discovery providers enabled: %d", len(providers))

	discoveryService := discovery.NewService(repo, discovery.NewMultiFinder(providers...), scorer, metrics, cfg.RelevanceMinScore)
	scraperService := scraper.NewService(repo, fetch.NewHTTPFetcher(fetchOpts), objects, tasks, metrics, cfg.GenerateEmbedding)
	alertGenerator := alerts.NewGenerator(repo, alerts.Options{
		Publisher:         publisher,
		Mailer:            mailer,
		Chat:              chat,
		DefaultRecipients: recipients,
		Metrics:           metrics,
	})
	analyzerService := analyzer.NewService(repo, classifier, embedder, alertGenerator, metrics, cfg.MaxAnalysisChars)

	workers := worker.NewPool(tasks, analyzerService, metrics, cfg.QueueWorkers, cfg.QueueMaxAttempts)
	workersDone := make(chan struct{})
	go func() {
		workers.Run(ctx)
		close(workersDone)
	}()

	schedulerService := scheduler.NewService(repo, discoveryService, scraperService, metrics, scheduler.Options{
		Schedule:       cfg.CycleSchedule,
		ProfileWorkers: cfg.ProfileWorkers,
		SourceWorkers:  cfg.SourceWorkers,
	})
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}

	handler := &api.Handler{
		Cycles:    schedulerService,
		Discovery: discoveryService,
		Scraper:   scraperService,
		Analyzer:  analyzerService,
		Alerts:    alertGenerator,
		Metrics:   metrics,
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      handler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // a synchronous cycle can take a while
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}
	schedulerService.Stop()

	cancel()
	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		logrus.Warn("Analysis workers did not stop in time")
	}

	logrus.Info("Server exited")
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.StoreDriver == "memory" {
		logrus.Warn("Using in-memory store - data is lost on restart")
		return store.NewMemoryStore(), nil
	}
	return store.Open(cfg.StoreDriver, cfg.DatabaseURL)
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.StorageInterface, error) {
	switch cfg.StorageProvider {
	case "azure":
		return storage.NewAzureStorage(ctx, cfg.StorageAccount, cfg.StorageContainer)
	case "gcs":
		return storage.NewGCSStorage(ctx, cfg.GCSBucket, cfg.GCSEndpoint)
	case "file":
		return storage.NewFileStorage(cfg.StorageDir)
	default:
		logrus.Info("Object storage disabled - snapshots and screenshots are not kept")
		return nil, nil
	}
}

func openQueue(ctx context.Context, cfg *config.Config, rdb *redis.Client) (queue.Queue, error) {
	if cfg.QueueDriver != "redis" {
		return queue.NewMemoryQueue(1024, cfg.QueueRetryDelay), nil
	}
	return queue.NewRedisQueue(ctx, rdb, queue.RedisConfig{
		Stream:       cfg.QueueStream,
		Group:        cfg.QueueGroup,
		Consumer:     cfg.QueueConsumer,
		DLQStream:    cfg.QueueDLQStream,
		RequeueDelay: cfg.QueueRetryDelay,
		ClaimIdle:    cfg.QueueClaimIdle,
	})
}
