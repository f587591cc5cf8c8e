package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/azure/mentions-monitor/internal/ai"
	"github.com/azure/mentions-monitor/internal/analyzer"
	"github.com/azure/mentions-monitor/internal/models"
	"github.com/azure/mentions-monitor/internal/monitoring"
	"github.com/azure/mentions-monitor/internal/queue"
)

// Analyzer processes one stored content item
type Analyzer interface {
	Analyze(ctx context.Context, rawContentID string, generateEmbedding bool) (*analyzer.Result, error)
}

// Pool consumes analysis tasks with a fixed number of goroutines
type Pool struct {
	queue       queue.Queue
	analyzer    Analyzer
	metrics     *monitoring.Metrics
	workers     int
	maxAttempts int
}

// NewPool creates a worker pool
func NewPool(q queue.Queue, a Analyzer, metrics *monitoring.Metrics, workers, maxAttempts int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Pool{
		queue:       q,
		analyzer:    a,
		metrics:     metrics,
		workers:     workers,
		maxAttempts: maxAttempts,
	}
}

// Run blocks until ctx is cancelled
func (p *Pool) Run(ctx context.Context) {
	logrus.Infof("Starting %d analysis workers", p.workers)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, id)
		}(i)
	}
	wg.Wait()
	logrus.Info("Analysis workers stopped")
}

func (p *Pool) loop(ctx context.Context, id int) {
	for ctx.Err() == nil {
		tasks, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logrus.Errorf("Worker %d failed to read tasks: %v", id, err)
			continue
		}
		for _, task := range tasks {
			p.Handle(ctx, task)
		}
	}
}

// Handle runs one task and settles it on the queue
func (p *Pool) Handle(ctx context.Context, task queue.Task) {
	logger := logrus.WithFields(logrus.Fields{
		"content_id": task.ContentID,
		"attempt":    task.Attempt,
	})

	if task.Type != queue.TaskAnalyze {
		logger.Errorf("Unknown task type %q", task.Type)
		p.deadLetter(ctx, task, "unknown task type")
		return
	}

	_, err := p.analyzer.Analyze(ctx, task.ContentID, task.GenerateEmbedding)
	if err == nil {
		if err := p.queue.Ack(ctx, task); err != nil {
			logger.Errorf("Failed to ack task: %v", err)
		}
		return
	}

	if ctx.Err() != nil {
		// left unacknowledged; the queue delivers it again after restart
		logger.Warnf("Analysis interrupted by shutdown: %v", err)
		return
	}

	if !retryable(err) || task.Attempt >= p.maxAttempts {
		logger.Errorf("Analysis failed permanently: %v", err)
		p.deadLetter(ctx, task, err.Error())
		return
	}

	logger.Warnf("Analysis failed, retrying: %v", err)
	if err := p.queue.Requeue(ctx, task, err.Error()); err != nil {
		logger.Errorf("Failed to requeue task: %v", err)
	}
}

// retryable reports whether another attempt could succeed. Missing or
// malformed content and permanent analysis service errors will not.
func retryable(err error) bool {
	if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrValidation) {
		return false
	}
	return ai.IsRetryable(err)
}

func (p *Pool) deadLetter(ctx context.Context, task queue.Task, reason string) {
	p.metrics.Inc(monitoring.TasksDeadLettered)
	if err := p.queue.DeadLetter(ctx, task, reason); err != nil {
		logrus.Errorf("Failed to dead-letter task for content %s: %v", task.ContentID, err)
	}
}
