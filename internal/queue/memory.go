package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is a buffered channel queue for single-process deployments
type MemoryQueue struct {
	tasks      chan Task
	poll       time.Duration
	retryDelay time.Duration

	mu          sync.Mutex
	deadLetters []Task
	closed      bool
}

var _ Queue = (*MemoryQueue)(nil)

// NewMemoryQueue creates a queue holding up to size pending tasks
func NewMemoryQueue(size int, retryDelay time.Duration) *MemoryQueue {
	if size <= 0 {
		size = 1024
	}
	return &MemoryQueue{
		tasks:      make(chan Task, size),
		poll:       time.Second,
		retryDelay: retryDelay,
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, task Task) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return fmt.Errorf("enqueue task: queue closed")
	}

	if task.Attempt <= 0 {
		task.Attempt = 1
	}
	task.ID = uuid.NewString()

	select {
	case q.tasks <- task:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("enqueue task: %w", ctx.Err())
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) ([]Task, error) {
	timer := time.NewTimer(q.poll)
	defer timer.Stop()

	select {
	case task := <-q.tasks:
		batch := []Task{task}
		// drain whatever else is ready without blocking
		for len(batch) < 10 {
			select {
			case next := <-q.tasks:
				batch = append(batch, next)
			default:
				return batch, nil
			}
		}
		return batch, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Ack(ctx context.Context, task Task) error {
	return nil
}

func (q *MemoryQueue) Requeue(ctx context.Context, task Task, errMsg string) error {
	task.Attempt++
	task.LastError = errMsg

	if q.retryDelay <= 0 {
		return q.Enqueue(ctx, task)
	}
	time.AfterFunc(q.retryDelay, func() {
		_ = q.Enqueue(context.Background(), task)
	})
	return nil
}

func (q *MemoryQueue) DeadLetter(ctx context.Context, task Task, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	task.LastError = errMsg
	q.deadLetters = append(q.deadLetters, task)
	return nil
}

// DeadLetters returns the tasks that exhausted their attempts
func (q *MemoryQueue) DeadLetters() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Task, len(q.deadLetters))
	copy(out, q.deadLetters)
	return out
}

// Len reports the number of pending tasks
func (q *MemoryQueue) Len() int {
	return len(q.tasks)
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
