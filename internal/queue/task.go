package queue

import (
	"context"
	"fmt"
	"strconv"
)

// TaskType identifies the stage a task is addressed to
type TaskType string

const (
	TaskAnalyze TaskType = "analyze"
)

// Task is one unit of work passed between pipeline stages
type Task struct {
	ID                string // delivery id assigned by the queue
	Type              TaskType
	ContentID         string
	GenerateEmbedding bool
	Attempt           int
	LastError         string
}

// Queue carries tasks from producing stages to workers
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	// Dequeue waits briefly for tasks; an empty result is not an error
	Dequeue(ctx context.Context) ([]Task, error)
	Ack(ctx context.Context, task Task) error
	// Requeue enqueues the next attempt of the task, then acknowledges this one
	Requeue(ctx context.Context, task Task, errMsg string) error
	// DeadLetter parks the task for inspection, then acknowledges it
	DeadLetter(ctx context.Context, task Task, errMsg string) error
	Close() error
}

// NewAnalyzeTask creates a first-attempt analysis task
func NewAnalyzeTask(contentID string, generateEmbedding bool) Task {
	return Task{Type: TaskAnalyze, ContentID: contentID, GenerateEmbedding: generateEmbedding, Attempt: 1}
}

func taskValues(task Task) map[string]any {
	attempt := task.Attempt
	if attempt <= 0 {
		attempt = 1
	}
	values := map[string]any{
		"task_type":          string(task.Type),
		"content_id":         task.ContentID,
		"generate_embedding": strconv.FormatBool(task.GenerateEmbedding),
		"attempt":            attempt,
	}
	if task.LastError != "" {
		values["last_error"] = task.LastError
	}
	return values
}

func parseTask(id string, values map[string]any) (Task, error) {
	task := Task{ID: id, Attempt: 1}

	taskType, _ := values["task_type"].(string)
	if taskType == "" {
		return Task{}, fmt.Errorf("missing task_type")
	}
	task.Type = TaskType(taskType)

	task.ContentID, _ = values["content_id"].(string)
	if task.ContentID == "" {
		return Task{}, fmt.Errorf("missing content_id")
	}

	if raw, ok := values["generate_embedding"].(string); ok && raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return Task{}, fmt.Errorf("invalid generate_embedding %q: %w", raw, err)
		}
		task.GenerateEmbedding = parsed
	}

	if raw, ok := values["attempt"].(string); ok && raw != "" {
		attempt, err := strconv.Atoi(raw)
		if err != nil {
			return Task{}, fmt.Errorf("invalid attempt %q: %w", raw, err)
		}
		if attempt > 0 {
			task.Attempt = attempt
		}
	}

	task.LastError, _ = values["last_error"].(string)
	return task, nil
}
