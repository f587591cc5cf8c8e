package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_RoundTrip(t *testing.T) {
	q := NewMemoryQueue(10, 0)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, NewAnalyzeTask("content-1", true)))
	require.NoError(t, q.Enqueue(ctx, NewAnalyzeTask("content-2", false)))

	tasks, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "content-1", tasks[0].ContentID)
	assert.True(t, tasks[0].GenerateEmbedding)
	assert.Equal(t, 1, tasks[0].Attempt)
	assert.NotEmpty(t, tasks[0].ID)
	assert.NotEqual(t, tasks[0].ID, tasks[1].ID)
}

func TestMemoryQueue_RequeueAndDeadLetter(t *testing.T) {
	q := NewMemoryQueue(10, 0)
	ctx := context.Background()

	require.NoError(t, q.Requeue(ctx, NewAnalyzeTask("content-1", true), "boom"))
	tasks, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 2, tasks[0].Attempt)
	assert.Equal(t, "boom", tasks[0].LastError)

	require.NoError(t, q.DeadLetter(ctx, tasks[0], "gave up"))
	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, "gave up", dead[0].LastError)
	assert.Equal(t, 0, q.Len())
}

func TestMemoryQueue_DequeueRespectsContext(t *testing.T) {
	q := NewMemoryQueue(1, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	tasks, err := q.Dequeue(ctx)
	assert.Empty(t, tasks)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryQueue_ClosedRejectsEnqueue(t *testing.T) {
	q := NewMemoryQueue(1, 0)
	require.NoError(t, q.Close())
	assert.Error(t, q.Enqueue(context.Background(), NewAnalyzeTask("c", false)))
}

func TestParseTask(t *testing.T) {
	// redis returns every stream value as a string
	task, err := parseTask("1-0", map[string]any{
		"task_type":          "analyze",
		"content_id":         "content-1",
		"generate_embedding": "true",
		"attempt":            "3",
		"last_error":         "timeout",
	})
	require.NoError(t, err)
	assert.Equal(t, Task{ID: "1-0", Type: TaskAnalyze, ContentID: "content-1", GenerateEmbedding: true, Attempt: 3, LastError: "timeout"}, task)

	task, err = parseTask("2-0", map[string]any{"task_type": "analyze", "content_id": "c"})
	require.NoError(t, err)
	assert.Equal(t, 1, task.Attempt)
	assert.False(t, task.GenerateEmbedding)

	_, err = parseTask("3-0", map[string]any{"content_id": "c"})
	assert.Error(t, err)
	_, err = parseTask("4-0", map[string]any{"task_type": "analyze"})
	assert.Error(t, err)
	_, err = parseTask("5-0", map[string]any{"task_type": "analyze", "content_id": "c", "attempt": "x"})
	assert.Error(t, err)
}

func TestTaskValues(t *testing.T) {
	values := taskValues(Task{Type: TaskAnalyze, ContentID: "c", GenerateEmbedding: true})
	assert.Equal(t, 1, values["attempt"])
	assert.Equal(t, "true", values["generate_embedding"])
	_, hasError := values["last_error"]
	assert.False(t, hasError)
}
