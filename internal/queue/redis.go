package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisConfig configures the Redis streams queue
type RedisConfig struct {
	Stream       string        // stream holding pending tasks
	Group        string        // consumer group shared by all workers
	Consumer     string        // this process's consumer name
	DLQStream    string        // stream receiving tasks that exhausted their attempts
	DelayedSet   string        // sorted set holding retries until they are due
	BatchSize    int64         // tasks read per call
	Block        time.Duration // how long a read blocks waiting for tasks
	RequeueDelay time.Duration // how long a failed task waits before it is delivered again
	ClaimIdle    time.Duration // delivered but unacknowledged tasks idle this long are taken over
}

// RedisQueue is a Queue on Redis streams with a consumer group.
//
// Retries with a delay are parked in a sorted set scored by their due time
// and moved back onto the stream by Dequeue. Tasks left pending by a consumer
// that died are reclaimed once they have been idle for ClaimIdle.
type RedisQueue struct {
	client *redis.Client
	cfg    RedisConfig
	now    func() time.Time
}

var _ Queue = (*RedisQueue)(nil)

// promoteScript moves due members of KEYS[1] onto the stream KEYS[2].
// Each member is a JSON array of alternating field names and values.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', '0', ARGV[2])
for _, member in ipairs(due) do
	redis.call('XADD', KEYS[2], '*', unpack(cjson.decode(member)))
	redis.call('ZREM', KEYS[1], member)
end
return #due
`)

// NewRedisQueue creates the consumer group if needed
func NewRedisQueue(ctx context.Context, client *redis.Client, cfg RedisConfig) (*RedisQueue, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Block <= 0 {
		cfg.Block = 2 * time.Second
	}
	if cfg.ClaimIdle <= 0 {
		cfg.ClaimIdle = 10 * time.Minute
	}
	if cfg.DelayedSet == "" {
		cfg.DelayedSet = cfg.Stream + ":delayed"
	}

	q := &RedisQueue{client: client, cfg: cfg, now: time.Now}
	// start at "0" so tasks added before the group existed are not skipped
	err := client.XGroupCreateMkStream(ctx, cfg.Stream, cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}
	return q, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, task Task) error {
	return q.add(ctx, q.cfg.Stream, taskValues(task))
}

func (q *RedisQueue) add(ctx context.Context, stream string, values map[string]any) error {
	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("xadd (stream=%s): %w", stream, err)
	}
	return nil
}

// Dequeue returns due retries, then tasks reclaimed from idle consumers,
// then new tasks.
func (q *RedisQueue) Dequeue(ctx context.Context) ([]Task, error) {
	if err := q.promoteDue(ctx); err != nil {
		logrus.Warnf("Failed to promote delayed tasks in %s: %v", q.cfg.DelayedSet, err)
	}

	claimed, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.cfg.Stream,
		Group:    q.cfg.Group,
		Consumer: q.cfg.Consumer,
		MinIdle:  q.cfg.ClaimIdle,
		Start:    "0-0",
		Count:    q.cfg.BatchSize,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("claiming idle tasks: %w", err)
	}
	if len(claimed) > 0 {
		logrus.Infof("Reclaimed %d idle tasks from %s", len(claimed), q.cfg.Stream)
		return q.parse(ctx, claimed), nil
	}

	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.cfg.Group,
		Consumer: q.cfg.Consumer,
		Streams:  []string{q.cfg.Stream, ">"},
		Count:    q.cfg.BatchSize,
		Block:    q.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var tasks []Task
	for _, stream := range streams {
		tasks = append(tasks, q.parse(ctx, stream.Messages)...)
	}
	return tasks, nil
}

func (q *RedisQueue) parse(ctx context.Context, msgs []redis.XMessage) []Task {
	tasks := make([]Task, 0, len(msgs))
	for _, msg := range msgs {
		task, err := parseTask(msg.ID, msg.Values)
		if err != nil {
			logrus.Errorf("Dropping malformed task %s from %s: %v", msg.ID, q.cfg.Stream, err)
			_ = q.Ack(ctx, Task{ID: msg.ID})
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks
}

func (q *RedisQueue) promoteDue(ctx context.Context) error {
	now := strconv.FormatInt(q.now().UnixMilli(), 10)
	err := promoteScript.Run(ctx, q.client, []string{q.cfg.DelayedSet, q.cfg.Stream}, now, q.cfg.BatchSize).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (q *RedisQueue) Ack(ctx context.Context, task Task) error {
	if err := q.client.XAck(ctx, q.cfg.Stream, q.cfg.Group, task.ID).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", q.cfg.Stream, err)
	}
	return nil
}

// Requeue stores the next attempt before acknowledging the failed one, so a
// failure in between leaves the task pending rather than lost.
func (q *RedisQueue) Requeue(ctx context.Context, task Task, errMsg string) error {
	next := task
	next.Attempt++
	next.LastError = errMsg

	if q.cfg.RequeueDelay > 0 {
		if err := q.delay(ctx, next, q.now().Add(q.cfg.RequeueDelay)); err != nil {
			return fmt.Errorf("requeue: %w", err)
		}
	} else if err := q.add(ctx, q.cfg.Stream, taskValues(next)); err != nil {
		return fmt.Errorf("requeue: %w", err)
	}

	if err := q.Ack(ctx, task); err != nil {
		return fmt.Errorf("acking requeued task: %w", err)
	}
	logrus.Infof("Task for content %s requeued (attempt %d): %s", next.ContentID, next.Attempt, errMsg)
	return nil
}

func (q *RedisQueue) delay(ctx context.Context, task Task, due time.Time) error {
	values := taskValues(task)
	// keeps members unique when the same content fails twice
	values["requeued_from"] = task.ID

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		fields = append(fields, k, fmt.Sprint(values[k]))
	}
	member, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encoding delayed task: %w", err)
	}

	if err := q.client.ZAdd(ctx, q.cfg.DelayedSet, redis.Z{
		Score:  float64(due.UnixMilli()),
		Member: string(member),
	}).Err(); err != nil {
		return fmt.Errorf("zadd (key=%s): %w", q.cfg.DelayedSet, err)
	}
	return nil
}

func (q *RedisQueue) DeadLetter(ctx context.Context, task Task, errMsg string) error {
	values := taskValues(task)
	values["error"] = errMsg
	if err := q.add(ctx, q.cfg.DLQStream, values); err != nil {
		return fmt.Errorf("dead letter: %w", err)
	}

	if err := q.Ack(ctx, task); err != nil {
		return fmt.Errorf("acking dead-lettered task: %w", err)
	}
	logrus.Errorf("Task for content %s sent to %s: %s", task.ContentID, q.cfg.DLQStream, errMsg)
	return nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
