package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/azure/mentions-monitor/internal/models"
)

// RedisPublisher publishes JSON events with Redis pub/sub
type RedisPublisher struct {
	client *redis.Client
}

var _ Publisher = (*RedisPublisher)(nil)

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, event any) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, channel, raw).Err(); err != nil {
		return models.NewExternalError("realtime", fmt.Errorf("publish to %s: %w", channel, err))
	}
	return nil
}

// LogPublisher logs events when no real-time transport is configured
type LogPublisher struct{}

var _ Publisher = LogPublisher{}

func (LogPublisher) Publish(ctx context.Context, channel string, event any) error {
	logrus.WithField("channel", channel).Debugf("Realtime event: %+v", event)
	return nil
}
