package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	telemetry "gridwatch/internal/telemetry/domain"
)

// RedisQueueSink pushes alerts onto a redis list consumed by the
// notification service (the owner-facing chat responder).
type RedisQueueSink struct {
	client *redis.Client
	queue  string
}

// NewRedisQueueSink constructs a sink for the given queue key.
func NewRedisQueueSink(client *redis.Client, queue string) (*RedisQueueSink, error) {
	if client == nil {
		return nil, errors.New("alerting: nil redis client")
	}
	if queue == "" {
		return nil, errors.New("alerting: empty queue name")
	}
	return &RedisQueueSink{client: client, queue: queue}, nil
}

type queuedNotification struct {
	UserID  string `json:"userId,omitempty"`
	Message string `json:"message"`
}

// Deliver enqueues one notification.
func (s *RedisQueueSink) Deliver(ctx context.Context, alert telemetry.AlertEvent) error {
	notification := queuedNotification{Message: alert.Message}
	if alert.OwnerUserID != nil {
		notification.UserID = alert.OwnerUserID.String()
	}
	data, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	if err := s.client.LPush(ctx, s.queue, data).Err(); err != nil {
		return fmt.Errorf("alerting: push to %s: %w", s.queue, err)
	}
	return nil
}
