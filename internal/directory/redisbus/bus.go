package redisbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	directory "gridwatch/internal/directory/domain"
)

// NewClient opens a redis client and verifies connectivity.
func NewClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     32,
		MinIdleConns: 4,
		MaxRetries:   3,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redisbus: connect %s: %w", addr, err)
	}
	return client, nil
}

// Publisher fans lifecycle events out to every subscribed replica over
// redis pub/sub.
type Publisher struct {
	client  *redis.Client
	channel string
}

// NewPublisher constructs a publisher for the given channel.
func NewPublisher(client *redis.Client, channel string) (*Publisher, error) {
	if client == nil {
		return nil, errors.New("redisbus: nil client")
	}
	if channel == "" {
		return nil, errors.New("redisbus: empty channel")
	}
	return &Publisher{client: client, channel: channel}, nil
}

// Publish broadcasts one lifecycle event. Delivery is at-least-once at
// best; a replica that is down simply misses the event.
func (p *Publisher) Publish(ctx context.Context, event directory.Event) error {
	env, err := BuildEnvelope(event)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("redisbus: marshal envelope: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("redisbus: publish %s: %w", env.EventType, err)
	}
	return nil
}

// EnvelopeHandler consumes one decoded envelope. Errors are the handler's
// own; the subscriber logs them and keeps consuming.
type EnvelopeHandler func(ctx context.Context, env Envelope) error

// Subscriber delivers broadcast envelopes to a handler until the context
// is cancelled.
type Subscriber struct {
	client  *redis.Client
	channel string
	logger  *log.Logger
}

// NewSubscriber constructs a subscriber for the given channel.
func NewSubscriber(client *redis.Client, channel string, logger *log.Logger) (*Subscriber, error) {
	if client == nil {
		return nil, errors.New("redisbus: nil client")
	}
	if channel == "" {
		return nil, errors.New("redisbus: empty channel")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Subscriber{client: client, channel: channel, logger: logger}, nil
}

// Run blocks consuming the channel. Malformed envelopes and handler errors
// are logged and skipped; no single message can stop the loop.
func (s *Subscriber) Run(ctx context.Context, handler EnvelopeHandler) error {
	if handler == nil {
		return errors.New("redisbus: nil handler")
	}

	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redisbus: subscribe %s: %w", s.channel, err)
	}

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return errors.New("redisbus: subscription closed")
			}
			env, err := DecodeEnvelope([]byte(msg.Payload))
			if err != nil {
				s.logger.Printf("directory sync: dropping message: %v", err)
				continue
			}
			if err := handler(ctx, env); err != nil {
				s.logger.Printf("directory sync: handler error for %s event %s: %v", env.EventType, env.EventID, err)
			}
		}
	}
}
