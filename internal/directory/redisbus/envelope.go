package redisbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	directory "gridwatch/internal/directory/domain"
)

// Envelope wraps a lifecycle event payload with delivery metadata.
// The broadcast channel gives at-least-once, unordered delivery, so the
// event id exists for logging and tracing, not deduplication; consumers
// rely on idempotent apply instead.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// BuildEnvelope constructs an envelope for a lifecycle event.
func BuildEnvelope(event directory.Event) (Envelope, error) {
	if event == nil {
		return Envelope{}, errors.New("redisbus: nil event")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, fmt.Errorf("redisbus: marshal %s: %w", event.EventType(), err)
	}
	return Envelope{
		EventID:    uuid.NewString(),
		EventType:  event.EventType(),
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}, nil
}

// DecodeEnvelope parses a raw broadcast message.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("redisbus: decode envelope: %w", err)
	}
	if env.EventType == "" {
		return Envelope{}, errors.New("redisbus: envelope missing event_type")
	}
	return env, nil
}
