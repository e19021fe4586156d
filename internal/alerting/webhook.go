package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	telemetry "gridwatch/internal/telemetry/domain"
)

type webhookPayload struct {
	UserID  string `json:"userId,omitempty"`
	Message string `json:"message"`
}

// WebhookSink posts threshold alerts to an HTTP endpoint.
type WebhookSink struct {
	url    string
	client *http.Client
}

// WebhookOption configures the webhook sink.
type WebhookOption func(*WebhookSink)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(s *WebhookSink) {
		if client != nil {
			s.client = client
		}
	}
}

// NewWebhookSink constructs a webhook sink.
func NewWebhookSink(url string, opts ...WebhookOption) (*WebhookSink, error) {
	if url == "" {
		return nil, errors.New("alerting: empty webhook url")
	}
	sink := &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(sink)
	}
	return sink, nil
}

// Deliver posts the alert as JSON. Non-2xx responses are errors; the
// caller logs and moves on, there is no retry.
func (s *WebhookSink) Deliver(ctx context.Context, alert telemetry.AlertEvent) error {
	payload := webhookPayload{Message: alert.Message}
	if alert.OwnerUserID != nil {
		payload.UserID = alert.OwnerUserID.String()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("alerting: webhook non-2xx response %d", resp.StatusCode)
	}
	return nil
}
