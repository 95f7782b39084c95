package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultWebhookTimeout = 5 * time.Second

// WebhookEmitter delivers transcript turns to the platform via
// POST {base}/transcripts. It is the usual sink behind an Outbox drain,
// and can also serve as the session emitter directly when durability is
// not needed.
type WebhookEmitter struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// WebhookOption configures a WebhookEmitter.
type WebhookOption func(*WebhookEmitter)

// WithWebhookTimeout overrides the per-delivery timeout.
func WithWebhookTimeout(d time.Duration) WebhookOption {
	return func(w *WebhookEmitter) {
		w.timeout = d
	}
}

// WithWebhookHTTPClient sets a custom HTTP client.
func WithWebhookHTTPClient(c *http.Client) WebhookOption {
	return func(w *WebhookEmitter) {
		w.client = c
	}
}

// NewWebhookEmitter creates an emitter against the given base URL.
func NewWebhookEmitter(baseURL string, opts ...WebhookOption) *WebhookEmitter {
	w := &WebhookEmitter{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  http.DefaultClient,
		timeout: defaultWebhookTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Emit implements TranscriptEmitter. A non-2xx response is an error, so
// an Outbox drain keeps the turn queued for the next attempt.
func (w *WebhookEmitter) Emit(ctx context.Context, turn TranscriptTurn) error {
	body, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("bridge: encode transcript turn: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/transcripts", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("bridge: build transcript request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("bridge: deliver transcript turn: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("bridge: transcript endpoint returned %d", resp.StatusCode)
	}
	return nil
}
