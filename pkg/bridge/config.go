package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrConfigNotFound is returned when no call configuration exists for a
// call identifier. Session creation fails fatally on it.
var ErrConfigNotFound = errors.New("bridge: call config not found")

// DefaultResolveTimeout bounds a single configuration lookup.
const DefaultResolveTimeout = 3 * time.Second

// Defaults applied when the resolver omits a field.
const (
	DefaultSilenceTimeoutMs = 30000
	DefaultMaxDurationMs    = 600000
	DefaultEndpointingMs    = 700
	DefaultHangUpMessage    = "We're sorry, something went wrong. Goodbye."
	DefaultPresencePrompt   = "Ask the caller if they are still there, briefly."
)

// SessionConfig is the read-only per-call configuration snapshot, resolved
// once at session start and never mutated.
type SessionConfig struct {
	AgentID          string `json:"agentId"`
	ModelName        string `json:"modelName"`
	VoiceID          string `json:"voiceId"`
	Language         string `json:"language,omitempty"`
	Prompt           string `json:"prompt,omitempty"`
	Greeting         string `json:"greeting,omitempty"`
	SilenceTimeoutMs int    `json:"silenceTimeoutMs,omitempty"`
	MaxDurationMs    int    `json:"maxDurationMs,omitempty"`
	EndpointingMs    int    `json:"endpointingMs,omitempty"`
	HangUpMessage    string `json:"hangUpMessage,omitempty"`
}

// withDefaults returns a copy with zero fields replaced by defaults.
func (c SessionConfig) withDefaults() SessionConfig {
	if c.SilenceTimeoutMs <= 0 {
		c.SilenceTimeoutMs = DefaultSilenceTimeoutMs
	}
	if c.MaxDurationMs <= 0 {
		c.MaxDurationMs = DefaultMaxDurationMs
	}
	if c.EndpointingMs <= 0 {
		c.EndpointingMs = DefaultEndpointingMs
	}
	if c.HangUpMessage == "" {
		c.HangUpMessage = DefaultHangUpMessage
	}
	return c
}

// SilenceTimeout returns the silence timeout as a duration.
func (c SessionConfig) SilenceTimeout() time.Duration {
	return time.Duration(c.SilenceTimeoutMs) * time.Millisecond
}

// MaxDuration returns the call duration cap as a duration.
func (c SessionConfig) MaxDuration() time.Duration {
	return time.Duration(c.MaxDurationMs) * time.Millisecond
}

// Endpointing returns the end-of-speech silence threshold as a duration.
func (c SessionConfig) Endpointing() time.Duration {
	return time.Duration(c.EndpointingMs) * time.Millisecond
}

// ConfigResolver looks up the configuration for a call. The bridge treats
// it as an external collaborator; failures are fatal at session start.
type ConfigResolver interface {
	Resolve(ctx context.Context, callID string) (*SessionConfig, error)
}

// HTTPResolver resolves call configuration from the platform's config
// service via GET {base}/call-config/{callId}.
type HTTPResolver struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// HTTPResolverOption configures an HTTPResolver.
type HTTPResolverOption func(*HTTPResolver)

// WithResolverTimeout overrides the per-lookup timeout.
func WithResolverTimeout(d time.Duration) HTTPResolverOption {
	return func(r *HTTPResolver) {
		r.timeout = d
	}
}

// WithResolverHTTPClient sets a custom HTTP client.
func WithResolverHTTPClient(c *http.Client) HTTPResolverOption {
	return func(r *HTTPResolver) {
		r.client = c
	}
}

// NewHTTPResolver creates a resolver against the given base URL.
func NewHTTPResolver(baseURL string, opts ...HTTPResolverOption) *HTTPResolver {
	r := &HTTPResolver{
		baseURL: baseURL,
		client:  http.DefaultClient,
		timeout: DefaultResolveTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve implements ConfigResolver.
func (r *HTTPResolver) Resolve(ctx context.Context, callID string) (*SessionConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/call-config/%s", r.baseURL, callID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("bridge: build config request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bridge: resolve config for %s: %w", callID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, callID)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("bridge: resolve config for %s: http %d", callID, resp.StatusCode)
	}

	var cfg SessionConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("bridge: decode config for %s: %w", callID, err)
	}
	cfg = cfg.withDefaults()
	return &cfg, nil
}
