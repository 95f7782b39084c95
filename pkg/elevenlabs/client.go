// Package elevenlabs provides the fallback text-to-speech client.
//
// It is a plain request/response HTTP client, used when the model transport
// returns text instead of audio or when a turn's audio synthesis fails. The
// response body streams audio incrementally and is cancelled by cancelling
// the request context.
package elevenlabs

import (
	"net/http"
	"time"
)

const (
	// DefaultBaseURL is the default synthesis API base URL.
	DefaultBaseURL = "https://api.elevenlabs.io/v1"

	// DefaultTimeout bounds a whole synthesis request, connect to last byte.
	DefaultTimeout = 30 * time.Second
)

// Client is the synthesis API client.
type Client struct {
	config *clientConfig
}

type clientConfig struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// Option is a function that configures the client.
type Option func(*clientConfig)

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// NewClient creates a synthesis client.
func NewClient(apiKey string, opts ...Option) *Client {
	cfg := &clientConfig{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{Timeout: cfg.timeout}
	}
	return &Client{config: cfg}
}
