package realtime

import (
	"context"
	"net/http"
	"time"
)

// DefaultURL is the default realtime WebSocket endpoint.
const DefaultURL = "wss://api.openai.com/v1/realtime"

// Client dials realtime sessions against one provider account.
type Client struct {
	config *clientConfig
}

type clientConfig struct {
	apiKey           string
	url              string
	handshakeTimeout time.Duration
	header           http.Header
}

// Option configures the Client.
type Option func(*clientConfig)

// NewClient creates a realtime client.
func NewClient(apiKey string, opts ...Option) *Client {
	if apiKey == "" {
		panic("realtime: API key is required")
	}

	cfg := &clientConfig{
		apiKey:           apiKey,
		url:              DefaultURL,
		handshakeTimeout: 10 * time.Second,
		header:           http.Header{},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Client{config: cfg}
}

// WithURL sets the WebSocket endpoint.
func WithURL(url string) Option {
	return func(c *clientConfig) {
		c.url = url
	}
}

// WithHandshakeTimeout bounds the WebSocket dial.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.handshakeTimeout = d
	}
}

// WithHeader adds a header to the connection handshake.
func WithHeader(key, value string) Option {
	return func(c *clientConfig) {
		c.header.Set(key, value)
	}
}

// Connect establishes a realtime session. Every call to Connect opens a
// fresh connection with no configuration carried over; callers re-send
// session.update after each connect.
func (c *Client) Connect(ctx context.Context, config *ConnectConfig) (*Session, error) {
	return c.connect(ctx, config)
}
