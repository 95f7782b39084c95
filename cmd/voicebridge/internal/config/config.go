// Package config loads the voicebridge server configuration.
//
// Configuration is a single YAML file. API keys can be left out of the
// file and supplied via environment variables instead, so the file can be
// committed without secrets:
//
//	listen: ":8080"
//	resolver_url: "http://platform.internal"
//	model:
//	  url: "wss://api.openai.com/v1/realtime"
//	tts:
//	  default_voice: "rachel"
//	transcript_url: "http://platform.internal"
//	outbox_dir: "/var/lib/voicebridge/outbox"
//	log_level: "info"
package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/goccy/go-yaml"
)

// Environment overrides for secrets.
const (
	EnvModelAPIKey = "OPENAI_API_KEY"
	EnvTTSAPIKey   = "ELEVENLABS_API_KEY"
)

// Config is the server configuration.
type Config struct {
	// Listen is the HTTP listen address. Default ":8080".
	Listen string `yaml:"listen"`

	// ResolverURL is the base URL of the call configuration service.
	// Required.
	ResolverURL string `yaml:"resolver_url"`

	Model ModelConfig `yaml:"model"`
	TTS   TTSConfig   `yaml:"tts"`

	// TranscriptURL is the base URL transcript turns are posted to.
	// With OutboxDir set, the outbox is drained here periodically;
	// without it, turns are posted directly.
	TranscriptURL string `yaml:"transcript_url"`

	// OutboxDir is the directory for the durable transcript store. When
	// TranscriptURL is unset, an embedding process must drain the store
	// itself.
	OutboxDir string `yaml:"outbox_dir"`

	// LogLevel is one of debug, info, warn, error. Default info.
	LogLevel string `yaml:"log_level"`
}

// ModelConfig configures the realtime model provider.
type ModelConfig struct {
	// APIKey authenticates against the provider. Falls back to the
	// OPENAI_API_KEY environment variable. Required.
	APIKey string `yaml:"api_key"`

	// URL overrides the realtime WebSocket endpoint.
	URL string `yaml:"url"`

	// OutputFormat is the audio encoding requested from the model:
	// "g711_ulaw" (default) or "pcm16". PCM output is transcoded per
	// delta before it reaches the call.
	OutputFormat string `yaml:"output_format"`
}

// TTSConfig configures the fallback speech synthesizer.
type TTSConfig struct {
	// APIKey authenticates against the synthesizer. Falls back to the
	// ELEVENLABS_API_KEY environment variable. Empty disables fallback
	// synthesis.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the synthesis endpoint.
	BaseURL string `yaml:"base_url"`

	// DefaultVoice is used when a call's config omits a voice.
	DefaultVoice string `yaml:"default_voice"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes, applies environment
// overrides and defaults, and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Model.APIKey == "" {
		cfg.Model.APIKey = os.Getenv(EnvModelAPIKey)
	}
	if cfg.TTS.APIKey == "" {
		cfg.TTS.APIKey = os.Getenv(EnvTTSAPIKey)
	}
	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	switch cfg.Model.OutputFormat {
	case "", "g711_ulaw", "pcm16":
	default:
		return nil, fmt.Errorf("config: unknown model.output_format %q", cfg.Model.OutputFormat)
	}

	if cfg.ResolverURL == "" {
		return nil, fmt.Errorf("config: resolver_url is required")
	}
	if cfg.Model.APIKey == "" {
		return nil, fmt.Errorf("config: model.api_key is required (or set %s)", EnvModelAPIKey)
	}
	if _, err := cfg.SlogLevel(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SlogLevel maps the configured log level to a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
}
