package bridge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPResolverResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/call-config/CA100":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"agentId": "agent-1",
				"modelName": "gpt-realtime",
				"voiceId": "voice-1",
				"greeting": "Hello!",
				"endpointingMs": 500
			}`))
		case "/call-config/CAmissing":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	r := NewHTTPResolver(srv.URL)

	cfg, err := r.Resolve(context.Background(), "CA100")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.AgentID != "agent-1" || cfg.ModelName != "gpt-realtime" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.EndpointingMs != 500 {
		t.Errorf("EndpointingMs = %d, want 500", cfg.EndpointingMs)
	}
	// Omitted fields pick up defaults.
	if cfg.SilenceTimeoutMs != DefaultSilenceTimeoutMs {
		t.Errorf("SilenceTimeoutMs = %d, want %d", cfg.SilenceTimeoutMs, DefaultSilenceTimeoutMs)
	}
	if cfg.MaxDurationMs != DefaultMaxDurationMs {
		t.Errorf("MaxDurationMs = %d, want %d", cfg.MaxDurationMs, DefaultMaxDurationMs)
	}
	if cfg.HangUpMessage != DefaultHangUpMessage {
		t.Errorf("HangUpMessage = %q", cfg.HangUpMessage)
	}

	if _, err := r.Resolve(context.Background(), "CAmissing"); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("missing config: got %v, want ErrConfigNotFound", err)
	}

	if _, err := r.Resolve(context.Background(), "CAboom"); err == nil {
		t.Error("server error: want non-nil error")
	}
}

func TestHTTPResolverTimeout(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	r := NewHTTPResolver(srv.URL, WithResolverTimeout(50*time.Millisecond))
	start := time.Now()
	_, err := r.Resolve(context.Background(), "CAslow")
	if err == nil {
		t.Fatal("want timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
}

func TestSessionConfigDurations(t *testing.T) {
	cfg := SessionConfig{SilenceTimeoutMs: 1000, MaxDurationMs: 2000, EndpointingMs: 300}
	if got := cfg.SilenceTimeout(); got != time.Second {
		t.Errorf("SilenceTimeout = %v", got)
	}
	if got := cfg.MaxDuration(); got != 2*time.Second {
		t.Errorf("MaxDuration = %v", got)
	}
	if got := cfg.Endpointing(); got != 300*time.Millisecond {
		t.Errorf("Endpointing = %v", got)
	}
}
