package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSynthesizeStreams(t *testing.T) {
	var gotReq SynthesizeRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/synthesize" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("xi-api-key") != "key-1" {
			t.Errorf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "audio/basic")
		w.Write([]byte("audio-bytes"))
	}))
	defer ts.Close()

	client := NewClient("key-1", WithBaseURL(ts.URL))
	body, err := client.Synthesize(context.Background(), &SynthesizeRequest{
		Text:    "hello caller",
		VoiceID: "v-7",
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Errorf("stream = %q", data)
	}
	if gotReq.Text != "hello caller" || gotReq.VoiceID != "v-7" {
		t.Errorf("request = %+v", gotReq)
	}
	if gotReq.OutputFormat != FormatULaw8K {
		t.Errorf("default output format = %q; want %q", gotReq.OutputFormat, FormatULaw8K)
	}
}

func TestSynthesizeAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"status":"rate_limited","message":"slow down"}`))
	}))
	defer ts.Close()

	client := NewClient("key-1", WithBaseURL(ts.URL))
	_, err := client.Synthesize(context.Background(), &SynthesizeRequest{Text: "x", VoiceID: "v"})

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v; want *Error", err)
	}
	if !apiErr.IsRateLimit() {
		t.Errorf("IsRateLimit() = false for %+v", apiErr)
	}
	if apiErr.Message != "slow down" {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestSynthesizeCancelMidStream(t *testing.T) {
	streaming := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/basic")
		w.(http.Flusher).Flush()
		w.Write([]byte("chunk-1"))
		w.(http.Flusher).Flush()
		close(streaming)
		// Keep the stream open until the client cancels.
		<-r.Context().Done()
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient("key-1", WithBaseURL(ts.URL))
	body, err := client.Synthesize(ctx, &SynthesizeRequest{Text: "x", VoiceID: "v"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	defer body.Close()

	buf := make([]byte, 7)
	if _, err := io.ReadFull(body, buf); err != nil {
		t.Fatalf("read first chunk: %v", err)
	}

	<-streaming
	cancel()

	done := make(chan error, 1)
	go func() {
		_, err := io.ReadAll(body)
		done <- err
	}()
	select {
	case err := <-done:
		if err == nil {
			t.Error("read after cancel: want error, got nil")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancel did not stop the stream")
	}
}

func TestSynthesizeValidation(t *testing.T) {
	client := NewClient("key-1")
	if _, err := client.Synthesize(context.Background(), &SynthesizeRequest{VoiceID: "v"}); err == nil {
		t.Error("empty text: want error")
	}
	if _, err := client.Synthesize(context.Background(), &SynthesizeRequest{Text: "x"}); err == nil {
		t.Error("empty voice: want error")
	}
}
