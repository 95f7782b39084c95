package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeProvider is an in-process realtime endpoint for session tests.
type fakeProvider struct {
	upgrader websocket.Upgrader

	// received collects client events by type.
	received chan map[string]any

	// script is sent to the client after session.created.
	script []string
}

func (p *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"session.created","session":{"id":"sess_123"}}`))
	for _, msg := range p.script {
		ws.WriteMessage(websocket.TextMessage, []byte(msg))
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var m map[string]any
		if json.Unmarshal(data, &m) == nil {
			select {
			case p.received <- m:
			default:
			}
		}
	}
}

func newFakeSession(t *testing.T, script []string) (*Session, *fakeProvider) {
	t.Helper()

	provider := &fakeProvider{
		received: make(chan map[string]any, 64),
		script:   script,
	}
	ts := httptest.NewServer(provider)
	t.Cleanup(ts.Close)

	client := NewClient("test-key", WithURL("ws"+strings.TrimPrefix(ts.URL, "http")))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sess, err := client.Connect(ctx, &ConnectConfig{Model: "test-model"})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { sess.Close() })
	return sess, provider
}

func collectEvents(t *testing.T, sess *Session, n int) []*ServerEvent {
	t.Helper()
	var events []*ServerEvent
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev, err := range sess.Events() {
			if err != nil {
				return
			}
			events = append(events, ev)
			if len(events) >= n {
				return
			}
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out after %d events", len(events))
	}
	return events
}

func TestSessionTracksID(t *testing.T) {
	sess, _ := newFakeSession(t, nil)

	collectEvents(t, sess, 1)
	if got := sess.SessionID(); got != "sess_123" {
		t.Errorf("SessionID = %q; want sess_123", got)
	}
}

func TestSessionAudioDeltaDecoding(t *testing.T) {
	audio := base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4})
	sess, _ := newFakeSession(t, []string{
		`{"type":"response.audio.delta","response_id":"resp_1","delta":"` + audio + `"}`,
		`{"type":"response.done","response":{"id":"resp_1","status":"completed"}}`,
	})

	events := collectEvents(t, sess, 3)
	var delta *ServerEvent
	for _, ev := range events {
		if ev.Type == EventResponseAudioDelta {
			delta = ev
		}
	}
	if delta == nil {
		t.Fatal("no audio delta received")
	}
	if len(delta.Audio) != 4 || delta.Audio[0] != 1 {
		t.Errorf("decoded audio = %v", delta.Audio)
	}
}

func TestSessionErrorEventKeepsStreamAlive(t *testing.T) {
	// Provider error events are delivered as events; the stream keeps
	// going so a benign error (e.g. cancelling an already-finished
	// response) does not tear the connection down.
	sess, _ := newFakeSession(t, []string{
		`{"type":"error","error":{"type":"invalid_request_error","code":"bad","message":"nope"}}`,
		`{"type":"response.done","response":{"id":"resp_1","status":"completed"}}`,
	})

	events := collectEvents(t, sess, 3)
	var errEvent, doneEvent *ServerEvent
	for _, ev := range events {
		switch ev.Type {
		case EventError:
			errEvent = ev
		case EventResponseDone:
			doneEvent = ev
		}
	}
	if errEvent == nil {
		t.Fatal("error event never surfaced")
	}
	if errEvent.ErrorDetail == nil || errEvent.ErrorDetail.Code != "bad" {
		t.Errorf("ErrorDetail = %+v; want code bad", errEvent.ErrorDetail)
	}
	if doneEvent == nil {
		t.Error("stream ended before the event after the error")
	}
}

func TestSessionSendsClientEvents(t *testing.T) {
	sess, provider := newFakeSession(t, nil)

	if err := sess.UpdateSession(&SessionConfig{Voice: "alloy", Instructions: "hi"}); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	if err := sess.AppendAudio([]byte{9, 9}); err != nil {
		t.Fatalf("AppendAudio: %v", err)
	}
	if err := sess.CancelResponse(); err != nil {
		t.Fatalf("CancelResponse: %v", err)
	}

	wantTypes := []string{EventSessionUpdate, EventInputAudioAppend, EventResponseCancel}
	for _, want := range wantTypes {
		select {
		case m := <-provider.received:
			if m["type"] != want {
				t.Errorf("client event = %v; want %s", m["type"], want)
			}
			if m["event_id"] == "" {
				t.Errorf("%s: missing event_id", want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("client event %s never arrived", want)
		}
	}
}

func TestSessionSendAfterClose(t *testing.T) {
	sess, _ := newFakeSession(t, nil)
	sess.Close()

	if err := sess.AppendAudio([]byte{1}); err == nil {
		t.Error("AppendAudio after Close: want error, got nil")
	}
}

func TestConnectRequiresModel(t *testing.T) {
	client := NewClient("test-key")
	if _, err := client.Connect(context.Background(), nil); err == nil {
		t.Error("Connect(nil): want error, got nil")
	}
}
