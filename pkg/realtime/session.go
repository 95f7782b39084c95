package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Session is one live realtime connection.
type Session struct {
	conn      *websocket.Conn
	config    *ConnectConfig
	sessionID string
	closeCh   chan struct{}
	eventsCh  chan eventOrError
	closeOnce sync.Once
	mu        sync.Mutex
}

type eventOrError struct {
	event *ServerEvent
	err   error
}

func (c *Client) connect(ctx context.Context, config *ConnectConfig) (*Session, error) {
	if config == nil || config.Model == "" {
		return nil, fmt.Errorf("realtime: model is required")
	}

	url := fmt.Sprintf("%s?model=%s", c.config.url, config.Model)

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.config.apiKey)
	headers.Set("OpenAI-Beta", "realtime=v1")
	for k, vs := range c.config.header {
		for _, v := range vs {
			headers.Add(k, v)
		}
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.config.handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, url, headers)
	if err != nil {
		if resp != nil {
			return nil, &Error{
				Code:       "connection_failed",
				Message:    fmt.Sprintf("failed to connect: %v", err),
				HTTPStatus: resp.StatusCode,
			}
		}
		return nil, fmt.Errorf("realtime: failed to connect: %w", err)
	}

	session := &Session{
		conn:     conn,
		config:   config,
		closeCh:  make(chan struct{}),
		eventsCh: make(chan eventOrError, 100),
	}
	go session.readLoop()
	return session, nil
}

func generateEventID() string {
	return "evt_" + uuid.New().String()[:12]
}

// UpdateSession sends a session.update with the full configuration.
func (s *Session) UpdateSession(config *SessionConfig) error {
	return s.sendEvent(map[string]interface{}{
		"event_id": generateEventID(),
		"type":     EventSessionUpdate,
		"session":  config,
	})
}

// AppendAudio appends PCM audio to the input buffer. The payload must match
// the session's input_audio_format.
func (s *Session) AppendAudio(audio []byte) error {
	return s.sendEvent(map[string]interface{}{
		"event_id": generateEventID(),
		"type":     EventInputAudioAppend,
		"audio":    base64.StdEncoding.EncodeToString(audio),
	})
}

// CommitInput commits the audio buffer, closing the user's turn. Only needed
// when server VAD is disabled.
func (s *Session) CommitInput() error {
	return s.sendEvent(map[string]interface{}{
		"event_id": generateEventID(),
		"type":     EventInputAudioCommit,
	})
}

// ClearInput clears the input audio buffer without creating a message.
func (s *Session) ClearInput() error {
	return s.sendEvent(map[string]interface{}{
		"event_id": generateEventID(),
		"type":     EventInputAudioClear,
	})
}

// AddFunctionCallOutput returns a tool result to the conversation.
func (s *Session) AddFunctionCallOutput(callID string, output string) error {
	return s.sendEvent(map[string]interface{}{
		"event_id": generateEventID(),
		"type":     EventItemCreate,
		"item": map[string]interface{}{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  output,
		},
	})
}

// TruncateItem truncates an assistant item's audio at audioEndMs. Used after
// barge-in so the conversation history matches what the caller actually
// heard.
func (s *Session) TruncateItem(itemID string, contentIndex int, audioEndMs int) error {
	return s.sendEvent(map[string]interface{}{
		"event_id":      generateEventID(),
		"type":          EventItemTruncate,
		"item_id":       itemID,
		"content_index": contentIndex,
		"audio_end_ms":  audioEndMs,
	})
}

// CreateResponse requests the model to generate a response. Pass nil for
// defaults.
func (s *Session) CreateResponse(opts *ResponseCreateOptions) error {
	event := map[string]interface{}{
		"event_id": generateEventID(),
		"type":     EventResponseCreate,
	}
	if opts != nil {
		response := map[string]interface{}{}
		if len(opts.Modalities) > 0 {
			response["modalities"] = opts.Modalities
		}
		if opts.Instructions != "" {
			response["instructions"] = opts.Instructions
		}
		if len(response) > 0 {
			event["response"] = response
		}
	}
	return s.sendEvent(event)
}

// CancelResponse cancels the in-flight response. Used for barge-in.
func (s *Session) CancelResponse() error {
	return s.sendEvent(map[string]interface{}{
		"event_id": generateEventID(),
		"type":     EventResponseCancel,
	})
}

// Events returns an iterator over server events. Provider "error" events
// are yielded as events with ErrorDetail set; the error side of the
// iteration is reserved for read failures, and the first one ends it.
func (s *Session) Events() iter.Seq2[*ServerEvent, error] {
	return func(yield func(*ServerEvent, error) bool) {
		for {
			select {
			case <-s.closeCh:
				return
			case item, ok := <-s.eventsCh:
				if !ok {
					return
				}
				if !yield(item.event, item.err) {
					return
				}
				if item.err != nil {
					return
				}
			}
		}
	}
}

// SendRaw sends a raw JSON event to the server.
func (s *Session) SendRaw(event map[string]interface{}) error {
	return s.sendEvent(event)
}

// Close tears the connection down immediately. Used on unrecoverable errors;
// prefer CloseGraceful for normal call teardown.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closeCh)
		err = s.conn.Close()
	})
	return err
}

// CloseGraceful sends a close frame and gives the server a moment to
// acknowledge before tearing the connection down.
func (s *Session) CloseGraceful(ctx context.Context) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(2 * time.Second)
	}

	s.mu.Lock()
	s.conn.SetWriteDeadline(deadline)
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.mu.Unlock()

	select {
	case <-s.closeCh:
	case <-ctx.Done():
	case <-time.After(time.Until(deadline)):
	}
	return s.Close()
}

// SessionID returns the server-assigned session ID, or "" before
// session.created arrives.
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

func (s *Session) sendEvent(event map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.closeCh:
		return fmt.Errorf("realtime: session closed")
	default:
	}

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		if jsonBytes, err := json.Marshal(event); err == nil {
			str := string(jsonBytes)
			if len(str) > 500 {
				str = str[:500] + "..."
			}
			slog.Debug("realtime: sending event", "content", str)
		}
	}

	return s.conn.WriteJSON(event)
}

func (s *Session) readLoop() {
	defer close(s.eventsCh)

	for {
		select {
		case <-s.closeCh:
			return
		default:
		}

		_, message, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.closeCh:
				return
			case s.eventsCh <- eventOrError{err: fmt.Errorf("realtime: read: %w", err)}:
			}
			return
		}

		event, err := parseEvent(message)
		if err != nil {
			// A malformed message is dropped; only read failures end
			// the stream.
			slog.Debug("realtime: dropping malformed message", "err", err)
			continue
		}

		if event.Type == EventSessionCreated && event.Session != nil {
			s.mu.Lock()
			s.sessionID = event.Session.ID
			s.mu.Unlock()
		}

		select {
		case <-s.closeCh:
			return
		case s.eventsCh <- eventOrError{event: event}:
		}
	}
}

func parseEvent(message []byte) (*ServerEvent, error) {
	var event ServerEvent
	if err := json.Unmarshal(message, &event); err != nil {
		return nil, fmt.Errorf("realtime: parse event: %w", err)
	}
	event.Raw = message

	// Audio deltas put base64 audio in the "delta" field.
	if event.Type == EventResponseAudioDelta && event.Delta != "" {
		if decoded, err := base64.StdEncoding.DecodeString(event.Delta); err == nil {
			event.Audio = decoded
		}
	}
	return &event, nil
}
