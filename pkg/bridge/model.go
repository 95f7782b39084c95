package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hikevindiaz/voicebridge/pkg/realtime"
)

// ModelEvent is one item on the model side of the bridge. Exactly one of
// Event and Err is set, except that Reconnected may arrive alone to tell
// the session the link was re-established and buffered audio should be
// replayed.
type ModelEvent struct {
	Event       *realtime.ServerEvent
	Err         error
	Reconnected bool
}

// ModelLink is the session's view of the model connection. It hides
// reconnection, so the session sees one uninterrupted event stream until
// the link gives up and reports a terminal error.
type ModelLink interface {
	// Events yields model events until the link closes. A terminal
	// error is the last event delivered.
	Events() <-chan ModelEvent

	// SendAudio forwards one chunk of caller audio upstream.
	SendAudio(audio []byte) error

	// Commit closes the input audio buffer as one user turn. Only needed
	// when the model's own VAD is not doing the endpointing.
	Commit() error

	// ClearInput discards uncommitted caller audio on the model side.
	ClearInput() error

	// FunctionResult returns a tool call's output to the conversation.
	FunctionResult(callID, output string) error

	// Cancel aborts the in-flight response.
	Cancel() error

	// Respond asks the model to produce a response, optionally with
	// per-response instructions.
	Respond(instructions string) error

	// Truncate trims an assistant item's audio to what was played.
	Truncate(itemID string, audioEndMs int) error

	// Close tears the link down.
	Close(ctx context.Context) error
}

// Reconnect policy for a dropped model connection.
const (
	reconnectAttempts = 2
	reconnectBackoff  = 500 * time.Millisecond
)

// realtimeLink is the production ModelLink over a realtime WebSocket.
type realtimeLink struct {
	client  *realtime.Client
	model   string
	session *realtime.SessionConfig

	mu      sync.Mutex
	cur     *realtime.Session
	events  chan ModelEvent
	closeCh chan struct{}
	logger  *slog.Logger
}

// current returns the active underlying session. The pump swaps it on
// reconnect, so senders must not cache it.
func (l *realtimeLink) current() *realtime.Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cur
}

func (l *realtimeLink) setCurrent(s *realtime.Session) {
	l.mu.Lock()
	l.cur = s
	l.mu.Unlock()
}

// DialModel connects to the realtime provider, applies the session
// configuration, and starts the event pump.
func DialModel(ctx context.Context, client *realtime.Client, model string, cfg *realtime.SessionConfig, logger *slog.Logger) (ModelLink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &realtimeLink{
		client:  client,
		model:   model,
		session: cfg,
		events:  make(chan ModelEvent, 64),
		closeCh: make(chan struct{}),
		logger:  logger,
	}
	sess, err := l.dial(ctx)
	if err != nil {
		return nil, err
	}
	l.setCurrent(sess)
	go l.pump(sess)
	return l, nil
}

// dial opens a fresh connection and re-sends the session configuration.
// The provider does not persist configuration across connections.
func (l *realtimeLink) dial(ctx context.Context) (*realtime.Session, error) {
	sess, err := l.client.Connect(ctx, &realtime.ConnectConfig{Model: l.model})
	if err != nil {
		return nil, fmt.Errorf("bridge: dial model: %w", err)
	}
	if err := sess.UpdateSession(l.session); err != nil {
		sess.Close()
		return nil, fmt.Errorf("bridge: configure model session: %w", err)
	}
	return sess, nil
}

// pump forwards events from one underlying session. When the session
// drops it tries to reconnect, first immediately and then once more
// after a short backoff, before reporting a terminal error.
func (l *realtimeLink) pump(sess *realtime.Session) {
	for {
		var streamErr error
		for event, err := range sess.Events() {
			if err != nil {
				streamErr = err
				break
			}
			if !l.deliver(ModelEvent{Event: event}) {
				return
			}
		}

		// The old connection may still be half-open after a read
		// failure; release it before dialing again.
		sess.Close()

		select {
		case <-l.closeCh:
			return
		default:
		}

		if streamErr == nil {
			// Server closed the stream without an error; treat it
			// the same as a drop.
			streamErr = fmt.Errorf("bridge: model stream ended")
		}
		l.logger.Warn("model link dropped, reconnecting", "error", streamErr)

		next, err := l.reconnect()
		if err != nil {
			l.deliver(ModelEvent{Err: fmt.Errorf("bridge: model link lost: %w", err)})
			return
		}
		l.setCurrent(next)
		sess = next
		if !l.deliver(ModelEvent{Reconnected: true}) {
			return
		}
	}
}

func (l *realtimeLink) reconnect() (*realtime.Session, error) {
	var lastErr error
	for attempt := 1; attempt <= reconnectAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-l.closeCh:
				return nil, fmt.Errorf("link closed")
			case <-time.After(reconnectBackoff):
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		sess, err := l.dial(ctx)
		cancel()
		if err == nil {
			l.logger.Info("model link reconnected", "attempt", attempt)
			return sess, nil
		}
		lastErr = err
		l.logger.Warn("model reconnect failed", "attempt", attempt, "error", err)
	}
	return nil, lastErr
}

func (l *realtimeLink) deliver(ev ModelEvent) bool {
	select {
	case <-l.closeCh:
		return false
	case l.events <- ev:
		return true
	}
}

func (l *realtimeLink) Events() <-chan ModelEvent {
	return l.events
}

func (l *realtimeLink) SendAudio(audio []byte) error {
	return l.current().AppendAudio(audio)
}

func (l *realtimeLink) Commit() error {
	return l.current().CommitInput()
}

func (l *realtimeLink) ClearInput() error {
	return l.current().ClearInput()
}

func (l *realtimeLink) FunctionResult(callID, output string) error {
	return l.current().AddFunctionCallOutput(callID, output)
}

func (l *realtimeLink) Cancel() error {
	return l.current().CancelResponse()
}

func (l *realtimeLink) Respond(instructions string) error {
	var opts *realtime.ResponseCreateOptions
	if instructions != "" {
		opts = &realtime.ResponseCreateOptions{Instructions: instructions}
	}
	return l.current().CreateResponse(opts)
}

func (l *realtimeLink) Truncate(itemID string, audioEndMs int) error {
	return l.current().TruncateItem(itemID, 0, audioEndMs)
}

func (l *realtimeLink) Close(ctx context.Context) error {
	select {
	case <-l.closeCh:
		return nil
	default:
		close(l.closeCh)
	}
	return l.current().CloseGraceful(ctx)
}
