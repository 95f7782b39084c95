package mediastream

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hikevindiaz/voicebridge/pkg/audio"
)

// ErrConnClosed is returned by send operations on a closed connection.
var ErrConnClosed = errors.New("mediastream: connection closed")

const (
	defaultFrameQueue  = 256 // inbound frames (~5s of 20ms audio)
	defaultOutboxQueue = 512 // outbound messages awaiting the socket
	writeTimeout       = 10 * time.Second
)

// ConnStats are the per-connection counters surfaced in session snapshots.
type ConnStats struct {
	FramesIn      uint64 `json:"framesIn"`
	FramesOut     uint64 `json:"framesOut"`
	DroppedIn     uint64 `json:"droppedIn"`
	DroppedOut    uint64 `json:"droppedOut"`
	OutOfOrder    uint64 `json:"outOfOrder"`
	UnknownEvents uint64 `json:"unknownEvents"`
}

// Conn is one call's media stream. The read loop demultiplexes inbound
// envelopes into an audio frame queue and a control event queue; a write
// loop serializes outbound messages so senders never touch the socket.
type Conn struct {
	ws  *websocket.Conn
	log *slog.Logger

	streamSID string
	callSID   string
	params    map[string]string

	frames chan audio.Frame
	events chan InboundEvent
	outbox *ring[OutboundMessage]

	closeCh   chan struct{}
	closeOnce sync.Once
	doneCh    chan struct{}

	mu      sync.Mutex
	err     error
	lastSeq uint64

	framesIn      atomic.Uint64
	framesOut     atomic.Uint64
	droppedIn     atomic.Uint64
	outOfOrder    atomic.Uint64
	unknownEvents atomic.Uint64
}

func newConn(ws *websocket.Conn, start *StartEvent, log *slog.Logger) *Conn {
	if log == nil {
		log = slog.Default()
	}
	c := &Conn{
		ws:        ws,
		log:       log,
		streamSID: start.StreamSID,
		callSID:   start.CallSID,
		params:    start.CustomParams,
		frames:    make(chan audio.Frame, defaultFrameQueue),
		events:    make(chan InboundEvent, 16),
		outbox:    newRing[OutboundMessage](defaultOutboxQueue),
		closeCh:   make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	go c.readLoop()
	go c.writeLoop()
	return c
}

// CallSID returns the provider-assigned call identifier.
func (c *Conn) CallSID() string { return c.callSID }

// StreamSID returns the provider-assigned stream identifier.
func (c *Conn) StreamSID() string { return c.streamSID }

// CustomParams returns the custom parameters from the start event.
func (c *Conn) CustomParams() map[string]string { return c.params }

// Frames returns the inbound audio frame queue. The channel is closed when
// the connection ends.
func (c *Conn) Frames() <-chan audio.Frame { return c.frames }

// Events returns inbound control events (stop, mark echoes).
func (c *Conn) Events() <-chan InboundEvent { return c.events }

// Done is closed when the connection has fully shut down.
func (c *Conn) Done() <-chan struct{} { return c.doneCh }

// Err returns the error that ended the connection, if any.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Stats returns a snapshot of the connection counters.
func (c *Conn) Stats() ConnStats {
	return ConnStats{
		FramesIn:      c.framesIn.Load(),
		FramesOut:     c.framesOut.Load(),
		DroppedIn:     c.droppedIn.Load(),
		DroppedOut:    c.outbox.Dropped(),
		OutOfOrder:    c.outOfOrder.Load(),
		UnknownEvents: c.unknownEvents.Load(),
	}
}

// SendMedia queues one μ-law frame for the provider.
func (c *Conn) SendMedia(payload []byte) error {
	select {
	case <-c.closeCh:
		return ErrConnClosed
	default:
	}
	c.outbox.Push(&MediaMessage{StreamSID: c.streamSID, Payload: payload})
	c.framesOut.Add(1)
	return nil
}

// SendMark queues a playback mark. The provider echoes it back once all
// audio queued before the mark has been played.
func (c *Conn) SendMark(name string) error {
	select {
	case <-c.closeCh:
		return ErrConnClosed
	default:
	}
	c.outbox.Push(&MarkMessage{StreamSID: c.streamSID, Name: name})
	return nil
}

// ClearPlayback discards all unflushed outbound audio and tells the provider
// to drop its own buffer. It returns the number of local messages discarded.
func (c *Conn) ClearPlayback() int {
	n := c.outbox.Clear()
	c.outbox.Push(&ClearMessage{StreamSID: c.streamSID})
	return n
}

// Close shuts the connection down. Safe to call multiple times.
func (c *Conn) Close() error {
	c.closeWithError(nil)
	return nil
}

func (c *Conn) closeWithError(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.closeCh)
		c.outbox.Close()
		c.ws.Close()
	})
}

func (c *Conn) readLoop() {
	defer func() {
		close(c.frames)
		close(c.doneCh)
	}()

	for {
		select {
		case <-c.closeCh:
			return
		default:
		}

		_, message, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.closeCh:
			default:
				c.closeWithError(fmt.Errorf("mediastream: read: %w", err))
			}
			return
		}

		ev, err := ParseInbound(message)
		if err != nil {
			var unknown *UnknownEventError
			if errors.As(err, &unknown) {
				c.unknownEvents.Add(1)
				c.log.Debug("mediastream: skipping unknown event", "event", unknown.Event, "call", c.callSID)
				continue
			}
			c.log.Warn("mediastream: dropping malformed message", "call", c.callSID, "err", err)
			continue
		}

		switch ev := ev.(type) {
		case *MediaEvent:
			c.handleMedia(ev)

		case *StopEvent:
			c.deliverEvent(ev)
			c.closeWithError(nil)
			return

		case *MarkEvent:
			c.deliverEvent(ev)

		case *StartEvent:
			// Duplicate start on a live stream; ignore.
			c.log.Debug("mediastream: duplicate start event", "call", c.callSID)
		}
	}
}

func (c *Conn) handleMedia(ev *MediaEvent) {
	c.mu.Lock()
	seq := ev.Seq
	if seq == 0 {
		seq = c.lastSeq + 1
	} else if seq <= c.lastSeq {
		c.mu.Unlock()
		c.outOfOrder.Add(1)
		return
	}
	c.lastSeq = seq
	c.mu.Unlock()

	c.framesIn.Add(1)
	frame := audio.NewFrame(audio.ULaw8K, ev.Payload, seq)

	// Bounded queue: when the session cannot keep up, evict the oldest
	// frame instead of blocking the read loop.
	select {
	case c.frames <- frame:
	default:
		select {
		case <-c.frames:
			c.droppedIn.Add(1)
		default:
		}
		select {
		case c.frames <- frame:
		default:
			c.droppedIn.Add(1)
		}
	}
}

func (c *Conn) deliverEvent(ev InboundEvent) {
	select {
	case c.events <- ev:
	case <-c.closeCh:
	}
}

func (c *Conn) writeLoop() {
	for {
		msg, err := c.outbox.Next(c.closeCh)
		if err != nil {
			return
		}
		data, err := msg.marshal()
		if err != nil {
			c.log.Warn("mediastream: marshal outbound message", "call", c.callSID, "err", err)
			continue
		}
		c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
			c.closeWithError(fmt.Errorf("mediastream: write: %w", err))
			return
		}
	}
}
