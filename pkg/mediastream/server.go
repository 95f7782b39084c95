package mediastream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrServerClosed is returned by Accept after the server is closed.
var ErrServerClosed = errors.New("mediastream: server closed")

// ServerConfig configures a media stream server.
type ServerConfig struct {
	// HandshakeTimeout bounds the wait for the provider's start event after
	// the WebSocket upgrade. Default is 10 seconds.
	HandshakeTimeout time.Duration

	// Logger is used for logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Server accepts one media stream connection per call. It implements
// http.Handler for the provider's WebSocket endpoint and hands fully
// started connections to Accept.
type Server struct {
	upgrader websocket.Upgrader
	acceptCh chan *Conn
	log      *slog.Logger
	timeout  time.Duration

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// NewServer creates a Server.
func NewServer(cfg ServerConfig) *Server {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.HandshakeTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The provider dials from its own infrastructure; auth happens
			// at the HTTP layer in front of this handler.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		acceptCh: make(chan *Conn),
		log:      log,
		timeout:  timeout,
		done:     make(chan struct{}),
	}
}

// ServeHTTP upgrades the request and waits for the stream's start event.
// Connections that never send start are dropped.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("mediastream: upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	start, err := s.awaitStart(ws)
	if err != nil {
		s.log.Warn("mediastream: no start event", "remote", r.RemoteAddr, "err", err)
		ws.Close()
		return
	}

	conn := newConn(ws, start, s.log)
	s.log.Info("mediastream: stream started", "call", start.CallSID, "stream", start.StreamSID)

	select {
	case s.acceptCh <- conn:
	case <-s.done:
		conn.Close()
	case <-r.Context().Done():
		conn.Close()
	}
}

// awaitStart reads envelopes until the start event arrives. Some providers
// send a preamble event before start; unknown kinds are skipped.
func (s *Server) awaitStart(ws *websocket.Conn) (*StartEvent, error) {
	deadline := time.Now().Add(s.timeout)
	ws.SetReadDeadline(deadline)
	defer ws.SetReadDeadline(time.Time{})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		ev, err := ParseInbound(message)
		if err != nil {
			var unknown *UnknownEventError
			if errors.As(err, &unknown) {
				continue
			}
			return nil, err
		}
		if start, ok := ev.(*StartEvent); ok {
			return start, nil
		}
	}
}

// Accept blocks until a new call's stream has started.
func (s *Server) Accept(ctx context.Context) (*Conn, error) {
	select {
	case conn := <-s.acceptCh:
		return conn, nil
	case <-s.done:
		return nil, ErrServerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting new connections. Live connections are unaffected.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return nil
}
