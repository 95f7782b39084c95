package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hikevindiaz/voicebridge/pkg/audio"
	"github.com/hikevindiaz/voicebridge/pkg/audio/ulaw"
	"github.com/hikevindiaz/voicebridge/pkg/jsontime"
	"github.com/hikevindiaz/voicebridge/pkg/mediastream"
	"github.com/hikevindiaz/voicebridge/pkg/realtime"
)

// TelephonyConn is the session's view of the caller's media stream.
// *mediastream.Conn is the production implementation.
type TelephonyConn interface {
	CallSID() string
	StreamSID() string
	CustomParams() map[string]string
	Frames() <-chan audio.Frame
	Events() <-chan mediastream.InboundEvent
	SendMedia(payload []byte) error
	SendMark(name string) error
	ClearPlayback() int
	Stats() mediastream.ConnStats
	Close() error
	Done() <-chan struct{}
	Err() error
}

// End reasons reported in the EndReport.
const (
	ReasonCompleted   = "completed"
	ReasonSilence     = "silence_timeout"
	ReasonMaxDuration = "max_duration"
	ReasonModelError  = "model_error"
	ReasonMediaError  = "media_error"
	ReasonShutdown    = "shutdown"
	ReasonAdmin       = "admin_hangup"
)

// Caller audio buffered for replay after a model reconnect. 30s at 8kHz.
const maxPendingBytes = 8000 * 30

// Local endpointing amplitude gate, on decoded 16-bit samples. Used only
// until the model's own speech events take over.
const voiceGate = 1000

// SessionInfo is a point-in-time snapshot for the admin surface.
type SessionInfo struct {
	CallID    string                `json:"callId"`
	AgentID   string                `json:"agentId"`
	State     State                 `json:"state"`
	StartedAt jsontime.Milli        `json:"startedAt"`
	Turns     int                   `json:"turns"`
	Stats     mediastream.ConnStats `json:"stats"`
}

// SessionParams wires one call's collaborators together.
type SessionParams struct {
	Conn     TelephonyConn
	Link     ModelLink
	Config   SessionConfig
	Speaker  *Synthesizer
	Emitter  TranscriptEmitter
	Notifier UsageNotifier
	Tools    ToolHandler
	Logger   *slog.Logger

	// ModelAudio is the encoding of the model's audio deltas. The zero
	// value is ULaw8K, which passes straight to the wire; PCM16x24K is
	// transcoded per delta.
	ModelAudio audio.Encoding
}

// Session drives one call: it forwards caller audio upstream, plays model
// audio downstream, and owns every state transition in between. All
// mutation happens on the run loop goroutine; the exported accessors read
// snapshots under a mutex.
type Session struct {
	conn       TelephonyConn
	link       ModelLink
	cfg        SessionConfig
	speaker    *Synthesizer
	emitter    TranscriptEmitter
	notifier   UsageNotifier
	tools      ToolHandler
	logger     *slog.Logger
	modelAudio audio.Encoding

	mu        sync.Mutex
	state     State
	turns     int
	startedAt time.Time

	hangupCh   chan string
	hangupOnce sync.Once
	doneCh     chan struct{}

	// run-loop state, never touched off-loop.
	responseID     string             // in-flight response
	itemID         string             // assistant item being played
	cancelledID    string             // deltas from this response are dropped
	awaitMark      string             // mark that ends Speaking
	playedBytes    int                // audio sent for the current response
	pending        []byte             // caller audio since speech started
	buffering      bool               // pending is being collected
	presencePinged bool               // one prompt per silence window
	assistantText  string             // transcript of the current response
	turnStart      time.Time          // start of the current turn
	serverVAD      bool               // model speech events observed
	synthCancel    context.CancelFunc // stops in-flight fallback synthesis
}

// NewSession creates a session in the Connecting state. Run starts it.
func NewSession(p SessionParams) *Session {
	cfg := p.Config.withDefaults()
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	emitter := p.Emitter
	if emitter == nil {
		emitter = NewMemoryEmitter()
	}
	notifier := p.Notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Session{
		conn:       p.Conn,
		link:       p.Link,
		cfg:        cfg,
		speaker:    p.Speaker,
		emitter:    emitter,
		notifier:   notifier,
		tools:      p.Tools,
		logger:     logger.With("call", p.Conn.CallSID()),
		modelAudio: p.ModelAudio,
		state:      StateConnecting,
		startedAt:  time.Now(),
		hangupCh:   make(chan string, 1),
		doneCh:     make(chan struct{}),
	}
}

// CallID returns the telephony call identifier.
func (s *Session) CallID() string { return s.conn.CallSID() }

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed when the session has fully finished.
func (s *Session) Done() <-chan struct{} { return s.doneCh }

// Info returns an admin snapshot.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		CallID:    s.conn.CallSID(),
		AgentID:   s.cfg.AgentID,
		State:     s.state,
		StartedAt: jsontime.Milli(s.startedAt),
		Turns:     s.turns,
		Stats:     s.conn.Stats(),
	}
}

// Hangup asks the run loop to end the call gracefully. The first reason
// wins; later calls are no-ops.
func (s *Session) Hangup(reason string) {
	s.hangupOnce.Do(func() { s.hangupCh <- reason })
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()
	if prev != next {
		s.logger.Debug("state transition", "from", prev, "to", next)
	}
}

// Run drives the call to completion. It returns after the transcript is
// flushed and the end report is delivered; the error reflects the first
// fatal condition, nil for a normal hangup.
func (s *Session) Run(ctx context.Context) error {
	s.notifier.CallStarted(ctx, s.conn.CallSID(), s.cfg.AgentID)

	silence := time.NewTimer(s.cfg.SilenceTimeout())
	defer silence.Stop()
	maxDur := time.NewTimer(s.cfg.MaxDuration())
	defer maxDur.Stop()
	endpoint := time.NewTimer(time.Hour)
	endpoint.Stop()
	defer endpoint.Stop()

	var endReason string
	var endErr error
	sayGoodbye := false

loop:
	for {
		select {
		case <-ctx.Done():
			endReason = ReasonShutdown
			break loop

		case reason := <-s.hangupCh:
			endReason = reason
			sayGoodbye = true
			break loop

		case <-maxDur.C:
			endReason = ReasonMaxDuration
			sayGoodbye = true
			break loop

		case <-silence.C:
			if !s.presencePinged {
				s.presencePinged = true
				s.logger.Info("silence timeout, prompting caller")
				if err := s.link.Respond(DefaultPresencePrompt); err != nil {
					s.logger.Warn("presence prompt failed", "error", err)
				}
				silence.Reset(s.cfg.SilenceTimeout())
				continue
			}
			endReason = ReasonSilence
			sayGoodbye = true
			break loop

		case <-endpoint.C:
			// The model never signalled end of speech; close the turn
			// locally.
			if s.State() == StateUserSpeaking && !s.serverVAD {
				s.endUtteranceLocal()
			}

		case frame, ok := <-s.conn.Frames():
			if !ok {
				// The adapter closes the frame channel on a clean
				// provider stop as well as on a transport failure;
				// the connection error tells them apart. The stop
				// event may still be queued behind this case.
				if err := s.conn.Err(); err != nil {
					endReason = ReasonMediaError
					endErr = err
				} else {
					endReason = ReasonCompleted
				}
				break loop
			}
			s.handleCallerFrame(frame, silence, endpoint)

		case ev, ok := <-s.conn.Events():
			if !ok {
				continue
			}
			switch ev := ev.(type) {
			case *mediastream.StopEvent:
				endReason = ReasonCompleted
				break loop
			case *mediastream.MarkEvent:
				s.handleMark(ev.Name, silence)
			}

		case mev, ok := <-s.link.Events():
			if !ok {
				endReason = ReasonModelError
				break loop
			}
			if mev.Err != nil {
				s.logger.Error("model link failed", "error", mev.Err)
				endReason = ReasonModelError
				endErr = mev.Err
				sayGoodbye = true
				break loop
			}
			if mev.Reconnected {
				s.replayPending()
				continue
			}
			s.handleModelEvent(mev.Event, silence)
		}
	}

	return s.finish(endReason, endErr, sayGoodbye)
}

// handleCallerFrame forwards caller audio upstream and runs the local
// amplitude gate that stands in for VAD until the model's speech events
// arrive.
func (s *Session) handleCallerFrame(frame audio.Frame, silence, endpoint *time.Timer) {
	if s.State() == StateConnecting {
		// Audio before the model session is ready is buffered so the
		// first words are not lost.
		s.buffering = true
		s.appendPending(frame.Payload)
		return
	}

	if err := s.link.SendAudio(frame.Payload); err != nil {
		s.logger.Warn("forward caller audio", "error", err)
	}
	if s.buffering {
		s.appendPending(frame.Payload)
	}

	if s.serverVAD {
		return
	}

	// VAD fallback: a loud frame opens the utterance, then quiet for the
	// endpointing window closes it via the endpoint timer. Voice heard
	// while the assistant is talking is barge-in, handled inside
	// beginUtterance.
	if frameHasVoice(frame.Payload) {
		switch s.State() {
		case StateListening, StateSpeaking, StateThinking:
			s.beginUtterance(silence)
			endpoint.Reset(s.cfg.Endpointing())
		case StateUserSpeaking:
			endpoint.Reset(s.cfg.Endpointing())
		}
	}
}

// frameHasVoice reports whether a μ-law frame crosses the amplitude gate.
func frameHasVoice(payload []byte) bool {
	for _, b := range payload {
		sample := ulaw.DecodeSample(b)
		if sample < 0 {
			sample = -sample
		}
		if sample > voiceGate {
			return true
		}
	}
	return false
}

func (s *Session) appendPending(chunk []byte) {
	s.pending = append(s.pending, chunk...)
	if over := len(s.pending) - maxPendingBytes; over > 0 {
		s.pending = s.pending[over:]
	}
}

// beginUtterance records the caller starting to talk. Speech during
// Speaking is barge-in.
func (s *Session) beginUtterance(silence *time.Timer) {
	st := s.State()
	if st == StateSpeaking || st == StateThinking {
		s.bargeIn()
	}
	s.turnStart = time.Now()
	s.buffering = true
	s.pending = s.pending[:0]
	s.presencePinged = false
	silence.Reset(s.cfg.SilenceTimeout())
	s.setState(StateUserSpeaking)
}

// endUtteranceLocal closes the turn when only the local gate is
// available: commit the buffer and request a response explicitly.
func (s *Session) endUtteranceLocal() {
	s.buffering = false
	if err := s.link.Commit(); err != nil {
		s.logger.Warn("commit input", "error", err)
	}
	if err := s.link.Respond(""); err != nil {
		s.logger.Warn("request response", "error", err)
	}
	s.setState(StateThinking)
}

// bargeIn cuts the assistant off: local and provider playback buffers are
// flushed, the in-flight response is cancelled, and the conversation item
// is truncated to what the caller actually heard.
func (s *Session) bargeIn() {
	s.stopSynth()
	discarded := s.conn.ClearPlayback()
	if err := s.link.Cancel(); err != nil {
		s.logger.Warn("cancel response", "error", err)
	}
	if !s.serverVAD {
		// Without server VAD the input buffer holds audio captured
		// while the assistant was talking; drop it so the next commit
		// starts at the interruption.
		if err := s.link.ClearInput(); err != nil {
			s.logger.Warn("clear input buffer", "error", err)
		}
	}
	if s.itemID != "" {
		playedMs := s.playedBytes / 8 // μ-law 8kHz, 8 bytes per ms
		if err := s.link.Truncate(s.itemID, playedMs); err != nil {
			s.logger.Warn("truncate item", "error", err)
		}
	}
	s.logger.Info("barge-in", "discarded", discarded, "response", s.responseID)
	s.cancelledID = s.responseID
	s.responseID = ""
	s.itemID = ""
	s.awaitMark = ""
	s.assistantText = ""
	s.playedBytes = 0
}

// replayPending re-sends the buffered utterance after the model link was
// re-established, so the caller does not have to repeat themselves.
func (s *Session) replayPending() {
	if len(s.pending) == 0 {
		return
	}
	s.logger.Info("replaying buffered audio after reconnect", "bytes", len(s.pending))
	const chunk = 3200 // 400ms per append
	for off := 0; off < len(s.pending); off += chunk {
		end := off + chunk
		if end > len(s.pending) {
			end = len(s.pending)
		}
		if err := s.link.SendAudio(s.pending[off:end]); err != nil {
			s.logger.Warn("replay audio", "error", err)
			return
		}
	}
}

func (s *Session) handleMark(name string, silence *time.Timer) {
	if name != s.awaitMark || s.awaitMark == "" {
		return
	}
	// The provider has played everything up to the end of the response.
	s.stopSynth()
	s.awaitMark = ""
	s.itemID = ""
	s.playedBytes = 0
	if s.State() == StateSpeaking {
		s.setState(StateListening)
		silence.Reset(s.cfg.SilenceTimeout())
	}
}

// activate leaves Connecting on the first model event. The session
// configuration was sent during dial, so any server traffic means the
// model side is live; waiting for session.updated specifically would
// skip the greeting when the caller talks over the handshake.
func (s *Session) activate() {
	if s.State() != StateConnecting {
		return
	}
	s.setState(StateListening)
	s.buffering = false
	s.flushPreconnectAudio()
	if s.cfg.Greeting != "" {
		if err := s.link.Respond("Greet the caller by saying: " + s.cfg.Greeting); err != nil {
			s.logger.Warn("greeting", "error", err)
		}
	}
}

func (s *Session) handleModelEvent(ev *realtime.ServerEvent, silence *time.Timer) {
	if ev.Type != realtime.EventError {
		s.activate()
	}

	switch ev.Type {
	case realtime.EventSessionCreated, realtime.EventSessionUpdated:
		// Activation above covers these.

	case realtime.EventSpeechStarted:
		s.serverVAD = true
		s.beginUtterance(silence)

	case realtime.EventSpeechStopped:
		s.serverVAD = true
		if s.State() == StateUserSpeaking {
			s.buffering = false
			s.setState(StateThinking)
		}

	case realtime.EventInputAudioCommitted:
		s.pending = s.pending[:0]
		s.buffering = false

	case realtime.EventInputAudioTranscribed:
		if ev.Transcript != "" {
			s.emitTurn(SpeakerCaller, ev.Transcript, s.turnStart)
		}

	case realtime.EventResponseCreated:
		if ev.Response != nil {
			s.responseID = ev.Response.ID
		}

	case realtime.EventResponseAudioDelta:
		if ev.ResponseID != "" && ev.ResponseID == s.cancelledID {
			return
		}
		if st := s.State(); st == StateThinking || st == StateListening {
			s.setState(StateSpeaking)
		}
		if ev.ResponseID != "" {
			s.responseID = ev.ResponseID
		}
		if ev.ItemID != "" {
			s.itemID = ev.ItemID
		}
		s.playDelta(ev.Audio)

	case realtime.EventResponseTranscriptDelta, realtime.EventResponseTextDelta:
		if ev.ResponseID != "" && ev.ResponseID == s.cancelledID {
			return
		}
		s.assistantText += ev.Delta

	case realtime.EventResponseTextDone:
		if ev.ResponseID != "" && ev.ResponseID == s.cancelledID {
			return
		}
		if ev.Text != "" {
			s.assistantText = ev.Text
		}

	case realtime.EventResponseDone:
		if ev.Response != nil && ev.Response.ID == s.cancelledID {
			s.cancelledID = ""
			return
		}
		text := s.assistantText
		s.assistantText = ""
		if text != "" {
			s.emitTurn(SpeakerAssistant, text, s.turnStart)
		}
		switch {
		case s.State() == StateSpeaking && s.responseID != "":
			// Keep Speaking until the provider confirms playback via
			// the mark echo; the response being done only means it is
			// queued.
			s.awaitMark = "resp:" + s.responseID
			if err := s.conn.SendMark(s.awaitMark); err != nil {
				s.awaitMark = ""
				s.setState(StateListening)
			}
		case text != "" && s.playedBytes == 0 && s.speaker != nil:
			// The model answered in text with no audio; the fallback
			// synthesizer voices it.
			s.speakText(text)
		default:
			s.setState(StateListening)
			silence.Reset(s.cfg.SilenceTimeout())
		}
		s.responseID = ""

	case realtime.EventFunctionCallArgsDone:
		s.invokeTool(ev.CallID, ev.Name, ev.Arguments)

	case realtime.EventError:
		if ev.ErrorDetail != nil {
			s.logger.Warn("model error event",
				"code", ev.ErrorDetail.Code, "message", ev.ErrorDetail.Message)
		}

	default:
		s.logger.Debug("unhandled model event", "type", ev.Type)
	}
}

// speakText plays a text-only response through the fallback synthesizer.
// Playback runs off-loop so the session keeps handling events; barge-in
// and teardown cancel it.
func (s *Session) speakText(text string) {
	mark := "synth"
	if s.responseID != "" {
		mark = "synth:" + s.responseID
	}
	s.setState(StateSpeaking)
	s.awaitMark = mark
	s.stopSynth()
	ctx, cancel := context.WithCancel(context.Background())
	s.synthCancel = cancel
	go func() {
		if err := s.speaker.Speak(ctx, s.conn, text, mark); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("fallback synthesis", "error", err)
		}
	}()
}

// stopSynth cancels in-flight fallback playback. Run-loop only.
func (s *Session) stopSynth() {
	if s.synthCancel != nil {
		s.synthCancel()
		s.synthCancel = nil
	}
}

// invokeTool runs a model-requested function call off-loop, feeds the
// output back, and asks for a fresh response so the model can speak the
// result.
func (s *Session) invokeTool(callID, name, args string) {
	if s.tools == nil {
		s.logger.Warn("function call with no tool handler", "name", name)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		output, err := s.tools.Invoke(ctx, ToolCall{CallID: callID, Name: name, Arguments: args})
		if err != nil {
			s.logger.Warn("tool invocation failed", "name", name, "error", err)
			output = `{"error":"tool call failed"}`
		}
		if err := s.link.FunctionResult(callID, output); err != nil {
			s.logger.Warn("return tool output", "error", err)
			return
		}
		if err := s.link.Respond(""); err != nil {
			s.logger.Warn("request response after tool", "error", err)
		}
	}()
}

// flushPreconnectAudio forwards audio that arrived while the model
// session was still being configured.
func (s *Session) flushPreconnectAudio() {
	if len(s.pending) == 0 {
		return
	}
	s.replayPending()
	s.pending = s.pending[:0]
}

// playDelta transcodes model audio to the telephony encoding when needed
// and chunks it into wire-sized frames. A bad delta is dropped, never
// fatal.
func (s *Session) playDelta(payload []byte) {
	if len(payload) == 0 {
		return
	}
	if s.modelAudio != audio.ULaw8K {
		frame, err := audio.Encode(audio.NewFrame(s.modelAudio, payload, 0), audio.ULaw8K)
		if err != nil {
			s.logger.Warn("transcode model audio", "error", err)
			return
		}
		payload = frame.Payload
	}
	for off := 0; off < len(payload); off += synthFrameBytes {
		end := off + synthFrameBytes
		if end > len(payload) {
			end = len(payload)
		}
		if err := s.conn.SendMedia(payload[off:end]); err != nil {
			s.logger.Warn("send model audio", "error", err)
			return
		}
	}
	s.playedBytes += len(payload)
}

func (s *Session) emitTurn(sp Speaker, text string, started time.Time) {
	if started.IsZero() {
		started = time.Now()
	}
	turn := TranscriptTurn{
		CallID:    s.conn.CallSID(),
		Speaker:   sp,
		Text:      text,
		StartedAt: jsontime.Milli(started),
		EndedAt:   jsontime.Milli(time.Now()),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.emitter.Emit(ctx, turn); err != nil {
		s.logger.Warn("emit transcript turn", "speaker", sp, "error", err)
	}
	s.mu.Lock()
	s.turns++
	s.mu.Unlock()
}

// finish runs the teardown sequence exactly once: optional spoken
// goodbye, close both legs, report usage.
func (s *Session) finish(reason string, cause error, sayGoodbye bool) error {
	s.stopSynth()
	s.setState(StateEnding)
	s.logger.Info("session ending", "reason", reason, "error", cause)

	if sayGoodbye && s.speaker != nil {
		s.conn.ClearPlayback()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := s.speaker.Speak(ctx, s.conn, s.cfg.HangUpMessage, "bye"); err != nil {
			s.logger.Warn("goodbye playback failed", "error", err)
		} else {
			s.awaitMarkOrTimeout(ctx, "bye")
		}
		cancel()
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := s.link.Close(closeCtx); err != nil {
		s.logger.Debug("close model link", "error", err)
	}
	cancel()
	s.conn.Close()

	stats := s.conn.Stats()
	s.mu.Lock()
	turns := s.turns
	s.mu.Unlock()

	report := EndReport{
		CallID:     s.conn.CallSID(),
		AgentID:    s.cfg.AgentID,
		Reason:     reason,
		StartedAt:  jsontime.Milli(s.startedAt),
		EndedAt:    jsontime.Milli(time.Now()),
		Turns:      turns,
		FramesIn:   stats.FramesIn,
		FramesOut:  stats.FramesOut,
		DroppedIn:  stats.DroppedIn,
		DroppedOut: stats.DroppedOut,
	}
	reportCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	s.notifier.CallEnded(reportCtx, s.conn.CallSID(), report)
	cancel()

	s.setState(StateClosed)
	close(s.doneCh)
	return cause
}

// awaitMarkOrTimeout waits for the provider to confirm the goodbye was
// played, so Close does not cut it off.
func (s *Session) awaitMarkOrTimeout(ctx context.Context, name string) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.conn.Done():
			return
		case ev, ok := <-s.conn.Events():
			if !ok {
				return
			}
			if mark, isMark := ev.(*mediastream.MarkEvent); isMark && mark.Name == name {
				return
			}
		}
	}
}
