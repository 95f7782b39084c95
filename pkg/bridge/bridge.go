package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hikevindiaz/voicebridge/pkg/audio"
	"github.com/hikevindiaz/voicebridge/pkg/elevenlabs"
	"github.com/hikevindiaz/voicebridge/pkg/mediastream"
	"github.com/hikevindiaz/voicebridge/pkg/realtime"
)

// BridgeConfig wires a Bridge's collaborators.
type BridgeConfig struct {
	// Server accepts telephony media streams. Required.
	Server *mediastream.Server

	// Resolver looks up per-call configuration. Required.
	Resolver ConfigResolver

	// Model dials realtime sessions. Required.
	Model *realtime.Client

	// TTS synthesizes fallback speech. Optional; without it text-only
	// turns and spoken apologies are skipped.
	TTS *elevenlabs.Client

	// DefaultVoiceID is used when a call's config omits a voice, and for
	// the apology played when config resolution itself fails.
	DefaultVoiceID string

	// ModelOutput selects the audio encoding requested from the model.
	// The zero value, ULaw8K, needs no transcoding; PCM16x24K routes
	// every delta through the codec.
	ModelOutput audio.Encoding

	// Emitter receives transcript turns. Defaults to an in-memory one.
	Emitter TranscriptEmitter

	// Notifier is told about call lifecycle. Defaults to a no-op.
	Notifier UsageNotifier

	// Tools executes model function calls. Optional; without it function
	// calls are logged and dropped.
	Tools ToolHandler

	Logger *slog.Logger
}

// Bridge accepts telephony streams and runs one Session per call.
type Bridge struct {
	server      *mediastream.Server
	resolver    ConfigResolver
	model       *realtime.Client
	tts         *elevenlabs.Client
	voice       string
	modelOutput audio.Encoding
	emitter     TranscriptEmitter
	notifier    UsageNotifier
	tools       ToolHandler
	registry    *Registry
	logger      *slog.Logger

	wg sync.WaitGroup
}

// NewBridge creates a Bridge.
func NewBridge(cfg BridgeConfig) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	emitter := cfg.Emitter
	if emitter == nil {
		emitter = NewMemoryEmitter()
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Bridge{
		server:      cfg.Server,
		resolver:    cfg.Resolver,
		model:       cfg.Model,
		tts:         cfg.TTS,
		voice:       cfg.DefaultVoiceID,
		modelOutput: cfg.ModelOutput,
		emitter:     emitter,
		notifier:    notifier,
		tools:       cfg.Tools,
		registry:    NewRegistry(),
		logger:      logger,
	}
}

// Registry exposes the live session registry for the admin surface.
func (b *Bridge) Registry() *Registry { return b.registry }

// Run accepts calls until ctx is cancelled or the server closes, then
// waits for in-flight calls to finish.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		conn, err := b.server.Accept(ctx)
		if err != nil {
			b.wg.Wait()
			if errors.Is(err, context.Canceled) || errors.Is(err, mediastream.ErrServerClosed) {
				return nil
			}
			return err
		}
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.handleCall(ctx, conn)
		}()
	}
}

// Shutdown hangs up every live call and waits for them to drain.
func (b *Bridge) Shutdown(ctx context.Context) error {
	b.server.Close()
	if err := b.registry.TerminateAll(ctx); err != nil {
		return err
	}
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bridge) handleCall(ctx context.Context, conn *mediastream.Conn) {
	callID := conn.CallSID()
	logger := b.logger.With("call", callID)

	resolveCtx, cancel := context.WithTimeout(ctx, DefaultResolveTimeout)
	cfg, err := b.resolver.Resolve(resolveCtx, callID)
	cancel()
	if err != nil {
		logger.Error("call config resolution failed", "error", err)
		b.apologizeAndClose(conn, DefaultHangUpMessage, b.voice)
		return
	}

	voice := cfg.VoiceID
	if voice == "" {
		voice = b.voice
	}

	link, err := DialModel(ctx, b.model, cfg.ModelName, b.modelSession(cfg), logger)
	if err != nil {
		logger.Error("model dial failed", "error", err)
		b.apologizeAndClose(conn, cfg.HangUpMessage, voice)
		return
	}

	var speaker *Synthesizer
	if b.tts != nil {
		speaker = NewSpeaker(b.tts, voice, WithSpeakerLogger(logger))
	}

	session := NewSession(SessionParams{
		Conn:       conn,
		Link:       link,
		Config:     *cfg,
		Speaker:    speaker,
		Emitter:    b.emitter,
		Notifier:   b.notifier,
		Tools:      b.tools,
		Logger:     logger,
		ModelAudio: b.modelOutput,
	})
	if err := b.registry.Register(session); err != nil {
		logger.Error("session rejected", "error", err)
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		link.Close(closeCtx)
		cancel()
		conn.Close()
		return
	}
	defer b.registry.Unregister(session)

	if err := session.Run(ctx); err != nil {
		logger.Warn("session ended with error", "error", err)
	}
}

// modelSession builds the session.update payload for one call. Caller
// audio goes up as μ-law so the inbound hot path never transcodes; the
// model's VAD does the endpointing.
func (b *Bridge) modelSession(cfg *SessionConfig) *realtime.SessionConfig {
	outFormat := realtime.AudioFormatG711ULaw
	if b.modelOutput == audio.PCM16x24K {
		outFormat = realtime.AudioFormatPCM16
	}
	return &realtime.SessionConfig{
		Modalities:        []string{realtime.ModalityText, realtime.ModalityAudio},
		Instructions:      cfg.Prompt,
		Voice:             cfg.VoiceID,
		InputAudioFormat:  realtime.AudioFormatG711ULaw,
		OutputAudioFormat: outFormat,
		InputAudioTranscription: &realtime.TranscriptionConfig{
			Model: "whisper-1",
		},
		TurnDetection: &realtime.TurnDetection{
			Type:              realtime.VADServerVAD,
			SilenceDurationMs: cfg.EndpointingMs,
		},
	}
}

// apologizeAndClose plays the fallback apology on a call that never got a
// working session, then hangs up.
func (b *Bridge) apologizeAndClose(conn *mediastream.Conn, message, voice string) {
	if b.tts != nil && voice != "" {
		speaker := NewSpeaker(b.tts, voice, WithSpeakerLogger(b.logger))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := speaker.Speak(ctx, conn, message, ""); err != nil {
			b.logger.Warn("apology playback failed", "call", conn.CallSID(), "error", err)
		}
		cancel()
	}
	conn.Close()
}
