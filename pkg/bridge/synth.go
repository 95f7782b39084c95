package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hikevindiaz/voicebridge/pkg/audio/pcm"
	"github.com/hikevindiaz/voicebridge/pkg/audio/resampler"
	"github.com/hikevindiaz/voicebridge/pkg/audio/ulaw"
	"github.com/hikevindiaz/voicebridge/pkg/elevenlabs"
)

// Frame pacing for synthesized playback. 20ms of 8kHz μ-law is 160 bytes.
const (
	synthFrameDuration = 20 * time.Millisecond
	synthFrameBytes    = 160
)

// Synthesizer plays synthesized speech to the caller. It covers the turns the
// model answers in text only, plus presence prompts and spoken apologies.
type Synthesizer struct {
	tts    *elevenlabs.Client
	voice  string
	format string
	logger *slog.Logger
}

// SpeakerOption configures a Synthesizer.
type SpeakerOption func(*Synthesizer)

// WithSynthFormat selects the synthesis output format. μ-law 8k streams
// straight to the wire; PCM formats go through the resampler first.
func WithSynthFormat(format string) SpeakerOption {
	return func(s *Synthesizer) { s.format = format }
}

// WithSpeakerLogger sets the logger.
func WithSpeakerLogger(l *slog.Logger) SpeakerOption {
	return func(s *Synthesizer) { s.logger = l }
}

// NewSpeaker creates a Synthesizer bound to one voice.
func NewSpeaker(tts *elevenlabs.Client, voiceID string, opts ...SpeakerOption) *Synthesizer {
	s := &Synthesizer{
		tts:    tts,
		voice:  voiceID,
		format: elevenlabs.FormatULaw8K,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Speak synthesizes text and streams it to the caller as paced 20ms
// frames, then queues a playback mark named markName. It blocks until all
// frames are queued or ctx is cancelled; cancellation stops mid-utterance
// without clearing what is already queued, the caller decides whether to
// also flush playback.
func (s *Synthesizer) Speak(ctx context.Context, conn TelephonyConn, text, markName string) error {
	if text == "" {
		return nil
	}

	body, err := s.tts.Synthesize(ctx, &elevenlabs.SynthesizeRequest{
		Text:         text,
		VoiceID:      s.voice,
		OutputFormat: s.format,
	})
	if err != nil {
		return fmt.Errorf("bridge: synthesize: %w", err)
	}
	defer body.Close()

	stream, err := s.wireStream(body)
	if err != nil {
		return err
	}
	defer stream.Close()

	ticker := time.NewTicker(synthFrameDuration)
	defer ticker.Stop()

	buf := make([]byte, synthFrameBytes)
	for {
		n, err := io.ReadFull(stream, buf)
		if n > 0 {
			frame := buf[:n]
			if n < synthFrameBytes {
				// Pad the tail frame with μ-law silence.
				frame = append(frame, ulawSilence(synthFrameBytes-n)...)
			}
			if err := conn.SendMedia(frame); err != nil {
				return err
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return fmt.Errorf("bridge: read synthesis: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	if markName != "" {
		return conn.SendMark(markName)
	}
	return nil
}

// wireStream converts the synthesis output to 8kHz μ-law. A μ-law source
// passes through; PCM sources are resampled to 8k and encoded.
func (s *Synthesizer) wireStream(body io.Reader) (io.ReadCloser, error) {
	switch s.format {
	case elevenlabs.FormatULaw8K:
		return io.NopCloser(body), nil
	case elevenlabs.FormatPCM16x16K, elevenlabs.FormatPCM16x24K:
		srcFmt := pcm.L16Mono16K
		if s.format == elevenlabs.FormatPCM16x24K {
			srcFmt = pcm.L16Mono24K
		}
		rs, err := resampler.New(body, srcFmt, pcm.L16Mono8K)
		if err != nil {
			return nil, err
		}
		return &ulawEncoder{src: rs}, nil
	default:
		return nil, fmt.Errorf("bridge: unsupported synthesis format %q", s.format)
	}
}

// ulawEncoder reads 8kHz 16-bit PCM from src and yields μ-law bytes.
type ulawEncoder struct {
	src resampler.Resampler
	rem []byte
}

func (e *ulawEncoder) Read(p []byte) (int, error) {
	if len(e.rem) == 0 {
		buf := make([]byte, len(p)*2)
		n, err := e.src.Read(buf)
		if n > 0 {
			e.rem = ulaw.Encode(buf[:n&^1])
		}
		if err != nil && len(e.rem) == 0 {
			return 0, err
		}
	}
	n := copy(p, e.rem)
	e.rem = e.rem[n:]
	return n, nil
}

func (e *ulawEncoder) Close() error {
	return e.src.Close()
}

// ulawSilence returns n bytes of μ-law silence (0xFF encodes zero).
func ulawSilence(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = 0xFF
	}
	return out
}
