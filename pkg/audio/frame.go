package audio

import (
	"fmt"
	"time"
)

// Encoding identifies the wire encoding of a frame's payload.
type Encoding int

const (
	// ULaw8K is G.711 μ-law, 8kHz, mono, one byte per sample.
	ULaw8K Encoding = iota
	// PCM16x24K is 16-bit signed little-endian linear PCM, 24kHz, mono.
	PCM16x24K
)

// String returns the MIME-style name of the encoding.
func (e Encoding) String() string {
	switch e {
	case ULaw8K:
		return "ulaw-8k"
	case PCM16x24K:
		return "pcm16-24k"
	}
	return fmt.Sprintf("encoding(%d)", int(e))
}

// SampleRate returns the sample rate in Hz.
func (e Encoding) SampleRate() int {
	switch e {
	case ULaw8K:
		return 8000
	case PCM16x24K:
		return 24000
	}
	panic("audio: invalid encoding")
}

// BytesPerSample returns the payload bytes per audio sample.
func (e Encoding) BytesPerSample() int {
	switch e {
	case ULaw8K:
		return 1
	case PCM16x24K:
		return 2
	}
	panic("audio: invalid encoding")
}

// Frame is an immutable slice of audio payload. Sequence numbers are
// monotonic per direction per session; conversion preserves them.
type Frame struct {
	Encoding Encoding
	Payload  []byte
	Seq      uint64
	Time     time.Time
}

// NewFrame creates a frame stamped with the current time.
func NewFrame(enc Encoding, payload []byte, seq uint64) Frame {
	return Frame{Encoding: enc, Payload: payload, Seq: seq, Time: time.Now()}
}

// Duration returns the play time of the frame's payload.
func (f Frame) Duration() time.Duration {
	samples := len(f.Payload) / f.Encoding.BytesPerSample()
	return time.Duration(samples) * time.Second / time.Duration(f.Encoding.SampleRate())
}
