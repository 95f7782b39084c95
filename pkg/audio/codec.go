package audio

import (
	"fmt"

	"github.com/hikevindiaz/voicebridge/pkg/audio/ulaw"
)

// CodecError reports a malformed frame. Codec errors are per-frame and never
// fatal to a session; callers drop the frame and count the error.
type CodecError struct {
	Encoding Encoding
	Reason   string
}

// Error implements the error interface.
func (e *CodecError) Error() string {
	return fmt.Sprintf("audio: bad %s frame: %s", e.Encoding, e.Reason)
}

// Decode converts a telephony μ-law frame to model-rate linear PCM.
// It is pure: the input frame is never mutated and identical input bytes
// always yield identical output bytes.
func Decode(f Frame) (Frame, error) {
	if f.Encoding != ULaw8K {
		return Frame{}, &CodecError{Encoding: f.Encoding, Reason: "decode source must be ulaw-8k"}
	}
	if len(f.Payload) == 0 {
		return Frame{}, &CodecError{Encoding: f.Encoding, Reason: "empty payload"}
	}
	pcm8k := ulaw.Decode(f.Payload)
	pcm24k := ulaw.Upsample3x(pcm8k)
	return Frame{Encoding: PCM16x24K, Payload: pcm24k, Seq: f.Seq, Time: f.Time}, nil
}

// Encode converts a model-rate linear PCM frame to the target encoding.
// Like Decode it is pure and deterministic.
func Encode(f Frame, target Encoding) (Frame, error) {
	if f.Encoding != PCM16x24K {
		return Frame{}, &CodecError{Encoding: f.Encoding, Reason: "encode source must be pcm16-24k"}
	}
	if len(f.Payload) == 0 {
		return Frame{}, &CodecError{Encoding: f.Encoding, Reason: "empty payload"}
	}
	if len(f.Payload)%2 != 0 {
		return Frame{}, &CodecError{Encoding: f.Encoding, Reason: "odd byte count for 16-bit samples"}
	}
	switch target {
	case ULaw8K:
		pcm8k := ulaw.Downsample3x(f.Payload)
		out := ulaw.Encode(pcm8k)
		return Frame{Encoding: ULaw8K, Payload: out, Seq: f.Seq, Time: f.Time}, nil
	case PCM16x24K:
		out := make([]byte, len(f.Payload))
		copy(out, f.Payload)
		return Frame{Encoding: PCM16x24K, Payload: out, Seq: f.Seq, Time: f.Time}, nil
	}
	return Frame{}, &CodecError{Encoding: target, Reason: "unsupported target encoding"}
}
