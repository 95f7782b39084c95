// Package audio provides the audio frame model and codec for the voice bridge.
//
// A call carries two audio encodings: the telephony leg speaks G.711 μ-law at
// 8kHz, the realtime model leg speaks 16-bit linear PCM at 24kHz. Frames are
// immutable; codec conversion always produces a new frame.
//
// Sub-packages:
//
//   - pcm: linear PCM format descriptors and duration math
//   - ulaw: G.711 μ-law compression and deterministic rate conversion
//   - resampler: streaming sample-rate conversion for synthesized audio
//
// Example usage:
//
//	in := audio.NewFrame(audio.ULaw8K, payload, seq)
//	out, err := audio.Decode(in)
//	if err != nil {
//	    // malformed frame, drop it
//	}
//	// out.Encoding == audio.PCM16x24K
package audio
