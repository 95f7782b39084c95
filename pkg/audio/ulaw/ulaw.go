// Package ulaw implements G.711 μ-law compression and the deterministic
// rate conversion between the 8kHz telephony leg and the 24kHz model leg.
//
// All functions are pure: no state, no I/O, and identical input always
// produces identical output. Rate conversion uses integer linear
// interpolation, so round trips are lossy but byte-for-byte reproducible.
package ulaw

const (
	ulawBias = 0x84
	ulawClip = 32635
)

// decodeTable maps each μ-law byte to its 16-bit linear sample.
var decodeTable [256]int16

func init() {
	for i := 0; i < 256; i++ {
		u := ^byte(i)
		sign := u & 0x80
		exponent := (u >> 4) & 0x07
		mantissa := u & 0x0F
		sample := (int32(mantissa)<<3 + ulawBias) << exponent
		sample -= ulawBias
		if sign != 0 {
			sample = -sample
		}
		decodeTable[i] = int16(sample)
	}
}

// DecodeSample expands one μ-law byte to a linear 16-bit sample.
func DecodeSample(b byte) int16 {
	return decodeTable[b]
}

// EncodeSample compresses one linear 16-bit sample to a μ-law byte.
func EncodeSample(s int16) byte {
	sample := int32(s)
	sign := byte(0)
	if sample < 0 {
		sample = -sample
		sign = 0x80
	}
	if sample > ulawClip {
		sample = ulawClip
	}
	sample += ulawBias

	exponent := byte(7)
	for mask := int32(0x4000); mask != 0 && sample&mask == 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte(sample>>(exponent+3)) & 0x0F
	return ^(sign | exponent<<4 | mantissa)
}

// Decode expands μ-law bytes to little-endian 16-bit PCM at the same rate.
func Decode(in []byte) []byte {
	out := make([]byte, len(in)*2)
	for i, b := range in {
		s := decodeTable[b]
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// Encode compresses little-endian 16-bit PCM to μ-law bytes at the same rate.
// The input length must be even; odd trailing bytes are the caller's bug and
// are truncated.
func Encode(pcm []byte) []byte {
	n := len(pcm) / 2
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = EncodeSample(s)
	}
	return out
}

// Upsample3x converts 8kHz little-endian PCM16 to 24kHz by linear
// interpolation. Each input sample yields three output samples; the last
// input sample is held for its interpolation partner.
func Upsample3x(pcm []byte) []byte {
	n := len(pcm) / 2
	out := make([]byte, n*3*2)
	for i := 0; i < n; i++ {
		s0 := int32(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
		s1 := s0
		if i+1 < n {
			s1 = int32(int16(pcm[(i+1)*2]) | int16(pcm[(i+1)*2+1])<<8)
		}
		d := s1 - s0
		for k := 0; k < 3; k++ {
			v := int16(s0 + d*int32(k)/3)
			j := (i*3 + k) * 2
			out[j] = byte(v)
			out[j+1] = byte(v >> 8)
		}
	}
	return out
}

// Downsample3x converts 24kHz little-endian PCM16 to 8kHz by taking every
// third sample. Trailing samples that do not fill a group are dropped.
func Downsample3x(pcm []byte) []byte {
	n := len(pcm) / 2 / 3
	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		j := i * 3 * 2
		out[i*2] = pcm[j]
		out[i*2+1] = pcm[j+1]
	}
	return out
}
