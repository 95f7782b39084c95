package pcm

import (
	"testing"
	"time"
)

func TestFormatMath(t *testing.T) {
	tests := []struct {
		format    Format
		rate      int
		bytesRate int
	}{
		{L16Mono8K, 8000, 16000},
		{L16Mono16K, 16000, 32000},
		{L16Mono24K, 24000, 48000},
	}

	for _, tc := range tests {
		if got := tc.format.SampleRate(); got != tc.rate {
			t.Errorf("%v: SampleRate() = %d; want %d", tc.format, got, tc.rate)
		}
		if got := tc.format.BytesRate(); got != tc.bytesRate {
			t.Errorf("%v: BytesRate() = %d; want %d", tc.format, got, tc.bytesRate)
		}
	}
}

func TestDurationRoundtrip(t *testing.T) {
	for _, f := range []Format{L16Mono8K, L16Mono16K, L16Mono24K} {
		for _, d := range []time.Duration{20 * time.Millisecond, time.Second, 90 * time.Second} {
			b := f.BytesInDuration(d)
			if got := f.Duration(b); got != d {
				t.Errorf("%v: Duration(BytesInDuration(%v)) = %v", f, d, got)
			}
		}
	}
}

func TestSilence(t *testing.T) {
	b := L16Mono8K.Silence(100 * time.Millisecond)
	if len(b) != 1600 {
		t.Errorf("Silence(100ms) len = %d; want 1600", len(b))
	}
	for i, v := range b {
		if v != 0 {
			t.Fatalf("Silence byte %d = %d; want 0", i, v)
		}
	}
}
