package resampler

import (
	"bytes"
	"io"
	"testing"

	"github.com/hikevindiaz/voicebridge/pkg/audio/pcm"
)

func TestPassthrough(t *testing.T) {
	in := make([]byte, 3200)
	for i := range in {
		in[i] = byte(i)
	}

	r, err := New(bytes.NewReader(in), pcm.L16Mono24K, pcm.L16Mono24K)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Error("passthrough altered data")
	}
}

func TestDownsampleLength(t *testing.T) {
	// 1 second of 24kHz mono should come out near 1 second of 8kHz mono.
	in := make([]byte, 24000*2)
	r, err := New(bytes.NewReader(in), pcm.L16Mono24K, pcm.L16Mono8K)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	want := 8000 * 2
	got := len(out)
	// Engine latency may shave a few ms off the tail.
	if got < want*9/10 || got > want*11/10 {
		t.Errorf("output length = %d bytes; want about %d", got, want)
	}
	if got%2 != 0 {
		t.Errorf("output length %d is not sample aligned", got)
	}
}

func TestReadShortBuffer(t *testing.T) {
	r, err := New(bytes.NewReader(make([]byte, 64)), pcm.L16Mono16K, pcm.L16Mono8K)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	if _, err := r.Read(make([]byte, 1)); err != io.ErrShortBuffer {
		t.Errorf("Read with 1-byte buffer: err = %v; want io.ErrShortBuffer", err)
	}
}

func TestCloseWithError(t *testing.T) {
	r, err := New(bytes.NewReader(make([]byte, 64)), pcm.L16Mono16K, pcm.L16Mono8K)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	wantErr := io.ErrUnexpectedEOF
	if err := r.CloseWithError(wantErr); err != nil {
		t.Fatalf("CloseWithError: %v", err)
	}
	if _, err := r.Read(make([]byte, 32)); err != wantErr {
		t.Errorf("Read after close: err = %v; want %v", err, wantErr)
	}
}
