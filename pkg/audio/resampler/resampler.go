// Package resampler converts mono 16-bit PCM streams between sample rates.
//
// It wraps a pure Go resampling engine behind an io.ReadCloser so that
// synthesized audio (typically 16k or 24k PCM) can be pulled incrementally
// and converted to the telephony rate without buffering whole utterances.
package resampler

import (
	"fmt"
	"io"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/hikevindiaz/voicebridge/pkg/audio/pcm"
)

const sampleBytes = 2 // mono, 16-bit

// Resampler wraps an io.Reader and resamples mono 16-bit PCM from srcFmt to
// dstFmt. It must be closed with Close to release engine resources.
type Resampler interface {
	io.ReadCloser
	CloseWithError(error) error
}

type stream struct {
	srcFmt pcm.Format
	src    io.Reader

	dstFmt  pcm.Format
	readBuf []byte

	mu            sync.Mutex
	closeErr      error
	engine        resampling.Resampler
	leftover      []byte
	needsResample bool
}

// New creates a Resampler that converts audio from srcFmt to dstFmt.
// Equal rates pass data through untouched.
func New(src io.Reader, srcFmt, dstFmt pcm.Format) (Resampler, error) {
	needsResample := srcFmt.SampleRate() != dstFmt.SampleRate()

	var engine resampling.Resampler
	if needsResample {
		config := &resampling.Config{
			InputRate:  float64(srcFmt.SampleRate()),
			OutputRate: float64(dstFmt.SampleRate()),
			Channels:   1,
			Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
		}
		var err error
		engine, err = resampling.New(config)
		if err != nil {
			return nil, fmt.Errorf("resampler: create engine: %w", err)
		}
	}

	return &stream{
		srcFmt:        srcFmt,
		src:           newSampleReader(src, sampleBytes),
		dstFmt:        dstFmt,
		engine:        engine,
		needsResample: needsResample,
	}, nil
}

// Read copies resampled audio into p. Not safe for concurrent use.
func (r *stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(p) < sampleBytes {
		return 0, io.ErrShortBuffer
	}
	p = p[:len(p)/sampleBytes*sampleBytes]

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.leftover) > 0 {
		n := copy(p, r.leftover)
		r.leftover = r.leftover[n:]
		return n, nil
	}

	if r.closeErr != nil {
		return 0, r.closeErr
	}

	if !r.needsResample {
		return r.readInto(p)
	}
	return r.readAndProcess(p)
}

func (r *stream) readInto(p []byte) (int, error) {
	if cap(r.readBuf) < len(p) {
		r.readBuf = make([]byte, len(p))
	}
	n, err := r.src.Read(r.readBuf[:len(p)])
	copy(p, r.readBuf[:n])
	return n, err
}

func (r *stream) readAndProcess(p []byte) (int, error) {
	ratio := float64(r.srcFmt.SampleRate()) / float64(r.dstFmt.SampleRate())
	srcBytes := int(float64(len(p))*ratio) + sampleBytes*4

	if cap(r.readBuf) < srcBytes {
		r.readBuf = make([]byte, srcBytes)
	}
	bytesRead, readErr := r.src.Read(r.readBuf[:srcBytes])
	if bytesRead == 0 {
		if readErr != nil {
			return 0, readErr
		}
		return 0, io.EOF
	}

	// Normalize int16 samples to [-1, 1] for the engine.
	numSamples := bytesRead / sampleBytes
	input := make([]float64, numSamples)
	for i := 0; i < numSamples; i++ {
		sample := int16(r.readBuf[i*2]) | int16(r.readBuf[i*2+1])<<8
		input[i] = float64(sample) / 32768.0
	}

	output, err := r.engine.Process(input)
	if err != nil {
		return 0, fmt.Errorf("resampler: process: %w", err)
	}
	if len(output) == 0 {
		if readErr != nil {
			return 0, readErr
		}
		return 0, nil
	}

	outputBytes := make([]byte, len(output)*sampleBytes)
	for i, s := range output {
		sample := int16(s * 32767.0)
		if s > 1.0 {
			sample = 32767
		} else if s < -1.0 {
			sample = -32768
		}
		outputBytes[i*2] = byte(sample)
		outputBytes[i*2+1] = byte(sample >> 8)
	}

	n := copy(p, outputBytes)
	if len(outputBytes) > n {
		r.leftover = append(r.leftover, outputBytes[n:]...)
	}
	return n, readErr
}

// Close releases resources. Subsequent Read calls return io.ErrClosedPipe.
func (r *stream) Close() error {
	return r.CloseWithError(fmt.Errorf("resampler: %w", io.ErrClosedPipe))
}

// CloseWithError releases resources with a custom error for later Reads.
func (r *stream) CloseWithError(err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closeErr == nil {
		r.closeErr = err
	}
	r.engine = nil
	return nil
}
