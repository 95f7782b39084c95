package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Output formats for synthesized audio.
const (
	// FormatPCM16x16K is 16-bit mono PCM at 16kHz.
	FormatPCM16x16K = "pcm_16000"
	// FormatPCM16x24K is 16-bit mono PCM at 24kHz.
	FormatPCM16x24K = "pcm_24000"
	// FormatULaw8K is G.711 μ-law at 8kHz, directly playable on a phone leg.
	FormatULaw8K = "ulaw_8000"
)

// SynthesizeRequest describes one synthesis call.
type SynthesizeRequest struct {
	// Text is the text to speak.
	Text string `json:"text"`

	// VoiceID selects the voice. Required.
	VoiceID string `json:"voiceId"`

	// OutputFormat selects the audio encoding. Default FormatULaw8K.
	OutputFormat string `json:"outputFormat,omitempty"`

	// Stability controls voice consistency (0.0-1.0).
	Stability float64 `json:"stability,omitempty"`

	// SimilarityBoost controls voice similarity (0.0-1.0).
	SimilarityBoost float64 `json:"similarityBoost,omitempty"`
}

// Synthesize turns text into a streamed audio body. The caller must close
// the returned reader; cancelling ctx aborts the stream mid-flight, which
// is how barge-in stops an in-progress fallback utterance.
func (c *Client) Synthesize(ctx context.Context, req *SynthesizeRequest) (io.ReadCloser, error) {
	if req == nil || req.Text == "" {
		return nil, fmt.Errorf("elevenlabs: text is required")
	}
	if req.VoiceID == "" {
		return nil, fmt.Errorf("elevenlabs: voice ID is required")
	}
	if req.OutputFormat == "" {
		req.OutputFormat = FormatULaw8K
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/synthesize", c.config.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/*")
	if c.config.apiKey != "" {
		httpReq.Header.Set("xi-api-key", c.config.apiKey)
	}

	resp, err := c.config.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		apiErr := &Error{HTTPStatus: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, apiErr
	}

	return resp.Body, nil
}
