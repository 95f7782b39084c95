package realtime

// Audio formats supported by the realtime API.
const (
	// AudioFormatPCM16 is 16-bit PCM at 24kHz, mono, little-endian.
	AudioFormatPCM16 = "pcm16"
	// AudioFormatG711ULaw is G.711 μ-law at 8kHz.
	AudioFormatG711ULaw = "g711_ulaw"
)

// VAD modes for turn detection.
const (
	// VADServerVAD enables server-side voice activity detection.
	VADServerVAD = "server_vad"
	// VADSemanticVAD enables semantic voice activity detection.
	VADSemanticVAD = "semantic_vad"
)

// Modality types.
const (
	ModalityText  = "text"
	ModalityAudio = "audio"
)

// ConnectConfig contains configuration for establishing a connection.
type ConnectConfig struct {
	// Model is the model ID to use.
	Model string `json:"model,omitzero"`
}

// SessionConfig contains the session.update payload. It must be re-sent
// after every (re)connect; the server does not persist it across
// connections.
type SessionConfig struct {
	// Modalities specifies the output modalities. Default: ["text","audio"].
	Modalities []string `json:"modalities,omitzero"`

	// Instructions is the system prompt for the session.
	Instructions string `json:"instructions,omitzero"`

	// Voice selects the output voice.
	Voice string `json:"voice,omitzero"`

	// InputAudioFormat and OutputAudioFormat select wire audio encodings.
	InputAudioFormat  string `json:"input_audio_format,omitzero"`
	OutputAudioFormat string `json:"output_audio_format,omitzero"`

	// InputAudioTranscription enables transcription of caller audio.
	InputAudioTranscription *TranscriptionConfig `json:"input_audio_transcription,omitzero"`

	// TurnDetection configures server-side VAD. Nil leaves the server
	// default in place.
	TurnDetection *TurnDetection `json:"turn_detection,omitzero"`

	// Tools lists function tools available to the model.
	Tools []Tool `json:"tools,omitzero"`

	// Temperature for sampling.
	Temperature *float64 `json:"temperature,omitzero"`
}

// TranscriptionConfig configures input audio transcription.
type TranscriptionConfig struct {
	// Model is the transcription model to use (e.g. "whisper-1").
	Model string `json:"model,omitzero"`
}

// TurnDetection configures voice activity detection.
type TurnDetection struct {
	// Type is the VAD mode: "server_vad" or "semantic_vad".
	Type string `json:"type,omitzero"`

	// Threshold is the VAD sensitivity (0.0-1.0). Default 0.5.
	Threshold float64 `json:"threshold,omitzero"`

	// PrefixPaddingMs is padding included before detected speech (ms).
	PrefixPaddingMs int `json:"prefix_padding_ms,omitzero"`

	// SilenceDurationMs is the endpointing silence threshold (ms).
	SilenceDurationMs int `json:"silence_duration_ms,omitzero"`
}

// Tool defines a function tool available to the model.
type Tool struct {
	// Type is always "function".
	Type string `json:"type"`

	// Name is the function name.
	Name string `json:"name"`

	// Description describes what the function does.
	Description string `json:"description,omitzero"`

	// Parameters is the JSON Schema for the function parameters.
	Parameters map[string]interface{} `json:"parameters,omitzero"`
}

// ResponseCreateOptions contains options for requesting a response.
type ResponseCreateOptions struct {
	// Modalities for this response.
	Modalities []string `json:"modalities,omitzero"`

	// Instructions override for this response.
	Instructions string `json:"instructions,omitzero"`
}

// SessionResource represents the session state returned by the server.
type SessionResource struct {
	ID                string         `json:"id,omitzero"`
	Model             string         `json:"model,omitzero"`
	ExpiresAt         int64          `json:"expires_at,omitzero"`
	Modalities        []string       `json:"modalities,omitzero"`
	Instructions      string         `json:"instructions,omitzero"`
	Voice             string         `json:"voice,omitzero"`
	InputAudioFormat  string         `json:"input_audio_format,omitzero"`
	OutputAudioFormat string         `json:"output_audio_format,omitzero"`
	TurnDetection     *TurnDetection `json:"turn_detection,omitzero"`
}

// ConversationItem represents an item in the conversation.
type ConversationItem struct {
	ID        string        `json:"id,omitzero"`
	Type      string        `json:"type,omitzero"` // "message", "function_call", "function_call_output"
	Status    string        `json:"status,omitzero"`
	Role      string        `json:"role,omitzero"`
	Content   []ContentPart `json:"content,omitzero"`
	CallID    string        `json:"call_id,omitzero"`
	Name      string        `json:"name,omitzero"`
	Arguments string        `json:"arguments,omitzero"`
	Output    string        `json:"output,omitzero"`
}

// ContentPart represents a part of message content.
type ContentPart struct {
	Type       string `json:"type,omitzero"`
	Text       string `json:"text,omitzero"`
	Audio      string `json:"audio,omitzero"`
	Transcript string `json:"transcript,omitzero"`
}

// ResponseResource represents a response from the model.
type ResponseResource struct {
	ID     string             `json:"id,omitzero"`
	Status string             `json:"status,omitzero"` // "in_progress", "completed", "cancelled", "failed"
	Output []ConversationItem `json:"output,omitzero"`
}
