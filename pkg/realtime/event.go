package realtime

// Client event types (sent from client to server).
const (
	EventSessionUpdate = "session.update"

	EventInputAudioAppend = "input_audio_buffer.append"
	EventInputAudioCommit = "input_audio_buffer.commit"
	EventInputAudioClear  = "input_audio_buffer.clear"

	EventItemCreate   = "conversation.item.create"
	EventItemTruncate = "conversation.item.truncate"

	EventResponseCreate = "response.create"
	EventResponseCancel = "response.cancel"
)

// Server event types (received from server).
const (
	EventError = "error"

	EventSessionCreated = "session.created"
	EventSessionUpdated = "session.updated"

	EventInputAudioCommitted = "input_audio_buffer.committed"
	EventSpeechStarted       = "input_audio_buffer.speech_started"
	EventSpeechStopped       = "input_audio_buffer.speech_stopped"

	EventItemCreated            = "conversation.item.created"
	EventInputAudioTranscribed  = "conversation.item.input_audio_transcription.completed"
	EventInputTranscriptionFail = "conversation.item.input_audio_transcription.failed"
	EventItemTruncated          = "conversation.item.truncated"

	EventResponseCreated         = "response.created"
	EventResponseDone            = "response.done"
	EventResponseTextDelta       = "response.text.delta"
	EventResponseTextDone        = "response.text.done"
	EventResponseAudioDelta      = "response.audio.delta"
	EventResponseAudioDone       = "response.audio.done"
	EventResponseTranscriptDelta = "response.audio_transcript.delta"
	EventResponseTranscriptDone  = "response.audio_transcript.done"

	EventFunctionCallArgsDone = "response.function_call_arguments.done"
)

// ServerEvent represents one event received from the realtime API.
// The Type discriminator selects which fields are populated.
type ServerEvent struct {
	Type    string `json:"type"`
	EventID string `json:"event_id,omitzero"`

	// Session is set for session.created and session.updated.
	Session *SessionResource `json:"session,omitzero"`

	// Item is set for conversation.item.* events.
	Item *ConversationItem `json:"item,omitzero"`

	// ItemID identifies the item for buffer and truncation events.
	ItemID string `json:"item_id,omitzero"`

	// AudioStartMs / AudioEndMs frame VAD events in stream time.
	AudioStartMs int `json:"audio_start_ms,omitzero"`
	AudioEndMs   int `json:"audio_end_ms,omitzero"`

	// Transcript carries completed transcription text.
	Transcript string `json:"transcript,omitzero"`

	// Response is set for response.created and response.done.
	Response *ResponseResource `json:"response,omitzero"`

	// ResponseID identifies the response for delta events.
	ResponseID string `json:"response_id,omitzero"`

	// Delta carries incremental text for *.delta events. For audio deltas
	// it is the base64 payload, decoded into Audio after parsing.
	Delta string `json:"delta,omitzero"`

	// Audio is the decoded audio payload of response.audio.delta events.
	Audio []byte `json:"-"`

	// Text carries the final text for response.text.done.
	Text string `json:"text,omitzero"`

	// Function call fields for response.function_call_arguments.done.
	CallID    string `json:"call_id,omitzero"`
	Name      string `json:"name,omitzero"`
	Arguments string `json:"arguments,omitzero"`

	// ErrorDetail is set for error events.
	ErrorDetail *Error `json:"error,omitzero"`

	// Raw is the original JSON message.
	Raw []byte `json:"-"`
}
