package bridge

import (
	"context"
	"sync"

	"github.com/hikevindiaz/voicebridge/pkg/jsontime"
)

// Speaker identifies who produced a transcript turn.
type Speaker string

const (
	SpeakerCaller    Speaker = "caller"
	SpeakerAssistant Speaker = "assistant"
)

// TranscriptTurn is one utterance of the conversation.
type TranscriptTurn struct {
	CallID    string         `json:"callId" msgpack:"call_id"`
	Speaker   Speaker        `json:"speaker" msgpack:"speaker"`
	Text      string         `json:"text" msgpack:"text"`
	StartedAt jsontime.Milli `json:"startedAt" msgpack:"started_at"`
	EndedAt   jsontime.Milli `json:"endedAt" msgpack:"ended_at"`
}

// TranscriptEmitter receives completed transcript turns. Emit must not
// block the session loop for long; implementations buffer or persist.
type TranscriptEmitter interface {
	Emit(ctx context.Context, turn TranscriptTurn) error
}

// UsageNotifier is told about call lifecycle for billing and analytics.
type UsageNotifier interface {
	CallStarted(ctx context.Context, callID, agentID string)
	CallEnded(ctx context.Context, callID string, report EndReport)
}

// EndReport summarizes a finished call.
type EndReport struct {
	CallID     string         `json:"callId"`
	AgentID    string         `json:"agentId"`
	Reason     string         `json:"reason"`
	StartedAt  jsontime.Milli `json:"startedAt"`
	EndedAt    jsontime.Milli `json:"endedAt"`
	Turns      int            `json:"turns"`
	FramesIn   uint64         `json:"framesIn"`
	FramesOut  uint64         `json:"framesOut"`
	DroppedIn  uint64         `json:"droppedIn"`
	DroppedOut uint64         `json:"droppedOut"`
}

// MemoryEmitter is an in-process TranscriptEmitter that stores turns in
// memory, mainly for tests and the default wiring.
type MemoryEmitter struct {
	mu    sync.Mutex
	turns []TranscriptTurn
}

func NewMemoryEmitter() *MemoryEmitter {
	return &MemoryEmitter{}
}

func (m *MemoryEmitter) Emit(_ context.Context, turn TranscriptTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, turn)
	return nil
}

// Turns returns a copy of the recorded transcript.
func (m *MemoryEmitter) Turns() []TranscriptTurn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TranscriptTurn, len(m.turns))
	copy(out, m.turns)
	return out
}

// NopNotifier discards all usage notifications.
type NopNotifier struct{}

func (NopNotifier) CallStarted(context.Context, string, string)  {}
func (NopNotifier) CallEnded(context.Context, string, EndReport) {}
