package bridge

import "encoding/json"

// State is the lifecycle state of one call session.
type State int

const (
	StateUnknown State = iota
	// StateConnecting: model connection opening, greeting not yet sent.
	StateConnecting
	// StateListening: idle between turns, caller audio flowing to the model.
	StateListening
	// StateUserSpeaking: voice activity detected, a user turn is in progress.
	StateUserSpeaking
	// StateThinking: user turn closed, waiting for the model's response.
	StateThinking
	// StateSpeaking: agent audio is being played to the caller.
	StateSpeaking
	// StateEnding: teardown started, connections closing.
	StateEnding
	// StateClosed: both connections closed, resources released. Terminal.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateListening:
		return "listening"
	case StateUserSpeaking:
		return "user_speaking"
	case StateThinking:
		return "thinking"
	case StateSpeaking:
		return "speaking"
	case StateEnding:
		return "ending"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *State) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	switch name {
	case "connecting":
		*s = StateConnecting
	case "listening":
		*s = StateListening
	case "user_speaking":
		*s = StateUserSpeaking
	case "thinking":
		*s = StateThinking
	case "speaking":
		*s = StateSpeaking
	case "ending":
		*s = StateEnding
	case "closed":
		*s = StateClosed
	default:
		*s = StateUnknown
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Live reports whether the session still owns its connections.
func (s State) Live() bool {
	switch s {
	case StateConnecting, StateListening, StateUserSpeaking, StateThinking, StateSpeaking:
		return true
	}
	return false
}
