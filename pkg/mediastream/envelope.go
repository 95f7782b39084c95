package mediastream

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
)

// Wire event discriminators.
const (
	eventStart = "start"
	eventMedia = "media"
	eventStop  = "stop"
	eventMark  = "mark"
	eventClear = "clear"
)

// envelope is the raw wire form shared by both directions. Exactly one
// payload field is set per message, selected by Event.
type envelope struct {
	Event          string            `json:"event"`
	StreamSID      string            `json:"streamSid,omitempty"`
	CallSID        string            `json:"callSid,omitempty"`
	SequenceNumber string            `json:"sequenceNumber,omitempty"`
	CustomParams   map[string]string `json:"customParameters,omitempty"`
	Media          *mediaPayload     `json:"media,omitempty"`
	Mark           *markPayload      `json:"mark,omitempty"`
}

type mediaPayload struct {
	Payload string `json:"payload"`
}

type markPayload struct {
	Name string `json:"name"`
}

// InboundEvent is a closed set of provider-to-bridge events. Adding a new
// wire event means adding a variant here, so unhandled kinds show up in
// every switch over the interface.
type InboundEvent interface {
	inboundEvent()
}

// StartEvent announces a new call's media stream.
type StartEvent struct {
	StreamSID    string
	CallSID      string
	CustomParams map[string]string
}

// MediaEvent carries one inbound μ-law audio frame.
type MediaEvent struct {
	StreamSID string
	Seq       uint64
	Payload   []byte
}

// StopEvent announces the provider closed the stream.
type StopEvent struct {
	StreamSID string
}

// MarkEvent echoes a playback mark previously sent by the bridge.
type MarkEvent struct {
	StreamSID string
	Name      string
}

func (*StartEvent) inboundEvent() {}
func (*MediaEvent) inboundEvent() {}
func (*StopEvent) inboundEvent()  {}
func (*MarkEvent) inboundEvent()  {}

// UnknownEventError reports an envelope whose event kind the bridge does not
// handle. The connection survives; the event is counted and skipped.
type UnknownEventError struct {
	Event string
}

// Error implements the error interface.
func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("mediastream: unknown event %q", e.Event)
}

// ParseInbound parses one wire message into its typed event.
func ParseInbound(data []byte) (InboundEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("mediastream: parse envelope: %w", err)
	}

	switch env.Event {
	case eventStart:
		if env.CallSID == "" {
			return nil, fmt.Errorf("mediastream: start event without callSid")
		}
		return &StartEvent{
			StreamSID:    env.StreamSID,
			CallSID:      env.CallSID,
			CustomParams: env.CustomParams,
		}, nil

	case eventMedia:
		if env.Media == nil {
			return nil, fmt.Errorf("mediastream: media event without media payload")
		}
		payload, err := base64.StdEncoding.DecodeString(env.Media.Payload)
		if err != nil {
			return nil, fmt.Errorf("mediastream: media payload: %w", err)
		}
		var seq uint64
		if env.SequenceNumber != "" {
			seq, err = strconv.ParseUint(env.SequenceNumber, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("mediastream: sequence number %q: %w", env.SequenceNumber, err)
			}
		}
		return &MediaEvent{StreamSID: env.StreamSID, Seq: seq, Payload: payload}, nil

	case eventStop:
		return &StopEvent{StreamSID: env.StreamSID}, nil

	case eventMark:
		if env.Mark == nil {
			return nil, fmt.Errorf("mediastream: mark event without mark payload")
		}
		return &MarkEvent{StreamSID: env.StreamSID, Name: env.Mark.Name}, nil
	}

	return nil, &UnknownEventError{Event: env.Event}
}

// OutboundMessage is a closed set of bridge-to-provider messages.
type OutboundMessage interface {
	marshal() ([]byte, error)
}

// MediaMessage carries one outbound μ-law audio frame.
type MediaMessage struct {
	StreamSID string
	Payload   []byte
}

// MarkMessage asks the provider to echo a mark once the audio queued before
// it has been played out.
type MarkMessage struct {
	StreamSID string
	Name      string
}

// ClearMessage asks the provider to drop any audio it has buffered but not
// yet played. Sent on barge-in.
type ClearMessage struct {
	StreamSID string
}

func (m *MediaMessage) marshal() ([]byte, error) {
	return json.Marshal(envelope{
		Event:     eventMedia,
		StreamSID: m.StreamSID,
		Media:     &mediaPayload{Payload: base64.StdEncoding.EncodeToString(m.Payload)},
	})
}

func (m *MarkMessage) marshal() ([]byte, error) {
	return json.Marshal(envelope{
		Event:     eventMark,
		StreamSID: m.StreamSID,
		Mark:      &markPayload{Name: m.Name},
	})
}

func (m *ClearMessage) marshal() ([]byte, error) {
	return json.Marshal(envelope{Event: eventClear, StreamSID: m.StreamSID})
}
