// Package transport is the client for the realtime media transport
// collaborator. The transport itself (codec, media routing) is externally
// owned; this package consumes its websocket event feed: streaming
// transcription segments for the local participant and finalized speech
// from the remote persona.
package transport

import (
	"encoding/json"

	"github.com/verbalis-ai/verbalis/pkg/core/types"
)

// Event is an inbound transport event.
type Event interface {
	transportEventType() string
}

// ConnectedEvent is emitted once the room handshake completes.
type ConnectedEvent struct {
	RoomName string
}

func (e ConnectedEvent) transportEventType() string { return "connected" }

// SegmentEvent carries one speech-recognition segment for the local
// participant. Non-final segments are revisable; a final segment commits
// the utterance.
type SegmentEvent struct {
	Segment types.TranscriptSegment
}

func (e SegmentEvent) transportEventType() string { return "transcript_segment" }

// AgentMessageEvent carries one finalized utterance from the remote persona.
type AgentMessageEvent struct {
	Text        string
	TimestampMS int64
}

func (e AgentMessageEvent) transportEventType() string { return "agent_message" }

// MutedEvent signals that the local participant muted; any pending
// non-final segment is void.
type MutedEvent struct{}

func (e MutedEvent) transportEventType() string { return "muted" }

// DisconnectedEvent is the terminal event: either the remote side ended
// the session or the connection dropped. Err is nil for a clean close.
type DisconnectedEvent struct {
	Reason string
	Err    error
}

func (e DisconnectedEvent) transportEventType() string { return "disconnected" }

// UnknownEvent preserves frames this client version does not understand.
type UnknownEvent struct {
	Type string
	Raw  json.RawMessage
}

func (e UnknownEvent) transportEventType() string { return e.Type }

// Wire frame shapes. Every frame is a JSON text message with a type tag.
type frame struct {
	Type        string `json:"type"`
	RoomName    string `json:"room_name,omitempty"`
	Text        string `json:"text,omitempty"`
	IsFinal     bool   `json:"is_final,omitempty"`
	TimestampMS int64  `json:"timestamp_ms,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

func decodeFrame(data []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	switch f.Type {
	case "connected":
		return ConnectedEvent{RoomName: f.RoomName}, nil
	case "transcript_segment":
		return SegmentEvent{Segment: types.TranscriptSegment{
			Text:        f.Text,
			IsFinal:     f.IsFinal,
			TimestampMS: f.TimestampMS,
		}}, nil
	case "agent_message":
		return AgentMessageEvent{Text: f.Text, TimestampMS: f.TimestampMS}, nil
	case "muted":
		return MutedEvent{}, nil
	case "session_ended":
		return DisconnectedEvent{Reason: f.Reason}, nil
	default:
		return UnknownEvent{Type: f.Type, Raw: json.RawMessage(data)}, nil
	}
}
