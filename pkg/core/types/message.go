package types

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageOrigin tags where a message entered the transcript from.
// Persisted messages win ties against live ones when sorting.
type MessageOrigin int

const (
	OriginPersisted MessageOrigin = iota
	OriginLive
)

// Message is one finalized conversational turn. Immutable once created,
// unique by ID within a session. The only later mutation permitted is
// attaching sentiment fields after asynchronous classification.
type Message struct {
	ID             string         `json:"id"`
	SessionID      string         `json:"session_id"`
	Role           Role           `json:"role"`
	Content        string         `json:"content"`
	CreatedAt      time.Time      `json:"created_at"`
	Sentiment      string         `json:"sentiment,omitempty"`
	SentimentScore *float64       `json:"sentiment_score,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`

	// Origin is engine-internal merge state, never serialized.
	Origin MessageOrigin `json:"-"`
}

// TranscriptSegment is a transient piece of speech recognition output for
// the local participant. Only its finalized form ever becomes a Message;
// a pending (non-final) segment is discarded on mute or session end.
type TranscriptSegment struct {
	Text        string `json:"text"`
	IsFinal     bool   `json:"is_final"`
	TimestampMS int64  `json:"timestamp_ms"`
}

// Before reports whether m sorts strictly ahead of other in the canonical
// transcript order: ascending created_at, ties broken persisted before
// live, then user before assistant, then by id.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	if m.Origin != other.Origin {
		return m.Origin < other.Origin
	}
	if m.Role != other.Role {
		return m.Role == RoleUser
	}
	return m.ID < other.ID
}
