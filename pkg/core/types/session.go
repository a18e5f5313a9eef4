package types

import "time"

// SessionStatus tracks a conversation session through its lifecycle.
//
// The allowed transitions are:
//
//	idle -> provisioning -> active -> ending -> ended
//
// with error reachable from provisioning and active. Transitions are
// monotone; the only way back to idle is an explicit reset.
type SessionStatus string

const (
	StatusIdle         SessionStatus = "idle"
	StatusProvisioning SessionStatus = "provisioning"
	StatusActive       SessionStatus = "active"
	StatusEnding       SessionStatus = "ending"
	StatusEnded        SessionStatus = "ended"
	StatusError        SessionStatus = "error"
)

// Session is one conversation between a local participant and a persona.
type Session struct {
	ID                  string        `json:"id"`
	ParticipantIdentity string        `json:"participant_identity"`
	PersonaID           string        `json:"persona_id"`
	RoomName            string        `json:"room_name,omitempty"`
	Title               string        `json:"title,omitempty"`
	Status              SessionStatus `json:"status"`
	CreatedAt           time.Time     `json:"created_at"`
	LastActivityAt      time.Time     `json:"last_activity_at"`
}

// Persona is a selectable AI character configuration.
type Persona struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Voice       string `json:"voice,omitempty"`
	AgentName   string `json:"agent_name,omitempty"`
}
