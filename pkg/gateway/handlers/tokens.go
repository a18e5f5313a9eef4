package handlers

import (
	"net/http"
	"strings"

	"github.com/verbalis-ai/verbalis/pkg/core"
	"github.com/verbalis-ai/verbalis/pkg/gateway/token"
)

// IssueToken handles POST /v1/tokens. The token is scoped to one media
// room, and only the participant who owns the room's session may mint one.
func (h *Handlers) IssueToken(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var in struct {
		RoomName        string `json:"room_name"`
		ParticipantName string `json:"participant_name"`
		AgentName       string `json:"agent_name"`
	}
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(in.RoomName) == "" {
		h.writeError(w, r, core.NewInvalidRequestError("room_name is required"))
		return
	}

	sess, err := h.Store.SessionByRoom(r.Context(), in.RoomName)
	if err != nil || sess.ParticipantIdentity != p.UserID {
		// Unknown room and someone else's room are indistinguishable.
		h.writeError(w, r, core.NewNotFoundError("room not found"))
		return
	}

	signed, err := h.Issuer.Issue(token.Request{
		RoomName:            sess.RoomName,
		ParticipantIdentity: p.UserID,
		ParticipantName:     strings.TrimSpace(in.ParticipantName),
		AgentName:           strings.TrimSpace(in.AgentName),
		Metadata: map[string]any{
			"session_id": sess.ID,
			"persona_id": sess.PersonaID,
		},
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Token string `json:"token"`
		WSURL string `json:"ws_url"`
	}{Token: signed, WSURL: h.Issuer.WSURL})
}
