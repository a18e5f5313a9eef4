package handlers

import (
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/verbalis-ai/verbalis/pkg/core"
	"github.com/verbalis-ai/verbalis/pkg/core/types"
	"github.com/verbalis-ai/verbalis/pkg/gateway/token"
)

const maxTitleLen = 200

// CreateSession handles POST /v1/sessions. The room name is assigned at
// creation so token issuance can verify room ownership later.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var in struct {
		PersonaID string `json:"persona_id"`
		Title     string `json:"title"`
	}
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(in.PersonaID) == "" {
		h.writeError(w, r, core.NewInvalidRequestError("persona_id is required"))
		return
	}
	if utf8.RuneCountInString(in.Title) > maxTitleLen {
		h.writeError(w, r, core.NewInvalidRequestError("title too long"))
		return
	}

	now := time.Now().UTC()
	sess := types.Session{
		ID:                  uuid.NewString(),
		ParticipantIdentity: p.UserID,
		PersonaID:           strings.TrimSpace(in.PersonaID),
		RoomName:            token.RoomName(p.UserID, now),
		Title:               strings.TrimSpace(in.Title),
		Status:              types.StatusActive,
		CreatedAt:           now,
	}
	created, err := h.Store.CreateSession(r.Context(), sess)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// ListSessions handles GET /v1/sessions.
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	sessions, err := h.Store.ListSessions(r.Context(), p.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []types.Session{}
	}
	writeJSON(w, http.StatusOK, struct {
		Sessions []types.Session `json:"sessions"`
	}{Sessions: sessions})
}

// GetSession handles GET /v1/sessions/{id}.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	sess, ok := h.ownedSession(w, r, p, r.PathValue("id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// UpdateSessionTitle handles PATCH /v1/sessions/{id}/title.
func (h *Handlers) UpdateSessionTitle(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	sess, ok := h.ownedSession(w, r, p, r.PathValue("id"))
	if !ok {
		return
	}

	var in struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		h.writeError(w, r, core.NewInvalidRequestError("title is required"))
		return
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		h.writeError(w, r, core.NewInvalidRequestError("title too long"))
		return
	}

	if err := h.Store.UpdateSessionTitle(r.Context(), sess.ID, title); err != nil {
		h.writeError(w, r, err)
		return
	}
	sess.Title = title
	writeJSON(w, http.StatusOK, sess)
}
