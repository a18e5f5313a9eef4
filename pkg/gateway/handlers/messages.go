package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verbalis-ai/verbalis/pkg/core"
	"github.com/verbalis-ai/verbalis/pkg/core/types"
)

const (
	defaultMessagePageSize = 200
	maxMessagePageSize     = 500
)

// SaveMessage handles POST /v1/messages.
func (h *Handlers) SaveMessage(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var in types.Message
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	if in.SessionID == "" {
		h.writeError(w, r, core.NewInvalidRequestError("session_id is required"))
		return
	}
	if in.Role != types.RoleUser && in.Role != types.RoleAssistant {
		h.writeError(w, r, core.NewInvalidRequestError("role must be user or assistant"))
		return
	}
	if strings.TrimSpace(in.Content) == "" {
		h.writeError(w, r, core.NewInvalidRequestError("content is required"))
		return
	}

	if _, ok := h.ownedSession(w, r, p, in.SessionID); !ok {
		return
	}

	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	if in.Sentiment != "" && !types.Emotion(in.Sentiment).Valid() {
		h.writeError(w, r, core.NewInvalidRequestError("unknown sentiment"))
		return
	}

	saved, err := h.Store.InsertMessage(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// ListMessages handles GET /v1/sessions/{id}/messages. Messages come back
// in the canonical transcript order regardless of pagination.
func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	sess, ok := h.ownedSession(w, r, p, r.PathValue("id"))
	if !ok {
		return
	}

	limit := queryInt(r, "limit", defaultMessagePageSize)
	if limit > maxMessagePageSize {
		limit = maxMessagePageSize
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	messages, err := h.Store.ListMessages(r.Context(), sess.ID, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if messages == nil {
		messages = []types.Message{}
	}
	writeJSON(w, http.StatusOK, struct {
		Messages []types.Message `json:"messages"`
	}{Messages: messages})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
