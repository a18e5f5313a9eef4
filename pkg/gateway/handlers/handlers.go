// Package handlers implements the gateway's HTTP API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/verbalis-ai/verbalis/pkg/core"
	"github.com/verbalis-ai/verbalis/pkg/core/types"
	"github.com/verbalis-ai/verbalis/pkg/engine"
	"github.com/verbalis-ai/verbalis/pkg/gateway/apierror"
	"github.com/verbalis-ai/verbalis/pkg/gateway/auth"
	"github.com/verbalis-ai/verbalis/pkg/gateway/mw"
	"github.com/verbalis-ai/verbalis/pkg/gateway/store"
	"github.com/verbalis-ai/verbalis/pkg/gateway/token"
)

// Store is the persistence surface the handlers need. *store.Store
// satisfies it; tests substitute an in-memory implementation.
type Store interface {
	CreateSession(ctx context.Context, sess types.Session) (types.Session, error)
	GetSession(ctx context.Context, id string) (types.Session, error)
	SessionByRoom(ctx context.Context, roomName string) (types.Session, error)
	ListSessions(ctx context.Context, participantIdentity string) ([]types.Session, error)
	UpdateSessionTitle(ctx context.Context, id, title string) error
	InsertMessage(ctx context.Context, msg types.Message) (types.Message, error)
	ListMessages(ctx context.Context, sessionID string, limit, offset int) ([]types.Message, error)
	InsertEmotionEvent(ctx context.Context, ev types.EmotionEvent) (types.EmotionEvent, error)
	ListEmotionEvents(ctx context.Context, sessionID string) ([]types.EmotionEvent, error)
	RecentEmotionEvents(ctx context.Context, sessionID string, window time.Duration, limit int) ([]types.EmotionEvent, error)
}

// Handlers carries the dependencies shared across endpoints.
type Handlers struct {
	Store  Store
	Issuer token.Issuer
	// Classifier is optional; without it the analyze endpoint reports
	// the service unavailable.
	Classifier engine.Classifier
	Logger     *slog.Logger

	// Ready reports whether dependencies are reachable; used by /readyz.
	Ready func(ctx context.Context) error
}

func (h *Handlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// principal returns the authenticated caller or writes a 401.
func (h *Handlers) principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, r, core.NewAuthenticationError("not authenticated"))
	}
	return p, ok
}

// ownedSession loads a session and verifies the caller owns it. A session
// owned by someone else reads as not found, so existence never leaks.
func (h *Handlers) ownedSession(w http.ResponseWriter, r *http.Request, p auth.Principal, id string) (types.Session, bool) {
	sess, err := h.Store.GetSession(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && sess.ParticipantIdentity != p.UserID) {
		h.writeError(w, r, core.NewNotFoundError("session not found"))
		return types.Session{}, false
	}
	if err != nil {
		h.writeError(w, r, err)
		return types.Session{}, false
	}
	return sess, true
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ce := apierror.FromError(err)
	if apierror.StatusFromType(ce.Type) >= http.StatusInternalServerError {
		h.logger().Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", mw.GetRequestID(r),
			"err", err,
		)
	}
	apierror.Write(w, mw.GetRequestID(r), err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a bounded JSON request body.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return core.NewInvalidRequestError("malformed request body")
	}
	return nil
}
