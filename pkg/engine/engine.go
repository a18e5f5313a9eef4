// Package engine implements the session synchronization engine: one
// coherent, ordered conversation view reconciled from a persisted message
// history service, a live streaming transcription channel, and an
// asynchronous emotion classifier.
//
// All engine state is owned by a single goroutine. Public methods post
// operations onto that goroutine's queue and asynchronous completions
// (provisioning, history fetches, classification) re-enter it as events
// carrying the generation token captured when they were launched. A
// completion whose generation no longer matches is silently discarded —
// cancellation by relevance, not by interrupt.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/verbalis-ai/verbalis/pkg/core/types"
	"github.com/verbalis-ai/verbalis/pkg/identity"
	"github.com/verbalis-ai/verbalis/pkg/transport"
)

const (
	defaultProvisionTimeout = 15 * time.Second
	defaultClassifyTimeout  = 10 * time.Second
	defaultDedupWindow      = 5 * time.Second
	defaultHistoryPageSize  = 200
	defaultTitleLimit       = 60
)

// MediaToken is the ephemeral credential for one session's media room.
type MediaToken struct {
	Token string `json:"token"`
	WSURL string `json:"ws_url"`
}

// Backend is the persisted session/message collaborator.
type Backend interface {
	CreateSession(ctx context.Context, personaID, title string) (types.Session, error)
	IssueMediaToken(ctx context.Context, roomName, participantName, agentName string) (MediaToken, error)
	// ListMessages pages through a session's persisted messages. The
	// engine does not trust the backend's native ordering and sorts every
	// fetched page before merging.
	ListMessages(ctx context.Context, sessionID string, limit, offset int) ([]types.Message, error)
	RecordEmotionEvent(ctx context.Context, event types.EmotionEvent) (types.EmotionEvent, error)
	UpdateSessionTitle(ctx context.Context, sessionID, title string) error
}

// Conn is an established realtime transport connection.
type Conn interface {
	Events() <-chan transport.Event
	Disconnect() error
}

// Transport dials the realtime transport collaborator with an issued
// media token.
type Transport interface {
	Connect(ctx context.Context, token, wsURL string) (Conn, error)
}

// DialerTransport adapts a websocket transport.Dialer to Transport.
type DialerTransport struct {
	Dialer transport.Dialer
}

func (d DialerTransport) Connect(ctx context.Context, token, wsURL string) (Conn, error) {
	return d.Dialer.Connect(ctx, token, wsURL)
}

// Classification is one emotion inference result.
type Classification struct {
	Emotion    types.Emotion `json:"emotion"`
	Confidence float64       `json:"confidence"`
	Intensity  float64       `json:"intensity"`
	Reasoning  string        `json:"reasoning,omitempty"`
}

// Classifier is the external sentiment inference collaborator.
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

// Identity resolves the signed-in local participant.
type Identity interface {
	CurrentUser(ctx context.Context) (identity.User, error)
}

// Config wires the engine to its collaborators.
type Config struct {
	Backend   Backend
	Transport Transport
	Identity  Identity
	// Classifier is optional; without it finalized turns simply carry no
	// sentiment fields.
	Classifier Classifier

	PersonaID string
	AgentName string

	// ProvisionTimeout bounds one provisioning attempt end to end.
	ProvisionTimeout time.Duration
	ClassifyTimeout  time.Duration
	// DedupWindow is the time epsilon within which a live message and a
	// persisted message with equal (session, role, content) are treated
	// as the same turn.
	DedupWindow     time.Duration
	HistoryPageSize int

	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.ProvisionTimeout <= 0 {
		c.ProvisionTimeout = defaultProvisionTimeout
	}
	if c.ClassifyTimeout <= 0 {
		c.ClassifyTimeout = defaultClassifyTimeout
	}
	if c.DedupWindow <= 0 {
		c.DedupWindow = defaultDedupWindow
	}
	if c.HistoryPageSize <= 0 {
		c.HistoryPageSize = defaultHistoryPageSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}
