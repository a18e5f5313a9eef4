// Package backend is the HTTP client for the persisted session/message
// collaborator. The storage engine behind it is externally owned; this
// client only speaks its API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/verbalis-ai/verbalis/pkg/core"
	"github.com/verbalis-ai/verbalis/pkg/core/types"
	"github.com/verbalis-ai/verbalis/pkg/engine"
	"github.com/verbalis-ai/verbalis/pkg/identity"
)

const defaultRequestTimeout = 10 * time.Second

// Client talks to the backend collaborator with the identity provider's
// bearer credential. It implements engine.Backend and, through
// AnalyzeEmotion, engine.Classifier.
type Client struct {
	baseURL  string
	http     *http.Client
	identity identity.Provider
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New builds a client for the backend at baseURL.
func New(baseURL string, provider identity.Provider, opts ...Option) *Client {
	c := &Client{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: defaultRequestTimeout},
		identity: provider,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateSession provisions a new session record bound to a persona.
func (c *Client) CreateSession(ctx context.Context, personaID, title string) (types.Session, error) {
	in := struct {
		PersonaID string `json:"persona_id"`
		Title     string `json:"title"`
	}{PersonaID: personaID, Title: title}

	var out types.Session
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", in, &out); err != nil {
		return types.Session{}, err
	}
	return out, nil
}

// IssueMediaToken mints an ephemeral token scoped to one media room.
func (c *Client) IssueMediaToken(ctx context.Context, roomName, participantName, agentName string) (engine.MediaToken, error) {
	in := struct {
		RoomName        string `json:"room_name"`
		ParticipantName string `json:"participant_name"`
		AgentName       string `json:"agent_name,omitempty"`
	}{RoomName: roomName, ParticipantName: participantName, AgentName: agentName}

	var out struct {
		Token string `json:"token"`
		WSURL string `json:"ws_url"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/tokens", in, &out); err != nil {
		return engine.MediaToken{}, err
	}
	return engine.MediaToken{Token: out.Token, WSURL: out.WSURL}, nil
}

// ListMessages fetches one page of a session's persisted history.
func (c *Client) ListMessages(ctx context.Context, sessionID string, limit, offset int) ([]types.Message, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	path := "/v1/sessions/" + url.PathEscape(sessionID) + "/messages?" + q.Encode()

	var out struct {
		Messages []types.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// SaveMessage persists one finalized turn. Used by agent-side callers;
// the engine itself never writes messages directly.
func (c *Client) SaveMessage(ctx context.Context, msg types.Message) (types.Message, error) {
	var out types.Message
	if err := c.do(ctx, http.MethodPost, "/v1/messages", msg, &out); err != nil {
		return types.Message{}, err
	}
	return out, nil
}

// RecordEmotionEvent stores one classified emotion event.
func (c *Client) RecordEmotionEvent(ctx context.Context, event types.EmotionEvent) (types.EmotionEvent, error) {
	path := "/v1/sessions/" + url.PathEscape(event.SessionID) + "/emotions"
	var out types.EmotionEvent
	if err := c.do(ctx, http.MethodPost, path, event, &out); err != nil {
		return types.EmotionEvent{}, err
	}
	return out, nil
}

// UpdateSessionTitle renames a session.
func (c *Client) UpdateSessionTitle(ctx context.Context, sessionID, title string) error {
	in := struct {
		Title string `json:"title"`
	}{Title: title}
	path := "/v1/sessions/" + url.PathEscape(sessionID) + "/title"
	return c.do(ctx, http.MethodPatch, path, in, nil)
}

// ListSessions returns the current user's sessions, most recent first.
func (c *Client) ListSessions(ctx context.Context) ([]types.Session, error) {
	var out struct {
		Sessions []types.Session `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// AnalyzeEmotion asks the backend's inference service to classify text.
// It satisfies engine.Classifier.
func (c *Client) AnalyzeEmotion(ctx context.Context, text string) (engine.Classification, error) {
	in := struct {
		Text string `json:"text"`
	}{Text: text}

	var out engine.Classification
	if err := c.do(ctx, http.MethodPost, "/v1/emotions/analyze", in, &out); err != nil {
		return engine.Classification{}, err
	}
	return out, nil
}

// Classify is the engine.Classifier entry point.
func (c *Client) Classify(ctx context.Context, text string) (engine.Classification, error) {
	return c.AnalyzeEmotion(ctx, text)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.identity != nil {
		if token := c.identity.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var envelope struct {
		Error *core.Error `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error != nil {
		envelope.Error.Message = fmt.Sprintf("%s (status %d)", envelope.Error.Message, resp.StatusCode)
		return envelope.Error
	}
	return core.NewAPIError(fmt.Sprintf("backend returned status %d", resp.StatusCode))
}
