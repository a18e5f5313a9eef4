package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/verbalis-ai/verbalis/pkg/core"
	"github.com/verbalis-ai/verbalis/pkg/core/types"
	"github.com/verbalis-ai/verbalis/pkg/identity"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, identity.Static{Token: "access-token"})
}

func TestCreateSession(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/sessions" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer access-token" {
			t.Errorf("authorization = %q", got)
		}
		var in struct {
			PersonaID string `json:"persona_id"`
			Title     string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.PersonaID != "aria" {
			t.Errorf("body decode = %v, persona %q", err, in.PersonaID)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(types.Session{
			ID: "s1", PersonaID: in.PersonaID, RoomName: "verbalis_u1_1", Title: in.Title,
			Status: types.StatusActive, CreatedAt: time.Now().UTC(),
		})
	})

	sess, err := c.CreateSession(context.Background(), "aria", "Voice Chat")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if sess.ID != "s1" || sess.RoomName != "verbalis_u1_1" {
		t.Fatalf("session = %+v", sess)
	}
}

func TestIssueMediaToken(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/tokens" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var in struct {
			RoomName        string `json:"room_name"`
			ParticipantName string `json:"participant_name"`
			AgentName       string `json:"agent_name"`
		}
		json.NewDecoder(r.Body).Decode(&in)
		if in.RoomName != "verbalis_u1_1" || in.AgentName != "agent-1" {
			t.Errorf("body = %+v", in)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"token": "media-token", "ws_url": "wss://media.test",
		})
	})

	tok, err := c.IssueMediaToken(context.Background(), "verbalis_u1_1", "Uma", "agent-1")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if tok.Token != "media-token" || tok.WSURL != "wss://media.test" {
		t.Fatalf("token = %+v", tok)
	}
}

func TestListMessagesPaging(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v1/sessions/s1/messages") {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("limit") != "50" || q.Get("offset") != "100" {
			t.Errorf("query = %v", q)
		}
		json.NewEncoder(w).Encode(map[string][]types.Message{
			"messages": {{ID: "m1", SessionID: "s1", Role: types.RoleUser, Content: "hi"}},
		})
	})

	msgs, err := c.ListMessages(context.Background(), "s1", 50, 100)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != "m1" {
		t.Fatalf("messages = %+v", msgs)
	}
}

func TestErrorEnvelopeDecodesTyped(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"type":    "not_found_error",
				"message": "session not found",
			},
		})
	})

	_, err := c.ListMessages(context.Background(), "missing", 10, 0)
	var ce *core.Error
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *core.Error", err)
	}
	if ce.Type != core.ErrNotFound {
		t.Fatalf("type = %s, want not_found_error", ce.Type)
	}
	if !strings.Contains(ce.Message, "status 404") {
		t.Fatalf("message = %q, want status annotation", ce.Message)
	}
}

func TestNonEnvelopeErrorBecomesAPIError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	err := c.UpdateSessionTitle(context.Background(), "s1", "t")
	var ce *core.Error
	if !errors.As(err, &ce) || ce.Type != core.ErrAPI {
		t.Fatalf("err = %v, want generic api error", err)
	}
}

func TestAnalyzeEmotion(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/emotions/analyze" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"emotion": "frustrated", "confidence": 0.85, "intensity": 0.7,
		})
	})

	res, err := c.Classify(context.Background(), "this keeps breaking")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if res.Emotion != types.EmotionFrustrated || res.Confidence != 0.85 {
		t.Fatalf("result = %+v", res)
	}
}

func TestRecordEmotionEvent(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sessions/s1/emotions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var in types.EmotionEvent
		json.NewDecoder(r.Body).Decode(&in)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(in)
	})

	in := types.EmotionEvent{
		ID: "e1", SessionID: "s1", Emotion: types.EmotionHappy,
		Confidence: 0.9, Valence: 0.8, Arousal: 0.6, DetectedAt: time.Now().UTC(),
	}
	out, err := c.RecordEmotionEvent(context.Background(), in)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if out.ID != "e1" || out.Emotion != types.EmotionHappy {
		t.Fatalf("event = %+v", out)
	}
}
