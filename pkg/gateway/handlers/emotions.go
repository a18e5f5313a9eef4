package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verbalis-ai/verbalis/pkg/core"
	"github.com/verbalis-ai/verbalis/pkg/core/types"
)

const defaultRecentWindow = 5 * time.Minute

// AnalyzeEmotion handles POST /v1/emotions/analyze.
func (h *Handlers) AnalyzeEmotion(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.principal(w, r); !ok {
		return
	}
	if h.Classifier == nil {
		h.writeError(w, r, core.NewClassificationError("classification is not configured", nil))
		return
	}

	var in struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(in.Text) == "" {
		h.writeError(w, r, core.NewInvalidRequestError("text is required"))
		return
	}

	result, err := h.Classifier.Classify(r.Context(), in.Text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RecordEmotion handles POST /v1/sessions/{id}/emotions. Events are
// normalized before storage; neutral events are acknowledged but never
// persisted, so the response carries an ID only for stored events.
func (h *Handlers) RecordEmotion(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	sess, ok := h.ownedSession(w, r, p, r.PathValue("id"))
	if !ok {
		return
	}

	var in types.EmotionEvent
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	in.SessionID = sess.ID
	if in.DetectedAt.IsZero() {
		in.DetectedAt = time.Now().UTC()
	}
	ev := in.Normalize()

	if ev.Emotion == types.EmotionNeutral {
		ev.ID = ""
		writeJSON(w, http.StatusOK, ev)
		return
	}

	ev.ID = uuid.NewString()
	stored, err := h.Store.InsertEmotionEvent(r.Context(), ev)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// ListEmotions handles GET /v1/sessions/{id}/emotions.
func (h *Handlers) ListEmotions(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	sess, ok := h.ownedSession(w, r, p, r.PathValue("id"))
	if !ok {
		return
	}

	events, err := h.Store.ListEmotionEvents(r.Context(), sess.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if events == nil {
		events = []types.EmotionEvent{}
	}
	writeJSON(w, http.StatusOK, struct {
		Events []types.EmotionEvent `json:"events"`
	}{Events: events})
}

// EmotionStats handles GET /v1/sessions/{id}/emotions/stats. The statistic
// is derived from stored events on each request rather than persisted.
func (h *Handlers) EmotionStats(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	sess, ok := h.ownedSession(w, r, p, r.PathValue("id"))
	if !ok {
		return
	}

	events, err := h.Store.ListEmotionEvents(r.Context(), sess.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var agg types.EmotionAggregate
	for _, ev := range events {
		agg.Observe(ev)
	}
	writeJSON(w, http.StatusOK, struct {
		types.EmotionAggregate
		Distribution map[types.Emotion]float64 `json:"distribution"`
	}{EmotionAggregate: agg, Distribution: agg.Distribution()})
}

// RecentEmotions handles GET /v1/sessions/{id}/emotions/recent.
func (h *Handlers) RecentEmotions(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	sess, ok := h.ownedSession(w, r, p, r.PathValue("id"))
	if !ok {
		return
	}

	window := defaultRecentWindow
	if secs := queryInt(r, "window_seconds", 0); secs > 0 {
		window = time.Duration(secs) * time.Second
	}
	limit := queryInt(r, "limit", 20)

	events, err := h.Store.RecentEmotionEvents(r.Context(), sess.ID, window, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if events == nil {
		events = []types.EmotionEvent{}
	}
	writeJSON(w, http.StatusOK, struct {
		Events []types.EmotionEvent `json:"events"`
	}{Events: events})
}
