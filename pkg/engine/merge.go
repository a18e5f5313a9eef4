package engine

import (
	"sort"
	"time"

	"github.com/verbalis-ai/verbalis/pkg/core/types"
)

// mergeEngine maintains the canonical transcript: ascending created_at,
// ties broken persisted-before-live, then role, then id. The sequence is
// append-only from the consumer's perspective: a message may be inserted
// at its sorted position only while it is not yet rendered; after that,
// late arrivals are appended best-effort at the end.
type mergeEngine struct {
	window   time.Duration
	messages []types.Message
	rendered int
	ids      map[string]struct{}
}

func newMergeEngine(window time.Duration) *mergeEngine {
	return &mergeEngine{
		window: window,
		ids:    make(map[string]struct{}),
	}
}

// add merges one message, returning false for duplicates. A live message
// is dropped when a persisted message with equal (role, content) sits
// within the dedup window, and vice versa: whichever origin arrives
// second loses, so a history re-fetch overlapping the live feed never
// double-counts a turn.
func (m *mergeEngine) add(msg types.Message) bool {
	if msg.ID != "" {
		if _, dup := m.ids[msg.ID]; dup {
			return false
		}
	}
	if m.hasCounterpart(msg) {
		return false
	}

	pos := sort.Search(len(m.messages), func(i int) bool {
		return msg.Before(m.messages[i])
	})
	if pos < m.rendered {
		// Already-rendered items keep their position; append instead.
		m.messages = append(m.messages, msg)
	} else {
		m.messages = append(m.messages, types.Message{})
		copy(m.messages[pos+1:], m.messages[pos:])
		m.messages[pos] = msg
	}
	if msg.ID != "" {
		m.ids[msg.ID] = struct{}{}
	}
	return true
}

// hasCounterpart looks for a same-turn message of the opposite origin
// within the dedup window. The full transcript is scanned: rendered
// late arrivals sit appended out of timestamp order, so no region of
// the slice can be skipped on ordering grounds. Transcripts are
// conversation-sized, the linear pass is fine.
func (m *mergeEngine) hasCounterpart(msg types.Message) bool {
	for i := len(m.messages) - 1; i >= 0; i-- {
		existing := m.messages[i]
		delta := msg.CreatedAt.Sub(existing.CreatedAt)
		if delta < 0 {
			delta = -delta
		}
		if delta > m.window {
			continue
		}
		if existing.Origin != msg.Origin &&
			existing.Role == msg.Role &&
			existing.Content == msg.Content {
			return true
		}
	}
	return false
}

// sync marks everything rendered and returns the messages that became
// visible since the last call, in display order.
func (m *mergeEngine) sync() []types.Message {
	if m.rendered >= len(m.messages) {
		return nil
	}
	fresh := make([]types.Message, len(m.messages)-m.rendered)
	copy(fresh, m.messages[m.rendered:])
	m.rendered = len(m.messages)
	return fresh
}

// attachSentiment is the one permitted mutation of an existing message.
func (m *mergeEngine) attachSentiment(messageID string, emotion types.Emotion, score float64) bool {
	for i := range m.messages {
		if m.messages[i].ID == messageID {
			s := score
			m.messages[i].Sentiment = string(emotion)
			m.messages[i].SentimentScore = &s
			return true
		}
	}
	return false
}

func (m *mergeEngine) snapshot() []types.Message {
	out := make([]types.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

func (m *mergeEngine) reset() {
	m.messages = nil
	m.rendered = 0
	m.ids = make(map[string]struct{})
}

// normalizeHistory sorts one fetched history page into chronological
// order and tags it as persisted. The backend's native ordering is pinned
// oldest-first, but a page is never merged untrusted.
func normalizeHistory(page []types.Message) []types.Message {
	out := make([]types.Message, len(page))
	copy(out, page)
	for i := range out {
		out[i].Origin = types.OriginPersisted
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Before(out[j])
	})
	return out
}
