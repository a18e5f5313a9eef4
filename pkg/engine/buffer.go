package engine

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/verbalis-ai/verbalis/pkg/core/types"
)

// transcriptionBuffer coalesces partial speech-recognition segments into
// finalized turns. At most one pending (non-final) segment exists at a
// time; each newer partial replaces it. A pending segment left behind by
// mute or disconnect is discarded, never persisted — intentional data
// loss for unconfirmed speech.
type transcriptionBuffer struct {
	pending *types.TranscriptSegment
}

// observe consumes one segment. For a final segment it returns the
// promoted Message and clears the pending slot.
func (b *transcriptionBuffer) observe(sessionID string, seg types.TranscriptSegment) (types.Message, bool) {
	if !seg.IsFinal {
		copied := seg
		b.pending = &copied
		return types.Message{}, false
	}

	b.pending = nil
	text := strings.TrimSpace(seg.Text)
	if text == "" {
		return types.Message{}, false
	}

	createdAt := time.Now().UTC()
	if seg.TimestampMS > 0 {
		createdAt = time.UnixMilli(seg.TimestampMS).UTC()
	}
	return types.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      types.RoleUser,
		Content:   text,
		CreatedAt: createdAt,
		Origin:    types.OriginLive,
	}, true
}

// discard drops the pending segment, if any, and reports whether one was
// lost.
func (b *transcriptionBuffer) discard() bool {
	had := b.pending != nil
	b.pending = nil
	return had
}

// pendingText exposes the unconfirmed partial for display purposes.
func (b *transcriptionBuffer) pendingText() (string, bool) {
	if b.pending == nil {
		return "", false
	}
	return b.pending.Text, true
}
