package engine

import (
	"testing"
	"time"

	"github.com/verbalis-ai/verbalis/pkg/core/types"
)

func TestBufferPartialReplacesPending(t *testing.T) {
	var b transcriptionBuffer

	if _, final := b.observe("s1", types.TranscriptSegment{Text: "hel"}); final {
		t.Fatal("partial segment finalized")
	}
	if _, final := b.observe("s1", types.TranscriptSegment{Text: "hello th"}); final {
		t.Fatal("partial segment finalized")
	}

	text, ok := b.pendingText()
	if !ok || text != "hello th" {
		t.Fatalf("pending = %q/%v, want the latest partial", text, ok)
	}
}

func TestBufferFinalPromotesToMessage(t *testing.T) {
	var b transcriptionBuffer
	b.observe("s1", types.TranscriptSegment{Text: "hello th"})

	msg, final := b.observe("s1", types.TranscriptSegment{
		Text:        "  hello there  ",
		IsFinal:     true,
		TimestampMS: 1_750_000_000_000,
	})
	if !final {
		t.Fatal("final segment not promoted")
	}
	if msg.Content != "hello there" {
		t.Fatalf("content = %q, want trimmed text", msg.Content)
	}
	if msg.Role != types.RoleUser || msg.Origin != types.OriginLive {
		t.Fatalf("role/origin = %s/%d, want user/live", msg.Role, msg.Origin)
	}
	if msg.ID == "" || msg.SessionID != "s1" {
		t.Fatalf("id/session = %q/%q", msg.ID, msg.SessionID)
	}
	if want := time.UnixMilli(1_750_000_000_000).UTC(); !msg.CreatedAt.Equal(want) {
		t.Fatalf("created at = %v, want %v", msg.CreatedAt, want)
	}
	if _, ok := b.pendingText(); ok {
		t.Fatal("pending survived finalization")
	}
}

func TestBufferEmptyFinalDropped(t *testing.T) {
	var b transcriptionBuffer
	b.observe("s1", types.TranscriptSegment{Text: "uh"})

	if _, final := b.observe("s1", types.TranscriptSegment{Text: "   ", IsFinal: true}); final {
		t.Fatal("whitespace-only final produced a message")
	}
	if _, ok := b.pendingText(); ok {
		t.Fatal("pending survived an empty final")
	}
}

func TestBufferDiscard(t *testing.T) {
	var b transcriptionBuffer
	if b.discard() {
		t.Fatal("discard on empty buffer reported loss")
	}
	b.observe("s1", types.TranscriptSegment{Text: "half a thou"})
	if !b.discard() {
		t.Fatal("discard did not report the lost pending segment")
	}
	if _, ok := b.pendingText(); ok {
		t.Fatal("pending survived discard")
	}
}

func TestBufferFinalWithoutTimestampUsesNow(t *testing.T) {
	var b transcriptionBuffer
	before := time.Now().UTC()
	msg, final := b.observe("s1", types.TranscriptSegment{Text: "hi", IsFinal: true})
	after := time.Now().UTC()

	if !final {
		t.Fatal("final segment not promoted")
	}
	if msg.CreatedAt.Before(before) || msg.CreatedAt.After(after) {
		t.Fatalf("created at %v outside [%v, %v]", msg.CreatedAt, before, after)
	}
}
