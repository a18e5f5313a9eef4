package engine

import (
	"context"

	"github.com/verbalis-ai/verbalis/pkg/core"
	"github.com/verbalis-ai/verbalis/pkg/core/types"
)

// SelectArchivedSession swaps the consumer-facing sequence to a read-only
// view of a past session. Every selection bumps the selection generation;
// the fetch result is applied only if its generation is still current, so
// a late response for an abandoned selection can never overwrite the
// displayed sequence.
func (e *Engine) SelectArchivedSession(sessionID string) {
	e.post(func() { e.selectArchivedLocked(sessionID) })
}

func (e *Engine) selectArchivedLocked(sessionID string) {
	if sessionID == "" {
		e.selectLiveLocked()
		return
	}
	e.selectGen++
	gen := e.selectGen
	e.archivedID = sessionID
	e.archived = nil
	e.emit(SelectionChangedEvent{Archived: sessionID})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.ProvisionTimeout)
		defer cancel()
		msgs, err := e.cfg.Backend.ListMessages(ctx, sessionID, e.cfg.HistoryPageSize, 0)
		e.post(func() { e.handleArchived(gen, sessionID, msgs, err) })
	}()
}

func (e *Engine) handleArchived(gen uint64, sessionID string, msgs []types.Message, err error) {
	if gen != e.selectGen || e.archivedID != sessionID {
		// Superseded: last request wins.
		return
	}
	if err != nil {
		e.diagnostic("history_fetch",
			core.NewHistoryFetchError("archived session fetch failed", err))
		return
	}
	e.archived = normalizeHistory(msgs)
	e.emit(TranscriptReplacedEvent{Messages: snapshotMessages(e.archived)})
}

// SelectLive swaps the consumer-facing sequence back to the merged live
// transcript.
func (e *Engine) SelectLive() {
	e.post(func() { e.selectLiveLocked() })
}

func (e *Engine) selectLiveLocked() {
	e.selectGen++
	if e.archivedID == "" {
		return
	}
	e.archivedID = ""
	e.archived = nil
	e.emit(SelectionChangedEvent{})
	e.emit(TranscriptReplacedEvent{Messages: e.merge.snapshot()})
}

// NewChat atomically clears any archived selection and returns the
// lifecycle to idle for a fresh conversation. An already-active live
// transport is deliberately left connected; ending it requires an
// explicit Disconnect from the caller.
func (e *Engine) NewChat() {
	e.post(func() { e.newChatLocked() })
}

func (e *Engine) newChatLocked() {
	e.selectGen++
	e.archivedID = ""
	e.archived = nil
	e.emit(SelectionChangedEvent{})

	if e.conn == nil {
		e.resetLocked()
		return
	}

	// Detach the session view but keep the connection. Bumping the
	// session generation makes every in-flight completion and further
	// transport event stale.
	e.sessionGen++
	if e.provisionCancel != nil {
		e.provisionCancel()
		e.provisionCancel = nil
	}
	e.merge.reset()
	e.buffer.discard()
	e.aggregate = types.EmotionAggregate{}
	e.session = types.Session{}
	e.token = MediaToken{}
	e.lastErr = nil
	e.titleSet = false
	e.setStatus(types.StatusIdle, nil)
	e.emit(TranscriptReplacedEvent{})
}

// Status returns the current lifecycle state.
func (e *Engine) Status() types.SessionStatus {
	out := make(chan types.SessionStatus, 1)
	if !e.post(func() { out <- e.status }) {
		return types.StatusEnded
	}
	return <-out
}

// Err returns the root cause while the engine is in the error state.
func (e *Engine) Err() error {
	out := make(chan error, 1)
	if !e.post(func() { out <- e.lastErr }) {
		return nil
	}
	return <-out
}

// Session returns a snapshot of the current session record.
func (e *Engine) Session() types.Session {
	out := make(chan types.Session, 1)
	if !e.post(func() { out <- e.session }) {
		return types.Session{}
	}
	return <-out
}

// Transcript returns the currently displayed message sequence: the merged
// live transcript, or the archived session when one is selected.
func (e *Engine) Transcript() []types.Message {
	out := make(chan []types.Message, 1)
	if !e.post(func() {
		if e.archivedID != "" {
			out <- snapshotMessages(e.archived)
			return
		}
		out <- e.merge.snapshot()
	}) {
		return nil
	}
	return <-out
}

// PendingTranscription exposes the unconfirmed partial segment, if any.
func (e *Engine) PendingTranscription() (string, bool) {
	type pending struct {
		text string
		ok   bool
	}
	out := make(chan pending, 1)
	if !e.post(func() {
		text, ok := e.buffer.pendingText()
		out <- pending{text, ok}
	}) {
		return "", false
	}
	p := <-out
	return p.text, p.ok
}

// Aggregate returns the running emotion statistics for the live session.
func (e *Engine) Aggregate() types.EmotionAggregate {
	out := make(chan types.EmotionAggregate, 1)
	if !e.post(func() { out <- copyAggregate(e.aggregate) }) {
		return types.EmotionAggregate{}
	}
	return <-out
}

// ArchivedSelection returns the archived session id, empty for live.
func (e *Engine) ArchivedSelection() string {
	out := make(chan string, 1)
	if !e.post(func() { out <- e.archivedID }) {
		return ""
	}
	return <-out
}

func snapshotMessages(msgs []types.Message) []types.Message {
	out := make([]types.Message, len(msgs))
	copy(out, msgs)
	return out
}
