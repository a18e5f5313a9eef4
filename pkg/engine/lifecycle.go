package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/verbalis-ai/verbalis/pkg/core"
	"github.com/verbalis-ai/verbalis/pkg/core/types"
	"github.com/verbalis-ai/verbalis/pkg/transport"
)

// Engine is the session lifecycle controller. It owns the session state
// machine, reconciles message sources through the merge engine, buffers
// partial transcription, drives the emotion pipeline, and exposes the
// history selector.
type Engine struct {
	cfg    Config
	logger *slog.Logger
	prov   Provisioner

	ops       chan func()
	closed    chan struct{}
	closeOnce sync.Once
	events    chan Event

	// Loop-owned state. No locks: every mutation happens on the loop
	// goroutine, async completions re-enter it via post.
	status          types.SessionStatus
	lastErr         error
	session         types.Session
	token           MediaToken
	conn            Conn
	provisionCancel context.CancelFunc
	sessionGen      uint64
	selectGen       uint64
	archivedID      string
	archived        []types.Message
	merge           *mergeEngine
	buffer          transcriptionBuffer
	aggregate       types.EmotionAggregate
	titleSet        bool
}

// New builds an engine and starts its event loop.
func New(cfg Config) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:    cfg,
		logger: cfg.Logger,
		prov: Provisioner{
			Backend:   cfg.Backend,
			Identity:  cfg.Identity,
			AgentName: cfg.AgentName,
		},
		ops:    make(chan func(), 128),
		closed: make(chan struct{}),
		events: make(chan Event, 256),
		status: types.StatusIdle,
		merge:  newMergeEngine(cfg.DedupWindow),
	}
	go e.loop()
	return e
}

func (e *Engine) loop() {
	for {
		select {
		case op := <-e.ops:
			op()
			select {
			case <-e.closed:
				return
			default:
			}
		case <-e.closed:
			return
		}
	}
}

func (e *Engine) post(op func()) bool {
	select {
	case e.ops <- op:
		return true
	case <-e.closed:
		return false
	}
}

// Close shuts the engine down, disconnecting any live transport.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		done := make(chan struct{})
		posted := e.post(func() {
			e.shutdownLocked()
			close(e.closed)
			close(done)
		})
		if posted {
			<-done
		}
	})
}

func (e *Engine) shutdownLocked() {
	if e.provisionCancel != nil {
		e.provisionCancel()
		e.provisionCancel = nil
	}
	if e.conn != nil {
		conn := e.conn
		e.conn = nil
		go conn.Disconnect()
	}
	close(e.events)
}

// Events yields engine notifications. Slow consumers lose events rather
// than stall the loop.
func (e *Engine) Events() <-chan Event {
	return e.events
}

func (e *Engine) emit(event Event) {
	select {
	case e.events <- event:
	default:
		e.logger.Warn("engine event dropped", "type", event.engineEventType())
	}
}

// Start begins provisioning from idle. Calls while a provisioning attempt
// is already outstanding collapse onto it: only one session-creation call
// is ever in flight. From the error or ended state a Start is a fresh
// attempt and discards the previous session view first. Outcomes surface
// through Events and Status; after a failure the caller retries with
// another explicit Start.
func (e *Engine) Start() {
	e.post(func() { e.startLocked() })
}

func (e *Engine) startLocked() {
	switch e.status {
	case types.StatusProvisioning, types.StatusActive, types.StatusEnding:
		return
	case types.StatusError, types.StatusEnded:
		e.resetLocked()
	}
	if e.conn != nil {
		// A connection left behind by NewChat has no session view that
		// can reach it anymore; a fresh start supersedes it.
		conn := e.conn
		e.conn = nil
		go conn.Disconnect()
	}

	e.setStatus(types.StatusProvisioning, nil)
	gen := e.sessionGen
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.ProvisionTimeout)
	e.provisionCancel = cancel
	go func() {
		defer cancel()
		res, err := e.prov.Provision(ctx, e.cfg.PersonaID)
		e.post(func() { e.handleProvisioned(gen, res, err) })
	}()
}

func (e *Engine) handleProvisioned(gen uint64, res Provisioned, err error) {
	if gen != e.sessionGen || e.status != types.StatusProvisioning {
		return
	}
	e.provisionCancel = nil
	if err != nil {
		e.failLocked(err)
		return
	}

	e.session = res.Session
	e.session.Status = types.StatusProvisioning
	e.token = res.Token
	e.logger.Info("session provisioned",
		"session_id", res.Session.ID, "room", res.Session.RoomName)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.ProvisionTimeout)
		defer cancel()
		conn, cerr := e.cfg.Transport.Connect(ctx, res.Token.Token, res.Token.WSURL)
		e.post(func() { e.handleConnected(gen, conn, cerr) })
	}()
}

func (e *Engine) handleConnected(gen uint64, conn Conn, err error) {
	if gen != e.sessionGen || e.status != types.StatusProvisioning {
		if conn != nil {
			go conn.Disconnect()
		}
		return
	}
	if err != nil {
		e.failLocked(core.NewConnectionError("transport connect failed", err))
		return
	}

	e.conn = conn
	e.session.LastActivityAt = time.Now().UTC()
	e.setStatus(types.StatusActive, nil)
	go e.pump(conn, gen)
	e.fetchLiveHistory(gen)
}

func (e *Engine) pump(conn Conn, gen uint64) {
	for event := range conn.Events() {
		event := event
		if !e.post(func() { e.handleTransportEvent(conn, gen, event) }) {
			return
		}
	}
}

func (e *Engine) handleTransportEvent(conn Conn, gen uint64, event transport.Event) {
	if conn != e.conn {
		return
	}
	if gen != e.sessionGen {
		// The session view moved on (new chat); the lingering connection
		// only needs its teardown acknowledged.
		if _, ended := event.(transport.DisconnectedEvent); ended {
			e.conn = nil
		}
		return
	}

	switch ev := event.(type) {
	case transport.ConnectedEvent:
		e.logger.Debug("transport room joined", "room", ev.RoomName)

	case transport.SegmentEvent:
		msg, finalized := e.buffer.observe(e.session.ID, ev.Segment)
		if finalized {
			e.ingestLive(msg)
		}

	case transport.AgentMessageEvent:
		e.ingestLive(agentMessage(e.session.ID, ev))

	case transport.MutedEvent:
		if e.buffer.discard() {
			e.logger.Debug("pending transcription discarded on mute")
		}

	case transport.DisconnectedEvent:
		e.conn = nil
		if e.buffer.discard() {
			e.logger.Debug("pending transcription discarded on disconnect")
		}
		if ev.Err != nil && e.status == types.StatusActive {
			e.failLocked(core.NewConnectionError("transport connection lost", ev.Err))
			return
		}
		if e.status == types.StatusActive {
			e.setStatus(types.StatusEnding, nil)
		}
		if e.status == types.StatusEnding {
			e.setStatus(types.StatusEnded, nil)
		}
	}
}

func agentMessage(sessionID string, ev transport.AgentMessageEvent) types.Message {
	createdAt := time.Now().UTC()
	if ev.TimestampMS > 0 {
		createdAt = time.UnixMilli(ev.TimestampMS).UTC()
	}
	return types.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      types.RoleAssistant,
		Content:   ev.Text,
		CreatedAt: createdAt,
		Origin:    types.OriginLive,
	}
}

func (e *Engine) ingestLive(msg types.Message) {
	if msg.Content == "" || !e.merge.add(msg) {
		return
	}
	e.session.LastActivityAt = time.Now().UTC()
	e.flushRendered()
	if msg.Role == types.RoleUser {
		e.maybeSetTitle(msg)
		e.classifyAsync(msg)
	}
}

// flushRendered exposes newly merged messages. Events are only emitted
// while the live view is selected; merging continues regardless so the
// view is current when the selector switches back.
func (e *Engine) flushRendered() {
	fresh := e.merge.sync()
	if e.archivedID != "" {
		return
	}
	for _, msg := range fresh {
		e.emit(TranscriptAppendedEvent{Message: msg})
	}
}

func (e *Engine) fetchLiveHistory(gen uint64) {
	sessionID := e.session.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.ProvisionTimeout)
		defer cancel()
		msgs, err := e.cfg.Backend.ListMessages(ctx, sessionID, e.cfg.HistoryPageSize, 0)
		e.post(func() { e.handleLiveHistory(gen, msgs, err) })
	}()
}

func (e *Engine) handleLiveHistory(gen uint64, msgs []types.Message, err error) {
	if gen != e.sessionGen {
		return
	}
	if err != nil {
		e.diagnostic("history_fetch", core.NewHistoryFetchError("live history fetch failed", err))
		return
	}
	for _, msg := range normalizeHistory(msgs) {
		e.merge.add(msg)
	}
	e.flushRendered()
}

// Disconnect ends the live session: active -> ending -> ended. Any
// pending non-final transcription is flushed as lost, not persisted.
func (e *Engine) Disconnect() {
	e.post(func() { e.disconnectLocked() })
}

func (e *Engine) disconnectLocked() {
	if e.conn == nil {
		return
	}
	if e.buffer.discard() {
		e.logger.Debug("pending transcription discarded on disconnect")
	}
	if e.status == types.StatusActive {
		e.setStatus(types.StatusEnding, nil)
	}
	conn := e.conn
	go conn.Disconnect()
}

// Reset returns the engine to idle from any state: cancels in-flight
// provisioning, disconnects the transport, and discards merge and
// transcription state. Idempotent.
func (e *Engine) Reset() {
	e.post(func() { e.resetLocked() })
}

func (e *Engine) resetLocked() {
	e.sessionGen++
	e.selectGen++
	if e.provisionCancel != nil {
		e.provisionCancel()
		e.provisionCancel = nil
	}
	if e.conn != nil {
		conn := e.conn
		e.conn = nil
		go conn.Disconnect()
	}
	e.merge.reset()
	e.buffer.discard()
	e.aggregate = types.EmotionAggregate{}
	e.session = types.Session{}
	e.token = MediaToken{}
	e.lastErr = nil
	e.titleSet = false
	e.archivedID = ""
	e.archived = nil
	if e.status != types.StatusIdle {
		e.setStatus(types.StatusIdle, nil)
	}
	e.emit(TranscriptReplacedEvent{})
}

func (e *Engine) failLocked(err error) {
	e.lastErr = err
	if e.provisionCancel != nil {
		e.provisionCancel()
		e.provisionCancel = nil
	}
	if e.conn != nil {
		conn := e.conn
		e.conn = nil
		go conn.Disconnect()
	}
	e.buffer.discard()
	e.logger.Error("session failed", "error", err)
	e.setStatus(types.StatusError, err)
}

func (e *Engine) setStatus(status types.SessionStatus, err error) {
	e.status = status
	if e.session.ID != "" {
		e.session.Status = status
	}
	e.emit(StatusEvent{Status: status, Err: err})
}

func (e *Engine) diagnostic(op string, err error) {
	e.logger.Warn("non-fatal failure", "op", op, "error", err)
	e.emit(DiagnosticEvent{Op: op, Err: err})
}

func (e *Engine) maybeSetTitle(msg types.Message) {
	if e.titleSet || e.session.ID == "" {
		return
	}
	e.titleSet = true
	title := truncateTitle(msg.Content, defaultTitleLimit)
	sessionID := e.session.ID
	e.session.Title = title
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.ProvisionTimeout)
		defer cancel()
		if err := e.cfg.Backend.UpdateSessionTitle(ctx, sessionID, title); err != nil {
			e.post(func() {
				e.diagnostic("session_title", err)
			})
		}
	}()
}

func truncateTitle(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func (e *Engine) classifyAsync(msg types.Message) {
	if e.cfg.Classifier == nil {
		return
	}
	gen := e.sessionGen
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.ClassifyTimeout)
		defer cancel()

		res, err := e.cfg.Classifier.Classify(ctx, msg.Content)
		if err != nil {
			e.post(func() {
				e.diagnostic("classification",
					core.NewClassificationError("classifying turn failed", err))
			})
			return
		}

		va := res.Emotion.Circumplex()
		event := types.EmotionEvent{
			ID:         uuid.NewString(),
			SessionID:  msg.SessionID,
			MessageID:  msg.ID,
			Emotion:    res.Emotion,
			Confidence: res.Confidence,
			Intensity:  res.Intensity,
			Valence:    va.Valence,
			Arousal:    va.Arousal,
			DetectedAt: time.Now().UTC(),
		}.Normalize()

		// Neutral turns are not worth a persisted event; everything else
		// is recorded best-effort. A record failure downgrades to a
		// diagnostic and the local annotation still lands.
		if event.Emotion != types.EmotionNeutral {
			recorded, rerr := e.cfg.Backend.RecordEmotionEvent(ctx, event)
			if rerr != nil {
				e.post(func() {
					e.diagnostic("emotion_record",
						core.NewClassificationError("recording emotion event failed", rerr))
				})
			} else if recorded.ID != "" {
				event = recorded.Normalize()
			}
		}

		e.post(func() { e.handleEmotion(gen, msg.ID, event) })
	}()
}

func (e *Engine) handleEmotion(gen uint64, messageID string, event types.EmotionEvent) {
	if gen != e.sessionGen {
		return
	}
	e.merge.attachSentiment(messageID, event.Emotion, event.Confidence)
	e.aggregate.Observe(event)
	e.emit(EmotionRecordedEvent{Event: event, Aggregate: copyAggregate(e.aggregate)})
}

func copyAggregate(a types.EmotionAggregate) types.EmotionAggregate {
	counts := make(map[types.Emotion]int, len(a.Counts))
	for k, v := range a.Counts {
		counts[k] = v
	}
	a.Counts = counts
	return a
}
