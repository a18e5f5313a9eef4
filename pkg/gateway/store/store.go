// Package store persists sessions, messages, and emotion events in postgres.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/verbalis-ai/verbalis/pkg/core/types"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("store: not found")

type Store struct {
	pool *pgxpool.Pool
}

// Open connects to postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies database connectivity; used by readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies all pending schema migrations. It opens a separate
// database/sql connection because goose does not speak the pgx pool API.
func Migrate(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("store: open for migrate: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("store: set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// CreateSession inserts a new session row.
func (s *Store) CreateSession(ctx context.Context, sess types.Session) (types.Session, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO sessions (id, participant_identity, persona_id, room_name, title, status, created_at, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING created_at, last_activity_at`,
		sess.ID, sess.ParticipantIdentity, sess.PersonaID, sess.RoomName, sess.Title, sess.Status, sess.CreatedAt,
	)
	if err := row.Scan(&sess.CreatedAt, &sess.LastActivityAt); err != nil {
		return types.Session{}, fmt.Errorf("store: create session: %w", err)
	}
	return sess, nil
}

// GetSession loads one session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (types.Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, participant_identity, persona_id, room_name, title, status, created_at, last_activity_at
		FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

// SessionByRoom loads the session that owns a media room.
func (s *Store) SessionByRoom(ctx context.Context, roomName string) (types.Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, participant_identity, persona_id, room_name, title, status, created_at, last_activity_at
		FROM sessions WHERE room_name = $1`, roomName)
	return scanSession(row)
}

// ListSessions returns a participant's sessions, most recently active first.
func (s *Store) ListSessions(ctx context.Context, participantIdentity string) ([]types.Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, participant_identity, persona_id, room_name, title, status, created_at, last_activity_at
		FROM sessions
		WHERE participant_identity = $1
		ORDER BY last_activity_at DESC`, participantIdentity)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var out []types.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// UpdateSessionTitle sets a session's title.
func (s *Store) UpdateSessionTitle(ctx context.Context, id, title string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE sessions SET title = $2 WHERE id = $1`, id, title)
	if err != nil {
		return fmt.Errorf("store: update title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSessionStatus moves a session to a new lifecycle status.
func (s *Store) SetSessionStatus(ctx context.Context, id string, status types.SessionStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE sessions SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("store: set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertMessage stores a finalized turn and bumps the owning session's
// last_activity_at in the same transaction.
func (s *Store) InsertMessage(ctx context.Context, msg types.Message) (types.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.Message{}, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO messages (id, session_id, role, content, sentiment, sentiment_score, metadata, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
		RETURNING created_at`,
		msg.ID, msg.SessionID, msg.Role, msg.Content, msg.Sentiment, msg.SentimentScore, msg.Metadata, msg.CreatedAt,
	)
	if err := row.Scan(&msg.CreatedAt); err != nil {
		return types.Message{}, fmt.Errorf("store: insert message: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE sessions SET last_activity_at = GREATEST(last_activity_at, $2)
		WHERE id = $1`, msg.SessionID, msg.CreatedAt); err != nil {
		return types.Message{}, fmt.Errorf("store: touch session: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return types.Message{}, fmt.Errorf("store: commit: %w", err)
	}
	return msg, nil
}

// ListMessages returns a session's messages in the canonical transcript
// order: ascending created_at, ties broken by id.
func (s *Store) ListMessages(ctx context.Context, sessionID string, limit, offset int) ([]types.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, role, content, COALESCE(sentiment, ''), sentiment_score, metadata, created_at
		FROM messages
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3`, sessionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: list messages: %w", err)
	}
	defer rows.Close()

	var out []types.Message
	for rows.Next() {
		var msg types.Message
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content,
			&msg.Sentiment, &msg.SentimentScore, &msg.Metadata, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// InsertEmotionEvent stores one classification result.
func (s *Store) InsertEmotionEvent(ctx context.Context, ev types.EmotionEvent) (types.EmotionEvent, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO emotion_events (id, session_id, message_id, emotion, confidence, intensity, valence, arousal, context, detected_at)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8, $9, $10)
		RETURNING detected_at`,
		ev.ID, ev.SessionID, ev.MessageID, ev.Emotion, ev.Confidence, ev.Intensity,
		ev.Valence, ev.Arousal, ev.Context, ev.DetectedAt,
	)
	if err := row.Scan(&ev.DetectedAt); err != nil {
		return types.EmotionEvent{}, fmt.Errorf("store: insert emotion event: %w", err)
	}
	return ev, nil
}

// ListEmotionEvents returns a session's events ordered by detection time.
func (s *Store) ListEmotionEvents(ctx context.Context, sessionID string) ([]types.EmotionEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, COALESCE(message_id::text, ''), emotion, confidence, intensity, valence, arousal, context, detected_at
		FROM emotion_events
		WHERE session_id = $1
		ORDER BY detected_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list emotion events: %w", err)
	}
	defer rows.Close()

	var out []types.EmotionEvent
	for rows.Next() {
		var ev types.EmotionEvent
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.MessageID, &ev.Emotion, &ev.Confidence,
			&ev.Intensity, &ev.Valence, &ev.Arousal, &ev.Context, &ev.DetectedAt); err != nil {
			return nil, fmt.Errorf("store: scan emotion event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// RecentEmotionEvents returns the newest events within the window, newest
// first.
func (s *Store) RecentEmotionEvents(ctx context.Context, sessionID string, window time.Duration, limit int) ([]types.EmotionEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, COALESCE(message_id::text, ''), emotion, confidence, intensity, valence, arousal, context, detected_at
		FROM emotion_events
		WHERE session_id = $1 AND detected_at >= $2
		ORDER BY detected_at DESC, id DESC
		LIMIT $3`, sessionID, time.Now().Add(-window), limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent emotion events: %w", err)
	}
	defer rows.Close()

	var out []types.EmotionEvent
	for rows.Next() {
		var ev types.EmotionEvent
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.MessageID, &ev.Emotion, &ev.Confidence,
			&ev.Intensity, &ev.Valence, &ev.Arousal, &ev.Context, &ev.DetectedAt); err != nil {
			return nil, fmt.Errorf("store: scan emotion event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (types.Session, error) {
	var sess types.Session
	err := row.Scan(&sess.ID, &sess.ParticipantIdentity, &sess.PersonaID, &sess.RoomName,
		&sess.Title, &sess.Status, &sess.CreatedAt, &sess.LastActivityAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Session{}, ErrNotFound
	}
	if err != nil {
		return types.Session{}, fmt.Errorf("store: scan session: %w", err)
	}
	return sess, nil
}
