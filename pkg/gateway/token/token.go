// Package token mints and verifies short-lived media room access tokens.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/verbalis-ai/verbalis/pkg/core"
)

// Claims is the payload of a media token. The media server grants access
// to exactly one room per token.
type Claims struct {
	jwt.RegisteredClaims
	Room            string         `json:"room"`
	ParticipantName string         `json:"participant_name,omitempty"`
	AgentName       string         `json:"agent_name,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Issuer signs media tokens with a shared HS256 secret.
type Issuer struct {
	Secret []byte
	TTL    time.Duration
	// WSURL is the media server endpoint handed to clients alongside
	// each token.
	WSURL string
}

// Request describes one token grant.
type Request struct {
	RoomName            string
	ParticipantIdentity string
	ParticipantName     string
	AgentName           string
	Metadata            map[string]any
}

// Issue signs a token granting req.ParticipantIdentity access to
// req.RoomName until the issuer's TTL elapses.
func (i Issuer) Issue(req Request) (string, error) {
	if req.RoomName == "" {
		return "", core.NewInvalidRequestError("room name is required")
	}
	if req.ParticipantIdentity == "" {
		return "", core.NewInvalidRequestError("participant identity is required")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   req.ParticipantIdentity,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.TTL)),
		},
		Room:            req.RoomName,
		ParticipantName: req.ParticipantName,
		AgentName:       req.AgentName,
		Metadata:        req.Metadata,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.Secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a media token.
func (i Issuer) Verify(signed string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(signed, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return i.Secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return Claims{}, core.NewAuthenticationError("invalid media token")
	}
	return claims, nil
}

// RoomName derives a unique room name for a participant's new session.
// The prefix keeps rooms greppable; the timestamp keeps them unique per
// participant.
func RoomName(participantIdentity string, now time.Time) string {
	short := participantIdentity
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("verbalis_%s_%d", short, now.Unix())
}
