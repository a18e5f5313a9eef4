package token

import (
	"strings"
	"testing"
	"time"
)

func testIssuer() Issuer {
	return Issuer{Secret: []byte("test-secret"), TTL: time.Minute, WSURL: "wss://media.test"}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	i := testIssuer()
	signed, err := i.Issue(Request{
		RoomName:            "verbalis_u1_100",
		ParticipantIdentity: "u1",
		ParticipantName:     "Uma",
		AgentName:           "agent-1",
		Metadata:            map[string]any{"session_id": "s1"},
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := i.Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Room != "verbalis_u1_100" || claims.Subject != "u1" {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.ParticipantName != "Uma" || claims.AgentName != "agent-1" {
		t.Fatalf("names = %q/%q", claims.ParticipantName, claims.AgentName)
	}
	if claims.Metadata["session_id"] != "s1" {
		t.Fatalf("metadata = %v", claims.Metadata)
	}
	if claims.ExpiresAt == nil || time.Until(claims.ExpiresAt.Time) > time.Minute {
		t.Fatalf("expiry = %v, want within TTL", claims.ExpiresAt)
	}
}

func TestIssueValidation(t *testing.T) {
	i := testIssuer()
	if _, err := i.Issue(Request{ParticipantIdentity: "u1"}); err == nil {
		t.Fatal("issue without room succeeded")
	}
	if _, err := i.Issue(Request{RoomName: "r"}); err == nil {
		t.Fatal("issue without participant succeeded")
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signed, err := testIssuer().Issue(Request{RoomName: "r", ParticipantIdentity: "u1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	other := Issuer{Secret: []byte("different"), TTL: time.Minute}
	if _, err := other.Verify(signed); err == nil {
		t.Fatal("token verified with the wrong secret")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	short := Issuer{Secret: []byte("test-secret"), TTL: -time.Minute}
	signed, err := short.Issue(Request{RoomName: "r", ParticipantIdentity: "u1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := short.Verify(signed); err == nil {
		t.Fatal("expired token verified")
	}
}

func TestRoomName(t *testing.T) {
	now := time.Unix(1_750_000_000, 0)
	got := RoomName("user_2abcdefghij", now)
	want := "verbalis_user_2ab_1750000000"
	if got != want {
		t.Fatalf("room name = %q, want %q", got, want)
	}

	short := RoomName("u1", now)
	if !strings.HasPrefix(short, "verbalis_u1_") {
		t.Fatalf("room name = %q, want short identity kept whole", short)
	}
}
