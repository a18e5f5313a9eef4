package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signAccessToken(t *testing.T, secret []byte, claims accessClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func TestParseBearer(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"", "", false},
		{"abc", "", false},
	}
	for _, tt := range tests {
		r, _ := http.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		token, ok := ParseBearer(r)
		if token != tt.token || ok != tt.ok {
			t.Errorf("ParseBearer(%q) = %q/%v, want %q/%v", tt.header, token, ok, tt.token, tt.ok)
		}
	}
}

func TestHMACVerifier(t *testing.T) {
	secret := []byte("shared-secret")
	v := HMACVerifier{Secret: secret}

	signed := signAccessToken(t, secret, accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		Email:         "u1@example.com",
		EmailVerified: true,
	})

	p, err := v.Verify(context.Background(), signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if p.UserID != "u1" || p.Email != "u1@example.com" || !p.EmailVerified {
		t.Fatalf("principal = %+v", p)
	}
}

func TestHMACVerifierRejections(t *testing.T) {
	secret := []byte("shared-secret")
	v := HMACVerifier{Secret: secret}

	expired := signAccessToken(t, secret, accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	if _, err := v.Verify(context.Background(), expired); err == nil {
		t.Fatal("expired token verified")
	}

	wrongKey := signAccessToken(t, []byte("other"), accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	})
	if _, err := v.Verify(context.Background(), wrongKey); err == nil {
		t.Fatal("token with wrong key verified")
	}

	noSubject := signAccessToken(t, secret, accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	if _, err := v.Verify(context.Background(), noSubject); err == nil {
		t.Fatal("token without subject verified")
	}

	if _, err := v.Verify(context.Background(), "not-a-jwt"); err == nil {
		t.Fatal("garbage token verified")
	}
}

func TestPrincipalContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := PrincipalFrom(ctx); ok {
		t.Fatal("principal in empty context")
	}
	want := Principal{UserID: "u1"}
	got, ok := PrincipalFrom(WithPrincipal(ctx, want))
	if !ok || got != want {
		t.Fatalf("principal = %+v/%v", got, ok)
	}
}
