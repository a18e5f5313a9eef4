package apierror

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/verbalis-ai/verbalis/pkg/core"
)

func TestFromErrorPassesTypedThrough(t *testing.T) {
	typed := core.NewNotFoundError("session not found")
	if got := FromError(typed); got != typed {
		t.Fatalf("FromError returned %v, want the original", got)
	}

	wrapped := core.NewInvalidRequestError("bad persona")
	if got := FromError(errors.Join(wrapped, errors.New("extra"))); got.Type != core.ErrInvalidRequest {
		t.Fatalf("wrapped type = %s", got.Type)
	}
}

func TestFromErrorHidesUnknown(t *testing.T) {
	got := FromError(errors.New("pq: connection refused"))
	if got.Type != core.ErrAPI || got.Message != "internal error" {
		t.Fatalf("got = %+v, internals must not leak", got)
	}
}

func TestStatusFromType(t *testing.T) {
	tests := []struct {
		typ  core.ErrorType
		want int
	}{
		{core.ErrInvalidRequest, http.StatusBadRequest},
		{core.ErrAuthentication, http.StatusUnauthorized},
		{core.ErrPermission, http.StatusForbidden},
		{core.ErrNotFound, http.StatusNotFound},
		{core.ErrClassification, http.StatusServiceUnavailable},
		{core.ErrAPI, http.StatusInternalServerError},
		{core.ErrProvision, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFromType(tt.typ); got != tt.want {
			t.Errorf("StatusFromType(%s) = %d, want %d", tt.typ, got, tt.want)
		}
	}
}

func TestWriteEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, "req-1", core.NewNotFoundError("session not found"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}

	var envelope Envelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Error.Type != core.ErrNotFound || envelope.Error.RequestID != "req-1" {
		t.Fatalf("envelope = %+v", envelope.Error)
	}
}

func TestWriteDoesNotMutateSharedError(t *testing.T) {
	shared := core.NewAuthenticationError("not authenticated")
	Write(httptest.NewRecorder(), "req-9", shared)
	if shared.RequestID != "" {
		t.Fatalf("shared error mutated: request id = %q", shared.RequestID)
	}
}
