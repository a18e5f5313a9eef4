// Package apierror renders typed errors as the gateway's JSON error envelope.
package apierror

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/verbalis-ai/verbalis/pkg/core"
)

// Envelope is the wire shape of every gateway error response.
type Envelope struct {
	Error *core.Error `json:"error"`
}

// FromError coerces any error into a typed core.Error. Unknown errors become
// generic API errors so internals never leak to clients.
func FromError(err error) *core.Error {
	var ce *core.Error
	if errors.As(err, &ce) {
		return ce
	}
	return core.NewAPIError("internal error")
}

func StatusFromType(t core.ErrorType) int {
	switch t {
	case core.ErrInvalidRequest:
		return http.StatusBadRequest
	case core.ErrAuthentication:
		return http.StatusUnauthorized
	case core.ErrPermission:
		return http.StatusForbidden
	case core.ErrNotFound:
		return http.StatusNotFound
	case core.ErrClassification:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Write renders err as a JSON envelope with the status implied by its type.
func Write(w http.ResponseWriter, requestID string, err error) {
	ce := *FromError(err)
	if ce.RequestID == "" {
		ce.RequestID = requestID
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusFromType(ce.Type))
	_ = json.NewEncoder(w).Encode(Envelope{Error: &ce})
}
