// Package core holds the shared data model and error taxonomy for the
// Verbalis session synchronization engine and its collaborators.
package core

import "fmt"

// Error is the typed error carried across component boundaries.
type Error struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Param     string    `json:"param,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// Fatal for the session lifecycle: these move the controller to the
	// error state and are surfaced for user-initiated retry. They are
	// never retried automatically, to avoid duplicate session creation.
	ErrProvision        ErrorType = "provision_error"
	ErrTokenIssuance    ErrorType = "token_issuance_error"
	ErrProvisionTimeout ErrorType = "provision_timeout_error"
	ErrConnection       ErrorType = "connection_error"

	// Non-fatal: recorded as diagnostics, never interrupt transcript flow.
	ErrClassification ErrorType = "classification_error"
	ErrHistoryFetch   ErrorType = "history_fetch_error"

	// Generic API surface errors (gateway and clients).
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrAuthentication ErrorType = "authentication_error"
	ErrPermission     ErrorType = "permission_error"
	ErrNotFound       ErrorType = "not_found_error"
	ErrAPI            ErrorType = "api_error"
)

// Fatal reports whether this error type terminates the session lifecycle.
func (t ErrorType) Fatal() bool {
	switch t {
	case ErrProvision, ErrTokenIssuance, ErrProvisionTimeout, ErrConnection:
		return true
	default:
		return false
	}
}

// NewProvisionError wraps a session creation failure.
func NewProvisionError(message string, cause error) *Error {
	return &Error{Type: ErrProvision, Message: message, Cause: cause}
}

// NewTokenIssuanceError wraps a media token failure. The session record
// created before the failure is abandoned, not reused.
func NewTokenIssuanceError(message string, cause error) *Error {
	return &Error{Type: ErrTokenIssuance, Message: message, Cause: cause}
}

// NewProvisionTimeoutError marks a provisioning attempt that exceeded its
// deadline without an answer from the backend.
func NewProvisionTimeoutError(cause error) *Error {
	return &Error{Type: ErrProvisionTimeout, Message: "provisioning timed out", Cause: cause}
}

// NewConnectionError wraps a transport failure after token issuance.
func NewConnectionError(message string, cause error) *Error {
	return &Error{Type: ErrConnection, Message: message, Cause: cause}
}

// NewClassificationError wraps a non-fatal sentiment classification failure.
func NewClassificationError(message string, cause error) *Error {
	return &Error{Type: ErrClassification, Message: message, Cause: cause}
}

// NewHistoryFetchError wraps a failed archived-session fetch.
func NewHistoryFetchError(message string, cause error) *Error {
	return &Error{Type: ErrHistoryFetch, Message: message, Cause: cause}
}

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{Type: ErrAuthentication, Message: message}
}

// NewPermissionError creates a permission error.
func NewPermissionError(message string) *Error {
	return &Error{Type: ErrPermission, Message: message}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *Error {
	return &Error{Type: ErrNotFound, Message: message}
}

// NewAPIError creates a generic API error.
func NewAPIError(message string) *Error {
	return &Error{Type: ErrAPI, Message: message}
}
