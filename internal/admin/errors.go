package admin

import (
	"encoding/json"
	"net/http"
)

// Standard error codes for admin API responses.
const (
	// ErrCodeInvalidRequest indicates a malformed request body.
	ErrCodeInvalidRequest = "invalid_request"

	// ErrCodeInvalidCredentials indicates an invalid or missing token.
	ErrCodeInvalidCredentials = "invalid_credentials"

	// ErrCodeMasterKeyLocked indicates the master credential is not allowed after bootstrap.
	ErrCodeMasterKeyLocked = "master_key_locked"

	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeCannotDeleteLastToken indicates last admin token protection.
	ErrCodeCannotDeleteLastToken = "cannot_delete_last_token"

	// ErrCodeInternalError indicates a server error.
	ErrCodeInternalError = "internal_error"
)

// APIError is the standard error response format for the admin API.
type APIError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// WriteError writes a JSON error response with the given status code, error code, and message.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteErrorWithHint(w, status, code, message, "")
}

// WriteErrorWithHint writes a JSON error response with an optional hint for resolving the error.
func WriteErrorWithHint(w http.ResponseWriter, status int, code, message, hint string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := APIError{
		Error:   code,
		Message: message,
		Hint:    hint,
	}
	// Encoding errors are not critical since headers are already sent
	//nolint:errcheck
	_ = json.NewEncoder(w).Encode(resp)
}
