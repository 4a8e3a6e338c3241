package docstore

import (
	"errors"
	"fmt"
)

// Sentinel errors for common control-plane error cases.
var (
	ErrUnauthorized = errors.New("docstore: unauthorized (master key rejected)")
	ErrNotFound     = errors.New("docstore: resource not found")
	ErrConflict     = errors.New("docstore: resource already exists")
)

// APIError represents a structured error reported by the control plane.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("docstore: %s (status %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("docstore: request failed (status %d): %s", e.StatusCode, e.Message)
}

// ConnectionError wraps a transport-level failure where no HTTP response was
// received from the endpoint at all. Callers use it to distinguish an
// unreachable endpoint from an error the store reported.
type ConnectionError struct {
	Endpoint string
	Err      error
}

// Error implements the error interface for ConnectionError.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("docstore: endpoint %s unreachable: %v", e.Endpoint, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}
