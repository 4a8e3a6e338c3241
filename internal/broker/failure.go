package broker

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sipico/docstore-token-broker/internal/docstore"
)

// Failure kinds, used as the metrics label for failed issuances.
const (
	KindAuth         = "auth"
	KindConnectivity = "connectivity"
	KindRemote       = "remote"
	KindUnknown      = "unknown"
)

// Failure is a classified issuance error. Code mirrors HTTP status semantics
// and becomes the response status at the boundary. The original error is kept
// for diagnostics only; it never alters control flow past classification.
type Failure struct {
	Code    int
	Kind    string
	Message string
	Err     error
}

// Error implements the error interface for Failure.
func (f *Failure) Error() string {
	return fmt.Sprintf("issuance failed (%d): %s", f.Code, f.Message)
}

// Unwrap returns the original error behind the classification.
func (f *Failure) Unwrap() error {
	return f.Err
}

// classify maps a control-plane error onto the closed set of failure kinds.
//
//   - 401 from the store: the configured master credential was rejected.
//   - no response at all: the endpoint is unreachable, normalized to 404 so
//     misconfigured endpoints surface distinctly from credential problems.
//   - any other store-reported error: pass its code and message through.
//   - anything else: 500 with a generic message.
func classify(err error) *Failure {
	var connErr *docstore.ConnectionError
	var apiErr *docstore.APIError

	switch {
	case errors.Is(err, docstore.ErrUnauthorized):
		return &Failure{
			Code:    http.StatusUnauthorized,
			Kind:    KindAuth,
			Message: "invalid master credential: the data store rejected the configured master key",
			Err:     err,
		}
	case errors.Is(err, docstore.ErrNotFound):
		return &Failure{
			Code:    http.StatusNotFound,
			Kind:    KindRemote,
			Message: "a required resource was not found in the data store",
			Err:     err,
		}
	case errors.Is(err, docstore.ErrConflict):
		return &Failure{
			Code:    http.StatusConflict,
			Kind:    KindRemote,
			Message: "a conflicting resource already exists in the data store",
			Err:     err,
		}
	case errors.As(err, &connErr):
		return &Failure{
			Code:    http.StatusNotFound,
			Kind:    KindConnectivity,
			Message: fmt.Sprintf("data store endpoint %s is unreachable: check the configured endpoint", connErr.Endpoint),
			Err:     err,
		}
	case errors.As(err, &apiErr):
		msg := apiErr.Message
		if msg == "" {
			msg = "the data store reported an error"
		}
		return &Failure{
			Code:    apiErr.StatusCode,
			Kind:    KindRemote,
			Message: msg,
			Err:     err,
		}
	default:
		return &Failure{
			Code:    http.StatusInternalServerError,
			Kind:    KindUnknown,
			Message: "token issuance failed",
			Err:     err,
		}
	}
}
