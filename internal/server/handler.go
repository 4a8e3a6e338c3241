// Package server implements the public HTTP surface of the token broker.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sipico/docstore-token-broker/internal/broker"
)

// IssuerService is the issuance operation the handler depends on.
// This interface enables testing with fake implementations.
type IssuerService interface {
	Issue(ctx context.Context, userID, partitionKeyValue string) (*broker.TokenResponse, error)
}

// Pinger checks readiness of a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler handles token issuance requests.
type Handler struct {
	issuer IssuerService
	db     Pinger
	logger *slog.Logger
}

// NewHandler creates a new server handler.
// db may be nil if no readiness probe is wanted.
// If logger is nil, slog.Default() will be used.
func NewHandler(issuer IssuerService, db Pinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		issuer: issuer,
		db:     db,
		logger: logger,
	}
}

// ErrorResponse is the JSON body of every failed issuance request.
// Tokens is always present and always empty, mirroring the success shape.
type ErrorResponse struct {
	ErrorCode int                     `json:"errorCode"`
	Message   string                  `json:"message"`
	OrgError  string                  `json:"orgError"`
	Tokens    map[string]broker.Token `json:"tokens"`
}

// tokenRequest is the JSON request body accepted by the token endpoint.
type tokenRequest struct {
	UserID            string `json:"userId"`
	PartitionKeyValue string `json:"partitionKeyValue"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log encoding errors but don't fail the response
		slog.Default().Error("failed to encode JSON response", "error", err)
	}
}

// writeFailure writes the uniform error body for an issuance failure.
func writeFailure(w http.ResponseWriter, code int, message, orgError string) {
	writeJSON(w, code, &ErrorResponse{
		ErrorCode: code,
		Message:   message,
		OrgError:  orgError,
		Tokens:    map[string]broker.Token{},
	})
}

// HandleIssueToken issues scoped tokens for a user.
//
// GET /token?userId=...&partitionKeyValue=...
// POST /token with {"userId": ..., "partitionKeyValue": ...}
//
// Query parameters win over body fields. A missing or empty userId is
// rejected locally with 400 before any remote call is made.
func (h *Handler) HandleIssueToken(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	partitionKeyValue := r.URL.Query().Get("partitionKeyValue")

	if r.Body != nil && (userID == "" || partitionKeyValue == "") {
		var req tokenRequest
		// A missing or malformed body is fine as long as the query
		// supplied what we need; validation below catches the rest.
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			if userID == "" {
				userID = req.UserID
			}
			if partitionKeyValue == "" {
				partitionKeyValue = req.PartitionKeyValue
			}
		}
	}

	if userID == "" {
		writeFailure(w, http.StatusBadRequest, "userId is required", "")
		return
	}

	resp, err := h.issuer.Issue(r.Context(), userID, partitionKeyValue)
	if err != nil {
		var failure *broker.Failure
		if errors.As(err, &failure) {
			code := failure.Code
			if code < 100 || code > 599 {
				code = http.StatusInternalServerError
			}
			orgError := ""
			if failure.Err != nil {
				orgError = failure.Err.Error()
			}
			writeFailure(w, code, failure.Message, orgError)
			return
		}
		h.logger.Error("unclassified issuance error", "error", err)
		writeFailure(w, http.StatusInternalServerError, "token issuance failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleHealth returns OK if the process is alive.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady returns OK if the service is ready to serve requests.
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			h.logger.Error("readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
