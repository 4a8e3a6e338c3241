package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sipico/docstore-token-broker/internal/metrics"
	"github.com/sipico/docstore-token-broker/internal/middleware"
)

// maxRequestBody bounds token request bodies. Issuance requests are tiny.
const maxRequestBody = 64 * 1024

// responseAllowlist names the response fields safe to log verbatim at debug
// level. Token strings stay redacted.
var responseAllowlist = []string{
	"userId",
	"partitionKeyValue",
	"tokens",
	"permissionId",
	"url",
	"mode",
	"errorCode",
	"message",
	"orgError",
	"status",
}

// NewRouter creates a Chi router with the public broker endpoints.
func NewRouter(handler *Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Apply middlewares in order
	r.Use(middleware.RequestID)
	r.Use(middleware.HTTPLogging(logger, responseAllowlist))
	r.Use(middleware.MaxBodySize(maxRequestBody))
	r.Use(metrics.Middleware)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", handler.HandleHealth)
	r.Get("/ready", handler.HandleReady)

	r.Get("/token", handler.HandleIssueToken)
	r.Post("/token", handler.HandleIssueToken)

	return r
}
