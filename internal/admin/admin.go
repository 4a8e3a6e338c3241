// Package admin provides the operator API for the token broker.
package admin

import (
	"context"
	"log/slog"

	"github.com/sipico/docstore-token-broker/internal/auth"
	"github.com/sipico/docstore-token-broker/internal/storage"
)

// Handler provides admin endpoints
type Handler struct {
	storage   Storage
	validator *auth.Validator
	bootstrap *auth.BootstrapService
	logger    *slog.Logger
}

// Storage interface for admin operations
type Storage interface {
	// Grant audit
	ListGrants(ctx context.Context, userID string, limit int) ([]storage.Grant, error)

	// Admin token operations
	CreateAdminToken(ctx context.Context, name, tokenHash string) (*storage.AdminToken, error)
	ListAdminTokens(ctx context.Context) ([]storage.AdminToken, error)
	GetAdminToken(ctx context.Context, id int64) (*storage.AdminToken, error)
	DeleteAdminToken(ctx context.Context, id int64) error
	HasAnyAdminToken(ctx context.Context) (bool, error)
}

// NewHandler creates an admin handler.
// If logger is nil, slog.Default() will be used.
func NewHandler(store Storage, bootstrap *auth.BootstrapService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		storage:   store,
		validator: auth.NewValidator(store),
		bootstrap: bootstrap,
		logger:    logger,
	}
}
