package admin

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates the admin router. The caller mounts it under /admin.
func (h *Handler) NewRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Recoverer)

	// Admin API (token auth)
	r.Route("/api", func(r chi.Router) {
		r.Use(h.TokenAuthMiddleware)

		r.Get("/whoami", h.HandleWhoami)

		r.Get("/tokens", h.HandleListTokens)
		r.Post("/tokens", h.HandleCreateToken)
		r.Delete("/tokens/{id}", h.HandleDeleteToken)

		r.Get("/grants", h.HandleListGrants)
	})

	return r
}
