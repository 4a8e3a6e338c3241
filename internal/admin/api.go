package admin

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sipico/docstore-token-broker/internal/auth"
	"github.com/sipico/docstore-token-broker/internal/storage"
)

// generateRandomToken generates a random token as a hex string.
func generateRandomToken() (string, error) {
	// 32 random bytes (256 bits) for a secure token
	token := make([]byte, 32)
	if _, err := rand.Read(token); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(token), nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck
	_ = json.NewEncoder(w).Encode(data)
}

// whoamiResponse describes the authenticated caller.
type whoamiResponse struct {
	AuthMethod string `json:"authMethod"`
	TokenName  string `json:"tokenName,omitempty"`
}

// HandleWhoami reports how the current request was authenticated.
func (h *Handler) HandleWhoami(w http.ResponseWriter, r *http.Request) {
	if auth.IsMasterKeyFromContext(r.Context()) {
		writeJSON(w, http.StatusOK, whoamiResponse{AuthMethod: "master_key"})
		return
	}
	info := auth.TokenInfoFromContext(r.Context())
	if info == nil {
		WriteError(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, whoamiResponse{AuthMethod: "token", TokenName: info.TokenName})
}

// tokenResponse is the JSON shape of an admin token. The plaintext Token
// field is only set on creation; it cannot be recovered later.
type tokenResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Token     string    `json:"token,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// HandleCreateToken creates a new admin token.
// POST /api/tokens {"name": "..."}
// The plaintext token is returned exactly once.
func (h *Handler) HandleCreateToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "name is required")
		return
	}

	token, err := generateRandomToken()
	if err != nil {
		h.logger.Error("failed to generate admin token", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to generate token")
		return
	}

	hash, err := storage.HashKey(token)
	if err != nil {
		h.logger.Error("failed to hash admin token", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to hash token")
		return
	}

	created, err := h.storage.CreateAdminToken(r.Context(), req.Name, hash)
	if err != nil {
		h.logger.Error("failed to store admin token", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to store token")
		return
	}

	h.logger.Info("admin token created", "token_id", created.ID, "name", created.Name)

	writeJSON(w, http.StatusCreated, tokenResponse{
		ID:        created.ID,
		Name:      created.Name,
		Token:     token,
		CreatedAt: created.CreatedAt,
	})
}

// HandleListTokens lists admin tokens without their hashes.
// GET /api/tokens
func (h *Handler) HandleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.storage.ListAdminTokens(r.Context())
	if err != nil {
		h.logger.Error("failed to list admin tokens", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to list tokens")
		return
	}

	resp := make([]tokenResponse, 0, len(tokens))
	for _, t := range tokens {
		resp = append(resp, tokenResponse{
			ID:        t.ID,
			Name:      t.Name,
			CreatedAt: t.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"tokens": resp})
}

// HandleDeleteToken deletes an admin token by id.
// DELETE /api/tokens/{id}
// The last remaining token cannot be deleted; that would reopen the
// master-credential bootstrap path.
func (h *Handler) HandleDeleteToken(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid token id")
		return
	}

	tokens, err := h.storage.ListAdminTokens(r.Context())
	if err != nil {
		h.logger.Error("failed to list admin tokens", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to list tokens")
		return
	}
	if len(tokens) == 1 && tokens[0].ID == id {
		WriteError(w, http.StatusConflict, ErrCodeCannotDeleteLastToken,
			"cannot delete the last admin token")
		return
	}

	if err := h.storage.DeleteAdminToken(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteError(w, http.StatusNotFound, ErrCodeNotFound, "token not found")
			return
		}
		h.logger.Error("failed to delete admin token", "token_id", id, "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to delete token")
		return
	}

	h.logger.Info("admin token deleted", "token_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// grantResponse is the JSON shape of one grant audit row.
type grantResponse struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"userId"`
	ContainerID  string    `json:"containerId"`
	PermissionID string    `json:"permissionId"`
	PartitionKey string    `json:"partitionKey"`
	ExpiresAt    time.Time `json:"expiresAt"`
	IssuedAt     time.Time `json:"issuedAt"`
}

// HandleListGrants lists recent grant audit rows, newest first.
// GET /api/grants?user=...&limit=...
func (h *Handler) HandleListGrants(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid limit parameter")
			return
		}
		limit = n
	}

	grants, err := h.storage.ListGrants(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("failed to list grants", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to list grants")
		return
	}

	resp := make([]grantResponse, 0, len(grants))
	for _, g := range grants {
		resp = append(resp, grantResponse{
			ID:           g.ID,
			UserID:       g.UserID,
			ContainerID:  g.ContainerID,
			PermissionID: g.PermissionID,
			PartitionKey: g.PartitionKey,
			ExpiresAt:    g.ExpiresAt,
			IssuedAt:     g.IssuedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"grants": resp})
}
