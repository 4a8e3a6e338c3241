package admin

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sipico/docstore-token-broker/internal/auth"
	"github.com/sipico/docstore-token-broker/internal/metrics"
)

// TokenAuthMiddleware validates AccessKey tokens for the admin API.
//
// The AccessKey header is checked first against the store master credential
// (allowed only while no admin token exists), then against stored admin
// tokens.
func (h *Handler) TokenAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accessKey := strings.TrimSpace(r.Header.Get("AccessKey"))
		if accessKey == "" {
			metrics.RecordAuthFailure("missing_token")
			WriteError(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, "missing AccessKey header")
			return
		}

		ctx := r.Context()

		// Master credential path: only valid during bootstrap
		if h.bootstrap != nil && h.bootstrap.IsMasterKey(accessKey) {
			canUse, err := h.bootstrap.CanUseMasterKey(ctx)
			if err != nil {
				h.logger.Error("failed to check bootstrap state", "error", err)
				WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
				return
			}
			if !canUse {
				metrics.RecordAuthFailure("master_key_locked")
				WriteError(w, http.StatusForbidden, ErrCodeMasterKeyLocked,
					"The master credential is locked. Use an admin token instead.")
				return
			}
			ctx = auth.WithMasterKey(ctx, true)
			h.logger.Debug("admin API request via master credential")
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		info, err := h.validator.ValidateToken(ctx, accessKey)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrMissingToken) {
				metrics.RecordAuthFailure("invalid_token")
				h.logger.Warn("invalid admin token attempt", "remote_addr", r.RemoteAddr)
				WriteError(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, "invalid token")
				return
			}
			h.logger.Error("failed to validate admin token", "error", err)
			WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
			return
		}

		ctx = auth.WithTokenInfo(ctx, info)
		h.logger.Debug("admin API request via admin token", "token_name", info.TokenName)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
