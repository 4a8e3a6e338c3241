package auth

import (
	"context"
)

// ctxKey is a private type for context keys to prevent collisions.
type ctxKey int

const (
	// Context keys for authentication data.
	tokenInfoKey ctxKey = iota // stores *TokenInfo
	masterKeyKey               // stores bool (is master credential auth)
)

// TokenInfoFromContext retrieves the authenticated token info from context.
// Returns nil if no token is set (e.g., master credential authentication).
func TokenInfoFromContext(ctx context.Context) *TokenInfo {
	if v := ctx.Value(tokenInfoKey); v != nil {
		if info, ok := v.(*TokenInfo); ok {
			return info
		}
	}
	return nil
}

// IsMasterKeyFromContext returns true if the request was authenticated with
// the master credential (only possible during bootstrap).
func IsMasterKeyFromContext(ctx context.Context) bool {
	if v := ctx.Value(masterKeyKey); v != nil {
		if isMaster, ok := v.(bool); ok {
			return isMaster
		}
	}
	return false
}

// WithTokenInfo adds token info to the context.
func WithTokenInfo(ctx context.Context, info *TokenInfo) context.Context {
	return context.WithValue(ctx, tokenInfoKey, info)
}

// WithMasterKey marks the context as authenticated with the master credential.
func WithMasterKey(ctx context.Context, isMaster bool) context.Context {
	return context.WithValue(ctx, masterKeyKey, isMaster)
}
