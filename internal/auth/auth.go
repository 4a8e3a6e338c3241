// Package auth handles admin token validation and bootstrap state.
package auth

import (
	"context"
	"errors"

	"github.com/sipico/docstore-token-broker/internal/storage"
)

// Errors for authentication failures.
var (
	// ErrMissingToken indicates no token was provided.
	ErrMissingToken = errors.New("auth: missing token")
	// ErrInvalidToken indicates the token is not valid.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// TokenInfo contains validated admin token information.
type TokenInfo struct {
	TokenID   int64
	TokenName string
}

// TokenStore is the storage surface the validator needs.
type TokenStore interface {
	ListAdminTokens(ctx context.Context) ([]storage.AdminToken, error)
}

// Validator checks presented tokens against stored admin token hashes.
type Validator struct {
	tokens TokenStore
}

// NewValidator creates a new Validator.
func NewValidator(tokens TokenStore) *Validator {
	return &Validator{tokens: tokens}
}

// ValidateToken checks if the presented token matches a stored admin token.
// Returns TokenInfo if valid.
func (v *Validator) ValidateToken(ctx context.Context, token string) (*TokenInfo, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	stored, err := v.tokens.ListAdminTokens(ctx)
	if err != nil {
		return nil, err
	}

	// Must iterate all tokens - bcrypt hashes are not comparable directly
	for _, t := range stored {
		if storage.VerifyKey(token, t.TokenHash) == nil {
			return &TokenInfo{
				TokenID:   t.ID,
				TokenName: t.Name,
			}, nil
		}
	}

	return nil, ErrInvalidToken
}
