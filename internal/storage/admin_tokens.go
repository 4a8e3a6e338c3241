package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// CreateAdminToken stores a new admin token hash.
// Returns ErrDuplicate if a token with this hash already exists.
func (s *SQLiteStorage) CreateAdminToken(ctx context.Context, name, tokenHash string) (*AdminToken, error) {
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO admin_tokens (token_hash, name) VALUES (?, ?)",
		tokenHash, name)
	if err != nil {
		// The extended error code for a UNIQUE violation is 2067;
		// 19 is the base constraint code.
		var sqliteErr *sqlite.Error
		if errors.As(err, &sqliteErr) {
			if sqliteErr.Code() == 2067 || (sqliteErr.Code()&0xFF) == sqlite3.SQLITE_CONSTRAINT {
				return nil, ErrDuplicate
			}
		}
		return nil, fmt.Errorf("failed to create admin token: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get insert ID: %w", err)
	}

	return &AdminToken{
		ID:        id,
		TokenHash: tokenHash,
		Name:      name,
	}, nil
}

// ListAdminTokens returns all admin tokens, oldest first.
func (s *SQLiteStorage) ListAdminTokens(ctx context.Context) ([]AdminToken, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, token_hash, name, created_at FROM admin_tokens ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list admin tokens: %w", err)
	}
	defer func() {
		//nolint:errcheck
		rows.Close()
	}()

	var tokens []AdminToken
	for rows.Next() {
		var t AdminToken
		if err := rows.Scan(&t.ID, &t.TokenHash, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan admin token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate admin tokens: %w", err)
	}

	return tokens, nil
}

// GetAdminToken retrieves an admin token by id.
// Returns ErrNotFound if no token with this id exists.
func (s *SQLiteStorage) GetAdminToken(ctx context.Context, id int64) (*AdminToken, error) {
	var t AdminToken
	err := s.db.QueryRowContext(ctx,
		"SELECT id, token_hash, name, created_at FROM admin_tokens WHERE id = ?",
		id).Scan(&t.ID, &t.TokenHash, &t.Name, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin token: %w", err)
	}
	return &t, nil
}

// DeleteAdminToken removes an admin token by id.
// Returns ErrNotFound if no token with this id exists.
func (s *SQLiteStorage) DeleteAdminToken(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM admin_tokens WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete admin token: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// HasAnyAdminToken reports whether at least one admin token exists.
// Used by the bootstrap state machine to decide master-key lockout.
func (s *SQLiteStorage) HasAnyAdminToken(ctx context.Context) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM admin_tokens").Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count admin tokens: %w", err)
	}
	return count > 0, nil
}
