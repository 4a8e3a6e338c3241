package storage

import (
	"database/sql"
	"fmt"
)

// InitSchema creates all required tables and indexes.
// This is idempotent - safe to call multiple times.
func InitSchema(db *sql.DB) error {
	ddlStatements := []string{
		// grants table: audit trail of issued scoped tokens.
		// Token strings are never stored here.
		`CREATE TABLE IF NOT EXISTS grants (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			container_id TEXT NOT NULL,
			permission_id TEXT NOT NULL,
			partition_key TEXT NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			issued_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		// Index for per-user audit queries
		`CREATE INDEX IF NOT EXISTS idx_grants_user ON grants(user_id, issued_at)`,

		// admin_tokens table: operator tokens for the admin API
		`CREATE TABLE IF NOT EXISTS admin_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			token_hash TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range ddlStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute DDL: %w", err)
		}
	}

	return nil
}
