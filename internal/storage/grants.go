package storage

import (
	"context"
	"fmt"
)

// RecordGrant inserts one audit row for an issued token.
func (s *SQLiteStorage) RecordGrant(ctx context.Context, g *Grant) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO grants (user_id, container_id, permission_id, partition_key, expires_at)
		 VALUES (?, ?, ?, ?, ?)`,
		g.UserID, g.ContainerID, g.PermissionID, g.PartitionKey, g.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record grant: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	g.ID = id

	return nil
}

// ListGrants returns the most recent grant audit rows, newest first.
// If userID is non-empty, only that user's grants are returned.
// limit caps the result; values <= 0 fall back to 100.
func (s *SQLiteStorage) ListGrants(ctx context.Context, userID string, limit int) ([]Grant, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, user_id, container_id, permission_id, partition_key, expires_at, issued_at
	          FROM grants`
	args := []any{}
	if userID != "" {
		query += " WHERE user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY issued_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer func() {
		//nolint:errcheck
		rows.Close()
	}()

	var grants []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.ID, &g.UserID, &g.ContainerID, &g.PermissionID, &g.PartitionKey, &g.ExpiresAt, &g.IssuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate grants: %w", err)
	}

	return grants, nil
}

// PurgeExpiredGrants deletes audit rows whose tokens expired before cutoff.
// Returns the number of rows removed.
func (s *SQLiteStorage) PurgeExpiredGrants(ctx context.Context, cutoffDays int) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM grants WHERE expires_at < datetime('now', ?)`,
		fmt.Sprintf("-%d days", cutoffDays))
	if err != nil {
		return 0, fmt.Errorf("failed to purge grants: %w", err)
	}
	return result.RowsAffected()
}
