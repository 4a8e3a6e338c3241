package storage

import "time"

// Grant is one audit row for an issued scoped token. The token string itself
// is never persisted, only the grant's shape and lifetime.
type Grant struct {
	ID           int64
	UserID       string
	ContainerID  string
	PermissionID string
	PartitionKey string
	ExpiresAt    time.Time
	IssuedAt     time.Time
}

// AdminToken is an operator API token. Only the bcrypt hash is stored.
type AdminToken struct {
	ID        int64
	TokenHash string
	Name      string
	CreatedAt time.Time
}
