// Package docstore provides a client for the document store control-plane API.
package docstore

// Database is a logical database in the document store.
type Database struct {
	ID       string `json:"id"`
	SelfLink string `json:"_self,omitempty"`
}

// User is a database-level user principal. Permissions are attached to users.
type User struct {
	ID       string `json:"id"`
	SelfLink string `json:"_self,omitempty"`
}

// PartitionKeyDef describes how a container partitions its items.
type PartitionKeyDef struct {
	Paths []string `json:"paths"`
	Kind  string   `json:"kind"`
}

// Container is a collection of items within a database.
type Container struct {
	ID           string          `json:"id"`
	PartitionKey PartitionKeyDef `json:"partitionKey"`
	SelfLink     string          `json:"_self,omitempty"`
}

// Permission modes accepted by the control plane.
const (
	// PermissionModeAll grants full read/write access to the resource.
	PermissionModeAll = "All"

	// PermissionModeRead grants read-only access to the resource.
	PermissionModeRead = "Read"
)

// CreatePermissionRequest is the request body for creating a permission.
type CreatePermissionRequest struct {
	ID                   string   `json:"id"`
	PermissionMode       string   `json:"permissionMode"`
	Resource             string   `json:"resource"`
	ResourcePartitionKey []string `json:"resourcePartitionKey"`
}

// Permission is a scoped grant attached to a user. The server fills in the
// opaque resource token and timestamp on creation.
type Permission struct {
	ID                   string   `json:"id"`
	PermissionMode       string   `json:"permissionMode"`
	Resource             string   `json:"resource"`
	ResourcePartitionKey []string `json:"resourcePartitionKey"`
	Token                string   `json:"_token,omitempty"`
	Timestamp            int64    `json:"_ts,omitempty"`
}
