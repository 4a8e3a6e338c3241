// Package mockstore provides an in-memory fake of the document store
// control plane for tests and local development.
package mockstore

// PartitionKeyDef mirrors the control plane's partition-key definition.
type PartitionKeyDef struct {
	Paths []string `json:"paths"`
	Kind  string   `json:"kind"`
}

// Container is a stored container definition.
type Container struct {
	ID           string          `json:"id"`
	PartitionKey PartitionKeyDef `json:"partitionKey"`
}

// Permission is a stored permission, including its minted token.
type Permission struct {
	ID                   string   `json:"id"`
	PermissionMode       string   `json:"permissionMode"`
	Resource             string   `json:"resource"`
	ResourcePartitionKey []string `json:"resourcePartitionKey"`
	Token                string   `json:"_token,omitempty"`
	Timestamp            int64    `json:"_ts,omitempty"`
}

// apiError is the JSON error body the fake returns.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// database is one logical database with its users, containers and permissions.
type database struct {
	users      map[string]bool
	containers map[string]Container
	// permissions are keyed by "user/permissionID"
	permissions map[string]Permission
}

func newDatabase() *database {
	return &database{
		users:       make(map[string]bool),
		containers:  make(map[string]Container),
		permissions: make(map[string]Permission),
	}
}
