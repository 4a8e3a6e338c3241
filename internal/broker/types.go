// Package broker implements the token-issuance workflow.
package broker

// Token is one scoped resource token, bound to a single container and a
// single partition-key value.
type Token struct {
	PermissionID      string `json:"permissionId"`
	PartitionKeyValue string `json:"partitionKeyValue"`
	URL               string `json:"url"`
	Mode              string `json:"mode"`
	Token             string `json:"token"`
}

// TokenResponse is the successful issuance result: one token per configured
// container, keyed by container id.
type TokenResponse struct {
	UserID string           `json:"userId"`
	Tokens map[string]Token `json:"tokens"`
}
