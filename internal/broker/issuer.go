package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sipico/docstore-token-broker/internal/config"
	"github.com/sipico/docstore-token-broker/internal/docstore"
	"github.com/sipico/docstore-token-broker/internal/metrics"
	"github.com/sipico/docstore-token-broker/internal/storage"
)

// StoreClient defines the control-plane operations the issuer needs.
// This interface enables testing with fake implementations.
type StoreClient interface {
	// EnsureDatabase makes sure the logical database exists.
	EnsureDatabase(ctx context.Context, db string) error

	// EnsureUser makes sure the user principal exists. A create race with
	// another request is not an error as long as the user can be read back.
	EnsureUser(ctx context.Context, db, userID string) error

	// EnsureContainer makes sure the container exists with the given
	// partition-key path.
	EnsureContainer(ctx context.Context, db, containerID, partitionKeyPath string) error

	// DeletePermission removes a permission, returning docstore.ErrNotFound
	// if it does not exist.
	DeletePermission(ctx context.Context, db, userID, permissionID string) error

	// CreatePermission creates a scoped permission and returns it with the
	// server-assigned resource token.
	CreatePermission(ctx context.Context, db, userID string, expirySeconds int, req *docstore.CreatePermissionRequest) (*docstore.Permission, error)
}

// GrantRecorder persists an audit record for each issued token.
type GrantRecorder interface {
	RecordGrant(ctx context.Context, g *storage.Grant) error
}

// Issuer mints scoped resource tokens. It holds the immutable configuration
// snapshot and an injected control-plane client; it has no mutable state of
// its own, so concurrent Issue calls are safe.
type Issuer struct {
	store         StoreClient
	databaseName  string
	containers    []config.ContainerConfig
	expirySeconds int
	grants        GrantRecorder
	logger        *slog.Logger
}

// NewIssuer creates an Issuer for the configured database and containers.
// grants may be nil to disable audit recording.
// If logger is nil, slog.Default() will be used.
func NewIssuer(store StoreClient, cfg *config.Config, grants GrantRecorder, logger *slog.Logger) *Issuer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Issuer{
		store:         store,
		databaseName:  cfg.DatabaseName,
		containers:    cfg.Containers,
		expirySeconds: cfg.TokenExpirySeconds,
		grants:        grants,
		logger:        logger,
	}
}

// PermissionID returns the deterministic permission id for a (user,
// container) pair. A single id per pair is what makes delete-then-create
// rotation possible: at most one live permission can exist per pair.
func PermissionID(userID, containerID string) string {
	return fmt.Sprintf("permission-%s-%s", userID, containerID)
}

// ResourceLink returns the container's resource URL inside the store.
func ResourceLink(db, containerID string) string {
	return fmt.Sprintf("dbs/%s/colls/%s", db, containerID)
}

// Issue runs the issuance sequence for userID and returns one fresh scoped
// token per configured container.
//
// The effective partition value is partitionKeyValue when non-empty,
// otherwise userID. Containers are processed strictly in configuration
// order; every token of the response carries the same partition value.
//
// All remote failures abort the sequence and come back as a *Failure, with
// two tolerated exceptions: a lost user-create race and a missing previous
// permission.
func (i *Issuer) Issue(ctx context.Context, userID, partitionKeyValue string) (*TokenResponse, error) {
	if err := i.store.EnsureDatabase(ctx, i.databaseName); err != nil {
		return nil, i.fail("ensure database", err)
	}

	partition := partitionKeyValue
	if partition == "" {
		partition = userID
	}

	if err := i.store.EnsureUser(ctx, i.databaseName, userID); err != nil {
		return nil, i.fail("ensure user", err)
	}

	tokens := make(map[string]Token, len(i.containers))
	for _, c := range i.containers {
		if err := i.store.EnsureContainer(ctx, i.databaseName, c.ID, c.PartitionKeyPath); err != nil {
			return nil, i.fail("ensure container", err)
		}

		permID := PermissionID(userID, c.ID)

		// Remove any stale grant so the create below always yields a fresh
		// token. Absence is the common case and not an error.
		if err := i.store.DeletePermission(ctx, i.databaseName, userID, permID); err != nil && !errors.Is(err, docstore.ErrNotFound) {
			i.logger.Debug("failed to delete previous permission", "permission_id", permID, "error", err)
		}

		resource := ResourceLink(i.databaseName, c.ID)
		perm, err := i.store.CreatePermission(ctx, i.databaseName, userID, i.expirySeconds, &docstore.CreatePermissionRequest{
			ID:                   permID,
			PermissionMode:       docstore.PermissionModeAll,
			Resource:             resource,
			ResourcePartitionKey: []string{partition},
		})
		if err != nil {
			return nil, i.fail("create permission", err)
		}

		tokens[c.ID] = Token{
			PermissionID:      permID,
			PartitionKeyValue: partition,
			URL:               resource,
			Mode:              perm.PermissionMode,
			Token:             perm.Token,
		}

		metrics.RecordTokenIssued(c.ID)
		i.recordGrant(ctx, userID, c.ID, permID, partition)
	}

	i.logger.Info("issued tokens", "user_id", userID, "containers", len(tokens))

	return &TokenResponse{UserID: userID, Tokens: tokens}, nil
}

// fail classifies err, records the failure metric and logs the step.
func (i *Issuer) fail(step string, err error) *Failure {
	f := classify(err)
	metrics.RecordIssuanceFailure(f.Kind)
	i.logger.Error("token issuance failed", "step", step, "code", f.Code, "kind", f.Kind, "error", err)
	return f
}

// recordGrant writes the audit row for one issued token. Audit is best
// effort: a storage error is logged and never fails the issuance.
func (i *Issuer) recordGrant(ctx context.Context, userID, containerID, permissionID, partition string) {
	if i.grants == nil {
		return
	}
	g := &storage.Grant{
		UserID:       userID,
		ContainerID:  containerID,
		PermissionID: permissionID,
		PartitionKey: partition,
		ExpiresAt:    time.Now().Add(time.Duration(i.expirySeconds) * time.Second),
	}
	if err := i.grants.RecordGrant(ctx, g); err != nil {
		i.logger.Warn("failed to record grant audit row", "user_id", userID, "container_id", containerID, "error", err)
	}
}
