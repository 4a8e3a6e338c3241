package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/sipico/docstore-token-broker/internal/config"
	"github.com/sipico/docstore-token-broker/internal/docstore"
	"github.com/sipico/docstore-token-broker/internal/storage"
)

// fakeStore is an in-memory StoreClient that records the call sequence and
// can fail any single operation.
type fakeStore struct {
	calls []string

	ensureDatabaseErr   error
	ensureUserErr       error
	ensureContainerErr  error
	deletePermissionErr error
	createPermissionErr error

	tokenSeq int
}

func (f *fakeStore) EnsureDatabase(ctx context.Context, db string) error {
	f.calls = append(f.calls, "EnsureDatabase:"+db)
	return f.ensureDatabaseErr
}

func (f *fakeStore) EnsureUser(ctx context.Context, db, userID string) error {
	f.calls = append(f.calls, "EnsureUser:"+userID)
	return f.ensureUserErr
}

func (f *fakeStore) EnsureContainer(ctx context.Context, db, containerID, partitionKeyPath string) error {
	f.calls = append(f.calls, "EnsureContainer:"+containerID+":"+partitionKeyPath)
	return f.ensureContainerErr
}

func (f *fakeStore) DeletePermission(ctx context.Context, db, userID, permissionID string) error {
	f.calls = append(f.calls, "DeletePermission:"+permissionID)
	if f.deletePermissionErr != nil {
		return f.deletePermissionErr
	}
	return docstore.ErrNotFound
}

func (f *fakeStore) CreatePermission(ctx context.Context, db, userID string, expirySeconds int, req *docstore.CreatePermissionRequest) (*docstore.Permission, error) {
	f.calls = append(f.calls, "CreatePermission:"+req.ID)
	if f.createPermissionErr != nil {
		return nil, f.createPermissionErr
	}
	f.tokenSeq++
	return &docstore.Permission{
		ID:                   req.ID,
		PermissionMode:       req.PermissionMode,
		Resource:             req.Resource,
		ResourcePartitionKey: req.ResourcePartitionKey,
		Token:                fmt.Sprintf("tok-%s-%d", req.ID, f.tokenSeq),
	}, nil
}

// fakeGrants collects recorded grants and can fail every write.
type fakeGrants struct {
	grants []*storage.Grant
	err    error
}

func (f *fakeGrants) RecordGrant(ctx context.Context, g *storage.Grant) error {
	if f.err != nil {
		return f.err
	}
	f.grants = append(f.grants, g)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		DatabaseName: "appdb",
		Containers: []config.ContainerConfig{
			{ID: "msgs", PartitionKeyPath: "/uid"},
			{ID: "profiles", PartitionKeyPath: "/uid"},
		},
		TokenExpirySeconds: 3600,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPermissionID(t *testing.T) {
	t.Parallel()
	got := PermissionID("sam", "msgs")
	if got != "permission-sam-msgs" {
		t.Errorf("PermissionID() = %q", got)
	}
}

func TestResourceLink(t *testing.T) {
	t.Parallel()
	got := ResourceLink("appdb", "msgs")
	if got != "dbs/appdb/colls/msgs" {
		t.Errorf("ResourceLink() = %q", got)
	}
}

func TestIssueSuccess(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	grants := &fakeGrants{}
	issuer := NewIssuer(store, testConfig(), grants, discardLogger())

	resp, err := issuer.Issue(context.Background(), "sam", "")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if resp.UserID != "sam" {
		t.Errorf("Expected userId 'sam', got %q", resp.UserID)
	}
	if len(resp.Tokens) != 2 {
		t.Fatalf("Expected one token per container, got %d", len(resp.Tokens))
	}

	msgs, ok := resp.Tokens["msgs"]
	if !ok {
		t.Fatal("Expected a token for container 'msgs'")
	}
	if msgs.PermissionID != "permission-sam-msgs" {
		t.Errorf("Unexpected permission id %q", msgs.PermissionID)
	}
	if msgs.URL != "dbs/appdb/colls/msgs" {
		t.Errorf("Unexpected resource URL %q", msgs.URL)
	}
	if msgs.Mode != docstore.PermissionModeAll {
		t.Errorf("Expected mode All, got %q", msgs.Mode)
	}
	if msgs.Token == "" {
		t.Error("Expected a non-empty token")
	}

	// Partition value defaults to the user id.
	if msgs.PartitionKeyValue != "sam" {
		t.Errorf("Expected partition value 'sam', got %q", msgs.PartitionKeyValue)
	}
	if resp.Tokens["profiles"].PartitionKeyValue != "sam" {
		t.Error("Expected every token to carry the same partition value")
	}

	if len(grants.grants) != 2 {
		t.Errorf("Expected 2 audit grants, got %d", len(grants.grants))
	}
}

func TestIssueExplicitPartitionValue(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	issuer := NewIssuer(store, testConfig(), nil, discardLogger())

	resp, err := issuer.Issue(context.Background(), "sam", "tenant-7")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	for id, tok := range resp.Tokens {
		if tok.PartitionKeyValue != "tenant-7" {
			t.Errorf("Container %q: expected partition value 'tenant-7', got %q", id, tok.PartitionKeyValue)
		}
	}
}

func TestIssueCallSequence(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	issuer := NewIssuer(store, testConfig(), nil, discardLogger())

	if _, err := issuer.Issue(context.Background(), "sam", ""); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	want := []string{
		"EnsureDatabase:appdb",
		"EnsureUser:sam",
		"EnsureContainer:msgs:/uid",
		"DeletePermission:permission-sam-msgs",
		"CreatePermission:permission-sam-msgs",
		"EnsureContainer:profiles:/uid",
		"DeletePermission:permission-sam-profiles",
		"CreatePermission:permission-sam-profiles",
	}
	if len(store.calls) != len(want) {
		t.Fatalf("Expected %d calls, got %d: %v", len(want), len(store.calls), store.calls)
	}
	for i, call := range want {
		if store.calls[i] != call {
			t.Errorf("Call %d: expected %q, got %q", i, call, store.calls[i])
		}
	}
}

func TestIssueToleratesDeleteFailure(t *testing.T) {
	t.Parallel()
	// A delete failure that is not "not found" is logged and ignored.
	store := &fakeStore{deletePermissionErr: errors.New("transient delete failure")}
	issuer := NewIssuer(store, testConfig(), nil, discardLogger())

	resp, err := issuer.Issue(context.Background(), "sam", "")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if len(resp.Tokens) != 2 {
		t.Errorf("Expected tokens despite delete failure, got %d", len(resp.Tokens))
	}
}

func TestIssueFailFast(t *testing.T) {
	t.Parallel()
	t.Run("database failure stops before user", func(t *testing.T) {
		t.Parallel()
		store := &fakeStore{ensureDatabaseErr: docstore.ErrUnauthorized}
		issuer := NewIssuer(store, testConfig(), nil, discardLogger())

		_, err := issuer.Issue(context.Background(), "sam", "")
		if err == nil {
			t.Fatal("Expected failure")
		}
		if len(store.calls) != 1 {
			t.Errorf("Expected exactly one call, got %v", store.calls)
		}
	})

	t.Run("container failure stops the loop", func(t *testing.T) {
		t.Parallel()
		store := &fakeStore{ensureContainerErr: &docstore.APIError{StatusCode: 503, Message: "overloaded"}}
		issuer := NewIssuer(store, testConfig(), nil, discardLogger())

		_, err := issuer.Issue(context.Background(), "sam", "")
		if err == nil {
			t.Fatal("Expected failure")
		}
		// EnsureDatabase, EnsureUser and first EnsureContainer only.
		if len(store.calls) != 3 {
			t.Errorf("Expected three calls, got %v", store.calls)
		}
	})
}

func TestIssueFailureClassification(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		err         error
		wantCode    int
		wantKind    string
		wantMessage string
	}{
		{
			name:        "unauthorized maps to credential failure",
			err:         docstore.ErrUnauthorized,
			wantCode:    401,
			wantKind:    KindAuth,
			wantMessage: "master key",
		},
		{
			name:        "unreachable endpoint maps to connectivity",
			err:         &docstore.ConnectionError{Endpoint: "https://db.example.com", Err: errors.New("dial tcp: refused")},
			wantCode:    404,
			wantKind:    KindConnectivity,
			wantMessage: "https://db.example.com",
		},
		{
			name:        "remote error passes through code and message",
			err:         &docstore.APIError{StatusCode: 429, Code: "TooManyRequests", Message: "throttled"},
			wantCode:    429,
			wantKind:    KindRemote,
			wantMessage: "throttled",
		},
		{
			name:        "unknown error maps to 500",
			err:         errors.New("something odd"),
			wantCode:    500,
			wantKind:    KindUnknown,
			wantMessage: "token issuance failed",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			store := &fakeStore{ensureDatabaseErr: tt.err}
			issuer := NewIssuer(store, testConfig(), nil, discardLogger())

			_, err := issuer.Issue(context.Background(), "sam", "")
			var failure *Failure
			if !errors.As(err, &failure) {
				t.Fatalf("Expected *Failure, got: %v", err)
			}
			if failure.Code != tt.wantCode {
				t.Errorf("Expected code %d, got %d", tt.wantCode, failure.Code)
			}
			if failure.Kind != tt.wantKind {
				t.Errorf("Expected kind %q, got %q", tt.wantKind, failure.Kind)
			}
			if !strings.Contains(failure.Message, tt.wantMessage) {
				t.Errorf("Expected message containing %q, got %q", tt.wantMessage, failure.Message)
			}
			if !errors.Is(failure, tt.err) {
				t.Error("Expected the original error to be preserved")
			}
		})
	}
}

func TestIssueGrantRecordingBestEffort(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	grants := &fakeGrants{err: errors.New("disk full")}
	issuer := NewIssuer(store, testConfig(), grants, discardLogger())

	resp, err := issuer.Issue(context.Background(), "sam", "")
	if err != nil {
		t.Fatalf("Issue failed despite audit being best effort: %v", err)
	}
	if len(resp.Tokens) != 2 {
		t.Errorf("Expected 2 tokens, got %d", len(resp.Tokens))
	}
}

func TestIssueGrantContents(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	grants := &fakeGrants{}
	issuer := NewIssuer(store, testConfig(), grants, discardLogger())

	if _, err := issuer.Issue(context.Background(), "sam", "tenant-7"); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if len(grants.grants) != 2 {
		t.Fatalf("Expected 2 grants, got %d", len(grants.grants))
	}
	g := grants.grants[0]
	if g.UserID != "sam" || g.ContainerID != "msgs" || g.PermissionID != "permission-sam-msgs" {
		t.Errorf("Unexpected grant contents: %+v", g)
	}
	if g.PartitionKey != "tenant-7" {
		t.Errorf("Expected grant partition 'tenant-7', got %q", g.PartitionKey)
	}
	if g.ExpiresAt.IsZero() {
		t.Error("Expected a non-zero expiry on the grant")
	}
}
