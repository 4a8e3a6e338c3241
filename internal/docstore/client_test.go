package docstore

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sipico/docstore-token-broker/internal/testutil/mockstore"
)

// newTestClient wires a client to a fake control plane behind httptest.
func newTestClient(t *testing.T) (*Client, *mockstore.Server, func()) {
	t.Helper()
	store := mockstore.New()
	ts := httptest.NewServer(store)

	client, err := NewClient(ts.URL, testMasterKey)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client, store, ts.Close
}

func TestNewClient(t *testing.T) {
	t.Parallel()
	t.Run("trailing slash stripped", func(t *testing.T) {
		t.Parallel()
		client, err := NewClient("https://store.example.com:443/", testMasterKey)
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}
		if client.baseURL != "https://store.example.com:443" {
			t.Errorf("Expected trailing slash stripped, got %q", client.baseURL)
		}
	})

	t.Run("invalid master key", func(t *testing.T) {
		t.Parallel()
		_, err := NewClient("https://store.example.com", "!!not base64!!")
		if err == nil {
			t.Fatal("Expected error for invalid master key")
		}
	})
}

func TestCreateDatabase(t *testing.T) {
	t.Parallel()
	t.Run("success", func(t *testing.T) {
		t.Parallel()
		client, store, cleanup := newTestClient(t)
		defer cleanup()

		db, err := client.CreateDatabase(context.Background(), "appdb")
		if err != nil {
			t.Fatalf("CreateDatabase failed: %v", err)
		}
		if db.ID != "appdb" {
			t.Errorf("Expected database id 'appdb', got %q", db.ID)
		}
		if !store.HasDatabase("appdb") {
			t.Error("Expected database to exist on the control plane")
		}
	})

	t.Run("duplicate returns ErrConflict", func(t *testing.T) {
		t.Parallel()
		client, _, cleanup := newTestClient(t)
		defer cleanup()

		if _, err := client.CreateDatabase(context.Background(), "appdb"); err != nil {
			t.Fatalf("First create failed: %v", err)
		}
		_, err := client.CreateDatabase(context.Background(), "appdb")
		if !errors.Is(err, ErrConflict) {
			t.Errorf("Expected ErrConflict, got: %v", err)
		}
	})
}

func TestEnsureDatabase(t *testing.T) {
	t.Parallel()
	client, store, cleanup := newTestClient(t)
	defer cleanup()

	// Both the first ensure and the retry over an existing db succeed.
	for i := 0; i < 2; i++ {
		if err := client.EnsureDatabase(context.Background(), "appdb"); err != nil {
			t.Fatalf("EnsureDatabase attempt %d failed: %v", i+1, err)
		}
	}
	if !store.HasDatabase("appdb") {
		t.Error("Expected database to exist")
	}
}

func TestEnsureUser(t *testing.T) {
	t.Parallel()
	t.Run("creates missing user", func(t *testing.T) {
		t.Parallel()
		client, store, cleanup := newTestClient(t)
		defer cleanup()

		if err := client.EnsureDatabase(context.Background(), "appdb"); err != nil {
			t.Fatalf("EnsureDatabase failed: %v", err)
		}
		if err := client.EnsureUser(context.Background(), "appdb", "sam"); err != nil {
			t.Fatalf("EnsureUser failed: %v", err)
		}
		if !store.HasUser("appdb", "sam") {
			t.Error("Expected user to exist")
		}
	})

	t.Run("existing user is success", func(t *testing.T) {
		t.Parallel()
		client, _, cleanup := newTestClient(t)
		defer cleanup()

		ctx := context.Background()
		if err := client.EnsureDatabase(ctx, "appdb"); err != nil {
			t.Fatalf("EnsureDatabase failed: %v", err)
		}
		if err := client.EnsureUser(ctx, "appdb", "sam"); err != nil {
			t.Fatalf("First EnsureUser failed: %v", err)
		}
		if err := client.EnsureUser(ctx, "appdb", "sam"); err != nil {
			t.Errorf("Second EnsureUser failed: %v", err)
		}
	})

	t.Run("create failure surfaces the read error", func(t *testing.T) {
		t.Parallel()
		client, _, cleanup := newTestClient(t)
		defer cleanup()

		// Database missing: create fails, fallback read fails too,
		// and the read's error is what the caller sees.
		err := client.EnsureUser(context.Background(), "missing-db", "sam")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound from fallback read, got: %v", err)
		}
	})
}

func TestEnsureContainer(t *testing.T) {
	t.Parallel()
	client, store, cleanup := newTestClient(t)
	defer cleanup()

	ctx := context.Background()
	if err := client.EnsureDatabase(ctx, "appdb"); err != nil {
		t.Fatalf("EnsureDatabase failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := client.EnsureContainer(ctx, "appdb", "msgs", "/uid"); err != nil {
			t.Fatalf("EnsureContainer attempt %d failed: %v", i+1, err)
		}
	}
	if !store.HasContainer("appdb", "msgs") {
		t.Error("Expected container to exist")
	}
}

func TestCreatePermission(t *testing.T) {
	t.Parallel()
	client, store, cleanup := newTestClient(t)
	defer cleanup()

	ctx := context.Background()
	if err := client.EnsureDatabase(ctx, "appdb"); err != nil {
		t.Fatalf("EnsureDatabase failed: %v", err)
	}
	if err := client.EnsureUser(ctx, "appdb", "sam"); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}

	perm, err := client.CreatePermission(ctx, "appdb", "sam", 3600, &CreatePermissionRequest{
		ID:                   "permission-sam-msgs",
		PermissionMode:       PermissionModeAll,
		Resource:             "dbs/appdb/colls/msgs",
		ResourcePartitionKey: []string{"sam"},
	})
	if err != nil {
		t.Fatalf("CreatePermission failed: %v", err)
	}

	if perm.Token == "" {
		t.Error("Expected a resource token on the created permission")
	}
	if perm.PermissionMode != PermissionModeAll {
		t.Errorf("Expected mode All, got %q", perm.PermissionMode)
	}
	if _, ok := store.GetPermission("appdb", "sam", "permission-sam-msgs"); !ok {
		t.Error("Expected permission to be stored on the control plane")
	}
}

func TestDeletePermission(t *testing.T) {
	t.Parallel()
	client, store, cleanup := newTestClient(t)
	defer cleanup()

	ctx := context.Background()
	if err := client.EnsureDatabase(ctx, "appdb"); err != nil {
		t.Fatalf("EnsureDatabase failed: %v", err)
	}
	if err := client.EnsureUser(ctx, "appdb", "sam"); err != nil {
		t.Fatalf("EnsureUser failed: %v", err)
	}
	if _, err := client.CreatePermission(ctx, "appdb", "sam", 3600, &CreatePermissionRequest{
		ID:             "permission-sam-msgs",
		PermissionMode: PermissionModeAll,
		Resource:       "dbs/appdb/colls/msgs",
	}); err != nil {
		t.Fatalf("CreatePermission failed: %v", err)
	}

	if err := client.DeletePermission(ctx, "appdb", "sam", "permission-sam-msgs"); err != nil {
		t.Fatalf("DeletePermission failed: %v", err)
	}
	if store.PermissionCount("appdb", "sam") != 0 {
		t.Error("Expected permission to be gone")
	}

	// A second delete reports the permission as missing.
	err := client.DeletePermission(ctx, "appdb", "sam", "permission-sam-msgs")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on repeat delete, got: %v", err)
	}
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()
	t.Run("401 maps to ErrUnauthorized", func(t *testing.T) {
		t.Parallel()
		client, store, cleanup := newTestClient(t)
		defer cleanup()

		store.FailWith(http.StatusUnauthorized, "Unauthorized", "key rejected")
		err := client.EnsureDatabase(context.Background(), "appdb")
		if !errors.Is(err, ErrUnauthorized) {
			t.Errorf("Expected ErrUnauthorized, got: %v", err)
		}
	})

	t.Run("structured remote error passes through", func(t *testing.T) {
		t.Parallel()
		client, store, cleanup := newTestClient(t)
		defer cleanup()

		store.FailWith(http.StatusTooManyRequests, "TooManyRequests", "throttled")
		err := client.EnsureDatabase(context.Background(), "appdb")

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("Expected *APIError, got: %v", err)
		}
		if apiErr.StatusCode != http.StatusTooManyRequests {
			t.Errorf("Expected status 429, got %d", apiErr.StatusCode)
		}
		if apiErr.Message != "throttled" {
			t.Errorf("Expected remote message preserved, got %q", apiErr.Message)
		}
	})

	t.Run("unparseable error body falls back to generic", func(t *testing.T) {
		t.Parallel()
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			//nolint:errcheck
			w.Write([]byte("<html>bad gateway</html>"))
		}))
		defer ts.Close()

		client, err := NewClient(ts.URL, testMasterKey)
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}

		err = client.EnsureDatabase(context.Background(), "appdb")
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("Expected *APIError, got: %v", err)
		}
		if apiErr.StatusCode != http.StatusBadGateway || apiErr.Message != "request failed" {
			t.Errorf("Expected generic 502 error, got: %v", apiErr)
		}
	})

	t.Run("unreachable endpoint yields ConnectionError", func(t *testing.T) {
		t.Parallel()
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		ts.Close() // nothing is listening anymore

		client, err := NewClient(ts.URL, testMasterKey)
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}

		err = client.EnsureDatabase(context.Background(), "appdb")
		var connErr *ConnectionError
		if !errors.As(err, &connErr) {
			t.Fatalf("Expected *ConnectionError, got: %v", err)
		}
		if connErr.Endpoint != ts.URL {
			t.Errorf("Expected endpoint %q in error, got %q", ts.URL, connErr.Endpoint)
		}
	})
}

func TestRequestHeaders(t *testing.T) {
	t.Parallel()
	var captured http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Header.Clone()
		w.WriteHeader(http.StatusCreated)
		//nolint:errcheck
		w.Write([]byte(`{"id":"appdb"}`))
	}))
	defer ts.Close()

	fixed := time.Date(2026, time.January, 2, 15, 4, 5, 0, time.UTC)
	client, err := NewClient(ts.URL, testMasterKey, withClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	if _, err := client.CreateDatabase(context.Background(), "appdb"); err != nil {
		t.Fatalf("CreateDatabase failed: %v", err)
	}

	if got := captured.Get("x-ms-date"); got != "Fri, 02 Jan 2026 15:04:05 GMT" {
		t.Errorf("Unexpected x-ms-date: %q", got)
	}
	if got := captured.Get("x-ms-version"); got != apiVersion {
		t.Errorf("Unexpected x-ms-version: %q", got)
	}
	auth := captured.Get("Authorization")
	if !strings.HasPrefix(auth, "type%3Dmaster%26ver%3D1.0%26sig%3D") {
		t.Errorf("Unexpected Authorization format: %q", auth)
	}
	if got := captured.Get("Content-Type"); got != "application/json" {
		t.Errorf("Unexpected Content-Type: %q", got)
	}
}

func TestExpiryHeaderSent(t *testing.T) {
	t.Parallel()
	var expiry string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expiry = r.Header.Get("x-ms-documentdb-expiry-seconds")
		w.WriteHeader(http.StatusCreated)
		//nolint:errcheck
		w.Write([]byte(`{"id":"permission-sam-msgs","_token":"tok"}`))
	}))
	defer ts.Close()

	client, err := NewClient(ts.URL, testMasterKey)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	_, err = client.CreatePermission(context.Background(), "appdb", "sam", 7200, &CreatePermissionRequest{
		ID:             "permission-sam-msgs",
		PermissionMode: PermissionModeAll,
		Resource:       "dbs/appdb/colls/msgs",
	})
	if err != nil {
		t.Fatalf("CreatePermission failed: %v", err)
	}
	if expiry != "7200" {
		t.Errorf("Expected expiry header '7200', got %q", expiry)
	}
}
