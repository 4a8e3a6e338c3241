package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// apiVersion is sent in the x-ms-version header on every request.
const apiVersion = "2018-12-31"

// Client is an HTTP client for the document store control plane.
type Client struct {
	baseURL    string
	signer     *signer
	httpClient *http.Client
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// withClock overrides the request timestamp source. Used in signature tests.
func withClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new control-plane client.
// The master key must be the base64-encoded account key.
func NewClient(endpoint, masterKey string, opts ...Option) (*Client, error) {
	s, err := newSigner(masterKey)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:    strings.TrimRight(endpoint, "/"),
		signer:     s,
		httpClient: http.DefaultClient,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// do executes a signed request and returns the status code and response body.
// Transport-level failures (no response at all) come back as *ConnectionError.
func (c *Client) do(ctx context.Context, method, path, resourceType, resourceLink string, headers map[string]string, reqBody any) (int, []byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, nil, err
	}

	date := httpDate(c.now())
	req.Header.Set("x-ms-date", date)
	req.Header.Set("x-ms-version", apiVersion)
	req.Header.Set("Authorization", c.signer.sign(method, resourceType, resourceLink, date))
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &ConnectionError{Endpoint: c.baseURL, Err: err}
	}
	defer func() {
		//nolint:errcheck
		resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}

	return resp.StatusCode, respBody, nil
}

// CreateDatabase creates a new logical database.
// Returns ErrConflict if a database with this id already exists.
func (c *Client) CreateDatabase(ctx context.Context, db string) (*Database, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/dbs", "dbs", "", nil, &Database{ID: db})
	if err != nil {
		return nil, err
	}

	if status == http.StatusCreated {
		var result Database
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("failed to decode database: %w", err)
		}
		return &result, nil
	}

	return nil, parseError(status, body)
}

// GetDatabase retrieves a database by id.
func (c *Client) GetDatabase(ctx context.Context, db string) (*Database, error) {
	link := "dbs/" + db
	status, body, err := c.do(ctx, http.MethodGet, "/"+link, "dbs", link, nil, nil)
	if err != nil {
		return nil, err
	}

	if status == http.StatusOK {
		var result Database
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("failed to decode database: %w", err)
		}
		return &result, nil
	}

	return nil, parseError(status, body)
}

// EnsureDatabase creates the database if it does not already exist.
// An existing database is success.
func (c *Client) EnsureDatabase(ctx context.Context, db string) error {
	_, err := c.CreateDatabase(ctx, db)
	if err == nil || errors.Is(err, ErrConflict) {
		return nil
	}
	return err
}

// CreateUser creates a user principal in the database.
// Returns ErrConflict if the user already exists.
func (c *Client) CreateUser(ctx context.Context, db, userID string) (*User, error) {
	link := "dbs/" + db
	status, body, err := c.do(ctx, http.MethodPost, "/"+link+"/users", "users", link, nil, &User{ID: userID})
	if err != nil {
		return nil, err
	}

	if status == http.StatusCreated {
		var result User
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("failed to decode user: %w", err)
		}
		return &result, nil
	}

	return nil, parseError(status, body)
}

// GetUser retrieves a user principal by id.
func (c *Client) GetUser(ctx context.Context, db, userID string) (*User, error) {
	link := "dbs/" + db + "/users/" + userID
	status, body, err := c.do(ctx, http.MethodGet, "/"+link, "users", link, nil, nil)
	if err != nil {
		return nil, err
	}

	if status == http.StatusOK {
		var result User
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("failed to decode user: %w", err)
		}
		return &result, nil
	}

	return nil, parseError(status, body)
}

// EnsureUser makes sure the user principal exists.
//
// The create is attempted first; on any create failure the user is read
// back instead, and only the read's error propagates. The read is the
// authoritative existence check, so a lost create race is harmless.
func (c *Client) EnsureUser(ctx context.Context, db, userID string) error {
	if _, err := c.CreateUser(ctx, db, userID); err != nil {
		if _, rerr := c.GetUser(ctx, db, userID); rerr != nil {
			return rerr
		}
	}
	return nil
}

// CreateContainer creates a container with the given partition-key path.
// Returns ErrConflict if the container already exists.
func (c *Client) CreateContainer(ctx context.Context, db, containerID, partitionKeyPath string) (*Container, error) {
	link := "dbs/" + db
	req := &Container{
		ID: containerID,
		PartitionKey: PartitionKeyDef{
			Paths: []string{partitionKeyPath},
			Kind:  "Hash",
		},
	}

	status, body, err := c.do(ctx, http.MethodPost, "/"+link+"/colls", "colls", link, nil, req)
	if err != nil {
		return nil, err
	}

	if status == http.StatusCreated {
		var result Container
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("failed to decode container: %w", err)
		}
		return &result, nil
	}

	return nil, parseError(status, body)
}

// EnsureContainer creates the container if it does not already exist.
// An existing container is success.
func (c *Client) EnsureContainer(ctx context.Context, db, containerID, partitionKeyPath string) error {
	_, err := c.CreateContainer(ctx, db, containerID, partitionKeyPath)
	if err == nil || errors.Is(err, ErrConflict) {
		return nil
	}
	return err
}

// DeletePermission removes a permission from a user.
// Returns ErrNotFound if no permission with this id exists.
func (c *Client) DeletePermission(ctx context.Context, db, userID, permissionID string) error {
	link := "dbs/" + db + "/users/" + userID + "/permissions/" + permissionID
	status, body, err := c.do(ctx, http.MethodDelete, "/"+link, "permissions", link, nil, nil)
	if err != nil {
		return err
	}

	if status == http.StatusNoContent {
		return nil
	}

	return parseError(status, body)
}

// CreatePermission creates a scoped permission on a user and returns it,
// including the server-assigned resource token. The token lifetime is
// requested via the expiry header; the server clamps it to its own bounds.
func (c *Client) CreatePermission(ctx context.Context, db, userID string, expirySeconds int, req *CreatePermissionRequest) (*Permission, error) {
	link := "dbs/" + db + "/users/" + userID
	headers := map[string]string{
		"x-ms-documentdb-expiry-seconds": strconv.Itoa(expirySeconds),
	}

	status, body, err := c.do(ctx, http.MethodPost, "/"+link+"/permissions", "permissions", link, headers, req)
	if err != nil {
		return nil, err
	}

	if status == http.StatusCreated {
		var result Permission
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("failed to decode permission: %w", err)
		}
		return &result, nil
	}

	return nil, parseError(status, body)
}

// parseError maps control-plane error responses to an appropriate error.
func parseError(statusCode int, body []byte) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	default:
		// Try to parse as structured error
		var apiErr APIError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
			apiErr.StatusCode = statusCode
			return &apiErr
		}
		// Fall back to generic error
		return &APIError{StatusCode: statusCode, Message: "request failed"}
	}
}
