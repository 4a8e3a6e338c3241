// Package config provides configuration loading and validation from environment variables.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ContainerConfig maps a container id to its partition-key path.
type ContainerConfig struct {
	ID               string
	PartitionKeyPath string
}

// Config holds all application configuration.
type Config struct {
	LogLevel          string // debug, info, warn, error
	ListenAddr        string // Server listen address (e.g., ":8080")
	MetricsListenAddr string // Metrics listener address (e.g., "localhost:9090")
	DatabasePath      string // SQLite database path for grant audit and admin tokens

	Endpoint           string            // Required: document store endpoint URL
	MasterKey          string            // Required: base64 master key for control-plane access
	SecondaryKey       string            // Optional: fallback key, held but not used by issuance
	DatabaseName       string            // Required: target logical database
	Containers         []ContainerConfig // Required: ordered container -> partition-key path mapping
	TokenExpirySeconds int               // Lifetime of issued tokens
}

// Load parses configuration from environment variables.
// Optional fields have sensible defaults for ease of deployment.
func Load() (*Config, error) {
	logLevel := os.Getenv("LOG_LEVEL")
	listenAddr := os.Getenv("LISTEN_ADDR")
	metricsListenAddr := os.Getenv("METRICS_LISTEN_ADDR")
	databasePath := os.Getenv("DATABASE_PATH")

	if logLevel == "" {
		logLevel = "info"
	}

	if listenAddr == "" {
		listenAddr = ":8080"
	}

	if metricsListenAddr == "" {
		metricsListenAddr = "localhost:9090"
	}

	if databasePath == "" {
		databasePath = "/data/broker.db"
	}

	expirySeconds := 3600
	if raw := os.Getenv("TOKEN_EXPIRY_SECONDS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("TOKEN_EXPIRY_SECONDS must be an integer: %w", err)
		}
		expirySeconds = n
	}

	containers, err := ParseContainerMap(os.Getenv("DOCSTORE_CONTAINER_MAP"))
	if err != nil {
		return nil, fmt.Errorf("DOCSTORE_CONTAINER_MAP: %w", err)
	}

	cfg := &Config{
		LogLevel:           logLevel,
		ListenAddr:         listenAddr,
		MetricsListenAddr:  metricsListenAddr,
		DatabasePath:       databasePath,
		Endpoint:           os.Getenv("DOCSTORE_ENDPOINT"),
		MasterKey:          os.Getenv("DOCSTORE_MASTER_KEY"),
		SecondaryKey:       os.Getenv("DOCSTORE_SECONDARY_KEY"),
		DatabaseName:       os.Getenv("DOCSTORE_DATABASE"),
		Containers:         containers,
		TokenExpirySeconds: expirySeconds,
	}

	return cfg, nil
}

// Validate checks all configuration constraints.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("DOCSTORE_ENDPOINT environment variable is required")
	}
	if c.MasterKey == "" {
		return fmt.Errorf("DOCSTORE_MASTER_KEY environment variable is required")
	}
	if c.DatabaseName == "" {
		return fmt.Errorf("DOCSTORE_DATABASE environment variable is required")
	}
	if len(c.Containers) == 0 {
		return fmt.Errorf("DOCSTORE_CONTAINER_MAP must define at least one container")
	}
	if c.TokenExpirySeconds <= 0 {
		return fmt.Errorf("TOKEN_EXPIRY_SECONDS must be positive, got %d", c.TokenExpirySeconds)
	}
	return nil
}

// ParseContainerMap decodes a JSON object mapping container ids to
// partition-key paths, e.g. {"messages": "/uid", "profiles": "/uid"}.
//
// encoding/json maps do not preserve key order, but the issuance loop must
// iterate containers in configuration order. The object is therefore walked
// token by token so declaration order survives.
func ParseContainerMap(raw string) ([]ContainerConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected a JSON object, got %v", tok)
	}

	var containers []ContainerConfig
	seen := make(map[string]bool)

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		id, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("invalid container id %v", keyTok)
		}

		valTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		path, ok := valTok.(string)
		if !ok {
			return nil, fmt.Errorf("partition-key path for %q must be a string", id)
		}

		if id == "" {
			return nil, fmt.Errorf("container id must not be empty")
		}
		if !strings.HasPrefix(path, "/") {
			return nil, fmt.Errorf("partition-key path for %q must start with '/', got %q", id, path)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate container id %q", id)
		}
		seen[id] = true

		containers = append(containers, ContainerConfig{ID: id, PartitionKeyPath: path})
	}

	// Consume the closing brace
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	return containers, nil
}
