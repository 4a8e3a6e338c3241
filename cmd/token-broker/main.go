// Package main provides the entry point for the docstore token broker.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sipico/docstore-token-broker/internal/admin"
	"github.com/sipico/docstore-token-broker/internal/auth"
	"github.com/sipico/docstore-token-broker/internal/broker"
	"github.com/sipico/docstore-token-broker/internal/config"
	"github.com/sipico/docstore-token-broker/internal/docstore"
	"github.com/sipico/docstore-token-broker/internal/metrics"
	"github.com/sipico/docstore-token-broker/internal/server"
	"github.com/sipico/docstore-token-broker/internal/storage"
)

const version = "1.0.0"

// grantRetentionDays is how long expired grant audit rows are kept.
const grantRetentionDays = 30

func main() {
	if err := run(); err != nil {
		slog.Error("broker failed to start", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	//nolint:errcheck // Close errors during shutdown are unrecoverable
	defer store.Close()

	if err := metrics.Init(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &docstore.LoggingTransport{
			Logger: logger,
		},
	}
	client, err := docstore.NewClient(cfg.Endpoint, cfg.MasterKey, docstore.WithHTTPClient(httpClient))
	if err != nil {
		return fmt.Errorf("failed to create store client: %w", err)
	}

	issuer := broker.NewIssuer(client, cfg, store, logger)
	handler := server.NewHandler(issuer, store, logger)

	bootstrap := auth.NewBootstrapService(store, cfg.MasterKey)
	adminHandler := admin.NewHandler(store, bootstrap, logger)

	r := chi.NewRouter()
	r.Mount("/admin", adminHandler.NewRouter())
	r.Mount("/", server.NewRouter(handler, logger))

	// Audit rows for long-expired tokens are swept daily.
	go func() {
		for {
			n, err := store.PurgeExpiredGrants(context.Background(), grantRetentionDays)
			if err != nil {
				logger.Error("grant purge failed", "error", err)
			} else if n > 0 {
				logger.Info("purged expired grants", "count", n)
			}
			time.Sleep(24 * time.Hour)
		}
	}()

	// Metrics get their own listener so they are never exposed publicly.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		logger.Info("metrics listener starting", "addr", cfg.MetricsListenAddr)
		if err := http.ListenAndServe(cfg.MetricsListenAddr, mux); err != nil {
			logger.Error("metrics listener failed", "error", err)
		}
	}()

	logger.Info("token broker starting",
		"version", version,
		"addr", cfg.ListenAddr,
		"database", cfg.DatabaseName,
		"containers", len(cfg.Containers),
	)

	return http.ListenAndServe(cfg.ListenAddr, r)
}

// parseLogLevel maps the configured level string onto a slog.Level.
// Unknown values fall back to info.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
