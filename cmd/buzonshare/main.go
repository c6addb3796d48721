package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/buzonshare/buzonshare/pkg/api"
	"github.com/buzonshare/buzonshare/pkg/authz"
	"github.com/buzonshare/buzonshare/pkg/config"
	"github.com/buzonshare/buzonshare/pkg/observability"
	"github.com/buzonshare/buzonshare/pkg/session"
	"github.com/buzonshare/buzonshare/pkg/storage/postgres"
	"github.com/buzonshare/buzonshare/pkg/users"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (defaults to BUZONSHARE_CONFIG_FILE)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "buzonshare: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	ctx := context.Background()

	db, err := postgres.Connect(postgres.Config{
		URL:         cfg.Database.URL,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
		MaxLifetime: cfg.Database.MaxLifetime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := postgres.RunMigrations(ctx, db, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	userStore := users.NewStore(db, authz.NewResolver(db))
	bootstrapUser := envOr("BUZONSHARE_BOOTSTRAP_USERNAME", "admin")
	bootstrapPass := envOr("BUZONSHARE_BOOTSTRAP_PASSWORD", "changeme-now")
	if err := userStore.EnsureSuperadmin(ctx, bootstrapUser, bootstrapPass); err != nil {
		return fmt.Errorf("failed to ensure superadmin: %w", err)
	}

	redisClient, err := session.ConnectRedis(cfg.Redis)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	var otelProviders *observability.OTelProviders
	if cfg.Observability.OTelEnabled {
		otelProviders, err = observability.InitOTel(ctx, observability.OTelConfig{
			Enabled:        true,
			Endpoint:       cfg.Observability.OTelEndpoint,
			ServiceName:    cfg.Observability.OTelServiceName,
			ServiceVersion: cfg.Observability.OTelServiceVersion,
			Insecure:       cfg.Observability.OTelInsecure,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to init opentelemetry: %w", err)
		}
	}

	server := api.NewServer(cfg, db, redisClient, registry, metrics, logger)

	shutdown := observability.NewShutdownManager(logger, server.HTTPServer(), cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return redisClient.Close()
	})
	if otelProviders != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, otelProviders, logger)
		})
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	done := make(chan error, 1)
	go func() {
		done <- shutdown.WaitForShutdown()
	}()

	select {
	case err := <-errCh:
		return err
	case err := <-done:
		return err
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
