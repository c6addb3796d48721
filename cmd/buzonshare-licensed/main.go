package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/buzonshare/buzonshare/pkg/config"
	"github.com/buzonshare/buzonshare/pkg/license"
	"github.com/buzonshare/buzonshare/pkg/observability"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (defaults to BUZONSHARE_CONFIG_FILE)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "buzonshare-licensed: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.License.Enabled {
		return fmt.Errorf("license validation is disabled (BUZONSHARE_LICENSE_ENABLED)")
	}
	if cfg.License.ServerURL == "" {
		return fmt.Errorf("license server url is required")
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	client := license.NewClient(
		cfg.License.ServerURL,
		cfg.License.ClientTimeout,
		cfg.License.CacheSize,
		cfg.License.CacheTTL,
		metrics,
		logger,
	)
	manager := license.NewManager(client, cfg.License.File, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := manager.Refresh(ctx); err != nil {
		logger.Error("initial license validation failed", "error", err)
	}

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.License.CronSchedule, func() {
		previous := manager.Current()
		v, err := manager.Revalidate(ctx)
		if err != nil {
			logger.Error("scheduled license revalidation failed", "error", err)
			return
		}
		if v.Valid != previous.Valid {
			logger.Warn("license validity changed", "valid", v.Valid, "reason", v.Reason)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", cfg.License.CronSchedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	logger.Info("license worker started",
		"file", cfg.License.File,
		"schedule", cfg.License.CronSchedule,
	)

	if err := manager.Watch(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("license watcher failed: %w", err)
	}
	return nil
}
