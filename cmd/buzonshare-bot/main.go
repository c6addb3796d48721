package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/buzonshare/buzonshare/pkg/bot"
	"github.com/buzonshare/buzonshare/pkg/config"
	"github.com/buzonshare/buzonshare/pkg/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (defaults to BUZONSHARE_CONFIG_FILE)")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	logger := setupLogger(*logLevel)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to load config")
	}
	if cfg.Bot.Token == "" {
		logger.Fatal("bot token is required (BUZONSHARE_BOT_TOKEN)")
	}

	db, err := postgres.Connect(postgres.Config{
		URL:         cfg.Database.URL,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
		MaxLifetime: cfg.Database.MaxLifetime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	client := bot.NewClient(cfg.Bot.APIBaseURL, cfg.Bot.Token)
	worker := bot.NewWorker(client, bot.NewQueryService(db), cfg.Bot.PollTimeout, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("bot worker started")
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.WithError(err).Fatal("bot worker stopped")
	}
	logger.Info("bot worker stopped")
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
