package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/ringsaturn/tzf"

	"flightboard_bot/internal/airport"
	"flightboard_bot/internal/bot"
	"flightboard_bot/internal/config"
	"flightboard_bot/internal/metrics"
	"flightboard_bot/internal/scheduler"
	"flightboard_bot/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	var finder airport.Finder
	if f, err := tzf.NewDefaultFinder(); err != nil {
		log.Warn("timezone finder unavailable, airports will fall back", "error", err)
	} else {
		finder = f
	}
	airports := airport.NewResolver(cfg.AirportsCSV, finder, log)

	b, err := bot.New(cfg.TelegramBotToken, store, airports, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sweeper := scheduler.New(store, cfg.SweepInterval, func() error {
		return b.PublishBoard(context.Background())
	}, log)

	if cfg.MetricsAddr != "" {
		go metrics.Serve(ctx, cfg.MetricsAddr, log)
	}

	log.Info("starting bot", "group_id", cfg.GroupID, "topic_id", cfg.TopicID)

	sweeper.Start()
	defer sweeper.Stop()

	b.Run(ctx)

	log.Info("bot stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
