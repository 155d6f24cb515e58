package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/SkeletonSFD/DnD-Project/internal/server"
	"github.com/SkeletonSFD/DnD-Project/internal/userstore"
	"github.com/SkeletonSFD/DnD-Project/pkg/config"
	"github.com/SkeletonSFD/DnD-Project/pkg/logging"
)

func main() {
	logger := logging.New(slog.LevelInfo)

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = logging.New(logging.ParseLevel(cfg.Log.Level))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, cleanup, err := newUserStore(ctx, logger, cfg)
	if err != nil {
		logger.Error("failed to initialize user store", slog.Any("error", err))
		os.Exit(1)
	}
	defer cleanup()

	app := server.NewApp(logger, ctx, cfg, users)
	if err := app.Run(); err != nil {
		logger.Error("application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application shut down successfully")
}

func newUserStore(ctx context.Context, logger *slog.Logger, cfg *config.Config) (userstore.Store, func(), error) {
	if cfg.Database.URL == "" {
		logger.Warn("no database configured, using in-memory user store")
		return userstore.NewMemory(), func() {}, nil
	}

	pg, err := userstore.NewPostgres(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("connected to postgres user store")
	return pg, pg.Close, nil
}
