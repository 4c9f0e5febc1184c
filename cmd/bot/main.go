// Package main точка входа процесса membership-bot.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/membership-bot/internal/app/bot"
	"github.com/magabrotheeeer/membership-bot/internal/config"
	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.New(cfg.Env, os.Stdout)

	logger.Info("starting membership-bot", slog.String("env", cfg.Env))
	logger.Debug("config loaded", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bot.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize membership-bot app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("membership-bot app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("membership-bot app stopped gracefully")
}
