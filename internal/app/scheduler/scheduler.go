// Package scheduler содержит логику процесса плановой проверки подписок.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/magabrotheeeer/membership-bot/internal/app/infra"
	"github.com/magabrotheeeer/membership-bot/internal/auth"
	"github.com/magabrotheeeer/membership-bot/internal/config"
	httpserver "github.com/magabrotheeeer/membership-bot/internal/http-server"
	"github.com/magabrotheeeer/membership-bot/internal/metrics"
	"github.com/magabrotheeeer/membership-bot/internal/services/membership"
	schedulerservice "github.com/magabrotheeeer/membership-bot/internal/services/scheduler"
	"github.com/magabrotheeeer/membership-bot/internal/telegram"
)

// App представляет приложение планировщика.
type App struct {
	schedulerService *schedulerservice.SchedulerService
	server           *http.Server
	infra            *infra.Infra
	cfg              *config.Config
	logger           *slog.Logger
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg.StorageKind == infra.StorageMemory {
		return nil, fmt.Errorf("scheduler needs shared storage, in-memory storage runs the sweep inside the bot")
	}

	res, err := infra.Open(ctx, cfg, logger, false)
	if err != nil {
		return nil, err
	}

	api, err := telegram.NewBot(cfg.BotToken)
	if err != nil {
		res.Close()
		return nil, fmt.Errorf("failed to authorize bot: %w", err)
	}
	client := telegram.NewClient(api, cfg.Telegram)

	notifier, err := res.Notifier(cfg, client)
	if err != nil {
		res.Close()
		return nil, err
	}

	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	svc := membership.New(membership.Deps{
		Store:    res.Store,
		Locker:   res.Locker,
		Notifier: notifier,
		Group:    client,
		Policy:   auth.NewPolicy(cfg.Admins),
		Cache:    res.MembershipCache(),
		CacheTTL: cfg.CacheTTL,
		Metrics:  m,
		Location: cfg.Location(),
		Log:      logger,
	})

	return &App{
		schedulerService: schedulerservice.NewSchedulerService(res.Store, svc, notifier, cfg.Workers, m, logger),
		server:           httpserver.New(cfg.HTTPServer, httpserver.NewRouter(logger, res.Checks, reg, cfg.TimeoutHTTP)),
		infra:            res,
		cfg:              cfg,
		logger:           logger,
	}, nil
}

// Run запускает планировщик. При run_once выполняется один проход.
func (a *App) Run(ctx context.Context) error {
	defer a.infra.Close()

	if a.cfg.RunOnce {
		report := a.schedulerService.RunSweep(ctx)
		if report.Failed > 0 {
			return fmt.Errorf("sweep finished with %d failed records", report.Failed)
		}
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpserver.Run(ctx, a.server, a.logger)
	}()

	a.schedulerService.Run(ctx, a.cfg.Interval)

	a.logger.Info("shutting down scheduler service")
	return <-errCh
}
