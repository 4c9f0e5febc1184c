// Package bot собирает процесс Telegram-бота: опрос обновлений,
// команды, служебный HTTP-сервер.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/membership-bot/internal/app/infra"
	"github.com/magabrotheeeer/membership-bot/internal/auth"
	botrouter "github.com/magabrotheeeer/membership-bot/internal/bot"
	"github.com/magabrotheeeer/membership-bot/internal/config"
	httpserver "github.com/magabrotheeeer/membership-bot/internal/http-server"
	"github.com/magabrotheeeer/membership-bot/internal/metrics"
	"github.com/magabrotheeeer/membership-bot/internal/services/membership"
	schedulerservice "github.com/magabrotheeeer/membership-bot/internal/services/scheduler"
	"github.com/magabrotheeeer/membership-bot/internal/telegram"
)

// App процесс бота.
type App struct {
	api       *tgbotapi.BotAPI
	router    *botrouter.Router
	server    *http.Server
	scheduler *schedulerservice.SchedulerService
	infra     *infra.Infra
	cfg       *config.Config
	logger    *slog.Logger
}

// New создаёт приложение бота и применяет миграции.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	res, err := infra.Open(ctx, cfg, logger, true)
	if err != nil {
		return nil, err
	}

	api, err := telegram.NewBot(cfg.BotToken)
	if err != nil {
		res.Close()
		return nil, fmt.Errorf("failed to authorize bot: %w", err)
	}
	logger.Info("authorized on telegram", slog.String("bot", api.Self.UserName))
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

	app := &App{
		api:    api,
		router: botrouter.NewRouter(svc, client, cfg.GroupID, cfg.Workers, m, logger),
		server: httpserver.New(cfg.HTTPServer, httpserver.NewRouter(logger, res.Checks, reg, cfg.TimeoutHTTP)),
		infra:  res,
		cfg:    cfg,
		logger: logger,
	}

	// Хранилище в памяти не видно отдельному планировщику.
	if cfg.StorageKind == infra.StorageMemory {
		app.scheduler = schedulerservice.NewSchedulerService(res.Store, svc, notifier, cfg.Workers, m, logger)
	}
	return app, nil
}

// Run опрашивает Telegram до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	defer a.infra.Close()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = a.cfg.PollTimeout
	u.AllowedUpdates = []string{"message"}
	updates := a.api.GetUpdatesChan(u)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.router.Listen(gctx, updates)
	})
	g.Go(func() error {
		return httpserver.Run(gctx, a.server, a.logger)
	})
	if a.scheduler != nil {
		g.Go(func() error {
			a.scheduler.Run(gctx, a.cfg.Interval)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("stopping telegram updates")
		a.api.StopReceivingUpdates()
		return nil
	})

	start := time.Now()
	err := g.Wait()
	a.logger.Info("bot stopped", slog.Duration("uptime", time.Since(start)))
	return err
}
