// Package sender процесс доставки уведомлений из очередей RabbitMQ.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/membership-bot/internal/app/infra"
	"github.com/magabrotheeeer/membership-bot/internal/config"
	"github.com/magabrotheeeer/membership-bot/internal/metrics"
	"github.com/magabrotheeeer/membership-bot/internal/notify"
	"github.com/magabrotheeeer/membership-bot/internal/rabbitmq"
	senderservice "github.com/magabrotheeeer/membership-bot/internal/services/sender"
	"github.com/magabrotheeeer/membership-bot/internal/telegram"
)

type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	workers       int
	logger        *slog.Logger
}

func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	api, err := telegram.NewBot(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize bot: %w", err)
	}
	client := telegram.NewClient(api, cfg.Telegram)

	conn, ch, err := infra.OpenQueue(cfg.RabbitMQ)
	if err != nil {
		return nil, err
	}

	direct := notify.NewDirect(client, notify.Renderer{InviteLink: cfg.InviteLink}, cfg.Notifications.Timeout)
	m := metrics.New(metrics.NewRegistry())

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderservice.NewSenderService(direct, m, logger),
		workers:       cfg.Workers,
		logger:        logger,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	for _, q := range rabbitmq.NotificationQueues() {
		err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, q.QueueName, a.workers, a.senderService.Handle)
		if err != nil {
			a.logger.Error("failed to start consumer", slog.String("queue", q.QueueName), slog.Any("err", err))
			a.close()
			return err
		}
	}

	<-ctx.Done()
	a.logger.Info("Sender service shutting down gracefully")
	a.close()
	return nil
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}
}
