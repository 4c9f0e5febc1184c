// Package notify доставляет уведомления пользователям и администраторам:
// напрямую через Telegram или через очередь RabbitMQ.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/rabbitmq"
)

// ErrDelivery уведомление не доставлено. Вызывающий логирует и продолжает.
var ErrDelivery = errors.New("notification delivery failed")

// Notifier доставляет уведомление.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// Messenger отправка текста в чат.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, markdown bool) error
}

// Direct отправляет уведомления сразу через Messenger.
type Direct struct {
	messenger Messenger
	renderer  Renderer
	timeout   time.Duration
}

// NewDirect создаёт Direct; timeout ограничивает одну доставку.
func NewDirect(messenger Messenger, renderer Renderer, timeout time.Duration) *Direct {
	return &Direct{messenger: messenger, renderer: renderer, timeout: timeout}
}

// Notify рендерит и отправляет уведомление.
func (d *Direct) Notify(ctx context.Context, n models.Notification) error {
	msg, err := d.renderer.Render(n)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	if err := d.messenger.SendMessage(ctx, n.ChatID, msg.Text, msg.Markdown); err != nil {
		return fmt.Errorf("%w: chat %d: %w", ErrDelivery, n.ChatID, err)
	}
	return nil
}

// Queue публикует уведомления в RabbitMQ; доставляет их сервис sender.
type Queue struct {
	publisher rabbitmq.Publisher
	timeout   time.Duration
}

// NewQueue создаёт Queue поверх канала RabbitMQ; timeout ограничивает одну публикацию.
func NewQueue(publisher rabbitmq.Publisher, timeout time.Duration) *Queue {
	return &Queue{publisher: publisher, timeout: timeout}
}

// Notify публикует уведомление с routing key, равным его типу.
// Publish в amqp не принимает контекст, поэтому ожидание прерывается по ctx,
// а сама публикация может завершиться позже в фоне.
func (q *Queue) Notify(ctx context.Context, n models.Notification) error {
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		done <- rabbitmq.PublishMessage(q.publisher, rabbitmq.Exchange, string(n.Kind), n)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDelivery, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: chat %d: %w", ErrDelivery, n.ChatID, ctx.Err())
	}
}
