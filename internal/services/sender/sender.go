// Package sender доставляет уведомления, опубликованные в RabbitMQ.
package sender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
	"github.com/magabrotheeeer/membership-bot/internal/metrics"
	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/notify"
)

// SenderService разбирает сообщение очереди и доставляет его получателю.
type SenderService struct {
	notifier notify.Notifier
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(notifier notify.Notifier, m *metrics.Metrics, log *slog.Logger) *SenderService {
	return &SenderService{
		notifier: notifier,
		metrics:  m,
		log:      log,
	}
}

// Handle обработчик сообщения очереди. Некорректное сообщение отбрасывается,
// ошибка доставки возвращается, чтобы брокер повторил попытку.
func (s *SenderService) Handle(ctx context.Context, body []byte) error {
	var n models.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		s.log.Error("failed to unmarshal notification, dropping", sl.Err(err))
		return nil
	}
	if n.ChatID == 0 || n.Kind == "" {
		s.log.Error("notification without recipient or kind, dropping", slog.String("kind", string(n.Kind)))
		return nil
	}

	if err := s.notifier.Notify(ctx, n); err != nil {
		s.metrics.NotificationFailed(string(n.Kind))
		if errors.Is(err, notify.ErrDelivery) {
			return err
		}
		return fmt.Errorf("%w: %w", notify.ErrDelivery, err)
	}
	s.log.Debug("notification delivered", slog.String("kind", string(n.Kind)), slog.Int64("chat_id", n.ChatID))
	return nil
}
