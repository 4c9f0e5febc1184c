package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/membership-bot/internal/lib/calendar"
	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
	"github.com/magabrotheeeer/membership-bot/internal/lifecycle"
	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/storage"
)

// remove исключает участника и удаляет запись внутри открытой транзакции.
// Порядок: уведомление (если есть), исключение из группы, удаление.
// Если исключить не удалось, транзакция откатывается и запись остаётся.
func (s *Service) remove(ctx context.Context, tx storage.RecordTx, rec *models.Record, notice *models.Notification) error {
	if notice != nil {
		s.send(ctx, *notice)
	}
	if err := s.group.Kick(ctx, rec.PlatformID); err != nil {
		return fmt.Errorf("kick: %w", err)
	}
	return tx.DeleteRecord(ctx, rec.PlatformID)
}

// RemoveIfExpired исключает участника, если его подписка истекла.
// Условие проверяется заново под блокировкой: запись могли продлить или
// удалить после того, как её выбрала плановая проверка.
func (s *Service) RemoveIfExpired(ctx context.Context, platformID int64) (bool, error) {
	const op = "membership.RemoveIfExpired"
	today := s.Today()

	removed := false
	err := s.mutate(ctx, platformID, func(ctx context.Context, tx storage.RecordTx) error {
		rec, err := tx.GetForUpdate(ctx, platformID)
		if errors.Is(err, storage.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !lifecycle.IsExpired(rec.PaidUntil, today) {
			return nil
		}
		removed = true
		return s.remove(ctx, tx, rec, &models.Notification{
			Kind:      models.NotifyExpiredRemoval,
			ChatID:    rec.PlatformID,
			Subject:   memberOf(rec),
			PaidUntil: rec.PaidUntil,
		})
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if removed {
		s.metrics.Removal("sweep")
		s.log.Info("expired member removed", sl.UserID(platformID), slog.String("today", calendar.Format(today)))
	}
	return removed, nil
}
