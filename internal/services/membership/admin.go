package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/membership-bot/internal/lib/calendar"
	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
	"github.com/magabrotheeeer/membership-bot/internal/lifecycle"
	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/storage"
)

// ApproveResult итог одобрения платежа.
type ApproveResult struct {
	PlatformID int64
	PaidUntil  time.Time
	IsNew      bool
	Kind       lifecycle.ApprovalKind
}

// Approve одобряет платёж target: создаёт запись или продлевает paid_until
// и добавляет событие в журнал. Уведомление пользователю не откатывает изменение.
func (s *Service) Approve(ctx context.Context, caller, target int64) (ApproveResult, error) {
	const op = "membership.Approve"
	if err := s.requireAdmin(caller); err != nil {
		return ApproveResult{}, err
	}
	if err := validateTarget(target); err != nil {
		return ApproveResult{}, err
	}

	today := s.Today()
	var result ApproveResult
	err := s.mutate(ctx, target, func(ctx context.Context, tx storage.RecordTx) error {
		existing, err := tx.GetForUpdate(ctx, target)
		if err != nil && !errors.Is(err, storage.ErrRecordNotFound) {
			return err
		}
		a := lifecycle.Approve(existing, today)

		if a.IsNew {
			err = tx.InsertRecord(ctx, models.Record{
				PlatformID:      target,
				JoinDate:        today,
				PaidUntil:       a.PaidUntil,
				LastPaymentDate: a.LastPaymentDate,
			})
		} else {
			err = tx.UpdatePayment(ctx, target, a.PaidUntil, a.LastPaymentDate)
		}
		if err != nil {
			return err
		}

		if err := tx.AppendPayment(ctx, models.PaymentEvent{
			PlatformID:  target,
			PaymentDate: a.LastPaymentDate,
			PaidUntil:   a.PaidUntil,
		}); err != nil {
			return err
		}

		result = ApproveResult{PlatformID: target, PaidUntil: a.PaidUntil, IsNew: a.IsNew, Kind: a.Kind}
		return nil
	})
	if err != nil {
		return ApproveResult{}, fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.Approval(string(result.Kind))
	s.log.Info("payment approved",
		sl.UserID(target),
		slog.Int64("admin_id", caller),
		slog.String("kind", string(result.Kind)),
		slog.String("paid_until", calendar.Format(result.PaidUntil)),
	)

	s.send(ctx, models.Notification{
		Kind:      models.NotifyPaymentApproved,
		ChatID:    target,
		Subject:   models.Member{PlatformID: target},
		PaidUntil: result.PaidUntil,
	})
	return result, nil
}

// Deny отклоняет платёж: удаляет запись target и сообщает пользователю.
// Журнал платежей не меняется.
func (s *Service) Deny(ctx context.Context, caller, target int64) error {
	const op = "membership.Deny"
	if err := s.requireAdmin(caller); err != nil {
		return err
	}
	if err := validateTarget(target); err != nil {
		return err
	}

	var subject models.Member
	err := s.mutate(ctx, target, func(ctx context.Context, tx storage.RecordTx) error {
		rec, err := tx.GetForUpdate(ctx, target)
		if errors.Is(err, storage.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		subject = memberOf(rec)
		return tx.DeleteRecord(ctx, target)
	})
	if errors.Is(err, ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.metrics.Denial()
	s.log.Info("payment denied", sl.UserID(target), slog.Int64("admin_id", caller))

	s.send(ctx, models.Notification{Kind: models.NotifyPaymentDenied, ChatID: target, Subject: subject})
	return nil
}

// MaxExpiringDays наибольший горизонт отчёта о заканчивающихся подписках.
const MaxExpiringDays = 3650

// ExpiringReport записи с paid_until не позже чем через days дней,
// по возрастанию даты. Снимок может быть немного устаревшим.
func (s *Service) ExpiringReport(ctx context.Context, caller int64, days int) ([]models.ExpiringRow, error) {
	const op = "membership.ExpiringReport"
	if err := s.requireAdmin(caller); err != nil {
		return nil, err
	}
	if days < 0 {
		return nil, fmt.Errorf("%w: days must be a non-negative integer", ErrValidation)
	}
	if days > MaxExpiringDays {
		return nil, fmt.Errorf("%w: days must not exceed %d", ErrValidation, MaxExpiringDays)
	}

	records, err := s.store.ListExpiring(ctx, lifecycle.ExpiringCutoff(s.Today(), days))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows := make([]models.ExpiringRow, 0, len(records))
	for _, rec := range records {
		handle := rec.Handle
		if handle == "" {
			handle = "N/A"
		}
		rows = append(rows, models.ExpiringRow{
			Handle:      handle,
			DisplayName: rec.DisplayName(),
			PaidUntil:   calendar.Format(rec.PaidUntil),
		})
	}
	return rows, nil
}
