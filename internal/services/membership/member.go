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

// Outcome ответ на команду пользователя.
type Outcome int

const (
	OutcomeAdminHelp         Outcome = iota // команду вызвал администратор
	OutcomeAlreadyRegistered                // запись уже есть
	OutcomePendingReview                    // администраторы уведомлены о новом платеже
	OutcomeRenewalRequested                 // администраторы уведомлены о продлении
)

// Register обрабатывает /start. Запись не создаётся: новый пользователь
// ждёт одобрения, администраторы получают уведомление.
func (s *Service) Register(ctx context.Context, m models.Member) (Outcome, error) {
	if s.policy.IsAdmin(m.PlatformID) {
		return OutcomeAdminHelp, nil
	}

	_, err := s.lookup(ctx, m.PlatformID)
	switch {
	case err == nil:
		return OutcomeAlreadyRegistered, nil
	case !errors.Is(err, ErrNotFound):
		return 0, fmt.Errorf("membership.Register: %w", err)
	}

	s.log.Info("payment verification requested", sl.UserID(m.PlatformID))
	s.notifyAdmins(ctx, models.NotifyAdminNewMember, m)
	return OutcomePendingReview, nil
}

// RequestRenewal обрабатывает /renovar: только уведомляет администраторов.
func (s *Service) RequestRenewal(ctx context.Context, m models.Member) Outcome {
	if s.policy.IsAdmin(m.PlatformID) {
		return OutcomeAdminHelp
	}
	s.log.Info("renewal requested", sl.UserID(m.PlatformID))
	s.notifyAdmins(ctx, models.NotifyAdminRenewal, m)
	return OutcomeRenewalRequested
}

// JoinAction что произошло с участником при вступлении.
type JoinAction string

const (
	JoinEnrolled JoinAction = "enrolled" // новая запись на 30 дней
	JoinActive   JoinAction = "active"   // подписка действует
	JoinRemoved  JoinAction = "removed"  // подписка истекла, участник исключён
	JoinSkipped  JoinAction = "skipped"  // бот
	JoinFailed   JoinAction = "failed"
)

// JoinResult итог по одному участнику.
type JoinResult struct {
	PlatformID int64
	Action     JoinAction
	Err        error
}

// HandleJoin обрабатывает вступление участников в группу. Ошибка по одному
// участнику не мешает обработке остальных.
func (s *Service) HandleJoin(ctx context.Context, members []models.Member) []JoinResult {
	results := make([]JoinResult, 0, len(members))
	for _, m := range members {
		if m.IsBot {
			results = append(results, JoinResult{PlatformID: m.PlatformID, Action: JoinSkipped})
			continue
		}
		action, err := s.join(ctx, m)
		if err != nil {
			s.log.Error("failed to handle join", sl.UserID(m.PlatformID), sl.Err(err))
			action = JoinFailed
		}
		results = append(results, JoinResult{PlatformID: m.PlatformID, Action: action, Err: err})
	}
	return results
}

func (s *Service) join(ctx context.Context, m models.Member) (JoinAction, error) {
	const op = "membership.HandleJoin"
	today := s.Today()

	var action JoinAction
	err := s.mutate(ctx, m.PlatformID, func(ctx context.Context, tx storage.RecordTx) error {
		rec, err := tx.GetForUpdate(ctx, m.PlatformID)
		if errors.Is(err, storage.ErrRecordNotFound) {
			e := lifecycle.Enroll(today)
			action = JoinEnrolled
			return tx.InsertRecord(ctx, models.Record{
				PlatformID:      m.PlatformID,
				Handle:          m.Handle,
				FirstName:       m.FirstName,
				LastName:        m.LastName,
				JoinDate:        e.JoinDate,
				PaidUntil:       e.PaidUntil,
				LastPaymentDate: e.LastPaymentDate,
			})
		}
		if err != nil {
			return err
		}

		if !lifecycle.IsExpired(rec.PaidUntil, today) {
			action = JoinActive
			return nil
		}
		action = JoinRemoved
		return s.remove(ctx, tx, rec, &models.Notification{
			Kind:      models.NotifyAccessExpired,
			ChatID:    rec.PlatformID,
			Subject:   m,
			PaidUntil: rec.PaidUntil,
		})
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	switch action {
	case JoinEnrolled:
		s.metrics.Enrollment()
		s.log.Info("member enrolled on join", sl.UserID(m.PlatformID))
	case JoinRemoved:
		s.metrics.Removal("rejoin")
		s.log.Info("expired member removed on rejoin", sl.UserID(m.PlatformID))
	}
	return action, nil
}

// TimeRemainingResult ответ на проверку остатка.
type TimeRemainingResult struct {
	DaysLeft  int
	PaidUntil time.Time
	Removed   bool
}

// TimeRemaining сообщает, сколько дней осталось. Если ноль или меньше,
// участник исключается и запись удаляется, как при плановой проверке.
func (s *Service) TimeRemaining(ctx context.Context, m models.Member) (TimeRemainingResult, error) {
	const op = "membership.TimeRemaining"
	today := s.Today()

	rec, err := s.lookup(ctx, m.PlatformID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TimeRemainingResult{}, err
		}
		return TimeRemainingResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if !lifecycle.SelfCheckLapsed(rec.PaidUntil, today) {
		return TimeRemainingResult{DaysLeft: lifecycle.DaysRemaining(rec.PaidUntil, today), PaidUntil: rec.PaidUntil}, nil
	}

	var result TimeRemainingResult
	err = s.mutate(ctx, m.PlatformID, func(ctx context.Context, tx storage.RecordTx) error {
		fresh, err := tx.GetForUpdate(ctx, m.PlatformID)
		if errors.Is(err, storage.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		result = TimeRemainingResult{
			DaysLeft:  lifecycle.DaysRemaining(fresh.PaidUntil, today),
			PaidUntil: fresh.PaidUntil,
		}
		// Запись могли продлить, пока мы ждали блокировку.
		if !lifecycle.SelfCheckLapsed(fresh.PaidUntil, today) {
			return nil
		}
		result.Removed = true
		return s.remove(ctx, tx, fresh, nil)
	})
	if errors.Is(err, ErrNotFound) {
		return TimeRemainingResult{}, err
	}
	if err != nil {
		return TimeRemainingResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if result.Removed {
		s.metrics.Removal("self_check")
		s.log.Info("lapsed member removed on self check",
			sl.UserID(m.PlatformID),
			slog.String("paid_until", calendar.Format(result.PaidUntil)),
		)
	}
	return result, nil
}
