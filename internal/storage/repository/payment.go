package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/membership-bot/internal/models"
)

// AppendPayment добавляет запись в журнал платежей.
func (t *txStorage) AppendPayment(ctx context.Context, event models.PaymentEvent) error {
	const op = "storage.AppendPayment"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO payment_events (record_ref, payment_date, paid_until)
			  VALUES ($1, $2, $3)`
	if _, err := t.tx.ExecContext(ctx, query, event.PlatformID, event.PaymentDate, event.PaidUntil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListPayments возвращает журнал платежей участника в порядке добавления.
func (s *Storage) ListPayments(ctx context.Context, platformID int64) ([]models.PaymentEvent, error) {
	const op = "storage.ListPayments"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, record_ref, payment_date, paid_until
			  FROM payment_events
			  WHERE record_ref = $1
			  ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query, platformID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.PaymentEvent
	for rows.Next() {
		var ev models.PaymentEvent
		if err := rows.Scan(&ev.ID, &ev.PlatformID, &ev.PaymentDate, &ev.PaidUntil); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, ev)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
