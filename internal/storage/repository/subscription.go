package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/storage"
)

const uniqueViolation = "23505"

const selectRecord = `SELECT platform_id, handle, first_name, last_name,
			      join_date, paid_until, last_payment_date
			  FROM subscriptions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var rec models.Record
	var lastPayment sql.NullTime
	if err := row.Scan(&rec.PlatformID, &rec.Handle, &rec.FirstName, &rec.LastName,
		&rec.JoinDate, &rec.PaidUntil, &lastPayment); err != nil {
		return nil, err
	}
	if lastPayment.Valid {
		rec.LastPaymentDate = lastPayment.Time
	}
	return &rec, nil
}

func nullDate(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func getRecord(ctx context.Context, db dbtx, op string, platformID int64, forUpdate bool) (*models.Record, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := selectRecord + ` WHERE platform_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	rec, err := scanRecord(db.QueryRowContext(ctx, query, platformID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rec, nil
}

func listRecords(ctx context.Context, db dbtx, op string, query string, args ...any) ([]*models.Record, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetRecord возвращает запись участника без блокировки.
func (s *Storage) GetRecord(ctx context.Context, platformID int64) (*models.Record, error) {
	return getRecord(ctx, s.DB, "storage.GetRecord", platformID, false)
}

// ListRecords возвращает все записи.
func (s *Storage) ListRecords(ctx context.Context) ([]*models.Record, error) {
	return listRecords(ctx, s.DB, "storage.ListRecords", selectRecord+` ORDER BY platform_id`)
}

// ListExpiring возвращает записи, у которых paid_until не позже cutoff.
func (s *Storage) ListExpiring(ctx context.Context, cutoff time.Time) ([]*models.Record, error) {
	return listRecords(ctx, s.DB, "storage.ListExpiring",
		selectRecord+` WHERE paid_until <= $1 ORDER BY paid_until, platform_id`, cutoff)
}

// GetForUpdate читает запись и блокирует строку до конца транзакции.
func (t *txStorage) GetForUpdate(ctx context.Context, platformID int64) (*models.Record, error) {
	return getRecord(ctx, t.tx, "storage.GetForUpdate", platformID, true)
}

// InsertRecord создаёт запись; при повторе platform_id возвращает storage.ErrRecordExists.
func (t *txStorage) InsertRecord(ctx context.Context, rec models.Record) error {
	const op = "storage.InsertRecord"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (platform_id, handle, first_name, last_name,
			      join_date, paid_until, last_payment_date)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := t.tx.ExecContext(ctx, query,
		rec.PlatformID, rec.Handle, rec.FirstName, rec.LastName,
		rec.JoinDate, rec.PaidUntil, nullDate(rec.LastPaymentDate))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrRecordExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdatePayment меняет paid_until и дату последнего платежа.
func (t *txStorage) UpdatePayment(ctx context.Context, platformID int64, paidUntil, lastPaymentDate time.Time) error {
	const op = "storage.UpdatePayment"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
		      SET paid_until = $1, last_payment_date = $2
		      WHERE platform_id = $3`
	res, err := t.tx.ExecContext(ctx, query, paidUntil, nullDate(lastPaymentDate), platformID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectOneRow(op, res)
}

// DeleteRecord удаляет запись участника. Журнал платежей не трогается.
func (t *txStorage) DeleteRecord(ctx context.Context, platformID int64) error {
	const op = "storage.DeleteRecord"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := t.tx.ExecContext(ctx, `DELETE FROM subscriptions WHERE platform_id = $1`, platformID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectOneRow(op, res)
}

func expectOneRow(op string, res sql.Result) error {
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrRecordNotFound)
	}
	return nil
}
