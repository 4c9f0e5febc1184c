// Package storage описывает контракт хранилища подписок, общий для
// PostgreSQL и in-memory реализаций.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/magabrotheeeer/membership-bot/internal/models"
)

var (
	// ErrRecordNotFound записи для platform_id нет.
	ErrRecordNotFound = errors.New("record not found")
	// ErrRecordExists запись для platform_id уже создана.
	ErrRecordExists = errors.New("record already exists")
)

// RecordTx операции над записью внутри одной транзакции.
// GetForUpdate блокирует строку до конца транзакции.
type RecordTx interface {
	GetForUpdate(ctx context.Context, platformID int64) (*models.Record, error)
	InsertRecord(ctx context.Context, rec models.Record) error
	UpdatePayment(ctx context.Context, platformID int64, paidUntil, lastPaymentDate time.Time) error
	DeleteRecord(ctx context.Context, platformID int64) error
	AppendPayment(ctx context.Context, event models.PaymentEvent) error
}

// Store хранилище подписок.
type Store interface {
	// RunInTx выполняет fn в транзакции: коммит при nil, откат при ошибке.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx RecordTx) error) error
	// GetRecord читает запись без блокировки.
	GetRecord(ctx context.Context, platformID int64) (*models.Record, error)
	// ListRecords возвращает все записи, упорядоченные по platform_id.
	ListRecords(ctx context.Context) ([]*models.Record, error)
	// ListExpiring возвращает записи с paid_until <= cutoff по возрастанию даты.
	ListExpiring(ctx context.Context, cutoff time.Time) ([]*models.Record, error)
	// ListPayments журнал платежей участника в порядке добавления.
	ListPayments(ctx context.Context, platformID int64) ([]models.PaymentEvent, error)
}
