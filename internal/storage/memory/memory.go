// Package memory реализует хранилище подписок в памяти процесса.
// Используется при storage_kind: memory и в тестах сервисов.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/magabrotheeeer/membership-bot/internal/lock"
	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/storage"
)

// Storage хранит записи и журнал платежей в памяти.
// Транзакция блокирует только затронутые записи и копит изменения,
// общий мьютекс берётся лишь на чтение и на публикацию при коммите.
type Storage struct {
	mu       sync.RWMutex
	records  map[int64]models.Record
	payments []models.PaymentEvent
	nextID   int64
	rows     *lock.Local
}

// New создаёт пустое хранилище.
func New() *Storage {
	return &Storage{
		records: make(map[int64]models.Record),
		rows:    lock.NewLocal(),
	}
}

type txStorage struct {
	s        *Storage
	held     map[int64]func()
	writes   map[int64]*models.Record // nil: запись удалена
	payments []models.PaymentEvent
}

// RunInTx выполняет fn и публикует накопленные изменения только при успехе.
// Блокировки записей держатся до конца транзакции, как SELECT ... FOR UPDATE.
func (s *Storage) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.RecordTx) error) (err error) {
	const op = "storage.memory.RunInTx"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tx := &txStorage{
		s:      s,
		held:   make(map[int64]func()),
		writes: make(map[int64]*models.Record),
	}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// GetRecord возвращает копию записи.
func (s *Storage) GetRecord(ctx context.Context, platformID int64) (*models.Record, error) {
	const op = "storage.memory.GetRecord"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[platformID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrRecordNotFound)
	}
	return &rec, nil
}

// ListRecords возвращает все записи по возрастанию platform_id.
func (s *Storage) ListRecords(ctx context.Context) ([]*models.Record, error) {
	return s.list(ctx, "storage.memory.ListRecords", func(models.Record) bool { return true }, false)
}

// ListExpiring возвращает записи с paid_until <= cutoff по возрастанию даты.
func (s *Storage) ListExpiring(ctx context.Context, cutoff time.Time) ([]*models.Record, error) {
	return s.list(ctx, "storage.memory.ListExpiring", func(r models.Record) bool {
		return !r.PaidUntil.After(cutoff)
	}, true)
}

func (s *Storage) list(ctx context.Context, op string, keep func(models.Record) bool, byPaidUntil bool) ([]*models.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Record
	for _, rec := range s.records {
		if keep(rec) {
			r := rec
			result = append(result, &r)
		}
	}
	slices.SortFunc(result, func(a, b *models.Record) int {
		if byPaidUntil {
			if c := a.PaidUntil.Compare(b.PaidUntil); c != 0 {
				return c
			}
		}
		switch {
		case a.PlatformID < b.PlatformID:
			return -1
		case a.PlatformID > b.PlatformID:
			return 1
		}
		return 0
	})
	return result, nil
}

// ListPayments журнал платежей участника.
func (s *Storage) ListPayments(ctx context.Context, platformID int64) ([]models.PaymentEvent, error) {
	const op = "storage.memory.ListPayments"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.PaymentEvent
	for _, ev := range s.payments {
		if ev.PlatformID == platformID {
			result = append(result, ev)
		}
	}
	return result, nil
}

func (t *txStorage) acquire(ctx context.Context, platformID int64) error {
	if _, ok := t.held[platformID]; ok {
		return nil
	}
	unlock, err := t.s.rows.Lock(ctx, platformID)
	if err != nil {
		return err
	}
	t.held[platformID] = unlock
	return nil
}

func (t *txStorage) release() {
	for _, unlock := range t.held {
		unlock()
	}
}

// current запись с учётом изменений этой транзакции.
func (t *txStorage) current(platformID int64) (models.Record, bool) {
	if rec, ok := t.writes[platformID]; ok {
		if rec == nil {
			return models.Record{}, false
		}
		return *rec, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	rec, ok := t.s.records[platformID]
	return rec, ok
}

func (t *txStorage) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for id, rec := range t.writes {
		if rec == nil {
			delete(t.s.records, id)
			continue
		}
		t.s.records[id] = *rec
	}
	for _, ev := range t.payments {
		t.s.nextID++
		ev.ID = t.s.nextID
		t.s.payments = append(t.s.payments, ev)
	}
}

func (t *txStorage) GetForUpdate(ctx context.Context, platformID int64) (*models.Record, error) {
	const op = "storage.memory.GetForUpdate"
	if err := t.acquire(ctx, platformID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rec, ok := t.current(platformID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrRecordNotFound)
	}
	return &rec, nil
}

func (t *txStorage) InsertRecord(ctx context.Context, rec models.Record) error {
	const op = "storage.memory.InsertRecord"
	if err := t.acquire(ctx, rec.PlatformID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, ok := t.current(rec.PlatformID); ok {
		return fmt.Errorf("%s: %w", op, storage.ErrRecordExists)
	}
	t.writes[rec.PlatformID] = &rec
	return nil
}

func (t *txStorage) UpdatePayment(ctx context.Context, platformID int64, paidUntil, lastPaymentDate time.Time) error {
	const op = "storage.memory.UpdatePayment"
	if err := t.acquire(ctx, platformID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rec, ok := t.current(platformID)
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrRecordNotFound)
	}
	rec.PaidUntil = paidUntil
	rec.LastPaymentDate = lastPaymentDate
	t.writes[platformID] = &rec
	return nil
}

func (t *txStorage) DeleteRecord(ctx context.Context, platformID int64) error {
	const op = "storage.memory.DeleteRecord"
	if err := t.acquire(ctx, platformID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, ok := t.current(platformID); !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrRecordNotFound)
	}
	t.writes[platformID] = nil
	return nil
}

func (t *txStorage) AppendPayment(_ context.Context, event models.PaymentEvent) error {
	t.payments = append(t.payments, event)
	return nil
}
