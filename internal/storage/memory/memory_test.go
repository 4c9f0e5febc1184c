package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/membership-bot/internal/lib/calendar"
	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/storage"
)

func insert(t *testing.T, s *Storage, id int64, paidUntil time.Time) {
	t.Helper()
	err := s.RunInTx(context.Background(), func(ctx context.Context, tx storage.RecordTx) error {
		return tx.InsertRecord(ctx, models.Record{PlatformID: id, PaidUntil: paidUntil, JoinDate: paidUntil})
	})
	require.NoError(t, err)
}

func TestStorage_InsertGetDelete(t *testing.T) {
	s := New()
	ctx := context.Background()
	insert(t, s, 42, calendar.Date(2024, time.March, 10))

	rec, err := s.GetRecord(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), rec.PlatformID)

	err = s.RunInTx(ctx, func(ctx context.Context, tx storage.RecordTx) error {
		return tx.InsertRecord(ctx, models.Record{PlatformID: 42})
	})
	assert.ErrorIs(t, err, storage.ErrRecordExists)

	err = s.RunInTx(ctx, func(ctx context.Context, tx storage.RecordTx) error {
		return tx.DeleteRecord(ctx, 42)
	})
	require.NoError(t, err)

	_, err = s.GetRecord(ctx, 42)
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}

func TestStorage_RollbackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	insert(t, s, 1, calendar.Date(2024, time.March, 10))

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context, tx storage.RecordTx) error {
		if err := tx.UpdatePayment(ctx, 1, calendar.Date(2030, time.January, 1), calendar.Date(2024, time.March, 1)); err != nil {
			return err
		}
		if err := tx.AppendPayment(ctx, models.PaymentEvent{PlatformID: 1}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rec, err := s.GetRecord(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, calendar.Date(2024, time.March, 10), rec.PaidUntil)

	payments, err := s.ListPayments(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestStorage_ListExpiring(t *testing.T) {
	s := New()
	ctx := context.Background()
	insert(t, s, 3, calendar.Date(2024, time.June, 20))
	insert(t, s, 2, calendar.Date(2024, time.June, 5))
	insert(t, s, 1, calendar.Date(2024, time.June, 5))
	insert(t, s, 4, calendar.Date(2024, time.July, 30))

	recs, err := s.ListExpiring(ctx, calendar.Date(2024, time.June, 20))
	require.NoError(t, err)
	var ids []int64
	for _, r := range recs {
		ids = append(ids, r.PlatformID)
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)

	all, err := s.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, int64(1), all[0].PlatformID)
	assert.Equal(t, int64(4), all[3].PlatformID)
}

func TestStorage_PaymentsSurviveDeletion(t *testing.T) {
	s := New()
	ctx := context.Background()
	insert(t, s, 5, calendar.Date(2024, time.June, 20))

	err := s.RunInTx(ctx, func(ctx context.Context, tx storage.RecordTx) error {
		if err := tx.AppendPayment(ctx, models.PaymentEvent{PlatformID: 5}); err != nil {
			return err
		}
		return tx.DeleteRecord(ctx, 5)
	})
	require.NoError(t, err)

	payments, err := s.ListPayments(ctx, 5)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, int64(1), payments[0].ID)
}

func TestStorage_ConcurrentTransactions(t *testing.T) {
	s := New()
	ctx := context.Background()
	insert(t, s, 1, calendar.Date(2024, time.January, 1))

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.RunInTx(ctx, func(ctx context.Context, tx storage.RecordTx) error {
				rec, err := tx.GetForUpdate(ctx, 1)
				if err != nil {
					return err
				}
				return tx.UpdatePayment(ctx, 1, calendar.AddDays(rec.PaidUntil, 1), rec.LastPaymentDate)
			})
		}()
	}
	wg.Wait()

	rec, err := s.GetRecord(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, calendar.Date(2024, time.January, 21), rec.PaidUntil)
}

func TestStorage_CanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.GetRecord(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStorage_TransactionsOnDifferentRecordsOverlap(t *testing.T) {
	s := New()
	ctx := context.Background()
	insert(t, s, 1, calendar.Date(2024, time.June, 1))

	entered := make(chan struct{})
	release := make(chan struct{})
	slow := make(chan error, 1)
	go func() {
		slow <- s.RunInTx(ctx, func(ctx context.Context, tx storage.RecordTx) error {
			if _, err := tx.GetForUpdate(ctx, 1); err != nil {
				return err
			}
			close(entered)
			<-release
			return tx.DeleteRecord(ctx, 1)
		})
	}()
	<-entered

	fast := make(chan error, 1)
	go func() {
		fast <- s.RunInTx(ctx, func(ctx context.Context, tx storage.RecordTx) error {
			return tx.InsertRecord(ctx, models.Record{PlatformID: 2})
		})
	}()
	select {
	case err := <-fast:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("transaction on another record waited for an open one")
	}

	rec, err := s.GetRecord(ctx, 1)
	require.NoError(t, err, "uncommitted delete is not visible")
	assert.Equal(t, int64(1), rec.PlatformID)

	close(release)
	require.NoError(t, <-slow)
	_, err = s.GetRecord(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}

func TestStorage_SameRecordWaitsForLock(t *testing.T) {
	s := New()
	insert(t, s, 1, calendar.Date(2024, time.June, 1))

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.RunInTx(context.Background(), func(ctx context.Context, tx storage.RecordTx) error {
			if _, err := tx.GetForUpdate(ctx, 1); err != nil {
				return err
			}
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.RunInTx(ctx, func(ctx context.Context, tx storage.RecordTx) error {
		_, err := tx.GetForUpdate(ctx, 1)
		return err
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, <-done)
}
