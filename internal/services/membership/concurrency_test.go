package membership

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/membership-bot/internal/cache"
	"github.com/magabrotheeeer/membership-bot/internal/config"
	"github.com/magabrotheeeer/membership-bot/internal/lib/calendar"
	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/storage"
)

// pausedReads останавливает первое чтение GetRecord до закрытия release.
type pausedReads struct {
	storage.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (p *pausedReads) GetRecord(ctx context.Context, platformID int64) (*models.Record, error) {
	p.once.Do(func() {
		close(p.entered)
		<-p.release
	})
	return p.Store.GetRecord(ctx, platformID)
}

func TestSlowKickDoesNotBlockOtherMembers(t *testing.T) {
	f := newFixture(t)
	f.seed(t, models.Record{PlatformID: userID, PaidUntil: calendar.AddDays(today, -1)})

	kicking := make(chan struct{})
	release := make(chan struct{})
	f.notifier.On("Notify", mock.Anything, kindIs(models.NotifyExpiredRemoval, userID)).Return(nil).Once()
	f.group.On("Kick", mock.Anything, userID).Run(func(mock.Arguments) {
		close(kicking)
		<-release
	}).Return(nil).Once()
	f.notifier.On("Notify", mock.Anything, kindIs(models.NotifyPaymentApproved, 7)).Return(nil).Once()

	removed := make(chan error, 1)
	go func() {
		_, err := f.svc.RemoveIfExpired(context.Background(), userID)
		removed <- err
	}()
	<-kicking

	approved := make(chan error, 1)
	go func() {
		_, err := f.svc.Approve(context.Background(), adminID, 7)
		approved <- err
	}()
	select {
	case err := <-approved:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("approve of another member waited for the kick")
	}
	assert.NotNil(t, f.record(t, 7))

	close(release)
	require.NoError(t, <-removed)
	assert.Nil(t, f.record(t, userID))
}

func TestCacheFillDoesNotOutliveMutation(t *testing.T) {
	f := newFixture(t)
	f.seed(t, models.Record{PlatformID: userID, PaidUntil: calendar.AddDays(today, 5)})

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	c, err := cache.InitServer(context.Background(), config.RedisConnection{AddressRedis: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Db.Close() })

	reads := &pausedReads{Store: f.store, entered: make(chan struct{}), release: make(chan struct{})}
	f.svc.store = reads
	f.svc.cache = c
	f.notifier.On("Notify", mock.Anything, kindIs(models.NotifyPaymentApproved, userID)).Return(nil).Once()

	first := make(chan error, 1)
	go func() {
		_, err := f.svc.TimeRemaining(context.Background(), models.Member{PlatformID: userID})
		first <- err
	}()
	<-reads.entered

	approved := make(chan error, 1)
	go func() {
		_, err := f.svc.Approve(context.Background(), adminID, userID)
		approved <- err
	}()
	time.Sleep(50 * time.Millisecond)
	close(reads.release)

	require.NoError(t, <-first)
	require.NoError(t, <-approved)

	res, err := f.svc.TimeRemaining(context.Background(), models.Member{PlatformID: userID})
	require.NoError(t, err)
	assert.Equal(t, calendar.AddDays(today, 35), res.PaidUntil)
	assert.Equal(t, 35, res.DaysLeft)
}
