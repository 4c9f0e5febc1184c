package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func lockers(t *testing.T) map[string]Locker {
	client, _ := setupRedis(t)
	return map[string]Locker{
		"redis": NewRedis(client, time.Minute),
		"local": NewLocal(),
	}
}

func TestLocker_MutualExclusion(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			var inside, maxInside int32
			var wg sync.WaitGroup
			for range 10 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					unlock, err := l.Lock(context.Background(), 42)
					if !assert.NoError(t, err) {
						return
					}
					n := atomic.AddInt32(&inside, 1)
					for {
						m := atomic.LoadInt32(&maxInside)
						if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
							break
						}
					}
					time.Sleep(2 * time.Millisecond)
					atomic.AddInt32(&inside, -1)
					unlock()
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), maxInside)
		})
	}
}

func TestLocker_DifferentKeysIndependent(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			unlockA, err := l.Lock(context.Background(), 1)
			require.NoError(t, err)
			defer unlockA()

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			unlockB, err := l.Lock(ctx, 2)
			require.NoError(t, err)
			unlockB()
		})
	}
}

func TestLocker_Timeout(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			unlock, err := l.Lock(context.Background(), 7)
			require.NoError(t, err)
			defer unlock()

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
			defer cancel()
			_, err = l.Lock(ctx, 7)
			assert.ErrorIs(t, err, ErrLockTimeout)
		})
	}
}

func TestLocker_UnlockIdempotent(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			unlock, err := l.Lock(context.Background(), 3)
			require.NoError(t, err)
			unlock()
			unlock()

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			again, err := l.Lock(ctx, 3)
			require.NoError(t, err)
			again()
		})
	}
}

func TestRedis_ReleaseDoesNotStealForeignLock(t *testing.T) {
	client, mr := setupRedis(t)
	l := NewRedis(client, time.Second)

	unlock, err := l.Lock(context.Background(), 5)
	require.NoError(t, err)

	// Владелец "завис": ключ истёк и его занял другой процесс.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set(Key(5), "other-owner"))

	unlock()
	got, err := mr.Get(Key(5))
	require.NoError(t, err)
	assert.Equal(t, "other-owner", got)
}

func TestLocal_SlotsCleanedUp(t *testing.T) {
	l := NewLocal()
	unlock, err := l.Lock(context.Background(), 9)
	require.NoError(t, err)
	unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.slots)
}
