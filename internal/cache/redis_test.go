package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/membership-bot/internal/config"
	"github.com/magabrotheeeer/membership-bot/internal/lib/calendar"
	"github.com/magabrotheeeer/membership-bot/internal/models"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.RedisConnection{
		AddressRedis: mr.Addr(),
	}

	cache, err := InitServer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Db.Close() })
	return cache, mr
}

func TestSetAndGet(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	expected := models.Record{
		PlatformID: 42,
		Handle:     "ana",
		JoinDate:   calendar.Date(2024, time.January, 1),
		PaidUntil:  calendar.Date(2024, time.January, 31),
	}
	require.NoError(t, cache.Set(ctx, RecordKey(42), expected, time.Minute))

	var actual models.Record
	found, err := cache.Get(ctx, RecordKey(42), &actual)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, expected.PlatformID, actual.PlatformID)
	assert.True(t, expected.PaidUntil.Equal(actual.PaidUntil))
}

func TestGetNotFound(t *testing.T) {
	cache, _ := setupTestCache(t)

	var out models.Record
	found, err := cache.Get(context.Background(), "no_such_key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidate(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, RecordKey(1), models.Record{PlatformID: 1}, time.Minute))
	require.NoError(t, cache.Invalidate(ctx, RecordKey(1)))

	var out models.Record
	found, err := cache.Get(ctx, RecordKey(1), &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestExpiration(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, RecordKey(1), models.Record{PlatformID: 1}, time.Second))
	mr.FastForward(2 * time.Second)

	var out models.Record
	found, err := cache.Get(ctx, RecordKey(1), &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetCorruptedValue(t *testing.T) {
	cache, mr := setupTestCache(t)
	require.NoError(t, mr.Set(RecordKey(9), "{not json"))

	var out models.Record
	_, err := cache.Get(context.Background(), RecordKey(9), &out)
	assert.Error(t, err)
}

func TestInitServer_Unreachable(t *testing.T) {
	_, err := InitServer(context.Background(), config.RedisConnection{
		AddressRedis: "127.0.0.1:1",
		DialTimeout:  100 * time.Millisecond,
	})
	assert.Error(t, err)
}

func TestRecordKey(t *testing.T) {
	assert.Equal(t, "membership:record:42", RecordKey(42))
	assert.Equal(t, "membership:record:-7", RecordKey(-7))
}
