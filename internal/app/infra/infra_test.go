package infra

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/membership-bot/internal/config"
	"github.com/magabrotheeeer/membership-bot/internal/lock"
	"github.com/magabrotheeeer/membership-bot/internal/notify"
	"github.com/magabrotheeeer/membership-bot/internal/storage/memory"
)

type nopMessenger struct{}

func (nopMessenger) SendMessage(context.Context, int64, string, bool) error { return nil }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpen_MemoryWithoutRedis(t *testing.T) {
	cfg := &config.Config{StorageKind: StorageMemory}

	i, err := Open(context.Background(), cfg, discard(), true)
	require.NoError(t, err)
	defer i.Close()

	assert.IsType(t, &memory.Storage{}, i.Store)
	assert.IsType(t, &lock.Local{}, i.Locker)
	assert.Nil(t, i.MembershipCache())
	assert.Empty(t, i.Checks)
}

func TestOpen_MemoryWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{StorageKind: StorageMemory}
	cfg.AddressRedis = mr.Addr()

	i, err := Open(context.Background(), cfg, discard(), true)
	require.NoError(t, err)
	defer i.Close()

	assert.IsType(t, &lock.Redis{}, i.Locker)
	require.NotNil(t, i.MembershipCache())
	require.Contains(t, i.Checks, "redis")
	assert.NoError(t, i.Checks["redis"](context.Background()))

	mr.Close()
	assert.Error(t, i.Checks["redis"](context.Background()))
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{StorageKind: "cassandra"}, discard(), true)
	assert.ErrorContains(t, err, "unknown storage kind")

	cfg := &config.Config{StorageKind: StorageMemory}
	cfg.AddressRedis = "127.0.0.1:1"
	cfg.DialTimeout = 100 * time.Millisecond
	_, err = Open(context.Background(), cfg, discard(), true)
	assert.ErrorContains(t, err, "cache not initialized")
}

func TestNotifier(t *testing.T) {
	i, err := Open(context.Background(), &config.Config{StorageKind: StorageMemory}, discard(), true)
	require.NoError(t, err)
	defer i.Close()

	n, err := i.Notifier(&config.Config{}, nopMessenger{})
	require.NoError(t, err)
	assert.IsType(t, &notify.Direct{}, n)

	cfg := &config.Config{}
	cfg.Mode = "carrier-pigeon"
	_, err = i.Notifier(cfg, nopMessenger{})
	assert.ErrorContains(t, err, "unknown notifications mode")
}
