// Package infra собирает общие зависимости процессов: хранилище,
// блокировки, кэш и доставку уведомлений.
package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/membership-bot/internal/cache"
	"github.com/magabrotheeeer/membership-bot/internal/config"
	"github.com/magabrotheeeer/membership-bot/internal/http-server/handlers/health"
	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
	"github.com/magabrotheeeer/membership-bot/internal/lock"
	"github.com/magabrotheeeer/membership-bot/internal/migrations"
	"github.com/magabrotheeeer/membership-bot/internal/notify"
	"github.com/magabrotheeeer/membership-bot/internal/rabbitmq"
	"github.com/magabrotheeeer/membership-bot/internal/services/membership"
	"github.com/magabrotheeeer/membership-bot/internal/storage"
	"github.com/magabrotheeeer/membership-bot/internal/storage/memory"
	"github.com/magabrotheeeer/membership-bot/internal/storage/repository"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	NotifyDirect = "direct"
	NotifyQueue  = "queue"
)

// Infra открытые ресурсы процесса.
type Infra struct {
	Store  storage.Store
	Locker lock.Locker
	Cache  *cache.Cache
	Checks map[string]health.CheckFunc

	closers []func() error
	log     *slog.Logger
}

// Open подключает хранилище и Redis. При applyMigrations схема обновляется,
// иначе Open ждёт, пока её создаст другой процесс.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger, applyMigrations bool) (*Infra, error) {
	i := &Infra{Checks: make(map[string]health.CheckFunc), log: log}

	if err := i.openStorage(ctx, cfg, applyMigrations); err != nil {
		i.Close()
		return nil, err
	}
	if err := i.openRedis(ctx, cfg.RedisConnection); err != nil {
		i.Close()
		return nil, err
	}
	return i, nil
}

func (i *Infra) openStorage(ctx context.Context, cfg *config.Config, applyMigrations bool) error {
	switch cfg.StorageKind {
	case StorageMemory:
		i.log.Warn("using in-memory storage, data is lost on restart")
		i.Store = memory.New()
		return nil
	case StoragePostgres, "":
	default:
		return fmt.Errorf("unknown storage kind %q", cfg.StorageKind)
	}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return fmt.Errorf("failed to connect storage: %w", err)
	}
	i.closers = append(i.closers, db.Close)

	if applyMigrations {
		if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
			return err
		}
	} else if err := waitForDB(ctx, db); err != nil {
		return err
	}

	i.Store = db
	i.Checks["storage"] = func(ctx context.Context) error {
		return db.DB.PingContext(ctx)
	}
	return nil
}

func waitForDB(ctx context.Context, db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(ctx, db)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return fmt.Errorf("database not ready after retries")
}

// openRedis без адреса Redis блокировки работают внутри процесса, кэша нет.
func (i *Infra) openRedis(ctx context.Context, cfg config.RedisConnection) error {
	if cfg.AddressRedis == "" {
		i.log.Info("redis is not configured, using process-local locks")
		i.Locker = lock.NewLocal()
		return nil
	}

	client, err := cache.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cache not initialized: %w", err)
	}
	i.closers = append(i.closers, client.Close)

	i.Locker = lock.NewRedis(client, cfg.LockTTL)
	i.Cache = &cache.Cache{Db: client}
	i.Checks["redis"] = func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
	return nil
}

// MembershipCache кэш для membership.Deps; nil, если Redis не настроен.
func (i *Infra) MembershipCache() membership.Cache {
	if i.Cache == nil {
		return nil
	}
	return i.Cache
}

// Notifier выбирает доставку уведомлений по cfg.Mode.
func (i *Infra) Notifier(cfg *config.Config, messenger notify.Messenger) (notify.Notifier, error) {
	switch cfg.Mode {
	case NotifyDirect, "":
		return notify.NewDirect(messenger, notify.Renderer{InviteLink: cfg.InviteLink}, cfg.Notifications.Timeout), nil
	case NotifyQueue:
		conn, ch, err := OpenQueue(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		i.closers = append(i.closers, conn.Close, ch.Close)
		return notify.NewQueue(ch, cfg.Notifications.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown notifications mode %q", cfg.Mode)
	}
}

// OpenQueue подключается к RabbitMQ и объявляет очереди уведомлений.
func OpenQueue(cfg config.RabbitMQ) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}
	return conn, ch, nil
}

// Close освобождает ресурсы в обратном порядке.
func (i *Infra) Close() {
	for k := len(i.closers) - 1; k >= 0; k-- {
		if err := i.closers[k](); err != nil && !errors.Is(err, redis.ErrClosed) && !errors.Is(err, amqp.ErrClosed) {
			i.log.Error("failed to close resource", sl.Err(err))
		}
	}
	i.closers = nil
}
