// Package lock сериализует изменения подписки одного участника.
// Redis даёт блокировку между процессами (бот и планировщик),
// Local подходит для одного процесса.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker выдаёт эксклюзивную блокировку по platform_id.
// Вызов unlock обязателен и идемпотентен.
type Locker interface {
	Lock(ctx context.Context, platformID int64) (func(), error)
}

// ErrLockTimeout блокировку не удалось получить до отмены контекста.
var ErrLockTimeout = errors.New("lock: acquire timeout")

const retryInterval = 25 * time.Millisecond

// releaseScript удаляет ключ только если он всё ещё принадлежит владельцу.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Redis блокировка через SET NX PX с уникальным токеном владельца.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis создаёт распределённую блокировку. ttl ограничивает время удержания
// на случай падения владельца.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{client: client, ttl: ttl}
}

// Key ключ блокировки участника.
func Key(platformID int64) string {
	return "membership:lock:" + strconv.FormatInt(platformID, 10)
}

// Lock ждёт освобождения ключа, пока не отменён ctx.
func (r *Redis) Lock(ctx context.Context, platformID int64) (func(), error) {
	const op = "lock.Redis.Lock"
	key := Key(platformID)
	token := uuid.NewString()

	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					// Отдельный контекст: ctx вызывающего к этому моменту может быть отменён.
					releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = releaseScript.Run(releaseCtx, r.client, []string{key}, token).Err()
				})
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w: %w", op, ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Local блокировка в пределах процесса.
type Local struct {
	mu    sync.Mutex
	slots map[int64]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal создаёт блокировку для одного процесса.
func NewLocal() *Local {
	return &Local{slots: make(map[int64]*slot)}
}

// Lock ждёт освобождения слота участника, пока не отменён ctx.
func (l *Local) Lock(ctx context.Context, platformID int64) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[platformID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[platformID] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(platformID, s)
		return nil, fmt.Errorf("lock.Local.Lock: %w: %w", ErrLockTimeout, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.release(platformID, s)
		})
	}, nil
}

func (l *Local) release(platformID int64, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, platformID)
	}
}
