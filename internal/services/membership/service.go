// Package membership реализует операции над членством в группе:
// одобрение и отклонение платежей, обработку вступления, самостоятельную
// регистрацию, проверку остатка и отчёт о заканчивающихся подписках.
//
// Каждое изменение записи выполняется под блокировкой platform_id и в одной
// транзакции: чтение, решение lifecycle, запись.
package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/membership-bot/internal/cache"
	"github.com/magabrotheeeer/membership-bot/internal/lib/calendar"
	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
	"github.com/magabrotheeeer/membership-bot/internal/lock"
	"github.com/magabrotheeeer/membership-bot/internal/metrics"
	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/notify"
	"github.com/magabrotheeeer/membership-bot/internal/storage"
)

var (
	// ErrPermissionDenied команду вызвал не администратор.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrValidation некорректный аргумент команды.
	ErrValidation = errors.New("validation error")
	// ErrNotFound записи для пользователя нет.
	ErrNotFound = errors.New("record not found")
)

// GroupManager исключение пользователя из группы с возможностью вернуться.
type GroupManager interface {
	Kick(ctx context.Context, platformID int64) error
}

// Authorizer список администраторов.
type Authorizer interface {
	IsAdmin(platformID int64) bool
	Admins() []int64
}

// Cache кэш записей; см. пакет cache.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Deps зависимости сервиса. Cache и Metrics могут быть nil.
type Deps struct {
	Store    storage.Store
	Locker   lock.Locker
	Notifier notify.Notifier
	Group    GroupManager
	Policy   Authorizer
	Cache    Cache
	CacheTTL time.Duration
	Metrics  *metrics.Metrics
	Location *time.Location
	Now      func() time.Time
	Log      *slog.Logger
}

// Service операции членства.
type Service struct {
	store    storage.Store
	locker   lock.Locker
	notifier notify.Notifier
	group    GroupManager
	policy   Authorizer
	cache    Cache
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	loc      *time.Location
	now      func() time.Time
	log      *slog.Logger
}

// New создаёт сервис.
func New(d Deps) *Service {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.CacheTTL <= 0 {
		d.CacheTTL = time.Hour
	}
	return &Service{
		store:    d.Store,
		locker:   d.Locker,
		notifier: d.Notifier,
		group:    d.Group,
		policy:   d.Policy,
		cache:    d.Cache,
		cacheTTL: d.CacheTTL,
		metrics:  d.Metrics,
		loc:      d.Location,
		now:      d.Now,
		log:      d.Log,
	}
}

// Today текущая дата в часовом поясе группы.
func (s *Service) Today() time.Time {
	return calendar.Today(s.now(), s.loc)
}

// IsAdmin true для администраторов.
func (s *Service) IsAdmin(platformID int64) bool {
	return s.policy.IsAdmin(platformID)
}

// mutate выполняет fn под блокировкой platformID в одной транзакции
// и сбрасывает кэш записи после коммита.
func (s *Service) mutate(ctx context.Context, platformID int64, fn func(ctx context.Context, tx storage.RecordTx) error) error {
	unlock, err := s.locker.Lock(ctx, platformID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.store.RunInTx(ctx, fn); err != nil {
		return err
	}
	s.invalidate(ctx, platformID)
	return nil
}

// lookup читает запись через кэш. Ошибки кэша не мешают чтению из хранилища.
// Промах заполняется под блокировкой platformID: mutate сбрасывает кэш,
// не отпуская её, поэтому старое значение не вернётся в кэш после коммита.
func (s *Service) lookup(ctx context.Context, platformID int64) (*models.Record, error) {
	if s.cache == nil {
		return s.read(ctx, platformID)
	}

	key := cache.RecordKey(platformID)
	var cached models.Record
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("cache read failed", sl.UserID(platformID), sl.Err(err))
	} else if found {
		return &cached, nil
	}

	unlock, err := s.locker.Lock(ctx, platformID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	rec, err := s.read(ctx, platformID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, rec, s.cacheTTL); err != nil {
		s.log.Warn("cache write failed", sl.UserID(platformID), sl.Err(err))
	}
	return rec, nil
}

func (s *Service) read(ctx context.Context, platformID int64) (*models.Record, error) {
	rec, err := s.store.GetRecord(ctx, platformID)
	if errors.Is(err, storage.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) invalidate(ctx context.Context, platformID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, cache.RecordKey(platformID)); err != nil {
		s.log.Warn("cache invalidate failed", sl.UserID(platformID), sl.Err(err))
	}
}

// send доставляет уведомление; ошибка только логируется.
func (s *Service) send(ctx context.Context, n models.Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.metrics.NotificationFailed(string(n.Kind))
		s.log.Warn("notification not delivered",
			slog.String("kind", string(n.Kind)),
			slog.Int64("chat_id", n.ChatID),
			sl.Err(err),
		)
	}
}

func (s *Service) notifyAdmins(ctx context.Context, kind models.NotificationKind, subject models.Member) {
	for _, admin := range s.policy.Admins() {
		s.send(ctx, models.Notification{Kind: kind, ChatID: admin, Subject: subject})
	}
}

func (s *Service) requireAdmin(caller int64) error {
	if !s.policy.IsAdmin(caller) {
		return ErrPermissionDenied
	}
	return nil
}

func memberOf(rec *models.Record) models.Member {
	return models.Member{
		PlatformID: rec.PlatformID,
		Handle:     rec.Handle,
		FirstName:  rec.FirstName,
		LastName:   rec.LastName,
	}
}

func validateTarget(target int64) error {
	if target <= 0 {
		return fmt.Errorf("%w: user id must be a positive integer", ErrValidation)
	}
	return nil
}
