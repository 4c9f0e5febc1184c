// Package scheduler плановая проверка подписок: напоминания за день и в
// последний день, исключение участников с истёкшей подпиской.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/membership-bot/internal/lib/calendar"
	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
	"github.com/magabrotheeeer/membership-bot/internal/lifecycle"
	"github.com/magabrotheeeer/membership-bot/internal/metrics"
	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/notify"
)

// RecordLister источник записей для проверки.
type RecordLister interface {
	ListRecords(ctx context.Context) ([]*models.Record, error)
}

// Remover исключение под блокировкой; реализует membership.Service.
type Remover interface {
	RemoveIfExpired(ctx context.Context, platformID int64) (bool, error)
	Today() time.Time
}

// SchedulerService выполняет проверку по расписанию.
type SchedulerService struct {
	repo     RecordLister
	remover  Remover
	notifier notify.Notifier
	workers  int
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// NewSchedulerService создаёт сервис; workers ограничивает параллельную обработку записей.
func NewSchedulerService(repo RecordLister, remover Remover, notifier notify.Notifier,
	workers int, m *metrics.Metrics, log *slog.Logger) *SchedulerService {
	if workers < 1 {
		workers = 1
	}
	return &SchedulerService{
		repo:     repo,
		remover:  remover,
		notifier: notifier,
		workers:  workers,
		metrics:  m,
		log:      log,
	}
}

// SweepReport итоги одного прохода.
type SweepReport struct {
	Total       int
	LastDay     int
	DueTomorrow int
	Removed     int
	Skipped     int
	Failed      int
}

// Run выполняет проверку сразу и затем каждые interval, пока не отменён ctx.
func (s *SchedulerService) Run(ctx context.Context, interval time.Duration) {
	s.RunSweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunSweep(ctx)
		}
	}
}

// RunSweep один проход по всем записям. Ошибка по одной записи
// логируется и не прерывает обработку остальных.
func (s *SchedulerService) RunSweep(ctx context.Context) SweepReport {
	start := time.Now()
	today := s.remover.Today()
	log := s.log.With(
		slog.String("run_id", uuid.NewString()),
		slog.String("today", calendar.Format(today)),
	)
	log.Info("starting expiry sweep")

	records, err := s.repo.ListRecords(ctx)
	if err != nil {
		log.Error("failed to list records", sl.Err(err))
		return SweepReport{}
	}

	var (
		mu     sync.Mutex
		report = SweepReport{Total: len(records)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, rec := range records {
		g.Go(func() error {
			action := lifecycle.SweepActionFor(rec.PaidUntil, today)
			outcome := s.process(gctx, log, rec, action)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case outcome == outcomeFailed:
				report.Failed++
			case outcome == outcomeSkipped:
				report.Skipped++
			case action == lifecycle.SweepLastDay:
				report.LastDay++
			case action == lifecycle.SweepDueTomorrow:
				report.DueTomorrow++
			case action == lifecycle.SweepRemove:
				report.Removed++
			}
			return nil
		})
	}
	_ = g.Wait()

	s.metrics.SweepDuration(time.Since(start).Seconds())
	log.Info("expiry sweep finished",
		slog.Int("total", report.Total),
		slog.Int("last_day", report.LastDay),
		slog.Int("due_tomorrow", report.DueTomorrow),
		slog.Int("removed", report.Removed),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
	)
	return report
}

const (
	outcomeOK      = "ok"
	outcomeSkipped = "skipped"
	outcomeFailed  = "error"
)

func (s *SchedulerService) process(ctx context.Context, log *slog.Logger, rec *models.Record, action lifecycle.SweepAction) string {
	var kind models.NotificationKind
	switch action {
	case lifecycle.SweepNone:
		return outcomeOK
	case lifecycle.SweepLastDay:
		kind = models.NotifyLastDay
	case lifecycle.SweepDueTomorrow:
		kind = models.NotifyDueTomorrow
	case lifecycle.SweepRemove:
		removed, err := s.remover.RemoveIfExpired(ctx, rec.PlatformID)
		outcome := outcomeOK
		switch {
		case err != nil:
			outcome = outcomeFailed
			log.Error("failed to remove expired member", sl.UserID(rec.PlatformID), sl.Err(err))
		case !removed:
			outcome = outcomeSkipped
			log.Info("member no longer expired, skipped", sl.UserID(rec.PlatformID))
		}
		s.metrics.SweepAction(action.String(), outcome)
		return outcome
	}

	err := s.notifier.Notify(ctx, models.Notification{
		Kind:   kind,
		ChatID: rec.PlatformID,
		Subject: models.Member{
			PlatformID: rec.PlatformID,
			Handle:     rec.Handle,
			FirstName:  rec.FirstName,
			LastName:   rec.LastName,
		},
		PaidUntil: rec.PaidUntil,
	})
	if err != nil {
		s.metrics.SweepAction(action.String(), outcomeFailed)
		s.metrics.NotificationFailed(string(kind))
		log.Warn("failed to send reminder", sl.UserID(rec.PlatformID), slog.String("kind", string(kind)), sl.Err(err))
		return outcomeFailed
	}
	s.metrics.SweepAction(action.String(), outcomeOK)
	return outcomeOK
}
