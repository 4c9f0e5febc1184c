// Package legacy переносит данные из SQLite-базы прежней версии бота
// (таблицы users и payments, даты в TEXT) в текущее хранилище.
package legacy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/membership-bot/internal/lib/calendar"
	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
	"github.com/magabrotheeeer/membership-bot/internal/lifecycle"
	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/storage"

	// Драйвер SQLite без cgo.
	_ "modernc.org/sqlite"
)

// OpenSource открывает файл базы прежней версии только для чтения.
func OpenSource(path string) (*sql.DB, error) {
	const op = "legacy.OpenSource"
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return db, nil
}

// userRow строка таблицы users как есть.
type userRow struct {
	ID          int64
	PlatformID  int64
	Handle      sql.NullString
	FirstName   sql.NullString
	LastName    sql.NullString
	JoinDate    sql.NullString
	PaidUntil   sql.NullString
	LastPayment sql.NullString
}

// Report итоги переноса.
type Report struct {
	Users      int // строк в users
	Imported   int // новых записей
	Existing   int // уже были в хранилище, не тронуты
	Recomputed int // paid_until восстановлен по join_date
	Malformed  int // пропущены из-за некорректных дат
	Failed     int // ошибка записи
	Payments   int // перенесено событий журнала
	BadPayment int // события с некорректными датами
	DryRun     bool
}

// Importer переносит записи в storage.Store.
type Importer struct {
	store storage.Store
	today func() time.Time
	log   *slog.Logger
}

// NewImporter создаёт Importer; today возвращает текущую календарную дату.
func NewImporter(store storage.Store, today func() time.Time, log *slog.Logger) *Importer {
	return &Importer{store: store, today: today, log: log}
}

// Import читает src и записывает новые записи вместе с их журналом платежей.
// Каждая запись переносится в своей транзакции; ошибки по одной записи не
// прерывают перенос. При dryRun хранилище не меняется.
func (i *Importer) Import(ctx context.Context, src *sql.DB, dryRun bool) (Report, error) {
	const op = "legacy.Import"
	report := Report{DryRun: dryRun}

	users, err := readUsers(ctx, src)
	if err != nil {
		return report, fmt.Errorf("%s: %w", op, err)
	}
	payments, err := readPayments(ctx, src)
	if err != nil {
		return report, fmt.Errorf("%s: %w", op, err)
	}
	report.Users = len(users)
	today := i.today()

	for _, u := range users {
		rec, recomputed, err := toRecord(u, today)
		if err != nil {
			report.Malformed++
			i.log.Warn("skipping user with malformed dates", sl.UserID(u.PlatformID), sl.Err(err))
			continue
		}
		if recomputed {
			report.Recomputed++
		}

		events, bad := toEvents(payments[u.ID], u.PlatformID)
		report.BadPayment += bad

		if dryRun {
			err = i.probe(ctx, u.PlatformID)
		} else {
			err = i.write(ctx, rec, events)
		}
		switch {
		case errors.Is(err, storage.ErrRecordExists):
			report.Existing++
		case err != nil:
			report.Failed++
			i.log.Error("failed to import user", sl.UserID(u.PlatformID), sl.Err(err))
		default:
			report.Imported++
			report.Payments += len(events)
		}
	}

	i.log.Info("legacy import finished",
		slog.Int("users", report.Users),
		slog.Int("imported", report.Imported),
		slog.Int("existing", report.Existing),
		slog.Int("recomputed", report.Recomputed),
		slog.Int("malformed", report.Malformed),
		slog.Int("failed", report.Failed),
		slog.Int("payments", report.Payments),
		slog.Bool("dry_run", dryRun),
	)
	return report, nil
}

// write добавляет запись и её журнал одной транзакцией.
func (i *Importer) write(ctx context.Context, rec models.Record, events []models.PaymentEvent) error {
	return i.store.RunInTx(ctx, func(ctx context.Context, tx storage.RecordTx) error {
		if err := tx.InsertRecord(ctx, rec); err != nil {
			return err
		}
		for _, ev := range events {
			if err := tx.AppendPayment(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	})
}

// probe проверяет, есть ли запись в хранилище, ничего не меняя.
func (i *Importer) probe(ctx context.Context, platformID int64) error {
	_, err := i.store.GetRecord(ctx, platformID)
	switch {
	case err == nil:
		return storage.ErrRecordExists
	case errors.Is(err, storage.ErrRecordNotFound):
		return nil
	default:
		return err
	}
}

// toRecord разбирает даты. Некорректный paid_until восстанавливается
// по join_date; если нет и его, строка пропускается.
func toRecord(u userRow, today time.Time) (models.Record, bool, error) {
	rec := models.Record{
		PlatformID: u.PlatformID,
		Handle:     u.Handle.String,
		FirstName:  u.FirstName.String,
		LastName:   u.LastName.String,
	}

	join, joinErr := calendar.Parse(u.JoinDate.String)
	paid, paidErr := calendar.Parse(u.PaidUntil.String)

	recomputed := false
	switch {
	case paidErr == nil:
		rec.PaidUntil = paid
	case joinErr == nil:
		next, ok := lifecycle.NextDueFromJoin(join, today)
		if !ok {
			return rec, false, fmt.Errorf("join date %s is in the future: %w", calendar.Format(join), calendar.ErrDateParse)
		}
		rec.PaidUntil = next
		recomputed = true
	default:
		return rec, false, errors.Join(joinErr, paidErr)
	}

	if joinErr == nil {
		rec.JoinDate = join
	} else {
		rec.JoinDate = today
	}
	if last, err := calendar.Parse(u.LastPayment.String); err == nil {
		rec.LastPaymentDate = last
	}
	return rec, recomputed, nil
}

func toEvents(rows []paymentRow, platformID int64) ([]models.PaymentEvent, int) {
	events := make([]models.PaymentEvent, 0, len(rows))
	bad := 0
	for _, p := range rows {
		paidOn, err1 := calendar.Parse(p.PaymentDate.String)
		paidUntil, err2 := calendar.Parse(p.PaidUntil.String)
		if err1 != nil || err2 != nil {
			bad++
			continue
		}
		events = append(events, models.PaymentEvent{PlatformID: platformID, PaymentDate: paidOn, PaidUntil: paidUntil})
	}
	return events, bad
}

func readUsers(ctx context.Context, db *sql.DB) ([]userRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, telegram_user_id, username, first_name, last_name,
		join_date, paid_until, last_payment_date
		FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var users []userRow
	for rows.Next() {
		var u userRow
		if err := rows.Scan(&u.ID, &u.PlatformID, &u.Handle, &u.FirstName, &u.LastName,
			&u.JoinDate, &u.PaidUntil, &u.LastPayment); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type paymentRow struct {
	PaymentDate sql.NullString
	PaidUntil   sql.NullString
}

// readPayments журнал, сгруппированный по users.id.
func readPayments(ctx context.Context, db *sql.DB) (map[int64][]paymentRow, error) {
	rows, err := db.QueryContext(ctx, `SELECT user_id, payment_date, paid_until FROM payments ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make(map[int64][]paymentRow)
	for rows.Next() {
		var userID int64
		var p paymentRow
		if err := rows.Scan(&userID, &p.PaymentDate, &p.PaidUntil); err != nil {
			return nil, err
		}
		result[userID] = append(result[userID], p)
	}
	return result, rows.Err()
}
