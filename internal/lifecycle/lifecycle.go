// Package lifecycle вычисляет переходы состояния подписки: регистрацию,
// продление при одобрении платежа и признаки истечения. Пакет не делает
// ввода-вывода; "сегодня" всегда передаётся вызывающим.
//
// Вся арифметика дат подписки живёт здесь, остальные слои только
// применяют результат.
package lifecycle

import (
	"time"

	"github.com/magabrotheeeer/membership-bot/internal/lib/calendar"
	"github.com/magabrotheeeer/membership-bot/internal/models"
)

const (
	// PeriodDays длина оплаченного периода.
	PeriodDays = 30
	// GraceDays сколько дней после истечения продление считается от старой даты.
	GraceDays = 30
)

// ApprovalKind какая ветка правила продления сработала.
type ApprovalKind string

const (
	ApprovalNew    ApprovalKind = "new"    // записи не было
	ApprovalExtend ApprovalKind = "extend" // подписка активна
	ApprovalGrace  ApprovalKind = "grace"  // истекла не более GraceDays назад
	ApprovalReset  ApprovalKind = "reset"  // истекла давно, отсчёт от сегодня
)

// Enrollment поля новой записи.
type Enrollment struct {
	JoinDate        time.Time
	PaidUntil       time.Time
	LastPaymentDate time.Time
}

// Enroll возвращает поля записи нового участника: 30 дней от today.
func Enroll(today time.Time) Enrollment {
	today = calendar.Normalize(today)
	return Enrollment{
		JoinDate:        today,
		PaidUntil:       calendar.AddDays(today, PeriodDays),
		LastPaymentDate: today,
	}
}

// Approval результат одобрения платежа.
type Approval struct {
	PaidUntil       time.Time
	LastPaymentDate time.Time
	IsNew           bool
	Kind            ApprovalKind
}

// Approve вычисляет новую дату окончания доступа.
// existing == nil означает, что записи ещё нет.
func Approve(existing *models.Record, today time.Time) Approval {
	today = calendar.Normalize(today)
	if existing == nil {
		e := Enroll(today)
		return Approval{PaidUntil: e.PaidUntil, LastPaymentDate: today, IsNew: true, Kind: ApprovalNew}
	}

	paidUntil := calendar.Normalize(existing.PaidUntil)
	result := Approval{LastPaymentDate: today}
	switch {
	case !paidUntil.Before(today):
		result.Kind = ApprovalExtend
		result.PaidUntil = calendar.AddDays(paidUntil, PeriodDays)
	case calendar.DaysBetween(paidUntil, today) > GraceDays:
		result.Kind = ApprovalReset
		result.PaidUntil = calendar.AddDays(today, PeriodDays)
	default:
		result.Kind = ApprovalGrace
		result.PaidUntil = calendar.AddDays(paidUntil, PeriodDays)
	}
	return result
}

// IsExpired true, когда paidUntil строго раньше today. День paidUntil последний действующий.
func IsExpired(paidUntil, today time.Time) bool {
	return calendar.Normalize(paidUntil).Before(calendar.Normalize(today))
}

// DaysRemaining количество дней до paidUntil, может быть отрицательным.
func DaysRemaining(paidUntil, today time.Time) int {
	return calendar.DaysBetween(today, paidUntil)
}

// SelfCheckLapsed правило команды проверки остатка: при нуле и меньше дней доступ закончился.
func SelfCheckLapsed(paidUntil, today time.Time) bool {
	return DaysRemaining(paidUntil, today) <= 0
}

// SweepAction действие плановой проверки для одной записи.
type SweepAction int

const (
	SweepNone SweepAction = iota
	SweepLastDay
	SweepDueTomorrow
	SweepRemove
)

func (a SweepAction) String() string {
	switch a {
	case SweepLastDay:
		return "last_day"
	case SweepDueTomorrow:
		return "due_tomorrow"
	case SweepRemove:
		return "remove"
	default:
		return "none"
	}
}

// SweepActionFor выбирает ровно одно действие: условия взаимоисключающие.
func SweepActionFor(paidUntil, today time.Time) SweepAction {
	switch days := DaysRemaining(paidUntil, today); {
	case days == 0:
		return SweepLastDay
	case days == 1:
		return SweepDueTomorrow
	case days < 0:
		return SweepRemove
	default:
		return SweepNone
	}
}

// ExpiringCutoff последняя дата paid_until, попадающая в отчёт на days дней вперёд.
func ExpiringCutoff(today time.Time, days int) time.Time {
	return calendar.AddDays(today, days)
}

// NextDueFromJoin первая дата после today, кратная PeriodDays от joinDate.
// Используется, когда у записи нет корректной даты оплаты.
func NextDueFromJoin(joinDate, today time.Time) (time.Time, bool) {
	joinDate = calendar.Normalize(joinDate)
	elapsed := calendar.DaysBetween(joinDate, today)
	if elapsed < 0 {
		return time.Time{}, false
	}
	blocks := elapsed/PeriodDays + 1
	return calendar.AddDays(joinDate, blocks*PeriodDays), true
}
