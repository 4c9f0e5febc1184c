// Package calendar работает с календарными датами без времени суток.
// Дата представлена как time.Time на полночь UTC: так сравнение и разница
// в днях не зависят от перехода на летнее время.
package calendar

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layout формат хранения и вывода дат (ISO 8601).
const Layout = "2006-01-02"

// ErrDateParse возвращается для некорректно сохранённой даты.
var ErrDateParse = errors.New("malformed date")

// Date возвращает календарную дату.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Normalize отбрасывает время суток, сохраняя год, месяц и день в зоне t.
func Normalize(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

// Today возвращает текущую дату в часовом поясе loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Normalize(now.In(loc))
}

// AddDays сдвигает дату на n дней.
func AddDays(d time.Time, n int) time.Time {
	return Normalize(d).AddDate(0, 0, n)
}

// DaysBetween количество дней от from до to; отрицательно, если to раньше from.
func DaysBetween(from, to time.Time) int {
	return int(Normalize(to).Sub(Normalize(from)).Hours() / 24)
}

// Parse разбирает дату в формате Layout.
func Parse(s string) (time.Time, error) {
	d, err := time.Parse(Layout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrDateParse, s)
	}
	return d, nil
}

// Format форматирует дату в Layout.
func Format(d time.Time) string {
	return d.Format(Layout)
}
