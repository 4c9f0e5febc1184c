package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToday_UsesLocation(t *testing.T) {
	bogota, err := time.LoadLocation("America/Bogota")
	require.NoError(t, err)

	// 02:30 UTC 16 октября, в Боготе ещё 15 октября.
	now := time.Date(2026, 10, 16, 2, 30, 0, 0, time.UTC)

	assert.Equal(t, Date(2026, 10, 16), Today(now, time.UTC))
	assert.Equal(t, Date(2026, 10, 15), Today(now, bogota))
	assert.Equal(t, Date(2026, 10, 16), Today(now, nil))
}

func TestAddDaysAndDaysBetween(t *testing.T) {
	tests := []struct {
		name string
		from time.Time
		n    int
		want time.Time
	}{
		{name: "plus thirty across month", from: Date(2026, 10, 15), n: 30, want: Date(2026, 11, 14)},
		{name: "across year", from: Date(2026, 12, 20), n: 30, want: Date(2027, 1, 19)},
		{name: "leap day", from: Date(2028, 2, 28), n: 1, want: Date(2028, 2, 29)},
		{name: "negative", from: Date(2026, 10, 15), n: -40, want: Date(2026, 9, 5)},
		{name: "zero", from: Date(2026, 10, 15), n: 0, want: Date(2026, 10, 15)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AddDays(tt.from, tt.n)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.n, DaysBetween(tt.from, got))
		})
	}
}

func TestNormalize_DropsClock(t *testing.T) {
	in := time.Date(2026, 3, 8, 23, 59, 59, 999, time.UTC)
	assert.Equal(t, Date(2026, 3, 8), Normalize(in))
}

func TestParseAndFormat(t *testing.T) {
	d, err := Parse(" 2026-10-15 ")
	require.NoError(t, err)
	assert.Equal(t, Date(2026, 10, 15), d)
	assert.Equal(t, "2026-10-15", Format(d))

	for _, bad := range []string{"", "15/10/2026", "2026-13-01", "None"} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, ErrDateParse, bad)
	}
}
