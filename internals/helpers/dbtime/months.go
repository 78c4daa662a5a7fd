// file: internals/helpers/dbtime/months.go
package dbtime

import (
	"fmt"
	"time"
)

const ReferenceMonthLayout = "2006-01"

// ParseReferenceMonth parses "YYYY-MM" into the first day of that month (UTC).
func ParseReferenceMonth(s string) (time.Time, error) {
	t, err := time.Parse(ReferenceMonthLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("reference month must be YYYY-MM: %q", s)
	}
	return t.UTC(), nil
}

// ReferenceMonth formats t as "YYYY-MM".
func ReferenceMonth(t time.Time) string {
	return t.UTC().Format(ReferenceMonthLayout)
}

// MonthBounds returns [first day of t's month, first day of next month).
func MonthBounds(t time.Time) (time.Time, time.Time) {
	y, m, _ := t.UTC().Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampedDate builds year-month-day, clamping day into [1, days in month].
func ClampedDate(year int, month time.Month, day int) time.Time {
	if day < 1 {
		day = 1
	}
	if n := DaysIn(year, month); day > n {
		day = n
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// AddMonthsClamped moves t by n calendar months keeping anchorDay, clamped to the
// target month's length (Jan 31 + 1 month = Feb 28/29, not Mar 3).
func AddMonthsClamped(t time.Time, n int, anchorDay int) time.Time {
	y, m, _ := t.UTC().Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return ClampedDate(first.Year(), first.Month(), anchorDay)
}
