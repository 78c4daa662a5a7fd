package dbtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReferenceMonth(t *testing.T) {
	got, err := ParseReferenceMonth("2025-03")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), got)

	for _, bad := range []string{"", "2025-3", "2025-13", "03-2025", "2025-03-01"} {
		_, err := ParseReferenceMonth(bad)
		assert.Error(t, err, bad)
	}
}

func TestMonthBounds(t *testing.T) {
	start, end := MonthBounds(time.Date(2024, 12, 17, 15, 4, 5, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestClampedDate(t *testing.T) {
	assert.Equal(t, 28, ClampedDate(2025, time.February, 31).Day())
	assert.Equal(t, 29, ClampedDate(2024, time.February, 31).Day())
	assert.Equal(t, 30, ClampedDate(2025, time.April, 31).Day())
	assert.Equal(t, 1, ClampedDate(2025, time.April, 0).Day())
	assert.Equal(t, 10, ClampedDate(2025, time.March, 10).Day())
}

func TestAddMonthsClamped(t *testing.T) {
	jan31 := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), AddMonthsClamped(jan31, 1, 31))
	assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), AddMonthsClamped(jan31, 2, 31))
	assert.Equal(t, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), AddMonthsClamped(jan31, 12, 31))
	assert.Equal(t, jan31, AddMonthsClamped(jan31, 0, 31))
}
