package dateutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-29")
	require.NoError(t, err)
	assert.Equal(t, 2024, d.Year())
	assert.Equal(t, time.March, d.Month())
	assert.Equal(t, 29, d.Day())

	_, err = ParseDate("29/03/2024")
	assert.Error(t, err)
}

func TestWeekday(t *testing.T) {
	wd, err := Weekday("2024-03-02")
	require.NoError(t, err)
	assert.Equal(t, "Saturday", wd)
}

func TestParseMonthYear(t *testing.T) {
	m, y, err := ParseMonthYear("March 2022")
	require.NoError(t, err)
	assert.Equal(t, time.March, m)
	assert.Equal(t, 2022, y)

	// The datepicker titles use a non-breaking space.
	m, y, err = ParseMonthYear("January 2025")
	require.NoError(t, err)
	assert.Equal(t, time.January, m)
	assert.Equal(t, 2025, y)

	_, _, err = ParseMonthYear("Smarch 2022")
	assert.Error(t, err)
}

func TestBetween(t *testing.T) {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	assert.True(t, Between(start, end, start))
	assert.True(t, Between(start, end, end))
	assert.True(t, Between(start, end, start.AddDate(0, 0, 15)))
	assert.False(t, Between(start, end, start.AddDate(0, 0, -1)))
	assert.False(t, Between(start, end, end.AddDate(0, 0, 1)))
}

func TestRangePreference(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	current := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	pref := RangePreference(from, to)
	assert.True(t, pref(time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), current))
	assert.False(t, pref(time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC), current))
}

func TestRangePreferenceInvertedMatchesNothing(t *testing.T) {
	// An inverted range (from after to) should never match, rather than
	// silently swapping the bounds.
	pref := RangePreference(
		time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 7, 5, 0, 0, 0, 0, time.UTC),
	)
	current := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)

	for _, d := range []time.Time{
		time.Date(2023, 7, 4, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC),
	} {
		assert.False(t, pref(d, current), "date %s", d)
	}
}

func TestNone(t *testing.T) {
	assert.False(t, None()(time.Now(), time.Now()))
}
