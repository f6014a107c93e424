package dateutil

import (
	"fmt"
	"strings"
	"time"
)

const Layout = "2006-01-02"

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(Layout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

// Weekday returns the English weekday name for a YYYY-MM-DD date string.
func Weekday(s string) (string, error) {
	t, err := ParseDate(s)
	if err != nil {
		return "", err
	}
	return t.Weekday().String(), nil
}

// ParseMonthYear parses datepicker titles like "March 2024" (the portal
// renders a non-breaking space between the words).
func ParseMonthYear(s string) (time.Month, int, error) {
	s = strings.ReplaceAll(s, " ", " ")
	t, err := time.Parse("January 2006", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month/year %q: %w", s, err)
	}
	return t.Month(), t.Year(), nil
}

// Between reports whether q falls within [start, end] inclusive.
func Between(start, end, q time.Time) bool {
	return !q.Before(start) && !q.After(end)
}
