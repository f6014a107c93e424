package dateutil

import "time"

// Preference decides whether a candidate appointment date is worth
// rescheduling to, given the currently booked date. Policy differs per
// operator, so it is injected rather than hard-coded.
type Preference func(candidate, current time.Time) bool

// RangePreference prefers any candidate within [from, to] inclusive,
// regardless of the current date. An inverted range (from after to)
// matches nothing.
func RangePreference(from, to time.Time) Preference {
	return func(candidate, _ time.Time) bool {
		return Between(from, to, candidate)
	}
}

// None never prefers a candidate; used when no range is configured so the
// tracker observes and notifies without ever rescheduling.
func None() Preference {
	return func(_, _ time.Time) bool { return false }
}
