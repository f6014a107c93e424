package session

import "time"

// Timing collects every interval the checker sleeps or waits on. Tests
// substitute compressed values; production uses the defaults.
type Timing struct {
	// Correlation window for the appointment-days response and how often
	// the captured responses are re-scanned.
	CorrelationWindow time.Duration
	CorrelationPoll   time.Duration

	// Ban backoff: sleep increment while banned, and how long after the
	// ban stamp before probing whether it was lifted.
	BanRetry      time.Duration
	BanProbeAfter time.Duration

	// Pause after a 503 before the next check.
	ServiceUnavailableWait time.Duration

	// Idle sleep bounds when the work queue is empty.
	IdleMin time.Duration
	IdleMax time.Duration

	// Randomized pause between UI actions.
	ActionDelayMin time.Duration
	ActionDelayMax time.Duration

	// Work queue refill period.
	RefillInterval time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		CorrelationWindow:      2 * time.Minute,
		CorrelationPoll:        time.Second,
		BanRetry:               30 * time.Minute,
		BanProbeAfter:          time.Hour,
		ServiceUnavailableWait: 30 * time.Minute,
		IdleMin:                5 * time.Second,
		IdleMax:                10 * time.Second,
		ActionDelayMin:         500 * time.Millisecond,
		ActionDelayMax:         2 * time.Second,
		RefillInterval:         time.Hour,
	}
}
