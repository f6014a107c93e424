package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/example/visa-checker/internal/city"
	"github.com/example/visa-checker/internal/dateutil"
	"github.com/example/visa-checker/internal/db"
	"github.com/example/visa-checker/internal/portal"
)

// checkCity fetches availability for one city and runs the follow-ups.
// The four recoverable fetch errors are passed through for the caller to
// re-queue; a 503 additionally pauses before the next check.
func (t *Tracker) checkCity(ctx context.Context, sess Session, c city.City) error {
	snap, err := sess.FetchAvailability(ctx, c)
	if err != nil {
		if errors.Is(err, portal.ErrServiceUnavailable) {
			t.Log.Info("service unavailable, pausing",
				zap.Duration("pause", t.Timing.ServiceUnavailableWait))
			if serr := sleepCtx(ctx, t.Timing.ServiceUnavailableWait); serr != nil {
				return serr
			}
		}
		return err
	}

	if snap.NotModified {
		t.Log.Info("no new information", zap.String("city", c.Name))
		return nil
	}

	return t.processAvailability(ctx, sess, c, snap.Dates)
}

// processAvailability diffs the snapshot against the last known set,
// notifies on new dates, records the snapshot, and reschedules when a
// preferred date shows up.
func (t *Tracker) processAvailability(ctx context.Context, sess Session, c city.City, dates []string) error {
	lastKnown, err := t.Store.LastKnownDates(ctx, c.ID)
	if err != nil {
		return err
	}

	var newDates []string
	for _, d := range dates {
		if !lastKnown[d] {
			newDates = append(newDates, d)
		}
	}
	sort.Strings(newDates)

	if len(newDates) > 0 {
		title := fmt.Sprintf("New Visa Appointment Dates (%s)", c.Name)
		body := formatDates(newDates)
		t.Log.Info("new dates found",
			zap.String("city", c.Name), zap.Strings("dates", newDates))
		t.notify(ctx, title, body)
	} else {
		t.Log.Info("no new dates", zap.String("city", c.Name))
	}

	// Every successful fetch is recorded, changed or not; the rows are an
	// audit trail as much as a cache.
	if err := t.Store.RecordDates(ctx, c.ID, c.Name, dates); err != nil {
		return err
	}

	return t.maybeReschedule(ctx, sess, c, dates)
}

// maybeReschedule moves the appointment to the earliest preferred date in
// the snapshot, if any. Reschedule failures are fatal by policy.
func (t *Tracker) maybeReschedule(ctx context.Context, sess Session, c city.City, dates []string) error {
	current, err := t.Store.CurrentAppointmentDate(ctx)
	if err != nil {
		if db.IsNotFound(err) {
			t.Log.Warn("no current appointment date recorded, skipping preference check")
			return nil
		}
		return err
	}

	var preferred []string
	for _, d := range dates {
		cand, perr := dateutil.ParseDate(d)
		if perr != nil {
			t.Log.Warn("unparseable date in snapshot", zap.String("date", d))
			continue
		}
		if t.Preference(cand, current) {
			preferred = append(preferred, d)
		}
	}
	if len(preferred) == 0 {
		return nil
	}
	sort.Strings(preferred)

	t.Log.Info("found preferred dates",
		zap.String("city", c.Name), zap.Strings("dates", preferred))

	target, err := dateutil.ParseDate(preferred[0])
	if err != nil {
		return err
	}
	t.notify(ctx,
		fmt.Sprintf("Found preferrable appointment date - %s", c.Name),
		fmt.Sprintf("Rescheduling to %s", preferred[0]))

	if err := sess.Reschedule(ctx, target.Year(), target.Month(), target.Day()); err != nil {
		return err
	}
	t.Log.Info("reschedule executed", zap.String("date", preferred[0]))
	return t.Store.SetCurrentAppointmentDate(ctx, target)
}

// notify is best-effort; delivery failures are logged, never propagated.
func (t *Tracker) notify(ctx context.Context, title, body string) {
	if err := t.Notifier.Notify(ctx, title, body); err != nil {
		t.Log.Warn("notification failed", zap.String("title", title), zap.Error(err))
		return
	}
	t.Log.Info("sent notification", zap.String("title", title))
}

// formatDates renders one "YYYY-MM-DD (Weekday)" line per date.
func formatDates(dates []string) string {
	lines := make([]string, 0, len(dates))
	for _, d := range dates {
		wd, err := dateutil.Weekday(d)
		if err != nil {
			lines = append(lines, d)
			continue
		}
		lines = append(lines, fmt.Sprintf("%s (%s)", d, wd))
	}
	return strings.Join(lines, "\n")
}
