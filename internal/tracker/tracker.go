// Package tracker drives the whole checking workflow: the refill ticker
// feeding the work queue, the outer session loop, and the follow-ups for
// each fetched snapshot (diff, notify, record, reschedule).
package tracker

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/example/visa-checker/internal/city"
	"github.com/example/visa-checker/internal/dateutil"
	"github.com/example/visa-checker/internal/notify"
	"github.com/example/visa-checker/internal/portal"
	"github.com/example/visa-checker/internal/queue"
	"github.com/example/visa-checker/internal/session"
)

// Store is the persistence surface the tracker needs.
type Store interface {
	RecordDates(ctx context.Context, cityID, cityName string, dates []string) error
	LastKnownDates(ctx context.Context, cityID string) (map[string]bool, error)
	CurrentAppointmentDate(ctx context.Context) (time.Time, error)
	SetCurrentAppointmentDate(ctx context.Context, d time.Time) error
}

// Session is the slice of *session.Session the tracker drives. A fresh
// one is built per login cycle via the factory.
type Session interface {
	SignIn(ctx context.Context) error
	Valid() bool
	WaitOutBan(ctx context.Context) error
	FetchAvailability(ctx context.Context, c city.City) (session.Snapshot, error)
	Reschedule(ctx context.Context, year int, month time.Month, day int) error
}

type SessionFactory func() Session

type Tracker struct {
	Store      Store
	Notifier   notify.Notifier
	Queue      *queue.Queue
	NewSession SessionFactory
	Preference dateutil.Preference
	Timing     session.Timing
	Log        *zap.Logger
}

// Run refills the queue immediately and then on every refill interval,
// while the session loop drains it. Returns on context cancellation or a
// fatal error.
func (t *Tracker) Run(ctx context.Context) error {
	if t.Log == nil {
		t.Log = zap.NewNop()
	}

	t.Queue.Refill()
	tick := time.NewTicker(t.Timing.RefillInterval)
	defer tick.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				t.Log.Info("refilling work queue")
				t.Queue.Refill()
			}
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		t.Log.Info("starting a new tracking session")
		if err := t.RunSession(ctx, t.NewSession()); err != nil {
			return err
		}
		// Session expired; sign in again with a fresh one.
	}
}

// RunSession signs in and drains the queue through one session until it
// becomes invalid. Recoverable check failures re-queue the city; fatal
// errors are returned.
func (t *Tracker) RunSession(ctx context.Context, sess Session) error {
	if err := sess.SignIn(ctx); err != nil {
		return err
	}

	for sess.Valid() {
		if err := sess.WaitOutBan(ctx); err != nil {
			return err
		}
		if !sess.Valid() {
			break
		}

		c, ok := t.Queue.Pop()
		if !ok {
			if err := t.idle(ctx); err != nil {
				return err
			}
			continue
		}

		t.Log.Info("checking dates", zap.String("city", c.Name))
		if err := t.checkCity(ctx, sess, c); err != nil {
			if portal.IsCheckable(err) {
				t.Log.Info("check failed, re-queueing city",
					zap.String("city", c.Name), zap.Error(err))
				t.Queue.Requeue(c)
				continue
			}
			return err
		}
	}
	return ctx.Err()
}

// idle sleeps a short random interval so an empty queue does not busy-spin.
func (t *Tracker) idle(ctx context.Context) error {
	min, max := t.Timing.IdleMin, t.Timing.IdleMax
	d := min
	if max > min {
		d = min + time.Duration(rand.Int63n(int64(max-min)))
	}
	return sleepCtx(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
