package tracker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/visa-checker/internal/city"
	"github.com/example/visa-checker/internal/dateutil"
	"github.com/example/visa-checker/internal/db"
	"github.com/example/visa-checker/internal/portal"
	"github.com/example/visa-checker/internal/queue"
	"github.com/example/visa-checker/internal/session"
)

type recordCall struct {
	cityID string
	dates  []string
}

type storeStub struct {
	mu         sync.Mutex
	lastKnown  map[string]map[string]bool
	recorded   []recordCall
	current    time.Time
	currentSet bool
}

func (s *storeStub) RecordDates(_ context.Context, cityID, _ string, dates []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = append(s.recorded, recordCall{cityID: cityID, dates: append([]string(nil), dates...)})
	return nil
}

func (s *storeStub) LastKnownDates(_ context.Context, cityID string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if known, ok := s.lastKnown[cityID]; ok {
		return known, nil
	}
	return map[string]bool{}, nil
}

func (s *storeStub) CurrentAppointmentDate(context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentSet {
		return time.Time{}, db.ErrNotFound
	}
	return s.current, nil
}

func (s *storeStub) SetCurrentAppointmentDate(_ context.Context, d time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = d
	s.currentSet = true
	return nil
}

type notification struct{ title, body string }

type notifierStub struct {
	mu   sync.Mutex
	sent []notification
}

func (n *notifierStub) Notify(_ context.Context, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{title: title, body: body})
	return nil
}

// fetchStep scripts one FetchAvailability call.
type fetchStep struct {
	snap       session.Snapshot
	err        error
	invalidate bool
}

type sessionStub struct {
	signInErr     error
	valid         bool
	steps         []fetchStep
	fetches       int
	banWaits      int
	rescheduled   [][3]int
	rescheduleErr error
}

func (s *sessionStub) SignIn(context.Context) error {
	if s.signInErr != nil {
		return s.signInErr
	}
	s.valid = true
	return nil
}

func (s *sessionStub) Valid() bool { return s.valid }

func (s *sessionStub) WaitOutBan(context.Context) error {
	s.banWaits++
	return nil
}

func (s *sessionStub) FetchAvailability(context.Context, city.City) (session.Snapshot, error) {
	if s.fetches >= len(s.steps) {
		s.valid = false
		return session.Snapshot{}, fmt.Errorf("ottawa: %w", portal.ErrUnauthorized)
	}
	step := s.steps[s.fetches]
	s.fetches++
	if step.invalidate {
		s.valid = false
	}
	return step.snap, step.err
}

func (s *sessionStub) Reschedule(_ context.Context, year int, month time.Month, day int) error {
	if s.rescheduleErr != nil {
		return s.rescheduleErr
	}
	s.rescheduled = append(s.rescheduled, [3]int{year, int(month), day})
	return nil
}

func fastTiming() session.Timing {
	t := session.DefaultTiming()
	t.ServiceUnavailableWait = time.Millisecond
	t.IdleMin = time.Millisecond
	t.IdleMax = 2 * time.Millisecond
	t.RefillInterval = time.Hour
	return t
}

func newTracker(st *storeStub, n *notifierStub, q *queue.Queue, pref dateutil.Preference) *Tracker {
	return &Tracker{
		Store:      st,
		Notifier:   n,
		Queue:      q,
		Preference: pref,
		Timing:     fastTiming(),
		Log:        zap.NewNop(),
	}
}

func TestProcessAvailabilityNotifiesOnlyNewDates(t *testing.T) {
	st := &storeStub{lastKnown: map[string]map[string]bool{
		"91": {"2024-03-01": true},
	}}
	n := &notifierStub{}
	tr := newTracker(st, n, queue.New(nil, nil), dateutil.None())
	sess := &sessionStub{valid: true}

	montreal := city.City{Name: "Montreal", ID: "91"}
	err := tr.processAvailability(context.Background(), sess, montreal, []string{"2024-03-01", "2024-03-02"})
	require.NoError(t, err)

	require.Len(t, n.sent, 1)
	assert.Equal(t, "New Visa Appointment Dates (Montreal)", n.sent[0].title)
	assert.Equal(t, "2024-03-02 (Saturday)", n.sent[0].body)

	// The full snapshot is persisted, not just the diff.
	require.Len(t, st.recorded, 1)
	assert.Equal(t, "91", st.recorded[0].cityID)
	assert.Equal(t, []string{"2024-03-01", "2024-03-02"}, st.recorded[0].dates)
	assert.Empty(t, sess.rescheduled)
}

func TestProcessAvailabilityRecordsUnchangedSnapshots(t *testing.T) {
	st := &storeStub{lastKnown: map[string]map[string]bool{
		"91": {"2024-03-01": true},
	}}
	n := &notifierStub{}
	tr := newTracker(st, n, queue.New(nil, nil), dateutil.None())

	montreal := city.City{Name: "Montreal", ID: "91"}
	err := tr.processAvailability(context.Background(), &sessionStub{valid: true}, montreal, []string{"2024-03-01"})
	require.NoError(t, err)

	assert.Empty(t, n.sent)
	require.Len(t, st.recorded, 1)
}

func TestNotModifiedShortCircuits(t *testing.T) {
	st := &storeStub{}
	n := &notifierStub{}
	tr := newTracker(st, n, queue.New(nil, nil), dateutil.None())
	sess := &sessionStub{valid: true, steps: []fetchStep{
		{snap: session.Snapshot{NotModified: true}},
	}}

	err := tr.checkCity(context.Background(), sess, city.City{Name: "Toronto", ID: "94"})
	require.NoError(t, err)
	assert.Empty(t, st.recorded)
	assert.Empty(t, n.sent)
}

func TestPreferredDateTriggersReschedule(t *testing.T) {
	ottawa := city.City{Name: "Ottawa", ID: "92"}

	st := &storeStub{}
	current, err := dateutil.ParseDate("2025-02-01")
	require.NoError(t, err)
	require.NoError(t, st.SetCurrentAppointmentDate(context.Background(), current))
	st.recorded = nil

	from, _ := dateutil.ParseDate("2025-01-10")
	pref := dateutil.RangePreference(from, from) // only 2025-01-10

	n := &notifierStub{}
	tr := newTracker(st, n, queue.New(nil, nil), pref)
	sess := &sessionStub{valid: true, steps: []fetchStep{
		{snap: session.Snapshot{Dates: []string{"2025-01-10", "2025-01-11"}}},
	}}

	require.NoError(t, tr.checkCity(context.Background(), sess, ottawa))

	require.Len(t, n.sent, 2)
	assert.Equal(t, "New Visa Appointment Dates (Ottawa)", n.sent[0].title)
	assert.Contains(t, n.sent[0].body, "2025-01-10 (Friday)")
	assert.Contains(t, n.sent[0].body, "2025-01-11 (Saturday)")
	assert.Equal(t, "Found preferrable appointment date - Ottawa", n.sent[1].title)
	assert.Equal(t, "Rescheduling to 2025-01-10", n.sent[1].body)

	require.Equal(t, [][3]int{{2025, 1, 10}}, sess.rescheduled)

	got, err := st.CurrentAppointmentDate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2025-01-10", got.Format(dateutil.Layout))
}

func TestNoCurrentAppointmentSkipsReschedule(t *testing.T) {
	st := &storeStub{}
	n := &notifierStub{}
	from, _ := dateutil.ParseDate("2020-01-01")
	to, _ := dateutil.ParseDate("2030-01-01")
	tr := newTracker(st, n, queue.New(nil, nil), dateutil.RangePreference(from, to))
	sess := &sessionStub{valid: true}

	err := tr.processAvailability(context.Background(), sess, city.City{Name: "Ottawa", ID: "92"}, []string{"2025-01-10"})
	require.NoError(t, err)
	assert.Empty(t, sess.rescheduled)
}

func TestRescheduleFailureIsFatal(t *testing.T) {
	st := &storeStub{}
	require.NoError(t, st.SetCurrentAppointmentDate(context.Background(), time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)))

	from, _ := dateutil.ParseDate("2020-01-01")
	to, _ := dateutil.ParseDate("2030-01-01")
	tr := newTracker(st, &notifierStub{}, queue.New(nil, nil), dateutil.RangePreference(from, to))
	sess := &sessionStub{valid: true, rescheduleErr: fmt.Errorf("confirm click failed")}

	err := tr.processAvailability(context.Background(), sess, city.City{Name: "Ottawa", ID: "92"}, []string{"2025-01-10"})
	require.Error(t, err)
	assert.False(t, portal.IsCheckable(err))
}

func TestRunSessionRequeuesOnCheckableFailure(t *testing.T) {
	cities := city.List{{Name: "Toronto", ID: "94"}}
	q := queue.New(cities, nil)
	q.Refill()

	st := &storeStub{}
	tr := newTracker(st, &notifierStub{}, q, dateutil.None())
	sess := &sessionStub{steps: []fetchStep{
		{err: fmt.Errorf("toronto: %w", portal.ErrServiceUnavailable)},
		{err: fmt.Errorf("toronto: %w", portal.ErrUnauthorized), invalidate: true},
	}}

	err := tr.RunSession(context.Background(), sess)
	require.NoError(t, err)

	// Toronto failed twice and was re-queued both times.
	assert.Equal(t, 2, sess.fetches)
	assert.Equal(t, 1, q.Len())
	assert.GreaterOrEqual(t, sess.banWaits, 2)
}

func TestRunSessionIdlesOnEmptyQueue(t *testing.T) {
	q := queue.New(nil, nil)
	tr := newTracker(&storeStub{}, &notifierStub{}, q, dateutil.None())
	sess := &sessionStub{}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := tr.RunSession(ctx, sess)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, sess.fetches)
}

func TestRunSessionStopsOnFatalError(t *testing.T) {
	cities := city.List{{Name: "Toronto", ID: "94"}}
	q := queue.New(cities, nil)
	q.Refill()

	tr := newTracker(&storeStub{}, &notifierStub{}, q, dateutil.None())
	fatal := &portal.FatalStatusError{Status: 422, URL: "https://portal.test/x"}
	sess := &sessionStub{steps: []fetchStep{{err: fatal}}}

	err := tr.RunSession(context.Background(), sess)
	require.Error(t, err)
	var got *portal.FatalStatusError
	assert.ErrorAs(t, err, &got)
	assert.Zero(t, q.Len())
}
