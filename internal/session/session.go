// Package session owns one authenticated portal session: the sign-in
// flow, the banned/unauthorized state machine, availability fetches with
// response correlation, and the reschedule workflow.
package session

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/visa-checker/internal/city"
	"github.com/example/visa-checker/internal/portal"
)

// Page element selectors for the scheduler site.
const (
	selEmail           = "#user_email"
	selPassword        = "#user_password"
	selPolicyCheckbox  = "#policy_confirmed"
	selSignInButton    = `input:text-is("Sign In")`
	selContinueLink    = `a:text-is("Continue")`
	selRescheduleCard  = `h5:text-is("Reschedule Appointment")`
	selRescheduleLink  = `a:text-is("Reschedule Appointment")`
	selFacilitySelect  = "#appointments_consulate_appointment_facility_id"
	selTimeSelect      = "#appointments_consulate_appointment_time"
	selTimeOptions     = "#appointments_consulate_appointment_time option"
	selDateInput       = "#appointments_consulate_appointment_date_input"
	selDatepickerTitle = ".ui-datepicker-title"
	selDatepickerPrev  = `span:text-is("Prev")`
	selDatepickerNext  = `span:text-is("Next")`
	selRescheduleBtn   = `input:text-is("Reschedule")`
	selConfirmLink     = `a:text-is("Confirm")`
)

type Options struct {
	SignInURL string
	Email     string
	Password  string

	Cities city.List
	// ProbeCityID is the facility probed to test whether a ban lifted.
	ProbeCityID string
	// BusyCities lists city names known to reliably have availability; an
	// empty result for one of them is read as a shadow ban.
	BusyCities []string

	Timing Timing
	Logger *zap.Logger
}

// Session wraps a portal driver for one login cycle. Once the session
// observes a 401 it is invalid for good; the driver loop constructs a
// fresh one.
type Session struct {
	driver portal.Driver
	opts   Options
	log    *zap.Logger

	loggedIn     bool
	lastBannedAt time.Time
}

func New(driver portal.Driver, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ProbeCityID == "" {
		opts.ProbeCityID = "92" // Ottawa
	}
	if opts.BusyCities == nil {
		opts.BusyCities = []string{"Calgary", "Ottawa", "Vancouver"}
	}
	return &Session{
		driver: driver,
		opts:   opts,
		log:    opts.Logger.With(zap.String("session_id", uuid.NewString())),
	}
}

// Valid reports whether the session may still do work (ACTIVE or BANNED).
func (s *Session) Valid() bool { return s.loggedIn }

// Banned reports whether a ban signal has been observed and not yet
// cleared by a successful probe.
func (s *Session) Banned() bool { return !s.lastBannedAt.IsZero() }

func (s *Session) invalidate() {
	s.loggedIn = false
	s.log.Info("session invalidated")
}

func (s *Session) markBanned() {
	s.lastBannedAt = time.Now()
	s.log.Warn("temp ban detected", zap.Time("banned_at", s.lastBannedAt))
}

func (s *Session) clearBan() {
	s.lastBannedAt = time.Time{}
	s.log.Info("temp ban lifted")
}

// SignIn logs into the portal and navigates to the reschedule page where
// the facility selector lives.
func (s *Session) SignIn(ctx context.Context) error {
	s.log.Info("signing in", zap.String("url", s.opts.SignInURL))

	if err := s.driver.Navigate(ctx, s.opts.SignInURL); err != nil {
		return err
	}
	if err := s.driver.Fill(ctx, selEmail, s.opts.Email); err != nil {
		return err
	}
	if err := s.driver.Fill(ctx, selPassword, s.opts.Password); err != nil {
		return err
	}
	if err := s.pace(ctx); err != nil {
		return err
	}
	if err := s.driver.Click(ctx, selPolicyCheckbox); err != nil {
		return err
	}
	if err := s.pace(ctx); err != nil {
		return err
	}
	if err := s.driver.Click(ctx, selSignInButton); err != nil {
		return err
	}
	s.loggedIn = true
	s.log.Info("sign in complete")

	// Walk to the reschedule page.
	for _, sel := range []string{selContinueLink, selRescheduleCard, selRescheduleLink} {
		if err := s.pace(ctx); err != nil {
			return err
		}
		if err := s.driver.Click(ctx, sel); err != nil {
			return err
		}
	}
	s.log.Info("reached scheduler page")
	return nil
}

// pace sleeps a small random interval between UI actions.
func (s *Session) pace(ctx context.Context) error {
	min, max := s.opts.Timing.ActionDelayMin, s.opts.Timing.ActionDelayMax
	if max <= min {
		return sleepCtx(ctx, min)
	}
	d := min + time.Duration(rand.Int63n(int64(max-min)))
	return sleepCtx(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
