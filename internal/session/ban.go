package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/example/visa-checker/internal/portal"
)

// WaitOutBan blocks while the session is banned. It sleeps in BanRetry
// increments; once BanProbeAfter has elapsed since the ban stamp it
// re-fetches the probe city to see whether the ban was lifted. Returns
// early when the session becomes invalid or ctx is cancelled; fatal fetch
// errors are returned to the caller.
//
// This runs before every queue pop. It is a no-op unless a ban has been
// observed, so an unnoticed ban is fine: the next fetch will surface it
// and the loop circles back here.
func (s *Session) WaitOutBan(ctx context.Context) error {
	for s.loggedIn && s.Banned() {
		if time.Since(s.lastBannedAt) < s.opts.Timing.BanProbeAfter {
			s.log.Info("still inside ban window, sleeping",
				zap.Time("banned_at", s.lastBannedAt),
				zap.Duration("sleep", s.opts.Timing.BanRetry))
			if err := sleepCtx(ctx, s.opts.Timing.BanRetry); err != nil {
				return err
			}
			continue
		}

		s.log.Info("ban window elapsed, probing", zap.String("probe_city_id", s.opts.ProbeCityID))
		probe, ok := s.opts.Cities.ByID(s.opts.ProbeCityID)
		if !ok && len(s.opts.Cities) > 0 {
			probe = s.opts.Cities[0]
		}

		_, err := s.FetchAvailability(ctx, probe)
		switch {
		case err == nil:
			s.clearBan()
		case errors.Is(err, portal.ErrUnauthorized):
			// loggedIn already flipped by the fetch; loop exits.
		case errors.Is(err, portal.ErrServiceUnavailable):
			s.log.Info("probe hit 503, sleeping", zap.Duration("sleep", s.opts.Timing.BanRetry))
			if err := sleepCtx(ctx, s.opts.Timing.BanRetry); err != nil {
				return err
			}
		case errors.Is(err, portal.ErrTempBanned), errors.Is(err, portal.ErrNoResponse):
			// Still banned (stamp refreshed) or inconclusive; keep waiting.
		default:
			return err
		}
	}
	return ctx.Err()
}
