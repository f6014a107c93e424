package session

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/example/visa-checker/internal/city"
	"github.com/example/visa-checker/internal/portal"
)

// daysURLRe extracts the facility id from the background request the page
// fires when a facility is selected.
var daysURLRe = regexp.MustCompile(`appointment/days/(\d+)\.json`)

// Snapshot is one city's availability as of one successful fetch.
// NotModified marks a 304, meaning no new information.
type Snapshot struct {
	Dates       []string
	NotModified bool
}

// FetchAvailability selects the city in the facility dropdown and waits
// for the matching appointment-days response, then classifies it.
//
// Errors: portal.ErrUnauthorized (session becomes invalid),
// portal.ErrServiceUnavailable, portal.ErrTempBanned (ban stamp set),
// portal.ErrNoResponse on correlation timeout, *portal.FatalStatusError
// for any other >=400 status.
func (s *Session) FetchAvailability(ctx context.Context, c city.City) (Snapshot, error) {
	log := s.log.With(zap.String("city", c.Name), zap.String("city_id", c.ID))

	// Captured responses are cleared on every exit path so a stale match
	// can never bleed into the next check.
	s.driver.ClearResponses()
	defer s.driver.ClearResponses()

	if err := s.driver.SelectOption(ctx, selFacilitySelect, c.ID); err != nil {
		return Snapshot{}, err
	}

	resp, err := s.awaitDaysResponse(ctx, c, log)
	if err != nil {
		return Snapshot{}, err
	}

	switch {
	case resp.Status == 401:
		log.Info("received 401, session no longer authorized")
		s.invalidate()
		return Snapshot{}, fmt.Errorf("%s: %w", c.Name, portal.ErrUnauthorized)
	case resp.Status == 503:
		log.Info("received 503, service temporarily unavailable")
		return Snapshot{}, fmt.Errorf("%s: %w", c.Name, portal.ErrServiceUnavailable)
	case resp.Status >= 400:
		return Snapshot{}, &portal.FatalStatusError{Status: resp.Status, URL: resp.URL, Body: resp.Body}
	case resp.Status == 304:
		log.Info("304 not modified")
		return Snapshot{NotModified: true}, nil
	}

	var days []struct {
		Date string `json:"date"`
	}
	if err := resp.JSON(&days); err != nil {
		return Snapshot{}, &portal.FatalStatusError{Status: resp.Status, URL: resp.URL, Body: resp.Body}
	}
	dates := make([]string, 0, len(days))
	for _, d := range days {
		dates = append(dates, d.Date)
	}

	if len(dates) == 0 && s.isBusyCity(c) {
		// These cities essentially always have some availability, so an
		// empty result means we are being shadow-banned.
		log.Warn("empty result for a reliably-busy city, treating as temp ban")
		s.markBanned()
		return Snapshot{}, fmt.Errorf("%s: %w", c.Name, portal.ErrTempBanned)
	}

	log.Info("fetched availability", zap.Int("dates", len(dates)))
	return Snapshot{Dates: dates}, nil
}

// awaitDaysResponse polls the captured responses until one matches the
// requested city or the correlation window elapses.
func (s *Session) awaitDaysResponse(ctx context.Context, c city.City, log *zap.Logger) (portal.Response, error) {
	deadline := time.Now().Add(s.opts.Timing.CorrelationWindow)
	for {
		for _, resp := range s.driver.Responses() {
			m := daysURLRe.FindStringSubmatch(resp.URL)
			if m == nil {
				continue
			}
			if m[1] != c.ID {
				// Cross-talk from an overlapping UI event; keep waiting
				// for our own response.
				log.Warn("response for a different city", zap.String("url", resp.URL))
				continue
			}
			return resp, nil
		}
		if time.Now().After(deadline) {
			log.Warn("no matching response within correlation window")
			return portal.Response{}, fmt.Errorf("%s: %w", c.Name, portal.ErrNoResponse)
		}
		if err := sleepCtx(ctx, s.opts.Timing.CorrelationPoll); err != nil {
			return portal.Response{}, err
		}
	}
}

func (s *Session) isBusyCity(c city.City) bool {
	for _, name := range s.opts.BusyCities {
		if name == c.Name {
			return true
		}
	}
	return false
}
