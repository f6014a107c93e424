package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/visa-checker/internal/dateutil"
)

// maxDatepickerSteps bounds the Prev/Next walk so a broken datepicker
// cannot spin forever.
const maxDatepickerSteps = 50

// Reschedule moves the account's appointment to the given day, picking
// the latest time the portal offers, then confirms. Any failure here is
// fatal to the process by policy: a half-finished reschedule needs an
// operator.
func (s *Session) Reschedule(ctx context.Context, year int, month time.Month, day int) error {
	s.log.Info("rescheduling appointment",
		zap.Int("year", year), zap.Int("month", int(month)), zap.Int("day", day))

	if err := s.selectAppointmentDay(ctx, year, month, day); err != nil {
		return err
	}

	times, err := s.awaitTimeOptions(ctx)
	if err != nil {
		return err
	}
	chosen := times[len(times)-1]
	s.log.Info("selecting appointment time", zap.String("time", chosen))
	if err := s.driver.SelectOption(ctx, selTimeSelect, chosen); err != nil {
		return err
	}

	if err := s.pace(ctx); err != nil {
		return err
	}
	if err := s.driver.Click(ctx, selRescheduleBtn); err != nil {
		return err
	}
	if err := s.pace(ctx); err != nil {
		return err
	}
	if err := s.driver.Click(ctx, selConfirmLink); err != nil {
		return err
	}

	s.log.Info("reschedule complete")
	return nil
}

func (s *Session) selectAppointmentDay(ctx context.Context, year int, month time.Month, day int) error {
	if err := s.driver.Click(ctx, selDateInput); err != nil {
		return err
	}
	if err := s.goToDatepickerMonth(ctx, year, month); err != nil {
		return err
	}

	daySel := fmt.Sprintf(`.ui-datepicker-group:has(span:text-is(%q)) td a:text-is("%d")`, month.String(), day)
	n, err := s.driver.ElementCount(ctx, daySel)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("day %d %s %d is not selectable in the datepicker", day, month, year)
	}
	return s.driver.Click(ctx, daySel)
}

// goToDatepickerMonth pages the two-month datepicker until the target
// month is visible.
func (s *Session) goToDatepickerMonth(ctx context.Context, year int, month time.Month) error {
	for step := 0; step < maxDatepickerSteps; step++ {
		titles, err := s.driver.TextContents(ctx, selDatepickerTitle)
		if err != nil {
			return err
		}
		if len(titles) == 0 {
			return fmt.Errorf("datepicker titles not found")
		}

		type monthYear struct {
			m time.Month
			y int
		}
		visible := make([]monthYear, 0, len(titles))
		for _, t := range titles {
			m, y, err := dateutil.ParseMonthYear(t)
			if err != nil {
				return err
			}
			visible = append(visible, monthYear{m: m, y: y})
		}

		for _, v := range visible {
			if v.m == month && v.y == year {
				return nil
			}
		}

		first, last := visible[0], visible[len(visible)-1]
		switch {
		case year < first.y || (year == first.y && month < first.m):
			if err := s.driver.Click(ctx, selDatepickerPrev); err != nil {
				return err
			}
		case year > last.y || (year == last.y && month > last.m):
			if err := s.driver.Click(ctx, selDatepickerNext); err != nil {
				return err
			}
		default:
			return fmt.Errorf("target %s %d not shown and not outside visible range %v", month, year, titles)
		}
	}
	return fmt.Errorf("could not reach %s %d within %d datepicker steps", month, year, maxDatepickerSteps)
}

// awaitTimeOptions waits for the time dropdown to populate after a day is
// picked. The page fills it asynchronously; fewer than two option
// elements means it has not loaded yet.
func (s *Session) awaitTimeOptions(ctx context.Context) ([]string, error) {
	deadline := time.Now().Add(s.opts.Timing.CorrelationWindow)
	for {
		n, err := s.driver.ElementCount(ctx, selTimeOptions)
		if err != nil {
			return nil, err
		}
		if n >= 2 {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("appointment time options never populated")
		}
		if err := sleepCtx(ctx, s.opts.Timing.CorrelationPoll); err != nil {
			return nil, err
		}
	}

	values, err := s.driver.OptionValues(ctx, selTimeSelect)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("appointment time options are empty")
	}
	return values, nil
}
