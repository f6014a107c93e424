package httpdriver

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/example/visa-checker/internal/portal"
)

// Real form field names behind the element ids the session layer uses.
const (
	facilityField = "appointments[consulate_appointment][facility_id]"
	dateField     = "appointments[consulate_appointment][date]"
	timeField     = "appointments[consulate_appointment][time]"

	facilitySelector = "#appointments_consulate_appointment_facility_id"
	timeSelector     = "#appointments_consulate_appointment_time"
	timeOptionsSel   = "#appointments_consulate_appointment_time option"
	dateInputSel     = "#appointments_consulate_appointment_date_input"
	titleSelector    = ".ui-datepicker-title"
)

var (
	textIsRe  = regexp.MustCompile(`^([a-z0-9]+):text-is\("(.+)"\)$`)
	dayCellRe = regexp.MustCompile(`^\.ui-datepicker-group:has\(span:text-is\("([A-Za-z]+)"\)\) td a:text-is\("(\d+)"\)$`)
)

func (d *Driver) Navigate(ctx context.Context, rawURL string) error {
	resp, err := d.http.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return err
	}
	return d.setPage(resp.RawResponse.Request.URL, resp.Body())
}

func (d *Driver) setPage(u *url.URL, body []byte) error {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc = doc
	d.pageURL = u
	return nil
}

func (d *Driver) Fill(ctx context.Context, selector, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	name := strings.TrimPrefix(selector, "#")
	if d.doc != nil {
		if n, ok := d.doc.Find(selector).Attr("name"); ok {
			name = n
		}
	}
	d.form[name] = value
	return nil
}

func (d *Driver) Click(ctx context.Context, selector string) error {
	switch selector {
	case "#policy_confirmed":
		d.mu.Lock()
		d.form["policy_confirmed"] = "1"
		d.mu.Unlock()
		return nil
	case dateInputSel:
		d.mu.Lock()
		if d.visibleMonth.IsZero() {
			now := time.Now()
			d.visibleMonth = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		}
		d.mu.Unlock()
		return nil
	case `span:text-is("Prev")`:
		d.mu.Lock()
		d.visibleMonth = d.visibleMonth.AddDate(0, -1, 0)
		d.mu.Unlock()
		return nil
	case `span:text-is("Next")`:
		d.mu.Lock()
		d.visibleMonth = d.visibleMonth.AddDate(0, 1, 0)
		d.mu.Unlock()
		return nil
	}

	if m := dayCellRe.FindStringSubmatch(selector); m != nil {
		return d.clickDay(ctx, m[1], m[2])
	}

	m := textIsRe.FindStringSubmatch(selector)
	if m == nil {
		return fmt.Errorf("httpdriver: unsupported click selector %q", selector)
	}
	tag, text := m[1], m[2]
	switch tag {
	case "a":
		return d.followLink(ctx, text)
	case "h5":
		// Accordion header; expanding it has no network effect.
		return nil
	case "input":
		return d.submitForm(ctx, text)
	default:
		return fmt.Errorf("httpdriver: unsupported click target %q", selector)
	}
}

func (d *Driver) followLink(ctx context.Context, text string) error {
	d.mu.Lock()
	if d.doc == nil {
		d.mu.Unlock()
		return fmt.Errorf("httpdriver: no page loaded")
	}
	var href string
	d.doc.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) == text {
			href = s.AttrOr("href", "")
			return false
		}
		return true
	})
	base := d.pageURL
	d.mu.Unlock()

	if href == "" {
		return fmt.Errorf("httpdriver: link %q not found", text)
	}
	target, err := base.Parse(href)
	if err != nil {
		return err
	}
	return d.Navigate(ctx, target.String())
}

// submitForm posts the form containing the named submit button, merging
// the page's own hidden inputs (CSRF token and friends) with everything
// filled or selected so far.
func (d *Driver) submitForm(ctx context.Context, buttonText string) error {
	d.mu.Lock()
	if d.doc == nil {
		d.mu.Unlock()
		return fmt.Errorf("httpdriver: no page loaded")
	}

	form := d.doc.Find("form").FilterFunction(func(_ int, s *goquery.Selection) bool {
		match := false
		s.Find(`input[type="submit"]`).Each(func(_ int, in *goquery.Selection) {
			if strings.TrimSpace(in.AttrOr("value", "")) == buttonText {
				match = true
			}
		})
		return match
	}).First()
	if form.Length() == 0 {
		form = d.doc.Find("form").First()
	}
	if form.Length() == 0 {
		d.mu.Unlock()
		return fmt.Errorf("httpdriver: no form to submit for %q", buttonText)
	}

	values := url.Values{}
	form.Find("input[name]").Each(func(_ int, in *goquery.Selection) {
		values.Set(in.AttrOr("name", ""), in.AttrOr("value", ""))
	})
	for k, v := range d.form {
		values.Set(k, v)
	}

	action := form.AttrOr("action", "")
	base := d.pageURL
	d.mu.Unlock()

	target := base
	if action != "" {
		var err error
		target, err = base.Parse(action)
		if err != nil {
			return err
		}
	}

	resp, err := d.http.R().
		SetContext(ctx).
		SetHeader("content-type", "application/x-www-form-urlencoded").
		SetBody(values.Encode()).
		Post(target.String())
	if err != nil {
		return err
	}
	return d.setPage(resp.RawResponse.Request.URL, resp.Body())
}

func (d *Driver) SelectOption(ctx context.Context, selector, value string) error {
	switch selector {
	case facilitySelector:
		d.mu.Lock()
		d.form[facilityField] = value
		d.timeOptions = nil
		d.mu.Unlock()
		// The real page fires this request when the facility changes.
		return d.fetchDays(ctx, value)
	case timeSelector:
		d.mu.Lock()
		d.form[timeField] = value
		d.mu.Unlock()
		return nil
	}
	return fmt.Errorf("httpdriver: unsupported select %q", selector)
}

// fetchDays requests the appointment-days JSON for a facility and records
// the outcome as a captured response for the correlator.
func (d *Driver) fetchDays(ctx context.Context, facilityID string) error {
	u, err := d.appointmentURL(fmt.Sprintf("days/%s.json", facilityID))
	if err != nil {
		return err
	}
	resp, err := d.http.R().
		SetContext(ctx).
		SetHeader("accept", "application/json").
		SetHeader("x-requested-with", "XMLHttpRequest").
		SetQueryParam("appointments[expedite]", "false").
		Get(u)
	if err != nil {
		return err
	}

	captured := portal.Response{
		Status: resp.StatusCode(),
		URL:    resp.Request.URL,
		Body:   resp.Body(),
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.responses = append(d.responses, captured)
	d.openDays = map[string]bool{}
	if captured.Status == 200 {
		var days []struct {
			Date string `json:"date"`
		}
		if err := captured.JSON(&days); err == nil {
			for _, day := range days {
				d.openDays[day.Date] = true
			}
		}
	}
	d.log.Debug("captured days response",
		zap.String("url", captured.URL), zap.Int("status", captured.Status))
	return nil
}

// clickDay resolves a datepicker day cell to a concrete date, remembers
// it as the selected appointment date, and loads the offered times.
func (d *Driver) clickDay(ctx context.Context, monthName, dayStr string) error {
	d.mu.Lock()
	date, err := d.resolveDayLocked(monthName, dayStr)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	if !d.openDays[date] {
		d.mu.Unlock()
		return fmt.Errorf("httpdriver: day %s is not selectable", date)
	}
	d.selectedDate = date
	d.form[dateField] = date
	facility := d.form[facilityField]
	d.mu.Unlock()

	return d.fetchTimes(ctx, facility, date)
}

func (d *Driver) resolveDayLocked(monthName, dayStr string) (string, error) {
	if d.visibleMonth.IsZero() {
		return "", fmt.Errorf("httpdriver: datepicker not open")
	}
	for _, m := range []time.Time{d.visibleMonth, d.visibleMonth.AddDate(0, 1, 0)} {
		if m.Month().String() == monthName {
			return fmt.Sprintf("%04d-%02d-%s", m.Year(), int(m.Month()), pad2(dayStr)), nil
		}
	}
	return "", fmt.Errorf("httpdriver: month %s not visible", monthName)
}

func (d *Driver) fetchTimes(ctx context.Context, facilityID, date string) error {
	u, err := d.appointmentURL(fmt.Sprintf("times/%s.json", facilityID))
	if err != nil {
		return err
	}
	resp, err := d.http.R().
		SetContext(ctx).
		SetHeader("accept", "application/json").
		SetHeader("x-requested-with", "XMLHttpRequest").
		SetQueryParams(map[string]string{
			"date":                   date,
			"appointments[expedite]": "false",
		}).
		Get(u)
	if err != nil {
		return err
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("httpdriver: times fetch status %d", resp.StatusCode())
	}

	var body struct {
		AvailableTimes []string `json:"available_times"`
		BusinessTimes  []string `json:"business_times"`
	}
	if err := (portal.Response{Body: resp.Body()}).JSON(&body); err != nil {
		return err
	}
	times := body.AvailableTimes
	if len(times) == 0 {
		times = body.BusinessTimes
	}

	d.mu.Lock()
	d.timeOptions = times
	d.mu.Unlock()
	return nil
}

// appointmentURL builds a URL under the schedule's appointment path,
// derived from the page reached after sign-in navigation.
func (d *Driver) appointmentURL(suffix string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pageURL == nil {
		return "", fmt.Errorf("httpdriver: no page loaded")
	}
	base := strings.TrimSuffix(d.pageURL.String(), "/")
	if !strings.HasSuffix(base, "/appointment") {
		base += "/appointment"
	}
	return base + "/" + suffix, nil
}

func (d *Driver) Responses() []portal.Response {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]portal.Response, len(d.responses))
	copy(out, d.responses)
	return out
}

func (d *Driver) ClearResponses() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.responses = nil
}

func (d *Driver) TextContents(ctx context.Context, selector string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if selector == titleSelector {
		if d.visibleMonth.IsZero() {
			return nil, fmt.Errorf("httpdriver: datepicker not open")
		}
		first := d.visibleMonth
		second := first.AddDate(0, 1, 0)
		return []string{
			first.Format("January 2006"),
			second.Format("January 2006"),
		}, nil
	}
	if d.doc == nil {
		return nil, fmt.Errorf("httpdriver: no page loaded")
	}
	var out []string
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out, nil
}

func (d *Driver) OptionValues(ctx context.Context, selector string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if selector == timeSelector {
		return append([]string(nil), d.timeOptions...), nil
	}
	if d.doc == nil {
		return nil, fmt.Errorf("httpdriver: no page loaded")
	}
	var out []string
	d.doc.Find(selector + " option").Each(func(_ int, s *goquery.Selection) {
		if v := s.AttrOr("value", ""); v != "" {
			out = append(out, v)
		}
	})
	return out, nil
}

func (d *Driver) ElementCount(ctx context.Context, selector string) (int, error) {
	if selector == timeOptionsSel {
		d.mu.Lock()
		defer d.mu.Unlock()
		if len(d.timeOptions) == 0 {
			return 0, nil
		}
		// The live page keeps a blank placeholder option.
		return len(d.timeOptions) + 1, nil
	}
	if m := dayCellRe.FindStringSubmatch(selector); m != nil {
		d.mu.Lock()
		defer d.mu.Unlock()
		date, err := d.resolveDayLocked(m[1], m[2])
		if err != nil {
			return 0, err
		}
		if d.openDays[date] {
			return 1, nil
		}
		return 0, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return 0, fmt.Errorf("httpdriver: no page loaded")
	}
	return d.doc.Find(selector).Length(), nil
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
