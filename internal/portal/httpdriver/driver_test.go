package httpdriver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const signInPage = `<html><body>
<form action="/sessions">
  <input type="hidden" name="authenticity_token" value="tok123">
  <input id="user_email" name="user[email]" type="text">
  <input id="user_password" name="user[password]" type="password">
  <input type="submit" value="Sign In">
</form>
</body></html>`

const appointmentPage = `<html><body>
<a href="/schedule/123/continue_actions">Continue</a>
<form action="/schedule/123/appointment">
  <input type="hidden" name="authenticity_token" value="tok456">
  <select id="appointments_consulate_appointment_facility_id">
    <option value=""></option>
    <option value="92">Ottawa</option>
    <option value="94">Toronto</option>
  </select>
  <input type="submit" value="Reschedule">
</form>
</body></html>`

func TestDriverSignInAndRescheduleFlow(t *testing.T) {
	// Keep the open day inside the datepicker's initial visible month so
	// the day-cell selector resolves without paging.
	now := time.Now()
	openDay := time.Date(now.Year(), now.Month(), 15, 0, 0, 0, 0, time.UTC)
	openDate := openDay.Format("2006-01-02")

	var signInForm, rescheduleForm map[string][]string
	mux := http.NewServeMux()
	mux.HandleFunc("/sign_in", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, signInPage)
	})
	mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		signInForm = r.PostForm
		http.Redirect(w, r, "/schedule/123/appointment", http.StatusFound)
	})
	mux.HandleFunc("/schedule/123/appointment", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			require.NoError(t, r.ParseForm())
			rescheduleForm = r.PostForm
			fmt.Fprint(w, `<html><body>Successfully Scheduled</body></html>`)
			return
		}
		fmt.Fprint(w, appointmentPage)
	})
	mux.HandleFunc("/schedule/123/appointment/days/94.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "false", r.URL.Query().Get("appointments[expedite]"))
		w.Header().Set("content-type", "application/json")
		fmt.Fprintf(w, `[{"date":%q,"business_day":true}]`, openDate)
	})
	mux.HandleFunc("/schedule/123/appointment/times/94.json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, openDate, r.URL.Query().Get("date"))
		w.Header().Set("content-type", "application/json")
		fmt.Fprint(w, `{"available_times":["08:00","10:30"],"business_times":[]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	d := New(Options{})

	require.NoError(t, d.Navigate(ctx, srv.URL+"/sign_in"))
	require.NoError(t, d.Fill(ctx, "#user_email", "op@example.com"))
	require.NoError(t, d.Fill(ctx, "#user_password", "hunter2"))
	require.NoError(t, d.Click(ctx, "#policy_confirmed"))
	require.NoError(t, d.Click(ctx, `input:text-is("Sign In")`))

	// The sign-in post carries the page's CSRF token and the filled
	// credentials under their real form names.
	require.NotNil(t, signInForm)
	assert.Equal(t, "tok123", signInForm["authenticity_token"][0])
	assert.Equal(t, "op@example.com", signInForm["user[email]"][0])
	assert.Equal(t, "hunter2", signInForm["user[password]"][0])
	assert.Equal(t, "1", signInForm["policy_confirmed"][0])

	// Selecting a facility fires the days request and captures it.
	require.NoError(t, d.SelectOption(ctx, facilitySelector, "94"))
	resps := d.Responses()
	require.Len(t, resps, 1)
	assert.Equal(t, 200, resps[0].Status)
	assert.Contains(t, resps[0].URL, "appointment/days/94.json")

	d.ClearResponses()
	assert.Empty(t, d.Responses())

	// Datepicker: open it, confirm the visible months, click the open day.
	require.NoError(t, d.Click(ctx, dateInputSel))
	titles, err := d.TextContents(ctx, titleSelector)
	require.NoError(t, err)
	require.Len(t, titles, 2)
	assert.Equal(t, openDay.Format("January 2006"), titles[0])

	cell := fmt.Sprintf(`.ui-datepicker-group:has(span:text-is(%q)) td a:text-is("15")`, openDay.Month().String())
	n, err := d.ElementCount(ctx, cell)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NoError(t, d.Click(ctx, cell))

	// Times arrive from the times endpoint; the count includes the blank
	// placeholder option the live page keeps.
	times, err := d.OptionValues(ctx, timeSelector)
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00", "10:30"}, times)
	n, err = d.ElementCount(ctx, timeOptionsSel)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, d.SelectOption(ctx, timeSelector, "10:30"))
	require.NoError(t, d.Click(ctx, `input:text-is("Reschedule")`))

	require.NotNil(t, rescheduleForm)
	assert.Equal(t, "tok456", rescheduleForm["authenticity_token"][0])
	assert.Equal(t, "94", rescheduleForm[facilityField][0])
	assert.Equal(t, openDate, rescheduleForm[dateField][0])
	assert.Equal(t, "10:30", rescheduleForm[timeField][0])
}

func TestClickDayRejectsClosedDate(t *testing.T) {
	d := New(Options{})
	require.NoError(t, d.Click(context.Background(), dateInputSel))

	month := time.Now().Month().String()
	cell := fmt.Sprintf(`.ui-datepicker-group:has(span:text-is(%q)) td a:text-is("15")`, month)

	n, err := d.ElementCount(context.Background(), cell)
	require.NoError(t, err)
	assert.Zero(t, n)

	err = d.Click(context.Background(), cell)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not selectable")
}

func TestDatepickerPaging(t *testing.T) {
	d := New(Options{})
	ctx := context.Background()
	require.NoError(t, d.Click(ctx, dateInputSel))

	before, err := d.TextContents(ctx, titleSelector)
	require.NoError(t, err)

	require.NoError(t, d.Click(ctx, `span:text-is("Next")`))
	after, err := d.TextContents(ctx, titleSelector)
	require.NoError(t, err)
	assert.Equal(t, before[1], after[0])

	require.NoError(t, d.Click(ctx, `span:text-is("Prev")`))
	back, err := d.TextContents(ctx, titleSelector)
	require.NoError(t, err)
	assert.Equal(t, before, back)
}

func TestUnsupportedSelectorsAreRejected(t *testing.T) {
	d := New(Options{})
	ctx := context.Background()

	err := d.Click(ctx, "div.whatever")
	assert.Error(t, err)

	err = d.SelectOption(ctx, "#some_other_select", "1")
	assert.Error(t, err)
}
