// Package httpdriver implements portal.Driver over plain HTTP. It mimics
// the requests the scheduler site's own JavaScript issues: page
// navigation and form posts through a cookie-jarred client, and the
// appointment-days/times JSON endpoints for the dynamic widgets. The
// datepicker is modeled as local state since its month paging never
// touches the network.
package httpdriver

import (
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/example/visa-checker/internal/portal"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type Options struct {
	Logger *zap.Logger
}

type Driver struct {
	http *resty.Client
	log  *zap.Logger

	mu        sync.Mutex
	doc       *goquery.Document
	pageURL   *url.URL
	form      map[string]string
	responses []portal.Response

	// Local datepicker model: the pair of visible months and the dates
	// the last days fetch said were selectable.
	visibleMonth time.Time
	openDays     map[string]bool
	timeOptions  []string
	selectedDate string
}

func New(opts Options) *Driver {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	client := resty.New()
	jar, _ := cookiejar.New(nil)
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", userAgent)
	client.SetTimeout(30 * time.Second)

	return &Driver{
		http: client,
		log:  opts.Logger,
		form: map[string]string{},
	}
}
