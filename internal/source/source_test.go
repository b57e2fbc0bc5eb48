package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/khrees2412/jobsift/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewHTTPClient(Options{
		SearchURL: srv.URL + "/search",
		UserAgent: "jobsift-test/1.0",
		Headers:   map[string]string{"Accept-Language": "en-US"},
		Timeout:   2 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func TestFetchPageSendsHeadersAndPaging(t *testing.T) {
	var got *http.Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Write([]byte(`<li><div class="base-search-card__info"></div></li>`))
	})

	q := models.Query{Keywords: "go developer", Location: "Berlin", WorkMode: models.WorkModeRemote, Timespan: "r86400"}
	page, err := c.FetchPage(context.Background(), q, 2)
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "jobsift-test/1.0", got.Header.Get("User-Agent"))
	assert.Equal(t, "en-US", got.Header.Get("Accept-Language"))
	assert.Equal(t, "50", got.URL.Query().Get("start"))
	assert.Equal(t, "go developer", got.URL.Query().Get("keywords"))
	assert.Equal(t, "2", got.URL.Query().Get("f_WT"))
	assert.Equal(t, "r86400", got.URL.Query().Get("f_TPR"))

	assert.Equal(t, FormatCards, page.Format)
	assert.Equal(t, 2, page.Page)
	assert.Contains(t, string(page.Body), "base-search-card__info")
}

func TestFetchPageClassifiesFailures(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		kind       Kind
		sentinel   error
		retryAfter time.Duration
	}{
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "7")
				w.WriteHeader(http.StatusTooManyRequests)
			},
			kind: KindRateLimited, sentinel: ErrRateLimited, retryAfter: 7 * time.Second,
		},
		{
			name:    "forbidden",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusForbidden) },
			kind:    KindAuthBlocked, sentinel: ErrAuthBlocked,
		},
		{
			name:    "linkedin denial",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(999) },
			kind:    KindAuthBlocked, sentinel: ErrAuthBlocked,
		},
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			kind:    KindNetwork, sentinel: ErrNetwork,
		},
		{
			name: "login wall redirect",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/authwall" {
					w.Write([]byte("<html>sign in</html>"))
					return
				}
				http.Redirect(w, r, "/authwall?trk=guest", http.StatusFound)
			},
			kind: KindAuthBlocked, sentinel: ErrAuthBlocked,
		},
		{
			name: "verification page",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<title>Security Verification</title>"))
			},
			kind: KindAuthBlocked, sentinel: ErrAuthBlocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			_, err := c.FetchPage(context.Background(), models.Query{Keywords: "go"}, 0)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.True(t, errors.Is(err, tt.sentinel))
			assert.Equal(t, tt.retryAfter, RetryAfterOf(err))
		})
	}
}

func TestFetchPageDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.FetchPage(context.Background(), models.Query{Keywords: "go"}, 0)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchPageHonorsCancellation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.FetchPage(ctx, models.Query{Keywords: "go"}, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, KindOf(err))
}

func TestProxySelector(t *testing.T) {
	sel, err := proxySelector("http://plain:3128", "http://secure:3129")
	require.NoError(t, err)

	httpsReq := &http.Request{URL: &url.URL{Scheme: "https", Host: "www.linkedin.com"}}
	u, err := sel(httpsReq)
	require.NoError(t, err)
	assert.Equal(t, "secure:3129", u.Host)

	httpReq := &http.Request{URL: &url.URL{Scheme: "http", Host: "example.com"}}
	u, err = sel(httpReq)
	require.NoError(t, err)
	assert.Equal(t, "plain:3128", u.Host)

	_, err = proxySelector("://bad", "")
	assert.Error(t, err)
}

func TestFeedClientOnlyFetchesFirstPage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "golang", r.URL.Query().Get("q"))
		w.Write([]byte(`<rss version="2.0"><channel><title>jobs</title></channel></rss>`))
	}))
	defer srv.Close()

	c, err := NewFeedClient(srv.URL+"/feed?q={keywords}&l={location}", Options{})
	require.NoError(t, err)

	page, err := c.FetchPage(context.Background(), models.Query{Keywords: "golang"}, 0)
	require.NoError(t, err)
	assert.Equal(t, FormatFeed, page.Format)
	assert.NotEmpty(t, page.Body)

	page, err = c.FetchPage(context.Background(), models.Query{Keywords: "golang"}, 1)
	require.NoError(t, err)
	assert.Empty(t, page.Body)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPostingsMentioningBlockPhrasesAreNotBlocked(t *testing.T) {
	card := `<li><div class="base-search-card" data-entity-urn="urn:li:jobPosting:77">
		<div class="base-search-card__info"><h3>Fraud Analyst</h3>
		<p>Investigate unusual activity and captcha abuse. Access denied incidents.</p></div></div></li>`
	description := `<html><head><title>Fraud Analyst | Acme</title></head><body>
		<div class="description__text">You will investigate unusual activity on customer accounts
		and tune our security verification and captcha flows.</div></body></html>`

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/jobs/view") {
			w.Write([]byte(description))
			return
		}
		w.Write([]byte(card))
	})

	page, err := c.FetchPage(context.Background(), models.Query{Keywords: "fraud"}, 0)
	require.NoError(t, err)
	assert.Contains(t, string(page.Body), "Fraud Analyst")

	base, _, _ := strings.Cut(c.SearchURL(models.Query{}, 0), "/search")
	desc, err := c.FetchDescription(context.Background(), base+"/jobs/view/77/")
	require.NoError(t, err)
	assert.Contains(t, string(desc.Body), "unusual activity")
}

func TestLooksBlocked(t *testing.T) {
	longPage := "<html><head><title>Careers</title></head><body><p>" +
		strings.Repeat("Our security team reviews unusual activity daily. ", 600) + "</p></body></html>"

	tests := []struct {
		name     string
		finalURL string
		body     string
		want     bool
	}{
		{"login redirect", "https://www.linkedin.com/authwall?trk=x", "<html></html>", true},
		{"checkpoint redirect", "https://www.linkedin.com/checkpoint/challenge", "", true},
		{"verification title", "https://example.com/jobs", "<html><head><title>Security Verification</title></head></html>", true},
		{"small captcha interstitial", "https://example.com/jobs", "<html><body>Please solve the captcha to continue</body></html>", true},
		{"empty page", "https://example.com/jobs", "", false},
		{"result cards", "https://example.com/jobs", `<div class="base-search-card__info">Access denied investigations</div>`, false},
		{"description block", "https://example.com/jobs/view/1", `<div class="show-more-less-html__markup">robot check tooling</div>`, false},
		{"large ordinary page", "https://example.com/jobs", longPage, false},
		{"feed", "https://example.com/feed.rss", `<?xml version="1.0"?><rss><channel><item><title>Captcha engineer</title></item></channel></rss>`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, looksBlocked(tt.finalURL, []byte(tt.body)))
		})
	}
}
