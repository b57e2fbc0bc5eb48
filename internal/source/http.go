package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/khrees2412/jobsift/pkg/models"
)

const (
	defaultSearchURL = "https://www.linkedin.com/jobs-guest/jobs/api/seeMoreJobPostings/search"
	pageSize         = 25
	maxBodyBytes     = 5 << 20
)

// Options configures the HTTP transports
type Options struct {
	SearchURL  string
	ProxyHTTP  string
	ProxyHTTPS string
	UserAgent  string
	Headers    map[string]string
	Timeout    time.Duration
}

// transport performs GETs with the configured proxy, headers and user agent
type transport struct {
	client    *http.Client
	userAgent string
	headers   map[string]string
}

func newTransport(opts Options) (*transport, error) {
	proxyFunc, err := proxySelector(opts.ProxyHTTP, opts.ProxyHTTPS)
	if err != nil {
		return nil, err
	}
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.Proxy = proxyFunc

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &transport{
		client:    &http.Client{Timeout: timeout, Transport: base},
		userAgent: opts.UserAgent,
		headers:   opts.Headers,
	}, nil
}

// proxySelector routes requests through the proxy configured for their scheme
func proxySelector(httpProxy, httpsProxy string) (func(*http.Request) (*url.URL, error), error) {
	parse := func(raw string) (*url.URL, error) {
		if raw == "" {
			return nil, nil
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url %q: %w", raw, err)
		}
		return u, nil
	}
	httpURL, err := parse(httpProxy)
	if err != nil {
		return nil, err
	}
	httpsURL, err := parse(httpsProxy)
	if err != nil {
		return nil, err
	}
	if httpURL == nil && httpsURL == nil {
		return http.ProxyFromEnvironment, nil
	}
	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && httpsURL != nil {
			return httpsURL, nil
		}
		if httpURL != nil {
			return httpURL, nil
		}
		return httpsURL, nil
	}, nil
}

func (t *transport) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: target, Err: err}
	}
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Kind: KindNetwork, URL: target, Err: err}
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL.String()
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{Kind: KindRateLimited, URL: target, Status: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || resp.StatusCode == 999:
		return nil, &Error{Kind: KindAuthBlocked, URL: target, Status: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &Error{Kind: KindNetwork, URL: target, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Kind: KindNetwork, URL: target, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if looksBlocked(finalURL, body) {
		return nil, &Error{Kind: KindAuthBlocked, URL: target, Status: resp.StatusCode,
			Err: errors.New("received a login wall or verification page")}
	}
	return body, nil
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// HTTPClient reads the public guest search feed
type HTTPClient struct {
	t         *transport
	searchURL string
	now       func() time.Time
}

// NewHTTPClient builds a client for the guest search feed
func NewHTTPClient(opts Options) (*HTTPClient, error) {
	t, err := newTransport(opts)
	if err != nil {
		return nil, err
	}
	searchURL := opts.SearchURL
	if searchURL == "" {
		searchURL = defaultSearchURL
	}
	return &HTTPClient{t: t, searchURL: searchURL, now: time.Now}, nil
}

// SearchURL builds the URL of one result page
func (c *HTTPClient) SearchURL(q models.Query, page int) string {
	return BuildSearchURL(c.searchURL, q, page)
}

// BuildSearchURL constructs the guest feed search URL
func BuildSearchURL(base string, q models.Query, page int) string {
	params := url.Values{}
	params.Set("keywords", q.Keywords)
	params.Set("location", q.Location)
	if code := q.WorkMode.SourceCode(); code != "" && q.Constrained() {
		params.Set("f_WT", code)
	}
	if q.Timespan != "" {
		params.Set("f_TPR", q.Timespan)
	}
	params.Set("start", strconv.Itoa(pageSize*page))
	return base + "?" + params.Encode()
}

// FetchPage fetches one page of result cards
func (c *HTTPClient) FetchPage(ctx context.Context, q models.Query, page int) (*RawPage, error) {
	target := c.SearchURL(q, page)
	body, err := c.t.get(ctx, target)
	if err != nil {
		return nil, err
	}
	return &RawPage{URL: target, Format: FormatCards, Body: body, Query: q, Page: page, FetchedAt: c.now()}, nil
}

// FetchDescription fetches a posting's detail page
func (c *HTTPClient) FetchDescription(ctx context.Context, postingURL string) (*RawPage, error) {
	body, err := c.t.get(ctx, postingURL)
	if err != nil {
		return nil, err
	}
	return &RawPage{URL: postingURL, Format: FormatDescription, Body: body, FetchedAt: c.now()}, nil
}
