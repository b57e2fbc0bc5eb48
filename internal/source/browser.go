package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/khrees2412/jobsift/pkg/models"
)

const pageLoadTimeout = 30 * time.Second

// BrowserClient renders result pages in headless Chrome. It is slower than
// HTTPClient but gets through pages that require JavaScript.
type BrowserClient struct {
	opts      Options
	searchURL string
	logger    *slog.Logger

	once      sync.Once
	allocCtx  context.Context
	cancelAll context.CancelFunc
	now       func() time.Time
}

// NewBrowserClient prepares a browser client; Chrome starts on first use
func NewBrowserClient(opts Options, logger *slog.Logger) *BrowserClient {
	searchURL := opts.SearchURL
	if searchURL == "" {
		searchURL = defaultSearchURL
	}
	return &BrowserClient{opts: opts, searchURL: searchURL, logger: logger, now: time.Now}
}

// allocator creates the shared browser process with appropriate options
func (c *BrowserClient) allocator() context.Context {
	c.once.Do(func() {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.Flag("excludeSwitches", "enable-automation"),
		)
		if c.opts.UserAgent != "" {
			opts = append(opts, chromedp.UserAgent(c.opts.UserAgent))
		}
		if proxy := firstNonEmpty(c.opts.ProxyHTTPS, c.opts.ProxyHTTP); proxy != "" {
			opts = append(opts, chromedp.ProxyServer(proxy))
		}
		c.allocCtx, c.cancelAll = chromedp.NewExecAllocator(context.Background(), opts...)
	})
	return c.allocCtx
}

// Close shuts the browser down
func (c *BrowserClient) Close() {
	if c.cancelAll != nil {
		c.cancelAll()
	}
}

// FetchPage renders one page of result cards
func (c *BrowserClient) FetchPage(ctx context.Context, q models.Query, page int) (*RawPage, error) {
	target := BuildSearchURL(c.searchURL, q, page)
	html, err := c.render(ctx, target)
	if err != nil {
		return nil, err
	}
	return &RawPage{URL: target, Format: FormatCards, Body: []byte(html), Query: q, Page: page, FetchedAt: c.now()}, nil
}

// FetchDescription renders a posting's detail page
func (c *BrowserClient) FetchDescription(ctx context.Context, postingURL string) (*RawPage, error) {
	html, err := c.render(ctx, postingURL)
	if err != nil {
		return nil, err
	}
	return &RawPage{URL: postingURL, Format: FormatDescription, Body: []byte(html), FetchedAt: c.now()}, nil
}

func (c *BrowserClient) render(ctx context.Context, target string) (string, error) {
	// Suppress noisy chromedp log messages
	tabCtx, cancelTab := chromedp.NewContext(c.allocator(), chromedp.WithLogf(func(format string, v ...interface{}) {
		msg := fmt.Sprintf(format, v...)
		if strings.Contains(msg, "could not unmarshal event") {
			return
		}
		c.logger.Debug("chromedp", "msg", msg)
	}))
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	tabCtx, cancel := context.WithTimeout(tabCtx, pageLoadTimeout)
	defer cancel()

	var (
		html, currentURL string
		actions          []chromedp.Action
	)
	if len(c.opts.Headers) > 0 {
		headers := network.Headers{}
		for k, v := range c.opts.Headers {
			headers[k] = v
		}
		actions = append(actions, network.Enable(), network.SetExtraHTTPHeaders(headers))
	}
	actions = append(actions,
		chromedp.Navigate(target),
		chromedp.Sleep(2*time.Second),
		chromedp.Location(&currentURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &Error{Kind: KindNetwork, URL: target, Err: err}
	}

	// Check for common block indicators
	if looksBlocked(currentURL, []byte(html)) {
		return "", &Error{Kind: KindAuthBlocked, URL: target, Err: fmt.Errorf("blocked at %s", currentURL)}
	}
	return html, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
