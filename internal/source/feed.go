package source

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/khrees2412/jobsift/pkg/models"
)

// FeedClient reads RSS/Atom job feeds. Feeds have no pagination, so any
// page after the first comes back empty and ends the query.
type FeedClient struct {
	t        *transport
	template string
	now      func() time.Time
}

// NewFeedClient builds a feed client. The template may contain {keywords}
// and {location} placeholders.
func NewFeedClient(template string, opts Options) (*FeedClient, error) {
	t, err := newTransport(opts)
	if err != nil {
		return nil, err
	}
	return &FeedClient{t: t, template: template, now: time.Now}, nil
}

// FeedURL expands the template for a query
func (c *FeedClient) FeedURL(q models.Query) string {
	r := strings.NewReplacer(
		"{keywords}", url.QueryEscape(q.Keywords),
		"{location}", url.QueryEscape(q.Location),
	)
	return r.Replace(c.template)
}

// FetchPage fetches the feed for page 0 and returns an empty page otherwise
func (c *FeedClient) FetchPage(ctx context.Context, q models.Query, page int) (*RawPage, error) {
	target := c.FeedURL(q)
	if page > 0 {
		return &RawPage{URL: target, Format: FormatFeed, Query: q, Page: page, FetchedAt: c.now()}, nil
	}
	body, err := c.t.get(ctx, target)
	if err != nil {
		return nil, err
	}
	return &RawPage{URL: target, Format: FormatFeed, Body: body, Query: q, Page: page, FetchedAt: c.now()}, nil
}
