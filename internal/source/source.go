// Package source fetches raw result pages from a job board. Clients never
// retry; they classify every failure so the ingest coordinator can decide.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/khrees2412/jobsift/pkg/models"
)

// Format tells the parser how to read a page body
type Format string

const (
	FormatCards       Format = "cards"
	FormatDescription Format = "description"
	FormatFeed        Format = "feed"
)

// RawPage is an unparsed payload returned by a client
type RawPage struct {
	URL       string
	Format    Format
	Body      []byte
	Query     models.Query
	Page      int
	FetchedAt time.Time
}

// Client fetches one page of results for a query
type Client interface {
	FetchPage(ctx context.Context, q models.Query, page int) (*RawPage, error)
}

// DescriptionFetcher is implemented by clients that can load a posting's detail page
type DescriptionFetcher interface {
	FetchDescription(ctx context.Context, postingURL string) (*RawPage, error)
}

// Kind classifies a fetch failure
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindRateLimited
	KindAuthBlocked
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRateLimited:
		return "rate_limited"
	case KindAuthBlocked:
		return "auth_blocked"
	default:
		return "unknown"
	}
}

var (
	ErrNetwork     = errors.New("network error")
	ErrRateLimited = errors.New("rate limited")
	ErrAuthBlocked = errors.New("blocked by source")
)

// Error is the tagged failure returned by every client
type Error struct {
	Kind       Kind
	URL        string
	Status     int
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.sentinel().Error())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.Status)
	}
	if e.URL != "" {
		fmt.Fprintf(&b, " fetching %s", e.URL)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindRateLimited:
		return ErrRateLimited
	case KindAuthBlocked:
		return ErrAuthBlocked
	default:
		return ErrNetwork
	}
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is/As
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.sentinel()}
	}
	return []error{e.sentinel(), e.Err}
}

// KindOf returns the failure kind of err, or 0 when err is not a source error
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

// RetryAfterOf returns the server-suggested wait carried by err, if any
func RetryAfterOf(err error) time.Duration {
	var se *Error
	if errors.As(err, &se) {
		return se.RetryAfter
	}
	return 0
}

// blockMarkers are phrases seen on interstitials served instead of results
var blockMarkers = []string{
	"security verification",
	"captcha",
	"access denied",
	"unusual activity",
	"robot check",
	"checking your browser",
}

// blockedURLParts show up in the final URL after a redirect to a login wall
var blockedURLParts = []string{"/authwall", "/checkpoint", "/login", "/uas/login"}

// contentSelector matches result cards and description blocks. A page that
// has any of them is real content, whatever its text says.
const contentSelector = "div.base-search-card__info, [data-entity-urn], div.description__text, div.show-more-less-html__markup"

// interstitialMaxBytes bounds the pages whose whole text is searched for
// block markers. Real result and description pages are far larger.
const interstitialMaxBytes = 16 << 10

var feedPrefixes = [][]byte{[]byte("<rss"), []byte("<feed"), []byte("<rdf:rdf")}

// looksBlocked reports whether a 2xx response is a login wall or
// verification page. Postings mentioning "captcha" or "unusual activity"
// must not trip it.
func looksBlocked(finalURL string, body []byte) bool {
	u := strings.ToLower(finalURL)
	for _, part := range blockedURLParts {
		if strings.Contains(u, part) {
			return true
		}
	}
	if isFeed(body) {
		return false
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	if doc.Find(contentSelector).Length() > 0 {
		return false
	}
	if hasBlockMarker(doc.Find("title").Text()) {
		return true
	}
	return len(body) <= interstitialMaxBytes && hasBlockMarker(doc.Text())
}

func isFeed(body []byte) bool {
	head := bytes.ToLower(bytes.TrimSpace(body))
	if len(head) > 512 {
		head = head[:512]
	}
	for _, prefix := range feedPrefixes {
		if bytes.Contains(head, prefix) {
			return true
		}
	}
	return false
}

func hasBlockMarker(text string) bool {
	text = strings.ToLower(text)
	for _, marker := range blockMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
