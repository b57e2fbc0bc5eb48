// Package parser turns raw result pages into candidate postings.
package parser

import (
	"bytes"
	"fmt"
	"iter"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"

	"github.com/khrees2412/jobsift/internal/dates"
	"github.com/khrees2412/jobsift/internal/source"
	"github.com/khrees2412/jobsift/pkg/models"
)

const viewURLFormat = "https://www.linkedin.com/jobs/view/%s/"

// Parser reads result pages. It keeps no state between pages.
type Parser struct {
	source    string
	logger    *slog.Logger
	converter *md.Converter
}

// New creates a parser that tags candidates with the given source name
func New(sourceName string, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		source:    sourceName,
		logger:    logger.With("component", "parser"),
		converter: md.NewConverter("", true, nil),
	}
}

// Parse lazily yields the candidates on a page. Each range over the
// returned sequence parses the body again.
func (p *Parser) Parse(page *source.RawPage) iter.Seq[models.Candidate] {
	return func(yield func(models.Candidate) bool) {
		p.walk(page, yield, func() {})
	}
}

// ParsePage collects every candidate on a page and counts malformed entries
func (p *Parser) ParsePage(page *source.RawPage) ([]models.Candidate, int) {
	var (
		out     []models.Candidate
		skipped int
	)
	p.walk(page, func(c models.Candidate) bool {
		out = append(out, c)
		return true
	}, func() { skipped++ })
	return out, skipped
}

func (p *Parser) walk(page *source.RawPage, yield func(models.Candidate) bool, skip func()) {
	if page == nil || len(bytes.TrimSpace(page.Body)) == 0 {
		return
	}
	switch page.Format {
	case source.FormatFeed:
		p.walkFeed(page, yield, skip)
	default:
		p.walkCards(page, yield, skip)
	}
}

func (p *Parser) walkCards(page *source.RawPage, yield func(models.Candidate) bool, skip func()) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		p.logger.Warn("unreadable result page", "url", page.URL, "error", err)
		return
	}

	doc.Find("div.base-search-card__info").EachWithBreak(func(_ int, card *goquery.Selection) bool {
		c, ok := p.card(card, page)
		if !ok {
			skip()
			return true
		}
		return yield(c)
	})
}

func (p *Parser) card(card *goquery.Selection, page *source.RawPage) (models.Candidate, bool) {
	title := cleanText(card.Find("h3").First().Text())
	id := cardID(card)
	if title == "" || id == "" {
		p.logger.Debug("skipping malformed card", "url", page.URL, "id", id, "title", title)
		return models.Candidate{}, false
	}

	company := cleanText(card.Find("a.hidden-nested-link").First().Text())
	if company == "" {
		company = cleanText(card.Find("h4").First().Text())
	}
	location := cleanText(card.Find("span.job-search-card__location").First().Text())

	return models.Candidate{
		ExternalID: id,
		Source:     p.source,
		Title:      title,
		Company:    company,
		Location:   location,
		PostedAt:   dates.Normalize(postedRaw(card), page.FetchedAt),
		WorkMode:   classifyWorkMode(location, cleanText(card.Find(".job-search-card__workplace-type, .base-search-card__metadata").Text())),
		URL:        fmt.Sprintf(viewURLFormat, id),
	}, true
}

// cardID reads the numeric posting id from the card container's entity urn
func cardID(card *goquery.Selection) string {
	for _, sel := range []*goquery.Selection{card.Parent(), card.Closest("[data-entity-urn]")} {
		if urn, ok := sel.Attr("data-entity-urn"); ok && urn != "" {
			parts := strings.Split(urn, ":")
			return strings.TrimSpace(parts[len(parts)-1])
		}
	}
	if id, ok := card.Closest("[data-job-id]").Attr("data-job-id"); ok {
		return strings.TrimSpace(id)
	}
	return ""
}

func postedRaw(card *goquery.Selection) string {
	for _, sel := range []string{"time.job-search-card__listdate", "time.job-search-card__listdate--new"} {
		t := card.Find(sel).First()
		if t.Length() == 0 {
			continue
		}
		if dt, ok := t.Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
			return dt
		}
		if text := cleanText(t.Text()); text != "" {
			return text
		}
	}
	return ""
}

var (
	remotePattern = regexp.MustCompile(`(?i)\bremote\b|\bwork from home\b`)
	hybridPattern = regexp.MustCompile(`(?i)\bhybrid\b`)
	onsitePattern = regexp.MustCompile(`(?i)\bon[- ]?site\b|\bin[- ]office\b`)
)

// classifyWorkMode looks for a workplace label in the card text
func classifyWorkMode(texts ...string) models.WorkMode {
	joined := strings.Join(texts, " ")
	switch {
	case hybridPattern.MatchString(joined):
		return models.WorkModeHybrid
	case remotePattern.MatchString(joined):
		return models.WorkModeRemote
	case onsitePattern.MatchString(joined):
		return models.WorkModeOnsite
	default:
		return models.WorkModeUnknown
	}
}

func (p *Parser) walkFeed(page *source.RawPage, yield func(models.Candidate) bool, skip func()) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(page.Body))
	if err != nil {
		p.logger.Warn("unreadable feed", "url", page.URL, "error", err)
		return
	}

	for _, item := range feed.Items {
		id := item.GUID
		if id == "" {
			id = item.Link
		}
		title := cleanText(item.Title)
		if id == "" || title == "" {
			p.logger.Debug("skipping malformed feed item", "url", page.URL, "title", title)
			skip()
			continue
		}

		posted := page.FetchedAt
		if item.PublishedParsed != nil {
			posted = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			posted = *item.UpdatedParsed
		}

		var company string
		if len(item.Authors) > 0 && item.Authors[0] != nil {
			company = cleanText(item.Authors[0].Name)
		}

		body := item.Content
		if body == "" {
			body = item.Description
		}
		description := p.toMarkdown(body)

		c := models.Candidate{
			ExternalID:  "feed:" + id,
			Source:      p.source,
			Title:       title,
			Company:     company,
			Description: description,
			PostedAt:    posted.UTC(),
			WorkMode:    classifyWorkMode(title, strings.Join(item.Categories, " ")),
			URL:         item.Link,
		}
		if !yield(c) {
			return
		}
	}
}

var showToggle = regexp.MustCompile(`(?im)^[ \t]*show (more|less)[ \t]*$`)

// ParseDescription extracts the posting text from a detail page as markdown.
// Pages without the usual description block fall back to readability.
func (p *Parser) ParseDescription(page *source.RawPage) string {
	if page == nil || len(page.Body) == 0 {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err == nil {
		block := doc.Find("div.description__text, div.show-more-less-html__markup").First()
		if block.Length() > 0 {
			block.Find("button").Remove()
			html, err := block.Html()
			if err == nil {
				if text := p.toMarkdown(html); text != "" {
					return text
				}
			}
		}
	}

	pageURL, _ := url.Parse(page.URL)
	article, err := readability.FromReader(bytes.NewReader(page.Body), pageURL)
	if err != nil {
		p.logger.Debug("no readable description", "url", page.URL, "error", err)
		return ""
	}
	return strings.TrimSpace(showToggle.ReplaceAllString(article.TextContent, ""))
}

func (p *Parser) toMarkdown(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	text, err := p.converter.ConvertString(html)
	if err != nil {
		p.logger.Debug("markdown conversion failed", "error", err)
		return ""
	}
	return strings.TrimSpace(showToggle.ReplaceAllString(text, ""))
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
