package parser

import (
	"testing"
	"time"

	"github.com/khrees2412/jobsift/internal/source"
	"github.com/khrees2412/jobsift/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fetchedAt = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

const cardsHTML = `
<ul>
<li>
  <div class="base-card" data-entity-urn="urn:li:jobPosting:3901234567">
    <div class="base-search-card__info">
      <h3 class="base-search-card__title">  Senior Go Engineer </h3>
      <h4 class="base-search-card__subtitle"><a class="hidden-nested-link">Acme
        Corp</a></h4>
      <div class="base-search-card__metadata">
        <span class="job-search-card__location">Berlin, Germany (Hybrid)</span>
        <time class="job-search-card__listdate" datetime="2024-05-08">2 days ago</time>
      </div>
    </div>
  </div>
</li>
<li>
  <div class="base-card" data-entity-urn="urn:li:jobPosting:3907654321">
    <div class="base-search-card__info">
      <h3>Platform Engineer</h3>
      <h4>Globex</h4>
      <span class="job-search-card__location">Remote</span>
      <time class="job-search-card__listdate--new">1 day ago</time>
    </div>
  </div>
</li>
<li>
  <div class="base-card">
    <div class="base-search-card__info">
      <h3>No id here</h3>
    </div>
  </div>
</li>
<li>
  <div class="base-card" data-entity-urn="urn:li:jobPosting:3900000001">
    <div class="base-search-card__info">
      <h3></h3>
    </div>
  </div>
</li>
<li>
  <div class="base-card" data-entity-urn="urn:li:jobPosting:3900000002">
    <div class="base-search-card__info">
      <h3>Site Reliability Engineer</h3>
      <a class="hidden-nested-link">Initech</a>
      <span class="job-search-card__location">Austin, TX</span>
      <time class="job-search-card__listdate">recently</time>
    </div>
  </div>
</li>
</ul>`

func cardsPage(body string) *source.RawPage {
	return &source.RawPage{URL: "https://example.test/search", Format: source.FormatCards, Body: []byte(body), FetchedAt: fetchedAt}
}

func TestParsePageCards(t *testing.T) {
	p := New("linkedin", nil)
	got, skipped := p.ParsePage(cardsPage(cardsHTML))

	require.Len(t, got, 3)
	assert.Equal(t, 2, skipped)

	first := got[0]
	assert.Equal(t, "3901234567", first.ExternalID)
	assert.Equal(t, "linkedin", first.Source)
	assert.Equal(t, "Senior Go Engineer", first.Title)
	assert.Equal(t, "Acme Corp", first.Company)
	assert.Equal(t, "Berlin, Germany (Hybrid)", first.Location)
	assert.Equal(t, models.WorkModeHybrid, first.WorkMode)
	assert.Equal(t, "https://www.linkedin.com/jobs/view/3901234567/", first.URL)
	assert.True(t, first.PostedAt.Equal(time.Date(2024, 5, 8, 0, 0, 0, 0, time.UTC)), first.PostedAt)

	second := got[1]
	assert.Equal(t, "Globex", second.Company)
	assert.Equal(t, models.WorkModeRemote, second.WorkMode)
	assert.True(t, second.PostedAt.Equal(fetchedAt.AddDate(0, 0, -1)), second.PostedAt)

	third := got[2]
	assert.Equal(t, models.WorkModeUnknown, third.WorkMode)
	assert.True(t, third.PostedAt.Equal(fetchedAt), "unparseable dates fall back to fetch time")
}

func TestParseIsLazyAndRestartable(t *testing.T) {
	p := New("linkedin", nil)
	seq := p.Parse(cardsPage(cardsHTML))

	var firstPass []string
	for c := range seq {
		firstPass = append(firstPass, c.ExternalID)
		if len(firstPass) == 1 {
			break
		}
	}
	assert.Equal(t, []string{"3901234567"}, firstPass)

	var secondPass []string
	for c := range seq {
		secondPass = append(secondPass, c.ExternalID)
	}
	assert.Equal(t, []string{"3901234567", "3907654321", "3900000002"}, secondPass)
}

func TestParseEmptyPage(t *testing.T) {
	p := New("linkedin", nil)

	got, skipped := p.ParsePage(cardsPage("   "))
	assert.Empty(t, got)
	assert.Zero(t, skipped)

	got, skipped = p.ParsePage(cardsPage("<html><body>No matching jobs</body></html>"))
	assert.Empty(t, got)
	assert.Zero(t, skipped)

	got, _ = p.ParsePage(nil)
	assert.Empty(t, got)
}

func TestParseFeed(t *testing.T) {
	const rss = `<?xml version="1.0"?>
<rss version="2.0">
<channel>
  <title>Jobs</title>
  <item>
    <guid>job-42</guid>
    <title>Remote Backend Developer</title>
    <link>https://jobs.example.test/42</link>
    <author>hiring@example.test (Hooli)</author>
    <pubDate>Wed, 08 May 2024 09:00:00 GMT</pubDate>
    <description><![CDATA[<p>Build <strong>APIs</strong> in Go.</p>]]></description>
  </item>
  <item>
    <title></title>
    <link>https://jobs.example.test/43</link>
  </item>
</channel>
</rss>`

	p := New("feed", nil)
	got, skipped := p.ParsePage(&source.RawPage{Format: source.FormatFeed, Body: []byte(rss), FetchedAt: fetchedAt})

	require.Len(t, got, 1)
	assert.Equal(t, 1, skipped)

	c := got[0]
	assert.Equal(t, "feed:job-42", c.ExternalID)
	assert.Equal(t, "feed", c.Source)
	assert.Equal(t, "https://jobs.example.test/42", c.URL)
	assert.Equal(t, models.WorkModeRemote, c.WorkMode)
	assert.Contains(t, c.Description, "**APIs**")
	assert.True(t, c.PostedAt.Equal(time.Date(2024, 5, 8, 9, 0, 0, 0, time.UTC)), c.PostedAt)
}

func TestParseDescription(t *testing.T) {
	const detail = `<html><body>
<section>
  <div class="description__text description__text--rich">
    <div class="show-more-less-html__markup">
      <p>We are hiring a <strong>Go</strong> engineer.</p>
      <ul><li>Kubernetes</li><li>PostgreSQL</li></ul>
    </div>
    <button class="show-more-less-html__button">Show more</button>
  </div>
</section>
</body></html>`

	p := New("linkedin", nil)
	text := p.ParseDescription(&source.RawPage{URL: "https://www.linkedin.com/jobs/view/1/", Format: source.FormatDescription, Body: []byte(detail)})

	assert.Contains(t, text, "We are hiring a **Go** engineer.")
	assert.Contains(t, text, "Kubernetes")
	assert.NotContains(t, text, "Show more")
}

func TestParseDescriptionFallsBackToReadability(t *testing.T) {
	const article = `<html><head><title>Backend role</title></head><body>
<article>
  <h1>Backend role</h1>
  <p>Our team builds payment infrastructure used by millions of customers every day across many countries.</p>
  <p>You will design services in Go, own their reliability, and work closely with product engineers on new features.</p>
  <p>We offer flexible hours, a learning budget and a friendly team that values careful engineering.</p>
  <p>The interview process has a short call with the hiring manager, a take home exercise that takes about two hours, and a final conversation with the team about how you approach systems design.</p>
</article>
</body></html>`

	p := New("linkedin", nil)
	text := p.ParseDescription(&source.RawPage{URL: "https://careers.example.test/backend", Body: []byte(article)})
	assert.Contains(t, text, "payment infrastructure")
}

func TestClassifyWorkMode(t *testing.T) {
	tests := []struct {
		texts []string
		want  models.WorkMode
	}{
		{[]string{"London (Hybrid)"}, models.WorkModeHybrid},
		{[]string{"Remote"}, models.WorkModeRemote},
		{[]string{"Paris", "On-site"}, models.WorkModeOnsite},
		{[]string{"Munich, Bavaria"}, models.WorkModeUnknown},
		{[]string{"Remoteville"}, models.WorkModeUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyWorkMode(tt.texts...), tt.texts)
	}
}
