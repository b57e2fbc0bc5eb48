// Package ingest runs scraping rounds: it drives a source client across the
// configured queries and pages, filters and deduplicates what it finds and
// commits each page atomically.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/khrees2412/jobsift/internal/config"
	"github.com/khrees2412/jobsift/internal/database"
	"github.com/khrees2412/jobsift/internal/filter"
	"github.com/khrees2412/jobsift/internal/parser"
	"github.com/khrees2412/jobsift/internal/source"
	"github.com/khrees2412/jobsift/pkg/models"
)

var (
	// ErrRoundInProgress is returned when a round is requested while one is running
	ErrRoundInProgress = errors.New("a round is already in progress")
	// ErrAborted wraps the cause of a round that ended early
	ErrAborted = errors.New("round aborted")

	errPageFailed = errors.New("page failed")
)

// Store is the persistence the coordinator needs
type Store interface {
	IsKnown(ctx context.Context, externalID string) (models.KnownState, error)
	CommitPage(ctx context.Context, accepted []*models.Posting, rejected []models.Rejection) (database.PageResult, error)
}

// Options tune request pacing and retry behavior
type Options struct {
	RequestDelay time.Duration
	MaxAttempts  int
	Backoff      time.Duration
	Cooldown     time.Duration
	MaxCooldowns int
	Publisher    Publisher
}

// OptionsFromConfig maps the config file onto coordinator options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		RequestDelay: cfg.RequestDelay,
		MaxAttempts:  cfg.MaxAttempts,
		Backoff:      cfg.Backoff,
		Cooldown:     cfg.RateLimitCooldown,
		MaxCooldowns: cfg.MaxCooldowns,
	}
}

// RoundConfig is everything one round needs. It is read once at the start.
type RoundConfig struct {
	Queries           []models.Query
	Filter            config.FilterConfig
	Rounds            int
	PagesPerQuery     int
	FetchDescriptions bool
}

// RoundConfigFromConfig snapshots the round settings from the config file
func RoundConfigFromConfig(cfg *config.Config) RoundConfig {
	return RoundConfig{
		Queries:           cfg.SearchQueries(),
		Filter:            cfg.FilterConfig(),
		Rounds:            cfg.Rounds,
		PagesPerQuery:     cfg.PagesPerQuery,
		FetchDescriptions: cfg.FetchDescriptions,
	}
}

// Summary describes a finished round
type Summary struct {
	RunID      string            `json:"run_id"`
	Stats      models.RoundStats `json:"stats"`
	Aborted    bool              `json:"aborted"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// Coordinator runs one round at a time
type Coordinator struct {
	client  source.Client
	store   Store
	parser  *parser.Parser
	opts    Options
	limiter *rate.Limiter
	logger  *slog.Logger
	now     func() time.Time

	runMu    sync.Mutex
	cancelMu sync.Mutex
	cancel   context.CancelFunc
	progress *tracker
}

// New creates a coordinator
func New(client source.Client, store Store, p *parser.Parser, opts Options, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	limit := rate.Inf
	if opts.RequestDelay > 0 {
		limit = rate.Every(opts.RequestDelay)
	}
	logger = logger.With("component", "ingest")
	return &Coordinator{
		client:   client,
		store:    store,
		parser:   p,
		opts:     opts,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
		now:      time.Now,
		progress: newTracker(opts.Publisher, logger, time.Now),
	}
}

// Progress returns the current progress snapshot
func (c *Coordinator) Progress() Progress {
	return c.progress.snapshot()
}

// Stop cancels the running round. It returns false when nothing was running.
func (c *Coordinator) Stop() bool {
	c.cancelMu.Lock()
	defer c.cancelMu.Unlock()
	if c.cancel == nil {
		return false
	}
	c.cancel()
	return true
}

// round is the mutable state of one Run
type round struct {
	cfg   RoundConfig
	chain *filter.Chain
	stats models.RoundStats
	seen  map[string]bool
}

// Run executes cfg.Rounds passes over every query. Pages committed before an
// abort or cancellation stay committed.
func (c *Coordinator) Run(ctx context.Context, cfg RoundConfig) (Summary, error) {
	ctx, ok := c.acquire(ctx)
	if !ok {
		return Summary{}, ErrRoundInProgress
	}
	defer c.release()
	return c.run(ctx, cfg)
}

// Start runs a round in the background and calls done with its result. The
// run lock is taken before Start returns, so ErrRoundInProgress means
// nothing was started.
func (c *Coordinator) Start(ctx context.Context, cfg RoundConfig, done func(Summary, error)) error {
	ctx, ok := c.acquire(ctx)
	if !ok {
		return ErrRoundInProgress
	}
	go func() {
		summary, err := c.run(ctx, cfg)
		c.release()
		if done != nil {
			done(summary, err)
		}
	}()
	return nil
}

func (c *Coordinator) acquire(ctx context.Context) (context.Context, bool) {
	if !c.runMu.TryLock() {
		return nil, false
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancelMu.Lock()
	c.cancel = cancel
	c.cancelMu.Unlock()
	return ctx, true
}

func (c *Coordinator) release() {
	c.cancelMu.Lock()
	c.cancel()
	c.cancel = nil
	c.cancelMu.Unlock()
	c.runMu.Unlock()
}

func (c *Coordinator) run(ctx context.Context, cfg RoundConfig) (Summary, error) {
	if cfg.Rounds <= 0 {
		cfg.Rounds = 1
	}
	summary := Summary{RunID: uuid.NewString(), StartedAt: c.now()}
	r := &round{cfg: cfg, chain: filter.New(cfg.Filter)}

	c.progress.update(ctx, func(p *Progress) {
		started := summary.StartedAt
		*p = Progress{
			RunID:     summary.RunID,
			State:     StateRunning,
			Rounds:    cfg.Rounds,
			Queries:   len(cfg.Queries),
			Pages:     cfg.PagesPerQuery,
			Message:   "starting",
			StartedAt: &started,
		}
	})
	c.logger.Info("round started", "run_id", summary.RunID, "rounds", cfg.Rounds,
		"queries", len(cfg.Queries), "pages_per_query", cfg.PagesPerQuery)

	err := c.runRounds(ctx, r)
	if err == nil && ctx.Err() != nil {
		// A stop that lands on the final page is still a stop.
		err = fmt.Errorf("%w: %w", ErrAborted, ctx.Err())
	}

	summary.Stats = r.stats
	summary.FinishedAt = c.now()
	state, message := StateIdle, "completed"
	if err != nil {
		summary.Aborted = true
		state, message = StateAborted, err.Error()
		if !errors.Is(err, ErrAborted) {
			state = StateError
		}
	}
	c.progress.update(ctx, func(p *Progress) {
		finished := summary.FinishedAt
		p.State = state
		p.Message = message
		p.Stats = r.stats
		p.FinishedAt = &finished
	})

	logArgs := []any{"run_id", summary.RunID, "fetched", r.stats.Fetched, "parsed", r.stats.Parsed,
		"duplicate", r.stats.Duplicate, "filtered", r.stats.Filtered, "accepted", r.stats.Accepted,
		"failed_pages", r.stats.FailedPages}
	if err != nil {
		c.logger.Warn("round ended early", append(logArgs, "error", err)...)
		return summary, err
	}
	c.logger.Info("round finished", logArgs...)
	return summary, nil
}

func (c *Coordinator) runRounds(ctx context.Context, r *round) error {
	for n := 0; n < r.cfg.Rounds; n++ {
		r.seen = make(map[string]bool)
		for qi, q := range r.cfg.Queries {
			c.progress.update(ctx, func(p *Progress) {
				p.Round = n + 1
				p.Query = q.String()
				p.QueryIndex = qi + 1
				p.Page = 0
			})
			if err := c.runQuery(ctx, r, q); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Coordinator) runQuery(ctx context.Context, r *round, q models.Query) error {
	for page := 0; page < r.cfg.PagesPerQuery; page++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrAborted, err)
		}
		c.progress.update(ctx, func(p *Progress) {
			p.Page = page + 1
			p.Message = fmt.Sprintf("fetching page %d of %q", page+1, q.String())
		})

		fresh, err := c.runPage(ctx, r, q, page)
		switch {
		case errors.Is(err, errPageFailed):
			r.stats.FailedPages++
			c.logger.Warn("page failed", "query", q.String(), "page", page, "error", err)
			continue
		case err != nil:
			return err
		}
		if fresh == 0 {
			c.logger.Debug("no new postings, ending query", "query", q.String(), "page", page)
			return nil
		}
	}
	return nil
}

// runPage processes one page and returns how many candidates were new
func (c *Coordinator) runPage(ctx context.Context, r *round, q models.Query, page int) (int, error) {
	raw, err := c.fetchPage(ctx, q, page)
	if err != nil {
		return 0, err
	}
	r.stats.Fetched++

	// Cancellation is honored between pages, so a fetched page is always finished.
	pageCtx := context.WithoutCancel(ctx)

	candidates, skipped := c.parser.ParsePage(raw)
	pageSeen := make(map[string]bool, len(candidates))
	var (
		fresh      []models.Candidate
		duplicates int
	)
	for _, cand := range candidates {
		if r.seen[cand.ExternalID] || pageSeen[cand.ExternalID] {
			duplicates++
			continue
		}
		pageSeen[cand.ExternalID] = true

		state, err := c.store.IsKnown(pageCtx, cand.ExternalID)
		if err != nil {
			return 0, fmt.Errorf("%w: check %s: %w", errPageFailed, cand.ExternalID, err)
		}
		if state != models.Unknown {
			duplicates++
			continue
		}
		fresh = append(fresh, cand)
	}

	if r.cfg.FetchDescriptions {
		if err := c.fillDescriptions(pageCtx, fresh); err != nil {
			return 0, err
		}
	}

	now := c.now()
	var (
		accepted []*models.Posting
		rejected []models.Rejection
	)
	for _, cand := range fresh {
		v := r.chain.Evaluate(cand, q)
		if v.Accepted {
			accepted = append(accepted, models.NewPosting(cand, now))
			continue
		}
		c.logger.Debug("candidate filtered", "id", cand.ExternalID, "reason", v.Reason, "detail", v.Detail)
		rejected = append(rejected, models.Rejection{
			ExternalID: cand.ExternalID,
			Source:     cand.Source,
			Title:      cand.Title,
			Company:    cand.Company,
			URL:        cand.URL,
			Reason:     v.Reason,
			RejectedAt: now,
		})
	}

	res, err := c.commit(pageCtx, accepted, rejected)
	if err != nil {
		return 0, fmt.Errorf("%w: commit: %w", errPageFailed, err)
	}

	for id := range pageSeen {
		r.seen[id] = true
	}
	r.stats.Add(models.RoundStats{
		Parsed:    len(candidates),
		Skipped:   skipped,
		Duplicate: duplicates + (len(accepted) - res.Accepted),
		Filtered:  len(rejected),
		Accepted:  res.Accepted,
	})

	stats := r.stats
	c.progress.update(ctx, func(p *Progress) { p.Stats = stats })
	c.logger.Info("page committed", "query", q.String(), "page", page, "parsed", len(candidates),
		"new", len(fresh), "accepted", res.Accepted, "filtered", len(rejected))
	return len(fresh), nil
}

// commit writes the page, retrying once
func (c *Coordinator) commit(ctx context.Context, accepted []*models.Posting, rejected []models.Rejection) (database.PageResult, error) {
	res, err := c.store.CommitPage(ctx, accepted, rejected)
	if err == nil {
		return res, nil
	}
	c.logger.Warn("page commit failed, retrying", "error", err)
	return c.store.CommitPage(ctx, accepted, rejected)
}

// fetchPage applies the retry policy around one page fetch
func (c *Coordinator) fetchPage(ctx context.Context, q models.Query, page int) (*source.RawPage, error) {
	attempts, cooldowns := 0, 0
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAborted, err)
		}
		raw, err := c.client.FetchPage(ctx, q, page)
		if err == nil {
			return raw, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrAborted, ctx.Err())
		}

		switch source.KindOf(err) {
		case source.KindAuthBlocked:
			return nil, fmt.Errorf("%w: %w", ErrAborted, err)

		case source.KindRateLimited:
			cooldowns++
			if cooldowns > c.opts.MaxCooldowns {
				return nil, fmt.Errorf("%w: still rate limited after %d cooldowns: %w", errPageFailed, c.opts.MaxCooldowns, err)
			}
			wait := c.opts.Cooldown
			if ra := source.RetryAfterOf(err); ra > 0 {
				wait = ra
			}
			c.logger.Warn("rate limited, cooling down", "wait", wait, "cooldown", cooldowns)
			c.progress.update(ctx, func(p *Progress) {
				p.Message = fmt.Sprintf("rate limited, pausing %s", wait)
			})
			if err := sleep(ctx, wait); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrAborted, err)
			}

		default:
			attempts++
			if attempts >= c.opts.MaxAttempts {
				return nil, fmt.Errorf("%w: after %d attempts: %w", errPageFailed, attempts, err)
			}
			wait := c.opts.Backoff << (attempts - 1)
			c.logger.Debug("fetch failed, backing off", "attempt", attempts, "wait", wait, "error", err)
			if err := sleep(ctx, wait); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrAborted, err)
			}
		}
	}
}

// fillDescriptions loads detail pages for candidates that have no
// description yet. It runs under the page context, so a stop never leaves
// part of a page unfilled. Failures other than a block are ignored.
func (c *Coordinator) fillDescriptions(ctx context.Context, candidates []models.Candidate) error {
	fetcher, ok := c.client.(source.DescriptionFetcher)
	if !ok {
		return nil
	}
	for i := range candidates {
		if candidates[i].Description != "" || candidates[i].URL == "" {
			continue
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %w", errPageFailed, err)
		}
		raw, err := fetcher.FetchDescription(ctx, candidates[i].URL)
		if err != nil {
			if source.KindOf(err) == source.KindAuthBlocked {
				return fmt.Errorf("%w: %w", ErrAborted, err)
			}
			c.logger.Debug("description fetch failed", "id", candidates[i].ExternalID, "error", err)
			continue
		}
		candidates[i].Description = c.parser.ParseDescription(raw)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
