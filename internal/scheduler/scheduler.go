// Package scheduler wires up the cron job that periodically runs a scraping
// round followed by a retention sweep.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/khrees2412/jobsift/internal/ingest"
	"github.com/khrees2412/jobsift/internal/retention"
)

// Rounds runs scraping rounds
type Rounds interface {
	Run(ctx context.Context, cfg ingest.RoundConfig) (ingest.Summary, error)
}

// Sweeper runs retention maintenance
type Sweeper interface {
	Run(ctx context.Context, horizonDays, rejectedHorizonDays int) (retention.Result, error)
}

// Cycle is what one tick does, re-read from config at every tick
type Cycle struct {
	Round                 ingest.RoundConfig
	RetentionDays         int
	RejectedRetentionDays int
}

// Scheduler wraps robfig/cron and manages the scrape loop.
type Scheduler struct {
	cron    *cron.Cron
	spec    string // cron spec, e.g. "@every 6h"
	rounds  Rounds
	sweeper Sweeper
	plan    func() Cycle
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// New creates a scheduler for the given cron spec
func New(spec string, rounds Rounds, sweeper Sweeper, plan func() Cycle, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger)),
		),
		spec:    spec,
		rounds:  rounds,
		sweeper: sweeper,
		plan:    plan,
		logger:  logger,
	}
}

// Start registers the job and starts the scheduler. Also runs one cycle
// immediately so the store is populated without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	// The startup run and the ticks share one skip guard.
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		s.runCycle(ctx)
	}))
	if _, err := s.cron.AddJob(s.spec, job); err != nil {
		return fmt.Errorf("schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("cron started", "spec", s.spec)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		job.Run()
	}()
	return nil
}

// Stop shuts the scheduler down and waits for a running cycle to return
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("cron stopped")
}

func (s *Scheduler) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := RunCycle(ctx, s.rounds, s.sweeper, s.plan(), s.logger); err != nil {
		s.logger.Warn("cycle ended with error", "error", err)
	}
}

// RunCycle runs one round and, unless another round was already running,
// the retention pass after it. An aborted round still gets its sweep.
func RunCycle(ctx context.Context, rounds Rounds, sweeper Sweeper, c Cycle, logger *slog.Logger) error {
	summary, err := rounds.Run(ctx, c.Round)
	if errors.Is(err, ingest.ErrRoundInProgress) {
		logger.Info("round already running, skipping tick")
		return nil
	}
	if err == nil {
		logger.Info("scheduled round finished", "run_id", summary.RunID, "accepted", summary.Stats.Accepted)
	}

	if ctx.Err() != nil {
		return err
	}
	res, sweepErr := sweeper.Run(ctx, c.RetentionDays, c.RejectedRetentionDays)
	if sweepErr != nil {
		return errors.Join(err, sweepErr)
	}
	logger.Info("maintenance finished", "postings_deleted", res.Postings, "rejected_ids_deleted", res.RejectedIDs)
	return err
}
