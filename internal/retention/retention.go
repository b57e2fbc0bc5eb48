// Package retention deletes postings nobody acted on once they age out.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Store is the persistence the sweeper needs
type Store interface {
	DeleteStaleUnapplied(ctx context.Context, cutoff time.Time) (int64, error)
	CompactRejected(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper removes stale postings. Applied postings are kept forever.
type Sweeper struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a sweeper
func New(store Store, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: store, logger: logger.With("component", "retention"), now: time.Now}
}

func (s *Sweeper) cutoff(days int) time.Time {
	return s.now().AddDate(0, 0, -days)
}

// Sweep deletes unapplied postings ingested more than horizonDays ago.
// A horizon of zero or less disables the sweep.
func (s *Sweeper) Sweep(ctx context.Context, horizonDays int) (int64, error) {
	if horizonDays <= 0 {
		return 0, nil
	}
	n, err := s.store.DeleteStaleUnapplied(ctx, s.cutoff(horizonDays))
	if err != nil {
		return 0, fmt.Errorf("sweep postings: %w", err)
	}
	s.logger.Info("retention sweep finished", "horizon_days", horizonDays, "deleted", n)
	return n, nil
}

// CompactRejected forgets rejected ids older than horizonDays so the
// filters see them again. Zero keeps them forever.
func (s *Sweeper) CompactRejected(ctx context.Context, horizonDays int) (int64, error) {
	if horizonDays <= 0 {
		return 0, nil
	}
	n, err := s.store.CompactRejected(ctx, s.cutoff(horizonDays))
	if err != nil {
		return 0, fmt.Errorf("compact rejected ids: %w", err)
	}
	s.logger.Info("rejected ids compacted", "horizon_days", horizonDays, "deleted", n)
	return n, nil
}

// Result reports what a full maintenance pass removed
type Result struct {
	Postings    int64 `json:"postings_deleted"`
	RejectedIDs int64 `json:"rejected_ids_deleted"`
}

// Run sweeps postings and then compacts rejected ids
func (s *Sweeper) Run(ctx context.Context, horizonDays, rejectedHorizonDays int) (Result, error) {
	var (
		res Result
		err error
	)
	if res.Postings, err = s.Sweep(ctx, horizonDays); err != nil {
		return res, err
	}
	if res.RejectedIDs, err = s.CompactRejected(ctx, rejectedHorizonDays); err != nil {
		return res, err
	}
	return res, nil
}
