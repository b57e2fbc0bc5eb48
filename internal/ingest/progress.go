package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/khrees2412/jobsift/pkg/models"
)

// State is where the coordinator is in its lifecycle
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateError   State = "error"
	StateAborted State = "aborted"
)

// Progress is a point-in-time view of the current or last round
type Progress struct {
	RunID      string            `json:"run_id,omitempty"`
	State      State             `json:"state"`
	Round      int               `json:"round"`
	Rounds     int               `json:"rounds"`
	Query      string            `json:"query,omitempty"`
	QueryIndex int               `json:"query_index"`
	Queries    int               `json:"queries"`
	Page       int               `json:"page"`
	Pages      int               `json:"pages"`
	Stats      models.RoundStats `json:"stats"`
	Message    string            `json:"message,omitempty"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

// Publisher receives every progress change
type Publisher interface {
	Publish(ctx context.Context, p Progress) error
}

const publishTimeout = 2 * time.Second

// tracker holds the progress snapshot and fans changes out to the publisher
type tracker struct {
	mu        sync.Mutex
	current   Progress
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func newTracker(publisher Publisher, logger *slog.Logger, now func() time.Time) *tracker {
	return &tracker{
		current:   Progress{State: StateIdle, UpdatedAt: now()},
		publisher: publisher,
		logger:    logger,
		now:       now,
	}
}

func (t *tracker) snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// update applies fn under the lock and publishes the result
func (t *tracker) update(ctx context.Context, fn func(p *Progress)) {
	t.mu.Lock()
	fn(&t.current)
	t.current.UpdatedAt = t.now()
	snap := t.current
	t.mu.Unlock()

	if t.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := t.publisher.Publish(pubCtx, snap); err != nil {
		t.logger.Debug("progress publish failed", "error", err)
	}
}
