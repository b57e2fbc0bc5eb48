package cmd

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/khrees2412/jobsift/internal/ingest"
)

// progressPrinter redraws one status line per progress change and prints a
// permanent line whenever a query finishes or the round ends.
type progressPrinter struct {
	mu        sync.Mutex
	w         io.Writer
	lastQuery string
	lastRound int
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w}
}

// Publish implements ingest.Publisher
func (p *progressPrinter) Publish(_ context.Context, pr ingest.Progress) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch pr.State {
	case ingest.StateRunning:
		if pr.Query != p.lastQuery || pr.Round != p.lastRound {
			if p.lastQuery != "" {
				fmt.Fprintf(p.w, "\r\033[K✓ %s\n", p.lastQuery)
			}
			p.lastQuery, p.lastRound = pr.Query, pr.Round
		}
		fmt.Fprintf(p.w, "\r\033[K⏳ round %d/%d · query %d/%d %s · page %d/%d · %d new, %d filtered, %d seen",
			pr.Round, pr.Rounds, pr.QueryIndex, pr.Queries, pr.Query, pr.Page, pr.Pages,
			pr.Stats.Accepted, pr.Stats.Filtered, pr.Stats.Duplicate)
	case ingest.StateIdle:
		if p.lastQuery != "" {
			fmt.Fprintf(p.w, "\r\033[K✓ %s\n", p.lastQuery)
			p.lastQuery = ""
		}
	case ingest.StateAborted, ingest.StateError:
		fmt.Fprintf(p.w, "\r\033[K✗ %s: %s\n", pr.State, pr.Message)
		p.lastQuery = ""
	}
	return nil
}
