package cmd

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/khrees2412/jobsift/internal/app"
	"github.com/khrees2412/jobsift/internal/ingest"
	"github.com/khrees2412/jobsift/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressPrinter(&buf)
	ctx := context.Background()

	running := ingest.Progress{State: ingest.StateRunning, Round: 1, Rounds: 1, Query: "go @ Berlin", QueryIndex: 1, Queries: 2, Page: 1, Pages: 3}
	require.NoError(t, p.Publish(ctx, running))
	assert.Contains(t, buf.String(), "query 1/2 go @ Berlin · page 1/3")

	running.Query, running.QueryIndex = "rust @ Paris", 2
	require.NoError(t, p.Publish(ctx, running))
	assert.Contains(t, buf.String(), "✓ go @ Berlin\n")

	require.NoError(t, p.Publish(ctx, ingest.Progress{State: ingest.StateAborted, Message: "auth wall"}))
	assert.Contains(t, buf.String(), "✗ aborted: auth wall\n")
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "abc", "0", "-3"} {
		_, err := parseID(raw)
		assert.ErrorIs(t, err, app.ErrInvalidArgument, raw)
	}
}

func TestActiveFlags(t *testing.T) {
	now := time.Now()
	p := &models.Posting{Saved: true, SavedAt: &now, Applied: true, AppliedAt: &now, Hidden: false}
	assert.Equal(t, "saved, applied", activeFlags(p))
	assert.Empty(t, activeFlags(&models.Posting{}))
}
