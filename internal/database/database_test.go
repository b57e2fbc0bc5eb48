package database

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/khrees2412/jobsift/pkg/models"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestDB creates a temporary test database
func createTestDB(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	// Open with pragmas
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return New(db)
}

func testPosting(id string, ingested time.Time) *models.Posting {
	return &models.Posting{
		ExternalID:  id,
		Source:      "linkedin",
		Title:       "Software Engineer",
		Company:     "Acme Inc",
		Location:    "Remote",
		Description: "Build things",
		PostedAt:    ingested.Add(-24 * time.Hour),
		WorkMode:    models.WorkModeRemote,
		URL:         "https://www.linkedin.com/jobs/view/" + id + "/",
		IngestedAt:  ingested,
	}
}

func TestOpenRunsMigrations(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "nested", "jobsift.db"))
	require.NoError(t, err)
	defer store.Close()

	// second run must be a no-op
	require.NoError(t, RunMigrations(store.DB()))
}

func TestRecordAcceptedIsIdempotent(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()
	now := time.Now()

	p := testPosting("X123", now)
	inserted, err := store.RecordAccepted(ctx, p)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotZero(t, p.ID)

	again := testPosting("X123", now.Add(time.Hour))
	again.Title = "Changed"
	inserted, err = store.RecordAccepted(ctx, again)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := store.GetPostingByExternalID(ctx, "X123")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Software Engineer", got.Title)
	assert.True(t, got.IngestedAt.Equal(now.Truncate(time.Second)))
}

func TestIsKnown(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()

	_, err := store.RecordAccepted(ctx, testPosting("A1", time.Now()))
	require.NoError(t, err)
	_, err = store.RecordRejected(ctx, models.Rejection{ExternalID: "R1", Reason: models.ReasonTitleExclude, RejectedAt: time.Now()})
	require.NoError(t, err)

	tests := []struct {
		id   string
		want models.KnownState
	}{
		{"A1", models.Accepted},
		{"R1", models.RejectedBefore},
		{"nope", models.Unknown},
	}
	for _, tt := range tests {
		got, err := store.IsKnown(ctx, tt.id)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.id)
	}
}

func TestRecordRejectedNeverShadowsAccepted(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()

	_, err := store.RecordAccepted(ctx, testPosting("A1", time.Now()))
	require.NoError(t, err)

	inserted, err := store.RecordRejected(ctx, models.Rejection{ExternalID: "A1", Reason: models.ReasonLanguage, RejectedAt: time.Now()})
	require.NoError(t, err)
	assert.False(t, inserted)

	// repeat rejection is a no-op, not an error
	_, err = store.RecordRejected(ctx, models.Rejection{ExternalID: "R1", Reason: models.ReasonLanguage, RejectedAt: time.Now()})
	require.NoError(t, err)
	inserted, err = store.RecordRejected(ctx, models.Rejection{ExternalID: "R1", Reason: models.ReasonDateWindow, RejectedAt: time.Now()})
	require.NoError(t, err)
	assert.False(t, inserted)

	state, err := store.IsKnown(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, models.Accepted, state)
	assertDisjoint(t, store)
}

func TestAcceptingClearsEarlierRejection(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()

	_, err := store.RecordRejected(ctx, models.Rejection{ExternalID: "Z9", Reason: models.ReasonTitleInclude, RejectedAt: time.Now()})
	require.NoError(t, err)
	_, err = store.RecordAccepted(ctx, testPosting("Z9", time.Now()))
	require.NoError(t, err)

	state, err := store.IsKnown(ctx, "Z9")
	require.NoError(t, err)
	assert.Equal(t, models.Accepted, state)
	assertDisjoint(t, store)
}

func TestCommitPageIsAtomic(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()
	now := time.Now()

	res, err := store.CommitPage(ctx,
		[]*models.Posting{testPosting("P1", now), testPosting("P2", now), testPosting("P1", now)},
		[]models.Rejection{{ExternalID: "F1", Reason: models.ReasonCompanyExclude, RejectedAt: now}})
	require.NoError(t, err)
	assert.Equal(t, PageResult{Accepted: 2, Rejected: 1}, res)

	// a page whose commit fails leaves nothing behind
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = store.CommitPage(cancelled, []*models.Posting{testPosting("P3", now)},
		[]models.Rejection{{ExternalID: "F2", Reason: models.ReasonLanguage, RejectedAt: now}})
	require.Error(t, err)

	for _, id := range []string{"P3", "F2"} {
		state, err := store.IsKnown(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.Unknown, state, id)
	}
}

func TestSetStatus(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()
	p := testPosting("S1", time.Now())
	_, err := store.RecordAccepted(ctx, p)
	require.NoError(t, err)

	require.NoError(t, store.SetStatus(ctx, p.ID, models.FlagSaved, true))
	require.NoError(t, store.SetStatus(ctx, p.ID, models.FlagInterview, true))

	got, err := store.GetPosting(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Saved)
	assert.NotNil(t, got.SavedAt)
	assert.True(t, got.Interview)
	assert.False(t, got.Applied)
	assert.Nil(t, got.AppliedAt)

	require.NoError(t, store.SetStatus(ctx, p.ID, models.FlagSaved, false))
	got, err = store.GetPosting(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.Saved)
	assert.True(t, got.Interview)

	err = store.SetStatus(ctx, p.ID, models.StatusFlag("starred"), true)
	assert.True(t, errors.Is(err, ErrUnknownFlag))

	err = store.SetStatus(ctx, 9999, models.FlagSaved, true)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListPostingsHidesHidden(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()
	now := time.Now()

	visible := testPosting("V1", now)
	hidden := testPosting("H1", now)
	_, err := store.CommitPage(ctx, []*models.Posting{visible, hidden}, nil)
	require.NoError(t, err)
	require.NoError(t, store.SetStatus(ctx, hidden.ID, models.FlagHidden, true))

	list, err := store.ListPostings(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "V1", list[0].ExternalID)

	list, err = store.ListPostings(ctx, ListOptions{IncludeHidden: true})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = store.ListPostings(ctx, ListOptions{Flag: models.FlagHidden})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "H1", list[0].ExternalID)
}

func TestAttachCoverLetter(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()
	p := testPosting("C1", time.Now())
	_, err := store.RecordAccepted(ctx, p)
	require.NoError(t, err)

	require.NoError(t, store.AttachCoverLetter(ctx, p.ID, "Dear hiring manager"))
	got, err := store.GetPosting(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CoverLetter)
	assert.Equal(t, "Dear hiring manager", *got.CoverLetter)

	require.NoError(t, store.AttachCoverLetter(ctx, p.ID, ""))
	got, err = store.GetPosting(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CoverLetter)
}

func TestIngestedAtIsImmutable(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()
	p := testPosting("I1", time.Now())
	_, err := store.RecordAccepted(ctx, p)
	require.NoError(t, err)

	_, err = store.DB().ExecContext(ctx, `UPDATE postings SET ingested_at = ? WHERE id = ?`, time.Now().UTC(), p.ID)
	assert.Error(t, err)
}

func TestDeleteStaleUnappliedKeepsApplied(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()
	now := time.Now()
	old := now.AddDate(0, 0, -40)

	stale := testPosting("OLD", old)
	applied := testPosting("APPLIED", old)
	fresh := testPosting("NEW", now)
	_, err := store.CommitPage(ctx, []*models.Posting{stale, applied, fresh}, nil)
	require.NoError(t, err)
	require.NoError(t, store.SetStatus(ctx, applied.ID, models.FlagApplied, true))

	n, err := store.DeleteStaleUnapplied(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	for id, want := range map[string]models.KnownState{"OLD": models.Unknown, "APPLIED": models.Accepted, "NEW": models.Accepted} {
		got, err := store.IsKnown(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got, id)
	}
}

func TestCompactRejected(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()
	now := time.Now()

	_, err := store.CommitPage(ctx, nil, []models.Rejection{
		{ExternalID: "OLD", Reason: models.ReasonLanguage, RejectedAt: now.AddDate(0, 0, -100)},
		{ExternalID: "NEW", Reason: models.ReasonLanguage, RejectedAt: now},
	})
	require.NoError(t, err)

	n, err := store.CompactRejected(ctx, now.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	list, err := store.ListRejected(ctx, models.ReasonLanguage, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "NEW", list[0].ExternalID)
}

func TestStatsAndExport(t *testing.T) {
	store := createTestDB(t)
	ctx := context.Background()
	now := time.Now()

	p := testPosting("E1", now)
	_, err := store.CommitPage(ctx, []*models.Posting{p, testPosting("E2", now)},
		[]models.Rejection{{ExternalID: "F1", Title: "Clinical QA Manager", Reason: models.ReasonTitleExclude, RejectedAt: now}})
	require.NoError(t, err)
	require.NoError(t, store.SetStatus(ctx, p.ID, models.FlagApplied, true))

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 1, st.Applied)
	assert.Equal(t, 1, st.RejectedIDs)
	assert.Equal(t, 1, st.RejectedByReason[models.ReasonTitleExclude])
	assert.Equal(t, 2, st.BySource["linkedin"])

	var buf bytes.Buffer
	n, err := store.ExportPostingsCSV(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, "external_id", records[0][1])

	buf.Reset()
	n, err = store.ExportRejectedCSV(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, buf.String(), "titleExclude")
}

// assertDisjoint checks no id sits in both the accepted and the rejected table
func assertDisjoint(t *testing.T, store *Store) {
	t.Helper()
	var overlap int
	err := store.DB().QueryRow(`SELECT COUNT(*) FROM postings p
		JOIN rejected_postings r ON r.external_id = p.external_id`).Scan(&overlap)
	require.NoError(t, err)
	assert.Zero(t, overlap)
}

// BenchmarkCommitPage measures a 25 posting page commit
func BenchmarkCommitPage(b *testing.B) {
	dbPath := filepath.Join(b.TempDir(), "bench.db")
	store, err := Open(dbPath)
	if err != nil {
		b.Fatalf("failed to open db: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	now := time.Now()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		page := make([]*models.Posting, 0, 25)
		for j := 0; j < 25; j++ {
			page = append(page, testPosting(fmt.Sprintf("%d-%d", i, j), now))
		}
		if _, err := store.CommitPage(ctx, page, nil); err != nil {
			b.Fatalf("commit: %v", err)
		}
	}
}
