package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/khrees2412/jobsift/pkg/models"
)

const postingColumns = `id, external_id, source, title, company, location, description,
	posted_at, work_mode, url, saved, saved_at, applied, applied_at, interview, interview_at,
	rejected, rejected_at, hidden, hidden_at, cover_letter, ingested_at`

// flagColumns whitelists the status columns that can be toggled
var flagColumns = map[models.StatusFlag][2]string{
	models.FlagSaved:     {"saved", "saved_at"},
	models.FlagApplied:   {"applied", "applied_at"},
	models.FlagInterview: {"interview", "interview_at"},
	models.FlagRejected:  {"rejected", "rejected_at"},
	models.FlagHidden:    {"hidden", "hidden_at"},
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosting(row rowScanner) (*models.Posting, error) {
	p := &models.Posting{}
	var (
		workMode                                              string
		savedAt, appliedAt, interviewAt, rejectedAt, hiddenAt sql.NullTime
		coverLetter                                           sql.NullString
	)
	err := row.Scan(&p.ID, &p.ExternalID, &p.Source, &p.Title, &p.Company, &p.Location,
		&p.Description, &p.PostedAt, &workMode, &p.URL,
		&p.Saved, &savedAt, &p.Applied, &appliedAt, &p.Interview, &interviewAt,
		&p.Rejected, &rejectedAt, &p.Hidden, &hiddenAt, &coverLetter, &p.IngestedAt)
	if err != nil {
		return nil, err
	}
	p.WorkMode = models.ParseWorkMode(workMode)
	p.SavedAt = nullTime(savedAt)
	p.AppliedAt = nullTime(appliedAt)
	p.InterviewAt = nullTime(interviewAt)
	p.RejectedAt = nullTime(rejectedAt)
	p.HiddenAt = nullTime(hiddenAt)
	if coverLetter.Valid {
		p.CoverLetter = &coverLetter.String
	}
	return p, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// insertPosting inserts p unless its external id is already accepted.
// Any earlier rejection of the same id is dropped so the tables stay disjoint.
func insertPosting(ctx context.Context, tx *sql.Tx, p *models.Posting) (bool, error) {
	query := `INSERT INTO postings (external_id, source, title, company, location, description,
			  posted_at, work_mode, url, ingested_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(external_id) DO NOTHING`
	result, err := tx.ExecContext(ctx, query, p.ExternalID, p.Source, p.Title, p.Company,
		p.Location, p.Description, stamp(p.PostedAt), string(p.WorkMode), p.URL, stamp(p.IngestedAt))
	if err != nil {
		return false, fmt.Errorf("insert posting %s: %w", p.ExternalID, err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return false, nil
	}
	id, _ := result.LastInsertId()
	p.ID = id

	if _, err := tx.ExecContext(ctx, `DELETE FROM rejected_postings WHERE external_id = ?`, p.ExternalID); err != nil {
		return false, fmt.Errorf("clear rejection %s: %w", p.ExternalID, err)
	}
	return true, nil
}

// GetPosting returns a posting by row id
func (s *Store) GetPosting(ctx context.Context, id int64) (*models.Posting, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postingColumns+` FROM postings WHERE id = ?`, id)
	p, err := scanPosting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("posting %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get posting %d: %w", id, err)
	}
	return p, nil
}

// GetPostingByExternalID returns nil, nil when the id is not accepted
func (s *Store) GetPostingByExternalID(ctx context.Context, externalID string) (*models.Posting, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postingColumns+` FROM postings WHERE external_id = ?`, externalID)
	p, err := scanPosting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get posting %s: %w", externalID, err)
	}
	return p, nil
}

// ListOptions narrows ListPostings
type ListOptions struct {
	IncludeHidden bool
	Flag          models.StatusFlag // only postings with this flag set
	Source        string
	Search        string // case-insensitive match on title or company
	Limit         int
}

// ListPostings returns postings newest first
func (s *Store) ListPostings(ctx context.Context, opts ListOptions) ([]*models.Posting, error) {
	var (
		where []string
		args  []any
	)
	if !opts.IncludeHidden && opts.Flag != models.FlagHidden {
		where = append(where, "hidden = 0")
	}
	if opts.Flag != "" {
		cols, ok := flagColumns[opts.Flag]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFlag, opts.Flag)
		}
		where = append(where, cols[0]+" = 1")
	}
	if opts.Source != "" {
		where = append(where, "source = ?")
		args = append(args, opts.Source)
	}
	if opts.Search != "" {
		where = append(where, "(title LIKE ? OR company LIKE ?)")
		like := "%" + opts.Search + "%"
		args = append(args, like, like)
	}

	query := `SELECT ` + postingColumns + ` FROM postings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list postings: %w", err)
	}
	defer rows.Close()

	postings := []*models.Posting{}
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan posting: %w", err)
		}
		postings = append(postings, p)
	}
	return postings, rows.Err()
}

// SetStatus toggles one status flag and stamps the time of the change
func (s *Store) SetStatus(ctx context.Context, id int64, flag models.StatusFlag, on bool) error {
	cols, ok := flagColumns[flag]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFlag, flag)
	}
	query := fmt.Sprintf(`UPDATE postings SET %s = ?, %s = ? WHERE id = ?`, cols[0], cols[1])
	result, err := s.db.ExecContext(ctx, query, on, stamp(s.now()), id)
	if err != nil {
		return fmt.Errorf("set %s on posting %d: %w", flag, id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("posting %d: %w", id, ErrNotFound)
	}
	return nil
}

// AttachCoverLetter stores generated text on a posting; empty text clears it
func (s *Store) AttachCoverLetter(ctx context.Context, id int64, text string) error {
	var value any
	if strings.TrimSpace(text) != "" {
		value = text
	}
	result, err := s.db.ExecContext(ctx, `UPDATE postings SET cover_letter = ? WHERE id = ?`, value, id)
	if err != nil {
		return fmt.Errorf("attach cover letter to posting %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("posting %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeletePosting removes a posting explicitly
func (s *Store) DeletePosting(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM postings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete posting %d: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("posting %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteStaleUnapplied removes postings never marked applied and ingested before cutoff
func (s *Store) DeleteStaleUnapplied(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM postings WHERE applied = 0 AND ingested_at < ?`, stamp(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete stale postings: %w", err)
	}
	return result.RowsAffected()
}

// Stats summarizes the store
type Stats struct {
	Total            int                         `json:"total"`
	Saved            int                         `json:"saved"`
	Applied          int                         `json:"applied"`
	Interview        int                         `json:"interview"`
	Rejected         int                         `json:"rejected"`
	Hidden           int                         `json:"hidden"`
	WithCoverLetter  int                         `json:"with_cover_letter"`
	RejectedIDs      int                         `json:"rejected_ids"`
	RejectedByReason map[models.RejectReason]int `json:"rejected_by_reason"`
	BySource         map[string]int              `json:"by_source"`
}

// Stats counts postings per flag, per source and rejected ids per reason
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		RejectedByReason: map[models.RejectReason]int{},
		BySource:         map[string]int{},
	}
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*),
		COALESCE(SUM(saved), 0), COALESCE(SUM(applied), 0), COALESCE(SUM(interview), 0),
		COALESCE(SUM(rejected), 0), COALESCE(SUM(hidden), 0),
		COALESCE(SUM(cover_letter IS NOT NULL), 0) FROM postings`).
		Scan(&st.Total, &st.Saved, &st.Applied, &st.Interview, &st.Rejected, &st.Hidden, &st.WithCoverLetter)
	if err != nil {
		return nil, fmt.Errorf("count postings: %w", err)
	}

	if err := s.groupCount(ctx, `SELECT source, COUNT(*) FROM postings GROUP BY source`, func(k string, n int) {
		st.BySource[k] = n
	}); err != nil {
		return nil, err
	}
	if err := s.groupCount(ctx, `SELECT reason, COUNT(*) FROM rejected_postings GROUP BY reason`, func(k string, n int) {
		st.RejectedByReason[models.RejectReason(k)] = n
		st.RejectedIDs += n
	}); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) groupCount(ctx context.Context, query string, fn func(string, int)) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("group count: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan group count: %w", err)
		}
		fn(key, n)
	}
	return rows.Err()
}
