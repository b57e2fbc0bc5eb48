package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/khrees2412/jobsift/pkg/models"
)

// IsKnown reports whether an external id was accepted or rejected before
func (s *Store) IsKnown(ctx context.Context, externalID string) (models.KnownState, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM postings WHERE external_id = ?`, externalID).Scan(&one)
	switch {
	case err == nil:
		return models.Accepted, nil
	case !errors.Is(err, sql.ErrNoRows):
		return models.Unknown, fmt.Errorf("check accepted %s: %w", externalID, err)
	}

	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM rejected_postings WHERE external_id = ?`, externalID).Scan(&one)
	switch {
	case err == nil:
		return models.RejectedBefore, nil
	case errors.Is(err, sql.ErrNoRows):
		return models.Unknown, nil
	default:
		return models.Unknown, fmt.Errorf("check rejected %s: %w", externalID, err)
	}
}

// RecordAccepted stores an accepted posting. Recording a known id is a no-op.
func (s *Store) RecordAccepted(ctx context.Context, p *models.Posting) (bool, error) {
	var inserted bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		inserted, err = insertPosting(ctx, tx, p)
		return err
	})
	return inserted, err
}

// RecordRejected remembers a filtered id. Ids that are already rejected or
// already accepted are left untouched.
func (s *Store) RecordRejected(ctx context.Context, r models.Rejection) (bool, error) {
	var inserted bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		inserted, err = insertRejection(ctx, tx, r)
		return err
	})
	return inserted, err
}

func insertRejection(ctx context.Context, tx *sql.Tx, r models.Rejection) (bool, error) {
	// rejected_postings_disjoint ignores ids present in postings
	result, err := tx.ExecContext(ctx, `INSERT INTO rejected_postings
		(external_id, source, title, company, url, reason, rejected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT(external_id) DO NOTHING`,
		r.ExternalID, r.Source, r.Title, r.Company, r.URL, string(r.Reason), stamp(r.RejectedAt))
	if err != nil {
		return false, fmt.Errorf("insert rejection %s: %w", r.ExternalID, err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// PageResult counts what a page commit actually wrote
type PageResult struct {
	Accepted int
	Rejected int
}

// CommitPage writes a page's accepted postings and rejection bookkeeping in
// one transaction. Either everything lands or nothing does.
func (s *Store) CommitPage(ctx context.Context, accepted []*models.Posting, rejected []models.Rejection) (PageResult, error) {
	var res PageResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res = PageResult{}
		for _, p := range accepted {
			ok, err := insertPosting(ctx, tx, p)
			if err != nil {
				return err
			}
			if ok {
				res.Accepted++
			}
		}
		for _, r := range rejected {
			ok, err := insertRejection(ctx, tx, r)
			if err != nil {
				return err
			}
			if ok {
				res.Rejected++
			}
		}
		return nil
	})
	if err != nil {
		for _, p := range accepted {
			p.ID = 0
		}
		return PageResult{}, err
	}
	return res, nil
}

// CompactRejected forgets rejected ids older than cutoff. Accepted postings
// are never touched.
func (s *Store) CompactRejected(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM rejected_postings WHERE rejected_at < ?`, stamp(cutoff))
	if err != nil {
		return 0, fmt.Errorf("compact rejected ids: %w", err)
	}
	return result.RowsAffected()
}

// ListRejected returns rejection records newest first
func (s *Store) ListRejected(ctx context.Context, reason models.RejectReason, limit int) ([]models.Rejection, error) {
	query := `SELECT external_id, source, title, company, url, reason, rejected_at FROM rejected_postings`
	var args []any
	if reason != "" {
		query += ` WHERE reason = ?`
		args = append(args, string(reason))
	}
	query += ` ORDER BY rejected_at DESC, external_id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rejected: %w", err)
	}
	defer rows.Close()

	out := []models.Rejection{}
	for rows.Next() {
		var (
			r      models.Rejection
			reason string
		)
		if err := rows.Scan(&r.ExternalID, &r.Source, &r.Title, &r.Company, &r.URL, &reason, &r.RejectedAt); err != nil {
			return nil, fmt.Errorf("scan rejection: %w", err)
		}
		r.Reason = models.RejectReason(reason)
		out = append(out, r)
	}
	return out, rows.Err()
}
