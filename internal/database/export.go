package database

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// ExportPostingsCSV writes every accepted posting, hidden ones included
func (s *Store) ExportPostingsCSV(ctx context.Context, w io.Writer) (int, error) {
	postings, err := s.ListPostings(ctx, ListOptions{IncludeHidden: true})
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	header := []string{"id", "external_id", "source", "title", "company", "location", "posted_at",
		"work_mode", "url", "saved", "applied", "interview", "rejected", "hidden", "ingested_at", "description"}
	if err := cw.Write(header); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range postings {
		record := []string{
			strconv.FormatInt(p.ID, 10), p.ExternalID, p.Source, p.Title, p.Company, p.Location,
			p.PostedAt.Format(time.DateOnly), string(p.WorkMode), p.URL,
			boolField(p.Saved), boolField(p.Applied), boolField(p.Interview), boolField(p.Rejected), boolField(p.Hidden),
			p.IngestedAt.Format(time.RFC3339), p.Description,
		}
		if err := cw.Write(record); err != nil {
			return 0, fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.Flush()
	return len(postings), cw.Error()
}

// ExportRejectedCSV writes the rejection bookkeeping table
func (s *Store) ExportRejectedCSV(ctx context.Context, w io.Writer) (int, error) {
	rejected, err := s.ListRejected(ctx, "", 0)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"external_id", "source", "title", "company", "url", "reason", "rejected_at"}); err != nil {
		return 0, fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rejected {
		if err := cw.Write([]string{r.ExternalID, r.Source, r.Title, r.Company, r.URL,
			string(r.Reason), r.RejectedAt.Format(time.RFC3339)}); err != nil {
			return 0, fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.Flush()
	return len(rejected), cw.Error()
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
