package models

import (
	"strings"
	"time"
)

// WorkMode is where the work happens
type WorkMode string

const (
	WorkModeOnsite  WorkMode = "onsite"
	WorkModeHybrid  WorkMode = "hybrid"
	WorkModeRemote  WorkMode = "remote"
	WorkModeUnknown WorkMode = "unknown"
)

// ParseWorkMode maps free text onto the closed set of work modes.
// Anything unrecognized becomes WorkModeUnknown.
func ParseWorkMode(s string) WorkMode {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.NewReplacer("-", "", "_", "", " ", "").Replace(v)
	switch v {
	case "onsite", "inoffice", "office", "1":
		return WorkModeOnsite
	case "hybrid", "3":
		return WorkModeHybrid
	case "remote", "wfh", "2":
		return WorkModeRemote
	default:
		return WorkModeUnknown
	}
}

// SourceCode returns the f_WT value used by the search feed, or "" for unknown
func (m WorkMode) SourceCode() string {
	switch m {
	case WorkModeOnsite:
		return "1"
	case WorkModeRemote:
		return "2"
	case WorkModeHybrid:
		return "3"
	default:
		return ""
	}
}

// Query describes one configured search
type Query struct {
	Keywords string   `json:"keywords"`
	Location string   `json:"location"`
	WorkMode WorkMode `json:"work_mode,omitempty"` // empty means no constraint
	Timespan string   `json:"timespan,omitempty"`
}

// Constrained reports whether the query asks for a specific work mode
func (q Query) Constrained() bool {
	return q.WorkMode != "" && q.WorkMode != WorkModeUnknown
}

func (q Query) String() string {
	s := q.Keywords
	if q.Location != "" {
		s += " @ " + q.Location
	}
	if q.Constrained() {
		s += " (" + string(q.WorkMode) + ")"
	}
	return s
}

// Candidate is a parsed posting that has not been deduplicated or filtered yet
type Candidate struct {
	ExternalID  string    `json:"external_id"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	PostedAt    time.Time `json:"posted_at"`
	WorkMode    WorkMode  `json:"work_mode"`
	URL         string    `json:"url"`
}

// Posting is an accepted job posting
type Posting struct {
	ID          int64      `json:"id"`
	ExternalID  string     `json:"external_id"`
	Source      string     `json:"source"`
	Title       string     `json:"title"`
	Company     string     `json:"company"`
	Location    string     `json:"location"`
	Description string     `json:"description"`
	PostedAt    time.Time  `json:"posted_at"`
	WorkMode    WorkMode   `json:"work_mode"`
	URL         string     `json:"url"`
	Saved       bool       `json:"saved"`
	SavedAt     *time.Time `json:"saved_at"`
	Applied     bool       `json:"applied"`
	AppliedAt   *time.Time `json:"applied_at"`
	Interview   bool       `json:"interview"`
	InterviewAt *time.Time `json:"interview_at"`
	Rejected    bool       `json:"rejected"`
	RejectedAt  *time.Time `json:"rejected_at"`
	Hidden      bool       `json:"hidden"`
	HiddenAt    *time.Time `json:"hidden_at"`
	CoverLetter *string    `json:"cover_letter"`
	IngestedAt  time.Time  `json:"ingested_at"`
}

// NewPosting builds an accepted posting from a candidate
func NewPosting(c Candidate, ingestedAt time.Time) *Posting {
	return &Posting{
		ExternalID:  c.ExternalID,
		Source:      c.Source,
		Title:       c.Title,
		Company:     c.Company,
		Location:    c.Location,
		Description: c.Description,
		PostedAt:    c.PostedAt,
		WorkMode:    c.WorkMode,
		URL:         c.URL,
		IngestedAt:  ingestedAt,
	}
}

// StatusFlag names one of the independent triage flags on a posting
type StatusFlag string

const (
	FlagSaved     StatusFlag = "saved"
	FlagApplied   StatusFlag = "applied"
	FlagInterview StatusFlag = "interview"
	FlagRejected  StatusFlag = "rejected"
	FlagHidden    StatusFlag = "hidden"
)

// StatusFlags lists every flag in display order
var StatusFlags = []StatusFlag{FlagSaved, FlagApplied, FlagInterview, FlagRejected, FlagHidden}

// ParseStatusFlag accepts a flag name case-insensitively
func ParseStatusFlag(s string) (StatusFlag, bool) {
	f := StatusFlag(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range StatusFlags {
		if f == known {
			return f, true
		}
	}
	return "", false
}

// RejectReason tags the filter predicate that rejected a candidate
type RejectReason string

const (
	ReasonTitleInclude       RejectReason = "titleInclude"
	ReasonTitleExclude       RejectReason = "titleExclude"
	ReasonCompanyExclude     RejectReason = "companyExclude"
	ReasonDescriptionExclude RejectReason = "descriptionExclude"
	ReasonLanguage           RejectReason = "language"
	ReasonDateWindow         RejectReason = "dateWindow"
	ReasonWorkMode           RejectReason = "workMode"
)

// Rejection is the bookkeeping record for a filtered candidate
type Rejection struct {
	ExternalID string       `json:"external_id"`
	Source     string       `json:"source"`
	Title      string       `json:"title"`
	Company    string       `json:"company"`
	URL        string       `json:"url"`
	Reason     RejectReason `json:"reason"`
	RejectedAt time.Time    `json:"rejected_at"`
}

// KnownState is what the dedup tables know about an external id
type KnownState int

const (
	Unknown KnownState = iota
	Accepted
	RejectedBefore
)

func (k KnownState) String() string {
	switch k {
	case Accepted:
		return "accepted"
	case RejectedBefore:
		return "rejected"
	default:
		return "unknown"
	}
}

// RoundStats are the counts surfaced while a round runs
type RoundStats struct {
	Fetched     int `json:"fetched"`
	Parsed      int `json:"parsed"`
	Skipped     int `json:"skipped"`
	Duplicate   int `json:"duplicate"`
	Filtered    int `json:"filtered"`
	Accepted    int `json:"accepted"`
	FailedPages int `json:"failed_pages"`
}

// Add accumulates another set of counts
func (s *RoundStats) Add(o RoundStats) {
	s.Fetched += o.Fetched
	s.Parsed += o.Parsed
	s.Skipped += o.Skipped
	s.Duplicate += o.Duplicate
	s.Filtered += o.Filtered
	s.Accepted += o.Accepted
	s.FailedPages += o.FailedPages
}
