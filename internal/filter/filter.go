// Package filter decides whether a candidate posting is kept.
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/khrees2412/jobsift/internal/config"
	"github.com/khrees2412/jobsift/pkg/models"
)

// Verdict is the outcome of evaluating one candidate
type Verdict struct {
	Accepted bool
	Reason   models.RejectReason
	Detail   string
}

func accept() Verdict { return Verdict{Accepted: true} }

func reject(reason models.RejectReason, format string, args ...any) Verdict {
	return Verdict{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Chain evaluates the configured predicates in a fixed order and stops at
// the first failure. It is built once per round and never changes.
type Chain struct {
	titleInclude       []string
	titleExclude       []string
	companyExclude     []string
	descriptionExclude []string
	languages          map[string]bool
	dateWindow         time.Duration
	rejectUnknownMode  bool

	now func() time.Time
}

// New builds a chain from a filter snapshot
func New(cfg config.FilterConfig) *Chain {
	c := &Chain{
		titleInclude:       foldAll(cfg.TitleInclude),
		titleExclude:       foldAll(cfg.TitleExclude),
		companyExclude:     foldAll(cfg.CompanyExclude),
		descriptionExclude: foldAll(cfg.DescriptionExclude),
		rejectUnknownMode:  cfg.RejectUnknownMode,
		now:                time.Now,
	}
	if cfg.DateWindowDays > 0 {
		c.dateWindow = time.Duration(cfg.DateWindowDays) * 24 * time.Hour
	}
	if len(cfg.Languages) > 0 {
		c.languages = make(map[string]bool)
		for _, l := range cfg.Languages {
			for _, key := range languageKeys(l) {
				c.languages[key] = true
			}
		}
	}
	return c
}

// Evaluate runs every predicate against the candidate
func (c *Chain) Evaluate(cand models.Candidate, q models.Query) Verdict {
	fold := cases.Fold()
	title := fold.String(cand.Title)

	if len(c.titleInclude) > 0 {
		if _, ok := containsAny(title, c.titleInclude); !ok {
			return reject(models.ReasonTitleInclude, "title %q matches no include term", cand.Title)
		}
	}
	if term, ok := containsAny(title, c.titleExclude); ok {
		return reject(models.ReasonTitleExclude, "title contains %q", term)
	}
	if term, ok := containsAny(fold.String(cand.Company), c.companyExclude); ok {
		return reject(models.ReasonCompanyExclude, "company contains %q", term)
	}
	if term, ok := containsAny(fold.String(cand.Description), c.descriptionExclude); ok {
		return reject(models.ReasonDescriptionExclude, "description contains %q", term)
	}
	if v := c.checkLanguage(cand.Description); !v.Accepted {
		return v
	}
	if c.dateWindow > 0 && !cand.PostedAt.IsZero() && cand.PostedAt.Before(c.now().Add(-c.dateWindow)) {
		return reject(models.ReasonDateWindow, "posted %s is outside the window", cand.PostedAt.Format(time.DateOnly))
	}
	if v := c.checkWorkMode(cand.WorkMode, q); !v.Accepted {
		return v
	}
	return accept()
}

// checkLanguage passes text the detector is not confident about
func (c *Chain) checkLanguage(description string) Verdict {
	if len(c.languages) == 0 || strings.TrimSpace(description) == "" {
		return accept()
	}
	info := whatlanggo.Detect(description)
	if !info.IsReliable() || info.Lang < 0 {
		return accept()
	}
	if c.languages[info.Lang.Iso6391()] || c.languages[strings.ToLower(info.Lang.String())] {
		return accept()
	}
	return reject(models.ReasonLanguage, "detected %s", info.Lang.String())
}

func (c *Chain) checkWorkMode(mode models.WorkMode, q models.Query) Verdict {
	if !q.Constrained() {
		return accept()
	}
	if mode == "" || mode == models.WorkModeUnknown {
		if c.rejectUnknownMode {
			return reject(models.ReasonWorkMode, "work mode unknown, query wants %s", q.WorkMode)
		}
		return accept()
	}
	if mode != q.WorkMode {
		return reject(models.ReasonWorkMode, "work mode %s, query wants %s", mode, q.WorkMode)
	}
	return accept()
}

func containsAny(s string, terms []string) (string, bool) {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return t, true
		}
	}
	return "", false
}

func foldAll(terms []string) []string {
	fold := cases.Fold()
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, fold.String(t))
		}
	}
	return out
}

// languageKeys returns the lookup keys for an allow-list entry: the entry
// itself and, when it is a language tag, its two-letter base code.
func languageKeys(entry string) []string {
	entry = strings.ToLower(strings.TrimSpace(entry))
	if entry == "" {
		return nil
	}
	keys := []string{entry}
	if tag, err := language.Parse(entry); err == nil {
		base, _ := tag.Base()
		keys = append(keys, base.String())
	}
	return keys
}
