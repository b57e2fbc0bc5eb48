// Package dates turns the posted-date strings found on job boards into
// absolute timestamps.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var relativePattern = regexp.MustCompile(`^(\d+|an?|one)\+?\s*(second|sec|minute|min|hour|hr|day|week|wk|month|mo|year|yr)s?\s+ago$`)

// Normalize resolves raw against ref and falls back to ref when the string
// cannot be understood. A posting is never dropped for its date.
func Normalize(raw string, ref time.Time) time.Time {
	t, _ := Parse(raw, ref)
	return t
}

// Parse resolves raw against ref. ok is false when the fallback was used.
func Parse(raw string, ref time.Time) (t time.Time, ok bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "posted ")
	s = strings.TrimPrefix(s, "reposted ")
	s = strings.Join(strings.Fields(s), " ")

	switch s {
	case "":
		return ref, false
	case "just now", "now", "today", "moments ago", "few seconds ago":
		return ref, true
	case "yesterday":
		return ref.AddDate(0, 0, -1), true
	}

	if m := relativePattern.FindStringSubmatch(s); m != nil {
		n := 1
		if v, err := strconv.Atoi(m[1]); err == nil {
			n = v
		}
		return shift(ref, n, m[2]), true
	}

	if abs, err := dateparse.ParseIn(strings.TrimSpace(raw), ref.Location()); err == nil {
		return abs, true
	}
	return ref, false
}

func shift(ref time.Time, n int, unit string) time.Time {
	switch unit {
	case "second", "sec":
		return ref.Add(-time.Duration(n) * time.Second)
	case "minute", "min":
		return ref.Add(-time.Duration(n) * time.Minute)
	case "hour", "hr":
		return ref.Add(-time.Duration(n) * time.Hour)
	case "day":
		return ref.AddDate(0, 0, -n)
	case "week", "wk":
		return ref.AddDate(0, 0, -7*n)
	case "month", "mo":
		return ref.AddDate(0, -n, 0)
	default:
		return ref.AddDate(-n, 0, 0)
	}
}
