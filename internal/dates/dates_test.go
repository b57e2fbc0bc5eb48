package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	ref := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		raw  string
		want time.Time
		ok   bool
	}{
		{"1 day ago", ref.AddDate(0, 0, -1), true},
		{"2 weeks ago", ref.AddDate(0, 0, -14), true},
		{"3 days ago", ref.AddDate(0, 0, -3), true},
		{"  Posted 5 hours ago ", ref.Add(-5 * time.Hour), true},
		{"Reposted 1 week ago", ref.AddDate(0, 0, -7), true},
		{"an hour ago", ref.Add(-time.Hour), true},
		{"a month ago", ref.AddDate(0, -1, 0), true},
		{"30+ days ago", ref.AddDate(0, 0, -30), true},
		{"2 years ago", ref.AddDate(-2, 0, 0), true},
		{"10 minutes ago", ref.Add(-10 * time.Minute), true},
		{"Just now", ref, true},
		{"yesterday", ref.AddDate(0, 0, -1), true},
		{"2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"recently", ref, false},
		{"", ref, false},
		{"sometime ago", ref, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := Parse(tt.raw, ref)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
			assert.True(t, tt.want.Equal(Normalize(tt.raw, ref)))
		})
	}
}
