package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/khrees2412/jobsift/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
queries:
  - keywords: "go developer"
    location: "Berlin"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.PagesPerQuery)
	assert.Equal(t, 1, cfg.Rounds)
	assert.Equal(t, 0, cfg.RetentionDays)
	assert.Equal(t, UnknownModePass, cfg.UnknownWorkMode)
	assert.Equal(t, 2*time.Second, cfg.RequestDelay)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Empty(t, cfg.TitleExclude)
	assert.Empty(t, cfg.Languages)
	assert.NotEmpty(t, cfg.UserAgent)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "jobsift.db"), cfg.DBPath)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
queries:
  - keywords: "data engineer"
    location: "Remote"
    work_mode: remote
  - keywords: "sre"
    work_mode: any
title_include: [engineer, developer]
title_exclude: ["clinical", "  "]
company_exclude: [acme]
description_exclude: [clearance]
languages: [en, de]
date_window_days: 7
unknown_work_mode: reject
pages_per_query: 3
rounds: 2
retention_days: 30
proxy:
  http: http://proxy:3128
  https: http://proxy:3128
user_agent: test-agent
headers:
  Accept-Language: en-US
rate_limit_cooldown: 5m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://proxy:3128", cfg.Proxy.HTTPS)
	assert.Equal(t, "test-agent", cfg.UserAgent)
	assert.Equal(t, 5*time.Minute, cfg.RateLimitCooldown)
	assert.Equal(t, "en-US", cfg.Headers["accept-language"])

	fc := cfg.FilterConfig()
	assert.Equal(t, []string{"clinical"}, fc.TitleExclude)
	assert.Equal(t, []string{"en", "de"}, fc.Languages)
	assert.Equal(t, 7, fc.DateWindowDays)
	assert.True(t, fc.RejectUnknownMode)

	queries := cfg.SearchQueries()
	require.Len(t, queries, 2)
	assert.Equal(t, models.WorkModeRemote, queries[0].WorkMode)
	assert.True(t, queries[0].Constrained())
	assert.False(t, queries[1].Constrained())
	assert.Equal(t, "r86400", queries[1].Timespan)
}

func TestFilterConfigIsASnapshot(t *testing.T) {
	cfg := &Config{TitleExclude: []string{"clinical"}}
	fc := cfg.FilterConfig()
	cfg.TitleExclude[0] = "changed"
	assert.Equal(t, []string{"clinical"}, fc.TitleExclude)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero pages", "pages_per_query: 0\n"},
		{"bad unknown mode", "unknown_work_mode: maybe\n"},
		{"bad source", "source: indeed\n"},
		{"feed without url", "source: feed\n"},
		{"query without keywords", "queries:\n  - location: Berlin\n"},
		{"bad work mode", "queries:\n  - keywords: go\n    work_mode: moon\n"},
		{"negative retention", "retention_days: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestInitializeCreatesDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("JOBSIFT_HOME", dir)
	t.Setenv("JOBSIFT_CONFIG", "")

	require.NoError(t, Initialize())
	assert.FileExists(t, filepath.Join(dir, "config.yaml"))
	require.NotNil(t, AppConfig)
	assert.Len(t, AppConfig.Queries, 1)

	require.NoError(t, Set("rounds", "4"))
	assert.Equal(t, "4", Get("rounds"))
}
