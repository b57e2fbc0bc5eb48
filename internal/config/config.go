package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/khrees2412/jobsift/pkg/models"
	"github.com/spf13/viper"
)

// QueryConfig is one configured search
type QueryConfig struct {
	Keywords string `mapstructure:"keywords"`
	Location string `mapstructure:"location"`
	WorkMode string `mapstructure:"work_mode"` // onsite, hybrid, remote or empty for any
}

// ProxyConfig holds per-scheme proxy URLs
type ProxyConfig struct {
	HTTP  string `mapstructure:"http"`
	HTTPS string `mapstructure:"https"`
}

// Config holds the application configuration
type Config struct {
	Queries            []QueryConfig `mapstructure:"queries"`
	TitleInclude       []string      `mapstructure:"title_include"`
	TitleExclude       []string      `mapstructure:"title_exclude"`
	CompanyExclude     []string      `mapstructure:"company_exclude"`
	DescriptionExclude []string      `mapstructure:"description_exclude"`
	Languages          []string      `mapstructure:"languages"`
	DateWindowDays     int           `mapstructure:"date_window_days"`
	UnknownWorkMode    string        `mapstructure:"unknown_work_mode"` // pass or reject

	PagesPerQuery         int    `mapstructure:"pages_per_query"`
	Rounds                int    `mapstructure:"rounds"`
	Timespan              string `mapstructure:"timespan"`
	RetentionDays         int    `mapstructure:"retention_days"`
	RejectedRetentionDays int    `mapstructure:"rejected_retention_days"`

	// Source transport
	Source            string            `mapstructure:"source"` // linkedin, browser, feed
	FeedURL           string            `mapstructure:"feed_url"`
	Proxy             ProxyConfig       `mapstructure:"proxy"`
	UserAgent         string            `mapstructure:"user_agent"`
	Headers           map[string]string `mapstructure:"headers"`
	RequestTimeout    time.Duration     `mapstructure:"request_timeout"`
	RequestDelay      time.Duration     `mapstructure:"request_delay"`
	MaxAttempts       int               `mapstructure:"max_attempts"`
	Backoff           time.Duration     `mapstructure:"backoff"`
	RateLimitCooldown time.Duration     `mapstructure:"rate_limit_cooldown"`
	MaxCooldowns      int               `mapstructure:"max_cooldowns"`
	FetchDescriptions bool              `mapstructure:"fetch_descriptions"`

	// Runtime
	DBPath   string `mapstructure:"db_path"`
	LogLevel string `mapstructure:"log_level"`
	Schedule string `mapstructure:"schedule"`
	Listen   string `mapstructure:"listen"`
	RedisURL string `mapstructure:"redis_url"`

	// AI collaborator
	AIProvider   string `mapstructure:"ai_provider"` // openai, anthropic, ollama
	DefaultModel string `mapstructure:"default_model"`
	OpenAIKey    string `mapstructure:"openai_key"`
	AnthropicKey string `mapstructure:"anthropic_key"`
	OllamaURL    string `mapstructure:"ollama_url"`
	ApplicantBio string `mapstructure:"applicant_bio"`
}

// FilterConfig is the per-round snapshot consumed by the filter chain.
// Callers get copies of every slice so a running round never sees edits.
type FilterConfig struct {
	TitleInclude       []string
	TitleExclude       []string
	CompanyExclude     []string
	DescriptionExclude []string
	Languages          []string
	DateWindowDays     int
	RejectUnknownMode  bool
}

const (
	UnknownModePass   = "pass"
	UnknownModeReject = "reject"
)

var (
	AppConfig *Config
	v         *viper.Viper
)

// Dir returns the directory holding config, .env and the database
func Dir() string {
	if dir := os.Getenv("JOBSIFT_HOME"); dir != "" {
		return dir
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".jobsift"
	}
	return filepath.Join(homeDir, ".jobsift")
}

// GetConfigPath returns the path to the config file
func GetConfigPath() string {
	if p := os.Getenv("JOBSIFT_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(Dir(), "config.yaml")
}

// Initialize loads or creates the configuration file
func Initialize() error {
	configFile := GetConfigPath()

	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err := createDefaultConfig(configFile); err != nil {
			return err
		}
	}

	// Secrets may live next to the config instead of in it
	for _, envFile := range []string{filepath.Join(Dir(), ".env"), ".env"} {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg, vp, err := load(configFile)
	if err != nil {
		return err
	}
	AppConfig = cfg
	v = vp
	return nil
}

// Load reads a config file without touching the package globals
func Load(path string) (*Config, error) {
	cfg, _, err := load(path)
	return cfg, err
}

func load(path string) (*Config, *viper.Viper, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.SetEnvPrefix("JOBSIFT")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()
	setDefaults(vp)

	if err := vp.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{}
	if err := vp.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(filepath.Dir(path), "jobsift.db")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, vp, nil
}

func setDefaults(vp *viper.Viper) {
	vp.SetDefault("title_include", []string{})
	vp.SetDefault("title_exclude", []string{})
	vp.SetDefault("company_exclude", []string{})
	vp.SetDefault("description_exclude", []string{})
	vp.SetDefault("languages", []string{})
	vp.SetDefault("date_window_days", 0)
	vp.SetDefault("unknown_work_mode", UnknownModePass)
	vp.SetDefault("pages_per_query", 10)
	vp.SetDefault("rounds", 1)
	vp.SetDefault("timespan", "r86400")
	vp.SetDefault("retention_days", 0)
	vp.SetDefault("rejected_retention_days", 0)
	vp.SetDefault("source", "linkedin")
	vp.SetDefault("user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	vp.SetDefault("request_timeout", "10s")
	vp.SetDefault("request_delay", "2s")
	vp.SetDefault("max_attempts", 3)
	vp.SetDefault("backoff", "1s")
	vp.SetDefault("rate_limit_cooldown", "60s")
	vp.SetDefault("max_cooldowns", 3)
	vp.SetDefault("fetch_descriptions", true)
	vp.SetDefault("log_level", "info")
	vp.SetDefault("schedule", "@every 6h")
	vp.SetDefault("listen", ":8080")
	vp.SetDefault("redis_url", "")
	vp.SetDefault("ai_provider", "ollama")
	vp.SetDefault("default_model", "llama3.2")
	vp.SetDefault("ollama_url", "http://localhost:11434")
	vp.SetDefault("openai_key", "")
	vp.SetDefault("anthropic_key", "")
	vp.SetDefault("applicant_bio", "")
}

// Validate rejects values the pipeline cannot run with
func (c *Config) Validate() error {
	if c.PagesPerQuery < 1 {
		return fmt.Errorf("pages_per_query must be at least 1, got %d", c.PagesPerQuery)
	}
	if c.Rounds < 1 {
		return fmt.Errorf("rounds must be at least 1, got %d", c.Rounds)
	}
	if c.DateWindowDays < 0 || c.RetentionDays < 0 || c.RejectedRetentionDays < 0 {
		return errors.New("day horizons cannot be negative")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	switch c.UnknownWorkMode {
	case UnknownModePass, UnknownModeReject:
	default:
		return fmt.Errorf("unknown_work_mode must be %q or %q, got %q", UnknownModePass, UnknownModeReject, c.UnknownWorkMode)
	}
	switch c.Source {
	case "linkedin", "browser":
	case "feed":
		if c.FeedURL == "" {
			return errors.New("feed_url is required when source is feed")
		}
	default:
		return fmt.Errorf("unsupported source: %s. Available: linkedin, browser, feed", c.Source)
	}
	for i, q := range c.Queries {
		if strings.TrimSpace(q.Keywords) == "" {
			return fmt.Errorf("queries[%d]: keywords are required", i)
		}
		if q.WorkMode != "" && q.WorkMode != "any" && models.ParseWorkMode(q.WorkMode) == models.WorkModeUnknown {
			return fmt.Errorf("queries[%d]: unsupported work_mode %q", i, q.WorkMode)
		}
	}
	return nil
}

// FilterConfig snapshots the filter settings for one round
func (c *Config) FilterConfig() FilterConfig {
	return FilterConfig{
		TitleInclude:       clone(c.TitleInclude),
		TitleExclude:       clone(c.TitleExclude),
		CompanyExclude:     clone(c.CompanyExclude),
		DescriptionExclude: clone(c.DescriptionExclude),
		Languages:          clone(c.Languages),
		DateWindowDays:     c.DateWindowDays,
		RejectUnknownMode:  c.UnknownWorkMode == UnknownModeReject,
	}
}

// SearchQueries converts the configured queries into pipeline queries
func (c *Config) SearchQueries() []models.Query {
	queries := make([]models.Query, 0, len(c.Queries))
	for _, q := range c.Queries {
		query := models.Query{
			Keywords: strings.TrimSpace(q.Keywords),
			Location: strings.TrimSpace(q.Location),
			Timespan: c.Timespan,
		}
		if q.WorkMode != "" && q.WorkMode != "any" {
			query.WorkMode = models.ParseWorkMode(q.WorkMode)
		}
		queries = append(queries, query)
	}
	return queries
}

func clone(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// createDefaultConfig creates a default config file
func createDefaultConfig(path string) error {
	defaultConfig := `# jobsift configuration
queries:
  - keywords: "golang developer"
    location: "Berlin"
    work_mode: ""        # onsite, hybrid, remote or empty for any

title_include: []
title_exclude: []
company_exclude: []
description_exclude: []
languages: []            # e.g. [en, de]
date_window_days: 0      # 0 disables the date filter
unknown_work_mode: pass  # pass or reject postings whose work mode is unknown

pages_per_query: 10
rounds: 1
retention_days: 0        # 0 disables retention
rejected_retention_days: 0

source: linkedin         # linkedin, browser, feed
proxy:
  http: ""
  https: ""
user_agent: ""
request_delay: 2s

# AI Provider: openai, anthropic, ollama
ai_provider: ollama
default_model: llama3.2
ollama_url: http://localhost:11434

# API Keys (keep this file secure, or put them in ~/.jobsift/.env)
openai_key: ""
anthropic_key: ""

# Background used when drafting cover letters
applicant_bio: ""
`
	return os.WriteFile(path, []byte(defaultConfig), 0600)
}

// Set updates a configuration value
func Set(key, value string) error {
	if v == nil {
		return errors.New("config not initialized")
	}
	v.Set(key, value)
	return v.WriteConfig()
}

// Get retrieves a configuration value
func Get(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}
