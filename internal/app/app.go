package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/khrees2412/jobsift/internal/ai"
	"github.com/khrees2412/jobsift/internal/config"
	"github.com/khrees2412/jobsift/internal/database"
	"github.com/khrees2412/jobsift/internal/events"
	"github.com/khrees2412/jobsift/internal/ingest"
	"github.com/khrees2412/jobsift/internal/parser"
	"github.com/khrees2412/jobsift/internal/retention"
	"github.com/khrees2412/jobsift/internal/scheduler"
	"github.com/khrees2412/jobsift/internal/source"
)

// App is the dependency container for the CLI application
type App struct {
	Config  *config.Config
	Store   *database.Store
	Logger  *slog.Logger
	Source  source.Client
	Parser  *parser.Parser
	Sweeper *retention.Sweeper

	// Redis is nil unless redis_url is configured
	Redis *redis.Client

	closers []func()
}

// NewApp initializes and returns a new App instance
func NewApp(ctx context.Context) (*App, error) {
	if err := config.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}
	return New(ctx, config.AppConfig, os.Stderr)
}

// New wires an App from an already loaded config. Logs go to logOut.
func New(ctx context.Context, cfg *config.Config, logOut io.Writer) (*App, error) {
	logger := NewLogger(cfg.LogLevel, logOut)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	store, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &App{
		Config:  cfg,
		Store:   store,
		Logger:  logger,
		Sweeper: retention.New(store, logger),
	}
	a.closers = append(a.closers, func() { store.Close() })

	sourceName, client, err := a.newSource()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Source = client
	a.Parser = parser.New(sourceName, logger)

	if cfg.RedisURL != "" {
		rdb, err := events.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.Redis = rdb
		a.closers = append(a.closers, func() { rdb.Close() })
	}
	return a, nil
}

func (a *App) newSource() (string, source.Client, error) {
	cfg := a.Config
	opts := source.Options{
		ProxyHTTP:  cfg.Proxy.HTTP,
		ProxyHTTPS: cfg.Proxy.HTTPS,
		UserAgent:  cfg.UserAgent,
		Headers:    cfg.Headers,
		Timeout:    cfg.RequestTimeout,
	}

	switch cfg.Source {
	case "browser":
		c := source.NewBrowserClient(opts, a.Logger)
		a.closers = append(a.closers, c.Close)
		return "linkedin", c, nil
	case "feed":
		c, err := source.NewFeedClient(cfg.FeedURL, opts)
		if err != nil {
			return "", nil, fmt.Errorf("failed to create feed client: %w", err)
		}
		return "feed", c, nil
	default:
		c, err := source.NewHTTPClient(opts)
		if err != nil {
			return "", nil, fmt.Errorf("failed to create http client: %w", err)
		}
		return "linkedin", c, nil
	}
}

// Coordinator builds an ingest coordinator. Progress goes to redis when it
// is configured and to every extra publisher.
func (a *App) Coordinator(extra ...ingest.Publisher) *ingest.Coordinator {
	opts := ingest.OptionsFromConfig(a.Config)
	pubs := events.Multi(extra)
	if a.Redis != nil {
		pubs = append(pubs, events.NewRedisPublisher(a.Redis))
	}
	if len(pubs) > 0 {
		opts.Publisher = pubs
	}
	return ingest.New(a.Source, a.Store, a.Parser, opts, a.Logger)
}

// Events returns the redis progress publisher, or nil without redis
func (a *App) Events() *events.RedisPublisher {
	if a.Redis == nil {
		return nil
	}
	return events.NewRedisPublisher(a.Redis)
}

// Plan snapshots what the next scheduled cycle should do
func (a *App) Plan() scheduler.Cycle {
	return scheduler.Cycle{
		Round:                 ingest.RoundConfigFromConfig(a.Config),
		RetentionDays:         a.Config.RetentionDays,
		RejectedRetentionDays: a.Config.RejectedRetentionDays,
	}
}

// Generator builds the cover letter client for the configured provider
func (a *App) Generator() (ai.Generator, error) {
	return ai.NewClient(a.Config)
}

// Close closes all resources, newest first
func (a *App) Close() error {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	return nil
}

// NewLogger creates the text logger used by every component
func NewLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
