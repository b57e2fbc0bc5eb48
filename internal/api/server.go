// Package api exposes round control and posting triage over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/khrees2412/jobsift/internal/database"
	"github.com/khrees2412/jobsift/internal/ingest"
	"github.com/khrees2412/jobsift/internal/scheduler"
)

// Rounds is the coordinator surface the API drives
type Rounds interface {
	scheduler.Rounds
	Start(ctx context.Context, cfg ingest.RoundConfig, done func(ingest.Summary, error)) error
	Stop() bool
	Progress() ingest.Progress
}

// Server holds the handler dependencies. Rounds started over HTTP run on
// the server's base context so they outlive the request.
type Server struct {
	base    context.Context
	rounds  Rounds
	store   *database.Store
	sweeper scheduler.Sweeper
	plan    func() scheduler.Cycle
	logger  *slog.Logger
}

// NewServer creates the API server
func NewServer(base context.Context, rounds Rounds, store *database.Store, sweeper scheduler.Sweeper, plan func() scheduler.Cycle, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		base:    base,
		rounds:  rounds,
		store:   store,
		sweeper: sweeper,
		plan:    plan,
		logger:  logger.With("component", "api"),
	}
}

// Router builds the gin engine
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(config))

	api := r.Group("/api/v1")
	{
		api.GET("/health", s.health)

		api.GET("/search/status", s.searchStatus)
		api.POST("/search/execute", s.executeSearch)
		api.POST("/search/stop", s.stopSearch)

		api.GET("/postings", s.listPostings)
		api.GET("/postings/export", s.exportPostings)
		api.GET("/postings/:id", s.getPosting)
		api.POST("/postings/:id/status", s.setStatus)
		api.PUT("/postings/:id/cover-letter", s.attachCoverLetter)
		api.DELETE("/postings/:id", s.deletePosting)

		api.GET("/rejected", s.listRejected)
		api.GET("/stats", s.stats)
		api.POST("/maintenance/sweep", s.sweep)
	}
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail maps store errors onto status codes
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, database.ErrUnknownFlag):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
