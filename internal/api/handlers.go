package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/khrees2412/jobsift/internal/database"
	"github.com/khrees2412/jobsift/internal/ingest"
	"github.com/khrees2412/jobsift/pkg/models"
)

func (s *Server) searchStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.rounds.Progress())
}

func (s *Server) executeSearch(c *gin.Context) {
	cfg := s.plan().Round
	if len(cfg.Queries) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no search queries configured"})
		return
	}

	err := s.rounds.Start(s.base, cfg, func(_ ingest.Summary, err error) {
		if err != nil {
			s.logger.Warn("background round ended with error", "error", err)
		}
	})
	if errors.Is(err, ingest.ErrRoundInProgress) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true, "message": "round started"})
}

func (s *Server) stopSearch(c *gin.Context) {
	if !s.rounds.Stop() {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "no round is running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "stop requested"})
}

func (s *Server) listPostings(c *gin.Context) {
	opts := database.ListOptions{
		IncludeHidden: c.Query("include_hidden") == "true",
		Source:        c.Query("source"),
		Search:        c.Query("q"),
	}
	if raw := c.Query("status"); raw != "" {
		flag, ok := models.ParseStatusFlag(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown status %q", raw)})
			return
		}
		opts.Flag = flag
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		opts.Limit = n
	}

	postings, err := s.store.ListPostings(c.Request.Context(), opts)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, postings)
}

func postingID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid posting id"})
		return 0, false
	}
	return id, true
}

func (s *Server) getPosting(c *gin.Context) {
	id, ok := postingID(c)
	if !ok {
		return
	}
	p, err := s.store.GetPosting(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type statusRequest struct {
	Flag  string `json:"flag" binding:"required"`
	Value *bool  `json:"value" binding:"required"`
}

func (s *Server) setStatus(c *gin.Context) {
	id, ok := postingID(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	flag, ok := models.ParseStatusFlag(req.Flag)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown status %q", req.Flag)})
		return
	}
	if err := s.store.SetStatus(c.Request.Context(), id, flag, *req.Value); err != nil {
		s.fail(c, err)
		return
	}
	p, err := s.store.GetPosting(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type coverLetterRequest struct {
	Text string `json:"text"`
}

func (s *Server) attachCoverLetter(c *gin.Context) {
	id, ok := postingID(c)
	if !ok {
		return
	}
	var req coverLetterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	if err := s.store.AttachCoverLetter(c.Request.Context(), id, req.Text); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) deletePosting(c *gin.Context) {
	id, ok := postingID(c)
	if !ok {
		return
	}
	if err := s.store.DeletePosting(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) exportPostings(c *gin.Context) {
	name := fmt.Sprintf("postings-%s.csv", time.Now().Format("20060102"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	if _, err := s.store.ExportPostingsCSV(c.Request.Context(), c.Writer); err != nil {
		s.logger.Error("export failed", "error", err)
		c.Status(http.StatusInternalServerError)
	}
}

func (s *Server) listRejected(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	rejected, err := s.store.ListRejected(c.Request.Context(), models.RejectReason(c.Query("reason")), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rejected)
}

func (s *Server) stats(c *gin.Context) {
	st, err := s.store.Stats(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) sweep(c *gin.Context) {
	cycle := s.plan()
	res, err := s.sweeper.Run(c.Request.Context(), cycle.RetentionDays, cycle.RejectedRetentionDays)
	if err != nil {
		s.fail(c, errors.Join(errors.New("sweep failed"), err))
		return
	}
	c.JSON(http.StatusOK, res)
}
