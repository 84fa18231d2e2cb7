package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Nilscreate/websitecrawltool/analyzer"
	"github.com/Nilscreate/websitecrawltool/audit"
	"github.com/Nilscreate/websitecrawltool/crawler"
	"github.com/Nilscreate/websitecrawltool/export"
	"github.com/Nilscreate/websitecrawltool/logging"
	"github.com/Nilscreate/websitecrawltool/middleware"
	"github.com/Nilscreate/websitecrawltool/stats"
)

const maxListingLimit = 100

// statusClientClosedRequest is recorded when the caller disconnects before
// the audit finishes
const statusClientClosedRequest = 499

// Auditor is the audit service as seen by the HTTP layer
type Auditor interface {
	Run(ctx context.Context, url string, limit int, progress func(audit.Event)) (*audit.Report, error)
	Get(ctx context.Context, id string) (*audit.Report, error)
	List(ctx context.Context, limit int) ([]audit.Listing, error)
	Analyze(url, html string) analyzer.PageAnalysis
}

// Handler serves the audit API
type Handler struct {
	audits   Auditor
	stats    *logging.Statistics
	usage    *stats.Storage
	maxLimit int
}

// New creates the API handler. usage may be nil.
func New(audits Auditor, statistics *logging.Statistics, usage *stats.Storage, maxLimit int) *Handler {
	return &Handler{
		audits:   audits,
		stats:    statistics,
		usage:    usage,
		maxLimit: maxLimit,
	}
}

// Register mounts every API route on r. limit guards the routes that start
// crawls.
func (h *Handler) Register(r gin.IRouter, limit gin.HandlerFunc) {
	api := r.Group("/api")
	{
		api.GET("/health", h.health)
		api.GET("/statistics", h.statistics)
		api.POST("/analyze", h.analyze)

		api.POST("/audit", limit, h.runAudit)
		api.GET("/audit/ws", limit, h.auditSocket)
		api.GET("/audits", h.listAudits)
		api.GET("/audit/:id", h.getAudit)
		api.GET("/audit/:id/csv", h.auditCSV)
		api.GET("/audit/:id/summary", h.auditSummary)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) statistics(c *gin.Context) {
	out := h.stats.Snapshot()
	if h.usage != nil {
		out["currentMonth"] = h.usage.CurrentStats()
	}
	c.JSON(http.StatusOK, out)
}

type analyzeRequest struct {
	URL  string `json:"url" binding:"required"`
	HTML string `json:"html"`
}

func (h *Handler) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request must include url and html"})
		return
	}
	c.JSON(http.StatusOK, h.audits.Analyze(req.URL, req.HTML))
}

type auditRequest struct {
	URL   string `json:"url" binding:"required"`
	Limit int    `json:"limit"`
}

// clampLimit bounds a requested page limit; 0 selects the service default
func (h *Handler) clampLimit(limit int) (int, error) {
	if limit < 0 {
		return 0, fmt.Errorf("limit must not be negative")
	}
	if h.maxLimit > 0 && limit > h.maxLimit {
		return h.maxLimit, nil
	}
	return limit, nil
}

func (h *Handler) runAudit(c *gin.Context) {
	var req auditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid URL provided"})
		return
	}
	c.Set(middleware.AuditTargetKey, req.URL)

	limit, err := h.clampLimit(req.Limit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r, err := h.audits.Run(c.Request.Context(), req.URL, limit, nil)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) listAudits(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > maxListingLimit {
		limit = maxListingLimit
	}

	listings, err := h.audits.List(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listings)
}

func (h *Handler) loadReport(c *gin.Context) (*audit.Report, bool) {
	r, err := h.audits.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return r, true
}

func (h *Handler) getAudit(c *gin.Context) {
	if r, ok := h.loadReport(c); ok {
		c.JSON(http.StatusOK, r)
	}
}

func (h *Handler) auditCSV(c *gin.Context) {
	r, ok := h.loadReport(c)
	if !ok {
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="seo-audit-%s.csv"`, r.ID))
	c.Data(http.StatusOK, export.CSVContentType, []byte(export.ToCSV(r.Rows)))
}

func (h *Handler) auditSummary(c *gin.Context) {
	r, ok := h.loadReport(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, export.TextContentType, []byte(export.ToSummaryText(r.Rows)))
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	var providerErr *crawler.ProviderError
	switch {
	case errors.Is(err, audit.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, audit.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, crawler.ErrNoPages):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case errors.Is(err, crawler.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, crawler.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, crawler.ErrJobFailed), errors.As(err, &providerErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == statusClientClosedRequest {
		logging.Log.Debug("Client went away", zap.String("path", c.FullPath()), zap.Error(err))
		c.AbortWithStatus(status)
		return
	}
	if status >= http.StatusInternalServerError {
		logging.Log.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
