// Package server exposes the pipeline requests, the lead list and the CSV
// export over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"LeadCrawler/internal/export"
	"LeadCrawler/internal/lead"
	"LeadCrawler/internal/logger"
	"LeadCrawler/internal/pipeline"
	"LeadCrawler/internal/store"
)

// Dispatcher answers pipeline requests.
type Dispatcher interface {
	Handle(ctx context.Context, req pipeline.Request) (pipeline.Response, bool)
}

// LeadStore is the lead collection served by the API.
type LeadStore interface {
	All(ctx context.Context) ([]lead.Lead, error)
	UpdateStatus(ctx context.Context, id string, status lead.Status, notes string) (lead.Lead, error)
	ClearAll(ctx context.Context) error
}

// Counter reports the daily count.
type Counter interface {
	Today(ctx context.Context) store.Stats
	CheckLimit(ctx context.Context) (store.Limit, error)
}

// Handler holds the API handlers.
type Handler struct {
	pipe  Dispatcher
	leads LeadStore
	daily Counter
	log   logger.Interface
	now   func() time.Time

	exportDir string
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithExportDir enables the routes serving CSV files written to dir.
func WithExportDir(dir string) HandlerOption {
	return func(h *Handler) { h.exportDir = dir }
}

// NewHandler creates the API handlers.
func NewHandler(pipe Dispatcher, leads LeadStore, daily Counter, log logger.Interface, opts ...HandlerOption) *Handler {
	if log == nil {
		log = logger.NewNoOp()
	}
	h := &Handler{pipe: pipe, leads: leads, daily: daily, log: log, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleRequest handles POST /api/v1/requests.
func (h *Handler) HandleRequest(c *gin.Context) {
	var req pipeline.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, ok := h.pipe.Handle(c.Request.Context(), req)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown request type", "type": req.Type})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListLeads handles GET /api/v1/leads. It accepts optional status and limit
// query parameters.
func (h *Handler) ListLeads(c *gin.Context) {
	leads, err := h.leads.All(c.Request.Context())
	if err != nil {
		h.log.Error("server: list leads failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if raw := c.Query("status"); raw != "" {
		status, err := lead.ParseStatus(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filtered := leads[:0]
		for _, l := range leads {
			if l.Status == status {
				filtered = append(filtered, l)
			}
		}
		leads = filtered
	}

	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		if n > 0 && n < len(leads) {
			leads = leads[:n]
		}
	}

	c.JSON(http.StatusOK, gin.H{"leads": leads, "count": len(leads)})
}

// GetStats handles GET /api/v1/stats.
func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()
	lim, err := h.daily.CheckLimit(ctx)
	if err != nil {
		h.log.Warn("server: daily limit unavailable", "error", err)
		lim = store.FallbackLimit
	}
	c.JSON(http.StatusOK, gin.H{"today": h.daily.Today(ctx), "limit": lim})
}

// ExportCSV handles GET /api/v1/export.csv.
func (h *Handler) ExportCSV(c *gin.Context) {
	leads, err := h.leads.All(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", "attachment; filename="+export.FileName(h.now()))
	c.Status(http.StatusOK)
	if err := export.Write(c.Writer, leads); err != nil {
		h.log.Error("server: export failed", "error", err)
	}
}

// ClearLeads handles DELETE /api/v1/leads.
func (h *Handler) ClearLeads(c *gin.Context) {
	if err := h.leads.ClearAll(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

type updateLeadRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// UpdateLead handles PATCH /api/v1/leads/:id.
func (h *Handler) UpdateLead(c *gin.Context) {
	var req updateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.leads.UpdateStatus(c.Request.Context(), c.Param("id"), lead.Status(req.Status), req.Notes)
	switch {
	case errors.Is(err, lead.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, updated)
	}
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
