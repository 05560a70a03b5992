package server

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"LeadCrawler/internal/export"
)

const defaultPreviewRows = 50

func (h *Handler) latestExport(c *gin.Context) (string, bool) {
	if h.exportDir == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "exports are not enabled"})
		return "", false
	}
	path := export.Latest(h.exportDir)
	if path == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no export found"})
		return "", false
	}
	return path, true
}

// DownloadLatest handles GET /api/v1/exports/latest. It serves the newest
// file written by the scrape command.
func (h *Handler) DownloadLatest(c *gin.Context) {
	path, ok := h.latestExport(c)
	if !ok {
		return
	}
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.FileAttachment(path, filepath.Base(path))
}

// PreviewLatest handles GET /api/v1/exports/latest/preview. It returns the
// first rows of the newest export, 50 unless limit says otherwise.
func (h *Handler) PreviewLatest(c *gin.Context) {
	limit := defaultPreviewRows
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	path, ok := h.latestExport(c)
	if !ok {
		return
	}
	rows, err := export.ReadFile(path, limit)
	if err != nil {
		h.log.Error("server: reading export failed", "path", path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"file": filepath.Base(path), "rows": rows, "count": len(rows)})
}
