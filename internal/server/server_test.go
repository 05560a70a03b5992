package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LeadCrawler/internal/export"
	"LeadCrawler/internal/fingerprint"
	"LeadCrawler/internal/kv"
	"LeadCrawler/internal/lead"
	"LeadCrawler/internal/metrics"
	"LeadCrawler/internal/pipeline"
	"LeadCrawler/internal/server"
	"LeadCrawler/internal/store"
)

const resultsHTML = `<html><body><div role="list">
  <div role="listitem"><div>
    <p><a data-view-name="search-result-lockup-title" href="https://www.linkedin.com/in/jane-doe">Jane Doe</a> • 2nd</p>
    <p>Engineer at Acme, Inc</p>
    <p>Lisbon</p>
  </div></div>
  <div role="listitem"><div>
    <p><a data-view-name="search-result-lockup-title" href="https://www.linkedin.com/in/john-roe">John Roe</a> • 1st</p>
    <p>CTO | Widgets</p>
    <p>Austin</p>
  </div></div>
</div></body></html>`

type page struct{}

func (page) URL(context.Context) (string, error) {
	return "https://www.linkedin.com/search/results/people/?keywords=go", nil
}
func (page) HTML(context.Context) (string, error)         { return resultsHTML, nil }
func (page) VisibleText(context.Context) (string, error)  { return "", nil }
func (page) ScrollHeight(context.Context) (int64, error)  { return 0, nil }
func (page) ScrollTo(context.Context, int64) error        { return nil }
func (page) ScrollBy(context.Context, int64) error        { return nil }
func (page) Count(context.Context, []string) (int, error) { return 2, nil }

func setupTestRouter(t *testing.T, opts ...server.HandlerOption) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)

	backend := kv.NewMemory()
	leads := store.NewLeads(backend)
	daily := store.NewDaily(backend, store.NewSettings(backend))
	reg := prometheus.NewRegistry()

	pipe := pipeline.New(pipeline.Deps{
		Page:    page{},
		Leads:   leads,
		Daily:   daily,
		Metrics: metrics.New(reg),
	},
		pipeline.WithSleeper(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
	)

	return server.NewRouter(server.NewHandler(pipe, leads, daily, nil, opts...), reg, nil)
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}

	req, err := http.NewRequestWithContext(t.Context(), method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func scrape(t *testing.T, router http.Handler) {
	t.Helper()
	w := do(t, router, http.MethodPost, "/api/v1/requests", map[string]string{"type": "SCRAPE_PAGE"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestHandleRequest_Scrape(t *testing.T) {
	router := setupTestRouter(t)

	w := do(t, router, http.MethodPost, "/api/v1/requests", map[string]string{"type": "SCRAPE_PAGE"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success    bool `json:"success"`
		Count      int  `json:"count"`
		DailyStats struct {
			ScrapedToday int `json:"scrapedToday"`
		} `json:"dailyStats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, 2, resp.DailyStats.ScrapedToday)
}

func TestHandleRequest_PageStats(t *testing.T) {
	router := setupTestRouter(t)

	w := do(t, router, http.MethodPost, "/api/v1/requests", map[string]string{"type": "GET_PAGE_STATS"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"validPage":true,"profileCount":2,"pageType":"search_people"}`, w.Body.String())
}

func TestHandleRequest_BadInput(t *testing.T) {
	router := setupTestRouter(t)

	w := do(t, router, http.MethodPost, "/api/v1/requests", map[string]string{"type": "SEND_INVITES"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown request type")

	w = do(t, router, http.MethodPost, "/api/v1/requests", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListLeads(t *testing.T) {
	router := setupTestRouter(t)
	scrape(t, router)

	var body struct {
		Count int `json:"count"`
	}

	w := do(t, router, http.MethodGet, "/api/v1/leads", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)

	w = do(t, router, http.MethodGet, "/api/v1/leads?limit=1", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)

	w = do(t, router, http.MethodGet, "/api/v1/leads?status=contacted", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Zero(t, body.Count)

	w = do(t, router, http.MethodGet, "/api/v1/leads?status=pending", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodGet, "/api/v1/leads?limit=-2", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateLead(t *testing.T) {
	router := setupTestRouter(t)
	scrape(t, router)

	id := fingerprint.Hash("https://www.linkedin.com/in/jane-doe")

	w := do(t, router, http.MethodPatch, "/api/v1/leads/"+id, map[string]string{"status": "contacted", "notes": "intro sent"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"status":"contacted"`)
	assert.Contains(t, w.Body.String(), `"notes":"intro sent"`)

	w = do(t, router, http.MethodGet, "/api/v1/leads?status=contacted", nil)
	assert.Contains(t, w.Body.String(), `"count":1`)

	w = do(t, router, http.MethodPatch, "/api/v1/leads/"+id, map[string]string{"status": "ghosted"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPatch, "/api/v1/leads/unknown", map[string]string{"status": "archived"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClearLeads(t *testing.T) {
	router := setupTestRouter(t)
	scrape(t, router)

	w := do(t, router, http.MethodDelete, "/api/v1/leads", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, router, http.MethodGet, "/api/v1/leads", nil)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestExportCSV(t *testing.T) {
	router := setupTestRouter(t)
	scrape(t, router)

	w := do(t, router, http.MethodGet, "/api/v1/export.csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment; filename=leads_")

	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "\ufeffFirstName,LastName,"))
	assert.Contains(t, body, `"Engineer at Acme, Inc"`)
}

func TestStats(t *testing.T) {
	router := setupTestRouter(t)
	scrape(t, router)

	w := do(t, router, http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Today store.Stats `json:"today"`
		Limit store.Limit `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Today.Count)
	assert.Equal(t, store.Limit{CanScrape: true, Remaining: 98, Limit: 100, ScrapedToday: 2}, body.Limit)
}

func TestHealthAndMetrics(t *testing.T) {
	router := setupTestRouter(t)
	scrape(t, router)

	w := do(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `leadcrawler_pipeline_requests_total{outcome="success",type="SCRAPE_PAGE"} 1`)
	assert.Contains(t, w.Body.String(), "leadcrawler_pipeline_leads_extracted_total 2")
}

func TestLatestExport(t *testing.T) {
	dir := t.TempDir()
	router := setupTestRouter(t, server.WithExportDir(dir))

	w := do(t, router, http.MethodGet, "/api/v1/exports/latest", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	leads := []lead.Lead{
		{FirstName: "Jane", LastName: "Doe", ProfileURL: "https://www.linkedin.com/in/jane-doe"},
		{FirstName: "John", LastName: "Roe", ProfileURL: "https://www.linkedin.com/in/john-roe"},
	}
	_, err := export.WriteFile(dir, leads[:1], time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	_, err = export.WriteFile(dir, leads, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	w = do(t, router, http.MethodGet, "/api/v1/exports/latest", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "leads_20260302_090000.csv")
	assert.Contains(t, w.Body.String(), "john-roe")

	w = do(t, router, http.MethodGet, "/api/v1/exports/latest/preview?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var preview struct {
		File  string      `json:"file"`
		Rows  []lead.Lead `json:"rows"`
		Count int         `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &preview))
	assert.Equal(t, "leads_20260302_090000.csv", preview.File)
	assert.Equal(t, 1, preview.Count)
	assert.Equal(t, fingerprint.Hash("https://www.linkedin.com/in/jane-doe"), preview.Rows[0].ID)

	w = do(t, router, http.MethodGet, "/api/v1/exports/latest/preview?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLatestExport_Disabled(t *testing.T) {
	router := setupTestRouter(t)

	w := do(t, router, http.MethodGet, "/api/v1/exports/latest/preview", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not enabled")
}
