package pipeline

import (
	"encoding/json"

	"LeadCrawler/internal/lead"
	"LeadCrawler/internal/reveal"
	"LeadCrawler/internal/store"
)

// RequestType names a pipeline request.
type RequestType string

const (
	ScrapePage      RequestType = "SCRAPE_PAGE"
	ScrapeAllPages  RequestType = "SCRAPE_ALL_PAGES"
	GetPageStats    RequestType = "GET_PAGE_STATS"
	CheckDailyLimit RequestType = "CHECK_DAILY_LIMIT"
)

// Known reports whether t is a request the pipeline answers.
func (t RequestType) Known() bool {
	switch t {
	case ScrapePage, ScrapeAllPages, GetPageStats, CheckDailyLimit:
		return true
	}
	return false
}

// Request is an inbound message.
type Request struct {
	Type RequestType `json:"type"`
}

// DailyStats is the counter excerpt attached to scrape responses.
type DailyStats struct {
	ScrapedToday int `json:"scrapedToday"`
}

// ScrollInfo summarises the reveal run of a SCRAPE_ALL_PAGES request.
type ScrollInfo struct {
	ScrollCount    int           `json:"scrollCount"`
	ProfilesLoaded int           `json:"profilesLoaded"`
	Reason         reveal.Reason `json:"reason"`
}

// ScrapeResult answers SCRAPE_PAGE and SCRAPE_ALL_PAGES.
type ScrapeResult struct {
	Success    bool               `json:"success"`
	Error      string             `json:"error,omitempty"`
	Count      int                `json:"count"`
	Leads      []lead.Lead        `json:"leads,omitempty"`
	Debug      string             `json:"debug,omitempty"`
	DailyStats *DailyStats        `json:"dailyStats,omitempty"`
	Storage    *store.BatchResult `json:"storage,omitempty"`
	ScrollInfo *ScrollInfo        `json:"scrollInfo,omitempty"`
}

// PageStats answers GET_PAGE_STATS.
type PageStats struct {
	ValidPage    bool   `json:"validPage"`
	ProfileCount int    `json:"profileCount"`
	PageType     string `json:"pageType"`
}

// Response holds exactly one of the typed answers. It marshals as that
// answer alone.
type Response struct {
	Scrape    *ScrapeResult
	PageStats *PageStats
	Limit     *store.Limit
}

// MarshalJSON implements json.Marshaler.
func (r Response) MarshalJSON() ([]byte, error) {
	switch {
	case r.Scrape != nil:
		return json.Marshal(r.Scrape)
	case r.PageStats != nil:
		return json.Marshal(r.PageStats)
	case r.Limit != nil:
		return json.Marshal(r.Limit)
	}
	return []byte("null"), nil
}

// Failed reports whether the response is a failed scrape.
func (r Response) Failed() bool {
	return r.Scrape != nil && !r.Scrape.Success
}

func failure(msg string) Response {
	return Response{Scrape: &ScrapeResult{Success: false, Error: msg}}
}
