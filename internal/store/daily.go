package store

import (
	"context"
	"sync"
	"time"

	"LeadCrawler/internal/kv"
)

// DateLayout is the calendar-day format of the daily counter, in UTC.
const DateLayout = "2006-01-02"

// Stats is the daily counter document.
type Stats struct {
	Date           string `json:"date"`
	Count          int    `json:"count"`
	LastScrapeTime *int64 `json:"lastScrapeTime"`
}

// Limit is the advisory view of today's count against the configured limit.
type Limit struct {
	CanScrape    bool `json:"canScrape"`
	Remaining    int  `json:"remaining"`
	Limit        int  `json:"limit"`
	ScrapedToday int  `json:"scrapedToday"`
}

// FallbackLimit is reported when the limit cannot be computed.
var FallbackLimit = Limit{
	CanScrape:    true,
	Remaining:    DefaultProfileVisitLimit,
	Limit:        DefaultProfileVisitLimit,
	ScrapedToday: 0,
}

// DateKey formats t as a counter date.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Daily counts records extracted per calendar day. A stored counter from an
// earlier day reads as zero; the reset is only persisted by the next
// increment.
type Daily struct {
	kv       kv.Store
	settings *SettingsStore
	opts     options
	mu       sync.Mutex
}

// NewDaily returns a daily counter over s. Limits are read from settings.
func NewDaily(s kv.Store, settings *SettingsStore, opts ...Option) *Daily {
	return &Daily{kv: s, settings: settings, opts: buildOptions(opts)}
}

func (d *Daily) today(ctx context.Context) (Stats, error) {
	date := DateKey(d.opts.now())
	var st Stats
	ok, err := readJSON(ctx, d.kv, KeyDailyStats, &st)
	if err != nil {
		return Stats{Date: date}, err
	}
	if !ok || st.Date != date {
		return Stats{Date: date}, nil
	}
	return st, nil
}

// Today returns today's counter. It never writes; read failures are logged
// and reported as a zero counter.
func (d *Daily) Today(ctx context.Context) Stats {
	st, err := d.today(ctx)
	if err != nil {
		d.opts.log.Error("store: failed to get today stats", "error", err)
	}
	return st
}

// Increment adds n to today's count and stamps lastScrapeTime.
func (d *Daily) Increment(ctx context.Context, n int) (Stats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	st, err := d.today(ctx)
	if err != nil {
		d.opts.log.Error("store: failed to increment today count", "error", err)
		return st, err
	}

	now := d.opts.now()
	ms := now.UnixMilli()
	st = Stats{Date: DateKey(now), Count: st.Count + n, LastScrapeTime: &ms}
	if err := writeJSON(ctx, d.kv, KeyDailyStats, st); err != nil {
		d.opts.log.Error("store: failed to increment today count", "error", err)
		return st, err
	}
	d.opts.log.Info("store: today's scrape count", "count", st.Count)
	return st, nil
}

// CheckLimit compares today's count with the profile visit limit. It is
// advisory; nothing in the crawler refuses work because of it.
func (d *Daily) CheckLimit(ctx context.Context) (Limit, error) {
	settings, err := d.settings.Get(ctx)
	if err != nil {
		return FallbackLimit, err
	}
	st, err := d.today(ctx)
	if err != nil {
		return FallbackLimit, err
	}

	limit := settings.ProfileVisitLimit()
	return Limit{
		CanScrape:    st.Count < limit,
		Remaining:    max(0, limit-st.Count),
		Limit:        limit,
		ScrapedToday: st.Count,
	}, nil
}
