// Package pipeline runs reveal, extract, save and count against a rendered
// results page and answers the typed requests of the host.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"LeadCrawler/internal/extract"
	"LeadCrawler/internal/lead"
	"LeadCrawler/internal/logger"
	"LeadCrawler/internal/metrics"
	"LeadCrawler/internal/reveal"
	"LeadCrawler/internal/store"
)

// Page is the rendered page a pipeline works on.
type Page interface {
	reveal.Page
	URL(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
}

// Error messages sent back to the host.
const (
	MsgUnsupportedPage = "Not a supported page for scraping"
	MsgBusy            = "a scrape is already running"
)

var (
	// ErrUnsupportedPage is returned by Run outside a search results page.
	ErrUnsupportedPage = errors.New(MsgUnsupportedPage)
	// ErrBusy is returned by Run while another run is in progress.
	ErrBusy = errors.New(MsgBusy)
)

// Human-like pauses around extraction.
var (
	scrapeDelay    = [2]time.Duration{500 * time.Millisecond, 1500 * time.Millisecond}
	postRevealWait = [2]time.Duration{1000 * time.Millisecond, 2000 * time.Millisecond}
)

// Deps are the collaborators of a Pipeline. Metrics and Logger are optional.
type Deps struct {
	Page      Page
	Extractor *extract.Extractor
	Revealer  *reveal.Revealer
	Leads     *store.Leads
	Daily     *store.Daily
	Metrics   *metrics.Metrics
	Logger    logger.Interface
}

// Pipeline orchestrates one page. Only one scrape runs at a time.
type Pipeline struct {
	deps   Deps
	log    logger.Interface
	reveal reveal.Options
	sleep  reveal.Sleeper
	delay  func(lo, hi time.Duration) time.Duration

	running sync.Mutex
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRevealOptions sets the reveal bounds used by SCRAPE_ALL_PAGES.
func WithRevealOptions(o reveal.Options) Option {
	return func(p *Pipeline) { p.reveal = o }
}

// WithSleeper replaces the wait function used for human-like pauses.
func WithSleeper(s reveal.Sleeper) Option {
	return func(p *Pipeline) { p.sleep = s }
}

// WithDelay replaces the random draw of human-like pauses.
func WithDelay(f func(lo, hi time.Duration) time.Duration) Option {
	return func(p *Pipeline) { p.delay = f }
}

// New returns a Pipeline.
func New(deps Deps, opts ...Option) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOp()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(nil)
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.New(extract.WithLogger(deps.Logger))
	}
	if deps.Revealer == nil {
		deps.Revealer = reveal.New(
			reveal.WithLogger(deps.Logger),
			reveal.WithRecordSelectors(deps.Extractor.ContainerSelectors()),
		)
	}

	p := &Pipeline{
		deps:   deps,
		log:    deps.Logger,
		reveal: reveal.Options{Strategy: reveal.StrategyGraduated},
		sleep:  reveal.Sleep,
		delay:  randomDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.reveal.Strategy == "" {
		p.reveal.Strategy = reveal.StrategyGraduated
	}
	return p
}

func randomDelay(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}

// Handle answers req. The boolean is false for unknown request types, which
// get no response at all.
func (p *Pipeline) Handle(ctx context.Context, req Request) (Response, bool) {
	if !req.Type.Known() {
		p.log.Debug("pipeline: ignoring unknown request", "type", string(req.Type))
		return Response{}, false
	}

	start := time.Now()
	var resp Response
	switch req.Type {
	case ScrapePage:
		resp = p.scrapeResponse(p.Run(ctx, false))
	case ScrapeAllPages:
		resp = p.scrapeResponse(p.Run(ctx, true))
	case GetPageStats:
		stats := p.PageStats(ctx)
		resp = Response{PageStats: &stats}
	case CheckDailyLimit:
		lim, err := p.deps.Daily.CheckLimit(ctx)
		if err != nil {
			p.log.Error("pipeline: failed to check daily limit", "error", err)
			lim = store.FallbackLimit
		}
		resp = Response{Limit: &lim}
	}

	outcome := metrics.OutcomeSuccess
	switch {
	case resp.Scrape != nil && resp.Scrape.Error == MsgBusy:
		outcome = metrics.OutcomeBusy
	case resp.Failed():
		outcome = metrics.OutcomeFailure
	}
	p.deps.Metrics.ObserveRequest(string(req.Type), outcome, time.Since(start))
	return resp, true
}

func (p *Pipeline) scrapeResponse(res ScrapeResult, err error) Response {
	if err != nil {
		return failure(err.Error())
	}
	return Response{Scrape: &res}
}

// Run scrapes the current page. With revealFirst it first scrolls the page
// to load every lazily rendered record.
func (p *Pipeline) Run(ctx context.Context, revealFirst bool) (ScrapeResult, error) {
	if !p.running.TryLock() {
		p.log.Warn("pipeline: rejecting concurrent run")
		return ScrapeResult{}, ErrBusy
	}
	defer p.running.Unlock()

	p.deps.Metrics.RunsInFlight.Inc()
	defer p.deps.Metrics.RunsInFlight.Dec()

	pageURL, err := p.deps.Page.URL(ctx)
	if err != nil {
		p.log.Error("pipeline: scrape request failed", "error", err)
		return ScrapeResult{}, err
	}
	if !extract.IsSearchResults(pageURL) {
		return ScrapeResult{}, ErrUnsupportedPage
	}

	var info *ScrollInfo
	if revealFirst {
		p.log.Info("pipeline: starting reveal and batch scrape", "url", pageURL)
		rr := p.deps.Revealer.Reveal(ctx, p.deps.Page, p.reveal)
		p.deps.Metrics.ObserveReveal(string(rr.Reason), rr.StepsTaken)
		if !rr.Success {
			return ScrapeResult{}, errors.New("Auto-scroll failed: " + rr.Error)
		}
		p.log.Info("pipeline: reveal loaded records", "records", rr.RecordsVisible, "steps", rr.StepsTaken)
		info = &ScrollInfo{ScrollCount: rr.StepsTaken, ProfilesLoaded: rr.RecordsVisible, Reason: rr.Reason}

		if err := p.pause(ctx, postRevealWait); err != nil {
			return ScrapeResult{}, err
		}
	} else if err := p.pause(ctx, scrapeDelay); err != nil {
		return ScrapeResult{}, err
	}

	html, err := p.deps.Page.HTML(ctx)
	if err != nil {
		p.log.Error("pipeline: scrape request failed", "error", err)
		return ScrapeResult{}, err
	}
	leads := p.deps.Extractor.ExtractHTML(html)
	p.deps.Metrics.LeadsExtractedTotal.Add(float64(len(leads)))

	saved, err := p.deps.Leads.SaveMany(ctx, leads)
	if err != nil {
		return ScrapeResult{}, err
	}
	p.deps.Metrics.ObserveSave(saved.Stored, saved.Updated, saved.Errors)

	if len(leads) > 0 {
		if _, err := p.deps.Daily.Increment(ctx, len(leads)); err != nil {
			p.log.Warn("pipeline: daily counter not updated", "error", err)
		}
	}
	today := p.deps.Daily.Today(ctx)

	if leads == nil {
		leads = []lead.Lead{}
	}
	return ScrapeResult{
		Success:    true,
		Count:      len(leads),
		Leads:      leads,
		Debug:      fmt.Sprintf("Found %d leads", len(leads)),
		DailyStats: &DailyStats{ScrapedToday: today.Count},
		Storage:    &saved,
		ScrollInfo: info,
	}, nil
}

// PageStats classifies the current page and counts its record containers.
func (p *Pipeline) PageStats(ctx context.Context) PageStats {
	stats := PageStats{PageType: extract.PageUnknown}

	pageURL, err := p.deps.Page.URL(ctx)
	if err != nil {
		p.log.Warn("pipeline: page stats unavailable", "error", err)
		return stats
	}

	stats.PageType = extract.PageType(pageURL)
	switch stats.PageType {
	case extract.PageSearchPeople:
		stats.ValidPage = true
		n, err := p.deps.Page.Count(ctx, p.deps.Extractor.ContainerSelectors())
		if err != nil {
			p.log.Warn("pipeline: container count failed", "error", err)
		}
		stats.ProfileCount = n
	case extract.PageProfile:
		stats.ValidPage = true
		stats.ProfileCount = 1
	}
	return stats
}

func (p *Pipeline) pause(ctx context.Context, window [2]time.Duration) error {
	d := p.delay(window[0], window[1])
	p.log.Debug("pipeline: human delay", "delay", d)
	return p.sleep(ctx, d)
}
