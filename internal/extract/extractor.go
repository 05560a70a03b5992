// Package extract turns a rendered search results page into lead records.
//
// Extraction works on a goquery document built from the page's outer HTML.
// Containers are located through an ordered selector chain and every field
// has a positional heuristic backed by legacy class selectors, so a change
// in either structure or class names degrades one field instead of the
// whole batch. Extraction never fails: a broken card is logged and skipped.
package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"LeadCrawler/internal/fingerprint"
	"LeadCrawler/internal/lead"
	"LeadCrawler/internal/logger"
)

// DefaultBaseURL resolves relative profile links.
const DefaultBaseURL = "https://www.linkedin.com"

const (
	nonCanonicalMarker = "/miniprofile/"
	degreeSeparator    = "•"
	unknownFirstName   = "Unknown"
)

var degreePattern = regexp.MustCompile(`•\s*(\d+(?:st|nd|rd|th)\+?)`)

// Extractor extracts leads from result pages.
type Extractor struct {
	log   logger.Interface
	base  *url.URL
	now   func() time.Time
	chain []string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
func WithLogger(l logger.Interface) Option {
	return func(e *Extractor) { e.log = l }
}

// WithBaseURL sets the URL relative links are resolved against.
func WithBaseURL(raw string) Option {
	return func(e *Extractor) {
		if u, err := url.Parse(raw); err == nil && u.IsAbs() {
			e.base = u
		}
	}
}

// WithClock overrides the capture clock.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// WithContainerSelectors replaces the container selector chain.
func WithContainerSelectors(selectors []string) Option {
	return func(e *Extractor) {
		if len(selectors) > 0 {
			e.chain = selectors
		}
	}
}

// New returns an Extractor.
func New(opts ...Option) *Extractor {
	base, _ := url.Parse(DefaultBaseURL)
	e := &Extractor{
		log:   logger.NewNoOp(),
		base:  base,
		now:   time.Now,
		chain: ContainerSelectors,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractHTML parses html and extracts every lead on it.
func (e *Extractor) ExtractHTML(html string) []lead.Lead {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		e.log.Error("extract: parse page", "error", err)
		return nil
	}
	return e.Extract(doc.Selection)
}

// Extract returns the leads found below root.
func (e *Extractor) Extract(root *goquery.Selection) (leads []lead.Lead) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("extract: critical failure during scrape", "panic", fmt.Sprint(r))
			leads = nil
		}
	}()

	cards, sel := FirstMatch(root, e.chain)
	if sel == "" {
		e.log.Warn("extract: no profile cards found, page structure may have changed")
		return nil
	}
	e.log.Info("extract: found cards", "count", cards.Length(), "selector", sel)

	scrapedAt := lead.Millis(e.now())
	leads = make([]lead.Lead, 0, cards.Length())
	cards.Each(func(i int, card *goquery.Selection) {
		l, ok := e.extractCard(i, card, scrapedAt)
		if ok {
			leads = append(leads, l)
		}
	})

	e.log.Info("extract: scraped leads", "count", len(leads))
	return leads
}

// CountContainers reports how many cards the container chain resolves.
func (e *Extractor) CountContainers(root *goquery.Selection) int {
	cards, _ := FirstMatch(root, e.chain)
	return cards.Length()
}

// ContainerSelectors returns the chain in use.
func (e *Extractor) ContainerSelectors() []string {
	return e.chain
}

func (e *Extractor) extractCard(i int, card *goquery.Selection, scrapedAt int64) (l lead.Lead, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("extract: error scraping card", "index", i, "panic", fmt.Sprint(r))
			ok = false
		}
	}()

	link, _ := FirstMatch(card, LinkSelectors)
	if link.Length() == 0 {
		e.log.Warn("extract: no profile link found in card", "index", i)
		return lead.Lead{}, false
	}
	link = link.First()

	href, _ := link.Attr("href")
	profileURL := e.canonicalURL(href)
	if profileURL == "" || strings.Contains(profileURL, nonCanonicalMarker) {
		return lead.Lead{}, false
	}

	name := DisplayName(link.Text())
	if name == "" {
		e.log.Warn("extract: empty name found, skipping card", "index", i)
		return lead.Lead{}, false
	}
	first, last := SplitName(name)

	headline, location := positionalFields(link)
	if headline == "" {
		headline = FirstText(card, HeadlineSelectors)
	}
	if location == "" {
		location = FirstText(card, LocationSelectors)
	}

	return lead.Lead{
		ID:               fingerprint.Hash(profileURL),
		FirstName:        first,
		LastName:         last,
		FullName:         name,
		Headline:         headline,
		Company:          CompanyFromHeadline(headline),
		Location:         location,
		ProfileURL:       profileURL,
		ConnectionDegree: connectionDegree(link),
		Source:           lead.SourceSearchResult,
		ScrapedAt:        scrapedAt,
	}, true
}

// canonicalURL resolves href against the base URL and strips the query.
func (e *Extractor) canonicalURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if ref, err := url.Parse(href); err == nil && !ref.IsAbs() && e.base != nil {
		href = e.base.ResolveReference(ref).String()
	}
	return CanonicalURL(href)
}

// CanonicalURL strips the query string from raw.
func CanonicalURL(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	return raw
}

// DisplayName cuts the link text at the degree separator and collapses
// whitespace runs.
func DisplayName(text string) string {
	if i := strings.Index(text, degreeSeparator); i >= 0 {
		text = text[:i]
	}
	return strings.Join(strings.Fields(text), " ")
}

// SplitName splits a normalized name into its first token and the rest.
func SplitName(name string) (first, last string) {
	parts := strings.Split(name, " ")
	first = parts[0]
	if first == "" {
		first = unknownFirstName
	}
	if len(parts) > 1 {
		last = strings.Join(parts[1:], " ")
	}
	return first, last
}

// CompanyFromHeadline derives a company from "Role at Company" or
// "Role | Company" headlines.
func CompanyFromHeadline(headline string) string {
	for _, sep := range []string{" at ", " | "} {
		if i := strings.LastIndex(headline, sep); i >= 0 {
			return strings.TrimSpace(headline[i+len(sep):])
		}
	}
	return ""
}

func connectionDegree(link *goquery.Selection) string {
	p := link.Closest("p")
	if p.Length() == 0 {
		return lead.DegreeUnknown
	}
	if m := degreePattern.FindStringSubmatch(p.Text()); m != nil {
		return m[1]
	}
	return lead.DegreeUnknown
}

// positionalFields reads the paragraphs of the block enclosing the link:
// the title paragraph comes first, then headline, then location.
func positionalFields(link *goquery.Selection) (headline, location string) {
	block := link.Closest("div")
	if block.Length() == 0 {
		return "", ""
	}
	paragraphs := block.Find("p")
	if paragraphs.Length() >= 2 {
		headline = cleanText(paragraphs.Eq(1).Text())
	}
	if paragraphs.Length() >= 3 {
		location = cleanText(paragraphs.Eq(2).Text())
	}
	return headline, location
}

func cleanText(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
}
