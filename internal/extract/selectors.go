package extract

import "github.com/PuerkitoBio/goquery"

// Selector chains are ordered most-stable first. The results page markup
// drifts over time, so each chain keeps the older layouts as fallbacks.
var (
	// ContainerSelectors locate one result card each.
	ContainerSelectors = []string{
		`div[role="listitem"]`,
		`.reusable-search__result-container`,
		`li.reusable-search__result-container`,
		`div.entity-result`,
	}

	// LinkSelectors locate the primary profile link inside a card.
	LinkSelectors = []string{
		`a[data-view-name="search-result-lockup-title"]`,
		`a[href*="/in/"]`,
	}

	// HeadlineSelectors are legacy class-based fallbacks for the headline.
	HeadlineSelectors = []string{
		`.entity-result__primary-subtitle`,
		`.entity-result__summary`,
	}

	// LocationSelectors are legacy class-based fallbacks for the location.
	LocationSelectors = []string{
		`.entity-result__secondary-subtitle`,
	}
)

// FirstMatch tries selectors in order against root and returns the matches
// of the first one that yields at least one element, plus that selector.
// An empty selector string means nothing matched.
func FirstMatch(root *goquery.Selection, selectors []string) (*goquery.Selection, string) {
	for _, sel := range selectors {
		if found := root.Find(sel); found.Length() > 0 {
			return found, sel
		}
	}
	return root.Slice(0, 0), ""
}

// FirstText returns the first non-empty trimmed text matched by the chain,
// scoped to root, or "". A selector whose element is blank falls through to
// the next one.
func FirstText(root *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		found := root.Find(sel)
		if found.Length() == 0 {
			continue
		}
		if text := cleanText(found.First().Text()); text != "" {
			return text
		}
	}
	return ""
}
