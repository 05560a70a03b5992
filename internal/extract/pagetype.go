package extract

import "strings"

// Page types reported by the page-stats request.
const (
	PageSearchPeople = "search_people"
	PageProfile      = "profile"
	PageUnknown      = "unknown"
)

// IsSearchResults reports whether rawURL is a search results page.
func IsSearchResults(rawURL string) bool {
	return strings.Contains(rawURL, "/search/results/")
}

// PageType classifies rawURL.
func PageType(rawURL string) string {
	switch {
	case strings.Contains(rawURL, "/search/results/people"):
		return PageSearchPeople
	case strings.Contains(rawURL, "/in/"):
		return PageProfile
	default:
		return PageUnknown
	}
}
