// Package lead defines the lead record produced by the extractor and kept
// by the lead store, plus the merge rule applied when a record is seen again.
package lead

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// SourceSearchResult tags leads extracted from a people search results page.
const SourceSearchResult = "search_result"

// DegreeUnknown is used when no connection degree marker was found.
const DegreeUnknown = "N/A"

// Status is the lifecycle tag of a lead. The zero value means "not set".
type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusConnected Status = "connected"
	StatusReplied   Status = "replied"
	StatusArchived  Status = "archived"
)

// ErrInvalidStatus is returned for a status outside the known set.
var ErrInvalidStatus = errors.New("invalid lead status")

// Valid reports whether s is a known status. The empty status is valid.
func (s Status) Valid() bool {
	switch s {
	case "", StatusNew, StatusContacted, StatusConnected, StatusReplied, StatusArchived:
		return true
	}
	return false
}

// ParseStatus validates a user supplied status string.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if s == "" || !st.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return st, nil
}

// Lead is one profile found on a results page. Timestamps are epoch
// milliseconds so stored documents stay compatible with the export format.
type Lead struct {
	ID               string `json:"id"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	FullName         string `json:"fullName"`
	Headline         string `json:"headline"`
	Company          string `json:"company"`
	Location         string `json:"location"`
	ProfileURL       string `json:"profileUrl"`
	ConnectionDegree string `json:"connectionDegree"`
	Source           string `json:"source"`
	ScrapedAt        int64  `json:"scrapedAt"`
	Status           Status `json:"status,omitempty"`
	Notes            string `json:"notes,omitempty"`
	UpdatedAt        int64  `json:"updatedAt,omitempty"`
}

// Validate checks the fields a store must not accept.
func (l Lead) Validate() error {
	if !l.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, l.Status)
	}
	if l.ProfileURL != "" {
		if _, err := url.Parse(l.ProfileURL); err != nil {
			return fmt.Errorf("invalid profile url: %w", err)
		}
	}
	return nil
}

// Millis converts t to epoch milliseconds.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// Merge folds incoming into existing and returns the result.
//
// Field precedence:
//
//	ID                        existing (both share it by construction)
//	every other field         incoming when non-zero, else existing
//	UpdatedAt                 always now
//
// A zero value in incoming means "not present", so a partial record such as
// {ID, Status: contacted} only changes the status.
// A field can therefore never be cleared through Merge; a re-scrape with a
// blank headline keeps the stored one.
func Merge(existing, incoming Lead, now time.Time) Lead {
	out := existing
	if out.ID == "" {
		out.ID = incoming.ID
	}

	pick(&out.FirstName, incoming.FirstName)
	pick(&out.LastName, incoming.LastName)
	pick(&out.FullName, incoming.FullName)
	pick(&out.Headline, incoming.Headline)
	pick(&out.Company, incoming.Company)
	pick(&out.Location, incoming.Location)
	pick(&out.ProfileURL, incoming.ProfileURL)
	pick(&out.ConnectionDegree, incoming.ConnectionDegree)
	pick(&out.Source, incoming.Source)
	pick(&out.Notes, incoming.Notes)
	if incoming.Status != "" {
		out.Status = incoming.Status
	}
	if incoming.ScrapedAt != 0 {
		out.ScrapedAt = incoming.ScrapedAt
	}

	out.UpdatedAt = Millis(now)
	return out
}

func pick(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
