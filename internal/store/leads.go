package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"LeadCrawler/internal/fingerprint"
	"LeadCrawler/internal/kv"
	"LeadCrawler/internal/lead"
)

// BatchResult tallies a SaveMany call.
type BatchResult struct {
	Stored  int `json:"stored"`
	Updated int `json:"updated"`
	Errors  int `json:"errors"`
}

// Leads is the deduplicating lead store. Records are keyed by the
// fingerprint of their profile URL and merged on rewrite.
type Leads struct {
	kv   kv.Store
	opts options
	// mu serialises read-modify-write cycles within this process.
	mu sync.Mutex
}

// NewLeads returns a lead store over s.
func NewLeads(s kv.Store, opts ...Option) *Leads {
	return &Leads{kv: s, opts: buildOptions(opts)}
}

func (s *Leads) load(ctx context.Context) (map[string]lead.Lead, error) {
	m := make(map[string]lead.Lead)
	if _, err := readJSON(ctx, s.kv, KeyLeads, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func assignID(l *lead.Lead) {
	if l.ID != "" {
		return
	}
	if l.ProfileURL != "" {
		l.ID = fingerprint.Hash(l.ProfileURL)
		return
	}
	l.ID = uuid.NewString()
}

// SaveOne stores a single record and reports whether it was new. The
// record's scrapedAt is always set to now. Any failure is returned.
func (s *Leads) SaveOne(ctx context.Context, l lead.Lead) (bool, error) {
	if err := l.Validate(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.now()
	assignID(&l)
	l.ScrapedAt = lead.Millis(now)
	if s.opts.resetStatus {
		l.Status = lead.StatusNew
	}

	leads, err := s.load(ctx)
	if err != nil {
		s.opts.log.Error("store: failed to save lead", "id", l.ID, "error", err)
		return false, err
	}

	existing, found := leads[l.ID]
	if found {
		leads[l.ID] = lead.Merge(existing, l, now)
	} else {
		if l.Status == "" {
			l.Status = lead.StatusNew
		}
		leads[l.ID] = l
	}

	if err := writeJSON(ctx, s.kv, KeyLeads, leads); err != nil {
		s.opts.log.Error("store: failed to save lead", "id", l.ID, "error", err)
		return false, err
	}

	if found {
		s.opts.log.Info("store: updated existing lead", "id", l.ID)
		return false, nil
	}
	s.opts.log.Info("store: saved new lead", "id", l.ID)
	return true, nil
}

// SaveMany merges a batch with one read and one write. A record that fails
// validation is counted in Errors and skipped; a failure to read or write
// the collection is returned.
func (s *Leads) SaveMany(ctx context.Context, batch []lead.Lead) (BatchResult, error) {
	return s.saveMany(ctx, batch, false)
}

// Import merges records read back from a CSV export. Exported timestamps
// only keep whole seconds, so an imported scrapedAt that falls in the same
// second as the stored one keeps the stored, finer value.
func (s *Leads) Import(ctx context.Context, batch []lead.Lead) (BatchResult, error) {
	return s.saveMany(ctx, batch, true)
}

func (s *Leads) saveMany(ctx context.Context, batch []lead.Lead, secondPrecision bool) (BatchResult, error) {
	var res BatchResult

	s.mu.Lock()
	defer s.mu.Unlock()

	leads, err := s.load(ctx)
	if err != nil {
		s.opts.log.Error("store: failed to save batch", "error", err)
		return res, err
	}

	now := s.opts.now()
	for i, l := range batch {
		if err := l.Validate(); err != nil {
			s.opts.log.Warn("store: skipping invalid lead", "index", i, "error", err)
			res.Errors++
			continue
		}

		assignID(&l)
		if l.ScrapedAt == 0 {
			l.ScrapedAt = lead.Millis(now)
		}

		existing, found := leads[l.ID]
		if found && secondPrecision && sameSecond(l.ScrapedAt, existing.ScrapedAt) {
			l.ScrapedAt = existing.ScrapedAt
		}
		if l.Status == "" && (!found || s.opts.resetStatus) {
			l.Status = lead.StatusNew
		}

		if found {
			leads[l.ID] = lead.Merge(existing, l, now)
			res.Updated++
		} else {
			leads[l.ID] = l
			res.Stored++
		}
	}

	if err := writeJSON(ctx, s.kv, KeyLeads, leads); err != nil {
		s.opts.log.Error("store: failed to save batch", "error", err)
		return res, err
	}

	s.opts.log.Info("store: batch saved", "stored", res.Stored, "updated", res.Updated, "errors", res.Errors)
	return res, nil
}

func sameSecond(a, b int64) bool {
	return a/1000 == b/1000
}

// All returns every lead, newest first. On a read failure it logs and
// returns an empty slice with the error.
func (s *Leads) All(ctx context.Context) ([]lead.Lead, error) {
	leads, err := s.load(ctx)
	if err != nil {
		s.opts.log.Error("store: failed to get leads", "error", err)
		return []lead.Lead{}, err
	}

	out := make([]lead.Lead, 0, len(leads))
	for _, l := range leads {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b lead.Lead) int {
		if c := cmp.Compare(b.ScrapedAt, a.ScrapedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Get returns the lead with id.
func (s *Leads) Get(ctx context.Context, id string) (lead.Lead, error) {
	leads, err := s.load(ctx)
	if err != nil {
		return lead.Lead{}, err
	}
	l, ok := leads[id]
	if !ok {
		return lead.Lead{}, ErrNotFound
	}
	return l, nil
}

// UpdateStatus changes the status and, when notes is non-empty, the notes
// of a stored lead.
func (s *Leads) UpdateStatus(ctx context.Context, id string, status lead.Status, notes string) (lead.Lead, error) {
	if status == "" && notes == "" {
		return s.Get(ctx, id)
	}
	if !status.Valid() {
		return lead.Lead{}, lead.ErrInvalidStatus
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	leads, err := s.load(ctx)
	if err != nil {
		return lead.Lead{}, err
	}
	existing, ok := leads[id]
	if !ok {
		return lead.Lead{}, ErrNotFound
	}

	updated := lead.Merge(existing, lead.Lead{ID: id, Status: status, Notes: notes}, s.opts.now())
	leads[id] = updated
	if err := writeJSON(ctx, s.kv, KeyLeads, leads); err != nil {
		return lead.Lead{}, err
	}
	s.opts.log.Info("store: lead updated", "id", id, "status", string(updated.Status))
	return updated, nil
}

// Count returns the number of stored leads.
func (s *Leads) Count(ctx context.Context) (int, error) {
	leads, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(leads), nil
}

// ClearAll removes every lead.
func (s *Leads) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Remove(ctx, KeyLeads); err != nil {
		return err
	}
	s.opts.log.Info("store: all leads cleared")
	return nil
}
