// Package export writes leads as a spreadsheet-friendly CSV file and reads
// such files back.
package export

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"LeadCrawler/internal/fingerprint"
	"LeadCrawler/internal/lead"
)

// TimeLayout formats ScrapedAt, in UTC.
const TimeLayout = "2006-01-02 15:04:05"

// filePrefix names exported files: leads_<timestamp>.csv.
const filePrefix = "leads_"

// Header is the column order of an export.
var Header = []string{
	"FirstName",
	"LastName",
	"Headline",
	"Company",
	"Location",
	"ProfileURL",
	"Status",
	"ConnectionDeg",
	"ScrapedAt",
	"Notes",
}

var bom = []byte{0xEF, 0xBB, 0xBF}

// ErrMissingHeader is returned by Read when the input has no header row.
var ErrMissingHeader = errors.New("export: missing header row")

// Write encodes leads to w with a UTF-8 byte order mark so spreadsheet
// tools pick the right encoding.
func Write(w io.Writer, leads []lead.Lead) error {
	if _, err := w.Write(bom); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, l := range leads {
		if err := cw.Write(record(l)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func record(l lead.Lead) []string {
	status := l.Status
	if status == "" {
		status = lead.StatusNew
	}
	scraped := ""
	if l.ScrapedAt > 0 {
		scraped = time.UnixMilli(l.ScrapedAt).UTC().Format(TimeLayout)
	}
	return []string{
		l.FirstName,
		l.LastName,
		l.Headline,
		l.Company,
		l.Location,
		l.ProfileURL,
		string(status),
		l.ConnectionDegree,
		scraped,
		l.Notes,
	}
}

// FileName returns the export file name for a run at now.
func FileName(now time.Time) string {
	return fmt.Sprintf("%s%s.csv", filePrefix, now.Format("20060102_150405"))
}

// WriteFile writes leads to a new file in dir and returns its path.
func WriteFile(dir string, leads []lead.Lead, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("export: create dir: %w", err)
	}
	path := filepath.Join(dir, FileName(now))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("export: create file: %w", err)
	}
	defer f.Close()

	if err := Write(f, leads); err != nil {
		return "", fmt.Errorf("export: write %s: %w", path, err)
	}
	return path, f.Close()
}

// Latest returns the newest export in dir, or "" when there is none.
func Latest(dir string) string {
	entries, err := filepath.Glob(filepath.Join(dir, filePrefix+"*.csv"))
	if err != nil || len(entries) == 0 {
		return ""
	}
	return slices.Max(entries)
}

// Read decodes up to limit leads from r; limit <= 0 reads everything.
// Columns are matched by header name, case-insensitively, so files with a
// different column order or extra columns still load. IDs are derived from
// the profile URL.
func Read(r io.Reader, limit int) ([]lead.Lead, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(bom)); err == nil && bytes.Equal(head, bom) {
		_, _ = br.Discard(len(bom))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("export: read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var out []lead.Lead
	for limit <= 0 || len(out) < limit {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("export: read row %d: %w", len(out)+2, err)
		}

		get := func(k string) string {
			j, ok := idx[strings.ToLower(k)]
			if !ok || j >= len(rec) {
				return ""
			}
			return rec[j]
		}

		l := lead.Lead{
			FirstName:        get("FirstName"),
			LastName:         get("LastName"),
			Headline:         get("Headline"),
			Company:          get("Company"),
			Location:         get("Location"),
			ProfileURL:       get("ProfileURL"),
			Status:           lead.Status(get("Status")),
			ConnectionDegree: get("ConnectionDeg"),
			Notes:            get("Notes"),
			Source:           lead.SourceSearchResult,
		}
		l.FullName = strings.TrimSpace(l.FirstName + " " + l.LastName)
		if l.ProfileURL != "" {
			l.ID = fingerprint.Hash(l.ProfileURL)
		}
		if ts := get("ScrapedAt"); ts != "" {
			if t, err := time.ParseInLocation(TimeLayout, ts, time.UTC); err == nil {
				l.ScrapedAt = lead.Millis(t)
			}
		}
		out = append(out, l)
	}
	return out, nil
}

// ReadFile reads up to limit leads from the CSV file at path.
func ReadFile(path string, limit int) ([]lead.Lead, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f, limit)
}
