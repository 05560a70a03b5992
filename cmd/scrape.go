package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"LeadCrawler/internal/browser"
	"LeadCrawler/internal/export"
	"LeadCrawler/internal/lead"
	"LeadCrawler/internal/pipeline"
)

// ErrMissingCredentials is returned when a scrape has no account or query.
var ErrMissingCredentials = errors.New("linkedin email, password and query are required")

// scrapeSummary reports one scrape run.
type scrapeSummary struct {
	Pages   int
	Leads   []lead.Lead
	Stored  int
	Updated int
	File    string
}

func newScrapeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Log in, search and collect leads from the result pages",
		Long: `Log in, open the people search for the configured query and collect every
profile from up to --max-pages result pages. Each page is scrolled until all
results are loaded, leads are merged into the store and the run is exported
to a CSV file in --out-dir.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStores(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			sum, err := a.scrape(cmd.Context(), st)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pages: %d, leads: %d (new %d, updated %d)\n",
				sum.Pages, len(sum.Leads), sum.Stored, sum.Updated)
			if sum.File != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "csv: %s\n", sum.File)
			}
			return nil
		},
	}

	cmd.Flags().String("query", "", `search text, e.g. "software engineer"`)
	cmd.Flags().String("geo-urn", "", "restrict the search to a geo URN")
	cmd.Flags().Int("max-pages", 1, "maximum result pages to collect")
	cmd.Flags().Bool("headless", true, "run Chrome headless")
	cmd.Flags().Bool("dump-html", false, "save each results page HTML for debugging")
	cmd.Flags().String("out-dir", "data", "directory for CSV exports")
	cmd.Flags().String("strategy", "", "reveal strategy: jump or graduated")
	cmd.Flags().Int("max-steps", 0, "maximum reveal steps per page")
	return cmd
}

// scrape runs one full session: login, search, then reveal and extract each
// result page.
func (a *app) scrape(ctx context.Context, st *stores) (scrapeSummary, error) {
	li := a.cfg.LinkedIn
	if li.Email == "" || li.Password == "" || li.Query == "" {
		return scrapeSummary{}, ErrMissingCredentials
	}

	if lim, err := st.daily.CheckLimit(ctx); err == nil && !lim.CanScrape {
		a.log.Warn("daily profile limit reached", "scrapedToday", lim.ScrapedToday, "limit", lim.Limit)
	}

	sess, err := browser.Open(ctx, a.cfg.Browser.Config, a.log)
	if err != nil {
		return scrapeSummary{}, err
	}
	defer sess.Close()

	a.log.Info("logging in", "headless", a.cfg.Browser.Headless)
	if err := sess.Login(ctx, li.Email, li.Password); err != nil {
		return scrapeSummary{}, fmt.Errorf("login failed: %w", err)
	}
	if err := sess.Search(ctx, a.cfg.Browser.BaseURL, li.Query, li.GeoURN); err != nil {
		return scrapeSummary{}, err
	}

	pipe := a.newPipeline(sess, st, nil)
	var sum scrapeSummary
	for page := 1; page <= li.MaxPages; page++ {
		a.log.Info("collecting page", "page", page, "of", li.MaxPages)
		if li.DumpHTML {
			a.dumpPage(ctx, sess, page)
		}

		resp, _ := pipe.Handle(ctx, pipeline.Request{Type: pipeline.ScrapeAllPages})
		sum.Pages++
		if res := resp.Scrape; res != nil && res.Success {
			sum.Leads = append(sum.Leads, res.Leads...)
			if res.Storage != nil {
				sum.Stored += res.Storage.Stored
				sum.Updated += res.Storage.Updated
			}
			a.log.Info("page collected", "page", page, "leads", res.Count)
		} else if res != nil {
			a.log.Warn("page not collected", "page", page, "error", res.Error)
		}

		if page == li.MaxPages {
			break
		}
		if !sess.NextPage(ctx) {
			a.log.Info("no next page, stopping pagination")
			break
		}
		if err := pause(ctx, 1500*time.Millisecond, 3000*time.Millisecond); err != nil {
			return sum, err
		}
	}

	a.log.Info("scrape complete", "pages", sum.Pages, "leads", len(sum.Leads))
	if len(sum.Leads) == 0 {
		return sum, nil
	}
	sum.File, err = export.WriteFile(a.cfg.Export.Dir, sum.Leads, time.Now())
	if err != nil {
		return sum, err
	}
	a.log.Info("csv saved", "path", sum.File)
	return sum, nil
}

func (a *app) dumpPage(ctx context.Context, sess *browser.Session, page int) {
	html, err := sess.HTML(ctx)
	if err != nil {
		a.log.Warn("html dump failed", "page", page, "error", err)
		return
	}
	if err := os.MkdirAll(a.cfg.Export.Dir, 0o755); err != nil {
		a.log.Warn("html dump failed", "page", page, "error", err)
		return
	}
	path := filepath.Join(a.cfg.Export.Dir, fmt.Sprintf("results_page_%d.html", page))
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		a.log.Warn("html dump failed", "page", page, "error", err)
		return
	}
	a.log.Info("html saved", "path", path)
}
