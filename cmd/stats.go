package cmd

import (
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newStatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show today's count, the daily limit and the stored leads",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			st, err := a.openStores(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			today := st.daily.Today(ctx)
			lim, err := st.daily.CheckLimit(ctx)
			if err != nil {
				return err
			}
			total, err := st.leads.Count(ctx)
			if err != nil {
				return err
			}

			last := "-"
			if today.LastScrapeTime != nil {
				last = time.UnixMilli(*today.LastScrapeTime).UTC().Format(time.RFC3339)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendRows([]table.Row{
				{"Date", today.Date},
				{"Scraped today", today.Count},
				{"Daily limit", lim.Limit},
				{"Remaining", lim.Remaining},
				{"Can scrape", lim.CanScrape},
				{"Last scrape", last},
				{"Stored leads", total},
			})
			t.Render()
			return nil
		},
	}
}
