package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"LeadCrawler/internal/schedule"
)

func newWatchCommand(a *app) *cobra.Command {
	var now bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the scrape on a cron schedule",
		Long: `Run the scrape command on the configured cron schedule until interrupted.
With schedule.respect_working_hours set, runs outside the working days and
hours of the stored settings are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			st, err := a.openStores(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			job := func(ctx context.Context) error {
				_, err := a.scrape(ctx, st)
				return err
			}

			opts := []schedule.Option{schedule.WithLogger(a.log)}
			if a.cfg.Schedule.RespectWorkingHours {
				opts = append(opts, schedule.WithWorkingHours(st.settings))
			}
			if now {
				opts = append(opts, schedule.WithRunOnStart())
			}

			sched := schedule.New(a.cfg.Schedule.Spec, job, opts...)
			if err := sched.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			<-sched.Stop().Done()
			return nil
		},
	}

	cmd.Flags().String("schedule", "", `cron spec, e.g. "@every 2h" or "0 10 * * 1-5"`)
	cmd.Flags().BoolVar(&now, "now", false, "run once immediately, then follow the schedule")
	cmd.Flags().String("query", "", "search text")
	cmd.Flags().Int("max-pages", 1, "maximum result pages per run")
	return cmd
}
