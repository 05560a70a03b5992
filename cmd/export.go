package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"LeadCrawler/internal/export"
	"LeadCrawler/internal/lead"
)

func newExportCommand(a *app) *cobra.Command {
	var (
		out    string
		status string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored leads to a CSV file",
		Long: `Write every stored lead, newest first, as a CSV file with a UTF-8 byte
order mark. Without --out the file is created in the export directory; use
--out - to write to standard output.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			st, err := a.openStores(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			leads, err := st.leads.All(ctx)
			if err != nil {
				return err
			}
			if status != "" {
				s, err := lead.ParseStatus(status)
				if err != nil {
					return err
				}
				leads = filterStatus(leads, s)
			}

			if out == "-" {
				return export.Write(cmd.OutOrStdout(), leads)
			}

			dir := a.cfg.Export.Dir
			if out != "" {
				dir = out
			}
			path, err := export.WriteFile(dir, leads, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d leads to %s\n", len(leads), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", `output directory, or "-" for stdout`)
	cmd.Flags().StringVar(&status, "status", "", "only export leads with this status")
	return cmd
}

func filterStatus(leads []lead.Lead, status lead.Status) []lead.Lead {
	var out []lead.Lead
	for _, l := range leads {
		if l.Status == status {
			out = append(out, l)
		}
	}
	return out
}
