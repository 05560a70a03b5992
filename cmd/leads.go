package cmd

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"LeadCrawler/internal/export"
	"LeadCrawler/internal/lead"
)

func newLeadsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "Manage the stored leads",
	}
	cmd.AddCommand(
		newLeadsListCommand(a),
		newLeadsSetCommand(a),
		newLeadsImportCommand(a),
		newLeadsClearCommand(a),
	)
	return cmd
}

func newLeadsListCommand(a *app) *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored leads, newest first",
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
			if limit > 0 && limit < len(leads) {
				leads = leads[:limit]
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"ID", "Name", "Headline", "Company", "Location", "Degree", "Status"})
			for _, l := range leads {
				t.AppendRow(table.Row{l.ID, l.FullName, l.Headline, l.Company, l.Location, l.ConnectionDegree, l.Status})
			}
			t.AppendFooter(table.Row{"", fmt.Sprintf("%d leads", len(leads))})
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only list leads with this status")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum leads to list (0 lists all)")
	return cmd
}

func newLeadsSetCommand(a *app) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "set <id> <status>",
		Short: "Change the status and notes of a lead",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			status, err := lead.ParseStatus(args[1])
			if err != nil {
				return err
			}

			st, err := a.openStores(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			l, err := st.leads.UpdateStatus(ctx, args[0], status, notes)
			if err != nil {
				return fmt.Errorf("lead %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s -> %s\n", l.ID, l.FullName, l.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "replace the lead notes")
	return cmd
}

func newLeadsImportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Merge leads from an exported CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			leads, err := export.ReadFile(args[0], 0)
			if err != nil {
				return err
			}

			st, err := a.openStores(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := st.leads.Import(ctx, leads)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d leads: %d new, %d updated, %d invalid\n",
				len(leads), res.Stored, res.Updated, res.Errors)
			return nil
		},
	}
}

func newLeadsClearCommand(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored lead",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to delete leads without --yes")
			}
			ctx := cmd.Context()

			st, err := a.openStores(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.leads.ClearAll(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "all leads deleted")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")
	return cmd
}
