package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"LeadCrawler/internal/store"
)

func newSettingsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the stored settings",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the stored settings as YAML",
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx := cmd.Context()

				st, err := a.openStores(ctx)
				if err != nil {
					return err
				}
				defer st.Close()

				settings, err := st.settings.Get(ctx)
				if err != nil {
					return err
				}
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(settings); err != nil {
					return err
				}
				return enc.Close()
			},
		},
		&cobra.Command{
			Use:   "set <file.yaml>",
			Short: "Apply the values of a YAML file over the stored settings",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()

				raw, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}

				st, err := a.openStores(ctx)
				if err != nil {
					return err
				}
				defer st.Close()

				settings, err := st.settings.Get(ctx)
				if err != nil {
					return err
				}
				if err := yaml.Unmarshal(raw, &settings); err != nil {
					return fmt.Errorf("settings %s: %w", args[0], err)
				}
				if err := st.settings.Save(ctx, settings); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "settings saved")
				return nil
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Restore the default settings",
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx := cmd.Context()

				st, err := a.openStores(ctx)
				if err != nil {
					return err
				}
				defer st.Close()

				if err := st.settings.Save(ctx, store.DefaultSettings()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "settings reset to defaults")
				return nil
			},
		},
	)
	return cmd
}
