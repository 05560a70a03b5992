// Package cmd implements the leadcrawler command-line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"LeadCrawler/internal/config"
	"LeadCrawler/internal/logger"
)

// Version is set at build time with -ldflags "-X LeadCrawler/cmd.Version=...".
var Version = "dev"

// flagKeys maps command flags to the config keys they override.
var flagKeys = map[string]string{
	"debug":     "app.debug",
	"query":     "linkedin.query",
	"geo-urn":   "linkedin.geo_urn",
	"max-pages": "linkedin.max_pages",
	"dump-html": "linkedin.dump_html",
	"headless":  "browser.headless",
	"out-dir":   "export.dir",
	"strategy":  "reveal.strategy",
	"max-steps": "reveal.max_steps",
	"address":   "server.address",
	"schedule":  "schedule.spec",
}

// app carries what every command needs once the config is loaded.
type app struct {
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "leadcrawler",
		Short:         "Collect people search results as leads",
		Long:          `leadcrawler drives a browser over people search results, extracts every visible profile and keeps a deduplicated lead list that can be exported to CSV.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./config.yaml or ./config/config.yaml)")
	root.PersistentFlags().Bool("debug", false, "enable debug logging")

	root.AddCommand(
		newScrapeCommand(a),
		newServeCommand(a),
		newWatchCommand(a),
		newExportCommand(a),
		newStatsCommand(a),
		newLeadsCommand(a),
		newSettingsCommand(a),
		newVersionCommand(),
	)
	return root
}

// Execute runs the CLI until it finishes or an interrupt arrives.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

func (a *app) init(cmd *cobra.Command) error {
	v, err := config.New(a.cfgFile)
	if err != nil {
		return err
	}
	if err := bindFlags(v, cmd); err != nil {
		return err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	a.cfg = cfg
	a.log = log
	return nil
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind %s flag: %w", name, err)
		}
	}
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "leadcrawler version %s\n", Version)
		},
	}
}
