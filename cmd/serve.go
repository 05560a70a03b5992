package cmd

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"LeadCrawler/internal/browser"
	"LeadCrawler/internal/server"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the request API over a live browser tab",
		Long: `Start Chrome and serve the pipeline requests over HTTP. When credentials
and a query are configured the tab logs in and opens the search first;
otherwise run with --headless=false and navigate the tab by hand.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			st, err := a.openStores(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			// The tab lives as long as the server.
			bcfg := a.cfg.Browser.Config
			bcfg.Timeout = 0
			sess, err := browser.Open(ctx, bcfg, a.log)
			if err != nil {
				return err
			}
			defer sess.Close()

			li := a.cfg.LinkedIn
			if li.Email != "" && li.Password != "" {
				if err := sess.Login(ctx, li.Email, li.Password); err != nil {
					return fmt.Errorf("login failed: %w", err)
				}
				if li.Query != "" {
					if err := sess.Search(ctx, a.cfg.Browser.BaseURL, li.Query, li.GeoURN); err != nil {
						return err
					}
				}
			}

			if !a.cfg.App.Debug {
				gin.SetMode(gin.ReleaseMode)
			}
			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			pipe := a.newPipeline(sess, st, reg)

			handler := server.NewHandler(pipe, st.leads, st.daily, a.log, server.WithExportDir(a.cfg.Export.Dir))
			srv := server.New(server.Config{
				Address:      a.cfg.Server.Address,
				ReadTimeout:  a.cfg.Server.ReadTimeout,
				WriteTimeout: a.cfg.Server.WriteTimeout,
				IdleTimeout:  a.cfg.Server.IdleTimeout,
			}, server.NewRouter(handler, reg, a.log), a.log)
			return srv.Run(ctx)
		},
	}

	cmd.Flags().String("address", ":8080", "HTTP listen address")
	cmd.Flags().Bool("headless", true, "run Chrome headless")
	cmd.Flags().String("query", "", "search to open after login")
	return cmd
}
