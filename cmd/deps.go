package cmd

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"LeadCrawler/internal/extract"
	"LeadCrawler/internal/kv"
	"LeadCrawler/internal/metrics"
	"LeadCrawler/internal/pipeline"
	"LeadCrawler/internal/reveal"
	"LeadCrawler/internal/store"
)

// stores groups the persistent state shared by the commands.
type stores struct {
	kv       kv.Store
	leads    *store.Leads
	settings *store.SettingsStore
	daily    *store.Daily
}

// openStores opens the configured backend and makes sure settings exist.
func (a *app) openStores(ctx context.Context) (*stores, error) {
	backend, err := kv.Open(ctx, a.cfg.Storage.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", a.cfg.Storage.Backend, err)
	}

	withLog := store.WithLogger(a.log)
	leadOpts := []store.Option{withLog}
	if a.cfg.Storage.ResetStatusOnSave {
		leadOpts = append(leadOpts, store.WithResetStatusOnSave())
	}

	st := &stores{
		kv:       backend,
		leads:    store.NewLeads(backend, leadOpts...),
		settings: store.NewSettings(backend, withLog),
	}
	st.daily = store.NewDaily(backend, st.settings, withLog)

	if _, err := st.settings.Ensure(ctx); err != nil {
		a.log.Warn("settings not initialized", "error", err)
	}
	return st, nil
}

func (s *stores) Close() error {
	return s.kv.Close()
}

// newPipeline wires an orchestrator over page with the configured
// extraction and reveal settings.
func (a *app) newPipeline(page pipeline.Page, st *stores, reg prometheus.Registerer) *pipeline.Pipeline {
	ext := extract.New(
		extract.WithLogger(a.log),
		extract.WithBaseURL(a.cfg.Browser.BaseURL),
	)
	rev := reveal.New(
		reveal.WithLogger(a.log),
		reveal.WithRecordSelectors(ext.ContainerSelectors()),
		reveal.WithEndPhrases(a.cfg.Reveal.EndPhrases),
	)
	return pipeline.New(pipeline.Deps{
		Page:      page,
		Extractor: ext,
		Revealer:  rev,
		Leads:     st.leads,
		Daily:     st.daily,
		Metrics:   metrics.New(reg),
		Logger:    a.log,
	}, pipeline.WithRevealOptions(a.cfg.Reveal.Options))
}

// pause waits a random duration in [lo, hi) or until ctx is done.
func pause(ctx context.Context, lo, hi time.Duration) error {
	return reveal.Sleep(ctx, lo+rand.N(hi-lo))
}
