// Package schedule runs the scrape job on a cron spec, only inside the
// working window configured in settings.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"LeadCrawler/internal/logger"
	"LeadCrawler/internal/store"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// SettingsSource provides the working window.
type SettingsSource interface {
	Get(ctx context.Context) (store.Settings, error)
}

// Scheduler wraps robfig/cron and gates each tick on the working window.
type Scheduler struct {
	cron      *cron.Cron
	spec      string
	job       Job
	settings  SettingsSource
	log       logger.Interface
	now       func() time.Time
	gate      bool
	immediate bool

	wg sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l logger.Interface) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithClock replaces time.Now for the working window check.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithWorkingHours gates runs on the window read from src.
func WithWorkingHours(src SettingsSource) Option {
	return func(s *Scheduler) {
		s.settings = src
		s.gate = src != nil
	}
}

// WithRunOnStart runs the job once as soon as Start is called.
func WithRunOnStart() Option {
	return func(s *Scheduler) { s.immediate = true }
}

// New creates a Scheduler firing job on spec (standard five-field cron or
// descriptors such as "@every 2h").
func New(spec string, job Job, opts ...Option) *Scheduler {
	s := &Scheduler{
		spec: spec,
		job:  job,
		log:  logger.NewNoOp(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	cl := cronLogger{log: s.log}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return s
}

// Start registers the job and starts the cron loop. The run requested by
// WithRunOnStart goes through the same wrapped job as the ticks, so it never
// overlaps a scheduled run.
func (s *Scheduler) Start(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.spec, func() { _, _ = s.RunOnce(ctx) })
	if err != nil {
		return fmt.Errorf("schedule: add %q: %w", s.spec, err)
	}
	job := s.cron.Entry(id).WrappedJob

	s.cron.Start()
	s.log.Info("schedule: cron started", "spec", s.spec)

	if s.immediate {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			job.Run()
		}()
	}
	return nil
}

// Stop stops the cron loop and returns a context done when every running
// job, including the run on start, has returned.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("schedule: cron stopped")
	cronDone := s.cron.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		cancel()
	}()
	return ctx
}

// RunOnce runs the job unless the clock is outside the working window. It
// reports whether the job ran.
func (s *Scheduler) RunOnce(ctx context.Context) (bool, error) {
	if s.gate {
		settings, err := s.settings.Get(ctx)
		if err != nil {
			s.log.Warn("schedule: settings unavailable, using defaults", "error", err)
		}
		if now := s.now(); !InWindow(settings, now) {
			s.log.Info("schedule: outside working hours, skipping run", "at", now.Format(time.RFC3339))
			return false, nil
		}
	}

	s.log.Info("schedule: run started")
	if err := s.job(ctx); err != nil {
		s.log.Error("schedule: run failed", "error", err)
		return true, err
	}
	s.log.Info("schedule: run complete")
	return true, nil
}

// InWindow reports whether t falls inside the working days and hours of
// settings. Hours are compared in t's location.
func InWindow(settings store.Settings, t time.Time) bool {
	day := t.Weekday()
	if settings.PauseOnWeekends && (day == time.Saturday || day == time.Sunday) {
		return false
	}
	if len(settings.WorkingDays) > 0 && !settings.IsWorkingDay(int(day)) {
		return false
	}
	if wh := settings.WorkingHours; wh.Enabled {
		if h := t.Hour(); h < wh.Start || h >= wh.End {
			return false
		}
	}
	return true
}

// cronLogger adapts logger.Interface to cron.Logger.
type cronLogger struct {
	log logger.Interface
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
