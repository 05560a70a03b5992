package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"LeadCrawler/internal/kv"
)

// WorkingHours is the daily window, in local hours, during which scheduled
// runs may start.
type WorkingHours struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Start   int  `json:"start" yaml:"start"`
	End     int  `json:"end" yaml:"end"`
}

// Settings are user preferences. Only DailyProfileVisitLimit and the working
// window are read by the crawler; the rest are kept for the host UI.
type Settings struct {
	DelayBetweenActions    int          `json:"delayBetweenActions" yaml:"delayBetweenActions"`
	RandomVariance         float64      `json:"randomVariance" yaml:"randomVariance"`
	DailyConnectionLimit   int          `json:"dailyConnectionLimit" yaml:"dailyConnectionLimit"`
	DailyMessageLimit      int          `json:"dailyMessageLimit" yaml:"dailyMessageLimit"`
	DailyProfileVisitLimit int          `json:"dailyProfileVisitLimit" yaml:"dailyProfileVisitLimit"`
	WorkingHours           WorkingHours `json:"workingHours" yaml:"workingHours"`
	WorkingDays            []int        `json:"workingDays" yaml:"workingDays"`
	PauseOnWeekends        bool         `json:"pauseOnWeekends" yaml:"pauseOnWeekends"`
}

// DefaultProfileVisitLimit applies when settings carry no positive limit.
const DefaultProfileVisitLimit = 100

// ErrInvalidSettings wraps every settings validation failure.
var ErrInvalidSettings = errors.New("store: invalid settings")

// DefaultSettings returns the first-run settings.
func DefaultSettings() Settings {
	return Settings{
		DelayBetweenActions:    120,
		RandomVariance:         0.2,
		DailyConnectionLimit:   50,
		DailyMessageLimit:      80,
		DailyProfileVisitLimit: DefaultProfileVisitLimit,
		WorkingHours:           WorkingHours{Enabled: true, Start: 9, End: 18},
		WorkingDays:            []int{1, 2, 3, 4, 5},
		PauseOnWeekends:        true,
	}
}

// Validate rejects values the scheduler cannot use.
func (s Settings) Validate() error {
	switch {
	case s.DelayBetweenActions < 0, s.DailyConnectionLimit < 0, s.DailyMessageLimit < 0, s.DailyProfileVisitLimit < 0:
		return fmt.Errorf("%w: limits must not be negative", ErrInvalidSettings)
	case s.RandomVariance < 0 || s.RandomVariance > 1:
		return fmt.Errorf("%w: randomVariance must be within [0,1]", ErrInvalidSettings)
	case s.WorkingHours.Start < 0 || s.WorkingHours.End > 24 || s.WorkingHours.Start >= s.WorkingHours.End:
		return fmt.Errorf("%w: working hours %d-%d", ErrInvalidSettings, s.WorkingHours.Start, s.WorkingHours.End)
	}
	for _, d := range s.WorkingDays {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: working day %d", ErrInvalidSettings, d)
		}
	}
	return nil
}

// ProfileVisitLimit returns the daily limit with the default applied.
func (s Settings) ProfileVisitLimit() int {
	if s.DailyProfileVisitLimit <= 0 {
		return DefaultProfileVisitLimit
	}
	return s.DailyProfileVisitLimit
}

// IsWorkingDay reports whether weekday (0 = Sunday) is in WorkingDays.
func (s Settings) IsWorkingDay(weekday int) bool {
	return slices.Contains(s.WorkingDays, weekday)
}

// SettingsStore persists Settings.
type SettingsStore struct {
	kv   kv.Store
	opts options
}

// NewSettings returns a settings store over s.
func NewSettings(s kv.Store, opts ...Option) *SettingsStore {
	return &SettingsStore{kv: s, opts: buildOptions(opts)}
}

// Ensure writes the defaults when no settings exist yet and reports whether
// it did.
func (s *SettingsStore) Ensure(ctx context.Context) (bool, error) {
	_, ok, err := s.kv.Get(ctx, KeySettings)
	if err != nil {
		s.opts.log.Error("store: failed to initialize settings", "error", err)
		return false, fmt.Errorf("store: read %s: %w", KeySettings, err)
	}
	if ok {
		return false, nil
	}
	if err := writeJSON(ctx, s.kv, KeySettings, DefaultSettings()); err != nil {
		return false, err
	}
	s.opts.log.Info("store: initialized default settings")
	return true, nil
}

// Get returns the stored settings, or the defaults when none are stored. On
// a read failure the defaults are returned with the error.
func (s *SettingsStore) Get(ctx context.Context) (Settings, error) {
	var st Settings
	ok, err := readJSON(ctx, s.kv, KeySettings, &st)
	if err != nil {
		s.opts.log.Error("store: failed to get settings", "error", err)
		return DefaultSettings(), err
	}
	if !ok {
		return DefaultSettings(), nil
	}
	return st, nil
}

// Save validates and stores st.
func (s *SettingsStore) Save(ctx context.Context, st Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	if err := writeJSON(ctx, s.kv, KeySettings, st); err != nil {
		return err
	}
	s.opts.log.Info("store: settings saved")
	return nil
}
