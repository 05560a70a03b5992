package schedule_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LeadCrawler/internal/schedule"
	"LeadCrawler/internal/store"
)

type staticSettings struct {
	s   store.Settings
	err error
}

func (s staticSettings) Get(context.Context) (store.Settings, error) { return s.s, s.err }

// 2026-03-02 is a Monday.
func at(day, hour int) time.Time {
	return time.Date(2026, 3, day, hour, 30, 0, 0, time.UTC)
}

func TestInWindow(t *testing.T) {
	t.Parallel()

	def := store.DefaultSettings()
	always := store.Settings{}

	tests := []struct {
		name     string
		settings store.Settings
		at       time.Time
		want     bool
	}{
		{"monday morning", def, at(2, 10), true},
		{"before start", def, at(2, 8), false},
		{"end hour excluded", def, at(2, 18), false},
		{"saturday", def, at(7, 10), false},
		{"sunday", def, at(8, 12), false},
		{"no restrictions", always, at(8, 3), true},
		{"hours disabled", store.Settings{WorkingDays: []int{1}}, at(2, 23), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, schedule.InWindow(tt.settings, tt.at))
		})
	}
}

func TestRunOnce_Gate(t *testing.T) {
	t.Parallel()

	runs := 0
	job := func(context.Context) error { runs++; return nil }
	src := staticSettings{s: store.DefaultSettings()}

	inside := schedule.New("@every 1h", job,
		schedule.WithWorkingHours(src),
		schedule.WithClock(func() time.Time { return at(3, 11) }))
	ran, err := inside.RunOnce(t.Context())
	require.NoError(t, err)
	assert.True(t, ran)

	outside := schedule.New("@every 1h", job,
		schedule.WithWorkingHours(src),
		schedule.WithClock(func() time.Time { return at(7, 11) }))
	ran, err = outside.RunOnce(t.Context())
	require.NoError(t, err)
	assert.False(t, ran)

	assert.Equal(t, 1, runs)
}

func TestRunOnce_NoGateAndError(t *testing.T) {
	t.Parallel()

	boom := errors.New("login failed")
	s := schedule.New("@every 1h", func(context.Context) error { return boom },
		schedule.WithClock(func() time.Time { return at(8, 3) }))

	ran, err := s.RunOnce(t.Context())
	assert.True(t, ran)
	require.ErrorIs(t, err, boom)
}

func TestStart(t *testing.T) {
	t.Parallel()

	done := make(chan struct{}, 1)
	s := schedule.New("@every 1h", func(context.Context) error {
		done <- struct{}{}
		return nil
	}, schedule.WithRunOnStart())

	require.NoError(t, s.Start(t.Context()))
	defer s.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run on start")
	}
}

func TestStart_BadSpec(t *testing.T) {
	t.Parallel()

	s := schedule.New("every tuesday", func(context.Context) error { return nil })
	require.Error(t, s.Start(t.Context()))
}

func TestStart_RunOnStartDoesNotOverlapTicks(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	started := make(chan struct{}, 10)
	release := make(chan struct{})

	s := schedule.New("@every 1s", func(context.Context) error {
		runs.Add(1)
		started <- struct{}{}
		<-release
		return nil
	}, schedule.WithRunOnStart())
	require.NoError(t, s.Start(t.Context()))

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run on start")
	}

	// Ticks fire while the first run is still blocked.
	time.Sleep(2200 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	stopped := s.Stop()
	select {
	case <-stopped.Done():
		t.Fatal("stop returned while the run on start was still active")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not finish after the run returned")
	}
	assert.Equal(t, int32(1), runs.Load())
}
