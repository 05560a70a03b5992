package reveal_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LeadCrawler/internal/reveal"
)

type fakePage struct {
	mu         sync.Mutex
	heights    []int64
	counts     []int
	text       string
	countErrAt int // 1-based call that fails, 0 never

	heightCalls int
	countCalls  int
	scrollTos   []int64
	scrollBys   int
}

func at[T any](vals []T, i int) T {
	if i >= len(vals) {
		return vals[len(vals)-1]
	}
	return vals[i]
}

func (p *fakePage) VisibleText(context.Context) (string, error) { return p.text, nil }

func (p *fakePage) ScrollHeight(context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := at(p.heights, p.heightCalls)
	p.heightCalls++
	return h, nil
}

func (p *fakePage) ScrollTo(_ context.Context, y int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrollTos = append(p.scrollTos, y)
	return nil
}

func (p *fakePage) ScrollBy(context.Context, int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrollBys++
	return nil
}

func (p *fakePage) Count(context.Context, []string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.countCalls++
	if p.countErrAt > 0 && p.countCalls == p.countErrAt {
		return 0, errors.New("target closed")
	}
	return at(p.counts, p.countCalls-1), nil
}

type sleepLog struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepLog) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func newRevealer(s *sleepLog) *reveal.Revealer {
	return reveal.New(
		reveal.WithSleeper(s.sleep),
		reveal.WithJitter(func() time.Duration { return 0 }),
	)
}

func TestReveal_HeightStable(t *testing.T) {
	t.Parallel()

	page := &fakePage{heights: []int64{1000, 2000, 3000}, counts: []int{10, 20, 25}}
	res := newRevealer(&sleepLog{}).Reveal(context.Background(), page, reveal.Options{MaxSteps: 10})

	assert.True(t, res.Success)
	assert.Equal(t, reveal.ReasonHeightStable, res.Reason)
	assert.Equal(t, 5, res.StepsTaken)
	assert.Equal(t, 25, res.RecordsVisible)
	assert.Empty(t, res.Error)
	require.NotEmpty(t, page.scrollTos)
	assert.Equal(t, int64(0), page.scrollTos[len(page.scrollTos)-1])
	assert.Equal(t, int64(1000), page.scrollTos[0])
}

func TestReveal_TargetReached(t *testing.T) {
	t.Parallel()

	page := &fakePage{heights: []int64{1000, 2000, 3000}, counts: []int{5, 10, 15}}
	res := newRevealer(&sleepLog{}).Reveal(context.Background(), page, reveal.Options{MaxSteps: 10, TargetCount: 10})

	assert.True(t, res.Success)
	assert.Equal(t, reveal.ReasonTargetReached, res.Reason)
	assert.Equal(t, 1, res.StepsTaken)
	assert.Equal(t, 15, res.RecordsVisible)
}

func TestReveal_EndOfResults(t *testing.T) {
	t.Parallel()

	page := &fakePage{
		heights: []int64{1000},
		counts:  []int{7},
		text:    "Jane Doe\nYou’ve viewed all results for this search",
	}
	res := newRevealer(&sleepLog{}).Reveal(context.Background(), page, reveal.Options{})

	assert.True(t, res.Success)
	assert.Equal(t, reveal.ReasonEndOfResults, res.Reason)
	assert.Zero(t, res.StepsTaken)
	assert.Equal(t, 7, res.RecordsVisible)
}

func TestReveal_StepLimit(t *testing.T) {
	t.Parallel()

	page := &fakePage{heights: []int64{100, 200, 300, 400, 500}, counts: []int{1, 2, 3, 4}}
	res := newRevealer(&sleepLog{}).Reveal(context.Background(), page, reveal.Options{MaxSteps: 3})

	assert.True(t, res.Success)
	assert.Equal(t, reveal.ReasonStepLimit, res.Reason)
	assert.Equal(t, 3, res.StepsTaken)
	assert.Equal(t, 4, res.RecordsVisible)
}

func TestReveal_ErrorFreezesSteps(t *testing.T) {
	t.Parallel()

	page := &fakePage{heights: []int64{100, 200, 300}, counts: []int{1, 2, 3}, countErrAt: 2}
	res := newRevealer(&sleepLog{}).Reveal(context.Background(), page, reveal.Options{MaxSteps: 10})

	assert.False(t, res.Success)
	assert.Equal(t, reveal.ReasonError, res.Reason)
	assert.Equal(t, 1, res.StepsTaken)
	assert.Zero(t, res.RecordsVisible)
	assert.Contains(t, res.Error, "target closed")
}

func TestReveal_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	page := &fakePage{heights: []int64{100}, counts: []int{1}}
	res := reveal.New().Reveal(ctx, page, reveal.Options{StepDelay: time.Hour})

	assert.False(t, res.Success)
	assert.Equal(t, reveal.ReasonError, res.Reason)
	assert.Zero(t, res.StepsTaken)
	assert.Contains(t, res.Error, context.Canceled.Error())
}

func TestReveal_Graduated(t *testing.T) {
	t.Parallel()

	sleeps := &sleepLog{}
	page := &fakePage{heights: []int64{0}, counts: []int{10, 20}}
	res := newRevealer(sleeps).Reveal(context.Background(), page, reveal.Options{
		MaxSteps:  10,
		StepDelay: time.Second,
		Strategy:  reveal.StrategyGraduated,
	})

	assert.True(t, res.Success)
	assert.Equal(t, reveal.ReasonHeightStable, res.Reason)
	assert.Equal(t, 4, res.StepsTaken)
	assert.Equal(t, 20, res.RecordsVisible)
	assert.Equal(t, 25, page.scrollBys)
	assert.Zero(t, page.heightCalls)
	assert.Contains(t, sleeps.waits, 100*time.Millisecond)
	assert.Contains(t, sleeps.waits, time.Second)
}

func TestContainsEndPhrase(t *testing.T) {
	t.Parallel()

	assert.True(t, reveal.ContainsEndPhrase("NO MORE RESULTS", reveal.DefaultEndPhrases))
	assert.True(t, reveal.ContainsEndPhrase("That’s all the results", reveal.DefaultEndPhrases))
	assert.False(t, reveal.ContainsEndPhrase("Show more results", reveal.DefaultEndPhrases))
	assert.False(t, reveal.ContainsEndPhrase("anything", nil))
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	s, err := reveal.ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, reveal.StrategyJump, s)

	s, err = reveal.ParseStrategy("graduated")
	require.NoError(t, err)
	assert.Equal(t, reveal.StrategyGraduated, s)

	_, err = reveal.ParseStrategy("bounce")
	require.ErrorIs(t, err, reveal.ErrUnknownStrategy)
}
