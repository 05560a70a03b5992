// Package reveal scrolls a results page until the lazily loaded list stops
// growing, a target size is reached or the page says there is nothing left.
package reveal

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"LeadCrawler/internal/logger"
)

// Page is the subset of a rendered page the revealer drives.
type Page interface {
	VisibleText(ctx context.Context) (string, error)
	ScrollHeight(ctx context.Context) (int64, error)
	ScrollTo(ctx context.Context, y int64) error
	ScrollBy(ctx context.Context, dy int64) error
	Count(ctx context.Context, selectors []string) (int, error)
}

// Strategy selects how the revealer measures progress and advances.
type Strategy string

const (
	// StrategyJump measures document height and jumps to the bottom.
	StrategyJump Strategy = "jump"
	// StrategyGraduated measures the record count and scrolls in small steps.
	StrategyGraduated Strategy = "graduated"
)

// Reason tells why a reveal run stopped.
type Reason string

const (
	ReasonTargetReached Reason = "target-reached"
	ReasonEndOfResults  Reason = "end-of-results-detected"
	ReasonHeightStable  Reason = "height-stable"
	ReasonStepLimit     Reason = "step-limit-reached"
	ReasonError         Reason = "error"
)

// Defaults applied to zero Options.
const (
	DefaultMaxSteps  = 10
	DefaultStepDelay = 2 * time.Second
)

const (
	stableStepsToStop    = 3
	graduatedSubSteps    = 5
	graduatedSubStepPx   = 300
	graduatedSubStepWait = 100 * time.Millisecond
	settleWait           = 500 * time.Millisecond
	maxJitter            = 500 * time.Millisecond
)

// DefaultEndPhrases are matched case-insensitively against the visible page
// text. The match is a best-effort heuristic for English locales.
var DefaultEndPhrases = []string{
	"You've viewed all",
	"No more results",
	"End of results",
	"That's all the results",
	"You've seen all",
}

// DefaultRecordSelectors is the container chain used to count records.
var DefaultRecordSelectors = []string{
	`div[role="listitem"]`,
	`.reusable-search__result-container`,
	`li.reusable-search__result-container`,
	`div.entity-result`,
}

// Options bound a single reveal run.
type Options struct {
	MaxSteps    int           `mapstructure:"max_steps" yaml:"max_steps"`
	StepDelay   time.Duration `mapstructure:"step_delay" yaml:"step_delay"`
	TargetCount int           `mapstructure:"target_count" yaml:"target_count"`
	Strategy    Strategy      `mapstructure:"strategy" yaml:"strategy"`
}

// Result reports the outcome of a reveal run.
type Result struct {
	Success        bool   `json:"success"`
	RecordsVisible int    `json:"profilesLoaded"`
	StepsTaken     int    `json:"scrollCount"`
	Reason         Reason `json:"reason"`
	Error          string `json:"error,omitempty"`
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Revealer runs the reveal state machine against a Page.
type Revealer struct {
	log       logger.Interface
	selectors []string
	phrases   []string
	sleep     Sleeper
	jitter    func() time.Duration
}

// Option configures a Revealer.
type Option func(*Revealer)

// WithLogger sets the logger.
func WithLogger(l logger.Interface) Option {
	return func(r *Revealer) { r.log = l }
}

// WithRecordSelectors overrides the record container chain.
func WithRecordSelectors(selectors []string) Option {
	return func(r *Revealer) {
		if len(selectors) > 0 {
			r.selectors = selectors
		}
	}
}

// WithEndPhrases overrides the end-of-results phrases.
func WithEndPhrases(phrases []string) Option {
	return func(r *Revealer) {
		if len(phrases) > 0 {
			r.phrases = phrases
		}
	}
}

// WithSleeper replaces the wait function. Tests use it to run without delay.
func WithSleeper(s Sleeper) Option {
	return func(r *Revealer) { r.sleep = s }
}

// WithJitter replaces the random pause drawn after each step.
func WithJitter(j func() time.Duration) Option {
	return func(r *Revealer) { r.jitter = j }
}

// New returns a Revealer.
func New(opts ...Option) *Revealer {
	r := &Revealer{
		log:       logger.NewNoOp(),
		selectors: DefaultRecordSelectors,
		phrases:   DefaultEndPhrases,
		sleep:     Sleep,
		jitter: func() time.Duration {
			return rand.N(maxJitter)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sleep waits for d unless ctx ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (o Options) withDefaults() Options {
	if o.MaxSteps <= 0 {
		o.MaxSteps = DefaultMaxSteps
	}
	if o.StepDelay <= 0 {
		o.StepDelay = DefaultStepDelay
	}
	if o.Strategy == "" {
		o.Strategy = StrategyJump
	}
	return o
}

// Reveal advances page until one of the stop conditions holds. It never
// returns an error; failures are reported through Result.
func (r *Revealer) Reveal(ctx context.Context, page Page, opts Options) Result {
	opts = opts.withDefaults()
	log := r.log.With("strategy", string(opts.Strategy), "max_steps", opts.MaxSteps)

	var (
		steps    int
		previous int64
		noChange int
		reason   = ReasonStepLimit
	)

	fail := func(err error) Result {
		log.Error("reveal: failed", "steps", steps, "error", err)
		return Result{Success: false, RecordsVisible: 0, StepsTaken: steps, Reason: ReasonError, Error: err.Error()}
	}

	for steps < opts.MaxSteps {
		count, err := page.Count(ctx, r.selectors)
		if err != nil {
			return fail(err)
		}

		extent := int64(count)
		if opts.Strategy == StrategyJump {
			if extent, err = page.ScrollHeight(ctx); err != nil {
				return fail(err)
			}
		}
		log.Debug("reveal: step", "step", steps+1, "extent", extent, "records", count)

		if opts.TargetCount > 0 && count >= opts.TargetCount {
			reason = ReasonTargetReached
			break
		}

		end, err := r.endOfResults(ctx, page)
		if err != nil {
			return fail(err)
		}
		if end {
			reason = ReasonEndOfResults
			break
		}

		if err := r.advance(ctx, page, opts.Strategy, extent); err != nil {
			return fail(err)
		}
		if err := r.sleep(ctx, opts.StepDelay); err != nil {
			return fail(err)
		}

		if extent == previous {
			noChange++
			if noChange >= stableStepsToStop {
				reason = ReasonHeightStable
				break
			}
		} else {
			noChange = 0
		}

		previous = extent
		steps++

		if steps < opts.MaxSteps {
			if err := r.sleep(ctx, r.jitter()); err != nil {
				return fail(err)
			}
		}
	}

	if err := page.ScrollTo(ctx, 0); err != nil {
		return fail(err)
	}
	if err := r.sleep(ctx, settleWait); err != nil {
		return fail(err)
	}
	final, err := page.Count(ctx, r.selectors)
	if err != nil {
		return fail(err)
	}

	log.Info("reveal: complete", "steps", steps, "records", final, "reason", string(reason))
	return Result{Success: true, RecordsVisible: final, StepsTaken: steps, Reason: reason}
}

func (r *Revealer) advance(ctx context.Context, page Page, s Strategy, extent int64) error {
	if s == StrategyGraduated {
		for range graduatedSubSteps {
			if err := page.ScrollBy(ctx, graduatedSubStepPx); err != nil {
				return err
			}
			if err := r.sleep(ctx, graduatedSubStepWait); err != nil {
				return err
			}
		}
		return nil
	}
	return page.ScrollTo(ctx, extent)
}

func (r *Revealer) endOfResults(ctx context.Context, page Page) (bool, error) {
	text, err := page.VisibleText(ctx)
	if err != nil {
		return false, err
	}
	return ContainsEndPhrase(text, r.phrases), nil
}

// ContainsEndPhrase reports whether text carries one of phrases, ignoring
// case and typographic apostrophes.
func ContainsEndPhrase(text string, phrases []string) bool {
	text = normalize(text)
	for _, p := range phrases {
		if p != "" && strings.Contains(text, normalize(p)) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "’", "'"))
}

// ErrUnknownStrategy is returned by ParseStrategy.
var ErrUnknownStrategy = errors.New("reveal: unknown strategy")

// ParseStrategy validates a configured strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyJump, StrategyGraduated:
		return Strategy(s), nil
	case "":
		return StrategyJump, nil
	}
	return "", ErrUnknownStrategy
}
