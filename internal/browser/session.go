package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"LeadCrawler/internal/logger"
)

const (
	loginURL       = "https://www.linkedin.com/checkpoint/lg/sign-in-another-account"
	feedURL        = "https://www.linkedin.com/feed/"
	defaultAgent   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0 Safari/537.36"
	pollInterval   = 1500 * time.Millisecond
	captchaTimeout = 180 * time.Second
	challengeWait  = 5 * time.Minute
)

// ErrHeadlessChallenge is returned when a captcha or checkpoint needs a
// human and the browser runs headless.
var ErrHeadlessChallenge = errors.New("browser: interactive challenge detected in headless mode, rerun with headless disabled")

// ErrTimeout is returned when a polled page condition never became true.
var ErrTimeout = errors.New("browser: timeout waiting for condition")

// Config controls the Chrome process.
type Config struct {
	Headless  bool          `mapstructure:"headless" yaml:"headless"`
	ExecPath  string        `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`
	Lang      string        `mapstructure:"lang" yaml:"lang"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Session owns a Chrome process and its single tab.
type Session struct {
	*Tab
	cfg    Config
	log    logger.Interface
	cancel context.CancelFunc
}

// Open launches Chrome and returns a Session. Close must be called.
func Open(parent context.Context, cfg Config, log logger.Interface) (*Session, error) {
	if log == nil {
		log = logger.NewNoOp()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultAgent
	}
	if cfg.Lang == "" {
		cfg.Lang = "en-US"
	}
	if cfg.ExecPath == "" {
		cfg.ExecPath = os.Getenv("CHROME_PATH")
	}

	ctx := parent
	cancelTimeout := context.CancelFunc(func() {})
	if cfg.Timeout > 0 {
		ctx, cancelTimeout = context.WithTimeout(parent, cfg.Timeout)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("lang", cfg.Lang),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if cfg.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	bctx, bcancel := chromedp.NewContext(allocCtx)

	cancel := func() {
		bcancel()
		allocCancel()
		cancelTimeout()
	}

	if err := chromedp.Run(bctx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return nil, fmt.Errorf("browser: start chrome: %w", err)
	}
	log.Info("browser: chrome started", "headless", cfg.Headless)

	return &Session{Tab: NewTab(bctx), cfg: cfg, log: log, cancel: cancel}, nil
}

// Close shuts Chrome down.
func (s *Session) Close() {
	s.cancel()
}

// Login signs in and waits out captcha, checkpoint and 2FA screens when a
// human can solve them.
func (s *Session) Login(ctx context.Context, email, password string) error {
	if err := s.run(ctx,
		chromedp.Navigate(loginURL),
		chromedp.WaitVisible(`#username`, chromedp.ByQuery),
		chromedp.SetValue(`#username`, email, chromedp.ByQuery),
		chromedp.SetValue(`#password, input[name="session_password"]`, password, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("browser: fill login form: %w", err)
	}

	const submit = `button[data-litms-control-urn="login-submit"], button[type="submit"]`
	if err := s.run(ctx,
		chromedp.WaitVisible(submit, chromedp.ByQuery),
		chromedp.ScrollIntoView(submit, chromedp.ByQuery),
		chromedp.Click(submit, chromedp.ByQuery),
		chromedp.Sleep(400*time.Millisecond),
	); err != nil {
		s.log.Warn("browser: submit click failed, falling back to form submit", "error", err)
		_ = s.run(ctx, chromedp.Submit(`form`))
		_ = s.run(ctx, chromedp.Focus(`#password, input[name="session_password"]`), chromedp.KeyEvent("\r"))
	}

	if s.countJS(ctx, `iframe[src*="captcha"], iframe[src*="challenge"]`) > 0 {
		if s.cfg.Headless {
			return ErrHeadlessChallenge
		}
		s.log.Info("browser: captcha detected, waiting for manual resolution", "timeout", captchaTimeout)
		if err := s.waitGone(ctx, captchaTimeout, `iframe[src*="captcha"], iframe[src*="challenge"]`); err != nil {
			return fmt.Errorf("browser: captcha: %w", err)
		}
	}

	if s.isCheckpoint(ctx) {
		if s.cfg.Headless {
			return ErrHeadlessChallenge
		}
		s.log.Info("browser: checkpoint challenge detected, waiting for manual resolution", "timeout", challengeWait)
		_ = s.run(ctx,
			chromedp.Evaluate(`(() => {
			  const b = document.querySelector('[data-theme="home.verifyButton"]');
			  if (!b) return false;
			  b.scrollIntoView({behavior:'instant', block:'center'});
			  b.click();
			  return true;
			})()`, nil),
			chromedp.Sleep(1200*time.Millisecond),
		)
		if err := s.waitUntil(ctx, challengeWait, `(() => {
		  if ((location.href || "").includes("/checkpoint/challenge/")) return false;
		  if (document.querySelector('input[placeholder*="Search"], input[placeholder*="Pesquisar"]')) return true;
		  return (location.href || "").includes("/feed/");
		})()`); err != nil {
			return fmt.Errorf("browser: checkpoint: %w", err)
		}
	}

	if s.countJS(ctx, `input[autocomplete="one-time-code"], input[name*="pin"]`) > 0 {
		s.log.Info("browser: two-factor prompt detected, waiting for code", "timeout", captchaTimeout)
		if err := s.waitGone(ctx, captchaTimeout, `input[autocomplete="one-time-code"], input[name*="pin"]`); err != nil {
			return fmt.Errorf("browser: two-factor: %w", err)
		}
	}

	if err := s.run(ctx,
		chromedp.Navigate(feedURL),
		chromedp.WaitReady(`body`, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("browser: open feed: %w", err)
	}
	s.log.Info("browser: logged in")
	return nil
}

// SearchURL builds the people search URL for query, optionally pinned to a
// geo URN.
func SearchURL(base, query, geoURN string) string {
	v := url.Values{}
	v.Set("keywords", SanitizeQuotes(query))
	v.Set("origin", "FACETED_SEARCH")
	if geoURN != "" {
		v.Set("geoUrn", fmt.Sprintf(`["%s"]`, geoURN))
	}
	return strings.TrimRight(base, "/") + "/search/results/people/?" + v.Encode()
}

// Search opens the people search for query and waits for the result list.
func (s *Session) Search(ctx context.Context, base, query, geoURN string) error {
	target := SearchURL(base, query, geoURN)
	s.log.Info("browser: opening search", "url", target)
	if err := s.run(ctx,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		waitDOMComplete(),
		chromedp.Sleep(500*time.Millisecond),
		waitForResults(),
	); err != nil {
		return fmt.Errorf("browser: search %q: %w", query, err)
	}
	return nil
}

// NextPage clicks the pagination "next" control. It reports false when the
// control is missing, which marks the last results page.
func (s *Session) NextPage(ctx context.Context) bool {
	const sel = `button[aria-label="Next"], a[aria-label="Next"], button[aria-label="Avançar"], a[aria-label="Avançar"]`
	scoped, release := s.scope(ctx)
	defer release()
	waitCtx, cancel := context.WithTimeout(scoped, 5*time.Second)
	defer cancel()
	if err := chromedp.Run(waitCtx, chromedp.WaitVisible(sel, chromedp.ByQuery)); err != nil {
		return false
	}
	if err := s.run(ctx, chromedp.Click(sel, chromedp.ByQuery), waitForResults()); err != nil {
		s.log.Warn("browser: next page failed", "error", err)
		return false
	}
	return true
}

func waitDOMComplete() chromedp.Action {
	return chromedp.EvaluateAsDevTools(`new Promise(r => {
	  if (document.readyState === 'complete') return r(true);
	  window.addEventListener('load', () => r(true), {once: true});
	})`, nil)
}

func waitForResults() chromedp.Action {
	const sel = `main div[role="listitem"],
	  main .search-results-container,
	  main ul.reusable-search__entity-result-list,
	  main [data-view-name="search-entity-result-universal-template"],
	  main [data-chameleon-result-urn]`
	return chromedp.WaitVisible(sel, chromedp.ByQuery)
}

func (s *Session) isCheckpoint(ctx context.Context) bool {
	var on bool
	_ = s.run(ctx, chromedp.Evaluate(`(() => {
	  if ((location.href || "").includes("/checkpoint/challenge/")) return true;
	  return !!document.querySelector('[data-theme="home.verifyButton"]');
	})()`, &on))
	return on
}

func (s *Session) countJS(ctx context.Context, css string) int {
	var n int
	_ = s.run(ctx, chromedp.Evaluate(fmt.Sprintf(`document.querySelectorAll(%q).length`, css), &n))
	return n
}

// waitUntil polls jsCond until it evaluates to true or timeout elapses.
func (s *Session) waitUntil(ctx context.Context, timeout time.Duration, jsCond string) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var ok bool
		if err := s.run(ctx, chromedp.Evaluate(jsCond, &ok)); err == nil && ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	return ErrTimeout
}

func (s *Session) waitGone(ctx context.Context, timeout time.Duration, css string) error {
	return s.waitUntil(ctx, timeout, fmt.Sprintf(`document.querySelectorAll(%q).length === 0`, css))
}

// SanitizeQuotes replaces typographic quotes with their ASCII forms so
// quoted search phrases survive copy and paste.
func SanitizeQuotes(s string) string {
	return quoteReplacer.Replace(s)
}

var quoteReplacer = strings.NewReplacer(
	"“", `"`, "”", `"`, "‟", `"`, "〝", `"`, "〞", `"`,
	"‘", "'", "’", "'", "‛", "'", "‚", "'", "‹", "'", "›", "'",
)
