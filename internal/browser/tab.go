// Package browser drives Chrome through chromedp: it launches the browser,
// signs in, opens the people search and exposes the rendered tab to the
// reveal and extract stages.
package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/chromedp"
)

// Tab is a chromedp-backed rendered page. It satisfies the page interfaces
// consumed by the reveal and pipeline packages.
type Tab struct {
	ctx context.Context
}

// NewTab wraps a chromedp context.
func NewTab(chromeCtx context.Context) *Tab {
	return &Tab{ctx: chromeCtx}
}

// Context returns the underlying chromedp context.
func (t *Tab) Context() context.Context {
	return t.ctx
}

// scope derives a context from the tab that is also canceled when ctx is
// done. Canceling it aborts the running actions without closing the tab.
func (t *Tab) scope(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancelCause(t.ctx)
	stop := context.AfterFunc(ctx, func() { cancel(context.Cause(ctx)) })
	return runCtx, func() {
		stop()
		cancel(context.Canceled)
	}
}

func (t *Tab) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := t.scope(ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// URL returns the current location.
func (t *Tab) URL(ctx context.Context) (string, error) {
	var loc string
	if err := t.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("browser: location: %w", err)
	}
	return loc, nil
}

// HTML returns the outer HTML of the document element.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	var html string
	if err := t.run(ctx, chromedp.EvaluateAsDevTools(`document.documentElement.outerHTML`, &html)); err != nil {
		return "", fmt.Errorf("browser: outer html: %w", err)
	}
	return html, nil
}

// VisibleText returns the rendered text of the body.
func (t *Tab) VisibleText(ctx context.Context) (string, error) {
	var text string
	if err := t.run(ctx, chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text)); err != nil {
		return "", fmt.Errorf("browser: inner text: %w", err)
	}
	return text, nil
}

// ScrollHeight returns the document scroll height in pixels.
func (t *Tab) ScrollHeight(ctx context.Context) (int64, error) {
	var h int64
	if err := t.run(ctx, chromedp.Evaluate(`document.documentElement.scrollHeight`, &h)); err != nil {
		return 0, fmt.Errorf("browser: scroll height: %w", err)
	}
	return h, nil
}

// ScrollTo scrolls the window to an absolute offset.
func (t *Tab) ScrollTo(ctx context.Context, y int64) error {
	js := fmt.Sprintf(`window.scrollTo({top: %d, behavior: 'smooth'})`, y)
	if err := t.run(ctx, chromedp.Evaluate(js, nil)); err != nil {
		return fmt.Errorf("browser: scroll to %d: %w", y, err)
	}
	return nil
}

// ScrollBy scrolls the window by a relative offset.
func (t *Tab) ScrollBy(ctx context.Context, dy int64) error {
	js := fmt.Sprintf(`window.scrollBy({top: %d, behavior: 'smooth'})`, dy)
	if err := t.run(ctx, chromedp.Evaluate(js, nil)); err != nil {
		return fmt.Errorf("browser: scroll by %d: %w", dy, err)
	}
	return nil
}

// Count returns the number of elements matched by the first selector of the
// chain that matches anything.
func (t *Tab) Count(ctx context.Context, selectors []string) (int, error) {
	list, err := json.Marshal(selectors)
	if err != nil {
		return 0, err
	}
	js := fmt.Sprintf(`(() => {
	  for (const sel of %s) {
	    const n = document.querySelectorAll(sel).length;
	    if (n > 0) return n;
	  }
	  return 0;
	})()`, list)

	var n int
	if err := t.run(ctx, chromedp.Evaluate(js, &n)); err != nil {
		return 0, fmt.Errorf("browser: count: %w", err)
	}
	return n, nil
}
