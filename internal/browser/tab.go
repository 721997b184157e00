// File: internal/browser/tab.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// editableJS resolves a locator in the page and reports whether the element
// currently accepts text input.
const editableJS = `(sel, xpath) => {
	const el = xpath
		? document.evaluate(sel, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue
		: document.querySelector(sel);
	if (!el || el.disabled || el.readOnly) return false;
	return el.isContentEditable || ['INPUT', 'TEXTAREA', 'SELECT'].includes(el.tagName);
}`

// Tab is a Page backed by one chromedp target.
type Tab struct {
	ctx    context.Context
	logger *zap.Logger
	idle   *idleTracker
}

var _ Page = (*Tab)(nil)

func newTab(ctx context.Context, logger *zap.Logger) *Tab {
	return &Tab{
		ctx:    ctx,
		logger: logger.Named("tab"),
		idle:   newIdleTracker(logger),
	}
}

// run executes actions on the tab, bounded by both the tab lifetime and ctx.
func (t *Tab) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(t.ctx, ctx)
	defer cancel()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		// Report the caller's deadline rather than chromedp's generic cancellation.
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return fmt.Errorf("%w: %v", ctxErr, err)
		}
		return err
	}
	return nil
}

// queryOpts picks the chromedp query strategy for a locator.
func queryOpts(locator string, extra ...chromedp.QueryOption) []chromedp.QueryOption {
	opts := []chromedp.QueryOption{chromedp.ByQuery}
	if IsXPath(locator) {
		opts = []chromedp.QueryOption{chromedp.BySearch}
	}
	return append(opts, extra...)
}

func (t *Tab) Navigate(ctx context.Context, url string) error {
	domReady := make(chan struct{}, 1)
	listenCtx, stopListening := context.WithCancel(t.ctx)
	defer stopListening()
	chromedp.ListenTarget(listenCtx, func(ev any) {
		if _, ok := ev.(*page.EventDomContentEventFired); ok {
			select {
			case domReady <- struct{}{}:
			default:
			}
		}
	})

	t.idle.reset()
	err := t.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errorText, _, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("page load error %s", errorText)
		}
		return nil
	}))
	if err != nil {
		return err
	}

	select {
	case <-domReady:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.ctx.Done():
		return t.ctx.Err()
	}
}

func (t *Tab) Reload(ctx context.Context) error {
	t.idle.reset()
	return t.run(ctx, chromedp.Reload())
}

func (t *Tab) WaitPresent(ctx context.Context, locator string) error {
	return t.run(ctx, chromedp.WaitReady(locator, queryOpts(locator)...))
}

func (t *Tab) WaitVisible(ctx context.Context, locator string) error {
	return t.run(ctx, chromedp.WaitVisible(locator, queryOpts(locator)...))
}

func (t *Tab) WaitEnabled(ctx context.Context, locator string) error {
	return t.run(ctx, chromedp.WaitEnabled(locator, queryOpts(locator)...))
}

func (t *Tab) WaitEditable(ctx context.Context, locator string) error {
	// The poll has its own timer; align it with the caller's deadline.
	timeout := time.Duration(0)
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return context.DeadlineExceeded
		}
	}
	var editable bool
	err := t.run(ctx, chromedp.PollFunction(editableJS, &editable,
		chromedp.WithPollingArgs(locator, IsXPath(locator)),
		chromedp.WithPollingTimeout(timeout),
	))
	if errors.Is(err, chromedp.ErrPollingTimeout) {
		return fmt.Errorf("element %q never became editable: %w", locator, context.DeadlineExceeded)
	}
	return err
}

func (t *Tab) Click(ctx context.Context, locator string) error {
	return t.run(ctx, chromedp.Click(locator, queryOpts(locator)...))
}

func (t *Tab) Focus(ctx context.Context, locator string) error {
	return t.run(ctx, chromedp.Focus(locator, queryOpts(locator)...))
}

func (t *Tab) Clear(ctx context.Context, locator string) error {
	return t.run(ctx, chromedp.Clear(locator, queryOpts(locator)...))
}

func (t *Tab) TypeText(ctx context.Context, text string) error {
	return t.run(ctx, chromedp.KeyEvent(text))
}

func (t *Tab) Press(ctx context.Context, locator, key string) error {
	return t.run(ctx, chromedp.SendKeys(locator, key, queryOpts(locator)...))
}

func (t *Tab) ScrollIntoView(ctx context.Context, locator string) error {
	return t.run(ctx, chromedp.ScrollIntoView(locator, queryOpts(locator)...))
}

func (t *Tab) Value(ctx context.Context, locator string) (string, error) {
	var value string
	if err := t.run(ctx, chromedp.Value(locator, &value, queryOpts(locator)...)); err != nil {
		return "", err
	}
	return value, nil
}

func (t *Tab) Count(ctx context.Context, locator string) (int, error) {
	var nodes []*cdp.Node
	opts := []chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}
	if IsXPath(locator) {
		opts = []chromedp.QueryOption{chromedp.BySearch, chromedp.AtLeast(0)}
	}
	if err := t.run(ctx, chromedp.Nodes(locator, &nodes, opts...)); err != nil {
		return 0, err
	}
	return len(nodes), nil
}

func (t *Tab) Evaluate(ctx context.Context, script string, res any) error {
	return t.run(ctx, chromedp.Evaluate(script, res))
}

func (t *Tab) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// Quality 100 selects PNG.
	if err := t.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (t *Tab) WaitNetworkIdle(ctx context.Context, quiet time.Duration) error {
	waitCtx, cancel := CombineContext(t.ctx, ctx)
	defer cancel()
	return t.idle.wait(waitCtx, quiet)
}
