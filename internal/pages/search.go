// Package pages holds page objects: the locators and compound business
// actions of one page each. Browser lifecycle lives elsewhere.
package pages

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/searchcheck/internal/actions"
	"github.com/xkilldash9x/searchcheck/internal/browser"
	"github.com/xkilldash9x/searchcheck/internal/config"
	"github.com/xkilldash9x/searchcheck/internal/failures"
)

// Locators of the search page. They are only checked when used.
const (
	SearchInput      = `//textarea[@id="chat-textarea"]`
	ResultsContainer = `#content_left`
	ResultTitles     = `//div[@id='content_left']//h3/a`
)

// Timing holds the pauses specific to the search page.
type Timing struct {
	TypeDelay    time.Duration
	Debounce     time.Duration
	NetworkQuiet time.Duration
}

// TimingFromConfig extracts page timing from the run configuration.
func TimingFromConfig(cfg *config.Config) Timing {
	return Timing{
		TypeDelay:    cfg.Actions.SearchDelay,
		Debounce:     cfg.Actions.ClickDebounce,
		NetworkQuiet: cfg.Actions.NetworkQuiet,
	}
}

// SearchPage is the page object for the search engine's landing and result pages.
type SearchPage struct {
	actor   *actions.Actor
	page    browser.Page
	baseURL string
	timing  Timing
	logger  *zap.Logger
}

// NewSearchPage creates a SearchPage driven by actor.
func NewSearchPage(actor *actions.Actor, baseURL string, timing Timing, logger *zap.Logger) *SearchPage {
	return &SearchPage{
		actor:   actor,
		page:    actor.Page(),
		baseURL: baseURL,
		timing:  timing,
		logger:  logger.Named("search_page"),
	}
}

// Open navigates to the base URL and activates the search input.
func (p *SearchPage) Open(ctx context.Context) error {
	if err := p.actor.Navigate(ctx, p.baseURL); err != nil {
		p.logger.Error("Failed to open search page.", zap.Error(err))
		return err
	}

	if err := p.bounded(ctx, func(ctx context.Context) error {
		return p.page.WaitPresent(ctx, SearchInput)
	}); err != nil {
		return p.fail("open", SearchInput, err)
	}
	if err := p.bounded(ctx, func(ctx context.Context) error {
		return p.page.ScrollIntoView(ctx, SearchInput)
	}); err != nil {
		return p.fail("open", SearchInput, err)
	}
	// Clicking forces the input into its active state.
	if err := p.actor.Click(ctx, SearchInput); err != nil {
		p.logger.Error("Failed to activate search input.", zap.Error(err))
		return err
	}
	if err := p.bounded(ctx, func(ctx context.Context) error {
		return p.page.WaitEditable(ctx, SearchInput)
	}); err != nil {
		return p.fail("open", SearchInput, err)
	}

	p.logger.Info("Search page opened.", zap.String("url", p.baseURL))
	return nil
}

// Search types keyword into the input, submits it and waits for the results.
func (p *SearchPage) Search(ctx context.Context, keyword string) error {
	if err := p.search(ctx, keyword); err != nil {
		p.logger.Error("Search failed.", zap.String("keyword", keyword), zap.Error(err))
		p.actor.Screenshot(ctx, "search_fail")
		return failures.Tag("search", SearchInput, err)
	}
	p.logger.Info("Search submitted.", zap.String("keyword", keyword))
	return nil
}

func (p *SearchPage) search(ctx context.Context, keyword string) error {
	if err := p.actor.Click(ctx, SearchInput); err != nil {
		return err
	}
	if err := p.bounded(ctx, func(ctx context.Context) error {
		return p.page.Clear(ctx, SearchInput)
	}); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	// Typing is paced per rune, so long keywords get a proportional budget.
	typeCtx, cancel := p.actor.TypingBound(ctx, keyword, p.timing.TypeDelay)
	err := p.actor.Type(typeCtx, SearchInput, keyword, p.timing.TypeDelay)
	cancel()
	if err != nil {
		return fmt.Errorf("type: %w", err)
	}
	if err := p.bounded(ctx, func(ctx context.Context) error {
		return p.page.Press(ctx, SearchInput, kb.Enter)
	}); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if err := p.bounded(ctx, func(ctx context.Context) error {
		return p.page.WaitVisible(ctx, ResultsContainer)
	}); err != nil {
		return failures.Action("wait results", ResultsContainer, err)
	}
	return nil
}

// InputValue reads the current content of the search input.
func (p *SearchPage) InputValue(ctx context.Context) (string, error) {
	var value string
	err := p.bounded(ctx, func(ctx context.Context) error {
		v, err := p.page.Value(ctx, SearchInput)
		value = v
		return err
	})
	if err != nil {
		return "", failures.Tag("read input", SearchInput, err)
	}
	return value, nil
}

// ResultCount returns how many result titles are rendered right now.
func (p *SearchPage) ResultCount(ctx context.Context) (int, error) {
	var n int
	err := p.bounded(ctx, func(ctx context.Context) error {
		count, err := p.page.Count(ctx, ResultTitles)
		n = count
		return err
	})
	return n, err
}

// ClickResult clicks the index-th (1-based) result title and waits for the
// network to go idle. Too few results is a precondition failure and is not
// retried.
func (p *SearchPage) ClickResult(ctx context.Context, index int) error {
	if err := p.clickResult(ctx, index); err != nil {
		p.logger.Error("Failed to click result.", zap.Int("index", index), zap.Error(err))
		p.actor.Screenshot(ctx, fmt.Sprintf("click_result_%d_fail", index))
		return failures.Tag("click_result", ResultTitles, err)
	}
	p.logger.Info("Clicked result.", zap.Int("index", index))
	return nil
}

func (p *SearchPage) clickResult(ctx context.Context, index int) error {
	if index < 1 {
		return failures.Precondition("click_result", "result index must be at least 1, got %d", index)
	}
	count, err := p.ResultCount(ctx)
	if err != nil {
		return fmt.Errorf("count results: %w", err)
	}
	if count < index {
		return failures.Precondition("click_result", "only %d results rendered, cannot click result %d", count, index)
	}

	target, err := browser.Nth(ResultTitles, index)
	if err != nil {
		return err
	}
	if err := p.bounded(ctx, func(ctx context.Context) error {
		if err := p.page.WaitVisible(ctx, target); err != nil {
			return fmt.Errorf("result not visible: %w", err)
		}
		return p.page.ScrollIntoView(ctx, target)
	}); err != nil {
		return err
	}
	// Let the layout settle after scrolling.
	if err := p.actor.Pause(ctx, p.timing.Debounce); err != nil {
		return err
	}
	if err := p.bounded(ctx, func(ctx context.Context) error {
		return p.page.Click(ctx, target)
	}); err != nil {
		return failures.Action("click", target, err)
	}
	if err := p.bounded(ctx, func(ctx context.Context) error {
		return p.page.WaitNetworkIdle(ctx, p.timing.NetworkQuiet)
	}); err != nil {
		return failures.Action("wait network idle", target, err)
	}
	return nil
}

// bounded runs fn under the action timeout.
func (p *SearchPage) bounded(ctx context.Context, fn func(ctx context.Context) error) error {
	bctx, cancel := p.actor.Bound(ctx)
	defer cancel()
	return fn(bctx)
}

// fail logs a failed step of Open and tags it as an action failure.
func (p *SearchPage) fail(op, locator string, err error) error {
	ferr := failures.Action(op, locator, err)
	p.logger.Error("Search page step failed.", zap.String("op", op), zap.Error(ferr))
	return ferr
}
