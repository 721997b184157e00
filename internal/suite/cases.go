// Package suite holds the search cases and runs them against a fixture
// session, recording every outcome.
package suite

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/searchcheck/internal/actions"
	"github.com/xkilldash9x/searchcheck/internal/browser"
	"github.com/xkilldash9x/searchcheck/internal/config"
	"github.com/xkilldash9x/searchcheck/internal/dataset"
	"github.com/xkilldash9x/searchcheck/internal/failures"
	"github.com/xkilldash9x/searchcheck/internal/fixture"
	"github.com/xkilldash9x/searchcheck/internal/pages"
)

// SearchNthResultCase is the name prefix of the parametrized search case.
const SearchNthResultCase = "search_nth_result"

// Deps is what a case needs to build its page objects.
type Deps struct {
	BaseURL  string
	Settings actions.Settings
	Timing   pages.Timing
	Logger   *zap.Logger
	Options  []actions.Option
}

// DepsFromConfig derives case dependencies from the run configuration.
func DepsFromConfig(cfg *config.Config, logger *zap.Logger) Deps {
	return Deps{
		BaseURL:  cfg.BaseURL,
		Settings: actions.SettingsFromConfig(cfg),
		Timing:   pages.TimingFromConfig(cfg),
		Logger:   logger,
	}
}

// CaseName returns the reported name of the case for c.
func CaseName(c dataset.Case) string {
	return fmt.Sprintf("%s[%s]", SearchNthResultCase, c.ID())
}

// SearchNthResult opens the search page, searches for the keyword, checks
// the input still holds it and clicks the index-th result.
func SearchNthResult(deps Deps, c dataset.Case) fixture.CaseFunc {
	return func(ctx context.Context, page browser.Page) error {
		actor := actions.New(page, deps.Settings, deps.Logger, deps.Options...)
		search := pages.NewSearchPage(actor, deps.BaseURL, deps.Timing, deps.Logger)

		if err := search.Open(ctx); err != nil {
			return err
		}
		if err := search.Search(ctx, c.Keyword); err != nil {
			return err
		}
		got, err := search.InputValue(ctx)
		if err != nil {
			return err
		}
		if got != c.Keyword {
			return &failures.Error{
				Kind:    failures.KindInputVerification,
				Op:      "assert input",
				Locator: pages.SearchInput,
				Msg:     fmt.Sprintf("input holds %q, want %q", got, c.Keyword),
			}
		}
		if err := search.ClickResult(ctx, c.Index); err != nil {
			return err
		}
		deps.Logger.Info("Case passed.", zap.String("keyword", c.Keyword), zap.Int("index", c.Index))
		return nil
	}
}
