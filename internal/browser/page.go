// File: internal/browser/page.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Page is the set of driver primitives the action layer builds on. A locator
// is either an XPath expression (starting with "/" or "(") or a CSS selector.
// None of the methods apply their own timeout; callers bound them through ctx.
type Page interface {
	// Navigate loads url and returns once DOMContentLoaded has fired.
	Navigate(ctx context.Context, url string) error
	// Reload reloads the current document.
	Reload(ctx context.Context) error

	WaitPresent(ctx context.Context, locator string) error
	WaitVisible(ctx context.Context, locator string) error
	WaitEnabled(ctx context.Context, locator string) error
	// WaitEditable waits until the element accepts text input.
	WaitEditable(ctx context.Context, locator string) error

	Click(ctx context.Context, locator string) error
	Focus(ctx context.Context, locator string) error
	Clear(ctx context.Context, locator string) error
	// TypeText dispatches key events for text into the focused element.
	TypeText(ctx context.Context, text string) error
	// Press sends a single key (see the kb package) to the element.
	Press(ctx context.Context, locator, key string) error
	ScrollIntoView(ctx context.Context, locator string) error

	Value(ctx context.Context, locator string) (string, error)
	// Count returns how many elements match locator right now, without waiting.
	Count(ctx context.Context, locator string) (int, error)
	Evaluate(ctx context.Context, script string, res any) error

	// Screenshot captures the full page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// WaitNetworkIdle returns once no request has been in flight for quiet.
	WaitNetworkIdle(ctx context.Context, quiet time.Duration) error
}

// IsXPath reports whether locator is an XPath expression.
func IsXPath(locator string) bool {
	l := strings.TrimSpace(locator)
	return strings.HasPrefix(l, "/") || strings.HasPrefix(l, "(") || strings.HasPrefix(l, "./")
}

// Nth returns a locator for the index-th (1-based) match of an XPath locator.
// CSS locators have no positional form and are rejected.
func Nth(locator string, index int) (string, error) {
	if index < 1 {
		return "", fmt.Errorf("index must be at least 1, got %d", index)
	}
	if !IsXPath(locator) {
		return "", fmt.Errorf("indexed access needs an XPath locator, got %q", locator)
	}
	return fmt.Sprintf("(%s)[%d]", locator, index), nil
}
