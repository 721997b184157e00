// File: internal/browser/context.go
package browser

import "context"

// CombineContext returns a context that inherits values, deadline and
// cancellation from parent and is additionally canceled when secondary ends.
// chromedp needs the values of the tab context while callers supply the deadline.
func CombineContext(parent, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(secondary, cancel)
	return combined, func() {
		stop()
		cancel()
	}
}
