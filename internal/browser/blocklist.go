// File: internal/browser/blocklist.go
package browser

import (
	"context"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Blocklist decides which requests are aborted. A request is blocked when its
// URL contains any of the patterns, compared case-insensitively.
type Blocklist struct {
	patterns []string
}

// NewBlocklist builds a Blocklist, skipping empty patterns.
func NewBlocklist(patterns []string) *Blocklist {
	b := &Blocklist{}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			b.patterns = append(b.patterns, p)
		}
	}
	return b
}

// Blocked reports whether rawURL matches a pattern.
func (b *Blocklist) Blocked(rawURL string) bool {
	if b == nil {
		return false
	}
	u := strings.ToLower(rawURL)
	for _, p := range b.patterns {
		if strings.Contains(u, p) {
			return true
		}
	}
	return false
}

// Len returns the number of active patterns.
func (b *Blocklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.patterns)
}

// interceptor answers Fetch.requestPaused events: blocklisted requests fail
// with BlockedByClient, everything else continues untouched.
type interceptor struct {
	tabCtx    context.Context
	blocklist *Blocklist
	logger    *zap.Logger
}

func newInterceptor(tabCtx context.Context, blocklist *Blocklist, logger *zap.Logger) *interceptor {
	return &interceptor{
		tabCtx:    tabCtx,
		blocklist: blocklist,
		logger:    logger.Named("blocklist"),
	}
}

// enable turns on request interception for every request of the tab.
func (i *interceptor) enable() chromedp.Action {
	return fetch.Enable()
}

// handle must not block the event loop, so the reply is sent from its own goroutine.
func (i *interceptor) handle(ev any) {
	e, ok := ev.(*fetch.EventRequestPaused)
	if !ok {
		return
	}
	go i.reply(e)
}

func (i *interceptor) reply(e *fetch.EventRequestPaused) {
	c := chromedp.FromContext(i.tabCtx)
	if c == nil || c.Target == nil {
		return
	}
	ctx := cdp.WithExecutor(i.tabCtx, c.Target)

	var err error
	if e.Request != nil && i.blocklist.Blocked(e.Request.URL) {
		i.logger.Debug("Blocked request.", zap.String("url", e.Request.URL))
		err = fetch.FailRequest(e.RequestID, network.ErrorReasonBlockedByClient).Do(ctx)
	} else {
		err = fetch.ContinueRequest(e.RequestID).Do(ctx)
	}
	if err != nil && i.tabCtx.Err() == nil {
		i.logger.Debug("Failed to answer paused request.", zap.String("request_id", string(e.RequestID)), zap.Error(err))
	}
}
