// File: internal/browser/netidle.go
package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"go.uber.org/zap"
)

// minIdlePoll keeps the poll ticker from spinning on tiny quiet windows.
const minIdlePoll = 10 * time.Millisecond

// idleTracker follows in-flight requests of one tab from Network domain
// events so WaitNetworkIdle can tell when a page transition has settled.
type idleTracker struct {
	logger *zap.Logger

	mu           sync.Mutex
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
	now          func() time.Time
}

func newIdleTracker(logger *zap.Logger) *idleTracker {
	return &idleTracker{
		logger:       logger.Named("netidle"),
		inflight:     make(map[network.RequestID]struct{}),
		lastActivity: time.Now(),
		now:          time.Now,
	}
}

// handle consumes a CDP event. Anything but request lifecycle events is ignored.
func (t *idleTracker) handle(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.started(e.RequestID)
	case *network.EventLoadingFinished:
		t.finished(e.RequestID)
	case *network.EventLoadingFailed:
		t.finished(e.RequestID)
	}
}

func (t *idleTracker) started(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight[id] = struct{}{}
	t.lastActivity = t.now()
}

func (t *idleTracker) finished(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inflight, id)
	t.lastActivity = t.now()
}

// snapshot returns the number of in-flight requests and the time since the
// last request started or ended.
func (t *idleTracker) snapshot() (int, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight), t.now().Sub(t.lastActivity)
}

// reset forgets every tracked request. Called on reload, where pending
// requests of the old document never report completion.
func (t *idleTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight = make(map[network.RequestID]struct{})
	t.lastActivity = t.now()
}

// wait polls until nothing has been in flight for quiet, or ctx ends.
func (t *idleTracker) wait(ctx context.Context, quiet time.Duration) error {
	interval := quiet / 2
	if interval < minIdlePoll {
		interval = minIdlePoll
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Debug("Network idle wait aborted.", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
			inflight, since := t.snapshot()
			if inflight > 0 {
				t.logger.Debug("Waiting for network idle...", zap.Int("inflight_requests", inflight))
				continue
			}
			if since >= quiet {
				return nil
			}
		}
	}
}
