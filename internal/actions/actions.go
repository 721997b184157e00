// Package actions wraps raw page primitives into bounded, verified UI actions.
// Every action that fails attempts a screenshot before returning its error;
// screenshot failures are logged and never returned.
package actions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/searchcheck/internal/browser"
	"github.com/xkilldash9x/searchcheck/internal/config"
	"github.com/xkilldash9x/searchcheck/internal/failures"
)

// screenshotLayout is the timestamp suffix of screenshot files.
const screenshotLayout = "20060102_150405"

var prefixSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Settings holds the bounds and pacing of the actions.
type Settings struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	KeystrokeDelay time.Duration
	ScreenshotDir  string
}

// SettingsFromConfig extracts action settings from the run configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Timeout:        cfg.WaitTimeout(),
		MaxRetries:     cfg.Actions.MaxRetries,
		RetryBackoff:   cfg.Actions.RetryBackoff,
		KeystrokeDelay: cfg.Actions.KeystrokeDelay,
		ScreenshotDir:  cfg.Paths.Screenshots,
	}
}

// Option customizes an Actor.
type Option func(*Actor)

// WithSleep replaces the backoff sleep.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(a *Actor) { a.sleep = sleep }
}

// WithClock replaces the clock used for screenshot names.
func WithClock(now func() time.Time) Option {
	return func(a *Actor) { a.now = now }
}

// Actor performs verified actions against one page.
type Actor struct {
	page     browser.Page
	settings Settings
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

// New creates an Actor for page.
func New(page browser.Page, settings Settings, logger *zap.Logger, opts ...Option) *Actor {
	if settings.MaxRetries < 1 {
		settings.MaxRetries = 1
	}
	a := &Actor{
		page:     page,
		settings: settings,
		logger:   logger.Named("actions"),
		sleep:    Sleep,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Page exposes the underlying page for primitives that need no wrapping.
func (a *Actor) Page() browser.Page { return a.page }

// Bound derives a context limited by the configured timeout.
func (a *Actor) Bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.settings.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.settings.Timeout)
}

// TypingBound derives a context for typing text at delay per rune. The
// keystroke pacing gets its own budget on top of the configured timeout.
func (a *Actor) TypingBound(ctx context.Context, text string, delay time.Duration) (context.Context, context.CancelFunc) {
	if a.settings.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	budget := a.settings.Timeout
	if delay > 0 {
		budget += time.Duration(utf8.RuneCountInString(text)) * delay
	}
	return context.WithTimeout(ctx, budget)
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pause waits for d using the Actor's sleep function.
func (a *Actor) Pause(ctx context.Context, d time.Duration) error {
	return a.sleep(ctx, d)
}

// Navigate loads url and waits for the content-parsed signal.
func (a *Actor) Navigate(ctx context.Context, url string) error {
	a.logger.Info("Navigating.", zap.String("url", url))

	navCtx, cancel := a.Bound(ctx)
	defer cancel()
	if err := a.page.Navigate(navCtx, url); err != nil {
		ferr := failures.Navigation(url, err)
		a.logger.Error("Navigation failed.", zap.String("url", url), zap.Error(err))
		a.Screenshot(ctx, "navigate_fail")
		return ferr
	}
	return nil
}

// Click waits for locator to be enabled, then clicks it. Both steps get the
// full timeout.
func (a *Actor) Click(ctx context.Context, locator string) error {
	if err := a.click(ctx, locator); err != nil {
		ferr := failures.Action("click", locator, err)
		a.logger.Error("Click failed.", zap.String("locator", locator), zap.Error(err))
		a.Screenshot(ctx, "click_fail")
		return ferr
	}
	a.logger.Debug("Clicked.", zap.String("locator", locator))
	return nil
}

func (a *Actor) click(ctx context.Context, locator string) error {
	waitCtx, cancel := a.Bound(ctx)
	defer cancel()
	if err := a.page.WaitEnabled(waitCtx, locator); err != nil {
		return fmt.Errorf("element not enabled: %w", err)
	}

	clickCtx, cancelClick := a.Bound(ctx)
	defer cancelClick()
	return a.page.Click(clickCtx, locator)
}

// FillWithRetry types text into locator and verifies it by reading the value
// back. A mismatch or a failed step is retried after RetryBackoff, for at
// most MaxRetries attempts. Only the final failure takes a screenshot.
func (a *Actor) FillWithRetry(ctx context.Context, locator, text string) error {
	attempts := a.settings.MaxRetries
	logger := a.logger.With(zap.String("locator", locator))

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := a.sleep(ctx, a.settings.RetryBackoff); err != nil {
				lastErr = err
				break
			}
		}

		got, err := a.fillOnce(ctx, locator, text)
		if err == nil && got == text {
			logger.Debug("Filled input.", zap.Int("attempt", attempt))
			return nil
		}
		if err == nil {
			err = fmt.Errorf("read back %q, want %q", got, text)
		}
		lastErr = err

		if attempt < attempts {
			logger.Warn("Input verification failed, retrying.",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", attempts),
				zap.Error(err),
			)
		}
		if ctx.Err() != nil {
			break
		}
	}

	ferr := failures.InputVerification(locator, text, attempts, lastErr)
	logger.Error("Input verification exhausted retries.", zap.String("text", text), zap.Error(lastErr))
	a.Screenshot(ctx, "fill_fail")
	return ferr
}

// fillOnce runs one wait, clear, type and read-back cycle. Typing is bounded
// by TypingBound, every other step by the timeout.
func (a *Actor) fillOnce(ctx context.Context, locator, text string) (string, error) {
	if err := a.bounded(ctx, func(ctx context.Context) error {
		if err := a.page.WaitEditable(ctx, locator); err != nil {
			return fmt.Errorf("element not editable: %w", err)
		}
		if err := a.page.Clear(ctx, locator); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		return nil
	}); err != nil {
		return "", err
	}

	typeCtx, cancel := a.TypingBound(ctx, text, a.settings.KeystrokeDelay)
	err := a.Type(typeCtx, locator, text, a.settings.KeystrokeDelay)
	cancel()
	if err != nil {
		return "", fmt.Errorf("type: %w", err)
	}

	var got string
	if err := a.bounded(ctx, func(ctx context.Context) error {
		v, err := a.page.Value(ctx, locator)
		got = v
		return err
	}); err != nil {
		return "", fmt.Errorf("read back: %w", err)
	}
	return got, nil
}

func (a *Actor) bounded(ctx context.Context, fn func(ctx context.Context) error) error {
	bctx, cancel := a.Bound(ctx)
	defer cancel()
	return fn(bctx)
}

// Type focuses locator and types text one rune at a time, at most one rune
// per delay. It takes no screenshot; callers own failure handling.
func (a *Actor) Type(ctx context.Context, locator, text string, delay time.Duration) error {
	if err := a.page.Focus(ctx, locator); err != nil {
		return err
	}
	limiter := newKeystrokeLimiter(delay)
	for _, r := range text {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		if err := a.page.TypeText(ctx, string(r)); err != nil {
			return err
		}
	}
	return nil
}

func newKeystrokeLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// Screenshot captures the full page to <dir>/<prefix>_<timestamp>.png and
// returns the path. It never fails: errors are logged and "" is returned.
// The capture runs even when ctx is already done.
func (a *Actor) Screenshot(ctx context.Context, prefix string) string {
	path := a.screenshotPath(prefix)
	logger := a.logger.With(zap.String("path", path))

	captureCtx, cancel := a.Bound(context.WithoutCancel(ctx))
	defer cancel()

	buf, err := a.capture(captureCtx)
	if err != nil {
		logger.Warn("Screenshot capture failed.", zap.Error(err))
		return ""
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Warn("Screenshot directory unavailable.", zap.Error(err))
		return ""
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		logger.Warn("Screenshot could not be written.", zap.Error(err))
		return ""
	}
	logger.Info("Screenshot saved.")
	return path
}

// capture converts a panic from a torn-down page into an error.
func (a *Actor) capture(ctx context.Context) (buf []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("screenshot panicked: %v", r)
		}
	}()
	if a.page == nil {
		return nil, fmt.Errorf("no page")
	}
	return a.page.Screenshot(ctx)
}

func (a *Actor) screenshotPath(prefix string) string {
	prefix = prefixSanitizer.ReplaceAllString(prefix, "_")
	if prefix == "" {
		prefix = "screenshot"
	}
	name := fmt.Sprintf("%s_%s.png", prefix, a.now().Format(screenshotLayout))
	return filepath.Join(a.settings.ScreenshotDir, name)
}
