// File: internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/searchcheck/internal/browser/stealth"
	"github.com/xkilldash9x/searchcheck/internal/config"
)

// maximizeJS stretches the window to the available screen size.
const maximizeJS = `(() => { window.moveTo(0, 0); window.resizeTo(screen.availWidth, screen.availHeight); return true; })()`

// closeStepTimeout bounds each teardown step so a hung browser cannot stall the run.
const closeStepTimeout = 10 * time.Second

// Options configures Launch.
type Options struct {
	Browser   config.BrowserConfig
	Persona   stealth.Persona
	Blocklist *Blocklist
}

// OptionsFromConfig derives launch options from the run configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Browser:   cfg.Browser,
		Persona:   stealth.FromConfig(cfg.Browser),
		Blocklist: NewBlocklist(cfg.Blocklist),
	}
}

// LaunchFlags returns the Chrome command-line flags for cfg. Automation
// signals are switched off and the sandbox and /dev/shm limits disabled.
func LaunchFlags(cfg config.BrowserConfig) map[string]any {
	flags := map[string]any{
		"disable-blink-features": "AutomationControlled",
		"enable-automation":      false,
		"no-sandbox":             true,
		"disable-dev-shm-usage":  true,
		"headless":               cfg.Headless,
		"hide-scrollbars":        cfg.Headless,
		"mute-audio":             cfg.Headless,
		"window-size":            fmt.Sprintf("%d,%d", cfg.Viewport.Width, cfg.Viewport.Height),
		"start-maximized":        true,
	}
	for _, arg := range cfg.Args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name == "" {
			continue
		}
		if hasValue {
			flags[name] = value
		} else {
			flags[name] = true
		}
	}
	return flags
}

// AllocatorOptions turns cfg into exec allocator options on top of chromedp's defaults.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)

	flags := LaunchFlags(cfg)
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		opts = append(opts, chromedp.Flag(name, flags[name]))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// Session owns the driver (allocator), one browser, one browser context and
// one page for the lifetime of a run.
type Session struct {
	logger *zap.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	contextID     cdp.BrowserContextID
	tabCtx        context.Context
	tabCancel     context.CancelFunc
	tab           *Tab

	closeOnce sync.Once
	closeErr  error
}

// Launch starts Chrome and provisions the context and page. On failure
// everything started so far is released.
func Launch(ctx context.Context, opts Options, logger *zap.Logger) (_ *Session, err error) {
	logger = logger.Named("browser")
	s := &Session{logger: logger}
	defer func() {
		if err != nil {
			_ = s.Close(context.Background())
		}
	}()

	// The browser lives as long as the session, not as long as ctx.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), AllocatorOptions(opts.Browser)...)
	s.allocCancel = allocCancel

	s.browserCtx, s.browserCancel = chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf),
		chromedp.WithErrorf(logger.Sugar().Debugf),
	)
	if err := runBounded(ctx, s.browserCtx); err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	logger.Info("Browser started.", zap.Bool("headless", opts.Browser.Headless))

	c := chromedp.FromContext(s.browserCtx)
	contextID, err := target.CreateBrowserContext().Do(cdp.WithExecutor(s.browserCtx, c.Browser))
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	s.contextID = contextID

	s.tabCtx, s.tabCancel = chromedp.NewContext(s.browserCtx, chromedp.WithExistingBrowserContext(s.contextID))
	s.tab = newTab(s.tabCtx, logger)

	// Listeners go in before the target exists so no early event is missed.
	icpt := newInterceptor(s.tabCtx, opts.Blocklist, logger)
	chromedp.ListenTarget(s.tabCtx, func(ev any) {
		s.tab.idle.handle(ev)
		icpt.handle(ev)
	})

	viewport := opts.Browser.Viewport
	setup := chromedp.Tasks{
		network.Enable(),
		icpt.enable(),
		stealth.Apply(opts.Persona, logger),
		chromedp.EmulateViewport(viewport.Width, viewport.Height),
	}
	if err := runBounded(ctx, s.tabCtx, setup); err != nil {
		return nil, fmt.Errorf("failed to prepare page: %w", err)
	}

	var maximized bool
	if err := runBounded(ctx, s.tabCtx, chromedp.Evaluate(maximizeJS, &maximized)); err != nil {
		// Headless windows cannot be resized; the emulated viewport still applies.
		logger.Debug("Window maximize script failed.", zap.Error(err))
	}

	s.closeDefaultTarget()

	logger.Info("Browser session ready.",
		zap.String("browser_context", string(s.contextID)),
		zap.Int("blocked_patterns", opts.Blocklist.Len()),
	)
	return s, nil
}

// closeDefaultTarget closes the blank tab Chrome opens in its default
// context, leaving the session's own page as the only one. Failing to close
// it is harmless.
func (s *Session) closeDefaultTarget() {
	c := chromedp.FromContext(s.browserCtx)
	if c == nil || c.Target == nil || c.Browser == nil {
		return
	}
	closeCtx, cancel := context.WithTimeout(s.browserCtx, closeStepTimeout)
	defer cancel()
	if err := target.CloseTarget(c.Target.TargetID).Do(cdp.WithExecutor(closeCtx, c.Browser)); err != nil {
		s.logger.Debug("Could not close the default tab.", zap.Error(err))
	}
}

// runBounded runs actions in a chromedp context while honoring the deadline
// and cancellation of ctx.
func runBounded(ctx, chromeCtx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(chromeCtx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// Page returns the session's single page.
func (s *Session) Page() Page {
	return s.tab
}

// Close tears the session down: page, then context, then browser, then
// driver. Every step runs even when an earlier one fails. Only the first
// call does any work.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.closeErr = s.close(ctx)
	})
	return s.closeErr
}

func (s *Session) close(ctx context.Context) error {
	var errs []error
	step := func(name string, fn func(ctx context.Context) error) {
		stepCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeStepTimeout)
		defer cancel()
		if err := fn(stepCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("Teardown step failed.", zap.String("step", name), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
			return
		}
		s.logger.Debug("Teardown step done.", zap.String("step", name))
	}

	if s.tabCtx != nil {
		step("page", func(context.Context) error {
			err := chromedp.Cancel(s.tabCtx)
			s.tabCancel()
			return err
		})
	}
	if s.contextID != "" {
		step("context", func(ctx context.Context) error {
			c := chromedp.FromContext(s.browserCtx)
			if c == nil || c.Browser == nil {
				return nil
			}
			return target.DisposeBrowserContext(s.contextID).Do(cdp.WithExecutor(ctx, c.Browser))
		})
	}
	if s.browserCtx != nil {
		step("browser", func(context.Context) error {
			err := chromedp.Cancel(s.browserCtx)
			s.browserCancel()
			return err
		})
	}
	if s.allocCancel != nil {
		step("driver", func(context.Context) error {
			s.allocCancel()
			return nil
		})
	}
	return errors.Join(errs...)
}
