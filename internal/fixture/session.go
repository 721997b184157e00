// Package fixture owns the lifecycle around the cases: the once-per-run
// workspace, the shared browser session and the per-case reload.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/searchcheck/internal/browser"
	"github.com/xkilldash9x/searchcheck/internal/failures"
)

// State is the lifecycle state of a Session.
type State int32

const (
	StateUninitialized State = iota
	StateActive
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateTornDown:
		return "torn_down"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// BrowserSession is the browser resource a Session owns. *browser.Session
// satisfies it.
type BrowserSession interface {
	Page() browser.Page
	Close(ctx context.Context) error
}

// LaunchFunc starts a browser session.
type LaunchFunc func(ctx context.Context) (BrowserSession, error)

// BrowserLauncher returns a LaunchFunc backed by a real Chrome.
func BrowserLauncher(opts browser.Options, logger *zap.Logger) LaunchFunc {
	return func(ctx context.Context) (BrowserSession, error) {
		s, err := browser.Launch(ctx, opts, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// ErrNotActive is returned when the session is used outside its active state.
var ErrNotActive = errors.New("session is not active")

// CaseFunc is the body of one case. It receives the shared page.
type CaseFunc func(ctx context.Context, page browser.Page) error

// Session is the handle passed to every case. It moves from Uninitialized to
// Active to TornDown, entering each state once.
type Session struct {
	env           string
	launch        LaunchFunc
	reloadTimeout time.Duration
	logger        *zap.Logger

	mu      sync.Mutex
	state   State
	browser BrowserSession
}

// Option customizes a Session.
type Option func(*Session)

// WithReloadTimeout bounds the page reload that precedes every case.
func WithReloadTimeout(d time.Duration) Option {
	return func(s *Session) { s.reloadTimeout = d }
}

// NewSession creates an uninitialized session for env.
func NewSession(env string, launch LaunchFunc, logger *zap.Logger, opts ...Option) *Session {
	s := &Session{
		env:    env,
		launch: launch,
		logger: logger.Named("fixture"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Env is the environment name selected with --env.
func (s *Session) Env() string { return s.env }

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Page returns the shared page while the session is active.
func (s *Session) Page() (browser.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return nil, fmt.Errorf("page: %w (state %s)", ErrNotActive, s.state)
	}
	return s.browser.Page(), nil
}

// Open launches the browser. A session opens at most once; a failed launch
// leaves it torn down.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUninitialized {
		return failures.Precondition("open session", "session already %s", s.state)
	}

	s.logger.Info("Opening browser session.", zap.String("env", s.env))
	b, err := s.launch(ctx)
	if err != nil {
		s.state = StateTornDown
		return failures.Dependency("browser", err)
	}
	s.browser = b
	s.state = StateActive
	return nil
}

// Close releases the browser. Only the first call from the active state does
// any work; later calls return nil.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state
	s.state = StateTornDown
	if prev != StateActive {
		return nil
	}

	s.logger.Info("Closing browser session.")
	if err := s.browser.Close(ctx); err != nil {
		s.logger.Warn("Browser session closed with errors.", zap.Error(err))
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// RunCase reloads the shared page, runs fn and logs its completion. Cookies
// and storage persist across cases; only the document is reset.
func (s *Session) RunCase(ctx context.Context, name string, fn CaseFunc) error {
	page, err := s.Page()
	if err != nil {
		return err
	}
	logger := s.logger.With(zap.String("case", name))

	if err := s.reload(ctx, page); err != nil {
		logger.Error("Page reload before case failed.", zap.Error(err))
		return failures.Navigation("reload", err)
	}

	start := time.Now()
	err = fn(ctx, page)
	fields := []zap.Field{zap.Duration("duration", time.Since(start))}
	if err != nil {
		logger.Info("Case finished.", append(fields, zap.String("outcome", "failed"), zap.Error(err))...)
	} else {
		logger.Info("Case finished.", append(fields, zap.String("outcome", "passed"))...)
	}
	return err
}

func (s *Session) reload(ctx context.Context, page browser.Page) error {
	if s.reloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.reloadTimeout)
		defer cancel()
	}
	return page.Reload(ctx)
}

// Run opens s, hands it to fn and always closes it afterwards, whatever fn
// returns. Close errors are joined with fn's error.
func Run(ctx context.Context, s *Session, fn func(ctx context.Context, s *Session) error) (err error) {
	if err := s.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(context.WithoutCancel(ctx)); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	return fn(ctx, s)
}
