package fixture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/searchcheck/internal/browser"
	"github.com/xkilldash9x/searchcheck/internal/config"
	"github.com/xkilldash9x/searchcheck/internal/failures"
	"github.com/xkilldash9x/searchcheck/internal/mocks"
)

func launcherFor(b BrowserSession, calls *int) LaunchFunc {
	return func(context.Context) (BrowserSession, error) {
		*calls++
		return b, nil
	}
}

func TestSessionLifecycle(t *testing.T) {
	page := new(mocks.MockPage)
	b := new(mocks.MockBrowserSession)
	b.On("Page").Return(page)
	b.On("Close", mock.Anything).Return(nil).Once()

	launches := 0
	s := NewSession("staging", launcherFor(b, &launches), zap.NewNop())
	assert.Equal(t, StateUninitialized, s.State())
	assert.Equal(t, "staging", s.Env())

	_, err := s.Page()
	assert.ErrorIs(t, err, ErrNotActive)

	require.NoError(t, s.Open(context.Background()))
	assert.Equal(t, StateActive, s.State())
	got, err := s.Page()
	require.NoError(t, err)
	assert.Same(t, page, got)

	err = s.Open(context.Background())
	assert.Equal(t, failures.KindPrecondition, failures.KindOf(err), "a session opens once")
	assert.Equal(t, 1, launches)

	require.NoError(t, s.Close(context.Background()))
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, StateTornDown, s.State())
	b.AssertNumberOfCalls(t, "Close", 1)

	err = s.Open(context.Background())
	assert.Error(t, err, "a torn down session cannot be reopened")
}

func TestSessionLaunchFailure(t *testing.T) {
	s := NewSession("test", func(context.Context) (BrowserSession, error) {
		return nil, errors.New("chrome not found")
	}, zap.NewNop())

	err := s.Open(context.Background())
	require.Error(t, err)
	assert.Equal(t, failures.KindDependency, failures.KindOf(err))
	assert.Equal(t, StateTornDown, s.State())
	assert.NoError(t, s.Close(context.Background()))
}

func TestRunAlwaysTearsDown(t *testing.T) {
	t.Run("case error", func(t *testing.T) {
		b := new(mocks.MockBrowserSession)
		b.On("Close", mock.Anything).Return(nil).Once()
		s := NewSession("test", func(context.Context) (BrowserSession, error) { return b, nil }, zap.NewNop())

		boom := errors.New("boom")
		err := Run(context.Background(), s, func(ctx context.Context, s *Session) error {
			assert.Equal(t, StateActive, s.State())
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, StateTornDown, s.State())
		b.AssertExpectations(t)
	})

	t.Run("cancelled context still closes", func(t *testing.T) {
		b := new(mocks.MockBrowserSession)
		b.On("Close", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil })).Return(nil).Once()
		s := NewSession("test", func(context.Context) (BrowserSession, error) { return b, nil }, zap.NewNop())

		ctx, cancel := context.WithCancel(context.Background())
		err := Run(ctx, s, func(ctx context.Context, s *Session) error {
			cancel()
			return ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
		b.AssertExpectations(t)
	})

	t.Run("close errors are joined", func(t *testing.T) {
		b := new(mocks.MockBrowserSession)
		closeErr := errors.New("browser hung")
		b.On("Close", mock.Anything).Return(closeErr)
		s := NewSession("test", func(context.Context) (BrowserSession, error) { return b, nil }, zap.NewNop())

		err := Run(context.Background(), s, func(context.Context, *Session) error { return nil })
		assert.ErrorIs(t, err, closeErr)
	})

	t.Run("launch failure skips the body", func(t *testing.T) {
		s := NewSession("test", func(context.Context) (BrowserSession, error) {
			return nil, errors.New("no chrome")
		}, zap.NewNop())

		called := false
		err := Run(context.Background(), s, func(context.Context, *Session) error {
			called = true
			return nil
		})
		assert.Error(t, err)
		assert.False(t, called)
	})
}

func TestRunCase(t *testing.T) {
	newActive := func(t *testing.T, page *mocks.MockPage) (*Session, *observer.ObservedLogs) {
		t.Helper()
		core, logs := observer.New(zapcore.InfoLevel)
		b := new(mocks.MockBrowserSession)
		b.On("Page").Return(page)
		s := NewSession("test", func(context.Context) (BrowserSession, error) { return b, nil },
			zap.New(core), WithReloadTimeout(time.Second))
		require.NoError(t, s.Open(context.Background()))
		return s, logs
	}

	t.Run("reloads before the case", func(t *testing.T) {
		page := new(mocks.MockPage)
		var order []string
		page.On("Reload", mock.MatchedBy(func(ctx context.Context) bool {
			_, ok := ctx.Deadline()
			return ok
		})).Run(func(mock.Arguments) { order = append(order, "reload") }).Return(nil).Once()
		s, logs := newActive(t, page)

		err := s.RunCase(context.Background(), "golang-3", func(ctx context.Context, p browser.Page) error {
			order = append(order, "case")
			assert.Same(t, page, p)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"reload", "case"}, order)

		entries := logs.FilterMessage("Case finished.").AllUntimed()
		require.Len(t, entries, 1)
		assert.Equal(t, "golang-3", entries[0].ContextMap()["case"])
		assert.Equal(t, "passed", entries[0].ContextMap()["outcome"])
	})

	t.Run("case failure is returned and logged", func(t *testing.T) {
		page := new(mocks.MockPage)
		page.On("Reload", mock.Anything).Return(nil)
		s, logs := newActive(t, page)

		cerr := failures.Precondition("click_result", "only 1 results rendered, cannot click result 3")
		err := s.RunCase(context.Background(), "x", func(context.Context, browser.Page) error { return cerr })
		assert.Same(t, cerr, err)
		assert.Equal(t, "failed", logs.FilterMessage("Case finished.").AllUntimed()[0].ContextMap()["outcome"])
	})

	t.Run("reload failure skips the case", func(t *testing.T) {
		page := new(mocks.MockPage)
		page.On("Reload", mock.Anything).Return(errors.New("target closed"))
		s, _ := newActive(t, page)

		err := s.RunCase(context.Background(), "x", func(context.Context, browser.Page) error {
			t.Fatal("case must not run")
			return nil
		})
		assert.Equal(t, failures.KindNavigation, failures.KindOf(err))
	})

	t.Run("inactive session", func(t *testing.T) {
		s := NewSession("test", nil, zap.NewNop())
		err := s.RunCase(context.Background(), "x", func(context.Context, browser.Page) error { return nil })
		assert.ErrorIs(t, err, ErrNotActive)
	})
}

func TestPrepareWorkspace(t *testing.T) {
	root := t.TempDir()
	paths := config.PathsConfig{
		Logs:        filepath.Join(root, "logs"),
		Screenshots: filepath.Join(root, "screenshots"),
		Results:     filepath.Join(root, "reports", "results"),
		Report:      filepath.Join(root, "reports", "html"),
	}
	require.NoError(t, os.MkdirAll(paths.Report, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(paths.Report, "index.html"), []byte("old"), 0o644))

	require.NoError(t, PrepareWorkspace(paths, zap.NewNop()))

	assert.DirExists(t, paths.Logs)
	assert.DirExists(t, paths.Screenshots)
	assert.DirExists(t, paths.Results)
	assert.NoDirExists(t, paths.Report)

	require.NoError(t, PrepareWorkspace(paths, zap.NewNop()), "setup is repeatable")
}
