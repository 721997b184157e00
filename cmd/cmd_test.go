// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/searchcheck/internal/config"
	"github.com/xkilldash9x/searchcheck/internal/fixture"
	"github.com/xkilldash9x/searchcheck/internal/mocks"
	"github.com/xkilldash9x/searchcheck/internal/observability"
	"github.com/xkilldash9x/searchcheck/internal/reporting"
	"github.com/xkilldash9x/searchcheck/internal/runner"
)

// resetForTest restores the package hooks and the global logger.
func resetForTest(t *testing.T) {
	t.Helper()
	observability.ResetForTest()
	t.Cleanup(func() {
		newRunEnv = defaultRunEnv
		openReport = reporting.Open
		observability.ResetForTest()
	})
}

var defaultRunEnv = newRunEnv

// workspace writes a config file whose artifact paths live under a temp dir.
func workspace(t *testing.T) (cfgPath, root string) {
	t.Helper()
	root = t.TempDir()
	body := fmt.Sprintf(`
base_url: https://www.example.com
timeout: 5
log_file: %[1]s/logs/searchcheck.log
data_file: %[1]s/test_data.yaml
logger:
  level: fatal
actions:
  retry_backoff: 0s
  keystroke_delay: 0s
  search_delay: 0s
  click_debounce: 0s
paths:
  logs: %[1]s/logs
  screenshots: %[1]s/screenshots
  results: %[1]s/reports/results
  report: %[1]s/reports/html
metrics:
  textfile: %[1]s/reports/results/searchcheck.prom
`, root)
	cfgPath = filepath.Join(root, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "test_data.yaml"),
		[]byte("test_data:\n  - keyword: golang\n    index: 2\n"), 0o644))
	return cfgPath, root
}

// stubBrowser makes the run command drive a mock page returning value for
// the input and count results.
func stubBrowser(t *testing.T, value string, count int) *config.Config {
	t.Helper()
	page := new(mocks.MockPage)
	page.On("Reload", mock.Anything).Return(nil)
	page.On("Navigate", mock.Anything, mock.Anything).Return(nil)
	for _, m := range []string{"WaitPresent", "WaitVisible", "WaitEnabled", "WaitEditable", "Click", "Focus", "Clear", "ScrollIntoView"} {
		page.On(m, mock.Anything, mock.Anything).Return(nil)
	}
	page.On("TypeText", mock.Anything, mock.Anything).Return(nil)
	page.On("Press", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	page.On("Value", mock.Anything, mock.Anything).Return(value, nil)
	page.On("Count", mock.Anything, mock.Anything).Return(count, nil)
	page.On("WaitNetworkIdle", mock.Anything, mock.Anything).Return(nil)
	page.On("Screenshot", mock.Anything).Return([]byte("png"), nil)

	b := new(mocks.MockBrowserSession)
	b.On("Page").Return(page)
	b.On("Close", mock.Anything).Return(nil)

	var seen config.Config
	newRunEnv = func(cfg *config.Config, out io.Writer, logger *zap.Logger) *runner.Env {
		seen = *cfg
		launch := func(context.Context) (fixture.BrowserSession, error) { return b, nil }
		env := runner.NewEnv(cfg, runner.NewConsole(out), launch, logger)
		env.Open = func(context.Context, string) error { return nil }
		return env
	}
	return &seen
}

func TestInitializeConfig(t *testing.T) {
	t.Run("explicit file and environment override", func(t *testing.T) {
		cfgPath, _ := workspace(t)
		t.Setenv("SEARCHCHECK_BASE_URL", "https://staging.example.com")
		t.Setenv("SEARCHCHECK_TIMEOUT", "30")

		v := viper.New()
		config.SetDefaults(v)
		require.NoError(t, initializeConfig(v, cfgPath, "test"))
		cfg, err := config.NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "https://staging.example.com", cfg.BaseURL)
		assert.Equal(t, 30, cfg.Timeout)
		assert.Equal(t, "fatal", cfg.Logger.Level)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("base_url: [unclosed"), 0o644))

		v := viper.New()
		err := initializeConfig(v, path, "test")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading config file")
	})
}

func TestGetConfigFromContext(t *testing.T) {
	_, err := getConfigFromContext(context.Background())
	assert.Error(t, err)

	cfg := config.NewDefaultConfig()
	got, err := getConfigFromContext(context.WithValue(context.Background(), configKey, cfg))
	require.NoError(t, err)
	assert.Same(t, cfg, got)
}

func TestRunCommand(t *testing.T) {
	t.Run("passing run", func(t *testing.T) {
		resetForTest(t)
		cfgPath, root := workspace(t)
		seen := stubBrowser(t, "golang", 10)

		var stdout, stderr bytes.Buffer
		err := ExecuteArgs(context.Background(), []string{"run", "--config", cfgPath, "--skip-checks", "--env", "staging"}, &stdout, &stderr)
		require.NoError(t, err, stderr.String())

		assert.Equal(t, "staging", seen.Env)
		assert.Contains(t, stdout.String(), "1 total, 1 passed")
		assert.FileExists(t, filepath.Join(root, "reports", "html", reporting.IndexFile))
		assert.FileExists(t, filepath.Join(root, "reports", "results", reporting.JUnitFile))
	})

	t.Run("flags override the config file", func(t *testing.T) {
		resetForTest(t)
		cfgPath, root := workspace(t)
		other := filepath.Join(root, "other.yaml")
		require.NoError(t, os.WriteFile(other, []byte("test_data:\n  - keyword: rust\n    index: 1\n"), 0o644))
		seen := stubBrowser(t, "rust", 3)

		err := ExecuteArgs(context.Background(),
			[]string{"run", "-c", cfgPath, "--skip-checks", "--headless=false", "--data", other, "--open"},
			io.Discard, io.Discard)
		require.NoError(t, err)
		assert.False(t, seen.Browser.Headless)
		assert.True(t, seen.Report.Open)
		assert.Equal(t, other, seen.DataFile)
	})

	t.Run("failed cases only fail with --strict", func(t *testing.T) {
		resetForTest(t)
		cfgPath, _ := workspace(t)
		stubBrowser(t, "golang", 1)

		err := ExecuteArgs(context.Background(), []string{"run", "-c", cfgPath, "--skip-checks"}, io.Discard, io.Discard)
		require.NoError(t, err)

		observability.ResetForTest()
		var stderr bytes.Buffer
		err = ExecuteArgs(context.Background(), []string{"run", "-c", cfgPath, "--skip-checks", "--strict"}, io.Discard, &stderr)
		assert.ErrorIs(t, err, runner.ErrCasesFailed)
		assert.Contains(t, stderr.String(), "Error:")
	})

	t.Run("interrupt is reported", func(t *testing.T) {
		resetForTest(t)
		cfgPath, _ := workspace(t)
		stubBrowser(t, "golang", 10)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		var stderr bytes.Buffer
		err := ExecuteArgs(ctx, []string{"run", "-c", cfgPath, "--skip-checks"}, io.Discard, &stderr)
		assert.ErrorIs(t, err, ErrInterrupted)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Contains(t, stderr.String(), "run interrupted by user")
	})

	t.Run("missing base_url", func(t *testing.T) {
		resetForTest(t)
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("timeout: 5\n"), 0o644))

		err := ExecuteArgs(context.Background(), []string{"run", "-c", path}, io.Discard, io.Discard)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "base_url")
	})
}

func TestReportCommand(t *testing.T) {
	resetForTest(t)
	cfgPath, root := workspace(t)
	stubBrowser(t, "golang", 1)
	// A failing run leaves results but no HTML report.
	require.NoError(t, ExecuteArgs(context.Background(), []string{"run", "-c", cfgPath, "--skip-checks"}, io.Discard, io.Discard))
	index := filepath.Join(root, "reports", "html", reporting.IndexFile)
	require.NoFileExists(t, index)

	var opened string
	openReport = func(_ context.Context, path string) error {
		opened = path
		return errors.New("no display")
	}
	observability.ResetForTest()
	var stdout bytes.Buffer
	err := ExecuteArgs(context.Background(), []string{"report", "-c", cfgPath, "--open"}, &stdout, io.Discard)
	require.NoError(t, err, "a failed open only warns")
	assert.FileExists(t, index)
	assert.Equal(t, index, opened)
	assert.Contains(t, stdout.String(), "1 total, 0 passed, 1 failed")
}

func TestCleanCommand(t *testing.T) {
	resetForTest(t)
	cfgPath, root := workspace(t)
	shot := filepath.Join(root, "screenshots", "old.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(shot), 0o755))
	require.NoError(t, os.WriteFile(shot, []byte("png"), 0o644))

	var stdout bytes.Buffer
	require.NoError(t, ExecuteArgs(context.Background(), []string{"clean", "-c", cfgPath}, &stdout, io.Discard))
	assert.NoFileExists(t, shot)
	assert.DirExists(t, filepath.Join(root, "screenshots"))
	assert.NoDirExists(t, filepath.Join(root, "reports", "html"))
	assert.Contains(t, stdout.String(), "artifacts cleaned")
}

func TestVersionCommand(t *testing.T) {
	resetForTest(t)
	var stdout bytes.Buffer
	// No config file is needed to print the version.
	require.NoError(t, ExecuteArgs(context.Background(), []string{"version", "-c", "/nonexistent/config.yaml"}, &stdout, io.Discard))
	assert.Contains(t, stdout.String(), "searchcheck "+Version)
}
