// File: internal/config/config_test.go
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, 10, cfg.Timeout)
	assert.Equal(t, 10*time.Second, cfg.WaitTimeout())
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, 10, cfg.Logger.MaxSize, "log file rotates at 10MB")
	assert.Equal(t, 7, cfg.Logger.MaxAge, "rotated logs are kept for 7 days")
	assert.Equal(t, cfg.LogFile, cfg.Logger.LogFile)
	assert.Equal(t, DefaultEnv, cfg.Env)

	assert.Equal(t, 2, cfg.Actions.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Actions.RetryBackoff)
	assert.Equal(t, 200*time.Millisecond, cfg.Actions.SearchDelay)

	assert.Equal(t, Viewport{Width: 1920, Height: 1080}, cfg.Browser.Viewport)
	assert.Equal(t, "zh-CN", cfg.Browser.Locale)
	assert.Equal(t, "Asia/Shanghai", cfg.Browser.Timezone)
	assert.Contains(t, cfg.Browser.UserAgent, "Chrome/120")

	wantBlocklist := []string{
		"baidu.com/ads",
		"baidu.com/trace",
		"baidu.com/recommend",
		"google-analytics.com",
		"doubleclick.net",
	}
	if diff := cmp.Diff(wantBlocklist, cfg.Blocklist); diff != "" {
		t.Errorf("default blocklist mismatch (-want +got):\n%s", diff)
	}

	// base_url has no default on purpose.
	assert.Empty(t, cfg.BaseURL)
}

// -- Loading Tests --

func TestNewConfigFromViper(t *testing.T) {
	yamlConfig := []byte(`
base_url: "https://www.example.com"
timeout: 15
log_file: "logs/run.log"
actions:
  max_retries: 3
  retry_backoff: 250ms
browser:
  headless: false
`)

	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "https://www.example.com", cfg.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.WaitTimeout())
	assert.Equal(t, "logs/run.log", cfg.Logger.LogFile)
	assert.Equal(t, 3, cfg.Actions.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Actions.RetryBackoff)
	assert.False(t, cfg.Browser.Headless)
	// Untouched keys keep their defaults.
	assert.Equal(t, 500*time.Millisecond, cfg.Actions.ClickDebounce)
}

func TestShippedConfig(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(filepath.Join("..", "..", "config.yaml"))
	require.NoError(t, v.ReadInConfig())

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "https://www.baidu.com", cfg.BaseURL)
	// A list in the file replaces the default, so it must still cover every default pattern.
	defaults := NewDefaultConfig().Blocklist
	for _, pattern := range defaults {
		assert.Contains(t, cfg.Blocklist, pattern)
	}
	assert.Contains(t, cfg.Blocklist, "google-analytics.com")
	assert.Contains(t, cfg.Blocklist, "doubleclick.net")
	assert.Equal(t, filepath.Join("data", "test_data.yaml"), cfg.DataFile)
}

func TestNewConfigFromViper_MissingBaseURL(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := NewConfigFromViper(v)
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url is a required configuration field")
}

func TestNewConfigFromViper_ExpandsHome(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("base_url", "https://www.example.com")
	v.Set("paths.screenshots", "~/shots")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.NotContains(t, cfg.Paths.Screenshots, "~")
	assert.True(t, filepath.IsAbs(cfg.Paths.Screenshots))
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	valid := func() *Config {
		cfg := NewDefaultConfig()
		cfg.BaseURL = "https://www.example.com"
		return cfg
	}

	require.NoError(t, valid().Validate(), "defaults plus base_url should be valid")

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"relative base url", func(c *Config) { c.BaseURL = "www.example.com" }, "absolute URL"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "timeout must be a positive"},
		{"empty log file", func(c *Config) { c.LogFile = "" }, "log_file is a required"},
		{"no attempts", func(c *Config) { c.Actions.MaxRetries = 0 }, "max_retries must be at least 1"},
		{"negative backoff", func(c *Config) { c.Actions.RetryBackoff = -time.Second }, "must not be negative"},
		{"empty viewport", func(c *Config) { c.Browser.Viewport.Width = 0 }, "viewport"},
		{"no screenshot dir", func(c *Config) { c.Paths.Screenshots = "" }, "paths.screenshots"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvConfigFile(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, EnvConfigFile(dir, "staging"), "missing file should resolve to nothing")
	assert.Empty(t, EnvConfigFile(dir, ""))

	path := filepath.Join(dir, "config.staging.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: 5\n"), 0o644))
	assert.Equal(t, path, EnvConfigFile(dir, "staging"))
}
