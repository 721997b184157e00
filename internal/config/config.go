// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// DefaultEnv is the target environment used when --env is not given.
const DefaultEnv = "test"

// Config holds the entire run configuration. It is loaded once at process
// start and treated as read-only afterwards.
type Config struct {
	// The three required top-level keys.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Timeout int    `mapstructure:"timeout" yaml:"timeout"`
	LogFile string `mapstructure:"log_file" yaml:"log_file"`

	DataFile  string          `mapstructure:"data_file" yaml:"data_file"`
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Actions   ActionsConfig   `mapstructure:"actions" yaml:"actions"`
	Paths     PathsConfig     `mapstructure:"paths" yaml:"paths"`
	Blocklist []string        `mapstructure:"blocklist" yaml:"blocklist"`
	Report    ReportConfig    `mapstructure:"report" yaml:"report"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Runner    RunnerConfig    `mapstructure:"runner" yaml:"runner"`

	// Env comes from the --env flag, not the config file.
	Env string `mapstructure:"-" yaml:"-"`
}

// WaitTimeout is the upper bound applied to every wait and action.
func (c *Config) WaitTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// LoggerConfig holds the logging configuration.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"-" yaml:"-"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the colors for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig describes how the shared browser is launched and disguised.
type BrowserConfig struct {
	Headless  bool     `mapstructure:"headless" yaml:"headless"`
	ExecPath  string   `mapstructure:"exec_path" yaml:"exec_path"`
	Args      []string `mapstructure:"args" yaml:"args"`
	Viewport  Viewport `mapstructure:"viewport" yaml:"viewport"`
	UserAgent string   `mapstructure:"user_agent" yaml:"user_agent"`
	Platform  string   `mapstructure:"platform" yaml:"platform"`
	Locale    string   `mapstructure:"locale" yaml:"locale"`
	Timezone  string   `mapstructure:"timezone" yaml:"timezone"`
	Languages []string `mapstructure:"languages" yaml:"languages"`
}

// Viewport is a fixed window size in CSS pixels.
type Viewport struct {
	Width  int64 `mapstructure:"width" yaml:"width"`
	Height int64 `mapstructure:"height" yaml:"height"`
}

// ActionsConfig tunes the verified UI actions.
type ActionsConfig struct {
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
	KeystrokeDelay time.Duration `mapstructure:"keystroke_delay" yaml:"keystroke_delay"`
	SearchDelay    time.Duration `mapstructure:"search_delay" yaml:"search_delay"`
	ClickDebounce  time.Duration `mapstructure:"click_debounce" yaml:"click_debounce"`
	NetworkQuiet   time.Duration `mapstructure:"network_quiet" yaml:"network_quiet"`
}

// PathsConfig lists the artifact directories owned by a run.
type PathsConfig struct {
	Logs        string `mapstructure:"logs" yaml:"logs"`
	Screenshots string `mapstructure:"screenshots" yaml:"screenshots"`
	Results     string `mapstructure:"results" yaml:"results"`
	Report      string `mapstructure:"report" yaml:"report"`
}

// ReportConfig configures the HTML report.
type ReportConfig struct {
	Title string `mapstructure:"title" yaml:"title"`
	Open  bool   `mapstructure:"open" yaml:"open"`
}

// MetricsConfig controls the Prometheus textfile written after a run.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// RunnerConfig holds the pre-flight checks performed by the run pipeline.
type RunnerConfig struct {
	MinGoVersion   string   `mapstructure:"min_go_version" yaml:"min_go_version"`
	InstallCommand []string `mapstructure:"install_command" yaml:"install_command"`
	Strict         bool     `mapstructure:"strict" yaml:"strict"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	cfg.Env = DefaultEnv
	cfg.Logger.LogFile = cfg.LogFile
	return &cfg
}

// SetDefaults initializes default values for every key except base_url,
// which has to come from the config file or the environment.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("timeout", 10)
	v.SetDefault("log_file", "logs/searchcheck.log")
	v.SetDefault("data_file", "data/test_data.yaml")

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "searchcheck")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 7)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.viewport.width", 1920)
	v.SetDefault("browser.viewport.height", 1080)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.platform", "Win32")
	v.SetDefault("browser.locale", "zh-CN")
	v.SetDefault("browser.timezone", "Asia/Shanghai")
	v.SetDefault("browser.languages", []string{"zh-CN", "zh"})

	// -- Actions --
	v.SetDefault("actions.max_retries", 2)
	v.SetDefault("actions.retry_backoff", "500ms")
	v.SetDefault("actions.keystroke_delay", "100ms")
	v.SetDefault("actions.search_delay", "200ms")
	v.SetDefault("actions.click_debounce", "500ms")
	v.SetDefault("actions.network_quiet", "500ms")

	// -- Paths --
	v.SetDefault("paths.logs", "logs")
	v.SetDefault("paths.screenshots", "screenshots")
	v.SetDefault("paths.results", "reports/results")
	v.SetDefault("paths.report", "reports/html")

	// -- Request blocklist --
	v.SetDefault("blocklist", []string{
		"baidu.com/ads",
		"baidu.com/trace",
		"baidu.com/recommend",
		"google-analytics.com",
		"doubleclick.net",
	})

	// -- Report and metrics --
	v.SetDefault("report.title", "searchcheck report")
	v.SetDefault("report.open", false)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.textfile", "reports/results/searchcheck.prom")

	// -- Runner --
	v.SetDefault("runner.min_go_version", "go1.22")
	v.SetDefault("runner.install_command", []string{})
	v.SetDefault("runner.strict", false)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.Env = DefaultEnv

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	// The top-level log_file is the one the logger rotates.
	cfg.Logger.LogFile = cfg.LogFile

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandPaths resolves a leading ~ in every path-valued key.
func (c *Config) expandPaths() error {
	targets := []*string{
		&c.LogFile, &c.DataFile, &c.Browser.ExecPath,
		&c.Paths.Logs, &c.Paths.Screenshots, &c.Paths.Results, &c.Paths.Report,
		&c.Metrics.Textfile,
	}
	for _, p := range targets {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is a required configuration field")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute URL, got %q", c.BaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be a positive number of seconds")
	}
	if c.LogFile == "" {
		return fmt.Errorf("log_file is a required configuration field")
	}
	if c.Actions.MaxRetries < 1 {
		return fmt.Errorf("actions.max_retries must be at least 1")
	}
	if c.Actions.RetryBackoff < 0 || c.Actions.KeystrokeDelay < 0 || c.Actions.SearchDelay < 0 {
		return fmt.Errorf("actions delays must not be negative")
	}
	if c.Browser.Viewport.Width <= 0 || c.Browser.Viewport.Height <= 0 {
		return fmt.Errorf("browser.viewport must have a positive width and height")
	}
	if c.Paths.Screenshots == "" || c.Paths.Results == "" || c.Paths.Report == "" {
		return fmt.Errorf("paths.screenshots, paths.results and paths.report are required")
	}
	return nil
}

// EnvConfigFile returns the environment-specific config file in dir
// (config.<env>.yaml) when it exists, or an empty string otherwise.
func EnvConfigFile(dir, env string) string {
	if env == "" {
		return ""
	}
	candidate := filepath.Join(dir, fmt.Sprintf("config.%s.yaml", env))
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}
