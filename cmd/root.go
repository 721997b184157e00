// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/searchcheck/internal/config"
	"github.com/xkilldash9x/searchcheck/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// ErrInterrupted is returned when the user stops a run with a signal.
var ErrInterrupted = errors.New("run interrupted by user")

// NewRootCommand builds the command tree. Every call returns an independent
// tree so tests do not share flag state.
func NewRootCommand() *cobra.Command {
	var (
		cfgFile  string
		env      string
		dataFile string
	)

	rootCmd := &cobra.Command{
		Use:           "searchcheck",
		Short:         "End-to-end browser checks for a search engine's web UI.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["config"] == "none" {
				return nil
			}

			v := viper.New()
			config.SetDefaults(v)
			if err := initializeConfig(v, cfgFile, env); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			if err := bindFlags(cmd, v); err != nil {
				return err
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return fmt.Errorf("failed to load or validate config: %w", err)
			}
			cfg.Env = env

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Info("Starting searchcheck",
				zap.String("version", Version),
				zap.String("env", cfg.Env),
				zap.String("config", v.ConfigFileUsed()),
			)

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.<env>.yaml, then ./config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", config.DefaultEnv, "environment name exposed to the cases")
	rootCmd.PersistentFlags().StringVarP(&dataFile, "data", "d", "", "test data file (overrides data_file)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newCleanCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// flagKeys maps command-line flags to the configuration keys they override.
var flagKeys = map[string]string{
	"data":     "data_file",
	"headless": "browser.headless",
	"strict":   "runner.strict",
	"open":     "report.open",
}

// bindFlags lets the flags the current command defines override config keys.
// Unchanged flags never shadow the config file.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}

// initializeConfig reads the config file and SEARCHCHECK_* environment
// variables. Without --config, config.<env>.yaml wins over config.yaml; a
// missing file is not an error.
func initializeConfig(v *viper.Viper, cfgFile, env string) error {
	switch {
	case cfgFile != "":
		v.SetConfigFile(cfgFile)
	case config.EnvConfigFile(".", env) != "":
		v.SetConfigFile(config.EnvConfigFile(".", env))
	default:
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("SEARCHCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// base_url has no default, so AutomaticEnv alone would not surface it on Unmarshal.
	if err := v.BindEnv("base_url"); err != nil {
		return fmt.Errorf("failed to bind base_url: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// getConfigFromContext returns the configuration loaded by the root command.
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return cfg, nil
}

// ExecuteArgs runs the command tree with explicit arguments and outputs.
// A cancelled context is reported as ErrInterrupted.
func ExecuteArgs(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	defer observability.Sync()
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		fmt.Fprintln(stderr, ErrInterrupted.Error())
		return fmt.Errorf("%w: %w", ErrInterrupted, context.Canceled)
	}
	observability.GetLogger().Error("Command execution failed", zap.Error(err))
	fmt.Fprintln(stderr, "Error:", err)
	return err
}
