// -- cmd/run.go --
package cmd

import (
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/searchcheck/internal/browser"
	"github.com/xkilldash9x/searchcheck/internal/config"
	"github.com/xkilldash9x/searchcheck/internal/fixture"
	"github.com/xkilldash9x/searchcheck/internal/observability"
	"github.com/xkilldash9x/searchcheck/internal/runner"
)

// newRunEnv builds the pipeline environment. Tests replace it to stub the
// browser and the process hooks.
var newRunEnv = func(cfg *config.Config, out io.Writer, logger *zap.Logger) *runner.Env {
	launch := fixture.BrowserLauncher(browser.OptionsFromConfig(cfg), logger)
	return runner.NewEnv(cfg, runner.NewConsole(out), launch, logger)
}

func newRunCmd() *cobra.Command {
	var opts runner.Options

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Check the environment, run every case and build the report",
		Long: `Runs the full pipeline: toolchain and browser checks, artifact cleanup,
the search cases from the data file and the HTML report.

Failed cases leave the exit status at zero unless --strict is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			opts.Open = cfg.Report.Open
			opts.Strict = cfg.Runner.Strict
			logger.Info("Starting run.",
				zap.String("base_url", cfg.BaseURL),
				zap.String("data_file", cfg.DataFile),
				zap.Bool("headless", cfg.Browser.Headless),
				zap.Bool("strict", opts.Strict),
			)

			_, err = runner.Run(ctx, newRunEnv(cfg, cmd.OutOrStdout(), logger), opts)
			return err
		},
	}

	// --open, --strict and --headless are read back through config keys.
	runCmd.Flags().Bool("open", false, "open the HTML report when the run finishes")
	runCmd.Flags().Bool("strict", false, "exit non-zero when any case fails")
	runCmd.Flags().Bool("headless", true, "run the browser without a window")
	runCmd.Flags().BoolVar(&opts.SkipChecks, "skip-checks", false, "skip the toolchain, dependency and browser checks")
	return runCmd
}
