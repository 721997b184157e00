// -- cmd/report.go --
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/searchcheck/internal/observability"
	"github.com/xkilldash9x/searchcheck/internal/reporting"
)

// openReport is replaced in tests.
var openReport = reporting.Open

func newReportCmd() *cobra.Command {
	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Rebuild the HTML report from the last run's results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger().Named("report")

			index, err := reporting.Generate(cfg.Paths.Results, cfg.Paths.Report, cfg.Report.Title)
			if err != nil {
				return fmt.Errorf("failed to generate report: %w", err)
			}
			sum, err := reporting.Inspect(index)
			if err != nil {
				return fmt.Errorf("generated report is unreadable: %w", err)
			}
			logger.Info("Report generated.", zap.String("path", index), zap.Stringer("summary", sum))
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", index, sum)

			if cfg.Report.Open {
				if err := openReport(ctx, index); err != nil {
					logger.Warn("Could not open the report.", zap.Error(err))
				}
			}
			return nil
		},
	}
	reportCmd.Flags().Bool("open", false, "open the report in the default browser")
	return reportCmd
}
