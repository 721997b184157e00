// -- cmd/clean.go --
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/searchcheck/internal/runner"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove results, reports, screenshots and logs of earlier runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if err := runner.CleanArtifacts(cmd.Context(), cfg.Paths, true); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "artifacts cleaned")
			return nil
		},
	}
}
