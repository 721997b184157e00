package fixture

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/xkilldash9x/searchcheck/internal/config"
)

// PrepareWorkspace runs the once-per-run setup: it creates the log, results
// and screenshot directories and removes the stale HTML report.
func PrepareWorkspace(paths config.PathsConfig, logger *zap.Logger) error {
	for _, dir := range []string{paths.Logs, paths.Results, paths.Screenshots} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if paths.Report != "" {
		if err := os.RemoveAll(paths.Report); err != nil {
			return fmt.Errorf("failed to remove stale report %s: %w", paths.Report, err)
		}
	}
	logger.Named("fixture").Info("Workspace prepared.",
		zap.String("results", paths.Results),
		zap.String("screenshots", paths.Screenshots),
	)
	return nil
}
