package reporting

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// execCommandContext is swapped out in tests.
var execCommandContext = exec.CommandContext

// OpenCommand returns the platform command that opens path in the default
// browser.
func OpenCommand(goos, path string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{path}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", path}
	default:
		return "xdg-open", []string{path}
	}
}

// Open launches the default browser on path without waiting for it to exit.
func Open(ctx context.Context, path string) error {
	name, args := OpenCommand(runtime.GOOS, path)
	cmd := execCommandContext(ctx, name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open %s with %s: %w", path, name, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
