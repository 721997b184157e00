package runner

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Console prints the pipeline progress for humans. Colors are only used when
// out is a terminal.
type Console struct {
	out io.Writer
	mu  sync.Mutex

	okStyle    lipgloss.Style
	warnStyle  lipgloss.Style
	errorStyle lipgloss.Style
	dimStyle   lipgloss.Style
	boldStyle  lipgloss.Style
}

// NewConsole creates a Console writing to out.
func NewConsole(out io.Writer) *Console {
	r := lipgloss.NewRenderer(out)
	return &Console{
		out: out,
		okStyle: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#008000", Dark: "#55FF55"}),
		warnStyle: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFAA00"}),
		errorStyle: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#D00000", Dark: "#FF5555"}).
			Bold(true),
		dimStyle: r.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}),
		boldStyle: r.NewStyle().Bold(true),
	}
}

func (c *Console) println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}

// Stage announces a stage before it runs.
func (c *Console) Stage(n, total int, name string) {
	c.println(c.boldStyle.Render(fmt.Sprintf("[%d/%d] %s", n, total, name)))
}

// Result prints the outcome line of a stage.
func (c *Console) Result(res StageResult) {
	var mark string
	switch res.Status {
	case StatusOK:
		mark = c.okStyle.Render("ok")
	case StatusWarn:
		mark = c.warnStyle.Render("warn")
	case StatusSkipped:
		mark = c.dimStyle.Render("skip")
	default:
		mark = c.errorStyle.Render("fail")
	}
	line := "  " + mark
	if msg := res.Message(); msg != "" {
		line += " " + msg
	}
	if res.Duration > 0 {
		line += c.dimStyle.Render(fmt.Sprintf(" (%s)", res.Duration.Round(time.Millisecond)))
	}
	c.println(line)
}

// Info prints a plain line.
func (c *Console) Info(format string, args ...any) {
	c.println(fmt.Sprintf(format, args...))
}

// Warn prints a highlighted warning.
func (c *Console) Warn(format string, args ...any) {
	c.println(c.warnStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints a highlighted error.
func (c *Console) Error(format string, args ...any) {
	c.println(c.errorStyle.Render(fmt.Sprintf(format, args...)))
}
