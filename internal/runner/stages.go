package runner

import (
	"context"
	"errors"
	"fmt"
	"go/version"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/searchcheck/internal/config"
	"github.com/xkilldash9x/searchcheck/internal/dataset"
	"github.com/xkilldash9x/searchcheck/internal/failures"
	"github.com/xkilldash9x/searchcheck/internal/fixture"
	"github.com/xkilldash9x/searchcheck/internal/reporting"
	"github.com/xkilldash9x/searchcheck/internal/suite"
)

// Stage names, in pipeline order.
const (
	StageToolchain    = "toolchain version"
	StageDependencies = "dependency check"
	StageClean        = "clean artifacts"
	StageBrowser      = "ensure browser"
	StageSuite        = "run suite"
	StageReport       = "generate report"
	StageOpen         = "open report"
)

const browserProbeTimeout = 30 * time.Second

// ErrChromeNotFound is returned when no Chrome binary can be located.
var ErrChromeNotFound = errors.New("no chrome or chromium executable found")

// chromeCandidates are tried in order when no exec_path is configured.
var chromeCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
	"headless-shell",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	`C:\Program Files\Google\Chrome\Application\chrome.exe`,
}

// FindChrome resolves the browser binary. A configured execPath wins over
// the well-known names.
func FindChrome(execPath string, lookPath func(string) (string, error)) (string, error) {
	if execPath != "" {
		p, err := lookPath(execPath)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrChromeNotFound, execPath, err)
		}
		return p, nil
	}
	for _, name := range chromeCandidates {
		if p, err := lookPath(name); err == nil {
			return p, nil
		}
	}
	return "", ErrChromeNotFound
}

// ToolchainStage checks that the running Go runtime is at least minimum.
func ToolchainStage(current, minimum string) Stage {
	return Stage{
		Name:  StageToolchain,
		Fatal: true,
		Run: func(context.Context) StageResult {
			if !version.IsValid(minimum) {
				return Fail(failures.Dependency("go", fmt.Errorf("invalid minimum version %q", minimum)))
			}
			if !version.IsValid(current) {
				return Warn(fmt.Sprintf("cannot compare development runtime %q", current), nil)
			}
			if version.Compare(current, minimum) < 0 {
				return Fail(failures.Dependency("go", fmt.Errorf("runtime %s is older than the required %s", current, minimum)))
			}
			return OK(fmt.Sprintf("%s (>= %s)", current, minimum))
		},
	}
}

// DependencyStage locates Chrome, running the configured install command
// once when it is missing. A missing browser is fatal.
func DependencyStage(env *Env, state *State) Stage {
	return Stage{
		Name:  StageDependencies,
		Fatal: true,
		Run: func(ctx context.Context) StageResult {
			cfg := env.Config
			path, err := FindChrome(cfg.Browser.ExecPath, env.LookPath)
			if err == nil {
				state.BrowserPath = path
				return OK(path)
			}
			install := cfg.Runner.InstallCommand
			if len(install) == 0 {
				return Fail(failures.Dependency("chrome", err))
			}

			env.Console.Warn("  chrome missing, running %s", strings.Join(install, " "))
			out, ierr := env.Command(ctx, install[0], install[1:]...).CombinedOutput()
			if ierr != nil {
				return Fail(failures.Dependency("chrome", fmt.Errorf("install command failed: %w: %s",
					ierr, strings.TrimSpace(string(out)))))
			}
			path, err = FindChrome(cfg.Browser.ExecPath, env.LookPath)
			if err != nil {
				return Fail(failures.Dependency("chrome", err))
			}
			state.BrowserPath = path
			return OK("installed " + path)
		},
	}
}

// CleanStage removes the results, screenshots and HTML report of earlier
// runs and recreates the working directories. Logs are kept because the
// rotating log file is already open.
func CleanStage(paths config.PathsConfig) Stage {
	return Stage{
		Name:  StageClean,
		Fatal: true,
		Run: func(ctx context.Context) StageResult {
			if err := CleanArtifacts(ctx, paths, false); err != nil {
				return Fail(err)
			}
			return OK("")
		},
	}
}

// CleanArtifacts clears the results, screenshot and report directories
// concurrently and makes sure the result, screenshot and log directories
// exist. With logs set, the log directory is emptied too.
func CleanArtifacts(ctx context.Context, paths config.PathsConfig, logs bool) error {
	g, _ := errgroup.WithContext(ctx)
	reset := func(dir string, remove bool) {
		if dir == "" {
			return
		}
		g.Go(func() error {
			if remove {
				if err := os.RemoveAll(dir); err != nil {
					return fmt.Errorf("failed to remove %s: %w", dir, err)
				}
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
			return nil
		})
	}
	reset(paths.Results, true)
	reset(paths.Screenshots, true)
	reset(paths.Logs, logs)
	if paths.Report != "" {
		g.Go(func() error {
			if err := os.RemoveAll(paths.Report); err != nil {
				return fmt.Errorf("failed to remove %s: %w", paths.Report, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// BrowserStage probes the located browser by asking for its version. A
// failure only warns; the suite will report the real launch error.
func BrowserStage(env *Env, state *State) Stage {
	return Stage{
		Name: StageBrowser,
		Run: func(ctx context.Context) StageResult {
			path := state.BrowserPath
			if path == "" {
				p, err := FindChrome(env.Config.Browser.ExecPath, env.LookPath)
				if err != nil {
					return Warn("browser not located", err)
				}
				path = p
			}
			probeCtx, cancel := context.WithTimeout(ctx, browserProbeTimeout)
			defer cancel()
			out, err := env.Command(probeCtx, path, "--version").Output()
			if err != nil {
				return Warn(path+" did not report a version", err)
			}
			state.BrowserPath = path
			return OK(strings.TrimSpace(string(out)))
		},
	}
}

// ErrCasesFailed marks a completed run in which some cases did not pass.
var ErrCasesFailed = errors.New("cases failed")

// SuiteStage loads the data file and runs every case. Bad data, a browser
// that will not start or an interrupt abort the pipeline; failed cases only
// fail the stage.
func SuiteStage(env *Env, state *State) Stage {
	return Stage{
		Name: StageSuite,
		Run: func(ctx context.Context) StageResult {
			cases, err := dataset.Load(env.Config.DataFile)
			if err != nil {
				return Abort(err)
			}
			env.Logger.Info("Loaded test data.", zap.String("file", env.Config.DataFile), zap.Int("cases", len(cases)))

			out, err := suite.Execute(ctx, env.Config, cases, env.Launch, env.Logger)
			state.Outcome = out
			if err != nil {
				return Abort(err)
			}
			if !out.Summary.OK() {
				return StageResult{Status: StatusFailed, Detail: out.Summary.String(), Err: ErrCasesFailed}
			}
			return OK(out.Summary.String())
		},
	}
}

// ReportStage renders the HTML report. It only runs after a passing suite,
// and a rendering problem only warns.
func ReportStage(env *Env, state *State) Stage {
	return Stage{
		Name: StageReport,
		When: func(done []StageResult) (bool, string) {
			if !Succeeded(done, StageSuite) {
				return false, "suite did not pass"
			}
			return true, ""
		},
		Run: func(context.Context) StageResult {
			paths := env.Config.Paths
			index, err := reporting.Generate(paths.Results, paths.Report, env.Config.Report.Title)
			if err != nil {
				return Warn("report not generated", err)
			}
			sum, err := reporting.Inspect(index)
			if err != nil {
				return Warn(index, err)
			}
			state.ReportPath = index
			return OK(fmt.Sprintf("%s (%s)", index, sum))
		},
	}
}

// OpenStage opens the report in the default browser when asked to.
func OpenStage(env *Env, state *State, open bool) Stage {
	return Stage{
		Name: StageOpen,
		When: func([]StageResult) (bool, string) {
			if !open {
				return false, "not requested"
			}
			if state.ReportPath == "" {
				return false, "no report"
			}
			return true, ""
		},
		Run: func(ctx context.Context) StageResult {
			if err := env.Open(ctx, state.ReportPath); err != nil {
				return Warn("open it manually: "+state.ReportPath, err)
			}
			return OK(state.ReportPath)
		},
	}
}

// Env carries the collaborators the stages need. Tests replace the process
// and browser hooks.
type Env struct {
	Config    *config.Config
	Logger    *zap.Logger
	Console   *Console
	GoVersion string
	LookPath  func(string) (string, error)
	Command   func(ctx context.Context, name string, args ...string) *exec.Cmd
	Launch    fixture.LaunchFunc
	Open      func(ctx context.Context, path string) error
}

// NewEnv wires the real process hooks around cfg.
func NewEnv(cfg *config.Config, console *Console, launch fixture.LaunchFunc, logger *zap.Logger) *Env {
	return &Env{
		Config:    cfg,
		Logger:    logger,
		Console:   console,
		GoVersion: runtime.Version(),
		LookPath:  exec.LookPath,
		Command:   exec.CommandContext,
		Launch:    launch,
		Open:      reporting.Open,
	}
}

// State is what stages hand to later stages.
type State struct {
	BrowserPath string
	Outcome     *suite.Outcome
	ReportPath  string
}
