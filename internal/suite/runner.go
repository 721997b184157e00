package suite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/searchcheck/internal/config"
	"github.com/xkilldash9x/searchcheck/internal/dataset"
	"github.com/xkilldash9x/searchcheck/internal/fixture"
	"github.com/xkilldash9x/searchcheck/internal/reporting"
)

// CaseBuilder turns a datum into a runnable case.
type CaseBuilder func(c dataset.Case) fixture.CaseFunc

// Runner runs cases one after another on a shared session. A failed case
// never stops the run; a cancelled context does, and the remaining cases are
// recorded as skipped.
type Runner struct {
	runID    string
	build    CaseBuilder
	reporter reporting.Reporter
	metrics  *Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewRunner creates a Runner. metrics may be nil.
func NewRunner(build CaseBuilder, reporter reporting.Reporter, metrics *Metrics, logger *zap.Logger) *Runner {
	return &Runner{
		runID:    uuid.NewString(),
		build:    build,
		reporter: reporter,
		metrics:  metrics,
		logger:   logger.Named("suite"),
		now:      time.Now,
	}
}

// RunID identifies this run in results and logs.
func (r *Runner) RunID() string { return r.runID }

// Run executes cases in order on s and returns their results. The error is
// non-nil only when ctx was cancelled.
func (r *Runner) Run(ctx context.Context, s *fixture.Session, cases []dataset.Case) ([]*reporting.CaseResult, error) {
	logger := r.logger.With(zap.String("run_id", r.runID), zap.String("env", s.Env()))
	logger.Info("Starting suite.", zap.Int("cases", len(cases)))

	results := make([]*reporting.CaseResult, 0, len(cases))
	for i, c := range cases {
		name := CaseName(c)
		res := reporting.NewCaseResult(r.runID, name, c.Keyword, c.Index, s.Env(), r.now())

		if ctx.Err() != nil {
			res.Skip("run interrupted")
			r.record(logger, res)
			results = append(results, res)
			continue
		}

		logger.Info("Running case.", zap.String("case", name), zap.Int("n", i+1), zap.Int("of", len(cases)))
		err := s.RunCase(ctx, name, r.build(c))
		res.Finish(err, r.now())
		r.record(logger, res)
		results = append(results, res)
	}

	if err := ctx.Err(); err != nil {
		logger.Warn("Suite interrupted.", zap.Error(err))
		return results, err
	}
	logger.Info("Suite finished.", zap.Stringer("summary", reporting.Summarize(results)))
	return results, nil
}

func (r *Runner) record(logger *zap.Logger, res *reporting.CaseResult) {
	if r.metrics != nil {
		r.metrics.Observe(res)
	}
	if r.reporter == nil {
		return
	}
	if err := r.reporter.Write(res); err != nil {
		logger.Warn("Failed to record case result.", zap.String("case", res.Name), zap.Error(err))
	}
}

// Outcome is the result of Execute.
type Outcome struct {
	RunID   string
	Results []*reporting.CaseResult
	Summary reporting.Summary
}

// Execute is one full suite run: workspace setup, the session scope around
// every case, and the result and metrics files.
func Execute(ctx context.Context, cfg *config.Config, cases []dataset.Case, launch fixture.LaunchFunc, logger *zap.Logger) (*Outcome, error) {
	if err := fixture.PrepareWorkspace(cfg.Paths, logger); err != nil {
		return nil, err
	}

	reporter, err := reporting.NewResultsReporter(cfg.Paths.Results)
	if err != nil {
		return nil, fmt.Errorf("failed to open results: %w", err)
	}

	var metrics *Metrics
	if cfg.Metrics.Enabled {
		metrics = NewMetrics()
	}

	deps := DepsFromConfig(cfg, logger)
	runner := NewRunner(func(c dataset.Case) fixture.CaseFunc {
		return SearchNthResult(deps, c)
	}, reporter, metrics, logger)

	session := fixture.NewSession(cfg.Env, launch, logger, fixture.WithReloadTimeout(cfg.WaitTimeout()))
	var results []*reporting.CaseResult
	runErr := fixture.Run(ctx, session, func(ctx context.Context, s *fixture.Session) error {
		var err error
		results, err = runner.Run(ctx, s, cases)
		return err
	})

	if err := reporter.Close(); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("failed to finalize results: %w", err))
	}
	if metrics != nil {
		if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn("Failed to write metrics textfile.", zap.Error(err))
		}
	}

	return &Outcome{
		RunID:   runner.RunID(),
		Results: results,
		Summary: reporting.Summarize(results),
	}, runErr
}
