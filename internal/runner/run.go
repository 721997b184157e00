package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/xkilldash9x/searchcheck/internal/reporting"
)

// Options are the switches of a run.
type Options struct {
	// Open shows the report in a browser once it is generated.
	Open bool
	// Strict turns failed cases into a run error.
	Strict bool
	// SkipChecks drops the toolchain, dependency and browser stages.
	SkipChecks bool
}

// Stages assembles the pipeline for opts, in order.
func Stages(env *Env, state *State, opts Options) []Stage {
	var stages []Stage
	if !opts.SkipChecks {
		stages = append(stages,
			ToolchainStage(env.GoVersion, env.Config.Runner.MinGoVersion),
			DependencyStage(env, state),
		)
	}
	stages = append(stages, CleanStage(env.Config.Paths))
	if !opts.SkipChecks {
		stages = append(stages, BrowserStage(env, state))
	}
	return append(stages,
		SuiteStage(env, state),
		ReportStage(env, state),
		OpenStage(env, state, opts.Open),
	)
}

// Report is the outcome of a whole run.
type Report struct {
	Stages  []StageResult
	State   *State
	Summary reporting.Summary
}

// Run executes the full pipeline. Failed cases are not an error unless
// opts.Strict is set; an interrupt surfaces as context.Canceled.
func Run(ctx context.Context, env *Env, opts Options) (*Report, error) {
	state := &State{}
	p := NewPipeline(env.Console, env.Logger, Stages(env, state, opts)...)
	results, err := p.Run(ctx)

	rep := &Report{Stages: results, State: state}
	if state.Outcome != nil {
		rep.Summary = state.Outcome.Summary
		env.Console.Info("")
		env.Console.Info("%s", rep.Summary)
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", err, ctxErr)
		}
		return rep, err
	}
	if opts.Strict && state.Outcome != nil && !state.Outcome.Summary.OK() {
		return rep, fmt.Errorf("%w: %s", ErrCasesFailed, rep.Summary)
	}
	return rep, nil
}
