// Package runner drives a full test run as an ordered pipeline of named
// stages: environment checks, cleanup, the suite and the report.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Status is the outcome of a stage.
type Status int

const (
	StatusOK Status = iota
	StatusWarn
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarn:
		return "warn"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// StageResult is what a stage reports back to the pipeline.
type StageResult struct {
	Name     string
	Status   Status
	Detail   string
	Err      error
	Duration time.Duration
	// Abort stops the pipeline after this failure even if the stage is not fatal.
	Abort bool
}

// OK returns a successful result.
func OK(detail string) StageResult { return StageResult{Status: StatusOK, Detail: detail} }

// Warn returns a result that does not stop the pipeline.
func Warn(detail string, err error) StageResult {
	return StageResult{Status: StatusWarn, Detail: detail, Err: err}
}

// Fail returns a failed result.
func Fail(err error) StageResult { return StageResult{Status: StatusFailed, Err: err} }

// Abort returns a failed result that stops the pipeline.
func Abort(err error) StageResult { return StageResult{Status: StatusFailed, Err: err, Abort: true} }

// Skip returns a skipped result.
func Skip(reason string) StageResult { return StageResult{Status: StatusSkipped, Detail: reason} }

// Message joins the detail and the error for display.
func (r StageResult) Message() string {
	switch {
	case r.Detail != "" && r.Err != nil:
		return r.Detail + ": " + r.Err.Error()
	case r.Err != nil:
		return r.Err.Error()
	default:
		return r.Detail
	}
}

// Stage is one named step of the pipeline.
type Stage struct {
	Name string
	// Fatal stops the pipeline when the stage fails.
	Fatal bool
	// When gates the stage on earlier results; nil always runs it.
	When func(done []StageResult) (bool, string)
	Run  func(ctx context.Context) StageResult
}

// Pipeline runs stages in order.
type Pipeline struct {
	stages  []Stage
	console *Console
	logger  *zap.Logger
}

// NewPipeline creates a pipeline over stages.
func NewPipeline(console *Console, logger *zap.Logger, stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages, console: console, logger: logger.Named("runner")}
}

// Names lists the stage names in run order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

// ErrInterrupted is returned when the context is cancelled between stages.
var ErrInterrupted = errors.New("run interrupted")

// Run executes the stages and returns every result produced. The error is
// the failure of a fatal stage, or ErrInterrupted.
func (p *Pipeline) Run(ctx context.Context) ([]StageResult, error) {
	results := make([]StageResult, 0, len(p.stages))
	for i, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("%w before %s: %w", ErrInterrupted, stage.Name, err)
		}
		p.console.Stage(i+1, len(p.stages), stage.Name)

		var res StageResult
		if stage.When != nil {
			if ok, reason := stage.When(results); !ok {
				res = Skip(reason)
			}
		}
		if res.Status != StatusSkipped {
			start := time.Now()
			res = stage.Run(ctx)
			res.Duration = time.Since(start)
		}
		res.Name = stage.Name
		results = append(results, res)
		p.console.Result(res)
		p.log(res)

		if res.Status == StatusFailed && (stage.Fatal || res.Abort) {
			return results, fmt.Errorf("%s: %w", stage.Name, res.Err)
		}
	}
	return results, nil
}

func (p *Pipeline) log(res StageResult) {
	fields := []zap.Field{
		zap.String("stage", res.Name),
		zap.Stringer("status", res.Status),
		zap.Duration("duration", res.Duration),
	}
	if res.Detail != "" {
		fields = append(fields, zap.String("detail", res.Detail))
	}
	switch res.Status {
	case StatusFailed:
		p.logger.Error("Stage failed.", append(fields, zap.Error(res.Err))...)
	case StatusWarn:
		p.logger.Warn("Stage finished with warnings.", append(fields, zap.Error(res.Err))...)
	default:
		p.logger.Info("Stage finished.", fields...)
	}
}

// Succeeded reports whether the named stage ran and did not fail.
func Succeeded(results []StageResult, name string) bool {
	for _, r := range results {
		if r.Name == name {
			return r.Status == StatusOK || r.Status == StatusWarn
		}
	}
	return false
}
