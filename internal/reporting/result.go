package reporting

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/searchcheck/internal/failures"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Status is the outcome of one case.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusBroken  Status = "broken"
	StatusSkipped Status = "skipped"
)

// CaseResult is the record written for every case of a run.
type CaseResult struct {
	ID        string        `json:"id"`
	RunID     string        `json:"run_id"`
	Name      string        `json:"name"`
	Keyword   string        `json:"keyword"`
	Index     int           `json:"index"`
	Env       string        `json:"env"`
	Status    Status        `json:"status"`
	Kind      string        `json:"kind,omitempty"`
	Message   string        `json:"message,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
}

// NewCaseResult starts a result record for a case of run runID.
func NewCaseResult(runID, name, keyword string, index int, env string, started time.Time) *CaseResult {
	return &CaseResult{
		ID:        uuid.NewString(),
		RunID:     runID,
		Name:      name,
		Keyword:   keyword,
		Index:     index,
		Env:       env,
		StartedAt: started,
	}
}

// Finish records err as the outcome. Precondition and input verification
// failures are assertion-class and count as failed; every other error marks
// the case broken.
func (r *CaseResult) Finish(err error, finished time.Time) {
	r.Duration = finished.Sub(r.StartedAt)
	if err == nil {
		r.Status = StatusPassed
		return
	}
	kind := failures.KindOf(err)
	r.Kind = kind.String()
	r.Message = err.Error()
	switch kind {
	case failures.KindPrecondition, failures.KindInputVerification:
		r.Status = StatusFailed
	default:
		r.Status = StatusBroken
	}
}

// Skip marks a case that never started.
func (r *CaseResult) Skip(reason string) {
	r.Status = StatusSkipped
	r.Message = reason
}

// Summary aggregates the results of a run.
type Summary struct {
	Total    int
	Passed   int
	Failed   int
	Broken   int
	Skipped  int
	Duration time.Duration
}

// OK reports whether no case failed or broke.
func (s Summary) OK() bool { return s.Failed == 0 && s.Broken == 0 }

func (s Summary) String() string {
	return fmt.Sprintf("%d total, %d passed, %d failed, %d broken, %d skipped in %s",
		s.Total, s.Passed, s.Failed, s.Broken, s.Skipped, s.Duration.Round(time.Millisecond))
}

// Summarize counts results by status.
func Summarize(results []*CaseResult) Summary {
	var s Summary
	for _, r := range results {
		s.Total++
		s.Duration += r.Duration
		switch r.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusBroken:
			s.Broken++
		case StatusSkipped:
			s.Skipped++
		}
	}
	return s
}

// ReadJSONLines decodes results written by the json reporter. Blank lines
// are skipped.
func ReadJSONLines(r io.Reader) ([]*CaseResult, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var results []*CaseResult
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var cr CaseResult
		if err := json.Unmarshal(raw, &cr); err != nil {
			return nil, fmt.Errorf("failed to decode result on line %d: %w", line, err)
		}
		results = append(results, &cr)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	return results, nil
}

// ReadResultsFile reads a JSON lines results file.
func ReadResultsFile(path string) ([]*CaseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results: %w", err)
	}
	defer f.Close()
	return ReadJSONLines(f)
}
