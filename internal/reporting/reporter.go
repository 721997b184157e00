// Package reporting records case results and renders them as JSON lines,
// JUnit XML and a static HTML report.
package reporting

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Result file names inside the results directory.
const (
	ResultsFile = "results.jsonl"
	JUnitFile   = "junit.xml"
)

// Reporter defines the interface for writing case results to an output.
type Reporter interface {
	// Write records a single case result.
	Write(result *CaseResult) error
	// Close finalizes the report and closes any underlying resources.
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a new reporter based on the specified format and output path.
// An empty path or "stdout" writes to standard output.
func New(format, outputPath string) (Reporter, error) {
	switch format {
	case "json", "junit":
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	var writer io.WriteCloser
	if outputPath == "" || outputPath == "stdout" {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	if format == "json" {
		return NewJSONLinesReporter(writer), nil
	}
	return NewJUnitReporter(writer, "searchcheck"), nil
}

// NewResultsReporter opens the JSON lines and JUnit reporters for dir.
func NewResultsReporter(dir string) (Reporter, error) {
	jsonl, err := New("json", filepath.Join(dir, ResultsFile))
	if err != nil {
		return nil, err
	}
	junit, err := New("junit", filepath.Join(dir, JUnitFile))
	if err != nil {
		_ = jsonl.Close()
		return nil, err
	}
	return Multi(jsonl, junit), nil
}

type multiReporter struct {
	reporters []Reporter
}

// Multi fans every result out to all reporters. Every reporter is written
// and closed even when an earlier one fails.
func Multi(reporters ...Reporter) Reporter {
	return &multiReporter{reporters: reporters}
}

func (m *multiReporter) Write(result *CaseResult) error {
	var errs []error
	for _, r := range m.reporters {
		if err := r.Write(result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *multiReporter) Close() error {
	var errs []error
	for _, r := range m.reporters {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// JSONLinesReporter writes one JSON document per result as it arrives.
// It is thread safe.
type JSONLinesReporter struct {
	mu     sync.Mutex
	writer io.WriteCloser
}

// NewJSONLinesReporter takes ownership of writer.
func NewJSONLinesReporter(writer io.WriteCloser) *JSONLinesReporter {
	return &JSONLinesReporter{writer: writer}
}

func (r *JSONLinesReporter) Write(result *CaseResult) error {
	line, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result %s: %w", result.ID, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.writer.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write result %s: %w", result.ID, err)
	}
	return nil
}

func (r *JSONLinesReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writer.Close()
}
