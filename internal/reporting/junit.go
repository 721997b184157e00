package reporting

import (
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/beevik/etree"
)

// JUnitReporter buffers results and writes a JUnit XML document on Close.
type JUnitReporter struct {
	mu      sync.Mutex
	writer  io.WriteCloser
	suite   string
	results []*CaseResult
	closed  bool
}

// NewJUnitReporter takes ownership of writer.
func NewJUnitReporter(writer io.WriteCloser, suite string) *JUnitReporter {
	return &JUnitReporter{writer: writer, suite: suite}
}

func (r *JUnitReporter) Write(result *CaseResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("junit reporter closed")
	}
	r.results = append(r.results, result)
	return nil
}

func (r *JUnitReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	doc := BuildJUnit(r.suite, r.results)
	if _, err := doc.WriteTo(r.writer); err != nil {
		r.writer.Close()
		return fmt.Errorf("failed to write junit report: %w", err)
	}
	return r.writer.Close()
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// BuildJUnit renders results as a single <testsuite> inside <testsuites>.
// Failed cases get a <failure>, broken ones an <error>.
func BuildJUnit(suite string, results []*CaseResult) *etree.Document {
	sum := Summarize(results)

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("testsuites")
	root.CreateAttr("name", suite)
	root.CreateAttr("tests", strconv.Itoa(sum.Total))
	root.CreateAttr("failures", strconv.Itoa(sum.Failed))
	root.CreateAttr("errors", strconv.Itoa(sum.Broken))
	root.CreateAttr("time", seconds(sum.Duration))

	ts := root.CreateElement("testsuite")
	ts.CreateAttr("name", suite)
	ts.CreateAttr("tests", strconv.Itoa(sum.Total))
	ts.CreateAttr("failures", strconv.Itoa(sum.Failed))
	ts.CreateAttr("errors", strconv.Itoa(sum.Broken))
	ts.CreateAttr("skipped", strconv.Itoa(sum.Skipped))
	ts.CreateAttr("time", seconds(sum.Duration))
	if len(results) > 0 {
		ts.CreateAttr("timestamp", results[0].StartedAt.UTC().Format(time.RFC3339))
		props := ts.CreateElement("properties")
		for _, kv := range [][2]string{{"run_id", results[0].RunID}, {"env", results[0].Env}} {
			p := props.CreateElement("property")
			p.CreateAttr("name", kv[0])
			p.CreateAttr("value", kv[1])
		}
	}

	for _, res := range results {
		tc := ts.CreateElement("testcase")
		tc.CreateAttr("name", res.Name)
		tc.CreateAttr("classname", suite)
		tc.CreateAttr("time", seconds(res.Duration))

		switch res.Status {
		case StatusFailed:
			f := tc.CreateElement("failure")
			f.CreateAttr("type", res.Kind)
			f.CreateAttr("message", res.Message)
			f.SetText(res.Message)
		case StatusBroken:
			e := tc.CreateElement("error")
			e.CreateAttr("type", res.Kind)
			e.CreateAttr("message", res.Message)
			e.SetText(res.Message)
		case StatusSkipped:
			s := tc.CreateElement("skipped")
			if res.Message != "" {
				s.CreateAttr("message", res.Message)
			}
		}
	}

	doc.Indent(2)
	return doc
}
