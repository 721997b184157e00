package reporting

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// IndexFile is the entry page of the HTML report.
const IndexFile = "index.html"

//go:embed report.html.tmpl
var reportTemplate string

var reportTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"ms": func(d time.Duration) string { return d.Round(time.Millisecond).String() },
}).Parse(reportTemplate))

type reportData struct {
	Title     string
	Generated string
	RunID     string
	Env       string
	Summary   Summary
	Results   []*CaseResult
}

// RenderHTML renders results as a standalone HTML page.
func RenderHTML(title string, results []*CaseResult, generated time.Time) ([]byte, error) {
	data := reportData{
		Title:     title,
		Generated: generated.Format(time.RFC3339),
		Summary:   Summarize(results),
		Results:   results,
	}
	if len(results) > 0 {
		data.RunID = results[0].RunID
		data.Env = results[0].Env
	}
	var buf bytes.Buffer
	if err := reportTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return buf.Bytes(), nil
}

// Generate reads the results directory and writes <reportDir>/index.html,
// replacing any earlier report. It returns the path of the index.
func Generate(resultsDir, reportDir, title string) (string, error) {
	results, err := ReadResultsFile(filepath.Join(resultsDir, ResultsFile))
	if err != nil {
		return "", err
	}
	page, err := RenderHTML(title, results, time.Now())
	if err != nil {
		return "", err
	}
	if err := os.RemoveAll(reportDir); err != nil {
		return "", fmt.Errorf("failed to clear report directory: %w", err)
	}
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	index := filepath.Join(reportDir, IndexFile)
	if err := os.WriteFile(index, page, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return index, nil
}

// Inspect reads the summary back out of a generated report page.
func Inspect(path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to open report: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to parse report: %w", err)
	}
	if doc.Find("#summary").Length() == 0 {
		return Summary{}, fmt.Errorf("%s is not a searchcheck report", path)
	}

	count := func(id string) (int, error) {
		text := strings.TrimSpace(doc.Find("#summary [data-count=" + id + "]").Text())
		n, err := strconv.Atoi(text)
		if err != nil {
			return 0, fmt.Errorf("bad %s count %q: %w", id, text, err)
		}
		return n, nil
	}
	var s Summary
	for _, field := range []struct {
		id  string
		dst *int
	}{
		{"total", &s.Total},
		{"passed", &s.Passed},
		{"failed", &s.Failed},
		{"broken", &s.Broken},
		{"skipped", &s.Skipped},
	} {
		n, err := count(field.id)
		if err != nil {
			return Summary{}, err
		}
		*field.dst = n
	}
	if rows := doc.Find("tr.case").Length(); rows != s.Total {
		return Summary{}, fmt.Errorf("report lists %d cases but summarizes %d", rows, s.Total)
	}
	return s, nil
}
