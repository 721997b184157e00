// Package dataset loads the parametrization data of the search cases.
package dataset

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Case is one Test Case Datum: search keyword and the 1-based result to click.
type Case struct {
	Keyword string `yaml:"keyword"`
	Index   int    `yaml:"index"`
}

// ID names the case in logs and reports.
func (c Case) ID() string {
	return fmt.Sprintf("%s-%d", c.Keyword, c.Index)
}

type document struct {
	TestData []yaml.Node `yaml:"test_data"`
}

// ErrNoCases is returned for a file whose test_data list is missing or empty.
var ErrNoCases = errors.New("no test cases")

// Load reads and validates the data file at path.
func Load(path string) ([]Case, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test data: %w", err)
	}
	cases, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cases, nil
}

// Parse decodes a test_data document. Every entry must carry a non-empty
// keyword and an index of at least 1; the first bad entry is reported with
// its position and line.
func Parse(raw []byte) ([]Case, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	if len(doc.TestData) == 0 {
		return nil, ErrNoCases
	}

	cases := make([]Case, 0, len(doc.TestData))
	for i, node := range doc.TestData {
		var c Case
		if err := node.Decode(&c); err != nil {
			return nil, fmt.Errorf("test_data[%d] (line %d): %w", i, node.Line, err)
		}
		if strings.TrimSpace(c.Keyword) == "" {
			return nil, fmt.Errorf("test_data[%d] (line %d): keyword is required", i, node.Line)
		}
		if c.Index < 1 {
			return nil, fmt.Errorf("test_data[%d] (line %d): index must be >= 1, got %d", i, node.Line, c.Index)
		}
		cases = append(cases, c)
	}
	return cases, nil
}
