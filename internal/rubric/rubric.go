// Package rubric defines the grading criteria tree supplied by the caller.
// A rubric drives schema construction: each criterion and sub-criterion
// contributes one score field to the expected grading record.
package rubric

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SubCriterion is one scored element within a criterion.
type SubCriterion struct {
	MaxScore    int    `json:"max_score" yaml:"max_score"`
	Description string `json:"description" yaml:"description"`
}

// Criterion is one main grading criterion with its sub-criteria.
type Criterion struct {
	Name        string         `json:"name" yaml:"name"`
	SubCriteria []SubCriterion `json:"sub_criteria" yaml:"sub_criteria"`
}

// MaxScore returns the sum of the criterion's sub-criterion maxima.
func (c Criterion) MaxScore() int {
	total := 0
	for _, sub := range c.SubCriteria {
		total += sub.MaxScore
	}
	return total
}

// Spec is an ordered list of grading criteria. It is immutable once loaded;
// consumers treat it as a read-only input.
type Spec struct {
	Criteria []Criterion `json:"criteria" yaml:"criteria"`
}

// MaxScore returns the sum of all sub-criterion maxima.
func (s Spec) MaxScore() int {
	total := 0
	for _, c := range s.Criteria {
		for _, sub := range c.SubCriteria {
			total += sub.MaxScore
		}
	}
	return total
}

// SubCount returns the total number of sub-criteria across all criteria.
func (s Spec) SubCount() int {
	n := 0
	for _, c := range s.Criteria {
		n += len(c.SubCriteria)
	}
	return n
}

// Load reads a rubric file, dispatching on extension: .json, .yaml/.yml,
// or .md. Returns an error for empty rubrics so that a schema is never built
// from a criteria-free spec by accident.
func Load(path string) (Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return Spec{}, fmt.Errorf("rubric: open %s: %w", path, err)
	}
	defer f.Close()

	var spec Spec
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		spec, err = ParseJSON(f)
	case ".yaml", ".yml":
		spec, err = ParseYAML(f)
	case ".md", ".markdown":
		spec, err = ParseMarkdown(f)
	default:
		return Spec{}, fmt.Errorf("rubric: unsupported file extension %q (want .json, .yaml, or .md)", ext)
	}
	if err != nil {
		return Spec{}, err
	}
	if len(spec.Criteria) == 0 {
		return Spec{}, fmt.Errorf("rubric: %s contains no criteria", path)
	}
	return spec, nil
}

// ParseJSON decodes a rubric from JSON.
func ParseJSON(r io.Reader) (Spec, error) {
	var spec Spec
	dec := json.NewDecoder(r)
	if err := dec.Decode(&spec); err != nil {
		return Spec{}, fmt.Errorf("rubric: decode json: %w", err)
	}
	return spec, nil
}

// ParseYAML decodes a rubric from YAML.
func ParseYAML(r io.Reader) (Spec, error) {
	var spec Spec
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&spec); err != nil {
		return Spec{}, fmt.Errorf("rubric: decode yaml: %w", err)
	}
	return spec, nil
}
