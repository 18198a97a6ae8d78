// Package validate checks parsed grading data against a schema and, when
// strict validation fails, attempts bounded error correction: fuzzy
// field-name repair, type coercion, and default-filling. It also offers a
// permissive adaptive mode that patches structural gaps instead of rejecting.
package validate

import (
	"fmt"
	"math"

	"github.com/cwyun/gradefall/internal/parse"
	"github.com/cwyun/gradefall/internal/rubric"
	"github.com/cwyun/gradefall/internal/schema"
)

// Engine validates and corrects parsed records. The threshold and the
// confidence constants are tunable; the defaults reproduce the behavior the
// grading pipeline was calibrated against.
type Engine struct {
	Config parse.Config

	// SimilarityThreshold is the minimum normalized string similarity for a
	// fuzzy field rename.
	SimilarityThreshold float64

	// ConfidencePenalty is subtracted from 1.0 per correction applied;
	// ConfidenceFloor bounds the result from below.
	ConfidencePenalty float64
	ConfidenceFloor   float64
}

func NewEngine(cfg parse.Config) *Engine {
	return &Engine{
		Config:              cfg,
		SimilarityThreshold: 0.6,
		ConfidencePenalty:   0.2,
		ConfidenceFloor:     0.1,
	}
}

// confidence converts a correction count into a confidence score.
// 1.0 is reserved for untouched data.
func (e *Engine) confidence(corrections int) float64 {
	if corrections == 0 {
		return 1.0
	}
	return math.Max(e.ConfidenceFloor, 1.0-e.ConfidencePenalty*float64(corrections))
}

// Check runs strict validation and returns every violation found. A nil
// error slice means the data conforms.
func (e *Engine) Check(data map[string]any, s schema.Schema) []string {
	var errs []string
	errs = append(errs, e.checkSection(data, schema.ScoringSection, s.Scoring)...)
	errs = append(errs, e.checkSection(data, schema.FeedbackSection, s.Feedback)...)
	return errs
}

func (e *Engine) checkSection(data map[string]any, name string, fields []schema.Field) []string {
	raw, ok := data[name]
	if !ok {
		return []string{fmt.Sprintf("%s: missing container", name)}
	}
	section, ok := raw.(map[string]any)
	if !ok {
		return []string{fmt.Sprintf("%s: expected object, got %T", name, raw)}
	}

	var errs []string
	for _, f := range fields {
		v, present := section[f.Name]
		if !present {
			if f.Required && e.Config.RequireAllRequiredFields {
				errs = append(errs, fmt.Sprintf("%s.%s: missing required field", name, f.Name))
			}
			continue
		}
		if !kindOK(v, f.Kind) {
			errs = append(errs, fmt.Sprintf("%s.%s: expected %s, got %T", name, f.Name, f.Kind, v))
		}
	}
	return errs
}

// kindOK reports whether a decoded JSON value conforms to the declared kind.
// Integral float64 values count as integers since encoding/json decodes all
// numbers to float64.
func kindOK(v any, kind schema.Kind) bool {
	switch kind {
	case schema.KindInt:
		switch n := v.(type) {
		case int:
			return true
		case int64:
			return true
		case float64:
			return n == math.Trunc(n)
		}
		return false
	case schema.KindString:
		_, ok := v.(string)
		return ok
	case schema.KindBool:
		_, ok := v.(bool)
		return ok
	case schema.KindObject:
		_, ok := v.(map[string]any)
		return ok
	case schema.KindList:
		_, ok := v.([]any)
		return ok
	}
	return false
}

// ValidateStructure attempts strict validation. On failure, if any correction
// option is enabled, it runs AttemptCorrection and re-validates the corrected
// object: success yields is_valid=true with one warning per correction and
// the corrected data; failure discards the corrections and reports the
// original errors.
func (e *Engine) ValidateStructure(data map[string]any, s schema.Schema) *parse.ValidationResult {
	errs := e.Check(data, s)
	if len(errs) == 0 {
		return &parse.ValidationResult{IsValid: true}
	}

	if e.Config.AllowFieldMapping || e.Config.AllowTypeCoercion {
		rec := e.AttemptCorrection(data, s)
		if rec.Success && len(e.Check(rec.Data, s)) == 0 {
			warnings := make([]string, len(rec.Notes))
			for i, n := range rec.Notes {
				warnings[i] = "corrected: " + n
			}
			return &parse.ValidationResult{
				IsValid:   true,
				Warnings:  warnings,
				Corrected: rec.Data,
			}
		}
	}
	return &parse.ValidationResult{IsValid: false, Errors: errs}
}

// ValidateAdaptive builds the schema for the supplied rubric and patches the
// data into shape instead of rejecting it: stray top-level leaf fields are
// relocated into their owning section, near-miss names are repaired, values
// are coerced, and whatever required structure is still missing is filled
// with defaults. Every patch becomes a warning. The result is valid whenever
// the input is an object at all.
func (e *Engine) ValidateAdaptive(data map[string]any, spec rubric.Spec) *parse.ValidationResult {
	return e.ValidateAdaptiveSchema(data, schema.Build(spec))
}

// ValidateAdaptiveSchema is ValidateAdaptive against a pre-built schema.
func (e *Engine) ValidateAdaptiveSchema(data map[string]any, s schema.Schema) *parse.ValidationResult {
	if data == nil {
		return &parse.ValidationResult{IsValid: false, Errors: []string{"no data to validate"}}
	}

	work := deepCopy(data)
	var warnings []string

	warnings = append(warnings, e.relocateStrays(work, s)...)
	if e.Config.AllowFieldMapping {
		warnings = append(warnings, e.repairNames(work, s)...)
	}
	if e.Config.AllowTypeCoercion {
		warnings = append(warnings, e.coerceFields(work, s)...)
	}
	warnings = append(warnings, e.fillStructure(work, s)...)

	return &parse.ValidationResult{
		IsValid:   true,
		Warnings:  warnings,
		Corrected: work,
	}
}

// relocateStrays moves known leaf fields that landed at the top level into
// the section that owns them. A leaf already present in its section wins
// over the stray copy; the losing stray is left in place rather than
// discarded, so the value stays recoverable from the corrected data.
func (e *Engine) relocateStrays(data map[string]any, s schema.Schema) []string {
	var notes []string
	for key, v := range data {
		if key == schema.ScoringSection || key == schema.FeedbackSection {
			continue
		}
		owner := ""
		target := key
		if canonical, ok := leafAliases[key]; ok {
			target = canonical
		}
		if _, ok := s.ScoringField(target); ok {
			owner = schema.ScoringSection
		} else if _, ok := s.FeedbackField(target); ok {
			owner = schema.FeedbackSection
		}
		if owner == "" {
			continue
		}
		section := ensureSection(data, owner)
		if _, occupied := section[target]; occupied {
			notes = append(notes, fmt.Sprintf("stray %q not relocated: %s.%s already set", key, owner, target))
			continue
		}
		section[target] = v
		delete(data, key)
		notes = append(notes, fmt.Sprintf("relocated %q into %s", key, owner))
	}
	return notes
}

// fillStructure inserts missing containers and missing required leaf fields
// with synthesized defaults.
func (e *Engine) fillStructure(data map[string]any, s schema.Schema) []string {
	var notes []string
	for _, sec := range []struct {
		name   string
		fields []schema.Field
	}{
		{schema.ScoringSection, s.Scoring},
		{schema.FeedbackSection, s.Feedback},
	} {
		raw, ok := data[sec.name]
		section, isMap := raw.(map[string]any)
		if !ok || !isMap {
			data[sec.name] = schema.SectionDefaults(sec.fields)
			notes = append(notes, fmt.Sprintf("inserted missing container %s", sec.name))
			continue
		}
		for _, f := range sec.fields {
			if !f.Required {
				continue
			}
			if _, present := section[f.Name]; !present {
				section[f.Name] = schema.DefaultFor(f)
				notes = append(notes, fmt.Sprintf("filled %s.%s with default", sec.name, f.Name))
			}
		}
	}
	return notes
}

func ensureSection(data map[string]any, name string) map[string]any {
	if section, ok := data[name].(map[string]any); ok {
		return section
	}
	section := map[string]any{}
	data[name] = section
	return section
}

func deepCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
