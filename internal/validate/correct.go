package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/cwyun/gradefall/internal/parse"
	"github.com/cwyun/gradefall/internal/schema"
)

// Known alternate spellings seen in model output. Korean labels come from
// responses that echo the prompt's field descriptions instead of the
// canonical names; similarity scoring cannot bridge scripts, so these are
// mapped by table.
var (
	sectionAliases = map[string]string{
		"채점결과":    schema.ScoringSection,
		"채점_결과":   schema.ScoringSection,
		"grading": schema.ScoringSection,
		"result":  schema.ScoringSection,
		"피드백":     schema.FeedbackSection,
	}
	leafAliases = map[string]string{
		"합산_점수":     schema.TotalScoreField,
		"총점":        schema.TotalScoreField,
		"점수_판단_근거":  schema.RationaleField,
		"판단_근거":     schema.RationaleField,
		"교과_내용_피드백": schema.ContentFeedbackField,
		"피드백_내용":    schema.ContentFeedbackField,
		"의사_응답_여부":  schema.BluffFlagField,
		"의사_응답_설명":  schema.BluffExplanationField,
	}
)

// similarity returns a normalized string similarity in [0,1]: 1 minus the
// Levenshtein distance over the longer length, case-folded.
func similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return 1.0
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(longest)
}

// AttemptCorrection applies stray-field relocation, field-name repair, type
// coercion, and default-filling to a copy of data, honoring the engine's
// config switches.
// Success is false when nothing needed fixing (callers should use the
// original data in that case). Confidence reflects the number of corrections.
func (e *Engine) AttemptCorrection(data map[string]any, s schema.Schema) parse.RecoveryResult {
	work := deepCopy(data)
	var notes []string

	notes = append(notes, e.relocateStrays(work, s)...)
	if e.Config.AllowFieldMapping {
		notes = append(notes, e.repairNames(work, s)...)
	}
	if e.Config.AllowTypeCoercion {
		notes = append(notes, e.coerceFields(work, s)...)
	}
	notes = append(notes, e.fillStructure(work, s)...)

	return parse.RecoveryResult{
		Success:    len(notes) > 0,
		Data:       work,
		Confidence: e.confidence(len(notes)),
		Notes:      notes,
	}
}

// repairNames renames near-miss keys to their schema counterparts, first at
// the top level (container names) and then inside each section. A rename
// never overwrites an existing key: when the target is occupied the stray
// key is left alone and reported by strict validation instead.
func (e *Engine) repairNames(data map[string]any, s schema.Schema) []string {
	var notes []string

	sectionNames := []string{schema.ScoringSection, schema.FeedbackSection}
	notes = append(notes, e.renamePass(data, sectionNames, sectionAliases)...)

	if section, ok := data[schema.ScoringSection].(map[string]any); ok {
		notes = append(notes, e.renamePass(section, fieldNames(s.Scoring), leafAliases)...)
	}
	if section, ok := data[schema.FeedbackSection].(map[string]any); ok {
		notes = append(notes, e.renamePass(section, fieldNames(s.Feedback), leafAliases)...)
	}
	return notes
}

func (e *Engine) renamePass(m map[string]any, known []string, aliases map[string]string) []string {
	var notes []string
	for key, v := range m {
		if contains(known, key) {
			continue
		}
		target := ""
		if canonical, ok := aliases[key]; ok && contains(known, canonical) {
			target = canonical
		} else {
			best, score := "", 0.0
			for _, name := range known {
				if sc := similarity(key, name); sc > score {
					best, score = name, sc
				}
			}
			if score >= e.SimilarityThreshold {
				target = best
			}
		}
		if target == "" || target == key {
			continue
		}
		if _, occupied := m[target]; occupied {
			continue
		}
		m[target] = v
		delete(m, key)
		notes = append(notes, fmt.Sprintf("renamed %q to %q", key, target))
	}
	return notes
}

// coerceFields converts section values whose type disagrees with the
// declared kind. Unconvertible values pass through untouched.
func (e *Engine) coerceFields(data map[string]any, s schema.Schema) []string {
	var notes []string
	for _, sec := range []struct {
		name   string
		fields []schema.Field
	}{
		{schema.ScoringSection, s.Scoring},
		{schema.FeedbackSection, s.Feedback},
	} {
		section, ok := data[sec.name].(map[string]any)
		if !ok {
			continue
		}
		for _, f := range sec.fields {
			v, present := section[f.Name]
			if !present || kindOK(v, f.Kind) {
				continue
			}
			if coerced, ok := coerce(v, f.Kind); ok {
				section[f.Name] = coerced
				notes = append(notes, fmt.Sprintf("coerced %s.%s to %s", sec.name, f.Name, f.Kind))
			}
		}
	}
	return notes
}

func fieldNames(fields []schema.Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

func contains(names []string, key string) bool {
	for _, n := range names {
		if n == key {
			return true
		}
	}
	return false
}

var leadingNumRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

var boolForms = map[string]bool{
	"true": true, "yes": true, "1": true, "on": true, "enabled": true,
	"예": true, "참": true, "y": true,
	"false": false, "no": false, "0": false, "off": false, "disabled": false,
	"아니오": false, "아니요": false, "거짓": false, "n": false,
}

// coerce converts v to the declared kind when a lossless or conventional
// conversion exists. The second return is false when no conversion applies.
func coerce(v any, kind schema.Kind) (any, bool) {
	switch kind {
	case schema.KindInt:
		switch t := v.(type) {
		case float64:
			return int(math.Round(t)), true
		case string:
			if m := leadingNumRe.FindString(t); m != "" {
				if f, err := strconv.ParseFloat(m, 64); err == nil {
					return int(math.Round(f)), true
				}
			}
		case bool:
			if t {
				return 1, true
			}
			return 0, true
		}
	case schema.KindString:
		switch t := v.(type) {
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64), true
		case int:
			return strconv.Itoa(t), true
		case bool:
			return strconv.FormatBool(t), true
		}
	case schema.KindBool:
		switch t := v.(type) {
		case string:
			if b, ok := boolForms[strings.ToLower(strings.TrimSpace(t))]; ok {
				return b, true
			}
		case float64:
			return t != 0, true
		}
	case schema.KindList:
		switch t := v.(type) {
		case string:
			if strings.Contains(t, ",") {
				parts := strings.Split(t, ",")
				out := make([]any, len(parts))
				for i, p := range parts {
					out[i] = strings.TrimSpace(p)
				}
				return out, true
			}
			return []any{t}, true
		default:
			return []any{v}, true
		}
	case schema.KindObject:
		if t, ok := v.(string); ok {
			var m map[string]any
			if err := json.Unmarshal([]byte(t), &m); err == nil {
				return m, true
			}
			return map[string]any{"content": t}, true
		}
	}
	return nil, false
}
