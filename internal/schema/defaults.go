package schema

import "strings"

// DefaultFor synthesizes a default value for a missing field: the explicit
// schema default when present, else a value inferred from the field's name
// pattern, else the zero value of its declared kind. Korean name patterns are
// recognized alongside the canonical English names because heuristic recovery
// can surface Korean-labeled keys.
func DefaultFor(f Field) any {
	if f.Default != nil {
		return f.Default
	}

	name := strings.ToLower(f.Name)
	switch {
	case strings.Contains(name, "score") || strings.Contains(name, "점수"):
		return 0
	case strings.Contains(name, "feedback") || strings.Contains(name, "피드백"):
		return PlaceholderFeedback
	case strings.Contains(name, "rationale") || strings.Contains(name, "근거") || strings.Contains(name, "판단"):
		return PlaceholderRationale
	case strings.Contains(name, "result") || strings.Contains(name, "결과"):
		return map[string]any{}
	}

	switch f.Kind {
	case KindInt:
		return 0
	case KindString:
		return ""
	case KindBool:
		return false
	case KindList:
		return []any{}
	case KindObject:
		return map[string]any{}
	}
	return nil
}

// SectionDefaults returns a map holding defaults for every required field in
// fields. Used when an entire section has to be synthesized.
func SectionDefaults(fields []Field) map[string]any {
	section := make(map[string]any)
	for _, f := range fields {
		if f.Required {
			section[f.Name] = DefaultFor(f)
		}
	}
	return section
}

// EmergencyRecord builds a complete schema-shaped record with every score
// zeroed and apology placeholder feedback. It is structurally valid for any
// rubric and is the parser's last-resort output.
func EmergencyRecord(s Schema) map[string]any {
	scoring := make(map[string]any, len(s.Scoring))
	for _, f := range s.Scoring {
		switch f.Kind {
		case KindInt:
			scoring[f.Name] = 0
		case KindObject:
			scoring[f.Name] = map[string]any{}
		default:
			scoring[f.Name] = DefaultFor(f)
		}
	}
	feedback := map[string]any{
		ContentFeedbackField:  EmergencyFeedback,
		BluffFlagField:        false,
		BluffExplanationField: "",
	}
	return map[string]any{
		ScoringSection:  scoring,
		FeedbackSection: feedback,
	}
}
