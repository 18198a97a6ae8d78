// Package schema defines the canonical shape of a grading record and builds
// field-descriptor schemas from a rubric. A schema is a plain descriptor list
// consumed by a generic validator; no per-rubric types are generated.
package schema

import (
	"fmt"

	"github.com/cwyun/gradefall/internal/rubric"
)

// Kind is the declared type of a schema field.
type Kind string

const (
	KindInt    Kind = "integer"
	KindString Kind = "string"
	KindBool   Kind = "boolean"
	KindObject Kind = "object"
	KindList   Kind = "list"
)

// Container names of the two top-level sections every grading record carries.
const (
	ScoringSection  = "grading_result"
	FeedbackSection = "feedback"
)

// Canonical field names within the sections.
const (
	TotalScoreField       = "total_score"
	RationaleField        = "rationale"
	ContentFeedbackField  = "content_feedback"
	BluffFlagField        = "is_bluff_flag"
	BluffExplanationField = "bluff_explanation"
)

// Placeholder text used when a feedback or rationale value must be
// synthesized. The product grades Korean-language answers, so the
// placeholders match the language students and teachers see.
const (
	PlaceholderFeedback  = "피드백을 생성할 수 없습니다."
	PlaceholderRationale = "판단 근거를 생성할 수 없습니다."
	EmergencyFeedback    = "죄송합니다. 응답을 해석할 수 없어 자동 채점에 실패했습니다. 수동 검토가 필요합니다."
)

// Field describes one expected field of a grading record section.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
	Default  any // explicit default; nil means "infer from name and kind"
}

// Schema is the full descriptor set for a grading record: the scoring
// section's fields and the fixed feedback section's fields. Field names are
// unique within each section.
type Schema struct {
	Scoring  []Field
	Feedback []Field
}

// MainScoreField returns the canonical name of criterion i's score field
// (1-based).
func MainScoreField(i int) string {
	return fmt.Sprintf("main_score_%d", i)
}

// SubScoreField returns the canonical name of sub-criterion j of criterion i
// (both 1-based).
func SubScoreField(i, j int) string {
	return fmt.Sprintf("sub_score_%d_%d", i, j)
}

// Build constructs the schema for a rubric: one integer score field per
// criterion and sub-criterion, a required integer total, a rationale mapping,
// and the fixed feedback sub-schema. Only total_score, content_feedback, and
// is_bluff_flag are required: models routinely omit individual rubric
// sub-fields under generation pressure, and that alone should not reject a
// response.
func Build(spec rubric.Spec) Schema {
	var scoring []Field
	for i := range spec.Criteria {
		scoring = append(scoring, Field{Name: MainScoreField(i + 1), Kind: KindInt})
		for j := range spec.Criteria[i].SubCriteria {
			scoring = append(scoring, Field{Name: SubScoreField(i+1, j+1), Kind: KindInt})
		}
	}
	scoring = append(scoring,
		Field{Name: TotalScoreField, Kind: KindInt, Required: true},
		Field{Name: RationaleField, Kind: KindObject},
	)

	feedback := []Field{
		{Name: ContentFeedbackField, Kind: KindString, Required: true},
		{Name: BluffFlagField, Kind: KindBool, Required: true},
		{Name: BluffExplanationField, Kind: KindString, Default: ""},
	}

	return Schema{Scoring: scoring, Feedback: feedback}
}

// Default is the minimal schema used when no rubric is available: a single
// criterion with a single sub-criterion.
func Default() Schema {
	return Build(rubric.Spec{
		Criteria: []rubric.Criterion{{
			Name:        "기본 채점 요소",
			SubCriteria: []rubric.SubCriterion{{MaxScore: 1, Description: "기본 채점 내용"}},
		}},
	})
}

// find returns the field named name from fields.
func find(fields []Field, name string) (Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ScoringField returns the named field of the scoring section.
func (s Schema) ScoringField(name string) (Field, bool) { return find(s.Scoring, name) }

// FeedbackField returns the named field of the feedback section.
func (s Schema) FeedbackField(name string) (Field, bool) { return find(s.Feedback, name) }
