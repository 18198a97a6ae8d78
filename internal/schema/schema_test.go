package schema_test

import (
	"testing"

	"github.com/cwyun/gradefall/internal/rubric"
	"github.com/cwyun/gradefall/internal/schema"
)

func testRubric() rubric.Spec {
	return rubric.Spec{
		Criteria: []rubric.Criterion{
			{
				Name: "지리적 위치 표기",
				SubCriteria: []rubric.SubCriterion{
					{MaxScore: 20, Description: "주요 도시 정확히 표기"},
					{MaxScore: 15, Description: "지역 경계 표기"},
				},
			},
			{
				Name: "교통 네트워크",
				SubCriteria: []rubric.SubCriterion{
					{MaxScore: 25, Description: "주요 교통로 표기"},
				},
			},
		},
	}
}

// For a rubric with N criteria and k_i sub-criteria each, the schema has
// N + Σk_i score fields plus total_score and rationale, and 3 feedback fields.
func TestBuild_FieldCounts(t *testing.T) {
	spec := testRubric()
	s := schema.Build(spec)

	wantScoring := len(spec.Criteria) + spec.SubCount() + 2 // scores + total + rationale
	if got := len(s.Scoring); got != wantScoring {
		t.Errorf("len(Scoring) = %d, want %d", got, wantScoring)
	}
	if got := len(s.Feedback); got != 3 {
		t.Errorf("len(Feedback) = %d, want 3", got)
	}
}

func TestBuild_FieldNamesAndKinds(t *testing.T) {
	s := schema.Build(testRubric())

	for _, name := range []string{"main_score_1", "sub_score_1_1", "sub_score_1_2", "main_score_2", "sub_score_2_1"} {
		f, ok := s.ScoringField(name)
		if !ok {
			t.Fatalf("scoring field %q missing", name)
		}
		if f.Kind != schema.KindInt {
			t.Errorf("field %q kind = %q, want integer", name, f.Kind)
		}
		if f.Required {
			t.Errorf("field %q must not be required", name)
		}
	}

	total, ok := s.ScoringField(schema.TotalScoreField)
	if !ok || !total.Required || total.Kind != schema.KindInt {
		t.Errorf("total_score = %+v, ok=%v; want required integer", total, ok)
	}
	rat, ok := s.ScoringField(schema.RationaleField)
	if !ok || rat.Required || rat.Kind != schema.KindObject {
		t.Errorf("rationale = %+v, ok=%v; want optional object", rat, ok)
	}

	cf, ok := s.FeedbackField(schema.ContentFeedbackField)
	if !ok || !cf.Required || cf.Kind != schema.KindString {
		t.Errorf("content_feedback = %+v, ok=%v; want required string", cf, ok)
	}
	bf, ok := s.FeedbackField(schema.BluffFlagField)
	if !ok || !bf.Required || bf.Kind != schema.KindBool {
		t.Errorf("is_bluff_flag = %+v, ok=%v; want required boolean", bf, ok)
	}
	be, ok := s.FeedbackField(schema.BluffExplanationField)
	if !ok || be.Required {
		t.Errorf("bluff_explanation = %+v, ok=%v; want optional", be, ok)
	}
	if be.Default != "" {
		t.Errorf("bluff_explanation default = %v, want empty string", be.Default)
	}
}

func TestBuild_UniqueFieldNames(t *testing.T) {
	s := schema.Build(testRubric())
	seen := map[string]bool{}
	for _, f := range s.Scoring {
		if seen[f.Name] {
			t.Errorf("duplicate scoring field %q", f.Name)
		}
		seen[f.Name] = true
	}
	seen = map[string]bool{}
	for _, f := range s.Feedback {
		if seen[f.Name] {
			t.Errorf("duplicate feedback field %q", f.Name)
		}
		seen[f.Name] = true
	}
}

func TestDefaultFor(t *testing.T) {
	cases := []struct {
		field schema.Field
		want  any
	}{
		{schema.Field{Name: "main_score_1", Kind: schema.KindInt}, 0},
		{schema.Field{Name: "content_feedback", Kind: schema.KindString}, schema.PlaceholderFeedback},
		{schema.Field{Name: "rationale", Kind: schema.KindObject}, schema.PlaceholderRationale},
		{schema.Field{Name: "bluff_explanation", Kind: schema.KindString, Default: ""}, ""},
		{schema.Field{Name: "unknown_text", Kind: schema.KindString}, ""},
		{schema.Field{Name: "unknown_flag", Kind: schema.KindBool}, false},
	}
	for _, c := range cases {
		got := schema.DefaultFor(c.field)
		// Object defaults compare by shape, not identity.
		if m, ok := got.(map[string]any); ok {
			if len(m) != 0 {
				t.Errorf("DefaultFor(%q) = %v, want empty object", c.field.Name, got)
			}
			continue
		}
		if got != c.want {
			t.Errorf("DefaultFor(%q) = %v, want %v", c.field.Name, got, c.want)
		}
	}
}

func TestEmergencyRecord(t *testing.T) {
	s := schema.Build(testRubric())
	rec := schema.EmergencyRecord(s)

	scoring, ok := rec[schema.ScoringSection].(map[string]any)
	if !ok {
		t.Fatal("emergency record missing scoring section")
	}
	for _, f := range s.Scoring {
		if f.Kind != schema.KindInt {
			continue
		}
		if scoring[f.Name] != 0 {
			t.Errorf("emergency score %q = %v, want 0", f.Name, scoring[f.Name])
		}
	}

	feedback, ok := rec[schema.FeedbackSection].(map[string]any)
	if !ok {
		t.Fatal("emergency record missing feedback section")
	}
	if feedback[schema.ContentFeedbackField] != schema.EmergencyFeedback {
		t.Errorf("emergency feedback = %v", feedback[schema.ContentFeedbackField])
	}
	if feedback[schema.BluffFlagField] != false {
		t.Errorf("emergency bluff flag = %v, want false", feedback[schema.BluffFlagField])
	}
}

func TestDefault_Schema(t *testing.T) {
	s := schema.Default()
	// One criterion, one sub-criterion: 2 score fields + total + rationale.
	if got := len(s.Scoring); got != 4 {
		t.Errorf("default schema scoring fields = %d, want 4", got)
	}
}
