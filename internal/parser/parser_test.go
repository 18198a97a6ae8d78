package parser

import (
	"reflect"
	"strings"
	"testing"

	"github.com/cwyun/gradefall/internal/parse"
	"github.com/cwyun/gradefall/internal/rubric"
	"github.com/cwyun/gradefall/internal/schema"
)

func newTestParser() *Parser {
	return New(parse.DefaultConfig())
}

func scoring(t *testing.T, data map[string]any) map[string]any {
	t.Helper()
	m, ok := data[schema.ScoringSection].(map[string]any)
	if !ok {
		t.Fatalf("missing scoring container in %v", data)
	}
	return m
}

func feedback(t *testing.T, data map[string]any) map[string]any {
	t.Helper()
	m, ok := data[schema.FeedbackSection].(map[string]any)
	if !ok {
		t.Fatalf("missing feedback container in %v", data)
	}
	return m
}

func TestParseFlatObjectPatchedToFull(t *testing.T) {
	p := newTestParser()
	res := p.Parse(`{"total_score": 85}`, schema.Default())

	if res.Level != parse.Full {
		t.Fatalf("Level = %s, want full (errors: %v)", res.Level, res.Errors)
	}
	if res.SuccessfulStrategy != parse.StrategyDirect {
		t.Errorf("SuccessfulStrategy = %s, want direct", res.SuccessfulStrategy)
	}
	if got := scoring(t, res.Data)[schema.TotalScoreField]; got != float64(85) {
		t.Errorf("total_score = %v, want 85", got)
	}
	fb := feedback(t, res.Data)
	if fb[schema.ContentFeedbackField] != schema.PlaceholderFeedback {
		t.Errorf("patched content_feedback = %v", fb[schema.ContentFeedbackField])
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "feedback") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings should mention the patched feedback container: %v", res.Warnings)
	}
}

func TestParseFencedResponse(t *testing.T) {
	p := newTestParser()
	raw := "```json\n{\"total_score\": 70, \"content_feedback\": \"ok\", \"is_bluff_flag\": false}\n```"
	res := p.Parse(raw, schema.Default())

	if res.Level != parse.Full {
		t.Fatalf("Level = %s, want full (errors: %v)", res.Level, res.Errors)
	}
	if res.SuccessfulStrategy != parse.StrategyFenced {
		t.Errorf("SuccessfulStrategy = %s, want fenced", res.SuccessfulStrategy)
	}
	if got := scoring(t, res.Data)[schema.TotalScoreField]; got != float64(70) {
		t.Errorf("total_score = %v, want 70", got)
	}
	if got := feedback(t, res.Data)[schema.ContentFeedbackField]; got != "ok" {
		t.Errorf("content_feedback = %v, want ok", got)
	}
}

func TestParseTrailingCommaAndStringScore(t *testing.T) {
	p := newTestParser()
	res := p.Parse(`{"total_score": "75",}`, schema.Default())

	if res.Level != parse.Full {
		t.Fatalf("Level = %s, want full (errors: %v)", res.Level, res.Errors)
	}
	if got := scoring(t, res.Data)[schema.TotalScoreField]; got != 75 {
		t.Errorf("total_score = %v (%T), want coerced 75", got, got)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "coerced") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings should record the coercion: %v", res.Warnings)
	}
}

func TestParseKoreanProseRecoversScore(t *testing.T) {
	p := newTestParser()
	res := p.Parse("점수는 75점입니다.", schema.Default())

	if res.Level != parse.Partial {
		t.Fatalf("Level = %s, want partial", res.Level)
	}
	if res.Data != nil {
		t.Error("prose input must not produce validated data")
	}
	if got := scoring(t, res.Partial)[schema.TotalScoreField]; got != float64(75) {
		t.Errorf("recovered total_score = %v, want 75", got)
	}
	review := false
	for _, n := range res.RecoveryNotes {
		if strings.Contains(n, "manual review") {
			review = true
		}
	}
	if !review {
		t.Errorf("recovery notes should flag manual review: %v", res.RecoveryNotes)
	}
}

func TestParseEmptyInputYieldsEmergencyRecord(t *testing.T) {
	p := newTestParser()
	res := p.Parse("", schema.Default())

	if res.Level != parse.Partial {
		t.Fatalf("Level = %s, want partial (never failed)", res.Level)
	}
	if got := scoring(t, res.Partial)[schema.TotalScoreField]; got != 0 {
		t.Errorf("emergency total_score = %v, want 0", got)
	}
	if got := feedback(t, res.Partial)[schema.ContentFeedbackField]; got != schema.EmergencyFeedback {
		t.Errorf("emergency feedback = %v", got)
	}
}

func TestParseAlwaysUsableWithFallback(t *testing.T) {
	p := newTestParser()
	inputs := []string{
		"",
		"완전히 관련 없는 답변입니다.",
		"lorem ipsum dolor sit amet",
		"{broken json",
		"}{",
		"use {x} in the formula",
	}
	for _, in := range inputs {
		res := p.Parse(in, schema.Default())
		if !res.HasUsableData() {
			t.Errorf("no usable data for %q", in)
			continue
		}
		best := res.BestData()
		if _, ok := best[schema.ScoringSection]; !ok {
			t.Errorf("best data for %q lacks scoring container: %v", in, best)
		}
		if _, ok := best[schema.FeedbackSection]; !ok {
			t.Errorf("best data for %q lacks feedback container: %v", in, best)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	p := newTestParser()
	raw := `{"grading_result": {"total_score": 40, "main_score_1": 40}, "feedback": {"content_feedback": "좋은 답변입니다.", "is_bluff_flag": false}}`
	res := p.Parse(raw, schema.Default())

	if res.Level != parse.Full {
		t.Fatalf("Level = %s, want full (errors: %v)", res.Level, res.Errors)
	}
	want := map[string]any{
		schema.ScoringSection: map[string]any{
			schema.TotalScoreField: float64(40),
			"main_score_1":         float64(40),
		},
		schema.FeedbackSection: map[string]any{
			schema.ContentFeedbackField: "좋은 답변입니다.",
			schema.BluffFlagField:       false,
		},
	}
	if !reflect.DeepEqual(res.Data, want) {
		t.Errorf("round trip altered the data:\n got %v\nwant %v", res.Data, want)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("clean round trip should carry no warnings: %v", res.Warnings)
	}
}

func TestParseFallbackDisabled(t *testing.T) {
	cfg := parse.DefaultConfig()
	cfg.EnableFallbackRecovery = false
	p := New(cfg)

	res := p.Parse("관련 없는 텍스트", schema.Default())
	if res.Level != parse.Failed {
		t.Fatalf("Level = %s, want failed with recovery off", res.Level)
	}
	if res.HasUsableData() {
		t.Error("no data expected with recovery off")
	}
	if len(res.Errors) == 0 {
		t.Error("failed parse should report attempt errors")
	}
}

func TestParseMaxAttemptsCap(t *testing.T) {
	cfg := parse.DefaultConfig()
	cfg.MaxAttempts = 1
	p := New(cfg)

	res := p.Parse("noise {not json} noise", schema.Default())
	if len(res.Attempts) != 1 {
		t.Errorf("attempts = %d, want 1", len(res.Attempts))
	}
	if res.Level != parse.Partial {
		t.Errorf("Level = %s, want partial via recovery", res.Level)
	}
}

func TestParsePartialRetentionContinuesLoop(t *testing.T) {
	p := newTestParser()
	// The first decodable object is schema-hopeless even after correction,
	// so it is retained as partial content while the level stays usable.
	cfg := parse.DefaultConfig()
	cfg.AllowTypeCoercion = false
	cfg.AllowFieldMapping = false
	p = New(cfg)

	res := p.Parse(`{"grading_result": {"total_score": "순위권"}, "feedback": {"content_feedback": "ok", "is_bluff_flag": false}}`, schema.Default())
	if res.Level != parse.Partial {
		t.Fatalf("Level = %s, want partial retention", res.Level)
	}
	if res.Partial == nil {
		t.Fatal("partial content missing")
	}
	if got := scoring(t, res.Partial)[schema.TotalScoreField]; got != "순위권" {
		t.Errorf("partial content altered: %v", got)
	}
}

func TestParseHeuristicPartialKeptWithoutFallback(t *testing.T) {
	cfg := parse.DefaultConfig()
	cfg.EnableFallbackRecovery = false
	p := New(cfg)

	res := p.Parse("점수는 75점입니다.", schema.Default())
	if res.Level != parse.Partial {
		t.Fatalf("Level = %s, want partial retention of heuristic data", res.Level)
	}
	if got := scoring(t, res.Partial)[schema.TotalScoreField]; got != float64(75) {
		t.Errorf("retained total_score = %v, want 75", got)
	}
	if len(res.RecoveryNotes) != 0 {
		t.Errorf("no recovery pass should run with fallback off: %v", res.RecoveryNotes)
	}
}

func TestParseValidationPanicDowngradesAttempt(t *testing.T) {
	p := newTestParser()
	res := p.run(`{"total_score": 10}`, schema.Default(), func(map[string]any) *parse.ValidationResult {
		panic("validator exploded")
	})

	if res.Level != parse.Partial {
		t.Fatalf("Level = %s, want partial retention after validation panic", res.Level)
	}
	found := false
	for _, e := range res.Errors {
		if strings.Contains(e, "validation panic") {
			found = true
		}
	}
	if !found {
		t.Errorf("errors should record the validation panic: %v", res.Errors)
	}
	if got := res.Partial["total_score"]; got != float64(10) {
		t.Errorf("partial content = %v, want the decoded attempt data", res.Partial)
	}
}

func TestParseWithRubricAdaptive(t *testing.T) {
	p := newTestParser()
	spec := rubric.Spec{Criteria: []rubric.Criterion{
		{Name: "이해도", SubCriteria: []rubric.SubCriterion{
			{MaxScore: 10, Description: "개념 이해"},
			{MaxScore: 5, Description: "용어 사용"},
		}},
	}}

	raw := `{"채점결과": {"합산_점수": 12, "main_score_1": 12}, "피드백": {"교과_내용_피드백": "개념 이해가 훌륭합니다."}}`
	res := p.ParseWithRubric(raw, spec)

	if res.Level != parse.Full {
		t.Fatalf("Level = %s, want full (errors: %v)", res.Level, res.Errors)
	}
	sc := scoring(t, res.Data)
	if sc[schema.TotalScoreField] != float64(12) {
		t.Errorf("total_score = %v, want 12", sc[schema.TotalScoreField])
	}
	fb := feedback(t, res.Data)
	if fb[schema.ContentFeedbackField] != "개념 이해가 훌륭합니다." {
		t.Errorf("content_feedback = %v", fb[schema.ContentFeedbackField])
	}
	if fb[schema.BluffFlagField] != false {
		t.Error("missing is_bluff_flag should be patched in adaptively")
	}
	if len(res.Warnings) == 0 {
		t.Error("adaptive patching should surface warnings")
	}
}

func TestParseRecordsAttemptDiagnostics(t *testing.T) {
	p := newTestParser()
	res := p.Parse("점수는 75점입니다.", schema.Default())

	if len(res.Attempts) == 0 {
		t.Fatal("attempt history missing")
	}
	seen := map[parse.StrategyID]bool{}
	for _, a := range res.Attempts {
		seen[a.Strategy] = true
	}
	if !seen[parse.StrategyDirect] {
		t.Error("direct attempt not recorded")
	}
	if !seen[parse.StrategyHeuristic] {
		t.Error("heuristic attempt not recorded")
	}
	if res.Duration <= 0 {
		t.Error("total duration not recorded")
	}
}
