// Package profile defines question-type profiles that modulate grading
// prompt construction. Each profile provides a SystemPromptAddendum that is
// appended to the system prompt sent to the model.
package profile

import "fmt"

// Profile describes a grading strategy for one question type.
type Profile struct {
	Name                 string
	Description          string
	SystemPromptAddendum string
	// StrictBluffCheck, when true, instructs the model to treat any answer
	// that restates the question or asks for the answer as a bluff.
	StrictBluffCheck bool
}

// builtins is the registry of built-in profiles keyed by name.
var builtins = map[string]Profile{
	"general": {
		Name:        "general",
		Description: "Default profile; grades any free-form written answer against the rubric.",
		SystemPromptAddendum: "채점 기준의 각 항목을 독립적으로 평가하세요. 답안이 모호한 경우 " +
			"추측하지 말고 판단 근거에 모호성을 명시하세요. 부분 점수는 채점 기준의 배점 범위 " +
			"안에서 부여하세요.",
		StrictBluffCheck: false,
	},
	"essay": {
		Name:        "essay",
		Description: "Long-form essay; weighs argument structure and evidence use.",
		SystemPromptAddendum: "이 문항은 서술형입니다. 주장과 근거의 연결, 논리 전개의 일관성, " +
			"제시문 활용도를 중점적으로 평가하세요. 단순히 길이가 길다는 이유로 높은 점수를 " +
			"주지 마세요. 근거 없는 주장은 감점 사유를 판단 근거에 기록하세요.",
		StrictBluffCheck: false,
	},
	"short-answer": {
		Name:        "short-answer",
		Description: "Short factual answer; keyword presence drives the score.",
		SystemPromptAddendum: "이 문항은 단답형입니다. 핵심 개념어의 포함 여부로 점수를 결정하고, " +
			"동의어나 허용 가능한 표기 변형은 정답으로 인정하세요. 문장 완성도는 평가 대상이 " +
			"아닙니다. 답과 무관한 서술로 분량을 채운 답안은 의사 응답으로 표시하세요.",
		StrictBluffCheck: true,
	},
	"concept-map": {
		Name:        "concept-map",
		Description: "Concept relationship question; grades links between named concepts.",
		SystemPromptAddendum: "이 문항은 개념 간 관계를 묻습니다. 개별 개념의 나열이 아니라 " +
			"개념 사이의 연결 관계가 올바르게 설명되었는지 평가하세요. 교과서의 용어를 그대로 " +
			"옮겨 적기만 한 답안은 관계 설명으로 인정하지 마세요.",
		StrictBluffCheck: true,
	},
}

// Load returns the named built-in profile or an error if the name is unknown.
func Load(name string) (Profile, error) {
	p, ok := builtins[name]
	if !ok {
		return Profile{}, fmt.Errorf("profile: unknown profile %q (available: general, essay, short-answer, concept-map)", name)
	}
	return p, nil
}
