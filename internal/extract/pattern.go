package extract

import (
	"errors"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/cwyun/gradefall/internal/parse"
)

// patternStrategy scans for object-shaped spans anywhere in the response.
// It is the broad-net fallback after direct and fenced extraction: patterns
// run most-precise first, and every candidate is screened before it is
// accepted so prose containing stray braces does not win.
type patternStrategy struct{}

var patternRes = []*regexp.Regexp{
	// Balanced object one level of nesting deep.
	regexp.MustCompile(`\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`),
	// Loose nested form, non-greedy inner bodies.
	regexp.MustCompile(`(?s)\{[^{}]*\{.*?\}[^{}]*\}`),
	// Object anchored on a known top-level key.
	regexp.MustCompile(`(?s)\{[^{}]*"(?:grading_result|total_score|feedback|채점결과|피드백)"\s*:.*\}`),
	// Greedy outermost span, last resort for deep nesting.
	regexp.MustCompile(`(?s)\{.*\}`),
}

// expectedTopKeys are the container and score keys a grading record or its
// Korean-labeled equivalent would carry at the top level.
var expectedTopKeys = []string{
	"grading_result", "feedback", "total_score", "채점결과", "피드백",
}

func (patternStrategy) ID() parse.StrategyID { return parse.StrategyPattern }

func (patternStrategy) Skip(ctx Context, _ bool) bool {
	return !ctx.HasBraces
}

func (patternStrategy) Extract(text string, _ Context) (string, error) {
	for _, re := range patternRes {
		for _, candidate := range re.FindAllString(text, -1) {
			if len(candidate) < 10 {
				continue
			}
			if acceptCandidate(candidate) {
				return candidate, nil
			}
		}
	}
	return "", errors.New("extract: pattern: no object-shaped span accepted")
}

// acceptCandidate screens a candidate span: it must parse as an object and
// either carry an expected top-level key or be rich enough (more than two
// keys) to plausibly be the payload rather than an incidental brace pair.
func acceptCandidate(candidate string) bool {
	parsed := gjson.Parse(candidate)
	if !parsed.IsObject() {
		return false
	}
	m := parsed.Map()
	if len(m) == 0 {
		return false
	}
	for _, key := range expectedTopKeys {
		if _, ok := m[key]; ok {
			return true
		}
	}
	for key := range m {
		if strings.Contains(strings.ToLower(key), "score") || strings.Contains(key, "점수") {
			return true
		}
	}
	return len(m) > 2
}
