package extract

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/cwyun/gradefall/internal/parse"
	"github.com/cwyun/gradefall/internal/schema"
)

// heuristicStrategy assembles a record from labeled plain text when no JSON
// structure exists in the response at all. It recognizes Korean and English
// score and feedback labels and emits a minimal nested record.
type heuristicStrategy struct{}

// totalScoreRes are tried in order; the first match wins. The bare
// "<digits>점" form comes last since it matches any scored phrase.
var totalScoreRes = []*regexp.Regexp{
	regexp.MustCompile(`총점\s*[:：]?\s*(?:은|는)?\s*(\d+)`),
	regexp.MustCompile(`(?i)total[_ ]?score\s*[:：]?\s*(?:is)?\s*(\d+)`),
	regexp.MustCompile(`(?i)\bscore\s*[:：]?\s*(?:is)?\s*(\d+)`),
	regexp.MustCompile(`점수\s*(?:는|은)?\s*[:：]?\s*(\d+)`),
	regexp.MustCompile(`(\d+)\s*점`),
}

var (
	feedbackLabelRe  = regexp.MustCompile(`(?im)^\s*(?:교과\s*내용\s*)?(?:피드백|feedback)\s*[:：]\s*(.+)$`)
	rationaleLabelRe = regexp.MustCompile(`(?im)^\s*(?:점수\s*)?(?:판단\s*근거|rationale)\s*[:：]\s*(.+)$`)
)

func (heuristicStrategy) ID() parse.StrategyID { return parse.StrategyHeuristic }

// Skip defers to structural strategies whenever one of them already
// produced data; labeled-text assembly is strictly a last resort.
func (heuristicStrategy) Skip(_ Context, haveData bool) bool {
	return haveData
}

func (heuristicStrategy) Extract(text string, _ Context) (string, error) {
	scoring := map[string]any{}
	feedback := map[string]any{}

	if score, ok := FindScore(text); ok {
		scoring[schema.TotalScoreField] = score
	}
	if m := feedbackLabelRe.FindStringSubmatch(text); m != nil {
		feedback[schema.ContentFeedbackField] = strings.TrimSpace(m[1])
	}
	if m := rationaleLabelRe.FindStringSubmatch(text); m != nil {
		scoring[schema.RationaleField] = map[string]any{
			"content": strings.TrimSpace(m[1]),
		}
	}

	if len(scoring) == 0 && len(feedback) == 0 {
		return "", errors.New("extract: heuristic: no recognizable labels in response")
	}

	record := map[string]any{
		schema.ScoringSection:  scoring,
		schema.FeedbackSection: feedback,
	}
	out, err := json.Marshal(record)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// FindScore scans plain text for a total-score expression. Shared with the
// recovery path, which re-scans the raw response after all strategies fail.
func FindScore(text string) (int, bool) {
	for _, re := range totalScoreRes {
		if m := re.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// FindFeedback scans plain text for a labeled feedback line. Shared with the
// recovery path; short matches are rejected as noise.
func FindFeedback(text string) (string, bool) {
	if m := feedbackLabelRe.FindStringSubmatch(text); m != nil {
		fb := strings.TrimSpace(m[1])
		if len(fb) > 10 {
			return fb, true
		}
	}
	return "", false
}
