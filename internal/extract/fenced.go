package extract

import (
	"errors"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/cwyun/gradefall/internal/parse"
)

// fencedStrategy pulls JSON out of markdown code fences. Patterns run
// strictest first: an explicitly json-tagged fence beats an untagged one,
// and a complete fence pair beats a truncated opener.
type fencedStrategy struct{}

var fencedRes = []*regexp.Regexp{
	regexp.MustCompile("(?s)`{3}json[^\\n]*\\n(.*?)`{3}"),
	regexp.MustCompile("(?s)~{3}json[^\\n]*\\n(.*?)~{3}"),
	regexp.MustCompile("(?s)`{3}[^\\n]*\\n(.*?)`{3}"),
	regexp.MustCompile("(?s)~{3}[^\\n]*\\n(.*?)~{3}"),
	// Truncated response: opening fence with no closer.
	regexp.MustCompile("(?s)`{3}(?:json)?[^\\n]*\\n(.*)$"),
}

func (fencedStrategy) ID() parse.StrategyID { return parse.StrategyFenced }

func (fencedStrategy) Skip(ctx Context, _ bool) bool {
	return !ctx.HasFences
}

func (fencedStrategy) Extract(text string, _ Context) (string, error) {
	fallback := ""
	for _, re := range fencedRes {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			body := strings.TrimSpace(m[1])
			if body == "" || !strings.HasPrefix(body, "{") {
				continue
			}
			if gjson.Valid(body) {
				return body, nil
			}
			if fallback == "" {
				fallback = body
			}
		}
	}
	// A nearly-valid body (stray escapes and the like) still gets a chance
	// at the shared decode gate.
	if fallback != "" {
		return fallback, nil
	}
	return "", errors.New("extract: fenced: no fence body looks like a JSON object")
}
