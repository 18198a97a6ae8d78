package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/cwyun/gradefall/internal/parse"
)

// Strategy extracts one candidate JSON document from a response.
// Extract returns the candidate text; decoding happens in Run so that every
// strategy's output passes through the same JSON gate.
type Strategy interface {
	ID() parse.StrategyID

	// Skip reports whether the strategy should be bypassed for this
	// response. haveData is true when an earlier strategy already produced
	// decodable output.
	Skip(ctx Context, haveData bool) bool

	Extract(text string, ctx Context) (string, error)
}

// Ordered returns the strategies in execution order, cheapest first.
func Ordered() []Strategy {
	return []Strategy{
		directStrategy{},
		fencedStrategy{},
		patternStrategy{},
		heuristicStrategy{},
	}
}

// Heuristic returns the labeled-text fallback strategy on its own, for the
// recovery path that re-runs it outside the ordered pass.
func Heuristic() Strategy { return heuristicStrategy{} }

// invalidJSONEscapeRe matches a backslash followed by a character that is not
// a valid JSON string escape. Models emit regex-style sequences like \d
// inside JSON strings; these are double-escaped before a retry decode.
var invalidJSONEscapeRe = regexp.MustCompile(`\\([^"\\/bfnrtu])`)

func fixInvalidJSONEscapes(s string) string {
	return invalidJSONEscapeRe.ReplaceAllString(s, `\\$1`)
}

func decodeObject(s string) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(s), &data); err != nil {
		fixed := fixInvalidJSONEscapes(s)
		if err2 := json.Unmarshal([]byte(fixed), &data); err2 != nil {
			return nil, err
		}
	}
	return data, nil
}

// Run executes one strategy and records the attempt. Panics inside a
// strategy are converted into failed attempts so a single bad regex or input
// cannot abort the whole parse.
func Run(s Strategy, text string, ctx Context) (attempt parse.Attempt) {
	start := time.Now()
	attempt = parse.Attempt{Strategy: s.ID()}
	defer func() {
		if r := recover(); r != nil {
			attempt.Success = false
			attempt.Data = nil
			attempt.Err = fmt.Sprintf("extract: %s panicked: %v", s.ID(), r)
		}
		attempt.Duration = time.Since(start)
	}()

	extracted, err := s.Extract(text, ctx)
	if err != nil {
		attempt.Err = err.Error()
		return attempt
	}
	attempt.Extracted = extracted

	data, err := decodeObject(extracted)
	if err != nil {
		attempt.Err = fmt.Sprintf("extract: %s produced undecodable output: %v", s.ID(), err)
		return attempt
	}
	attempt.Success = true
	attempt.Data = data
	return attempt
}
