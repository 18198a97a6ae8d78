package extract

import (
	"errors"
	"strings"

	"github.com/cwyun/gradefall/internal/parse"
)

// directStrategy takes the span from the first "{" to the last "}" and
// attempts to decode it as-is. It is the cheapest strategy and wins for
// responses that are pure JSON, possibly with light surrounding commentary.
type directStrategy struct{}

func (directStrategy) ID() parse.StrategyID { return parse.StrategyDirect }

// Skip declines fenced responses. The outermost brace span of a fenced
// response includes the fence markers' surrounding prose, and fence-aware
// extraction handles those responses correctly.
func (directStrategy) Skip(ctx Context, _ bool) bool {
	return ctx.HasFences
}

func (directStrategy) Extract(text string, _ Context) (string, error) {
	start := strings.Index(text, "{")
	if start < 0 {
		return "", errors.New("extract: direct: no opening brace")
	}
	end := strings.LastIndex(text, "}")
	if end <= start {
		return "", errors.New("extract: direct: no closing brace after opening brace")
	}
	return text[start : end+1], nil
}
