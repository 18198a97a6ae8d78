// Package extract implements the extraction strategies that pull candidate
// JSON out of raw model responses. Strategies are ordered cheapest-first and
// each one can decline to run based on the response context.
package extract

import (
	"regexp"
	"strings"
)

// Context summarizes a raw response so strategies can decide whether to run.
// It is computed once per parse and treated as read-only.
type Context struct {
	Response      string
	Length        int
	Format        string // "json", "markdown", "json_embedded", or "text"
	HasFences     bool
	HasBraces     bool
	LanguageHints []string
}

// NewContext analyzes a preprocessed response.
func NewContext(response string) Context {
	trimmed := strings.TrimSpace(response)
	ctx := Context{
		Response:  response,
		Length:    len(response),
		HasFences: strings.Contains(response, "```") || strings.Contains(response, "~~~"),
		HasBraces: strings.Contains(response, "{") && strings.Contains(response, "}"),
	}

	lower := strings.ToLower(response)
	switch {
	case ctx.HasFences:
		ctx.Format = "markdown"
	case strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}"):
		ctx.Format = "json"
	case strings.Contains(lower, "json"):
		ctx.Format = "json_embedded"
	default:
		ctx.Format = "text"
	}

	if containsHangul(response) {
		ctx.LanguageHints = append(ctx.LanguageHints, "korean")
	}
	if strings.Contains(lower, "json") || strings.Contains(lower, "object") || strings.Contains(lower, "array") {
		ctx.LanguageHints = append(ctx.LanguageHints, "json")
	}
	return ctx
}

// HasHint reports whether the context carries the named language hint.
func (c Context) HasHint(hint string) bool {
	for _, h := range c.LanguageHints {
		if h == hint {
			return true
		}
	}
	return false
}

func containsHangul(s string) bool {
	for _, r := range s {
		if r >= 0xAC00 && r <= 0xD7A3 {
			return true
		}
	}
	return false
}

var (
	// Conversational lead-ins that models prepend to structured output.
	boilerplateRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^\s*(?:here\s+is|here's|sure,?\s+here\s+is|below\s+is|the\s+following\s+is)\s+(?:the|your|a)\s+[^\n:]*:?\s*\n`),
		regexp.MustCompile(`^\s*(?:다음은|아래는|결과는)\s*[^\n:]*[:은는]?\s*\n`),
	}

	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	adjacentObjRe   = regexp.MustCompile(`}\s*{`)
	spaceRunRe      = regexp.MustCompile(`[ \t]{2,}`)
	blankRunRe      = regexp.MustCompile(`\n{3,}`)

	// openFenceRe matches an opening fence line with no closing fence
	// required, as seen in truncated responses.
	openFenceRe = regexp.MustCompile("(?m)^(?:`{3}|~{3})[^\\n]*\\n?")
)

// Preprocess normalizes a raw response before strategy selection. Balanced
// fence pairs are left in place so that fence-aware extraction still sees
// them; only an orphaned opening fence with no closer is stripped. When no
// fences are present at all, the text is trimmed to the outermost brace span
// so that commentary around a bare JSON object does not reach the decoder.
// Whitespace runs are collapsed, which can alter long literal strings inside
// the JSON; scores and labels are unaffected.
func Preprocess(raw string) string {
	s := strings.TrimSpace(raw)
	for _, re := range boilerplateRes {
		s = re.ReplaceAllString(s, "")
	}

	fences := openFenceRe.FindAllStringIndex(s, -1)
	if len(fences) == 1 {
		// Orphaned opening fence, usually a truncated response.
		s = s[:fences[0][0]] + s[fences[0][1]:]
		fences = nil
	}

	s = trailingCommaRe.ReplaceAllString(s, "$1")
	s = adjacentObjRe.ReplaceAllString(s, "},{")
	s = spaceRunRe.ReplaceAllString(s, " ")
	s = blankRunRe.ReplaceAllString(s, "\n\n")

	if len(fences) == 0 {
		if start := strings.Index(s, "{"); start >= 0 {
			if end := strings.LastIndex(s, "}"); end > start {
				// Keep the brace span only when something outside it looks
				// like commentary rather than part of the payload.
				if start > 0 || end < len(s)-1 {
					s = s[start : end+1]
				}
			}
		}
	}
	return strings.TrimSpace(s)
}
