package rubric

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cwyun/gradefall/internal/mdparse"
)

// segmenter is a package-level value. mdparse.Segmenter contains no mutable
// state; the counter is local to each segment() invocation, so concurrent
// calls to ParseMarkdown are safe.
var segmenter = mdparse.Segmenter{IDPrefix: "CRIT"}

// ParseMarkdown reads a rubric authored as a Markdown numbered list. Each
// numbered item is a criterion; its indented bullets are sub-criteria in the
// form "<max_score>: <description>" (a trailing 점 after the score is
// accepted, e.g. "20점: 주요 도시 표기").
func ParseMarkdown(r io.Reader) (Spec, error) {
	items, err := segmenter.ParseReader(r)
	if err != nil {
		return Spec{}, fmt.Errorf("rubric: %w", err)
	}

	var spec Spec
	for _, item := range items {
		crit := Criterion{Name: item.Lines[0]}
		for _, line := range item.Lines[1:] {
			sub, ok := parseSubCriterion(line)
			if !ok {
				return Spec{}, fmt.Errorf("rubric: %s: cannot parse sub-criterion %q (want \"<score>: <description>\")", item.ID, line)
			}
			crit.SubCriteria = append(crit.SubCriteria, sub)
		}
		spec.Criteria = append(spec.Criteria, crit)
	}
	return spec, nil
}

// parseSubCriterion parses "<score>[점]: <description>".
func parseSubCriterion(line string) (SubCriterion, bool) {
	head, desc, found := strings.Cut(line, ":")
	if !found {
		return SubCriterion{}, false
	}
	head = strings.TrimSuffix(strings.TrimSpace(head), "점")
	score, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil {
		return SubCriterion{}, false
	}
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return SubCriterion{}, false
	}
	return SubCriterion{MaxScore: score, Description: desc}, true
}
