// Package mdparse provides the Markdown segmentation primitives used by the
// rubric loader. It splits a document into discrete numbered items, carrying
// indented continuation lines (sub-criterion bullets) along with each item.
package mdparse

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Item is a discrete segment extracted from a Markdown document. Lines holds
// the item's text line by line: the first line is the item's own text, any
// further lines are indented continuations with their list prefixes stripped.
type Item struct {
	ID        string
	LineStart int
	LineEnd   int
	Lines     []string
}

// Segmenter segments a Markdown document into numbered items.
type Segmenter struct {
	IDPrefix string // e.g., "CRIT"
}

// ParseFile reads the file at path and segments it using s.
func (s Segmenter) ParseFile(path string) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mdparse: open %s: %w", path, err)
	}
	defer f.Close()
	return s.ParseReader(f)
}

// ParseReader reads from r and segments it using s.
// This enables testing without requiring files on disk.
func (s Segmenter) ParseReader(r io.Reader) ([]Item, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("mdparse: scan: %w", err)
	}
	return s.segment(lines), nil
}

func (s Segmenter) segment(lines []string) []Item {
	var items []Item
	counter := 0
	var cur *Item

	flush := func() {
		if cur == nil {
			return
		}
		if len(cur.Lines) > 0 {
			items = append(items, *cur)
		}
		cur = nil
	}

	for i, line := range lines {
		lineNum := i + 1 // 1-indexed

		// Headings and blank lines terminate the current item; neither is
		// itself an item.
		if IsHeading(line) || strings.TrimSpace(line) == "" {
			flush()
			continue
		}

		// A non-indented numbered line ("1. " / "1) ") starts a new item.
		if IsNumberedItem(line) && !IsIndented(line) {
			flush()
			counter++
			cur = &Item{
				ID:        fmt.Sprintf("%s-%03d", s.IDPrefix, counter),
				LineStart: lineNum,
				LineEnd:   lineNum,
				Lines:     []string{StripListPrefix(line)},
			}
			continue
		}

		// Indented bullets and plain indented lines continue the current item.
		if cur != nil && IsIndented(line) {
			cur.Lines = append(cur.Lines, StripListPrefix(line))
			cur.LineEnd = lineNum
			continue
		}

		// Anything else (preamble prose, decorators) is ignored: a rubric
		// document's content lives entirely in its numbered criteria.
		flush()
	}
	flush()

	return items
}

// IsNumberedItem returns true for lines starting with "N. " or "N) "
// where N is one or more decimal digits.
func IsNumberedItem(line string) bool {
	trimmed := strings.TrimSpace(line)
	b := []byte(trimmed)
	for j := 0; j < len(b); j++ {
		ch := b[j]
		if ch >= '0' && ch <= '9' {
			continue
		}
		if (ch == '.' || ch == ')') && j > 0 {
			// '.' and ')' are ASCII (single byte); j+1 bounds-checked via &&.
			return j+1 < len(b) && b[j+1] == ' '
		}
		break
	}
	return false
}

// IsBullet returns true for lines starting with "- ", "* ", or "• " (after trim).
// '•' is U+2022 BULLET (3 bytes in UTF-8); strings.HasPrefix operates on bytes
// so the comparison is correct.
func IsBullet(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "- ") ||
		strings.HasPrefix(trimmed, "* ") ||
		strings.HasPrefix(trimmed, "• ")
}

// IsIndented returns true for lines with a leading tab or at least two spaces.
func IsIndented(line string) bool {
	return strings.HasPrefix(line, "  ") || strings.HasPrefix(line, "\t")
}

// IsHeading returns true for ATX Markdown headings (# through ######).
// A space immediately after the hashes is required (CommonMark ATX syntax).
func IsHeading(line string) bool {
	t := strings.TrimSpace(line)
	hashes := strings.IndexFunc(t, func(r rune) bool { return r != '#' })
	return hashes > 0 && hashes <= 6 && len(t) > hashes && t[hashes] == ' '
}

// StripListPrefix removes "N. ", "N) ", "- ", "* ", or "• " from the start of
// a line. The '.' and ')' separators are ASCII (single-byte), so byte-level
// indexing after the digit scan is safe. Returns the trimmed text unchanged if
// no known prefix is found.
func StripListPrefix(line string) string {
	trimmed := strings.TrimSpace(line)
	b := []byte(trimmed)
	for j := 0; j < len(b); j++ {
		ch := b[j]
		if ch >= '0' && ch <= '9' {
			continue
		}
		if (ch == '.' || ch == ')') && j > 0 && j+1 < len(b) && b[j+1] == ' ' {
			return strings.TrimSpace(string(b[j+1:]))
		}
		break
	}
	for _, pfx := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(trimmed, pfx) {
			return strings.TrimSpace(trimmed[len(pfx):])
		}
	}
	return trimmed
}
