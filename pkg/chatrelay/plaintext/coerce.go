// Package plaintext implements the deterministic markdown-stripping
// post-processor applied to chat-oracle replies when force-plain-text is
// enabled (spec.md §4.10).
package plaintext

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	fencedBlock   = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*\\n?(.*?)```")
	mdLink        = regexp.MustCompile(`\[([^\]]*)\]\(([^)]*)\)`)
	inlineCode    = regexp.MustCompile("`([^`]*)`")
	heading       = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	bulletMarker  = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	blockquote    = regexp.MustCompile(`(?m)^\s*>\s?`)
	boldStar      = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	boldUnder     = regexp.MustCompile(`__([^_]+)__`)
	italicStar    = regexp.MustCompile(`\*([^*\n]+)\*`)
	italicUnder   = regexp.MustCompile(`_([^_\n]+)_`)
	trailingStars = regexp.MustCompile(`(\S)\*+(\s|$)`)
	remainingTick = regexp.MustCompile("`")
	numberedItem  = regexp.MustCompile(`(?:^|\s)(\d+)\.\s+`)
	multiBlank    = regexp.MustCompile(`\n{3,}`)
	runWhitespace = regexp.MustCompile(`[ \t]{2,}`)
)

// Coerce strips markdown markup from text, producing a plain-text reply.
// It is idempotent: Coerce(Coerce(x)) == Coerce(x) (spec.md §8).
func Coerce(text string) string {
	out := fencedBlock.ReplaceAllString(text, "$1")
	out = mdLink.ReplaceAllString(out, "$1 ($2)")
	out = inlineCode.ReplaceAllString(out, "$1")
	out = heading.ReplaceAllString(out, "")
	out = blockquote.ReplaceAllString(out, "")
	out = bulletMarker.ReplaceAllString(out, "")
	out = boldStar.ReplaceAllString(out, "$1")
	out = boldUnder.ReplaceAllString(out, "$1")
	out = italicStar.ReplaceAllString(out, "$1")
	out = italicUnder.ReplaceAllString(out, "$1")
	out = trailingStars.ReplaceAllString(out, "$1$2")
	out = remainingTick.ReplaceAllString(out, "")
	out = splitInlineNumberedList(out)
	out = multiBlank.ReplaceAllString(out, "\n\n")
	out = runWhitespace.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// splitInlineNumberedList splits "1. foo 2. bar 3. baz" onto separate
// lines, but only when the numbering starts at 1 and is monotonically
// consecutive — this avoids mangling "I have 2. 3 cats" style prose.
func splitInlineNumberedList(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		matches := numberedItem.FindAllStringSubmatchIndex(line, -1)
		if len(matches) < 2 || !isConsecutiveFromOne(line, matches) {
			out = append(out, line)
			continue
		}
		// Each item runs from the start of its numeral up to the start of
		// the next numeral (or end of line for the last item).
		for i, m := range matches {
			end := len(line)
			if i+1 < len(matches) {
				end = matches[i+1][2]
			}
			out = append(out, strings.TrimSpace(line[m[2]:end]))
		}
	}
	return strings.Join(out, "\n")
}

func isConsecutiveFromOne(line string, matches [][]int) bool {
	for i, m := range matches {
		n, err := strconv.Atoi(line[m[2]:m[3]])
		if err != nil {
			return false
		}
		if i == 0 && n != 1 {
			return false
		}
		if i > 0 {
			prev, _ := strconv.Atoi(line[matches[i-1][2]:matches[i-1][3]])
			if n != prev+1 {
				return false
			}
		}
	}
	return true
}
