package router

import (
	"regexp"
	"sort"
	"strings"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/model"
)

// isDirectedToBot implements spec.md §4.1.1's full mention-detection rule,
// layering the alias-token check (case d, which needs settings the
// transport parsers don't have) on top of whatever the parser already
// determined from DM-ness, Signal mention spans, or Telegram entities/
// replies.
func isDirectedToBot(msg model.IncomingMessage, aliases []string) bool {
	if msg.DirectedToBot {
		return true
	}
	return containsAlias(msg.Text, aliases)
}

func aliasPattern(alias string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(^|\s)` + regexp.QuoteMeta(alias) + `($|\s|[,:;.!?])`)
}

func containsAlias(text string, aliases []string) bool {
	for _, alias := range aliases {
		if alias == "" {
			continue
		}
		if aliasPattern(alias).MatchString(text) {
			return true
		}
	}
	return false
}

// stripDirective removes Signal mention byte spans and/or configured alias
// tokens from msg.Text, collapses whitespace, and strips leading
// punctuation, producing the chat prompt (spec.md §4.1.1).
func stripDirective(msg model.IncomingMessage, aliases []string) string {
	text := msg.Text

	if len(msg.Mentions) > 0 {
		spans := append([]model.MentionSpan(nil), msg.Mentions...)
		sort.Slice(spans, func(i, j int) bool { return spans[i].Start > spans[j].Start })
		b := []byte(text)
		for _, m := range spans {
			start, end := m.Start, m.Start+m.Length
			if start < 0 || end > len(b) || start >= end {
				continue
			}
			b = append(b[:start], b[end:]...)
		}
		text = string(b)
	}

	for _, alias := range aliases {
		if alias == "" {
			continue
		}
		text = aliasPattern(alias).ReplaceAllString(text, "$1$2")
	}

	text = strings.Join(strings.Fields(text), " ")
	text = strings.TrimLeft(text, ".,;:!?-–—·")
	return strings.TrimSpace(text)
}
