package router

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/model"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/oracle"
)

const autoSearchSystemPrompt = `Decide whether answering this chat message well requires a live web search. Respond with JSON only: {"should_search": bool, "mode": one of "search", "news", "wiki", "images", "videos", "jmail", "query": string, "reason": string}. Prefer should_search=false for anything answerable from general knowledge or the conversation itself.`

var autoSearchModes = map[model.SearchMode]bool{
	model.ModeSearch: true,
	model.ModeNews:   true,
	model.ModeWiki:   true,
	model.ModeImages: true,
	model.ModeVideos: true,
	model.ModeJmail:  true,
}

// decideAutoSearch asks the chat oracle whether prompt needs a live search
// before being answered directly (spec.md §4.7, gated on
// SearchContextMode=="context"). It fails closed: any oracle/parse error or
// an unrecognized mode is treated as should_search=false.
func (r *Router) decideAutoSearch(ctx context.Context, prompt string, history []model.ChatTurn) (mode model.SearchMode, query string, should bool) {
	var historyLines strings.Builder
	for _, t := range history {
		historyLines.WriteString(string(t.Role))
		historyLines.WriteString(": ")
		historyLines.WriteString(t.Content)
		historyLines.WriteString("\n")
	}

	reply, err := r.chatOracle.GenerateReply(ctx, []oracle.ChatMessage{
		{Role: "system", Content: autoSearchSystemPrompt},
		{Role: "user", Content: "Recent conversation:\n" + historyLines.String() + "\nCurrent message: " + prompt},
	}, 0, 200)
	if err != nil {
		return "", "", false
	}

	var parsed oracle.AutoSearchDecisionJSON
	if err := json.Unmarshal([]byte(reply), &parsed); err != nil {
		return "", "", false
	}
	if !parsed.ShouldSearch || strings.TrimSpace(parsed.Query) == "" || !autoSearchModes[parsed.Mode] {
		return "", "", false
	}

	resolvedMode := parsed.Mode
	if resolvedMode == model.ModeWiki && shouldDowngradeWikiToSearch(prompt, parsed.Query) {
		resolvedMode = model.ModeSearch
	}
	if ms, ok := r.settings.Modes[string(resolvedMode)]; !ok || !ms.Enabled {
		return "", "", false
	}
	return resolvedMode, parsed.Query, true
}

// wikiDowngradeTerms are signals that a "wiki" classification actually
// wants a general web search (spec.md §4.7): social-platform references,
// micro-celebrity/influencer framing, "who is/tell me about" lead-ins, and
// @handles, unless an explicit encyclopedia term is also present.
var wikiDowngradeTerms = []string{
	"tiktok", "instagram", "youtube", "twitch", "x.com", "twitter", "discord",
	"onlyfans", "microcelebrity", "micro-celebrity", "social media",
	"streamer", "influencer", "creator",
}

var wikiExplicitTerms = []string{"wiki", "wikipedia", "encyclopedia", "encyclopedic"}

var wikiLeadIn = regexp.MustCompile(`(?i)^\s*(who is|tell me about)\b`)
var handleMention = regexp.MustCompile(`@\w+`)

func shouldDowngradeWikiToSearch(prompt, query string) bool {
	combined := strings.ToLower(prompt + " " + query)
	for _, t := range wikiExplicitTerms {
		if strings.Contains(combined, t) {
			return false
		}
	}
	for _, t := range wikiDowngradeTerms {
		if strings.Contains(combined, t) {
			return true
		}
	}
	if handleMention.MatchString(combined) {
		return true
	}
	return wikiLeadIn.MatchString(strings.TrimSpace(combined))
}
