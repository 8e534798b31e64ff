// Package followup implements the pronoun-only follow-up detector and
// resolver (spec.md §4.6): deterministic single-subject substitution first,
// then a model-assisted JSON-schema call, with a two-turn clarify/retry
// protocol the router drives.
package followup

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"golang.org/x/text/width"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/model"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/oracle"
)

// Decision is the outcome of resolving a possibly-ambiguous prompt.
type Decision struct {
	ResolvedPrompt      string
	NeedsClarification  bool
	ClarificationText   string
	Reason              string
	UsedContext         bool
	Confidence          float64
	SubjectHint         string
}

var pronounOnlySubject = regexp.MustCompile(`(?i)\bwho(?:'s| is) (he|she|they|it)\b`)
var bareReference = regexp.MustCompile(`(?i)\btell me about (him|her|them|that person|this person)\b`)
var barePronoun = regexp.MustCompile(`(?i)\b(he|she|they|him|her|them|it|that person|this person)\b`)
var entityVerbNoun = regexp.MustCompile(`(?i)\b(who|tell me about|what do you know about|give me (?:info|background) on)\s+([a-z0-9][a-z0-9 .'-]{1,80})`)

var subjectExtract = regexp.MustCompile(`(?i)(?:who(?:'s| is)|tell me about|what do you know about|give me (?:info|background) on)\s+([^?.!]{1,80})`)
var pronounSub = regexp.MustCompile(`(?i)\b(he|she|they|him|her|them|it|that person|this person)\b`)

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// foldSubject width-folds full-width/half-width variants before a subject
// is stored or compared, so "Ｇｏｄ" and "God" extracted from fullwidth
// client input collapse to the same candidate (SPEC_FULL.md domain stack:
// golang.org/x/text normalization for non-ASCII claims).
func foldSubject(s string) string {
	return width.Fold.String(s)
}

// isAmbiguous reports whether prompt is a pronoun-only follow-up per
// spec.md §4.6's detection rule.
func isAmbiguous(prompt string) bool {
	norm := strings.ToLower(collapseWhitespace(prompt))
	if pronounOnlySubject.MatchString(norm) || bareReference.MatchString(norm) {
		return true
	}
	if barePronoun.MatchString(norm) {
		// Only ambiguous if there's no explicit entity noun phrase
		// following an entity-triggering verb in the same prompt.
		if m := entityVerbNoun.FindStringSubmatch(norm); m != nil {
			candidate := strings.TrimSpace(m[2])
			if !isPronoun(candidate) {
				return false
			}
		}
		return true
	}
	return false
}

// sanitizeBareSubject applies §4.6.1 step 1's rules to a raw pending reply
// (not a "who is X"-style phrase — the reply itself is the candidate
// subject): trim punctuation/whitespace, reject empty, >80 chars, a bare
// pronoun, or more than 6 words.
func sanitizeBareSubject(s string) (string, bool) {
	cleaned := collapseWhitespace(foldSubject(s))
	cleaned = strings.Trim(cleaned, ".,;:!?\"'()[]{} ")
	if cleaned == "" || len(cleaned) > 80 || isPronoun(cleaned) {
		return "", false
	}
	if len(strings.Fields(cleaned)) > 6 {
		return "", false
	}
	if strings.HasPrefix(cleaned, "/") {
		return "", false
	}
	return cleaned, true
}

func isPronoun(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "he", "she", "they", "him", "her", "them", "it", "that person", "this person":
		return true
	}
	return false
}

// extractSubject pulls a candidate subject out of text using the same
// rules §4.6 step 1 and §4.6.1 step 1 use: match a triggering phrase,
// extract what follows, strip punctuation, reject pronouns and >80-char
// candidates.
func extractSubject(text string) (string, bool) {
	m := subjectExtract.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	candidate := strings.Trim(strings.TrimSpace(foldSubject(m[1])), ".,!?;: ")
	if candidate == "" || len(candidate) > 80 || isPronoun(candidate) {
		return "", false
	}
	return candidate, true
}

// sourceTitleSubject extracts the first "-" or "|"-delimited fragment of a
// source title (spec.md §4.6 step 1, source-subject fallback).
func sourceTitleSubject(title string) string {
	for _, sep := range []string{" - ", " | "} {
		if idx := strings.Index(title, sep); idx >= 0 {
			return strings.TrimSpace(title[:idx])
		}
	}
	return strings.TrimSpace(title)
}

// substituteSubject replaces the first pronoun/"that or this person"
// occurrence in prompt with subject; if no occurrence is found, prefixes
// the subject to the prompt instead.
func substituteSubject(prompt, subject string) string {
	if loc := pronounSub.FindStringIndex(prompt); loc != nil {
		return prompt[:loc[0]] + subject + prompt[loc[1]:]
	}
	return subject + " " + prompt
}

// HistoryTurn is one sanitized history entry the resolver sends to the
// model (spec.md §4.6): sanitizeHistory keeps the last 4 user/assistant
// turns truncated to 220 bytes, and sanitizeSources keeps up to 6 source
// records with title/snippet truncated per-field.
type HistoryTurn struct {
	Role    model.Role
	Content string
}

func sanitizeHistory(turns []model.ChatTurn) []HistoryTurn {
	start := 0
	if len(turns) > 4 {
		start = len(turns) - 4
	}
	out := make([]HistoryTurn, 0, len(turns)-start)
	for _, t := range turns[start:] {
		content := t.Content
		if len(content) > 220 {
			content = content[:220]
		}
		out = append(out, HistoryTurn{Role: t.Role, Content: content})
	}
	return out
}

func sanitizeSources(records []model.SourceRecord) []model.SourceRecord {
	limit := 6
	if len(records) > limit {
		records = records[:limit]
	}
	out := make([]model.SourceRecord, len(records))
	for i, r := range records {
		title, snippet := r.Title, r.Snippet
		if len(title) > 120 {
			title = title[:120]
		}
		if len(snippet) > 180 {
			snippet = snippet[:180]
		}
		out[i] = model.SourceRecord{Title: title, Snippet: snippet, URL: r.URL, Mode: r.Mode}
	}
	return out
}

// Resolver consults a ChatOracle to resolve ambiguous follow-up prompts.
type Resolver struct {
	chatOracle oracle.ChatOracle
}

func NewResolver(chatOracle oracle.ChatOracle) *Resolver {
	return &Resolver{chatOracle: chatOracle}
}

// Resolve implements spec.md §4.6's detection + resolution order.
func (r *Resolver) Resolve(ctx context.Context, prompt string, history []model.ChatTurn, sources []model.SourceRecord) Decision {
	collapsed := collapseWhitespace(prompt)
	if !isAmbiguous(collapsed) {
		return Decision{ResolvedPrompt: collapsed, NeedsClarification: false, Reason: "not_followup"}
	}

	// Step 1: deterministic single-subject rule over recent user turns.
	userSubjects := map[string]bool{}
	var uniqueUserSubject string
	for _, t := range history {
		if t.Role != model.RoleUser {
			continue
		}
		if subj, ok := extractSubject(t.Content); ok {
			userSubjects[strings.ToLower(subj)] = true
			uniqueUserSubject = subj
		}
	}
	if len(userSubjects) == 1 {
		return Decision{
			ResolvedPrompt:     collapseWhitespace(substituteSubject(collapsed, uniqueUserSubject)),
			NeedsClarification: false,
			Reason:             "deterministic_subject",
			UsedContext:        true,
			Confidence:         1.0,
			SubjectHint:        uniqueUserSubject,
		}
	}

	sourceSubjects := map[string]bool{}
	var uniqueSourceSubject string
	for _, s := range sources {
		subj := sourceTitleSubject(s.Title)
		if subj == "" {
			continue
		}
		sourceSubjects[strings.ToLower(subj)] = true
		uniqueSourceSubject = subj
	}
	if len(sourceSubjects) == 1 {
		return Decision{
			ResolvedPrompt:     collapseWhitespace(substituteSubject(collapsed, uniqueSourceSubject)),
			NeedsClarification: false,
			Reason:             "deterministic_subject",
			UsedContext:        true,
			Confidence:         1.0,
			SubjectHint:        uniqueSourceSubject,
		}
	}

	// Step 2: no context at all.
	if len(history) == 0 && len(sources) == 0 {
		return Decision{
			NeedsClarification: true,
			ClarificationText:  "Who are you referring to?",
			Reason:             "no_context",
		}
	}

	// Step 3: model-assisted resolution.
	return r.resolveWithModel(ctx, collapsed, history, sources)
}

const resolveSystemPrompt = `You resolve ambiguous pronoun references in a chat message using the supplied history and sources. Respond with JSON only: {"can_resolve": bool, "resolved_prompt": string, "entity": string, "confidence": number 0-1, "reason": string}.`

func (r *Resolver) resolveWithModel(ctx context.Context, prompt string, history []model.ChatTurn, sources []model.SourceRecord) Decision {
	payload, _ := json.Marshal(map[string]any{
		"current_prompt":  prompt,
		"recent_history":  sanitizeHistory(history),
		"recent_sources":  sanitizeSources(sources),
	})

	reply, err := r.chatOracle.GenerateReply(ctx, []oracle.ChatMessage{
		{Role: "system", Content: resolveSystemPrompt},
		{Role: "user", Content: string(payload)},
	}, 0, 300)
	if err != nil {
		return Decision{NeedsClarification: true, ClarificationText: "Who are you referring to?", Reason: "oracle_error"}
	}

	var parsed oracle.FollowupResolutionJSON
	if err := json.Unmarshal([]byte(reply), &parsed); err != nil {
		return Decision{NeedsClarification: true, ClarificationText: "Who are you referring to?", Reason: "invalid_json"}
	}
	if !parsed.CanResolve || parsed.ResolvedPrompt == "" || parsed.Confidence < 0.7 {
		return Decision{NeedsClarification: true, ClarificationText: "Who are you referring to?", Reason: "low_confidence"}
	}
	return Decision{
		ResolvedPrompt: collapseWhitespace(parsed.ResolvedPrompt),
		UsedContext:    true,
		Confidence:     parsed.Confidence,
		SubjectHint:    parsed.Entity,
		Reason:         "model_resolved",
	}
}

// TemplatePrompt replaces the first pronoun span in prompt with the literal
// placeholder token "{subject}", for storage in PendingFollowupState
// (spec.md §4.6.1).
func TemplatePrompt(prompt string) string {
	if loc := pronounSub.FindStringIndex(prompt); loc != nil {
		return prompt[:loc[0]] + "{subject}" + prompt[loc[1]:]
	}
	return "{subject} " + prompt
}

// IsPendingReplyCandidate reports whether text could be a reply to a
// pending follow-up clarification: trimmed, non-slash, <=80 chars, <=6
// words (spec.md §4.6.1).
func IsPendingReplyCandidate(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || strings.HasPrefix(trimmed, "/") {
		return false
	}
	if len(trimmed) > 80 {
		return false
	}
	if len(strings.Fields(trimmed)) > 6 {
		return false
	}
	return true
}

const pendingReplySystemPrompt = `You resolve who a short reply refers to, given a pending clarification and recent context. Respond with JSON only: {"can_resolve": bool, "subject": string, "confidence": number 0-1, "reason": string}.`

// ResolvePendingReply implements spec.md §4.6.1's two-step pending
// resolution: deterministic subject extraction, then model-assisted.
func (r *Resolver) ResolvePendingReply(ctx context.Context, reply string, pending model.PendingFollowupState, history []model.ChatTurn, sources []model.SourceRecord) (resolvedPrompt string, ok bool) {
	if subj, good := sanitizeBareSubject(reply); good {
		return collapseWhitespace(strings.ReplaceAll(pending.TemplatePrompt, "{subject}", subj)), true
	}

	payload, _ := json.Marshal(map[string]any{
		"followup_reply":  reply,
		"pending_prompt":   pending.OriginalPrompt,
		"pending_template": pending.TemplatePrompt,
		"recent_history":   sanitizeHistory(history),
		"recent_sources":   sanitizeSources(sources),
	})
	out, err := r.chatOracle.GenerateReply(ctx, []oracle.ChatMessage{
		{Role: "system", Content: pendingReplySystemPrompt},
		{Role: "user", Content: string(payload)},
	}, 0, 200)
	if err != nil {
		return "", false
	}
	var parsed oracle.PendingReplyJSON
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		return "", false
	}
	if !parsed.CanResolve || parsed.Subject == "" || parsed.Confidence < 0.7 {
		return "", false
	}
	return collapseWhitespace(strings.ReplaceAll(pending.TemplatePrompt, "{subject}", parsed.Subject)), true
}
