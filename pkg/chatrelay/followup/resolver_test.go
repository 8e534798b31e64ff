package followup

import (
	"context"
	"testing"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/model"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/oracle"
)

type stubOracle struct {
	reply string
	err   error
}

func (s *stubOracle) GenerateReply(ctx context.Context, messages []oracle.ChatMessage, temperature float64, maxTokens int) (string, error) {
	return s.reply, s.err
}

func TestResolveDeterministicSingleSubject(t *testing.T) {
	r := NewResolver(&stubOracle{})
	history := []model.ChatTurn{
		{Role: model.RoleUser, Content: "who is Muhammad Ali"},
		{Role: model.RoleAssistant, Content: "A famous boxer."},
	}

	d := r.Resolve(context.Background(), "what did he win", history, nil)

	if d.NeedsClarification {
		t.Fatalf("expected deterministic resolution, got clarification: %+v", d)
	}
	if d.Reason != "deterministic_subject" {
		t.Errorf("expected deterministic_subject reason, got %q", d.Reason)
	}
}

func TestResolveNoContextAsksForClarification(t *testing.T) {
	r := NewResolver(&stubOracle{})
	d := r.Resolve(context.Background(), "who is he", nil, nil)

	if !d.NeedsClarification || d.Reason != "no_context" {
		t.Fatalf("expected no_context clarification, got %+v", d)
	}
}

func TestResolveNonAmbiguousPromptPassesThrough(t *testing.T) {
	r := NewResolver(&stubOracle{})
	d := r.Resolve(context.Background(), "what's the weather in Berlin", nil, nil)

	if d.NeedsClarification {
		t.Fatalf("expected a non-pronoun prompt to pass through unresolved, got %+v", d)
	}
}

func TestResolvePendingReplyDeterministicSubject(t *testing.T) {
	r := NewResolver(&stubOracle{})
	pending := model.PendingFollowupState{
		OriginalPrompt: "who is he",
		TemplatePrompt: "who is {subject}",
	}

	resolved, ok := r.ResolvePendingReply(context.Background(), "Muhammad Ali", pending, nil, nil)
	if !ok {
		t.Fatal("expected deterministic resolution to succeed")
	}
	if resolved != "who is Muhammad Ali" {
		t.Errorf("unexpected resolved prompt: %q", resolved)
	}
}

func TestResolvePendingReplyRejectsBarePronoun(t *testing.T) {
	r := NewResolver(&stubOracle{err: errBoom{}})
	pending := model.PendingFollowupState{TemplatePrompt: "who is {subject}"}

	_, ok := r.ResolvePendingReply(context.Background(), "him", pending, nil, nil)
	if ok {
		t.Fatal("expected a bare pronoun reply to fail resolution")
	}
}

func TestIsPendingReplyCandidate(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"Muhammad Ali", true},
		{"/search foo", false},
		{"", false},
		{"one two three four five six seven", false},
	}
	for _, c := range cases {
		if got := IsPendingReplyCandidate(c.text); got != c.want {
			t.Errorf("IsPendingReplyCandidate(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestTemplatePromptReplacesFirstPronoun(t *testing.T) {
	got := TemplatePrompt("what did he win")
	if got != "what did {subject} win" {
		t.Errorf("unexpected template: %q", got)
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
