package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/config"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/followup"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/model"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/oracle"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/search"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/searchservice"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/store"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/transport/signal"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/weather"
)

// stubChatOracle returns a canned reply/error, recording every call.
type stubChatOracle struct {
	reply string
	err   error
	calls int
}

func (s *stubChatOracle) GenerateReply(ctx context.Context, messages []oracle.ChatMessage, temperature float64, maxTokens int) (string, error) {
	s.calls++
	return s.reply, s.err
}

func newTestRouter(t *testing.T, oracleClient oracle.ChatOracle) (*Router, *httptest.Server, model.IncomingMessage) {
	t.Helper()

	sendServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(sendServer.Close)

	settings := &config.Settings{
		ChatTemperature:     0.6,
		ChatMaxOutputTokens: 300,
		ChatSystemPrompt:    "You are a helpful assistant.",
		ForcePlainText:      true,
		SearchContextMode:   config.SearchContextNone,
		GroupReplyMode:      config.GroupReplyGroup,
		Modes: map[string]config.ModeSettings{
			"search": {Enabled: true, MaxResults: 5},
			"wiki":   {Enabled: true, MaxResults: 5},
		},
	}

	chatStore := store.NewChatContextStore(6, time.Hour)
	dedupe := store.NewDedupeCache(time.Hour)
	searchCtx := store.NewSearchContextStore(40, time.Hour)
	searchSvc := searchservice.New(search.NewClient(search.NewRegistry(), settings, nil), searchCtx, oracleClient, settings)
	followupRes := followup.NewResolver(oracleClient)
	weatherClient := weather.NewClient(config.UnitsMetric, time.Second)

	signalClient := signal.NewClient(sendServer.URL, "+15550000000", sendServer.Client(), nil)
	sender := NewSender(signalClient, nil, nil, settings.GroupReplyMode)

	r := New(settings, chatStore, dedupe, searchCtx, searchSvc, followupRes, oracleClient, nil, weatherClient, sender, nil)

	msg := model.IncomingMessage{
		Sender:        "+15551234567",
		Transport:     model.TransportSignal,
		Target:        model.Target{Recipient: "+15551234567"},
		DirectedToBot: true,
	}
	return r, sendServer, msg
}

func TestRunChatAppendsHistoryOnlyAfterSend(t *testing.T) {
	oracleClient := &stubChatOracle{reply: "hello there"}
	r, _, msg := newTestRouter(t, oracleClient)
	convoKey := msg.ConversationKey()

	r.runChat(context.Background(), msg, convoKey, "hi", nil)

	history := r.chatStore.GetHistory(convoKey)
	if len(history) != 2 {
		t.Fatalf("expected 2 turns appended, got %d", len(history))
	}
	if history[0].Content != "hi" || history[1].Content != "hello there" {
		t.Errorf("unexpected history: %+v", history)
	}
}

func TestRunChatLeavesHistoryUnchangedOnSendFailure(t *testing.T) {
	oracleClient := &stubChatOracle{reply: "hello there"}
	r, sendServer, msg := newTestRouter(t, oracleClient)
	sendServer.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	convoKey := msg.ConversationKey()

	r.runChat(context.Background(), msg, convoKey, "hi", nil)

	if history := r.chatStore.GetHistory(convoKey); history != nil {
		t.Fatalf("expected no history on send failure, got %+v", history)
	}
}

func TestRunChatOrAutoSearchStoresPendingOnClarification(t *testing.T) {
	oracleClient := &stubChatOracle{reply: "hello there"}
	r, _, msg := newTestRouter(t, oracleClient)
	convoKey := msg.ConversationKey()

	r.runChatOrAutoSearch(context.Background(), msg, convoKey, "who is he")

	pending := r.searchCtx.GetPendingFollowup(convoKey)
	if pending == nil {
		t.Fatal("expected a pending follow-up state to be stored")
	}
	if pending.OriginalPrompt != "who is he" {
		t.Errorf("unexpected original prompt: %q", pending.OriginalPrompt)
	}
}

func TestRunPendingFollowupReplyClearsOnFirstFailure(t *testing.T) {
	oracleClient := &stubChatOracle{err: errFollowupFails{}}
	r, _, msg := newTestRouter(t, oracleClient)
	convoKey := msg.ConversationKey()

	pending := model.PendingFollowupState{OriginalPrompt: "who is he", TemplatePrompt: "who is {subject}"}
	r.searchCtx.SetPendingFollowup(convoKey, pending)

	r.runPendingFollowupReply(context.Background(), msg, convoKey, "not sure", pending)

	if got := r.searchCtx.GetPendingFollowup(convoKey); got != nil {
		t.Fatalf("expected pending state cleared after one failed reply, got %+v", got)
	}
}

func TestRunPendingFollowupReplyResolvesDeterministically(t *testing.T) {
	oracleClient := &stubChatOracle{reply: "hello there"}
	r, _, msg := newTestRouter(t, oracleClient)
	convoKey := msg.ConversationKey()

	pending := model.PendingFollowupState{OriginalPrompt: "who is he", TemplatePrompt: "who is {subject}"}
	r.searchCtx.SetPendingFollowup(convoKey, pending)

	r.runPendingFollowupReply(context.Background(), msg, convoKey, "Muhammad Ali", pending)

	if got := r.searchCtx.GetPendingFollowup(convoKey); got != nil {
		t.Fatalf("expected pending state cleared after resolution, got %+v", got)
	}
	history := r.chatStore.GetHistory(convoKey)
	if len(history) != 2 || history[0].Content != "who is Muhammad Ali" {
		t.Fatalf("expected resolved prompt routed through chat, got %+v", history)
	}
}

// errFollowupFails is a distinguishable oracle error for tests that need
// resolution to fail deterministically.
type errFollowupFails struct{}

func (errFollowupFails) Error() string { return "oracle unavailable" }
