package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/config"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/followup"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/oracle"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/router"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/search"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/searchservice"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/store"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/transport/signal"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/weather"
)

type noopOracle struct{}

func (noopOracle) GenerateReply(ctx context.Context, messages []oracle.ChatMessage, temperature float64, maxTokens int) (string, error) {
	return "", nil
}

func newTestRouter() *router.Router {
	settings := &config.Settings{
		SignalEnabled:     true,
		GroupReplyMode:    config.GroupReplyGroup,
		SearchContextMode: config.SearchContextNone,
		Modes:             map[string]config.ModeSettings{},
	}
	chatStore := store.NewChatContextStore(6, time.Hour)
	dedupe := store.NewDedupeCache(time.Hour)
	searchCtx := store.NewSearchContextStore(40, time.Hour)
	oracleClient := noopOracle{}
	searchSvc := searchservice.New(search.NewClient(search.NewRegistry(), settings, nil), searchCtx, oracleClient, settings)
	followupRes := followup.NewResolver(oracleClient)
	weatherClient := weather.NewClient(config.UnitsMetric, time.Second)
	signalClient := signal.NewClient("http://127.0.0.1:0", "+15550000000", nil, nil)
	sender := router.NewSender(signalClient, nil, nil, settings.GroupReplyMode)
	return router.New(settings, chatStore, dedupe, searchCtx, searchSvc, followupRes, oracleClient, nil, weatherClient, sender, nil)
}

func TestHealthzReturnsOK(t *testing.T) {
	srv := New(newTestRouter(), ":0", nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	srv.handleHealthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestWebhookIgnoresUnparsableBody(t *testing.T) {
	srv := New(newTestRouter(), ":0", nil)
	handler := srv.handleWebhook(srv.router.HandleSignal)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook/signal", bytes.NewBufferString("not json"))
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 ack envelope even on parse failure, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ignored" || body["reason"] != "unsupported_event" {
		t.Errorf("unexpected ack: %+v", body)
	}
}

func TestTelegramHandlerReturnsOKWithSecretHeader(t *testing.T) {
	srv := New(newTestRouter(), ":0", nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", bytes.NewBufferString("{}"))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "s3cr3t")
	srv.handleTelegram(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
