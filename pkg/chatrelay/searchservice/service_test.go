package searchservice

import (
	"context"
	"testing"
	"time"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/config"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/model"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/oracle"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/search"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/store"
)

type stubOracle struct {
	reply string
	err   error
}

func (s *stubOracle) GenerateReply(ctx context.Context, messages []oracle.ChatMessage, temperature float64, maxTokens int) (string, error) {
	return s.reply, s.err
}

func newTestSettings() *config.Settings {
	return &config.Settings{
		ChatTemperature:     0.6,
		ChatMaxOutputTokens: 300,
		ForcePlainText:      true,
		SearchTimeout:       2 * time.Second,
		Modes: map[string]config.ModeSettings{
			"videos": {BackendOrder: []string{"youtube_videos"}, MaxResults: 5},
			"jmail":  {BackendOrder: []string{"jmail"}, MaxResults: 5},
		},
	}
}

func TestResolveVideoSelectionBounds(t *testing.T) {
	settings := newTestSettings()
	ctxStore := store.NewSearchContextStore(40, time.Hour)
	svc := New(search.NewClient(search.NewRegistry(), settings, nil), ctxStore, &stubOracle{}, settings)

	ctxStore.SetPendingVideo("dm:u1", model.PendingVideoSelectionState{
		Query: "q",
		Results: []model.SearchResult{
			{Title: "First video", URL: "https://youtube.com/watch?v=abc123"},
		},
	})

	t.Run("selection within range succeeds", func(t *testing.T) {
		_, _, url, title, err := svc.ResolveVideoSelection(context.Background(), "dm:u1", 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if url != "https://youtube.com/watch?v=abc123" || title != "First video" {
			t.Errorf("unexpected result: url=%q title=%q", url, title)
		}
	})

	t.Run("out of range fails with bounded-range message", func(t *testing.T) {
		ctxStore.SetPendingVideo("dm:u2", model.PendingVideoSelectionState{
			Query:   "q",
			Results: []model.SearchResult{{Title: "only", URL: "https://example.com"}},
		})
		_, _, _, _, err := svc.ResolveVideoSelection(context.Background(), "dm:u2", 2)
		if err == nil {
			t.Fatal("expected error for out-of-range selection")
		}
	})

	t.Run("no pending state fails", func(t *testing.T) {
		_, _, _, _, err := svc.ResolveVideoSelection(context.Background(), "dm:nonexistent", 1)
		if err == nil {
			t.Fatal("expected error when no pending selection exists")
		}
	})
}

func TestSourceReplyNoSavedSource(t *testing.T) {
	settings := newTestSettings()
	ctxStore := store.NewSearchContextStore(40, time.Hour)
	svc := New(search.NewClient(search.NewRegistry(), settings, nil), ctxStore, &stubOracle{}, settings)

	got := svc.SourceReply("dm:u1", "anything")
	if got != "No saved source found for that." {
		t.Errorf("got %q", got)
	}
}

func TestSourceReplyFormatsNumberedList(t *testing.T) {
	settings := newTestSettings()
	ctxStore := store.NewSearchContextStore(40, time.Hour)
	ctxStore.RememberResults("dm:u1", model.ModeSearch, []model.SearchResult{
		{Title: "Example Title", URL: "https://example.com", Snippet: "a claim about something"},
	})
	svc := New(search.NewClient(search.NewRegistry(), settings, nil), ctxStore, &stubOracle{}, settings)

	got := svc.SourceReply("dm:u1", "claim about something")
	if got == "" || got == "No saved source found for that." {
		t.Fatalf("expected a formatted source list, got %q", got)
	}
}
