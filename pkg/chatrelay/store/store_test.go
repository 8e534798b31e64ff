package store

import (
	"testing"
	"time"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/model"
)

func TestDedupeKeyMarkOnce(t *testing.T) {
	c := NewDedupeCache(time.Hour)
	key := DedupeKey("+155501", 1000, "hello")

	if !c.MarkOnce(key) {
		t.Fatal("expected first MarkOnce to succeed")
	}
	if c.MarkOnce(key) {
		t.Fatal("expected second MarkOnce on the same key to fail (duplicate)")
	}
}

func TestDedupePurgeRemovesExpiredOnly(t *testing.T) {
	c := NewDedupeCache(time.Hour)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.MarkOnce("stays")
	now = now.Add(30 * time.Minute)
	c.MarkOnce("fresh")
	now = now.Add(45 * time.Minute)

	if n := c.Purge(); n != 1 {
		t.Fatalf("expected 1 expired key purged, got %d", n)
	}
	if c.MarkOnce("fresh") {
		t.Fatal("fresh key should still be marked, not purged")
	}
}

func TestChatContextStoreAppendTruncatesToMaxTurns(t *testing.T) {
	s := NewChatContextStore(2, time.Hour)
	key := "dm:u1"
	for i := 0; i < 5; i++ {
		s.AppendTurn(key, "q", "a")
	}
	history := s.GetHistory(key)
	if len(history) != 4 {
		t.Fatalf("expected history bounded to 2*maxTurns=4, got %d", len(history))
	}
}

func TestChatContextStorePurgeDropsExpiredConversations(t *testing.T) {
	s := NewChatContextStore(4, time.Hour)
	now := time.Now()
	s.now = func() time.Time { return now }

	s.AppendTurn("dm:u1", "q", "a")
	now = now.Add(2 * time.Hour)

	if n := s.Purge(); n != 1 {
		t.Fatalf("expected 1 expired conversation purged, got %d", n)
	}
	if h := s.GetHistory("dm:u1"); h != nil {
		t.Fatalf("expected purged conversation to be gone, got %+v", h)
	}
}

func TestSearchContextStorePendingSlotsAreMutuallyExclusive(t *testing.T) {
	s := NewSearchContextStore(40, time.Hour)
	key := "dm:u1"

	s.SetPendingVideo(key, model.PendingVideoSelectionState{Query: "q"})
	if s.GetPendingJmail(key) != nil {
		t.Fatal("expected setting a video slot to clear any jmail slot")
	}

	s.SetPendingJmail(key, model.PendingJmailSelectionState{Query: "q"})
	if s.GetPendingVideo(key) != nil {
		t.Fatal("expected setting a jmail slot to clear any video slot")
	}
}

func TestSearchContextStoreClearAllPending(t *testing.T) {
	s := NewSearchContextStore(40, time.Hour)
	key := "dm:u1"
	s.SetPendingFollowup(key, model.PendingFollowupState{OriginalPrompt: "who is he"})
	s.SetPendingJmail(key, model.PendingJmailSelectionState{Query: "q"})

	s.ClearAllPending(key)

	if s.GetPendingFollowup(key) != nil || s.GetPendingJmail(key) != nil {
		t.Fatal("expected all pending slots cleared")
	}
}

func TestSearchContextStoreFindSourcesRanksByOverlapAndDedupesURL(t *testing.T) {
	s := NewSearchContextStore(40, time.Hour)
	key := "dm:u1"
	s.RememberResults(key, model.ModeSearch, []model.SearchResult{
		{Title: "Go concurrency patterns", URL: "https://a.example"},
		{Title: "Go concurrency patterns", URL: "https://a.example"},
		{Title: "Unrelated cooking tips", URL: "https://b.example"},
	})

	records := s.FindSources(key, "go concurrency", 5)
	if len(records) != 1 {
		t.Fatalf("expected 1 deduped, relevant record, got %d", len(records))
	}
	if records[0].URL != "https://a.example" {
		t.Errorf("unexpected match: %+v", records[0])
	}
}

func TestSearchContextStorePurgeRemovesEmptyBuckets(t *testing.T) {
	s := NewSearchContextStore(40, time.Hour)
	now := time.Now()
	s.now = func() time.Time { return now }

	s.RememberResults("dm:u1", model.ModeSearch, []model.SearchResult{{Title: "t", URL: "https://a.example"}})
	now = now.Add(2 * time.Hour)

	if n := s.Purge(); n != 1 {
		t.Fatalf("expected 1 record purged, got %d", n)
	}
	if _, ok := s.buckets["dm:u1"]; ok {
		t.Fatal("expected the now-empty bucket to be removed")
	}
}
