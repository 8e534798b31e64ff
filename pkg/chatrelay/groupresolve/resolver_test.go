package groupresolve

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCompatGroupRecipients(t *testing.T) {
	t.Run("group-prefixed id yields suffix and decoded internal", func(t *testing.T) {
		internal := "room-42"
		encoded := encodeInternalID(internal)
		groupID := "group." + encoded

		got := compatGroupRecipients(groupID)
		if len(got) == 0 || got[0] != groupID {
			t.Fatalf("expected first candidate to be the input id, got %v", got)
		}
		found := false
		for _, c := range got {
			if c == internal {
				found = true
			}
		}
		if !found {
			t.Errorf("expected decoded internal id %q among candidates %v", internal, got)
		}
	})

	t.Run("bare internal id yields group-prefixed and legacy forms", func(t *testing.T) {
		got := compatGroupRecipients("room-42")
		if len(got) == 0 {
			t.Fatal("expected non-empty candidates")
		}
		seen := make(map[string]bool)
		for _, c := range got {
			if seen[c] {
				t.Errorf("duplicate candidate %q in %v", c, got)
			}
			seen[c] = true
		}
		if !seen["room-42"] {
			t.Errorf("expected original id among candidates %v", got)
		}
		if !seen["group."+encodeInternalID("room-42")] {
			t.Errorf("expected group-prefixed encoded id among candidates %v", got)
		}
		if !seen[legacyGroupIDFromInternal("room-42")] {
			t.Errorf("expected legacy url-safe form among candidates %v", got)
		}
	})

	t.Run("empty id yields no candidates", func(t *testing.T) {
		if got := compatGroupRecipients("  "); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})
}

func TestAliasVariantsRoundTrip(t *testing.T) {
	internal := "team-standup"
	encoded := encodeInternalID(internal)
	groupID := "group." + encoded

	variants := aliasVariants(groupID)
	want := map[string]bool{groupID: true, internal: true}
	got := make(map[string]bool)
	for _, v := range variants {
		got[v] = true
	}
	for w := range want {
		if !got[w] {
			t.Errorf("expected variant %q in %v", w, variants)
		}
	}
}

func TestDecodeGroupSuffixURLSafeAndPadding(t *testing.T) {
	internal := "needs padding!"
	std := encodeInternalID(internal)

	urlsafe := strings.NewReplacer("+", "-", "/", "_").Replace(std)
	unpadded := strings.TrimRight(urlsafe, "=")

	for _, suffix := range []string{std, urlsafe, unpadded} {
		if got := decodeGroupSuffix(suffix); got != internal {
			t.Errorf("decodeGroupSuffix(%q) = %q, want %q", suffix, got, internal)
		}
	}
}

func TestDecodeGroupSuffixInvalid(t *testing.T) {
	if got := decodeGroupSuffix("not base64!!!"); got != "" {
		t.Errorf("expected empty string for invalid input, got %q", got)
	}
}

func TestResolverFallsBackToCompatCandidatesWithoutBridge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, "+15551234567", srv.Client(), time.Minute)
	resolved := r.Resolve(context.Background(), "room-42")

	if len(resolved.Recipients) == 0 {
		t.Fatal("expected fallback candidates even when the bridge has no groups endpoint")
	}
	if resolved.CacheRefreshed {
		t.Error("expected CacheRefreshed=false when the bridge never answers successfully")
	}
}

func TestResolverUsesBridgeAliasCache(t *testing.T) {
	internal := "abc123"
	groupID := "group." + encodeInternalID(internal)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": groupID, "internalId": internal},
		})
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, "+15551234567", srv.Client(), time.Minute)
	resolved := r.Resolve(context.Background(), internal)

	if !resolved.CacheRefreshed {
		t.Error("expected CacheRefreshed=true on first successful bridge fetch")
	}
	if len(resolved.Recipients) == 0 || resolved.Recipients[0] != groupID {
		t.Errorf("expected canonical group id %q first, got %v", groupID, resolved.Recipients)
	}

	// Second resolve within the TTL window should not need another refresh
	// to keep returning the cached canonical id.
	resolved2 := r.Resolve(context.Background(), internal)
	if resolved2.CacheRefreshed {
		t.Error("expected no refresh on a cache hit within TTL")
	}
	if len(resolved2.Recipients) == 0 || resolved2.Recipients[0] != groupID {
		t.Errorf("expected cached canonical id %q, got %v", groupID, resolved2.Recipients)
	}
}
