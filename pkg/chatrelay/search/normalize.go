package search

import (
	"strings"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/model"
)

// Provider is the flat interface every search backend implements. Providers
// must never raise to indicate "no results" — they return an empty slice —
// but the client tolerates providers that violate this and treats an error
// the same as empty (spec.md §4.5).
type Provider interface {
	Name() string
	Search(query string) ([]model.ProviderResult, error)
}

// normalizeResults maps provider output to the canonical SearchResult
// shape, dropping any entry with an empty URL (spec.md §4.5 step 7).
func normalizeResults(mode model.SearchMode, in []model.ProviderResult) []model.SearchResult {
	out := make([]model.SearchResult, 0, len(in))
	for _, r := range in {
		url := strings.TrimSpace(r.URL)
		if url == "" {
			continue
		}
		out = append(out, model.SearchResult{
			Mode:         mode,
			Title:        r.Title,
			URL:          url,
			Snippet:      r.Snippet,
			Source:       r.Source,
			Date:         r.Date,
			ImageURL:     r.ImageURL,
			ThumbnailURL: r.ImageURL,
		})
	}
	return out
}

// dedupeByURL deduplicates results by trimmed, case-sensitive URL,
// preserving order of first occurrence (spec.md §4.5 step 5 "aggregate").
func dedupeByURL(results []model.SearchResult) []model.SearchResult {
	seen := map[string]bool{}
	out := make([]model.SearchResult, 0, len(results))
	for _, r := range results {
		u := strings.TrimSpace(r.URL)
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, r)
	}
	return out
}
