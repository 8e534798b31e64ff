package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/config"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/model"
)

// Error is a user-visible search failure (spec.md §4.5, §7).
type Error struct{ Message string }

func (e *Error) Error() string { return e.Message }

func newError(msg string) error { return &Error{Message: msg} }

// Client resolves a mode+query to a non-empty []model.SearchResult or an
// Error, fanning out across the configured provider sequence per the
// merge strategy (spec.md §4.5).
type Client struct {
	registry *Registry
	settings *config.Settings
	logger   *slog.Logger
	http     *http.Client
}

// NewClient builds a search Client sharing one fingerprinted HTTP client
// across every provider constructed from registry.
func NewClient(registry *Registry, settings *config.Settings, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		registry: registry,
		settings: settings,
		logger:   logger.With("component", "search_client"),
		http:     NewFingerprintedClient(settings.SearchTimeout),
	}
}

// legacyAlias maps a configured backend token to its mode-specific real
// provider name (spec.md §4.5 step 2).
func legacyAlias(mode model.SearchMode, name string) string {
	switch mode {
	case model.ModeImages:
		if name == "duckduckgo" {
			return "duckduckgo_images"
		}
	case model.ModeVideos:
		switch name {
		case "duckduckgo":
			return "duckduckgo_videos"
		case "youtube":
			return "youtube_videos"
		}
	case model.ModeNews:
		switch name {
		case "duckduckgo":
			return "duckduckgo"
		case "bing":
			return "bing_news"
		case "yahoo":
			return "yahoo_news"
		}
	}
	return name
}

var encyclopedicProviders = map[string]bool{
	"wikipedia":  true,
	"grokipedia": true,
}

// resolveBackendSequence returns the ordered, deduplicated provider name
// sequence for mode (spec.md §4.5 step 2-3).
func (c *Client) resolveBackendSequence(mode model.SearchMode) []string {
	var raw []string
	switch mode {
	case model.ModeSearch:
		raw = c.settings.Modes["search"].BackendOrder
	case model.ModeNews:
		raw = c.settings.Modes["news"].BackendOrder
	case model.ModeWiki:
		raw = []string{c.settings.WikiBackend}
	case model.ModeImages:
		raw = c.settings.Modes["images"].BackendOrder
	case model.ModeVideos:
		raw = c.settings.Modes["videos"].BackendOrder
	case model.ModeJmail:
		raw = []string{"jmail"}
	case model.ModeLolcowCyraxx:
		raw = []string{"lolcow_cyraxx"}
	case model.ModeLolcowLarson:
		raw = []string{"lolcow_larson"}
	}

	flattened := make([]string, 0, len(raw))
	for _, token := range raw {
		for _, part := range strings.Split(token, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				flattened = append(flattened, legacyAlias(mode, part))
			}
		}
	}
	flattened = config.DedupeBackends(flattened)

	if mode == model.ModeNews {
		kept := flattened[:0]
		for _, name := range flattened {
			if !encyclopedicProviders[name] {
				kept = append(kept, name)
			}
		}
		flattened = kept
	}
	return flattened
}

func (c *Client) maxResults(mode model.SearchMode) int {
	if ms, ok := c.settings.Modes[string(mode)]; ok && ms.MaxResults > 0 {
		return ms.MaxResults
	}
	return 5
}

// Search resolves query against mode, returning a non-empty result list or
// an *Error with a user-visible message (spec.md §4.5).
func (c *Client) Search(ctx context.Context, mode model.SearchMode, query string) ([]model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, newError("Search query is empty.")
	}

	names := c.resolveBackendSequence(mode)
	cap := c.maxResults(mode)

	switch c.settings.SearchBackendStrategy {
	case config.MergeAggregate:
		return c.searchAggregate(ctx, mode, query, names, cap)
	default:
		return c.searchFirstNonEmpty(ctx, mode, query, names, cap)
	}
}

func (c *Client) buildProvider(name string) (Provider, error) {
	return c.registry.Build(name, c.http)
}

func (c *Client) callProvider(ctx context.Context, name, query string) []model.ProviderResult {
	p, err := c.buildProvider(name)
	if err != nil {
		c.logger.Warn("unknown provider", "provider", name, "error", err)
		return nil
	}

	type outcome struct {
		results []model.ProviderResult
		err     error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		res, err := p.Search(query)
		ch <- outcome{results: res, err: err}
	}()

	select {
	case o := <-ch:
		if o.err != nil {
			c.logger.Debug("provider error, treated as empty", "provider", name, "error", o.err)
			return nil
		}
		return o.results
	case <-ctx.Done():
		c.logger.Debug("provider timed out, treated as empty", "provider", name)
		return nil
	}
}

func (c *Client) searchFirstNonEmpty(ctx context.Context, mode model.SearchMode, query string, names []string, cap int) ([]model.SearchResult, error) {
	for _, name := range names {
		raw := c.callProvider(ctx, name, query)
		results := normalizeResults(mode, raw)
		if len(results) > 0 {
			if len(results) > cap {
				results = results[:cap]
			}
			return results, nil
		}
	}
	return nil, newError("No search results found.")
}

func (c *Client) searchAggregate(ctx context.Context, mode model.SearchMode, query string, names []string, cap int) ([]model.SearchResult, error) {
	var wg sync.WaitGroup
	perProvider := make([][]model.ProviderResult, len(names))
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			perProvider[i] = c.callProvider(ctx, name, query)
		}(i, name)
	}
	wg.Wait()

	var all []model.SearchResult
	for _, raw := range perProvider {
		all = append(all, normalizeResults(mode, raw)...)
	}
	all = dedupeByURL(all)
	if len(all) == 0 {
		return nil, newError("No search results found.")
	}
	if len(all) > cap {
		all = all[:cap]
	}
	return all, nil
}

// IsSearchError reports whether err is a user-visible search Error.
func IsSearchError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}
