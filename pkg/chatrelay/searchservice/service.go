// Package searchservice composes the search client, search context store,
// and chat oracle into the higher-level operations the router dispatches
// to: summarized search/news/wiki replies, image search, numbered
// video/jmail listings with numeric-selection resolution, and source-of-
// claim lookups (spec.md §4.8).
package searchservice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/config"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/model"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/oracle"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/plaintext"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/search"
	"github.com/jholhewres/chatrelay/pkg/chatrelay/store"
)

// Error is a user-visible search-service failure.
type Error struct{ Message string }

func (e *Error) Error() string { return e.Message }

func newError(msg string) error { return &Error{Message: msg} }

// Service composes the search client, context store, and chat oracle.
type Service struct {
	searchClient *search.Client
	contextStore *store.SearchContextStore
	chatOracle   oracle.ChatOracle
	settings     *config.Settings
	http         *http.Client
}

func New(searchClient *search.Client, contextStore *store.SearchContextStore, chatOracle oracle.ChatOracle, settings *config.Settings) *Service {
	return &Service{
		searchClient: searchClient,
		contextStore: contextStore,
		chatOracle:   chatOracle,
		settings:     settings,
		http:         &http.Client{Timeout: settings.SearchTimeout},
	}
}

const summarySystemPromptBase = `Summarize the following search results for the user's request. Do not invent facts beyond what the results say. Do not include URLs unless the user explicitly asked for sources. Do not use markdown formatting.`

// SummarizeSearch runs mode/query through the search client, remembers the
// results, and asks the chat oracle for a prose summary honoring the
// persona/plain-text settings (spec.md §4.8).
func (s *Service) SummarizeSearch(ctx context.Context, key string, mode model.SearchMode, query string) (string, error) {
	results, err := s.searchClient.Search(ctx, mode, query)
	if err != nil {
		return "", err
	}
	s.contextStore.RememberResults(key, mode, results)

	systemPrompt := summarySystemPromptBase
	if s.settings.PersonaEnabled {
		systemPrompt = s.settings.ChatSystemPrompt + "\n\nSearch-response constraints:\n" + summarySystemPromptBase
	}

	payload := formatResultsForOracle(results)
	reply, err := s.chatOracle.GenerateReply(ctx, []oracle.ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Request: %s\n\nResults:\n%s", query, payload)},
	}, s.settings.ChatTemperature, s.settings.ChatMaxOutputTokens)
	if err != nil {
		return "", newError(oracle.UserMessage("Search", err))
	}

	if s.settings.ForcePlainText {
		reply = plaintext.Coerce(reply)
	}
	return reply, nil
}

func formatResultsForOracle(results []model.SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s - %s\n%s\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return b.String()
}

// SearchImage runs query, remembers the results, and fetches the first
// candidate image (image_url falling back to url) that responds with a
// 2xx/3xx image/* content type.
func (s *Service) SearchImage(ctx context.Context, key, query string) ([]byte, string, error) {
	results, err := s.searchClient.Search(ctx, model.ModeImages, query)
	if err != nil {
		return nil, "", err
	}
	s.contextStore.RememberResults(key, model.ModeImages, results)

	var firstURL string
	for _, r := range results {
		candidate := r.ImageURL
		if candidate == "" {
			candidate = r.URL
		}
		if !strings.HasPrefix(candidate, "http://") && !strings.HasPrefix(candidate, "https://") {
			continue
		}
		if firstURL == "" {
			firstURL = candidate
		}
		data, contentType, err := s.fetchImage(ctx, candidate)
		if err == nil {
			return data, contentType, nil
		}
	}

	if firstURL != "" {
		return nil, "", newError(fmt.Sprintf("Could not download an image. First candidate: %s", firstURL))
	}
	return nil, "", newError("No search results found.")
}

func (s *Service) fetchImage(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, "", fmt.Errorf("status %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("unexpected content type %q", contentType)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}

// VideoListReply runs query against the videos mode, stores a pending
// video-selection slot, and returns the numbered listing text.
func (s *Service) VideoListReply(ctx context.Context, key, query string) (string, error) {
	results, err := s.searchClient.Search(ctx, model.ModeVideos, query)
	if err != nil {
		return "", err
	}
	s.contextStore.SetPendingVideo(key, model.PendingVideoSelectionState{Query: query, Results: results})
	return formatNumberedList("Videos:", "Reply with a number to send the thumbnail and URL.", results), nil
}

// ResolveVideoSelection consumes the pending video-selection slot: on
// success it returns the thumbnail bytes (if fetchable) plus the selected
// result's url/title.
func (s *Service) ResolveVideoSelection(ctx context.Context, key string, n int) (image []byte, contentType string, url string, title string, err error) {
	pending := s.contextStore.GetPendingVideo(key)
	if pending == nil {
		return nil, "", "", "", newError("No pending video results. Run /videos <query> first.")
	}
	if n < 1 || n > len(pending.Results) {
		return nil, "", "", "", newError(fmt.Sprintf("Please choose a number between 1 and %d.", len(pending.Results)))
	}
	selected := pending.Results[n-1]
	s.contextStore.ClearPendingVideo(key)

	if selected.ThumbnailURL != "" {
		data, ct, fetchErr := s.fetchImage(ctx, selected.ThumbnailURL)
		if fetchErr == nil {
			return data, ct, selected.URL, selected.Title, nil
		}
	}
	return nil, "", selected.URL, selected.Title, nil
}

const jmailSummarySystemPrompt = `Summarize this single search result for the user in one or two sentences. Do not invent facts. Do not use markdown formatting.`

// JmailListReply is VideoListReply's jmail-mode counterpart.
func (s *Service) JmailListReply(ctx context.Context, key, query string) (string, error) {
	results, err := s.searchClient.Search(ctx, model.ModeJmail, query)
	if err != nil {
		return "", err
	}
	s.contextStore.SetPendingJmail(key, model.PendingJmailSelectionState{Query: query, Results: results})
	return formatNumberedList("Results:", "Reply with a number to get a summary of that result.", results), nil
}

// ResolveJmailSelection consumes the pending jmail-selection slot and asks
// the chat oracle for a one-result summary.
func (s *Service) ResolveJmailSelection(ctx context.Context, key string, n int) (string, error) {
	pending := s.contextStore.GetPendingJmail(key)
	if pending == nil {
		return "", newError("No pending results. Run /jmail <query> first.")
	}
	if n < 1 || n > len(pending.Results) {
		return "", newError(fmt.Sprintf("Please choose a number between 1 and %d.", len(pending.Results)))
	}
	selected := pending.Results[n-1]
	s.contextStore.ClearPendingJmail(key)

	reply, err := s.chatOracle.GenerateReply(ctx, []oracle.ChatMessage{
		{Role: "system", Content: jmailSummarySystemPrompt},
		{Role: "user", Content: fmt.Sprintf("%s - %s\n%s", selected.Title, selected.URL, selected.Snippet)},
	}, s.settings.ChatTemperature, s.settings.ChatMaxOutputTokens)
	if err != nil {
		return "", newError(oracle.UserMessage("Search", err))
	}
	if s.settings.ForcePlainText {
		reply = plaintext.Coerce(reply)
	}
	return reply, nil
}

// SourceReply answers "/source [claim]" by looking up matching records in
// the search context store.
func (s *Service) SourceReply(key, claim string) string {
	records := s.contextStore.FindSources(key, claim, 5)
	if len(records) == 0 {
		return "No saved source found for that."
	}
	var b strings.Builder
	b.WriteString("Sources:\n")
	for i, r := range records {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, r.Title, r.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatNumberedList(header, footer string, results []model.SearchResult) string {
	var b strings.Builder
	b.WriteString(header + "\n")
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Title)
	}
	b.WriteString(footer)
	return b.String()
}

// IsServiceError reports whether err carries a user-visible message: either
// an Error produced by this package or a search error from search.Client.
func IsServiceError(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return true
	}
	return search.IsSearchError(err)
}
