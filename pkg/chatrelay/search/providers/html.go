// Package providers implements the ~20 search backend adapters the search
// client fans out across. Each adapter is a small, independent value
// implementing search.Provider; there is deliberately no class hierarchy
// (spec.md §9). HTML-scraping adapters use goquery to walk result DOM the
// way the teacher's document-ingestion pipeline does for arbitrary HTML.
package providers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/model"
)

// htmlResultSelector describes how to pull one ProviderResult out of a
// goquery selection for a given HTML search engine's result markup.
type htmlResultSelector struct {
	item    string
	title   string
	link    string
	snippet string
}

// fetchHTML runs an HTML-scraping GET request and parses the result items
// according to sel. It returns (nil, err) on transport failure; callers are
// expected to treat that as "no results" per spec.md §4.5's provider
// contract note that adapters do throw on network/parse errors in practice.
func fetchHTML(client *http.Client, requestURL string, sel htmlResultSelector, skipURLPrefixes ...string) ([]model.ProviderResult, error) {
	req, err := http.NewRequest(http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; chatrelay/1.0)")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("providers: fetching %s: %w", requestURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("providers: %s returned status %d", requestURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("providers: parsing response from %s: %w", requestURL, err)
	}

	var out []model.ProviderResult
	doc.Find(sel.item).Each(func(_ int, s *goquery.Selection) {
		title := strings.TrimSpace(s.Find(sel.title).First().Text())
		href, _ := s.Find(sel.link).First().Attr("href")
		href = strings.TrimSpace(href)
		snippet := strings.TrimSpace(s.Find(sel.snippet).First().Text())

		if href == "" {
			return
		}
		for _, prefix := range skipURLPrefixes {
			if strings.HasPrefix(href, prefix) {
				return
			}
		}
		out = append(out, model.ProviderResult{Title: title, URL: href, Snippet: snippet})
	})
	return out, nil
}

func queryEscape(q string) string { return url.QueryEscape(q) }
