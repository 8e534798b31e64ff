package providers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/model"
)

// wikipediaAPIResponse is the shape of the MediaWiki "list=search" action
// API response this provider consumes.
type wikipediaAPIResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
			PageID  int    `json:"pageid"`
		} `json:"search"`
	} `json:"query"`
}

func fetchWikipediaAPI(client *http.Client, query string) ([]model.ProviderResult, error) {
	u := "https://en.wikipedia.org/w/api.php?action=query&list=search&format=json&srsearch=" + queryEscape(query)
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; chatrelay/1.0)")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("wikipedia api returned status %d", resp.StatusCode)
	}

	var parsed wikipediaAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]model.ProviderResult, 0, len(parsed.Query.Search))
	for _, s := range parsed.Query.Search {
		out = append(out, model.ProviderResult{
			Title:   s.Title,
			URL:     fmt.Sprintf("https://en.wikipedia.org/?curid=%d", s.PageID),
			Snippet: stripWikiMarkup(s.Snippet),
			Source:  "Wikipedia",
		})
	}
	return out, nil
}

// stripWikiMarkup removes the <span class="searchmatch"> highlight tags the
// MediaWiki search API wraps matched terms in.
func stripWikiMarkup(s string) string {
	out := make([]byte, 0, len(s))
	inTag := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '<':
			inTag = true
		case s[i] == '>':
			inTag = false
		case !inTag:
			out = append(out, s[i])
		}
	}
	return string(out)
}
