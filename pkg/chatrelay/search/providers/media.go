package providers

import (
	"net/http"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/model"
)

// DuckDuckGoImages scrapes DuckDuckGo's image search. Legacy alias mapping
// ("duckduckgo" -> "duckduckgo_images" for the images mode) is handled by
// search.Client, not here.
type DuckDuckGoImages struct{ client *http.Client }

func NewDuckDuckGoImages(client *http.Client) *DuckDuckGoImages { return &DuckDuckGoImages{client: client} }
func (p *DuckDuckGoImages) Name() string                        { return "duckduckgo_images" }
func (p *DuckDuckGoImages) Search(query string) ([]model.ProviderResult, error) {
	results, err := fetchHTML(p.client,
		"https://duckduckgo.com/i.js?q="+queryEscape(query),
		htmlResultSelector{item: "div.tile", title: ".tile--img__title", link: "a.tile--img__media-link", snippet: ".tile--img__title"},
	)
	if err != nil {
		return nil, err
	}
	for i := range results {
		if results[i].ImageURL == "" {
			results[i].ImageURL = results[i].URL
		}
	}
	return results, nil
}

// DuckDuckGoVideos scrapes DuckDuckGo's video search.
type DuckDuckGoVideos struct{ client *http.Client }

func NewDuckDuckGoVideos(client *http.Client) *DuckDuckGoVideos { return &DuckDuckGoVideos{client: client} }
func (p *DuckDuckGoVideos) Name() string                        { return "duckduckgo_videos" }
func (p *DuckDuckGoVideos) Search(query string) ([]model.ProviderResult, error) {
	return fetchHTML(p.client,
		"https://duckduckgo.com/v.js?q="+queryEscape(query),
		htmlResultSelector{item: "div.tile", title: ".tile-info .tile__title", link: "a.tile__media-wrap", snippet: ".tile__description"},
	)
}

// YoutubeVideos scrapes YouTube's search results page, grounded on
// orx_search's youtube_videos.py.
type YoutubeVideos struct{ client *http.Client }

func NewYoutubeVideos(client *http.Client) *YoutubeVideos { return &YoutubeVideos{client: client} }
func (p *YoutubeVideos) Name() string                     { return "youtube_videos" }
func (p *YoutubeVideos) Search(query string) ([]model.ProviderResult, error) {
	return fetchHTML(p.client,
		"https://www.youtube.com/results?search_query="+queryEscape(query),
		htmlResultSelector{item: "ytd-video-renderer", title: "#video-title", link: "#video-title", snippet: "#description-text"},
	)
}

// Jmail is the fixed single provider backing the "jmail" mode, grounded on
// orx_search's jmail.py.
type Jmail struct{ client *http.Client }

func NewJmail(client *http.Client) *Jmail { return &Jmail{client: client} }
func (p *Jmail) Name() string             { return "jmail" }
func (p *Jmail) Search(query string) ([]model.ProviderResult, error) {
	return fetchHTML(p.client,
		"https://search.jmail.world/?q="+queryEscape(query),
		htmlResultSelector{item: "div.email-result", title: ".subject", link: "a.permalink", snippet: ".preview"},
	)
}

// LolcowCyraxx and LolcowLarson are the two fixed single providers backing
// the lolcow_cyraxx/lolcow_larson modes, grounded on orx_search's
// lolcow_cyraxx.py / lolcow_larson.py (both thin wrappers over lolcow.py).
type LolcowCyraxx struct{ client *http.Client }

func NewLolcowCyraxx(client *http.Client) *LolcowCyraxx { return &LolcowCyraxx{client: client} }
func (p *LolcowCyraxx) Name() string                     { return "lolcow_cyraxx" }
func (p *LolcowCyraxx) Search(query string) ([]model.ProviderResult, error) {
	return fetchLolcowForum(p.client, "cyraxx", query)
}

type LolcowLarson struct{ client *http.Client }

func NewLolcowLarson(client *http.Client) *LolcowLarson { return &LolcowLarson{client: client} }
func (p *LolcowLarson) Name() string                     { return "lolcow_larson" }
func (p *LolcowLarson) Search(query string) ([]model.ProviderResult, error) {
	return fetchLolcowForum(p.client, "larson", query)
}

func fetchLolcowForum(client *http.Client, thread, query string) ([]model.ProviderResult, error) {
	return fetchHTML(client,
		"https://lolcow.farm/search/"+thread+"/?q="+queryEscape(query),
		htmlResultSelector{item: "li.search-result", title: ".title", link: "a", snippet: ".snippet"},
	)
}
