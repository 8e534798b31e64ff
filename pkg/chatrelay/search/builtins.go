package search

import (
	"net/http"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/search/providers"
)

// register wires every built-in provider constructor into the registry.
// Each provider independently implements the Provider interface
// structurally (no shared base type — spec.md §9).
func (r *Registry) register() {
	r.Register("duckduckgo", func(c *http.Client) Provider { return providers.NewDuckDuckGo(c) })
	r.Register("bing", func(c *http.Client) Provider { return providers.NewBing(c) })
	r.Register("bing_news", func(c *http.Client) Provider { return providers.NewBingNews(c) })
	r.Register("google", func(c *http.Client) Provider { return providers.NewGoogle(c) })
	r.Register("yandex", func(c *http.Client) Provider { return providers.NewYandex(c) })
	r.Register("yahoo", func(c *http.Client) Provider { return providers.NewYahoo(c) })
	r.Register("yahoo_news", func(c *http.Client) Provider { return providers.NewYahooNews(c) })
	r.Register("grokipedia", func(c *http.Client) Provider { return providers.NewGrokipedia(c) })
	r.Register("wikipedia", func(c *http.Client) Provider { return providers.NewWikipedia(c) })
	r.Register("annasarchive", func(c *http.Client) Provider { return providers.NewAnnasArchive(c) })
	r.Register("books", func(c *http.Client) Provider { return providers.NewBooks(c) })
	r.Register("duckduckgo_images", func(c *http.Client) Provider { return providers.NewDuckDuckGoImages(c) })
	r.Register("duckduckgo_videos", func(c *http.Client) Provider { return providers.NewDuckDuckGoVideos(c) })
	r.Register("youtube_videos", func(c *http.Client) Provider { return providers.NewYoutubeVideos(c) })
	r.Register("jmail", func(c *http.Client) Provider { return providers.NewJmail(c) })
	r.Register("lolcow_cyraxx", func(c *http.Client) Provider { return providers.NewLolcowCyraxx(c) })
	r.Register("lolcow_larson", func(c *http.Client) Provider { return providers.NewLolcowLarson(c) })
}
