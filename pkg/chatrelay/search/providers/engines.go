package providers

import (
	"fmt"
	"net/http"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/model"
)

// DuckDuckGo scrapes html.duckduckgo.com, grounded on orx_search's
// duckduckgo.py.
type DuckDuckGo struct{ client *http.Client }

func NewDuckDuckGo(client *http.Client) *DuckDuckGo { return &DuckDuckGo{client: client} }
func (p *DuckDuckGo) Name() string                  { return "duckduckgo" }
func (p *DuckDuckGo) Search(query string) ([]model.ProviderResult, error) {
	return fetchHTML(p.client,
		"https://html.duckduckgo.com/html/?q="+queryEscape(query),
		htmlResultSelector{item: "div.result", title: "h2 a", link: "h2 a", snippet: ".result__snippet"},
		"https://duckduckgo.com/y.js?",
	)
}

// Bing scrapes www.bing.com/search.
type Bing struct{ client *http.Client }

func NewBing(client *http.Client) *Bing { return &Bing{client: client} }
func (p *Bing) Name() string            { return "bing" }
func (p *Bing) Search(query string) ([]model.ProviderResult, error) {
	return fetchHTML(p.client,
		"https://www.bing.com/search?q="+queryEscape(query),
		htmlResultSelector{item: "li.b_algo", title: "h2 a", link: "h2 a", snippet: ".b_caption p"},
	)
}

// BingNews scrapes bing.com/news — kept distinct from Bing per
// SPEC_FULL.md's "supplemented features" #3.
type BingNews struct{ client *http.Client }

func NewBingNews(client *http.Client) *BingNews { return &BingNews{client: client} }
func (p *BingNews) Name() string                { return "bing_news" }
func (p *BingNews) Search(query string) ([]model.ProviderResult, error) {
	return fetchHTML(p.client,
		"https://www.bing.com/news/search?q="+queryEscape(query),
		htmlResultSelector{item: "div.news-card", title: "a.title", link: "a.title", snippet: ".snippet"},
	)
}

// Google scrapes www.google.com/search.
type Google struct{ client *http.Client }

func NewGoogle(client *http.Client) *Google { return &Google{client: client} }
func (p *Google) Name() string              { return "google" }
func (p *Google) Search(query string) ([]model.ProviderResult, error) {
	return fetchHTML(p.client,
		"https://www.google.com/search?q="+queryEscape(query),
		htmlResultSelector{item: "div.g", title: "h3", link: "a", snippet: ".VwiC3b"},
	)
}

// Yandex scrapes yandex.com/search.
type Yandex struct{ client *http.Client }

func NewYandex(client *http.Client) *Yandex { return &Yandex{client: client} }
func (p *Yandex) Name() string              { return "yandex" }
func (p *Yandex) Search(query string) ([]model.ProviderResult, error) {
	return fetchHTML(p.client,
		"https://yandex.com/search/?text="+queryEscape(query),
		htmlResultSelector{item: "li.serp-item", title: ".organic__url-text", link: "a.organic__url", snippet: ".organic__text"},
	)
}

// Yahoo scrapes search.yahoo.com.
type Yahoo struct{ client *http.Client }

func NewYahoo(client *http.Client) *Yahoo { return &Yahoo{client: client} }
func (p *Yahoo) Name() string             { return "yahoo" }
func (p *Yahoo) Search(query string) ([]model.ProviderResult, error) {
	return fetchHTML(p.client,
		"https://search.yahoo.com/search?p="+queryEscape(query),
		htmlResultSelector{item: "div.algo", title: "h3 a", link: "h3 a", snippet: ".compText"},
	)
}

// YahooNews scrapes news.search.yahoo.com — kept distinct from Yahoo.
type YahooNews struct{ client *http.Client }

func NewYahooNews(client *http.Client) *YahooNews { return &YahooNews{client: client} }
func (p *YahooNews) Name() string                 { return "yahoo_news" }
func (p *YahooNews) Search(query string) ([]model.ProviderResult, error) {
	return fetchHTML(p.client,
		"https://news.search.yahoo.com/search?p="+queryEscape(query),
		htmlResultSelector{item: "div.NewsArticle", title: "h4 a", link: "h4 a", snippet: ".s-desc"},
	)
}

// Grokipedia scrapes grokipedia.com's encyclopedic search.
type Grokipedia struct{ client *http.Client }

func NewGrokipedia(client *http.Client) *Grokipedia { return &Grokipedia{client: client} }
func (p *Grokipedia) Name() string                  { return "grokipedia" }
func (p *Grokipedia) Search(query string) ([]model.ProviderResult, error) {
	return fetchHTML(p.client,
		"https://grokipedia.com/search?q="+queryEscape(query),
		htmlResultSelector{item: "article.result", title: "h2", link: "a", snippet: "p"},
	)
}

// Wikipedia uses the public MediaWiki search API (JSON), grounded on
// orx_search's wikipedia.py.
type Wikipedia struct{ client *http.Client }

func NewWikipedia(client *http.Client) *Wikipedia { return &Wikipedia{client: client} }
func (p *Wikipedia) Name() string                 { return "wikipedia" }
func (p *Wikipedia) Search(query string) ([]model.ProviderResult, error) {
	out, err := fetchWikipediaAPI(p.client, query)
	if err != nil {
		return nil, fmt.Errorf("providers: wikipedia: %w", err)
	}
	return out, nil
}

// AnnasArchive scrapes annas-archive.org — a SPEC_FULL.md supplemented
// provider selectable via search_backend_order but not in the default
// chain.
type AnnasArchive struct{ client *http.Client }

func NewAnnasArchive(client *http.Client) *AnnasArchive { return &AnnasArchive{client: client} }
func (p *AnnasArchive) Name() string                    { return "annasarchive" }
func (p *AnnasArchive) Search(query string) ([]model.ProviderResult, error) {
	return fetchHTML(p.client,
		"https://annas-archive.org/search?q="+queryEscape(query),
		htmlResultSelector{item: "div.mb-4", title: "h3", link: "a", snippet: ".text-sm"},
	)
}

// Books is a SPEC_FULL.md supplemented provider for book-specific queries.
type Books struct{ client *http.Client }

func NewBooks(client *http.Client) *Books { return &Books{client: client} }
func (p *Books) Name() string             { return "books" }
func (p *Books) Search(query string) ([]model.ProviderResult, error) {
	return fetchHTML(p.client,
		"https://www.googleapis.com/books/v1/volumes?q="+queryEscape(query),
		htmlResultSelector{item: "item", title: "title", link: "link", snippet: "description"},
	)
}
