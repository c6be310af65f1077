package duckduckgo

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/kitbuilder587/askweb/internal/fetch"
	"github.com/kitbuilder587/askweb/internal/search"
)

const (
	DefaultBaseURL = "https://lite.duckduckgo.com/lite/"

	// пороги для запасного разбора "все ссылки на странице"
	minLinkTextLen = 10
	maxTitleLen    = 100
	maxSnippetLen  = 200
)

type Config struct {
	BaseURL string
}

type Client struct {
	baseURL string
	fetcher *fetch.Client
	logger  *zap.Logger
}

func New(cfg Config, fetcher *fetch.Client, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: cfg.BaseURL,
		fetcher: fetcher,
		logger:  logger,
	}
}

func (c *Client) Name() string {
	return "duckduckgo"
}

func (c *Client) Search(ctx context.Context, req search.SearchRequest) ([]search.SearchResult, error) {
	if req.MaxResults <= 0 {
		req.MaxResults = 5
	}

	searchURL := c.baseURL + "?q=" + url.QueryEscape(req.Query)
	page, err := c.fetcher.Get(ctx, searchURL, c.fetcher.BrowserHeaders())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", search.ErrSearchFailed, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", search.ErrParse, err)
	}

	results := parseResults(doc, req.MaxResults)
	if len(results) > 0 {
		return results, nil
	}

	c.logger.Debug("duckduckgo structured parse empty, scanning links", zap.String("query", req.Query))
	return parseLinks(doc, hostOf(c.baseURL), req.MaxResults), nil
}

// parseResults разбирает таблицу выдачи DDG Lite: строка с a.result-link,
// сниппет может лежать в той же или следующей строке.
func parseResults(doc *goquery.Document, max int) []search.SearchResult {
	var results []search.SearchResult

	doc.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if len(results) >= max {
			return false
		}

		link := row.Find("a.result-link").First()
		if link.Length() == 0 {
			return true
		}

		title := strings.TrimSpace(link.Text())
		href := unwrapRedirect(link.AttrOr("href", ""))
		if title == "" || !search.IsWebURL(href) {
			return true
		}

		snippet := strings.TrimSpace(row.Find(".result-snippet").Text())
		if snippet == "" {
			snippet = strings.TrimSpace(row.NextAllFiltered("tr").First().Find(".result-snippet").Text())
		}

		results = append(results, search.SearchResult{Title: title, URL: href, Snippet: snippet})
		return true
	})

	return results
}

// parseLinks - запасной вариант: любые внешние ссылки с достаточно длинным текстом.
func parseLinks(doc *goquery.Document, selfHost string, max int) []search.SearchResult {
	var results []search.SearchResult
	seen := make(map[string]bool)

	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if len(results) >= max {
			return false
		}

		href := unwrapRedirect(a.AttrOr("href", ""))
		text := strings.TrimSpace(a.Text())
		if !search.IsWebURL(href) || len([]rune(text)) <= minLinkTextLen || seen[href] {
			return true
		}
		host := hostOf(href)
		if strings.Contains(host, "duckduckgo.com") || (selfHost != "" && host == selfHost) {
			return true
		}
		seen[href] = true

		results = append(results, search.SearchResult{
			Title:   truncate(text, maxTitleLen),
			URL:     href,
			Snippet: strings.TrimSpace(truncate(a.Parent().Text(), maxSnippetLen)),
		})
		return true
	})

	return results
}

// unwrapRedirect раскрывает ссылки вида //duckduckgo.com/l/?uddg=<target>.
func unwrapRedirect(href string) string {
	href = strings.TrimSpace(href)
	if !strings.Contains(href, "uddg=") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var _ search.Provider = (*Client)(nil)
