package bing

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/kitbuilder587/askweb/internal/fetch"
	"github.com/kitbuilder587/askweb/internal/search"
)

const DefaultBaseURL = "https://www.bing.com/search"

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
	return "bing"
}

func (c *Client) Search(ctx context.Context, req search.SearchRequest) ([]search.SearchResult, error) {
	if req.MaxResults <= 0 {
		req.MaxResults = 5
	}

	params := url.Values{}
	params.Set("q", req.Query)
	params.Set("format", "html")

	page, err := c.fetcher.Get(ctx, c.baseURL+"?"+params.Encode(), c.headers())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", search.ErrSearchFailed, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", search.ErrParse, err)
	}

	results := parseResults(doc, req.MaxResults)
	c.logger.Debug("bing parsed", zap.String("query", req.Query), zap.Int("results", len(results)))
	return results, nil
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	h.Set("User-Agent", c.fetcher.UserAgent())
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	return h
}

func parseResults(doc *goquery.Document, max int) []search.SearchResult {
	var results []search.SearchResult

	doc.Find("li.b_algo").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		if len(results) >= max {
			return false
		}

		link := item.Find("h2 a").First()
		title := strings.TrimSpace(link.Text())
		href := strings.TrimSpace(link.AttrOr("href", ""))
		if title == "" || !search.IsWebURL(href) {
			return true
		}

		results = append(results, search.SearchResult{
			Title:   title,
			URL:     href,
			Snippet: strings.TrimSpace(item.Find(".b_caption p").First().Text()),
		})
		return true
	})

	return results
}

var _ search.Provider = (*Client)(nil)
