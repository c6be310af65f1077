// Package fetch - общий исходящий HTTP для поисковиков и извлечения контента:
// пул user-agent'ов, таймаут, ограничение редиректов и размера ответа.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"
)

var (
	ErrStatus           = errors.New("unexpected response status")
	ErrTooManyRedirects = errors.New("too many redirects")
)

var DefaultUserAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

const defaultMaxBodyBytes = 5 << 20

type Config struct {
	Timeout      time.Duration
	MaxRedirects int
	MaxBodyBytes int64
	UserAgents   []string
	ProxyURL     string
}

type Client struct {
	http       *http.Client
	userAgents []string
	maxBody    int64
}

type Page struct {
	Body []byte
	// URL после редиректов.
	URL         *url.URL
	ContentType string
}

func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = 3
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = DefaultUserAgents
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
	}
	if cfg.ProxyURL != "" {
		if proxyURL, err := url.Parse(cfg.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	maxRedirects := cfg.MaxRedirects
	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return ErrTooManyRedirects
				}
				return nil
			},
		},
		userAgents: cfg.UserAgents,
		maxBody:    cfg.MaxBodyBytes,
	}
}

func (c *Client) UserAgent() string {
	return c.userAgents[rand.IntN(len(c.userAgents))]
}

// BrowserHeaders - заголовки, с которыми поисковики отдают обычную HTML-выдачу.
func (c *Client) BrowserHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", c.UserAgent())
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("DNT", "1")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Cache-Control", "max-age=0")
	return h
}

// Get выполняет GET и возвращает тело при 2xx. Иначе ошибка с ErrStatus.
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if header == nil {
		header = c.BrowserHeaders()
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Page{
		Body:        body,
		URL:         resp.Request.URL,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
