// Package browser ищет через headless Chrome для поисковиков,
// которые не отдают выдачу обычному HTTP-клиенту.
package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/kitbuilder587/askweb/internal/search"
)

type Engine struct {
	Name string
	// URLTemplate с одним %s под экранированный запрос.
	URLTemplate    string
	ResultSelector string
}

var DuckDuckGo = Engine{
	Name:           "duckduckgo",
	URLTemplate:    "https://duckduckgo.com/?q=%s",
	ResultSelector: `article[data-testid="result"] a[data-testid="result-title-a"]`,
}

type Config struct {
	Engine   Engine
	ExecPath string
	ProxyURL string
	Timeout  time.Duration
	// SettleDelay - пауза после загрузки, пока скрипты дорисуют выдачу.
	SettleDelay time.Duration
	UserAgent   string
}

type Client struct {
	engine  Engine
	opts    []chromedp.ExecAllocatorOption
	timeout time.Duration
	settle  time.Duration
	logger  *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Engine.URLTemplate == "" {
		cfg.Engine = DuckDuckGo
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = 2 * time.Second
	}

	return &Client{
		engine:  cfg.Engine,
		opts:    allocatorOptions(cfg),
		timeout: cfg.Timeout,
		settle:  cfg.SettleDelay,
		logger:  logger,
	}
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	ua := cfg.UserAgent
	if ua == "" {
		ua = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Headless,
		chromedp.UserAgent(ua),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.ProxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(cfg.ProxyURL))
	}
	return opts
}

func (c *Client) Name() string {
	return "browser"
}

type rawLink struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

func (c *Client) Search(ctx context.Context, req search.SearchRequest) ([]search.SearchResult, error) {
	if req.MaxResults <= 0 {
		req.MaxResults = 5
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, c.opts...)
	defer allocCancel()
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()
	taskCtx, timeoutCancel := context.WithTimeout(taskCtx, c.timeout)
	defer timeoutCancel()

	searchURL := c.searchURL(req.Query)
	c.logger.Debug("browser navigating",
		zap.String("engine", c.engine.Name),
		zap.String("url", searchURL),
	)

	var links []rawLink
	err := chromedp.Run(taskCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-US,en;q=0.9"}),
		chromedp.Navigate(searchURL),
		chromedp.WaitVisible("body"),
		chromedp.Sleep(c.settle),
		chromedp.Evaluate(linksScript(c.engine.ResultSelector), &links),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: browser: %v", search.ErrSearchFailed, err)
	}

	return toResults(links, hostOf(searchURL), req.MaxResults), nil
}

func (c *Client) searchURL(query string) string {
	return fmt.Sprintf(c.engine.URLTemplate, url.QueryEscape(query))
}

// linksScript собирает ссылки по селектору выдачи, а если их нет - все a[href].
func linksScript(selector string) string {
	sel := strings.ReplaceAll(selector, "'", `\'`)
	return fmt.Sprintf(`(() => {
	const pick = (nodes) => Array.from(nodes).map(a => ({href: a.href, text: (a.textContent || '').trim()}));
	let links = pick(document.querySelectorAll('%s'));
	if (links.length === 0) {
		links = pick(document.querySelectorAll('a[href]'));
	}
	return links;
})()`, sel)
}

func toResults(links []rawLink, selfHost string, max int) []search.SearchResult {
	results := make([]search.SearchResult, 0, max)
	seen := make(map[string]bool)

	for _, l := range links {
		if len(results) >= max {
			break
		}
		href := strings.TrimSpace(l.Href)
		text := strings.TrimSpace(l.Text)
		if text == "" || !search.IsWebURL(href) || seen[href] {
			continue
		}
		if host := hostOf(href); host == selfHost || strings.HasSuffix(host, "."+selfHost) {
			continue
		}
		seen[href] = true
		results = append(results, search.SearchResult{Title: text, URL: href})
	}
	return results
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

var _ search.Provider = (*Client)(nil)
