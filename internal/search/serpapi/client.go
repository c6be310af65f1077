package serpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/askweb/internal/search"
)

const DefaultBaseURL = "https://serpapi.com/search"

type Config struct {
	APIKey  string
	BaseURL string
	Engine  string
	Timeout time.Duration
}

type Client struct {
	apiKey  string
	baseURL string
	engine  string
	client  *http.Client
	logger  *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Engine == "" {
		cfg.Engine = "google"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		engine:  cfg.Engine,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

func (c *Client) Name() string {
	return "serpapi"
}

type serpResponse struct {
	OrganicResults []organicResult `json:"organic_results"`
	Error          string          `json:"error"`
}

type organicResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

func (c *Client) Search(ctx context.Context, req search.SearchRequest) ([]search.SearchResult, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: SERPAPI_KEY is not set", search.ErrNotConfigured)
	}
	if req.MaxResults <= 0 {
		req.MaxResults = 5
	}

	params := url.Values{}
	params.Set("q", req.Query)
	params.Set("api_key", c.apiKey)
	params.Set("engine", c.engine)
	params.Set("num", strconv.Itoa(req.MaxResults))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", search.ErrSearchFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", search.ErrSearchFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, search.StatusError(resp.StatusCode)
	}

	var serpResp serpResponse
	if err := json.Unmarshal(body, &serpResp); err != nil {
		return nil, fmt.Errorf("%w: %v", search.ErrParse, err)
	}
	if serpResp.Error != "" && len(serpResp.OrganicResults) == 0 {
		// "Google hasn't returned any results" тоже приходит как error
		c.logger.Debug("serpapi returned error", zap.String("error", serpResp.Error))
		return []search.SearchResult{}, nil
	}

	results := make([]search.SearchResult, 0, len(serpResp.OrganicResults))
	for _, r := range serpResp.OrganicResults {
		if len(results) >= req.MaxResults {
			break
		}
		results = append(results, search.SearchResult{
			Title:   r.Title,
			URL:     r.Link,
			Snippet: r.Snippet,
		})
	}

	return results, nil
}

var _ search.Provider = (*Client)(nil)
