package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/askweb/internal/search"
)

type Config struct {
	APIKey      string
	BaseURL     string
	SearchDepth string
	Timeout     time.Duration
}

type Client struct {
	apiKey      string
	baseURL     string
	searchDepth string
	client      *http.Client
	logger      *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.tavily.com"
	}
	if cfg.SearchDepth == "" {
		cfg.SearchDepth = "basic"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     cfg.BaseURL,
		searchDepth: cfg.SearchDepth,
		client:      &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
	}
}

func (c *Client) Name() string {
	return "tavily"
}

type tavilyRequest struct {
	APIKey            string `json:"api_key"`
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results,omitempty"`
	SearchDepth       string `json:"search_depth,omitempty"`
	IncludeAnswer     bool   `json:"include_answer"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type tavilyResponse struct {
	Query        string         `json:"query"`
	Results      []tavilyResult `json:"results"`
	ResponseTime float64        `json:"response_time"`
}

type tavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Search делает один запрос; повторы здесь не нужны - при ошибке
// оркестратор просто переходит к следующему провайдеру.
func (c *Client) Search(ctx context.Context, req search.SearchRequest) ([]search.SearchResult, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: TAVILY_API_KEY is not set", search.ErrNotConfigured)
	}
	if req.MaxResults <= 0 {
		req.MaxResults = 5
	}

	body, err := json.Marshal(tavilyRequest{
		APIKey:      c.apiKey,
		Query:       req.Query,
		MaxResults:  req.MaxResults,
		SearchDepth: c.searchDepth,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", search.ErrSearchFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", search.ErrSearchFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, search.StatusError(resp.StatusCode)
	}

	var tavilyResp tavilyResponse
	if err := json.Unmarshal(respBody, &tavilyResp); err != nil {
		return nil, fmt.Errorf("%w: %v", search.ErrParse, err)
	}

	c.logger.Debug("tavily search done",
		zap.String("query", req.Query),
		zap.Int("results", len(tavilyResp.Results)),
		zap.Float64("response_time", tavilyResp.ResponseTime),
	)

	results := make([]search.SearchResult, 0, len(tavilyResp.Results))
	for _, r := range tavilyResp.Results {
		results = append(results, search.SearchResult{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
		})
	}
	return results, nil
}

var _ search.Provider = (*Client)(nil)
