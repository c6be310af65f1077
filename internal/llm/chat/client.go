package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/askweb/internal/llm"
)

const (
	DefaultBaseURL = "https://integrate.api.nvidia.com/v1"
	DefaultModel   = "meta/llama-4-maverick-17b-128e-instruct"
)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	Params  llm.Params
}

// Client ходит в OpenAI-совместимый /chat/completions без SDK.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	params  llm.Params
	client  *http.Client
	logger  *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Params == (llm.Params{}) {
		cfg.Params = llm.DefaultParams()
	}

	return &Client{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		params:  cfg.Params,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

func (c *Client) CompleteWithSystem(ctx context.Context, system, prompt string) (string, error) {
	req := llm.NewChatRequest(c.model, system, prompt, c.params)

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	respBody, statusCode, err := llm.DoRequest(c.client, httpReq)
	if err != nil {
		return "", err
	}

	if statusCode < 200 || statusCode >= 300 {
		return "", llm.HandleHTTPError(statusCode, respBody, c.logger, "chat")
	}

	chatResp, err := llm.ParseChatResponse(respBody)
	if err != nil {
		return "", err
	}

	return llm.ExtractContent(chatResp)
}

var _ llm.Client = (*Client)(nil)
