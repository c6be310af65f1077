// Package openai implements llm.Client on top of the official openai-go SDK.
// Any OpenAI-compatible endpoint works through BaseURL.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"

	"github.com/kitbuilder587/askweb/internal/llm"
)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	Params  llm.Params
}

type Client struct {
	client openai.Client
	model  string
	params llm.Params
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Params == (llm.Params{}) {
		cfg.Params = llm.DefaultParams()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		// ретраи делает llm.RetryClient
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}

	return &Client{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		params: cfg.Params,
		logger: logger,
	}
}

func (c *Client) CompleteWithSystem(ctx context.Context, system, prompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(prompt))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		MaxTokens:   openai.Int(int64(c.params.MaxTokens)),
		Temperature: openai.Float(c.params.Temperature),
		TopP:        openai.Float(c.params.TopP),
	})
	if err != nil {
		return "", c.mapError(err)
	}

	if len(resp.Choices) == 0 {
		return "", llm.ErrEmptyResponse
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", llm.ErrEmptyResponse
	}

	return content, nil
}

func (c *Client) mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return llm.ErrAuthFailed
		case http.StatusTooManyRequests:
			return llm.ErrRateLimit
		}
		c.logger.Error("openai request failed",
			zap.Int("status", apiErr.StatusCode),
			zap.Error(err),
		)
		return fmt.Errorf("%w: status %d", llm.ErrRequestFailed, apiErr.StatusCode)
	}
	return fmt.Errorf("%w: %v", llm.ErrRequestFailed, err)
}

var _ llm.Client = (*Client)(nil)
