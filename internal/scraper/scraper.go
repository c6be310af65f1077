// Package scraper запускает внешний скрипт-скрейпер как отдельный процесс.
// Один и тот же процессный интерфейс используется и для поиска, и для извлечения текста.
//
// Протокол:
//
//	<interpreter> <script> search <query> <maxResults>
//	  -> {"success":true,"results":[{"title","url","snippet"}],"count":n}
//	<interpreter> <script> extract <url>
//	  -> {"success":true,"content":"...","length":n}
//
// Ошибка - ненулевой код выхода или {"success":false,"error":"..."}.
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/askweb/internal/search"
)

var ErrProcess = errors.New("scraper process failed")

type Config struct {
	Interpreter string
	Script      string
	Timeout     time.Duration
	MaxChars    int
}

type Client struct {
	interpreter string
	script      string
	timeout     time.Duration
	maxChars    int
	logger      *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Interpreter == "" {
		cfg.Interpreter = "python3"
	}
	if cfg.Script == "" {
		cfg.Script = "scraper.py"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxChars == 0 {
		cfg.MaxChars = 3000
	}
	return &Client{
		interpreter: cfg.Interpreter,
		script:      cfg.Script,
		timeout:     cfg.Timeout,
		maxChars:    cfg.MaxChars,
		logger:      logger,
	}
}

func (c *Client) Name() string {
	return "scraper"
}

type response struct {
	Success bool                  `json:"success"`
	Error   string                `json:"error"`
	Results []search.SearchResult `json:"results"`
	Count   int                   `json:"count"`
	Content *string               `json:"content"`
	Length  int                   `json:"length"`
}

func (c *Client) Search(ctx context.Context, req search.SearchRequest) ([]search.SearchResult, error) {
	if req.MaxResults <= 0 {
		req.MaxResults = 5
	}

	resp, err := c.run(ctx, "search", req.Query, strconv.Itoa(req.MaxResults))
	if err != nil {
		return nil, err
	}

	results := resp.Results
	if len(results) > req.MaxResults {
		results = results[:req.MaxResults]
	}
	return results, nil
}

// Extract никогда не возвращает ошибку: любой сбой процесса - это отсутствие контента.
func (c *Client) Extract(ctx context.Context, url string) (string, bool) {
	resp, err := c.run(ctx, "extract", url)
	if err != nil {
		c.logger.Warn("scraper extract failed", zap.String("url", url), zap.Error(err))
		return "", false
	}
	if resp.Content == nil {
		return "", false
	}

	text := strings.TrimSpace(truncate(*resp.Content, c.maxChars))
	return text, true
}

func (c *Client) run(ctx context.Context, args ...string) (*response, error) {
	if _, err := exec.LookPath(c.interpreter); err != nil {
		return nil, fmt.Errorf("%w: interpreter %q: %v", search.ErrNotConfigured, c.interpreter, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.interpreter, append([]string{c.script}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// дочерние процессы скрипта могут держать pipe открытым после kill
	cmd.WaitDelay = time.Second

	runErr := cmd.Run()
	if stderr.Len() > 0 {
		c.logger.Debug("scraper stderr",
			zap.String("command", args[0]),
			zap.String("stderr", strings.TrimSpace(stderr.String())),
		)
	}

	var resp response
	parseErr := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &resp)

	if runErr != nil {
		if parseErr == nil && resp.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrProcess, resp.Error)
		}
		return nil, fmt.Errorf("%w: %v", ErrProcess, runErr)
	}
	if parseErr != nil {
		return nil, fmt.Errorf("%w: %v", search.ErrParse, parseErr)
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "unsuccessful response"
		}
		return nil, fmt.Errorf("%w: %s", ErrProcess, msg)
	}

	return &resp, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var _ search.Provider = (*Client)(nil)
