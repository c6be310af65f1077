package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/askweb/internal/metrics"
)

// CompletionError возвращается, когда все попытки исчерпаны.
type CompletionError struct {
	Attempts int
	Err      error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// SleepFunc ждёт d или отмены ctx.
type SleepFunc func(ctx context.Context, d time.Duration) error

func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Provider - метка для логов и метрик.
	Provider string
}

type RetryClient struct {
	next    Client
	cfg     RetryConfig
	sleep   SleepFunc
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewRetryClient(next Client, cfg RetryConfig, logger *zap.Logger, m *metrics.Metrics) *RetryClient {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay < 0 {
		cfg.BaseDelay = 0
	}
	if cfg.Provider == "" {
		cfg.Provider = "llm"
	}
	return &RetryClient{
		next:    next,
		cfg:     cfg,
		sleep:   Sleep,
		logger:  logger,
		metrics: m,
	}
}

// WithSleep подменяет ожидание между попытками (в тестах - no-op).
func (c *RetryClient) WithSleep(fn SleepFunc) *RetryClient {
	c.sleep = fn
	return c
}

// CompleteWithSystem делает до MaxAttempts попыток; между ними ждёт attempt*BaseDelay.
// После последней неудачной попытки не ждёт.
func (c *RetryClient) CompleteWithSystem(ctx context.Context, system, prompt string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		start := time.Now()
		text, err := c.next.CompleteWithSystem(ctx, system, prompt)
		if err == nil {
			c.record("success", start)
			return text, nil
		}

		lastErr = err
		c.record("error", start)
		c.logger.Warn("completion attempt failed",
			zap.String("provider", c.cfg.Provider),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.cfg.MaxAttempts),
			zap.Error(err),
		)

		if ctx.Err() != nil {
			return "", &CompletionError{Attempts: attempt, Err: ctx.Err()}
		}

		if attempt == c.cfg.MaxAttempts {
			break
		}

		if err := c.sleep(ctx, time.Duration(attempt)*c.cfg.BaseDelay); err != nil {
			return "", &CompletionError{Attempts: attempt, Err: err}
		}
	}

	return "", &CompletionError{Attempts: c.cfg.MaxAttempts, Err: lastErr}
}

func (c *RetryClient) record(status string, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordLLMRequest(c.cfg.Provider, status, time.Since(start))
	}
}

var _ Client = (*RetryClient)(nil)
