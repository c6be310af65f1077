package llm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kitbuilder587/askweb/internal/llm"
	"github.com/kitbuilder587/askweb/internal/llm/mock"
	"github.com/kitbuilder587/askweb/internal/metrics"
)

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func TestRetryClient_SucceedsAfterFailures(t *testing.T) {
	stub := mock.New().WithReplies(
		mock.Reply{Err: llm.ErrRequestFailed},
		mock.Reply{Err: llm.ErrRateLimit},
		mock.Reply{Text: "ok"},
	)
	rec := &sleepRecorder{}
	c := llm.NewRetryClient(stub, llm.RetryConfig{MaxAttempts: 3, BaseDelay: time.Second}, zap.NewNop(), nil).
		WithSleep(rec.sleep)

	got, err := c.CompleteWithSystem(context.Background(), "sys", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, stub.Calls())
	// линейный backoff: 1*base, 2*base
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
}

func TestRetryClient_Exhausted(t *testing.T) {
	stub := mock.New().WithError(llm.ErrRequestFailed)
	rec := &sleepRecorder{}
	c := llm.NewRetryClient(stub, llm.RetryConfig{MaxAttempts: 3, BaseDelay: time.Second}, zap.NewNop(), nil).
		WithSleep(rec.sleep)

	_, err := c.CompleteWithSystem(context.Background(), "", "prompt")
	require.Error(t, err)

	var ce *llm.CompletionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 3, ce.Attempts)
	assert.ErrorIs(t, err, llm.ErrRequestFailed)
	assert.Equal(t, 3, stub.Calls())
	// после последней попытки не ждём
	assert.Len(t, rec.delays, 2)
}

func TestRetryClient_DefaultAttempts(t *testing.T) {
	stub := mock.New().WithError(llm.ErrEmptyResponse)
	c := llm.NewRetryClient(stub, llm.RetryConfig{}, zap.NewNop(), nil).
		WithSleep(func(ctx context.Context, d time.Duration) error { return nil })

	_, err := c.CompleteWithSystem(context.Background(), "", "prompt")
	require.Error(t, err)
	assert.Equal(t, 3, stub.Calls())
}

func TestRetryClient_ContextCancelled(t *testing.T) {
	stub := mock.New().WithError(llm.ErrRequestFailed)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := llm.NewRetryClient(stub, llm.RetryConfig{MaxAttempts: 5}, zap.NewNop(), nil)
	_, err := c.CompleteWithSystem(ctx, "", "prompt")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, stub.Calls())
}

func TestRetryClient_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	stub := mock.New().WithReplies(mock.Reply{Err: llm.ErrRequestFailed}, mock.Reply{Text: "ok"})

	c := llm.NewRetryClient(stub, llm.RetryConfig{MaxAttempts: 3, Provider: "chat"}, zap.NewNop(), m).
		WithSleep(func(ctx context.Context, d time.Duration) error { return nil })

	_, err := c.CompleteWithSystem(context.Background(), "", "prompt")
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("chat", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("chat", "success")))
}

func TestSleep(t *testing.T) {
	assert.NoError(t, llm.Sleep(context.Background(), 0))
	assert.NoError(t, llm.Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, llm.Sleep(ctx, time.Hour), context.Canceled)
}
