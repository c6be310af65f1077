package search

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/askweb/internal/metrics"
)

// Orchestrator опрашивает провайдеров по приоритету и берёт первый непустой ответ.
type Orchestrator struct {
	providers  []Provider
	maxResults int
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func NewOrchestrator(providers []Provider, maxResults int, logger *zap.Logger, m *metrics.Metrics) *Orchestrator {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Orchestrator{
		providers:  providers,
		maxResults: maxResults,
		logger:     logger,
		metrics:    m,
	}
}

func (o *Orchestrator) Providers() []string {
	names := make([]string, len(o.providers))
	for i, p := range o.providers {
		names[i] = p.Name()
	}
	return names
}

// Search никогда не возвращает ошибку: если все провайдеры пусты или упали - пустой список.
func (o *Orchestrator) Search(ctx context.Context, query string, maxResults int) []SearchResult {
	if maxResults <= 0 || maxResults > o.maxResults {
		maxResults = o.maxResults
	}

	for _, p := range o.providers {
		if ctx.Err() != nil {
			return []SearchResult{}
		}

		start := time.Now()
		results, err := p.Search(ctx, SearchRequest{Query: query, MaxResults: maxResults})
		if err != nil {
			status := "error"
			if errors.Is(err, ErrNotConfigured) {
				status = "not_configured"
			}
			o.record(p.Name(), status, start)
			o.logger.Warn("search provider failed",
				zap.String("provider", p.Name()),
				zap.String("query", query),
				zap.Error(err),
			)
			continue
		}

		results = Clean(results, maxResults)
		if len(results) == 0 {
			o.record(p.Name(), "empty", start)
			o.logger.Info("search provider returned no results",
				zap.String("provider", p.Name()),
				zap.String("query", query),
			)
			continue
		}

		o.record(p.Name(), "success", start)
		o.logger.Info("search completed",
			zap.String("provider", p.Name()),
			zap.String("query", query),
			zap.Int("results", len(results)),
		)
		return results
	}

	return []SearchResult{}
}

func (o *Orchestrator) record(provider, status string, start time.Time) {
	if o.metrics != nil {
		o.metrics.RecordSearchRequest(provider, status, time.Since(start))
	}
}
