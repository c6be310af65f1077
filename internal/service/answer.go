package service

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kitbuilder587/askweb/internal/domain"
	"github.com/kitbuilder587/askweb/internal/metrics"
	"github.com/kitbuilder587/askweb/internal/search"
	"github.com/kitbuilder587/askweb/internal/tracing"
)

type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) []search.SearchResult
}

// ContentExtractor: false - страницу получить не удалось.
type ContentExtractor interface {
	Extract(ctx context.Context, url string) (string, bool)
}

type AnswerService interface {
	Answer(ctx context.Context, query string) (*domain.AnswerResponse, error)
}

type AnswerConfig struct {
	MaxResults       int
	MinContentLength int
}

type AnswerServiceDeps struct {
	Optimizer   *QueryOptimizer
	Search      Searcher
	Extractor   ContentExtractor
	Summarizer  *PageSummarizer
	Synthesizer *AnswerSynthesizer
	Pacer       Pacer
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	Config      AnswerConfig
}

type answerService struct {
	optimizer   *QueryOptimizer
	search      Searcher
	extractor   ContentExtractor
	summarizer  *PageSummarizer
	synthesizer *AnswerSynthesizer
	pacer       Pacer
	logger      *zap.Logger
	metrics     *metrics.Metrics
	config      AnswerConfig
}

func NewAnswerService(deps AnswerServiceDeps) AnswerService {
	if deps.Config.MaxResults <= 0 {
		deps.Config.MaxResults = 5
	}
	if deps.Config.MinContentLength <= 0 {
		deps.Config.MinContentLength = 100
	}
	if deps.Pacer == nil {
		deps.Pacer = FixedDelay{Delay: 2 * time.Second}
	}

	return &answerService{
		optimizer:   deps.Optimizer,
		search:      deps.Search,
		extractor:   deps.Extractor,
		summarizer:  deps.Summarizer,
		synthesizer: deps.Synthesizer,
		pacer:       deps.Pacer,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		config:      deps.Config,
	}
}

// Answer прогоняет запрос через optimize -> search -> extract -> summarize -> synthesize.
// Ошибка возвращается только для невалидного запроса или отменённого контекста.
func (s *answerService) Answer(ctx context.Context, query string) (*domain.AnswerResponse, error) {
	startTime := time.Now()

	if s.metrics != nil {
		s.metrics.IncRequestsInFlight()
		defer s.metrics.DecRequestsInFlight()
	}

	req := domain.QueryRequest{Text: query}
	if err := req.Validate(); err != nil {
		s.recordRequest("validation_error", startTime)
		return nil, err
	}
	req.Sanitize()

	logger := s.logger.With(zap.String("request_id", uuid.NewString()))
	logger.Info("processing query", zap.Int("query_length", len(req.Text)))

	ctx, span := tracing.StartSpan(ctx, "answer", tracing.String("query", req.Text))
	defer span.End()

	queries := s.optimize(ctx, req.Text)
	logger.Info("queries optimized", zap.Strings("queries", queries))

	var summaries []domain.SourceSummary
	// один URL из разных поисковых запросов обрабатываем один раз
	seen := make(map[string]struct{})
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return s.aborted(span, err, startTime)
		}

		results := s.searchQuery(ctx, q)
		if len(results) == 0 {
			logger.Info("no search results", zap.String("search_query", q))
			continue
		}

		for _, r := range results {
			if _, dup := seen[r.URL]; dup {
				logger.Debug("skipping already processed url", zap.String("url", r.URL))
				continue
			}
			seen[r.URL] = struct{}{}

			if err := s.pacer.Wait(ctx); err != nil {
				return s.aborted(span, err, startTime)
			}

			summary, ok := s.processResult(ctx, logger, req.Text, r)
			if ok {
				summaries = append(summaries, summary)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return s.aborted(span, err, startTime)
	}

	resp := &domain.AnswerResponse{
		Query:   req.Text,
		Sources: []domain.SourceRef{},
	}

	if len(summaries) == 0 {
		resp.Answer = domain.NoInformationAnswer
	} else {
		resp.Answer = s.synthesize(ctx, req.Text, summaries)
		resp.Sources = domain.SourcesFrom(summaries)
	}

	elapsed := time.Since(startTime)
	resp.ProcessingTime = domain.FormatProcessingTime(elapsed)

	status := "success"
	if len(summaries) == 0 {
		status = "no_results"
	}
	s.recordRequest(status, startTime)
	span.SetAttributes(tracing.Int("sources", len(resp.Sources)))

	logger.Info("query processed",
		zap.Int("summaries", len(summaries)),
		zap.Int("sources", len(resp.Sources)),
		zap.Duration("duration", elapsed),
	)

	return resp, nil
}

func (s *answerService) optimize(ctx context.Context, query string) []string {
	ctx, span := tracing.StartSpan(ctx, "optimize")
	defer span.End()

	queries := s.optimizer.Optimize(ctx, query)
	span.SetAttributes(tracing.Int("queries", len(queries)))
	return queries
}

func (s *answerService) searchQuery(ctx context.Context, query string) []search.SearchResult {
	ctx, span := tracing.StartSpan(ctx, "search", tracing.String("search_query", query))
	defer span.End()

	results := s.search.Search(ctx, query, s.config.MaxResults)
	span.SetAttributes(tracing.Int("results", len(results)))
	return results
}

// processResult: скачать, отфильтровать короткое, суммаризировать, проверить сигнальные ответы.
func (s *answerService) processResult(ctx context.Context, logger *zap.Logger, query string, r search.SearchResult) (domain.SourceSummary, bool) {
	logger = logger.With(zap.String("url", r.URL))

	extractCtx, span := tracing.StartSpan(ctx, "extract", tracing.String("url", r.URL))
	content, ok := s.extractor.Extract(extractCtx, r.URL)
	span.End()

	if !ok {
		logger.Warn("content extraction failed")
		return domain.SourceSummary{}, false
	}
	if n := utf8.RuneCountInString(content); n < s.config.MinContentLength {
		logger.Info("content too short", zap.Int("length", n))
		return domain.SourceSummary{}, false
	}

	sumCtx, span := tracing.StartSpan(ctx, "summarize", tracing.String("url", r.URL))
	summary := s.summarizer.Summarize(sumCtx, query, content, r.URL)
	span.End()

	if !domain.IsAccepted(summary) {
		outcome := "irrelevant"
		if summary == domain.SummaryFailed {
			outcome = "error"
		}
		s.recordSummary(outcome)
		logger.Info("summary rejected", zap.String("outcome", outcome))
		return domain.SourceSummary{}, false
	}

	s.recordSummary("accepted")
	logger.Debug("summary accepted")
	return domain.SourceSummary{URL: r.URL, Title: r.Title, Summary: summary}, true
}

func (s *answerService) synthesize(ctx context.Context, query string, summaries []domain.SourceSummary) string {
	ctx, span := tracing.StartSpan(ctx, "synthesize", tracing.Int("summaries", len(summaries)))
	defer span.End()

	return s.synthesizer.Synthesize(ctx, query, summaries)
}

func (s *answerService) aborted(span trace.Span, err error, startTime time.Time) (*domain.AnswerResponse, error) {
	tracing.RecordError(span, err)
	s.recordRequest("cancelled", startTime)
	s.logger.Warn("query aborted", zap.Error(err))
	return nil, err
}

func (s *answerService) recordRequest(status string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordRequest("answer", status, time.Since(start))
	}
}

func (s *answerService) recordSummary(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordSummary(outcome)
	}
}
