package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/kitbuilder587/askweb/internal/llm"
	"github.com/kitbuilder587/askweb/internal/metrics"
)

const optimizerSystemPrompt = `You are a search query optimizer. Your task is to convert user questions into optimized search engine queries.
Rules:
1. Output ONLY a JSON array of strings, nothing else
2. Generate 1-3 short, focused search queries
3. Use the same language as the input
4. Remove question words, keep only keywords
5. Format: ["query1", "query2", "query3"]

Examples:
Input: "When is the release date of Sora 2?"
Output: ["Sora 2 release date", "OpenAI Sora 2 launch"]

Input: "What is the capital of France?"
Output: ["France capital"]`

const queriesSchema = `{
	"type": "array",
	"minItems": 1,
	"items": {"type": "string", "minLength": 1}
}`

const maxOptimizedQueries = 3

var (
	queriesValidator = mustSchema(queriesSchema)
	arrayPattern     = regexp.MustCompile(`(?s)\[.*\]`)
)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("invalid schema: %v", err))
	}
	return schema
}

type OptimizerConfig struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

// QueryOptimizer переписывает вопрос пользователя в 1-3 поисковых запроса.
type QueryOptimizer struct {
	llm     llm.Client
	cfg     OptimizerConfig
	sleep   llm.SleepFunc
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewQueryOptimizer(client llm.Client, cfg OptimizerConfig, logger *zap.Logger, m *metrics.Metrics) *QueryOptimizer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &QueryOptimizer{
		llm:     client,
		cfg:     cfg,
		sleep:   llm.Sleep,
		logger:  logger,
		metrics: m,
	}
}

func (o *QueryOptimizer) WithSleep(fn llm.SleepFunc) *QueryOptimizer {
	o.sleep = fn
	return o
}

// Optimize не возвращает ошибку: в худшем случае это []string{userQuery}.
func (o *QueryOptimizer) Optimize(ctx context.Context, userQuery string) []string {
	prompt := fmt.Sprintf("Convert this to search queries: %q\n\nOutput only the JSON array:", userQuery)

	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		raw, err := o.llm.CompleteWithSystem(ctx, optimizerSystemPrompt, prompt)
		if err != nil {
			o.logger.Warn("query optimization attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if queries, ok := parseQueries(raw); ok {
			o.logger.Debug("queries optimized",
				zap.Int("attempt", attempt),
				zap.Strings("queries", queries),
			)
			return queries
		}

		o.logger.Warn("unparsable optimizer output",
			zap.Int("attempt", attempt),
			zap.String("output", raw),
		)
		if attempt < o.cfg.MaxAttempts {
			if err := o.sleep(ctx, o.cfg.RetryDelay); err != nil {
				break
			}
		}
	}

	if o.metrics != nil {
		o.metrics.RecordOptimizerFallback()
	}
	o.logger.Info("using original query as search query")
	return []string{userQuery}
}

// parseQueries: сначала весь ответ как JSON, потом первая [...] подстрока.
func parseQueries(raw string) ([]string, bool) {
	raw = strings.TrimSpace(raw)
	if queries, ok := decodeQueries(raw); ok {
		return queries, true
	}
	if match := arrayPattern.FindString(raw); match != "" {
		return decodeQueries(match)
	}
	return nil, false
}

func decodeQueries(candidate string) ([]string, bool) {
	result, err := queriesValidator.Validate(gojsonschema.NewStringLoader(candidate))
	if err != nil || !result.Valid() {
		return nil, false
	}

	var queries []string
	if err := json.Unmarshal([]byte(candidate), &queries); err != nil {
		return nil, false
	}

	out := make([]string, 0, maxOptimizedQueries)
	for _, q := range queries {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
		if len(out) == maxOptimizedQueries {
			break
		}
	}
	return out, len(out) > 0
}
