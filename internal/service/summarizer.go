package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kitbuilder587/askweb/internal/domain"
	"github.com/kitbuilder587/askweb/internal/llm"
)

const summarizerSystemPrompt = `You are an expert at extracting relevant information from web content.
Extract ONLY information that directly answers or relates to the user's query.
Be concise and factual. Include specific details like dates, numbers, and names when relevant.
If the content doesn't contain relevant information, say "No relevant information found."`

type PageSummarizer struct {
	llm    llm.Client
	logger *zap.Logger
}

func NewPageSummarizer(client llm.Client, logger *zap.Logger) *PageSummarizer {
	return &PageSummarizer{llm: client, logger: logger}
}

// Summarize при ошибке completion возвращает domain.SummaryFailed, а не ошибку.
func (s *PageSummarizer) Summarize(ctx context.Context, query, content, url string) string {
	prompt := fmt.Sprintf("Query: %q\n\nContent from %s:\n%s\n\nExtract only the relevant information that answers the query. Be concise:",
		query, url, content)

	summary, err := s.llm.CompleteWithSystem(ctx, summarizerSystemPrompt, prompt)
	if err != nil {
		s.logger.Warn("summarization failed", zap.String("url", url), zap.Error(err))
		return domain.SummaryFailed
	}
	return summary
}
