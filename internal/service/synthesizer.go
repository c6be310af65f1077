package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kitbuilder587/askweb/internal/domain"
	"github.com/kitbuilder587/askweb/internal/llm"
)

const synthesizerSystemPrompt = `You are an expert at synthesizing information from multiple sources.
Create a concise, precise answer to the user's query based on the provided summaries.
Include specific facts, dates, and details.
If information is conflicting, mention it.
Do not include preamble or fluff. Get straight to the answer.`

type AnswerSynthesizer struct {
	llm    llm.Client
	logger *zap.Logger
}

func NewAnswerSynthesizer(client llm.Client, logger *zap.Logger) *AnswerSynthesizer {
	return &AnswerSynthesizer{llm: client, logger: logger}
}

// Synthesize вызывается только с непустым списком. При ошибке - domain.SynthesisFailed.
func (s *AnswerSynthesizer) Synthesize(ctx context.Context, query string, summaries []domain.SourceSummary) string {
	answer, err := s.llm.CompleteWithSystem(ctx, synthesizerSystemPrompt, buildSynthesisPrompt(query, summaries))
	if err != nil {
		s.logger.Warn("synthesis failed", zap.Int("summaries", len(summaries)), zap.Error(err))
		return domain.SynthesisFailed
	}
	return answer
}

func buildSynthesisPrompt(query string, summaries []domain.SourceSummary) string {
	parts := make([]string, len(summaries))
	for i, s := range summaries {
		parts[i] = fmt.Sprintf("Source %d: %s", i+1, s.Summary)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %q\n\n", query)
	sb.WriteString("Information from multiple sources:\n")
	sb.WriteString(strings.Join(parts, "\n\n"))
	sb.WriteString("\n\nProvide a concise, factual answer:")
	return sb.String()
}
