package domain

import (
	"fmt"
	"strings"
	"time"
)

// Строки-сигналы, которые пайплайн распознаёт в тексте, а не через ошибки.
const (
	NoRelevantInformation = "No relevant information found."
	SummaryFailed         = "Error summarizing content."
	SynthesisFailed       = "Unable to synthesize final answer."
	NoInformationAnswer   = "No relevant information found. Please try rephrasing your query."

	noRelevantMarker = "No relevant information"
)

type SourceSummary struct {
	URL     string
	Title   string
	Summary string
}

// IsAccepted - саммари попадает в ответ только если это не сигнал ошибки
// и не "нет релевантной информации".
func IsAccepted(summary string) bool {
	s := strings.TrimSpace(summary)
	if s == "" || s == SummaryFailed {
		return false
	}
	return !strings.Contains(s, noRelevantMarker)
}

type SourceRef struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type AnswerResponse struct {
	Query          string      `json:"query"`
	Answer         string      `json:"answer"`
	Sources        []SourceRef `json:"sources"`
	ProcessingTime string      `json:"processingTime"`
}

// SourcesFrom оставляет первый встреченный URL, порядок сохраняется.
func SourcesFrom(summaries []SourceSummary) []SourceRef {
	refs := make([]SourceRef, 0, len(summaries))
	seen := make(map[string]bool, len(summaries))
	for _, s := range summaries {
		if seen[s.URL] {
			continue
		}
		seen[s.URL] = true
		refs = append(refs, SourceRef{Title: s.Title, URL: s.URL})
	}
	return refs
}

func FormatProcessingTime(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}
