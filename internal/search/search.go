package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

var (
	ErrUnauthorized   = errors.New("invalid API key")
	ErrRateLimit      = errors.New("rate limit exceeded")
	ErrInvalidRequest = errors.New("invalid request parameters")
	ErrSearchFailed   = errors.New("search request failed")
	// ErrNotConfigured - у провайдера нет нужного ключа или бинаря.
	ErrNotConfigured = errors.New("search provider not configured")
	ErrParse         = errors.New("unparsable search response")
)

// Provider - одна поисковая система. Пустой список без ошибки - нормальный ответ.
type Provider interface {
	Name() string
	Search(ctx context.Context, req SearchRequest) ([]SearchResult, error)
}

type SearchRequest struct {
	Query      string
	MaxResults int
}

type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// IsWebURL - абсолютный http(s) адрес с хостом.
func IsWebURL(raw string) bool {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return false
	}
	u, err := url.Parse(raw)
	return err == nil && u.Host != ""
}

// Clean подрезает пробелы, выбрасывает результаты с неподходящим URL и обрезает до max.
// Пустой заголовок допустим: при выводе вместо него показывается URL.
func Clean(results []SearchResult, max int) []SearchResult {
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if max > 0 && len(out) >= max {
			break
		}
		r.Title = strings.TrimSpace(r.Title)
		r.URL = strings.TrimSpace(r.URL)
		r.Snippet = strings.TrimSpace(r.Snippet)
		if !IsWebURL(r.URL) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// StatusError переводит HTTP-статус JSON API провайдера в ошибку пакета.
func StatusError(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusTooManyRequests:
		return ErrRateLimit
	case http.StatusBadRequest:
		return ErrInvalidRequest
	default:
		return fmt.Errorf("%w: status %d", ErrSearchFailed, statusCode)
	}
}
