package serpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kitbuilder587/askweb/internal/search"
)

func TestClient_Search(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "capital of France", q.Get("q"))
		assert.Equal(t, "secret", q.Get("api_key"))
		assert.Equal(t, "google", q.Get("engine"))
		assert.Equal(t, "2", q.Get("num"))

		json.NewEncoder(w).Encode(serpResponse{OrganicResults: []organicResult{
			{Title: "Paris", Link: "https://en.wikipedia.org/wiki/Paris", Snippet: "Capital of France"},
			{Title: "Britannica", Link: "https://www.britannica.com/place/Paris"},
			{Title: "Extra", Link: "https://extra.example"},
		}})
	}))
	defer server.Close()

	c := New(Config{APIKey: "secret", BaseURL: server.URL}, zap.NewNop())
	results, err := c.Search(context.Background(), search.SearchRequest{Query: "capital of France", MaxResults: 2})
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Paris", results[0].URL)
	assert.Equal(t, "Capital of France", results[0].Snippet)
	assert.Equal(t, "", results[1].Snippet)
}

func TestClient_Search_NotConfigured(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL}, zap.NewNop())
	_, err := c.Search(context.Background(), search.SearchRequest{Query: "q"})
	assert.ErrorIs(t, err, search.ErrNotConfigured)
	assert.False(t, called, "must fail before any network call")
}

func TestClient_Search_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"Invalid API key"}`, search.ErrUnauthorized},
		{"rate limit", http.StatusTooManyRequests, `{}`, search.ErrRateLimit},
		{"server", http.StatusInternalServerError, `{}`, search.ErrSearchFailed},
		{"malformed", http.StatusOK, `not json`, search.ErrParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := New(Config{APIKey: "k", BaseURL: server.URL}, zap.NewNop())
			_, err := c.Search(context.Background(), search.SearchRequest{Query: "q"})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_Search_NoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"Google hasn't returned any results for this query."}`))
	}))
	defer server.Close()

	c := New(Config{APIKey: "k", BaseURL: server.URL}, zap.NewNop())
	results, err := c.Search(context.Background(), search.SearchRequest{Query: "q"})
	require.NoError(t, err)
	assert.Empty(t, results)
}
