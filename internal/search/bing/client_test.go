package bing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kitbuilder587/askweb/internal/fetch"
	"github.com/kitbuilder587/askweb/internal/search"
)

const resultsPage = `<html><body><ol id="b_results">
<li class="b_algo"><h2><a href="https://en.wikipedia.org/wiki/Paris">Paris - Wikipedia</a></h2>
  <div class="b_caption"><p>Paris is the capital of France.</p></div></li>
<li class="b_ad"><h2><a href="https://ads.example">Ad</a></h2></li>
<li class="b_algo"><h2><a href="/search?q=related">Related searches</a></h2></li>
<li class="b_algo"><h2><a href="https://www.britannica.com/place/Paris">Paris | Britannica</a></h2>
  <div class="b_caption"><p>Capital of France.</p><p>Second paragraph.</p></div></li>
</ol></body></html>`

func TestClient_Search(t *testing.T) {
	var gotQuery, gotFormat string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotFormat = r.URL.Query().Get("format")
		fmt.Fprint(w, resultsPage)
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL + "/search"}, fetch.New(fetch.Config{}), zap.NewNop())
	results, err := c.Search(context.Background(), search.SearchRequest{Query: "capital of France", MaxResults: 5})
	require.NoError(t, err)

	assert.Equal(t, "capital of France", gotQuery)
	assert.Equal(t, "html", gotFormat)
	require.Len(t, results, 2)
	assert.Equal(t, search.SearchResult{
		Title:   "Paris - Wikipedia",
		URL:     "https://en.wikipedia.org/wiki/Paris",
		Snippet: "Paris is the capital of France.",
	}, results[0])
	assert.Equal(t, "Capital of France.", results[1].Snippet)
}

func TestClient_Search_MaxResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, resultsPage)
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL}, fetch.New(fetch.Config{}), zap.NewNop())
	results, err := c.Search(context.Background(), search.SearchRequest{Query: "q", MaxResults: 1})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestClient_Search_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL}, fetch.New(fetch.Config{}), zap.NewNop())
	_, err := c.Search(context.Background(), search.SearchRequest{Query: "q"})
	assert.ErrorIs(t, err, search.ErrSearchFailed)
}
