package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Get(t *testing.T) {
	var gotUA, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html>ok</html>")
	}))
	defer server.Close()

	c := New(Config{Timeout: 5 * time.Second})
	page, err := c.Get(context.Background(), server.URL, nil)
	require.NoError(t, err)

	assert.Equal(t, "<html>ok</html>", string(page.Body))
	assert.Equal(t, "text/html", page.ContentType)
	assert.Contains(t, DefaultUserAgents, gotUA)
	assert.Contains(t, gotAccept, "text/html")
}

func TestClient_Get_Status(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := New(Config{})
	_, err := c.Get(context.Background(), server.URL, nil)
	assert.ErrorIs(t, err, ErrStatus)
}

func TestClient_Get_Redirects(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n int
		fmt.Sscanf(r.URL.Query().Get("n"), "%d", &n)
		if n > 0 {
			http.Redirect(w, r, fmt.Sprintf("%s/?n=%d", server.URL, n-1), http.StatusFound)
			return
		}
		fmt.Fprint(w, "final")
	}))
	defer server.Close()

	c := New(Config{MaxRedirects: 3})

	page, err := c.Get(context.Background(), server.URL+"/?n=3", nil)
	require.NoError(t, err)
	assert.Equal(t, "final", string(page.Body))
	assert.Equal(t, "0", page.URL.Query().Get("n"))

	_, err = c.Get(context.Background(), server.URL+"/?n=4", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooManyRedirects))
}

func TestClient_Get_BodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "0123456789")
	}))
	defer server.Close()

	c := New(Config{MaxBodyBytes: 4})
	page, err := c.Get(context.Background(), server.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(page.Body))
}

func TestClient_Get_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	c := New(Config{Timeout: 20 * time.Millisecond})
	_, err := c.Get(context.Background(), server.URL, nil)
	assert.Error(t, err)
}

func TestClient_Get_CustomHeader(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	c := New(Config{UserAgents: []string{"ua-test"}})
	h := http.Header{}
	h.Set("Accept", "application/json")
	_, err := c.Get(context.Background(), server.URL, h)
	require.NoError(t, err)
	assert.Equal(t, "ua-test", gotUA)
}
