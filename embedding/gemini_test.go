package embedding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEmbedder(url string) *GeminiEmbedder {
	e := NewGeminiEmbedder("test-key")
	e.endpoint = url
	e.backoff = time.Millisecond
	return e
}

func TestGeminiEmbedderRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"embedding":{"values":[3,4]}}`))
	}))
	defer srv.Close()

	vec, err := newTestEmbedder(srv.URL).Embed(context.Background(), "policy text")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	require.Len(t, vec, 2)
	assert.InDelta(t, 0.6, vec[0], 1e-9)
	assert.InDelta(t, 0.8, vec[1], 1e-9)
}

func TestGeminiEmbedderDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestEmbedder(srv.URL).Embed(context.Background(), "policy text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, 1, calls, "client errors must fail without retrying")
}

func TestGeminiEmbedderGivesUpAfterRetries(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestEmbedder(srv.URL).Embed(context.Background(), "policy text")
	require.Error(t, err)
	assert.Equal(t, embedAttempts, calls)
}

func TestGeminiEmbedderRequiresAPIKey(t *testing.T) {
	e := NewGeminiEmbedder("")
	_, err := e.Embed(context.Background(), "policy text")
	assert.Error(t, err)
}
