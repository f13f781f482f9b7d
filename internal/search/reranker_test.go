package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/manual-sih/sihmcp/internal/errors"
)

func TestNoOpReranker(t *testing.T) {
	r := NewNoOpReranker()
	defer r.Close()

	t.Run("preserves order", func(t *testing.T) {
		results, err := r.Rerank(context.Background(), "q", []string{"a", "b", "c"}, 0)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, 0, results[0].Index)
		assert.Equal(t, "a", results[0].Document)
		assert.Greater(t, results[0].Score, results[1].Score)
	})

	t.Run("honors topK", func(t *testing.T) {
		results, err := r.Rerank(context.Background(), "q", []string{"a", "b", "c"}, 2)
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("always available", func(t *testing.T) {
		assert.True(t, r.Available(context.Background()))
	})
}

// newFakeRerankService returns a test server that reverses document
// order and an atomic counter of /rerank calls.
func newFakeRerankService(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/rerank", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := rerankResponse{Model: req.Model, Query: req.Query}
		for i := len(req.Documents) - 1; i >= 0; i-- {
			resp.Results = append(resp.Results, struct {
				Index    int     `json:"index"`
				Score    float64 `json:"score"`
				Document string  `json:"document"`
			}{Index: i, Score: float64(i), Document: req.Documents[i]})
		}
		if req.TopK > 0 && len(resp.Results) > req.TopK {
			resp.Results = resp.Results[:req.TopK]
		}
		resp.Count = len(resp.Results)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &calls
}

func TestHTTPReranker(t *testing.T) {
	t.Run("rerank round trip", func(t *testing.T) {
		server, calls := newFakeRerankService(t)

		r, err := NewHTTPReranker(context.Background(), HTTPRerankerConfig{Endpoint: server.URL})
		require.NoError(t, err)
		defer r.Close()

		results, err := r.Rerank(context.Background(), "diarias de uti", []string{"doc0", "doc1", "doc2"}, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, 2, results[0].Index)
		assert.Equal(t, "doc2", results[0].Document)
		assert.Equal(t, int64(1), calls.Load())
	})

	t.Run("empty documents skip the service", func(t *testing.T) {
		server, calls := newFakeRerankService(t)

		r, err := NewHTTPReranker(context.Background(), HTTPRerankerConfig{Endpoint: server.URL})
		require.NoError(t, err)
		defer r.Close()

		results, err := r.Rerank(context.Background(), "q", nil, 5)
		require.NoError(t, err)
		assert.Empty(t, results)
		assert.Equal(t, int64(0), calls.Load())
	})

	t.Run("health check failure at creation", func(t *testing.T) {
		_, err := NewHTTPReranker(context.Background(), HTTPRerankerConfig{
			Endpoint: "http://127.0.0.1:1",
			Timeout:  time.Second,
		})
		require.Error(t, err)
		assert.Equal(t, errs.ErrCodeDependencyUnavailable, errs.GetCode(err))
	})

	t.Run("server error maps to dependency unavailable", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		mux.HandleFunc("/rerank", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusInternalServerError)
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		r, err := NewHTTPReranker(context.Background(), HTTPRerankerConfig{Endpoint: server.URL})
		require.NoError(t, err)
		defer r.Close()

		_, err = r.Rerank(context.Background(), "q", []string{"doc"}, 1)
		require.Error(t, err)
		assert.Equal(t, errs.ErrCodeDependencyUnavailable, errs.GetCode(err))
		assert.True(t, errs.IsRetryable(err))
	})

	t.Run("circuit opens after repeated failures", func(t *testing.T) {
		var calls atomic.Int64
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		mux.HandleFunc("/rerank", func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		r, err := NewHTTPReranker(context.Background(), HTTPRerankerConfig{Endpoint: server.URL})
		require.NoError(t, err)
		defer r.Close()

		for range 3 {
			_, err = r.Rerank(context.Background(), "q", []string{"doc"}, 1)
			require.Error(t, err)
		}
		require.Equal(t, int64(3), calls.Load())

		// Circuit is open now, so the service is not called again.
		_, err = r.Rerank(context.Background(), "q", []string{"doc"}, 1)
		require.Error(t, err)
		assert.Equal(t, errs.ErrCodeDependencyUnavailable, errs.GetCode(err))
		assert.ErrorIs(t, err, errs.ErrCircuitOpen)
		assert.Equal(t, int64(3), calls.Load())
	})

	t.Run("closed reranker refuses work", func(t *testing.T) {
		server, _ := newFakeRerankService(t)

		r, err := NewHTTPReranker(context.Background(), HTTPRerankerConfig{Endpoint: server.URL})
		require.NoError(t, err)
		require.NoError(t, r.Close())

		_, err = r.Rerank(context.Background(), "q", []string{"doc"}, 1)
		assert.Error(t, err)
		assert.False(t, r.Available(context.Background()))
	})

	t.Run("available reflects service health", func(t *testing.T) {
		server, _ := newFakeRerankService(t)

		r, err := NewHTTPReranker(context.Background(), HTTPRerankerConfig{Endpoint: server.URL})
		require.NoError(t, err)
		defer r.Close()

		assert.True(t, r.Available(context.Background()))
	})
}
