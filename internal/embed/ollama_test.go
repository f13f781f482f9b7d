package embed

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeOllama starts a fake Ollama API serving /api/tags and /api/embed
// with fixed-dimension embeddings.
func newFakeOllama(t *testing.T, dims int, models ...string) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var embedCalls atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		infos := make([]OllamaModelInfo, len(models))
		for i, name := range models {
			infos[i] = OllamaModelInfo{Name: name}
		}
		_ = json.NewEncoder(w).Encode(OllamaModelListResponse{Models: infos})
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		embedCalls.Add(1)

		var req OllamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		count := 1
		if arr, ok := req.Input.([]any); ok {
			count = len(arr)
		}

		embeddings := make([][]float64, count)
		for i := range embeddings {
			vec := make([]float64, dims)
			for j := range vec {
				vec[j] = float64(i*dims+j+1) * 0.01
			}
			embeddings[i] = vec
		}
		_ = json.NewEncoder(w).Encode(OllamaEmbedResponse{Model: req.Model, Embeddings: embeddings})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &embedCalls
}

func TestOllamaEmbedder_ModelDiscovery(t *testing.T) {
	ctx := context.Background()

	t.Run("finds primary model by base name", func(t *testing.T) {
		srv, _ := newFakeOllama(t, 8, "nomic-embed-text:latest")

		e, err := NewOllamaEmbedder(ctx, OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})
		require.NoError(t, err)
		defer func() { _ = e.Close() }()

		assert.Equal(t, "nomic-embed-text:latest", e.ModelName())
		assert.Equal(t, 8, e.Dimensions())
	})

	t.Run("falls back to secondary model", func(t *testing.T) {
		srv, _ := newFakeOllama(t, 8, "mxbai-embed-large:latest")

		e, err := NewOllamaEmbedder(ctx, OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})
		require.NoError(t, err)
		defer func() { _ = e.Close() }()

		assert.Equal(t, "mxbai-embed-large:latest", e.ModelName())
	})

	t.Run("errors when no embedding model installed", func(t *testing.T) {
		srv, _ := newFakeOllama(t, 8)

		_, err := NewOllamaEmbedder(ctx, OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})
		assert.Error(t, err)
	})

	t.Run("errors when server unreachable", func(t *testing.T) {
		_, err := NewOllamaEmbedder(ctx, OllamaConfig{Host: "http://127.0.0.1:1"})
		assert.Error(t, err)
	})
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	ctx := context.Background()
	srv, _ := newFakeOllama(t, 8, "nomic-embed-text")

	e, err := NewOllamaEmbedder(ctx, OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	t.Run("returns normalized vector", func(t *testing.T) {
		vec, err := e.Embed(ctx, "diaria de acompanhante")
		require.NoError(t, err)
		require.Len(t, vec, 8)

		var sum float64
		for _, v := range vec {
			sum += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
	})

	t.Run("empty text skips the API", func(t *testing.T) {
		vec, err := e.Embed(ctx, "  ")
		require.NoError(t, err)
		require.Len(t, vec, 8)
		for _, v := range vec {
			assert.Zero(t, v)
		}
	})

	t.Run("closed embedder errors", func(t *testing.T) {
		srv2, _ := newFakeOllama(t, 8, "nomic-embed-text")
		e2, err := NewOllamaEmbedder(ctx, OllamaConfig{Host: srv2.URL, Model: "nomic-embed-text"})
		require.NoError(t, err)
		require.NoError(t, e2.Close())

		_, err = e2.Embed(ctx, "texto")
		assert.Error(t, err)
		assert.False(t, e2.Available(ctx))
	})
}

func TestOllamaEmbedder_EmbedBatch(t *testing.T) {
	ctx := context.Background()
	srv, embedCalls := newFakeOllama(t, 8, "nomic-embed-text")

	e, err := NewOllamaEmbedder(ctx, OllamaConfig{
		Host:      srv.URL,
		Model:     "nomic-embed-text",
		BatchSize: 2,
	})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()
	embedCalls.Store(0)

	t.Run("splits into configured batch sizes", func(t *testing.T) {
		texts := []string{"aih", "apac", "bpa", "fpo", "cnes"}
		vecs, err := e.EmbedBatch(ctx, texts)
		require.NoError(t, err)
		require.Len(t, vecs, len(texts))
		for _, v := range vecs {
			assert.Len(t, v, 8)
		}
		// 5 texts at batch size 2 => 3 requests
		assert.Equal(t, int64(3), embedCalls.Load())
	})

	t.Run("blank entries become zero vectors without API calls", func(t *testing.T) {
		embedCalls.Store(0)

		vecs, err := e.EmbedBatch(ctx, []string{"", "  "})
		require.NoError(t, err)
		require.Len(t, vecs, 2)
		assert.Equal(t, int64(0), embedCalls.Load())
	})

	t.Run("empty input returns empty slice", func(t *testing.T) {
		vecs, err := e.EmbedBatch(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, vecs)
	})
}

func TestOllamaEmbedder_RetryOnTransientFailure(t *testing.T) {
	ctx := context.Background()

	var attempts atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(OllamaModelListResponse{
			Models: []OllamaModelInfo{{Name: "nomic-embed-text"}},
		})
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			http.Error(w, "model loading", http.StatusInternalServerError)
			return
		}
		var req OllamaEmbedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(OllamaEmbedResponse{
			Model:      req.Model,
			Embeddings: [][]float64{{0.1, 0.2, 0.3, 0.4}},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	e, err := NewOllamaEmbedder(ctx, OllamaConfig{
		Host:            srv.URL,
		Model:           "nomic-embed-text",
		Dimensions:      4,
		SkipHealthCheck: true,
		MaxRetries:      3,
	})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	vec, err := e.Embed(ctx, "laudo medico")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
	assert.Equal(t, int64(2), attempts.Load())
}

func TestOllamaEmbedder_ContextCancellation(t *testing.T) {
	srv, _ := newFakeOllama(t, 8, "nomic-embed-text")

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:            srv.URL,
		Model:           "nomic-embed-text",
		Dimensions:      8,
		SkipHealthCheck: true,
	})
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = e.Embed(ctx, "consulta cancelada")
	assert.ErrorIs(t, err, context.Canceled)
}
