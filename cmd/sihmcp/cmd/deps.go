package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/manual-sih/sihmcp/internal/config"
	"github.com/manual-sih/sihmcp/internal/embed"
	"github.com/manual-sih/sihmcp/internal/search"
	"github.com/manual-sih/sihmcp/internal/store"
)

// searchStack bundles the opened back-ends behind a search pipeline.
type searchStack struct {
	cfg      *config.Config
	chunks   *store.SQLiteChunkStore
	lexical  *store.BleveLexicalIndex
	vector   *store.HNSWVectorIndex
	embedder embed.Embedder
	reranker search.Reranker
	pipeline *search.Pipeline
}

// stackOptions tweaks how the stack is opened.
type stackOptions struct {
	// loadVector loads a persisted HNSW graph when one exists. Index
	// builds start from an empty graph instead.
	loadVector bool

	// withReranker connects the reranking service when enabled in config.
	withReranker bool
}

// openSearchStack opens the chunk store, both indexes, the embedder and
// optionally the reranker, then wires them into a pipeline. The caller
// must Close the stack when done.
func openSearchStack(ctx context.Context, cfg *config.Config, opts stackOptions) (*searchStack, error) {
	s := &searchStack{cfg: cfg}

	chunks, err := store.NewSQLiteChunkStore(cfg.ChunkDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open chunk store: %w", err)
	}
	s.chunks = chunks

	lexical, err := store.NewBleveLexicalIndex(cfg.LexicalIndexPath(), store.DefaultLexicalConfig())
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to open lexical index: %w", err)
	}
	s.lexical = lexical

	embedder, err := embed.NewEmbedder(ctx, embed.Options{
		Provider:   cfg.Embeddings.Provider,
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
		BatchSize:  cfg.Embeddings.BatchSize,
		OllamaHost: cfg.Embeddings.OllamaHost,
		CacheSize:  cfg.Embeddings.CacheSize,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	s.embedder = embedder

	// A persisted graph fixes the dimensionality. Fall back to the
	// embedder's native dimension for fresh indexes.
	dims, err := store.ReadVectorIndexDimensions(cfg.VectorIndexPath())
	if err != nil {
		slog.Warn("failed to read vector index metadata",
			slog.String("error", err.Error()))
		dims = 0
	}
	if dims == 0 {
		dims = embedder.Dimensions()
	}

	vector, err := store.NewHNSWVectorIndex(store.DefaultVectorConfig(dims))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create vector index: %w", err)
	}
	s.vector = vector

	if opts.loadVector && fileExists(cfg.VectorIndexPath()) {
		if err := vector.Load(cfg.VectorIndexPath()); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to load vector index: %w", err)
		}
	}

	if opts.withReranker && cfg.Reranker.Enabled {
		reranker, err := search.NewHTTPReranker(ctx, search.HTTPRerankerConfig{
			Endpoint: cfg.Reranker.Endpoint,
			Model:    cfg.Reranker.Model,
			Timeout:  cfg.Reranker.Timeout,
		})
		if err != nil {
			slog.Warn("reranker unavailable, continuing without reranking",
				slog.String("error", err.Error()))
		} else {
			s.reranker = reranker
		}
	}

	pipeline, err := search.NewPipeline(ctx, search.Deps{
		Lexical:  lexical,
		Vector:   vector,
		Chunks:   chunks,
		Embedder: embedder,
		Reranker: s.reranker,
	}, cfg.Search)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.pipeline = pipeline

	return s, nil
}

// Close releases every opened back-end. Errors are logged, not returned.
func (s *searchStack) Close() {
	if s.reranker != nil {
		closeQuietly("reranker", s.reranker.Close)
	}
	if s.embedder != nil {
		closeQuietly("embedder", s.embedder.Close)
	}
	if s.vector != nil {
		closeQuietly("vector index", s.vector.Close)
	}
	if s.lexical != nil {
		closeQuietly("lexical index", s.lexical.Close)
	}
	if s.chunks != nil {
		closeQuietly("chunk store", s.chunks.Close)
	}
}

func closeQuietly(name string, fn func() error) {
	if err := fn(); err != nil {
		slog.Warn("failed to close "+name, slog.String("error", err.Error()))
	}
}

// loadConfig loads configuration from the working directory.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// requireIndex returns an error when no index has been built yet.
func requireIndex(cfg *config.Config) error {
	if !fileExists(cfg.ChunkDBPath()) {
		return fmt.Errorf("no index found at %s\nRun 'sihmcp index <corpus.jsonl>' to build one", cfg.ChunkDBPath())
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
