// Package store provides the persistence layer for the retrieval engine:
// the bleve lexical index, the HNSW vector index, and the SQLite chunk store.
package store

import (
	"context"
	"fmt"

	errs "github.com/manual-sih/sihmcp/internal/errors"
)

// Known document types in the corpus.
const (
	TipoManual      = "manual"
	TipoPortaria    = "portaria"
	TipoAnexoSigtap = "anexo_sigtap"
)

// Chunk represents a retrievable unit of the corpus: a manual section,
// a regulation article, or a SIGTAP table fragment.
type Chunk struct {
	ID       string // Stable chunk ID (e.g., "manual_cap2_014")
	Texto    string // Display text returned to callers
	Contexto string // Contextualized text used at index time (optional)
	Secao    string // Section identifier within the source document
	Titulo   string // Section title
	Pagina   int    // Page number in the source document (0 when unknown)
	Fonte    string // Source document name
	Ano      int    // Publication year (0 when unknown)
	Tipo     string // Document type: manual, portaria, anexo_sigtap
	ParentID string // Parent section chunk ID (empty for top-level chunks)
	IsParent bool   // True for parent section chunks
}

// Meta returns the filterable metadata of the chunk.
func (c *Chunk) Meta() ChunkMeta {
	return ChunkMeta{Ano: c.Ano, Tipo: c.Tipo}
}

// IndexText returns the text to index: the contextualized form when
// present, the display text otherwise.
func (c *Chunk) IndexText() string {
	if c.Contexto != "" {
		return c.Contexto
	}
	return c.Texto
}

// ChunkMeta is the filterable subset of chunk metadata.
type ChunkMeta struct {
	Ano  int
	Tipo string
}

// LexicalResult represents a single BM25 search result.
type LexicalResult struct {
	ID           string
	Score        float64
	MatchedTerms []string
}

// VectorResult represents a single vector search result.
type VectorResult struct {
	ID       string
	Distance float32 // Cosine distance, lower is more similar
	Score    float32 // Similarity = 1 - distance
}

// LexicalIndex provides keyword search using BM25 scoring.
type LexicalIndex interface {
	// Index adds chunks to the index. Existing IDs are replaced.
	Index(ctx context.Context, chunks []*Chunk) error

	// Search returns chunks matching the query, scored by BM25.
	// A non-nil filter restricts results by chunk metadata.
	Search(ctx context.Context, query string, limit int, filter *Filter) ([]*LexicalResult, error)

	// Delete removes chunks from the index.
	Delete(ctx context.Context, ids []string) error

	// DocCount returns the number of indexed chunks.
	DocCount() (int, error)

	Close() error
}

// VectorIndex provides semantic search over embedding vectors.
type VectorIndex interface {
	// Add inserts vectors with their IDs and metadata. Existing IDs are replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32, metas []ChunkMeta) error

	// Search finds the k nearest neighbors to the query vector.
	// A non-nil filter restricts results by chunk metadata.
	Search(ctx context.Context, query []float32, k int, filter *Filter) ([]*VectorResult, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of stored vectors.
	Count() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// ChunkStore persists chunk content and the parent map.
type ChunkStore interface {
	// PutChunks upserts chunks.
	PutChunks(ctx context.Context, chunks []*Chunk) error

	// GetChunk returns a single chunk. Returns ErrNotFound for misses.
	GetChunk(ctx context.Context, id string) (*Chunk, error)

	// GetChunks returns chunks in request order, silently skipping missing IDs.
	GetChunks(ctx context.Context, ids []string) ([]*Chunk, error)

	// ParentMap returns the child ID to parent ID mapping.
	ParentMap(ctx context.Context) (map[string]string, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	Close() error
}

// LexicalConfig configures the lexical index.
type LexicalConfig struct {
	// StopWords filtered out during tokenization.
	StopWords []string

	// MinTokenLength is the minimum token length to index (default: 2).
	MinTokenLength int
}

// DefaultLexicalConfig returns the default lexical index configuration.
func DefaultLexicalConfig() LexicalConfig {
	return LexicalConfig{
		StopWords:      DefaultPortugueseStopWords,
		MinTokenLength: 2,
	}
}

// VectorConfig configures the vector index.
type VectorConfig struct {
	// Dimensions is the embedding dimension.
	Dimensions int

	// Metric is the distance metric: "cos" (cosine) or "l2" (euclidean).
	Metric string

	// M is HNSW max connections per layer.
	M int

	// EfSearch is HNSW query-time search width.
	EfSearch int
}

// DefaultVectorConfig returns sensible defaults for the vector index.
func DefaultVectorConfig(dimensions int) VectorConfig {
	return VectorConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   64,
	}
}

// ErrNotFound is returned when a chunk ID is absent from the chunk store.
var ErrNotFound = errs.New(errs.ErrCodeChunkNotFound, "chunk not found", nil)

// ErrFilterUnsupported is returned when a filter references a metadata key
// the index cannot evaluate. Callers should retry without the filter.
var ErrFilterUnsupported = errs.New(errs.ErrCodeFilterUnsupported, "filter references unsupported metadata key", nil)

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (rebuild the index with 'sihmcp index')", e.Expected, e.Got)
}
