// Package index builds the search indexes from a chunked corpus file.
package index

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/manual-sih/sihmcp/internal/embed"
	errs "github.com/manual-sih/sihmcp/internal/errors"
	"github.com/manual-sih/sihmcp/internal/store"
)

// embedRetryConfig retries failed embedding batches with short backoff.
var embedRetryConfig = errs.RetryConfig{
	MaxRetries:   2,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     4 * time.Second,
	Multiplier:   2.0,
	Jitter:       true,
}

// DefaultStoreBatchSize is the chunk store and lexical index write batch size.
const DefaultStoreBatchSize = 500

// MaxLineSize bounds a single corpus line (1MB). Manual sections are a
// few KB; anything bigger is a corrupt line.
const MaxLineSize = 1 << 20

// BuildConfig configures an index build.
type BuildConfig struct {
	// CorpusPath is the JSONL corpus file, one chunk per line.
	CorpusPath string

	// VectorIndexPath is where the HNSW graph is persisted after the
	// build. Empty skips persistence (tests).
	VectorIndexPath string

	// EmbedBatchSize is the embedding batch size (default from embedder).
	EmbedBatchSize int

	// ProgressFunc is called after each embedding batch with
	// (embedded, total). Optional.
	ProgressFunc func(done, total int)
}

// BuildResult contains the outcome of an index build.
type BuildResult struct {
	// Chunks is the number of chunks stored.
	Chunks int

	// Parents is the number of parent section chunks among them.
	Parents int

	// Embedded is the number of chunks added to the vector index.
	Embedded int

	// Warnings counts skipped malformed lines.
	Warnings int

	// Duration is the total build time.
	Duration time.Duration
}

// BuilderDeps contains the injected dependencies for Builder.
type BuilderDeps struct {
	Chunks   store.ChunkStore
	Lexical  store.LexicalIndex
	Vector   store.VectorIndex
	Embedder embed.Embedder
}

// Builder loads a corpus file and populates the chunk store, the
// lexical index, and the vector index.
type Builder struct {
	chunks   store.ChunkStore
	lexical  store.LexicalIndex
	vector   store.VectorIndex
	embedder embed.Embedder
}

// NewBuilder creates a Builder with injected dependencies.
func NewBuilder(deps BuilderDeps) (*Builder, error) {
	if deps.Chunks == nil {
		return nil, fmt.Errorf("chunk store is required")
	}
	if deps.Lexical == nil {
		return nil, fmt.Errorf("lexical index is required")
	}
	if deps.Vector == nil {
		return nil, fmt.Errorf("vector index is required")
	}
	if deps.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	return &Builder{
		chunks:   deps.Chunks,
		lexical:  deps.Lexical,
		vector:   deps.Vector,
		embedder: deps.Embedder,
	}, nil
}

// stageTiming tracks duration for each build stage.
type stageTiming struct {
	load    time.Duration
	storage time.Duration
	lexical time.Duration
	embed   time.Duration
}

// Run executes the full build: load, store, lexical index, embed,
// vector index, persist.
//
// Parent section chunks go to the chunk store only. The retrieval
// indexes hold the child chunks; parents surface through parent
// resolution at search time.
func (b *Builder) Run(ctx context.Context, cfg BuildConfig) (*BuildResult, error) {
	startTime := time.Now()
	var timing stageTiming

	loadStart := time.Now()
	chunks, warnings, err := loadCorpus(cfg.CorpusPath)
	if err != nil {
		return nil, err
	}
	timing.load = time.Since(loadStart)

	if len(chunks) == 0 {
		return &BuildResult{Warnings: warnings, Duration: time.Since(startTime)}, nil
	}

	var children []*store.Chunk
	var parents int
	for _, c := range chunks {
		if c.IsParent {
			parents++
			continue
		}
		children = append(children, c)
	}

	storeStart := time.Now()
	for batch := range batches(chunks, DefaultStoreBatchSize) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := b.chunks.PutChunks(ctx, batch); err != nil {
			return nil, fmt.Errorf("failed to store chunks: %w", err)
		}
	}
	timing.storage = time.Since(storeStart)

	lexStart := time.Now()
	for batch := range batches(children, DefaultStoreBatchSize) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := b.lexical.Index(ctx, batch); err != nil {
			return nil, fmt.Errorf("failed to build lexical index: %w", err)
		}
	}
	timing.lexical = time.Since(lexStart)

	embedStart := time.Now()
	embedded, err := b.embedChunks(ctx, children, cfg)
	if err != nil {
		return nil, err
	}
	timing.embed = time.Since(embedStart)

	if cfg.VectorIndexPath != "" {
		if err := b.vector.Save(cfg.VectorIndexPath); err != nil {
			return nil, fmt.Errorf("failed to persist vector index: %w", err)
		}
	}

	result := &BuildResult{
		Chunks:   len(chunks),
		Parents:  parents,
		Embedded: embedded,
		Warnings: warnings,
		Duration: time.Since(startTime),
	}

	slog.Info("index_build_complete",
		slog.Int("chunks", result.Chunks),
		slog.Int("parents", result.Parents),
		slog.Int("embedded", result.Embedded),
		slog.Int("warnings", result.Warnings),
		slog.Duration("load", timing.load),
		slog.Duration("store", timing.storage),
		slog.Duration("lexical", timing.lexical),
		slog.Duration("embed", timing.embed),
		slog.Duration("total", result.Duration))

	return result, nil
}

// embedChunks embeds the chunks in batches and adds them to the vector
// index. The indexed text prefers the contextualized form.
func (b *Builder) embedChunks(ctx context.Context, chunks []*store.Chunk, cfg BuildConfig) (int, error) {
	batchSize := cfg.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = embed.DefaultBatchSize
	}

	var embedded int
	for batch := range batches(chunks, batchSize) {
		if err := ctx.Err(); err != nil {
			return embedded, err
		}

		texts := make([]string, len(batch))
		ids := make([]string, len(batch))
		metas := make([]store.ChunkMeta, len(batch))
		for i, c := range batch {
			texts[i] = c.IndexText()
			ids[i] = c.ID
			metas[i] = c.Meta()
		}

		// Transient embedder hiccups should not abort a long build.
		vectors, err := errs.RetryWithResult(ctx, embedRetryConfig, func() ([][]float32, error) {
			return b.embedder.EmbedBatch(ctx, texts)
		})
		if err != nil {
			return embedded, fmt.Errorf("failed to embed chunk batch: %w", err)
		}

		if err := b.vector.Add(ctx, ids, vectors, metas); err != nil {
			return embedded, fmt.Errorf("failed to add vectors: %w", err)
		}

		embedded += len(batch)
		if cfg.ProgressFunc != nil {
			cfg.ProgressFunc(embedded, len(chunks))
		}
	}
	return embedded, nil
}

// corpusRecord is one JSONL corpus line. Pagina and Ano tolerate both
// numeric and string encodings.
type corpusRecord struct {
	ID       string  `json:"id"`
	Texto    string  `json:"texto"`
	Contexto string  `json:"contexto"`
	Secao    string  `json:"secao"`
	Titulo   string  `json:"titulo"`
	Pagina   flexInt `json:"pagina"`
	Fonte    string  `json:"fonte"`
	Ano      flexInt `json:"ano"`
	Tipo     string  `json:"tipo"`
	ParentID string  `json:"parent_id"`
	IsParent bool    `json:"is_parent"`
}

// loadCorpus parses the JSONL corpus. Malformed lines and records
// without an id or text are skipped with a warning; duplicate ids keep
// the last occurrence (upsert semantics downstream).
func loadCorpus(path string) ([]*store.Chunk, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open corpus file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), MaxLineSize)

	var chunks []*store.Chunk
	var warnings int
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec corpusRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			warnings++
			slog.Warn("skipping malformed corpus line",
				slog.Int("line", lineNo),
				slog.String("error", err.Error()))
			continue
		}
		if rec.ID == "" || (rec.Texto == "" && rec.Contexto == "") {
			warnings++
			slog.Warn("skipping corpus record without id or text",
				slog.Int("line", lineNo))
			continue
		}

		chunks = append(chunks, &store.Chunk{
			ID:       rec.ID,
			Texto:    rec.Texto,
			Contexto: rec.Contexto,
			Secao:    rec.Secao,
			Titulo:   rec.Titulo,
			Pagina:   int(rec.Pagina),
			Fonte:    rec.Fonte,
			Ano:      int(rec.Ano),
			Tipo:     rec.Tipo,
			ParentID: rec.ParentID,
			IsParent: rec.IsParent,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, warnings, fmt.Errorf("failed to read corpus file: %w", err)
	}

	return chunks, warnings, nil
}

// flexInt decodes JSON numbers, numeric strings, and null to an int.
// Anything unparseable becomes zero, matching the corpus convention
// that page and year are zero when unknown.
type flexInt int

func (n *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*n = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		*n = flexInt(int(f))
		return nil
	}
	*n = 0
	return nil
}

// batches yields sub-slices of at most size elements.
func batches[T any](items []T, size int) func(func([]T) bool) {
	return func(yield func([]T) bool) {
		for start := 0; start < len(items); start += size {
			end := min(start+size, len(items))
			if !yield(items[start:end]) {
				return
			}
		}
	}
}
