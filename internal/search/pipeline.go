// Package search implements the hybrid retrieval pipeline: metadata
// filter extraction, query decomposition, lexical and vector search
// fan-out, reciprocal rank fusion, cross-encoder reranking, and parent
// section resolution.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/manual-sih/sihmcp/internal/config"
	"github.com/manual-sih/sihmcp/internal/embed"
	errs "github.com/manual-sih/sihmcp/internal/errors"
	"github.com/manual-sih/sihmcp/internal/store"
)

// Result is a single pipeline result: the resolved chunk with its final
// pipeline score (fused or reranked, depending on the path taken).
type Result struct {
	Chunk *store.Chunk
	Score float64
}

// Options control a single Search call. Zero-value fields fall back to
// the pipeline configuration.
type Options struct {
	// Limit is the number of results to return (default from config).
	Limit int

	// Filter restricts results by chunk metadata. When nil, a filter is
	// extracted from the query text.
	Filter *store.Filter

	// Decompose enables multi-aspect query decomposition.
	Decompose bool

	// Rerank enables cross-encoder reranking. Short and purely numeric
	// queries skip it regardless.
	Rerank bool

	// Parents enables parent section resolution.
	Parents bool
}

// Deps are the back-ends the pipeline searches over.
type Deps struct {
	Lexical  store.LexicalIndex
	Vector   store.VectorIndex
	Chunks   store.ChunkStore
	Embedder embed.Embedder
	// Reranker may be nil when reranking is disabled.
	Reranker Reranker
}

// Pipeline orchestrates hybrid retrieval over the lexical index, the
// vector index, and the chunk store.
type Pipeline struct {
	deps       Deps
	cfg        config.SearchConfig
	fusion     *RRFFusion
	decomposer *Decomposer
	parentMap  map[string]string
}

// NewPipeline creates a pipeline and loads the parent map from the
// chunk store. An empty parent map disables parent resolution.
func NewPipeline(ctx context.Context, deps Deps, cfg config.SearchConfig) (*Pipeline, error) {
	if deps.Lexical == nil || deps.Vector == nil || deps.Chunks == nil || deps.Embedder == nil {
		return nil, errs.New(errs.ErrCodeInternal, "pipeline requires lexical, vector, chunk store and embedder back-ends", nil)
	}

	parentMap, err := deps.Chunks.ParentMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load parent map: %w", err)
	}

	p := &Pipeline{
		deps:       deps,
		cfg:        cfg,
		fusion:     NewRRFFusion(cfg.RRFConstant),
		decomposer: NewDecomposer(),
		parentMap:  parentMap,
	}

	slog.Debug("pipeline_created",
		slog.Int("rrf_constant", p.fusion.K()),
		slog.Int("parallelism", cfg.Parallelism),
		slog.Int("parent_map_size", len(parentMap)))

	return p, nil
}

// DefaultOptions returns per-call options matching the pipeline config.
func (p *Pipeline) DefaultOptions() Options {
	return Options{
		Limit:     p.cfg.DefaultLimit,
		Decompose: p.cfg.Decompose,
		Rerank:    p.deps.Reranker != nil,
		Parents:   p.cfg.Parents,
	}
}

// Search runs the full pipeline for one query.
//
// Stages: validate, extract or validate the metadata filter, decompose,
// fan out lexical and vector searches per sub-query, fuse with RRF,
// rerank (unless the query is short or numeric), resolve parents, and
// enrich from the chunk store.
func (p *Pipeline) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errs.New(errs.ErrCodeQueryEmpty, "search query is empty", nil).
			WithSuggestion("provide a non-empty query")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = p.cfg.DefaultLimit
	}
	if p.cfg.MaxLimit > 0 && limit > p.cfg.MaxLimit {
		limit = p.cfg.MaxLimit
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	filter := opts.Filter
	if filter == nil {
		filter = ExtractFilter(query)
	}
	if err := filter.Validate(); err != nil {
		// An unusable filter is never fatal. Retry the search unfiltered.
		slog.Warn("filter_unsupported_dropping",
			slog.String("query", truncateQuery(query, 50)),
			slog.String("error", err.Error()))
		filter = nil
	}

	subQueries := []string{query}
	if opts.Decompose {
		subQueries = p.decomposer.Decompose(query)
	}

	lexPool, vecPool, err := p.fanOut(ctx, subQueries, filter)
	if err != nil {
		return nil, err
	}

	fused := p.fusion.Fuse(lexPool, vecPool)
	if len(fused) == 0 {
		return []Result{}, nil
	}

	if opts.Rerank && p.deps.Reranker != nil && !p.isShortQuery(query) {
		fused = p.rerank(ctx, query, fused, limit)
	} else {
		fused = fused[:min(len(fused), 2*limit)]
	}

	if opts.Parents && len(p.parentMap) > 0 {
		fused = ResolveParents(fused, p.parentMap)
	}

	results, err := p.enrich(ctx, fused, limit)
	if err != nil {
		return nil, err
	}

	slog.Debug("search_complete",
		slog.String("query", truncateQuery(query, 50)),
		slog.Int("sub_queries", len(subQueries)),
		slog.Int("lexical_pool", len(lexPool)),
		slog.Int("vector_pool", len(vecPool)),
		slog.Int("results", len(results)),
		slog.Duration("elapsed", time.Since(start)))

	return results, nil
}

// fanOut runs one lexical and one vector search per sub-query, bounded
// by the configured parallelism. Pools keep sub-query order regardless
// of completion order. A branch failure degrades the search instead of
// failing it, unless every branch failed.
func (p *Pipeline) fanOut(ctx context.Context, subQueries []string, filter *store.Filter) ([]Candidate, []Candidate, error) {
	n := len(subQueries)
	lexLists := make([][]Candidate, n)
	vecLists := make([][]Candidate, n)
	branchErrs := make([]error, 2*n)

	parallelism := p.cfg.Parallelism
	if parallelism <= 0 {
		parallelism = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i, sq := range subQueries {
		g.Go(func() error {
			list, err := p.lexicalSearch(gctx, sq, filter)
			if err != nil {
				branchErrs[2*i] = err
				return nil
			}
			lexLists[i] = list
			return nil
		})
		g.Go(func() error {
			list, err := p.vectorSearch(gctx, sq, filter)
			if err != nil {
				branchErrs[2*i+1] = err
				return nil
			}
			vecLists[i] = list
			return nil
		})
	}

	// Branch errors never propagate through the group, so Wait only
	// returns context errors.
	if err := g.Wait(); err != nil {
		return nil, nil, p.searchError(ctx, err)
	}

	var failed int
	var firstErr error
	for _, err := range branchErrs {
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if failed == 2*n {
		return nil, nil, p.searchError(ctx, firstErr)
	}
	if failed > 0 {
		slog.Warn("search_branches_degraded",
			slog.Int("failed", failed),
			slog.Int("total", 2*n),
			slog.String("first_error", firstErr.Error()))
	}

	var lexPool, vecPool []Candidate
	for i := range subQueries {
		lexPool = append(lexPool, lexLists[i]...)
		vecPool = append(vecPool, vecLists[i]...)
	}
	return lexPool, vecPool, nil
}

// lexicalSearch runs one BM25 pass, retrying without the filter when
// the index cannot evaluate it.
func (p *Pipeline) lexicalSearch(ctx context.Context, query string, filter *store.Filter) ([]Candidate, error) {
	hits, err := p.deps.Lexical.Search(ctx, query, p.cfg.PerMethodLimit, filter)
	if err != nil && filter != nil && errors.Is(err, store.ErrFilterUnsupported) {
		slog.Warn("lexical_filter_retry", slog.String("filter", filter.String()))
		hits, err = p.deps.Lexical.Search(ctx, query, p.cfg.PerMethodLimit, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	out := make([]Candidate, len(hits))
	for i, hit := range hits {
		out[i] = Candidate{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// vectorSearch embeds the query and runs one k-NN pass, retrying
// without the filter when the index cannot evaluate it.
func (p *Pipeline) vectorSearch(ctx context.Context, query string, filter *store.Filter) ([]Candidate, error) {
	vec, err := p.deps.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := p.deps.Vector.Search(ctx, vec, p.cfg.PerMethodLimit, filter)
	if err != nil && filter != nil && errors.Is(err, store.ErrFilterUnsupported) {
		slog.Warn("vector_filter_retry", slog.String("filter", filter.String()))
		hits, err = p.deps.Vector.Search(ctx, vec, p.cfg.PerMethodLimit, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	out := make([]Candidate, len(hits))
	for i, hit := range hits {
		out[i] = Candidate{ID: hit.ID, Score: float64(hit.Score)}
	}
	return out, nil
}

// rerank runs the cross-encoder over the top fused candidates and
// returns up to 2*limit reranked candidates. Any failure degrades to
// the fused order instead of failing the search.
func (p *Pipeline) rerank(ctx context.Context, query string, fused []Candidate, limit int) []Candidate {
	degraded := fused[:min(len(fused), 2*limit)]

	poolSize := min(len(fused), max(p.cfg.PerMethodLimit, p.cfg.RerankMultiplier*limit))
	pool := fused[:poolSize]

	ids := make([]string, len(pool))
	for i, cand := range pool {
		ids[i] = cand.ID
	}
	chunks, err := p.deps.Chunks.GetChunks(ctx, ids)
	if err != nil {
		slog.Warn("rerank_fetch_failed", slog.String("error", err.Error()))
		return degraded
	}

	byID := make(map[string]*store.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	// Candidates whose text is gone from the store cannot be scored.
	retained := make([]Candidate, 0, len(pool))
	docs := make([]string, 0, len(pool))
	for _, cand := range pool {
		chunk, ok := byID[cand.ID]
		if !ok {
			continue
		}
		retained = append(retained, cand)
		docs = append(docs, chunk.Texto)
	}
	if len(docs) == 0 {
		return degraded
	}

	results, err := p.deps.Reranker.Rerank(ctx, query, docs, 2*limit)
	if err != nil {
		slog.Warn("rerank_failed_using_fused_order", slog.String("error", err.Error()))
		return degraded
	}

	out := make([]Candidate, 0, len(results))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(retained) {
			continue
		}
		out = append(out, Candidate{ID: retained[res.Index].ID, Score: res.Score})
	}
	if len(out) == 0 {
		return degraded
	}
	return out
}

// enrich resolves candidates to full chunks in candidate order,
// dropping IDs missing from the store, and truncates to limit.
func (p *Pipeline) enrich(ctx context.Context, candidates []Candidate, limit int) ([]Result, error) {
	ids := make([]string, len(candidates))
	for i, cand := range candidates {
		ids[i] = cand.ID
	}

	chunks, err := p.deps.Chunks.GetChunks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load result chunks: %w", err)
	}

	byID := make(map[string]*store.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	results := make([]Result, 0, min(len(candidates), limit))
	for _, cand := range candidates {
		chunk, ok := byID[cand.ID]
		if !ok {
			slog.Debug("result_chunk_missing", slog.String("id", cand.ID))
			continue
		}
		results = append(results, Result{Chunk: chunk, Score: cand.Score})
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// isShortQuery reports whether the query skips reranking: at or below
// the word threshold, or purely numeric (rejection codes, SIGTAP codes).
func (p *Pipeline) isShortQuery(query string) bool {
	if len(strings.Fields(query)) <= p.cfg.ShortQueryWords {
		return true
	}
	return isAllDigits(strings.TrimSpace(query))
}

// searchError classifies a failed search: deadline expiry gets the
// retryable timeout code, everything else the generic search failure.
func (p *Pipeline) searchError(ctx context.Context, cause error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(cause, context.DeadlineExceeded) {
		return errs.New(errs.ErrCodeSearchTimeout,
			fmt.Sprintf("search exceeded the %s deadline", p.cfg.Timeout), cause).
			WithSuggestion("retry, or raise search.timeout in sihmcp.yaml")
	}
	return errs.New(errs.ErrCodeSearchFailed, "all search branches failed", cause)
}

// isAllDigits reports whether s is non-empty and entirely decimal digits.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
