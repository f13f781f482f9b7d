package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
)

const (
	// PortugueseTokenizerName is the name of the registered corpus tokenizer.
	PortugueseTokenizerName = "sih_portuguese_tokenizer"

	// PortugueseStopFilterName is the name of the registered stopword filter.
	PortugueseStopFilterName = "sih_portuguese_stop"

	// PortugueseAnalyzerName is the name of the registered analyzer.
	PortugueseAnalyzerName = "sih_portuguese_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(PortugueseTokenizerName, portugueseTokenizerConstructor)
	_ = registry.RegisterTokenFilter(PortugueseStopFilterName, portugueseStopFilterConstructor)
}

// BleveLexicalIndex wraps bleve v2 for BM25 keyword search over the corpus.
type BleveLexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	config LexicalConfig
	closed bool
}

// bleveChunkDoc is the document structure for bleve indexing. Tipo uses the
// keyword analyzer and ano a numeric field so both serve as exact filters.
type bleveChunkDoc struct {
	Texto string  `json:"texto"`
	Ano   float64 `json:"ano"`
	Tipo  string  `json:"tipo"`
}

// validateIndexIntegrity checks if a bleve index is valid before opening.
// Returns nil if valid, an error describing the corruption if not.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Index doesn't exist, will be created
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}

	return nil
}

// isCorruptionError checks if an error indicates bleve index corruption.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		strings.Contains(errStr, "no such file or directory") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// NewBleveLexicalIndex creates or opens a lexical index.
// If path is empty, creates an in-memory index.
// Corrupted on-disk indexes are cleared and recreated; the caller must reindex.
func NewBleveLexicalIndex(path string, config LexicalConfig) (*BleveLexicalIndex, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		// In-memory index for testing
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}

		if validErr := validateIndexIntegrity(path); validErr != nil {
			slog.Warn("lexical_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("lexical index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
			}
			slog.Info("lexical_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, please reindex"))
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isCorruptionError(err) {
			slog.Warn("lexical_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))

			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("lexical index corrupted, cannot clear: %w (original: %v)", removeErr, err)
			}
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &BleveLexicalIndex{
		index:  idx,
		path:   path,
		config: config,
	}, nil
}

// createIndexMapping creates the bleve index mapping with the Portuguese
// analyzer on texto and exact-match fields for tipo and ano.
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(PortugueseAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": PortugueseTokenizerName,
		"token_filters": []string{
			PortugueseStopFilterName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	docMapping := bleve.NewDocumentMapping()

	textoField := bleve.NewTextFieldMapping()
	textoField.Analyzer = PortugueseAnalyzerName
	docMapping.AddFieldMappingsAt("texto", textoField)

	tipoField := bleve.NewTextFieldMapping()
	tipoField.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("tipo", tipoField)

	anoField := bleve.NewNumericFieldMapping()
	docMapping.AddFieldMappingsAt("ano", anoField)

	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = PortugueseAnalyzerName

	return indexMapping, nil
}

// Index adds chunks to the index. Existing IDs are replaced.
func (b *BleveLexicalIndex) Index(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, chunk := range chunks {
		doc := bleveChunkDoc{
			Texto: chunk.IndexText(),
			Ano:   float64(chunk.Ano),
			Tipo:  chunk.Tipo,
		}
		if err := batch.Index(chunk.ID, doc); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", chunk.ID, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}

	return nil
}

// Search returns chunks matching the query, scored by BM25.
func (b *BleveLexicalIndex) Search(ctx context.Context, queryStr string, limit int, filter *Filter) ([]*LexicalResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}

	if strings.TrimSpace(queryStr) == "" {
		return []*LexicalResult{}, nil
	}

	if err := filter.Validate(); err != nil {
		return nil, err
	}

	matchQuery := bleve.NewMatchQuery(queryStr)
	matchQuery.SetField("texto")

	finalQuery, err := applyFilterQuery(matchQuery, filter)
	if err != nil {
		return nil, err
	}

	searchRequest := bleve.NewSearchRequest(finalQuery)
	searchRequest.Size = limit
	searchRequest.IncludeLocations = true // For matched terms

	result, err := b.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]*LexicalResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, &LexicalResult{
			ID:           hit.ID,
			Score:        hit.Score,
			MatchedTerms: extractMatchedTerms(hit),
		})
	}

	return results, nil
}

// applyFilterQuery wraps the text query in a conjunction with metadata
// predicates when a filter is set.
func applyFilterQuery(textQuery query.Query, filter *Filter) (query.Query, error) {
	if filter.Empty() {
		return textQuery, nil
	}

	queries := []query.Query{textQuery}
	for _, cond := range filter.Conditions() {
		switch cond.Key {
		case FilterKeyTipo:
			tipo, ok := cond.Value.(string)
			if !ok {
				return nil, unsupportedCondition(cond)
			}
			tq := bleve.NewTermQuery(tipo)
			tq.SetField("tipo")
			queries = append(queries, tq)
		case FilterKeyAno:
			year, ok := cond.Value.(int)
			if !ok {
				return nil, unsupportedCondition(cond)
			}
			val := float64(year)
			incl := true
			nq := bleve.NewNumericRangeInclusiveQuery(&val, &val, &incl, &incl)
			nq.SetField("ano")
			queries = append(queries, nq)
		default:
			return nil, unsupportedCondition(cond)
		}
	}

	return bleve.NewConjunctionQuery(queries...), nil
}

// Delete removes chunks from the index.
func (b *BleveLexicalIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	return nil
}

// DocCount returns the number of indexed chunks.
func (b *BleveLexicalIndex) DocCount() (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, fmt.Errorf("index is closed")
	}

	count, err := b.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return int(count), nil
}

// Close closes the index.
func (b *BleveLexicalIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

// extractMatchedTerms extracts matched terms from a search hit.
func extractMatchedTerms(hit *search.DocumentMatch) []string {
	terms := make(map[string]struct{})
	for field, locations := range hit.Locations {
		if field == "texto" {
			for term := range locations {
				terms[term] = struct{}{}
			}
		}
	}

	result := make([]string, 0, len(terms))
	for term := range terms {
		result = append(result, term)
	}
	return result
}

// Verify interface implementation
var _ LexicalIndex = (*BleveLexicalIndex)(nil)

// portugueseTokenizerConstructor creates the corpus tokenizer for bleve.
func portugueseTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &blevePortugueseTokenizer{}, nil
}

// blevePortugueseTokenizer implements analysis.Tokenizer with accent-folded
// lowercase tokens. Stopword removal happens in the filter stage.
type blevePortugueseTokenizer struct{}

// Tokenize implements analysis.Tokenizer.
func (t *blevePortugueseTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := TokenizeWithStopWords(text, nil)

	result := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0

	for _, token := range tokens {
		// Approximate token position in the original text; accent folding
		// can shift offsets, which only affects highlight locations.
		start := strings.Index(NormalizeText(text[offset:]), token)
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(token)

		result = append(result, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}

	return result
}

// portugueseStopFilterConstructor creates the stopword filter for bleve.
func portugueseStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &blevePortugueseStopFilter{
		stopWords: BuildStopWordMap(DefaultPortugueseStopWords),
	}, nil
}

// blevePortugueseStopFilter implements analysis.TokenFilter.
type blevePortugueseStopFilter struct {
	stopWords map[string]struct{}
}

// Filter implements analysis.TokenFilter.
func (f *blevePortugueseStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		if _, isStop := f.stopWords[string(token.Term)]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
