package search

import "context"

// RerankResult is a single reranked document.
type RerankResult struct {
	// Index into the candidate slice handed to Rerank.
	Index int
	// Score is the cross-encoder relevance score, higher is better.
	Score float64
	// Document is the reranked text.
	Document string
}

// Reranker reorders candidate documents by relevance to the query.
type Reranker interface {
	// Rerank scores documents against the query and returns the top topK
	// by descending score. topK <= 0 means all documents.
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error)

	// Available reports whether the reranking backend is reachable.
	Available(ctx context.Context) bool

	Close() error
}

// NoOpReranker preserves candidate order. Used when reranking is
// disabled so the pipeline never branches on a nil interface.
type NoOpReranker struct{}

// NewNoOpReranker creates a pass-through reranker.
func NewNoOpReranker() *NoOpReranker {
	return &NoOpReranker{}
}

// Rerank returns the documents in their original order with rank-based
// descending scores.
func (r *NoOpReranker) Rerank(_ context.Context, _ string, documents []string, topK int) ([]RerankResult, error) {
	if topK <= 0 || topK > len(documents) {
		topK = len(documents)
	}
	results := make([]RerankResult, topK)
	for i := 0; i < topK; i++ {
		results[i] = RerankResult{
			Index:    i,
			Score:    1.0 / float64(i+1),
			Document: documents[i],
		}
	}
	return results, nil
}

// Available always reports true.
func (r *NoOpReranker) Available(_ context.Context) bool { return true }

// Close is a no-op.
func (r *NoOpReranker) Close() error { return nil }

var _ Reranker = (*NoOpReranker)(nil)
