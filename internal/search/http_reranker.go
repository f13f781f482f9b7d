package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	errs "github.com/manual-sih/sihmcp/internal/errors"
)

// Cross-encoder reranking service defaults.
const (
	DefaultRerankerEndpoint = "http://localhost:9659"
	DefaultRerankerModel    = "bge-reranker-v2-m3"
	DefaultRerankerTimeout  = 30 * time.Second
)

// HTTPRerankerConfig holds configuration for the HTTP reranker client.
type HTTPRerankerConfig struct {
	// Endpoint is the reranking service URL (default: http://localhost:9659)
	Endpoint string

	// Model is the cross-encoder model alias (default: bge-reranker-v2-m3)
	Model string

	// Timeout is the per-request timeout (default: 30s)
	Timeout time.Duration

	// SkipHealthCheck skips the health check during creation (for testing)
	SkipHealthCheck bool
}

// DefaultHTTPRerankerConfig returns default reranker configuration.
func DefaultHTTPRerankerConfig() HTTPRerankerConfig {
	return HTTPRerankerConfig{
		Endpoint: DefaultRerankerEndpoint,
		Model:    DefaultRerankerModel,
		Timeout:  DefaultRerankerTimeout,
	}
}

// HTTPReranker scores query/document pairs against a cross-encoder
// serving a /rerank endpoint. Rerank errors carry the dependency
// unavailable or network timeout codes so the pipeline can degrade to
// fused order instead of failing the search. A circuit breaker skips
// the service entirely after repeated failures.
type HTTPReranker struct {
	client   *http.Client
	config   HTTPRerankerConfig
	endpoint string
	breaker  *errs.CircuitBreaker
	mu       sync.RWMutex
	closed   bool
}

var _ Reranker = (*HTTPReranker)(nil)

// NewHTTPReranker creates a reranker client and verifies the service is
// reachable unless the config skips the health check.
func NewHTTPReranker(ctx context.Context, cfg HTTPRerankerConfig) (*HTTPReranker, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultRerankerEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultRerankerModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultRerankerTimeout
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     30 * time.Second,
		},
	}

	r := &HTTPReranker{
		client:   client,
		config:   cfg,
		endpoint: cfg.Endpoint,
		breaker: errs.NewCircuitBreaker("reranker",
			errs.WithMaxFailures(3),
			errs.WithResetTimeout(30*time.Second)),
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := r.healthCheck(checkCtx); err != nil {
			return nil, errs.New(errs.ErrCodeDependencyUnavailable,
				"reranker health check failed", err).
				WithDetail("endpoint", cfg.Endpoint).
				WithSuggestion("start the reranking service or disable reranking in sihmcp.yaml")
		}
	}

	slog.Debug("http_reranker_created",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("model", cfg.Model),
		slog.Duration("timeout", cfg.Timeout))

	return r, nil
}

// healthCheck verifies the reranking service responds on /health.
func (r *HTTPReranker) healthCheck(ctx context.Context) error {
	url := r.endpoint + "/health"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to reranking service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("reranking service unhealthy (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}

// rerankRequest is the JSON request to the /rerank endpoint.
type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
	TopK      int      `json:"top_k,omitempty"`
}

// rerankResponse is the JSON response from the /rerank endpoint.
type rerankResponse struct {
	Results []struct {
		Index    int     `json:"index"`
		Score    float64 `json:"score"`
		Document string  `json:"document"`
	} `json:"results"`
	Model            string  `json:"model"`
	Query            string  `json:"query"`
	Count            int     `json:"count"`
	ProcessingTimeMs float64 `json:"processing_time_ms"`
}

// Rerank scores and reorders documents by relevance to the query.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	start := time.Now()

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, fmt.Errorf("reranker is closed")
	}
	r.mu.RUnlock()

	if len(documents) == 0 {
		return []RerankResult{}, nil
	}

	if !r.breaker.Allow() {
		return nil, r.breaker.OpenError()
	}

	reqBody := rerankRequest{
		Query:     query,
		Documents: documents,
		Model:     r.config.Model,
	}
	if topK > 0 {
		reqBody.TopK = topK
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	url := r.endpoint + "/rerank"
	timeoutCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.breaker.RecordFailure()
		if timeoutCtx.Err() == context.DeadlineExceeded {
			return nil, errs.New(errs.ErrCodeNetworkTimeout, "rerank request timed out", err)
		}
		return nil, errs.New(errs.ErrCodeDependencyUnavailable, "rerank request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.breaker.RecordFailure()
		body, _ := io.ReadAll(resp.Body)
		return nil, errs.New(errs.ErrCodeDependencyUnavailable,
			fmt.Sprintf("rerank failed (status %d): %s", resp.StatusCode, string(body)), nil)
	}

	var result rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}
	r.breaker.RecordSuccess()

	results := make([]RerankResult, len(result.Results))
	for i, item := range result.Results {
		results[i] = RerankResult{
			Index:    item.Index,
			Score:    item.Score,
			Document: item.Document,
		}
	}

	slog.Debug("rerank_complete",
		slog.String("query", truncateQuery(query, 50)),
		slog.Int("doc_count", len(documents)),
		slog.Int("result_count", len(results)),
		slog.Duration("total", time.Since(start)),
		slog.Float64("server_time_ms", result.ProcessingTimeMs))

	return results, nil
}

// Available checks whether the reranking service responds to health checks.
func (r *HTTPReranker) Available(ctx context.Context) bool {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return false
	}
	r.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return r.healthCheck(checkCtx) == nil
}

// Close releases idle connections.
func (r *HTTPReranker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if transport, ok := r.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}

	return nil
}

// truncateQuery truncates a query string for logging.
func truncateQuery(q string, maxLen int) string {
	if len(q) <= maxLen {
		return q
	}
	return q[:maxLen] + "..."
}
