package embed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderOllama uses Ollama's HTTP API for embeddings (default)
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings (offline fallback)
	ProviderStatic ProviderType = "static"
)

// Options configures embedder construction.
type Options struct {
	// Provider selects the embedding backend ("ollama", "static", "" = auto)
	Provider string

	// Model is the embedding model name (Ollama providers only)
	Model string

	// Dimensions overrides auto-detection when non-zero
	Dimensions int

	// BatchSize for batch embedding requests
	BatchSize int

	// OllamaHost overrides the default Ollama endpoint
	OllamaHost string

	// CacheSize is the query embedding LRU capacity (0 = default)
	CacheSize int
}

// NewEmbedder creates an embedder based on the configured provider.
// The SIHMCP_EMBEDDER environment variable overrides the provider:
//   - "ollama": use OllamaEmbedder (errors if Ollama is unreachable)
//   - "static": use the hash-based StaticEmbedder
//
// An empty provider means auto-detect: try Ollama, degrade to static
// with a warning when Ollama is unavailable.
//
// The returned embedder is wrapped with an LRU query cache unless
// SIHMCP_EMBED_CACHE is set to false.
func NewEmbedder(ctx context.Context, opts Options) (Embedder, error) {
	provider := strings.ToLower(opts.Provider)
	if env := os.Getenv("SIHMCP_EMBEDDER"); env != "" {
		provider = strings.ToLower(env)
	}

	var embedder Embedder
	var err error

	switch ProviderType(provider) {
	case ProviderStatic:
		embedder = NewStaticEmbedder()

	case ProviderOllama:
		// Explicit selection: no silent fallback
		embedder, err = newOllama(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("ollama unavailable: %w\n\nTo fix:\n  1. Start Ollama: ollama serve\n  2. Or use hash embeddings: sihmcp index --provider=static", err)
		}

	case "":
		embedder, err = newOllama(ctx, opts)
		if err != nil {
			slog.Warn("ollama_unavailable_using_static",
				slog.String("error", err.Error()))
			embedder, err = NewStaticEmbedder(), nil
		}

	default:
		return nil, fmt.Errorf("unknown embedding provider %q (valid: %v)", provider, ValidProviders())
	}

	if err != nil {
		return nil, err
	}

	// Wrap with cache unless disabled
	if !isCacheDisabled() {
		embedder = NewCachedEmbedder(embedder, opts.CacheSize)
	}

	return embedder, nil
}

// isCacheDisabled checks if embedding cache is disabled via environment.
func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("SIHMCP_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}

// newOllama builds an OllamaEmbedder from options plus env overrides.
func newOllama(ctx context.Context, opts Options) (Embedder, error) {
	cfg := DefaultOllamaConfig()
	if opts.Model != "" {
		cfg.Model = opts.Model
	}
	if opts.OllamaHost != "" {
		cfg.Host = opts.OllamaHost
	}
	if opts.Dimensions > 0 {
		cfg.Dimensions = opts.Dimensions
	}
	if opts.BatchSize > 0 {
		cfg.BatchSize = opts.BatchSize
	}

	if host := os.Getenv("SIHMCP_OLLAMA_HOST"); host != "" {
		cfg.Host = host
	}
	if model := os.Getenv("SIHMCP_OLLAMA_MODEL"); model != "" {
		cfg.Model = model
	}

	return NewOllamaEmbedder(ctx, cfg)
}

// ParseProvider converts a string to ProviderType
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(s) {
	case "static":
		return ProviderStatic
	default:
		return ProviderOllama
	}
}

// String returns the string representation of ProviderType
func (p ProviderType) String() string {
	return string(p)
}

// ValidProviders returns all valid provider names
func ValidProviders() []string {
	return []string{
		string(ProviderOllama),
		string(ProviderStatic),
	}
}

// IsValidProvider checks if a provider name is valid
func IsValidProvider(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range ValidProviders() {
		if lower == p {
			return true
		}
	}
	return false
}

// EmbedderInfo contains information about an embedder
type EmbedderInfo struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Available  bool
}

// GetInfo returns information about an embedder
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	info := EmbedderInfo{
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
		Available:  embedder.Available(ctx),
	}

	// Unwrap cached embedder to get underlying type
	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.inner
	}

	switch inner.(type) {
	case *OllamaEmbedder:
		info.Provider = ProviderOllama
	default:
		info.Provider = ProviderStatic
	}

	return info
}
