// Package config loads and validates sihmcp configuration.
//
// Configuration is applied in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/sihmcp/config.yaml)
//  3. Project config (sihmcp.yaml in the working directory)
//  4. Environment variables (SIHMCP_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete sihmcp configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Reranker   RerankerConfig   `yaml:"reranker" json:"reranker"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// PathsConfig configures where indexes and the chunk store live.
type PathsConfig struct {
	// DataDir is the root directory for all index artifacts.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// ChunkDB is the SQLite chunk store path. Defaults to DataDir/chunks.db.
	ChunkDB string `yaml:"chunk_db" json:"chunk_db"`
	// LexicalIndex is the bleve index path. Defaults to DataDir/lexical.bleve.
	LexicalIndex string `yaml:"lexical_index" json:"lexical_index"`
	// VectorIndex is the HNSW graph path. Defaults to DataDir/vectors.hnsw.
	VectorIndex string `yaml:"vector_index" json:"vector_index"`
}

// SearchConfig configures the hybrid retrieval pipeline.
type SearchConfig struct {
	// RRFConstant is the RRF fusion smoothing parameter (k).
	// Default: 60. Higher values reduce the impact of rank differences.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// PerMethodLimit caps results fetched from each back-end per sub-query.
	PerMethodLimit int `yaml:"per_method_limit" json:"per_method_limit"`

	// DefaultLimit is the result count when the caller does not set one.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`

	// MaxLimit bounds the caller-supplied result count.
	MaxLimit int `yaml:"max_limit" json:"max_limit"`

	// ShortQueryWords is the word-count threshold at or below which
	// reranking is skipped. Purely numeric queries always skip it.
	ShortQueryWords int `yaml:"short_query_words" json:"short_query_words"`

	// RerankMultiplier scales the candidate pool handed to the reranker:
	// top max(PerMethodLimit, RerankMultiplier*limit) fused results.
	RerankMultiplier int `yaml:"rerank_multiplier" json:"rerank_multiplier"`

	// Parallelism bounds concurrent back-end calls during fan-out.
	Parallelism int `yaml:"parallelism" json:"parallelism"`

	// Timeout is the per-search deadline.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// Decompose enables multi-aspect query decomposition.
	Decompose bool `yaml:"decompose" json:"decompose"`

	// Parents enables parent-chunk resolution.
	Parents bool `yaml:"parents" json:"parents"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "ollama", "static", or empty for
	// auto-detection (ollama when reachable, static otherwise).
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	// OllamaHost is the Ollama API endpoint (default: http://localhost:11434).
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	// CacheSize is the LRU embedding cache capacity (entries).
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// RerankerConfig configures the cross-encoder reranking service.
type RerankerConfig struct {
	// Enabled turns reranking on. When the service is unreachable the
	// pipeline degrades to fused order instead of failing.
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Endpoint string        `yaml:"endpoint" json:"endpoint"`
	Model    string        `yaml:"model" json:"model"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: defaultDataDir(),
		},
		Search: SearchConfig{
			// k=60 is the industry standard (Azure AI Search, OpenSearch)
			RRFConstant:      60,
			PerMethodLimit:   20,
			DefaultLimit:     10,
			MaxLimit:         100,
			ShortQueryWords:  2,
			RerankMultiplier: 3,
			Parallelism:      4,
			Timeout:          10 * time.Second,
			Decompose:        true,
			Parents:          true,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "", // Empty triggers auto-detection: Ollama → Static
			Model:      "nomic-embed-text",
			Dimensions: 0, // Auto-detect from embedder
			BatchSize:  32,
			OllamaHost: "",
			CacheSize:  1000,
		},
		Reranker: RerankerConfig{
			Enabled: true,
			Model:   "bge-reranker-v2-m3",
			Timeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// defaultDataDir returns the default index data directory (~/.sihmcp/data).
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".sihmcp", "data")
	}
	return filepath.Join(home, ".sihmcp", "data")
}

// ChunkDBPath returns the chunk store path, applying the DataDir default.
func (c *Config) ChunkDBPath() string {
	if c.Paths.ChunkDB != "" {
		return c.Paths.ChunkDB
	}
	return filepath.Join(c.Paths.DataDir, "chunks.db")
}

// LexicalIndexPath returns the bleve index path, applying the DataDir default.
func (c *Config) LexicalIndexPath() string {
	if c.Paths.LexicalIndex != "" {
		return c.Paths.LexicalIndex
	}
	return filepath.Join(c.Paths.DataDir, "lexical.bleve")
}

// VectorIndexPath returns the HNSW graph path, applying the DataDir default.
func (c *Config) VectorIndexPath() string {
	if c.Paths.VectorIndex != "" {
		return c.Paths.VectorIndex
	}
	return filepath.Join(c.Paths.DataDir, "vectors.hnsw")
}

// GetUserConfigPath returns the path to the user configuration file.
// It follows the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/sihmcp/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/sihmcp/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "sihmcp", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "sihmcp", "config.yaml")
	}
	return filepath.Join(home, ".config", "sihmcp", "config.yaml")
}

// loadUserConfig loads the user configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// Load loads configuration from the specified directory.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from sihmcp.yaml or sihmcp.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, "sihmcp.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, "sihmcp.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine, use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Paths.DataDir != "" {
		c.Paths.DataDir = other.Paths.DataDir
	}
	if other.Paths.ChunkDB != "" {
		c.Paths.ChunkDB = other.Paths.ChunkDB
	}
	if other.Paths.LexicalIndex != "" {
		c.Paths.LexicalIndex = other.Paths.LexicalIndex
	}
	if other.Paths.VectorIndex != "" {
		c.Paths.VectorIndex = other.Paths.VectorIndex
	}

	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.PerMethodLimit != 0 {
		c.Search.PerMethodLimit = other.Search.PerMethodLimit
	}
	if other.Search.DefaultLimit != 0 {
		c.Search.DefaultLimit = other.Search.DefaultLimit
	}
	if other.Search.MaxLimit != 0 {
		c.Search.MaxLimit = other.Search.MaxLimit
	}
	if other.Search.ShortQueryWords != 0 {
		c.Search.ShortQueryWords = other.Search.ShortQueryWords
	}
	if other.Search.RerankMultiplier != 0 {
		c.Search.RerankMultiplier = other.Search.RerankMultiplier
	}
	if other.Search.Parallelism != 0 {
		c.Search.Parallelism = other.Search.Parallelism
	}
	if other.Search.Timeout != 0 {
		c.Search.Timeout = other.Search.Timeout
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	if other.Reranker.Endpoint != "" {
		c.Reranker.Endpoint = other.Reranker.Endpoint
		c.Reranker.Enabled = other.Reranker.Enabled
	}
	if other.Reranker.Model != "" {
		c.Reranker.Model = other.Reranker.Model
	}
	if other.Reranker.Timeout != 0 {
		c.Reranker.Timeout = other.Reranker.Timeout
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies SIHMCP_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SIHMCP_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("SIHMCP_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("SIHMCP_SHORT_QUERY_WORDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Search.ShortQueryWords = n
		}
	}
	if v := os.Getenv("SIHMCP_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.Parallelism = n
		}
	}
	if v := os.Getenv("SIHMCP_SEARCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Search.Timeout = d
		}
	}
	if v := os.Getenv("SIHMCP_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("SIHMCP_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("SIHMCP_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("SIHMCP_RERANKER_ENDPOINT"); v != "" {
		c.Reranker.Endpoint = v
		c.Reranker.Enabled = true
	}
	if v := os.Getenv("SIHMCP_RERANKER_ENABLED"); v != "" {
		c.Reranker.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("SIHMCP_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.RRFConstant <= 0 {
		return fmt.Errorf("search.rrf_constant must be positive, got %d", c.Search.RRFConstant)
	}
	if c.Search.PerMethodLimit <= 0 {
		return fmt.Errorf("search.per_method_limit must be positive, got %d", c.Search.PerMethodLimit)
	}
	if c.Search.DefaultLimit <= 0 || c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("search.default_limit must be in 1..%d, got %d", c.Search.MaxLimit, c.Search.DefaultLimit)
	}
	if c.Search.ShortQueryWords < 0 {
		return fmt.Errorf("search.short_query_words must be non-negative, got %d", c.Search.ShortQueryWords)
	}
	if c.Search.Parallelism <= 0 {
		return fmt.Errorf("search.parallelism must be positive, got %d", c.Search.Parallelism)
	}

	if c.Embeddings.Provider != "" {
		validProviders := map[string]bool{"ollama": true, "static": true}
		if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
			return fmt.Errorf("embeddings.provider must be 'ollama', 'static', or empty (auto-detect), got %s", c.Embeddings.Provider)
		}
	}

	validTransports := map[string]bool{"stdio": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
