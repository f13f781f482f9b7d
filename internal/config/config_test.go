package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
	assert.Equal(t, 20, cfg.Search.PerMethodLimit)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, 100, cfg.Search.MaxLimit)
	assert.Equal(t, 2, cfg.Search.ShortQueryWords)
	assert.Equal(t, 4, cfg.Search.Parallelism)
	assert.Equal(t, 10*time.Second, cfg.Search.Timeout)
	assert.True(t, cfg.Search.Decompose)
	assert.True(t, cfg.Search.Parents)
	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoConfigFile_UsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
}

func TestLoad_ProjectConfig_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := `
search:
  rrf_constant: 90
  default_limit: 5
  short_query_words: 3
embeddings:
  provider: static
  dimensions: 256
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sihmcp.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.Search.RRFConstant)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
	assert.Equal(t, 3, cfg.Search.ShortQueryWords)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 256, cfg.Embeddings.Dimensions)
	// Untouched values keep their defaults
	assert.Equal(t, 20, cfg.Search.PerMethodLimit)
}

func TestLoad_EnvOverrides_HighestPrecedence(t *testing.T) {
	dir := t.TempDir()
	yaml := `
search:
  rrf_constant: 90
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sihmcp.yaml"), []byte(yaml), 0o644))

	t.Setenv("SIHMCP_RRF_CONSTANT", "30")
	t.Setenv("SIHMCP_EMBEDDINGS_PROVIDER", "static")
	t.Setenv("SIHMCP_SEARCH_TIMEOUT", "3s")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Search.RRFConstant)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 3*time.Second, cfg.Search.Timeout)
}

func TestLoad_InvalidYAML_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sihmcp.yaml"), []byte("search: [broken"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero rrf constant", func(c *Config) { c.Search.RRFConstant = 0 }},
		{"negative per-method limit", func(c *Config) { c.Search.PerMethodLimit = -1 }},
		{"default limit above max", func(c *Config) { c.Search.DefaultLimit = 500 }},
		{"zero parallelism", func(c *Config) { c.Search.Parallelism = 0 }},
		{"unknown provider", func(c *Config) { c.Embeddings.Provider = "llamacpp" }},
		{"unknown transport", func(c *Config) { c.Server.Transport = "sse" }},
		{"unknown log level", func(c *Config) { c.Server.LogLevel = "trace" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestPaths_DeriveFromDataDir(t *testing.T) {
	cfg := NewConfig()
	cfg.Paths.DataDir = "/data/sih"

	assert.Equal(t, filepath.Join("/data/sih", "chunks.db"), cfg.ChunkDBPath())
	assert.Equal(t, filepath.Join("/data/sih", "lexical.bleve"), cfg.LexicalIndexPath())
	assert.Equal(t, filepath.Join("/data/sih", "vectors.hnsw"), cfg.VectorIndexPath())

	cfg.Paths.ChunkDB = "/elsewhere/c.db"
	assert.Equal(t, "/elsewhere/c.db", cfg.ChunkDBPath())
}

func TestWriteYAML_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sihmcp.yaml")

	cfg := NewConfig()
	cfg.Search.RRFConstant = 42
	require.NoError(t, cfg.WriteYAML(path))

	loaded := NewConfig()
	require.NoError(t, loaded.loadYAML(path))
	assert.Equal(t, 42, loaded.Search.RRFConstant)
}
