package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDims = 4

func newTestVectorIndex(t *testing.T) *HNSWVectorIndex {
	t.Helper()
	idx, err := NewHNSWVectorIndex(DefaultVectorConfig(testDims))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func seedVectors(t *testing.T, idx *HNSWVectorIndex) {
	t.Helper()
	ids := []string{"a", "b", "c", "d"}
	vectors := [][]float32{
		{1, 0, 0, 0},
		{0.9, 0.1, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}
	metas := []ChunkMeta{
		{Ano: 2022, Tipo: TipoManual},
		{Ano: 2023, Tipo: TipoPortaria},
		{Ano: 2023, Tipo: TipoManual},
		{Ano: 2021, Tipo: TipoAnexoSigtap},
	}
	require.NoError(t, idx.Add(context.Background(), ids, vectors, metas))
}

func TestHNSWVectorIndex_SearchReturnsNearest(t *testing.T) {
	idx := newTestVectorIndex(t)
	seedVectors(t, idx)

	results, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// The identical vector ranks first with similarity near 1
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 0.001)
	assert.Equal(t, "b", results[1].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestHNSWVectorIndex_ScoreIsOneMinusDistance(t *testing.T) {
	idx := newTestVectorIndex(t)
	seedVectors(t, idx)

	results, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 4, nil)
	require.NoError(t, err)
	for _, r := range results {
		assert.InDelta(t, float64(1-r.Distance), float64(r.Score), 0.0001)
	}
}

func TestHNSWVectorIndex_FilterRestrictsResults(t *testing.T) {
	idx := newTestVectorIndex(t)
	seedVectors(t, idx)

	filter := NewFilter().WithTipo(TipoManual)
	results, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 4, filter)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Contains(t, []string{"a", "c"}, r.ID)
	}
}

func TestHNSWVectorIndex_FilterConjunction(t *testing.T) {
	idx := newTestVectorIndex(t)
	seedVectors(t, idx)

	filter := NewFilter().WithTipo(TipoManual).WithAno(2023)
	results, err := idx.Search(context.Background(), []float32{0, 1, 0, 0}, 4, filter)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c", results[0].ID)
}

func TestHNSWVectorIndex_UnsupportedFilter(t *testing.T) {
	idx := newTestVectorIndex(t)
	seedVectors(t, idx)

	filter := NewFilter().With("secao", "2.1")
	_, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 4, filter)
	assert.True(t, errors.Is(err, ErrFilterUnsupported))
}

func TestHNSWVectorIndex_DimensionMismatch(t *testing.T) {
	idx := newTestVectorIndex(t)

	err := idx.Add(context.Background(), []string{"x"}, [][]float32{{1, 0}}, nil)
	var dimErr ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, testDims, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Got)

	_, err = idx.Search(context.Background(), []float32{1, 0}, 1, nil)
	assert.ErrorAs(t, err, &dimErr)
}

func TestHNSWVectorIndex_EmptyIndex(t *testing.T) {
	idx := newTestVectorIndex(t)

	results, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWVectorIndex_DeleteIsLazy(t *testing.T) {
	idx := newTestVectorIndex(t)
	seedVectors(t, idx)

	require.NoError(t, idx.Delete(context.Background(), []string{"a"}))
	assert.Equal(t, 3, idx.Count())

	results, err := idx.Search(context.Background(), []float32{1, 0, 0, 0}, 4, nil)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "a", r.ID)
	}
}

func TestHNSWVectorIndex_ReplaceExistingID(t *testing.T) {
	idx := newTestVectorIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []string{"x"}, [][]float32{{1, 0, 0, 0}}, []ChunkMeta{{Ano: 2020}}))
	require.NoError(t, idx.Add(ctx, []string{"x"}, [][]float32{{0, 0, 0, 1}}, []ChunkMeta{{Ano: 2024}}))

	assert.Equal(t, 1, idx.Count())

	results, err := idx.Search(ctx, []float32{0, 0, 0, 1}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "x", results[0].ID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 0.001)
}

func TestHNSWVectorIndex_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.hnsw")

	idx := newTestVectorIndex(t)
	seedVectors(t, idx)
	require.NoError(t, idx.Save(path))

	loaded, err := NewHNSWVectorIndex(DefaultVectorConfig(testDims))
	require.NoError(t, err)
	defer func() { _ = loaded.Close() }()
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, 4, loaded.Count())

	// Metadata survives the round trip
	filter := NewFilter().WithTipo(TipoPortaria)
	results, err := loaded.Search(context.Background(), []float32{0.9, 0.1, 0, 0}, 4, filter)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)

	dims, err := ReadVectorIndexDimensions(path)
	require.NoError(t, err)
	assert.Equal(t, testDims, dims)
}

func TestReadVectorIndexDimensions_FreshStart(t *testing.T) {
	dims, err := ReadVectorIndexDimensions(filepath.Join(t.TempDir(), "absent.hnsw"))
	require.NoError(t, err)
	assert.Equal(t, 0, dims)
}
