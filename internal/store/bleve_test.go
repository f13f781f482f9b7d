package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLexicalIndex(t *testing.T) *BleveLexicalIndex {
	t.Helper()
	idx, err := NewBleveLexicalIndex("", DefaultLexicalConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func corpusChunks() []*Chunk {
	return []*Chunk{
		{
			ID:    "manual_001",
			Texto: "A internação hospitalar deve ser autorizada mediante emissão da AIH",
			Tipo:  TipoManual,
			Ano:   2022,
		},
		{
			ID:    "manual_002",
			Texto: "O faturamento dos procedimentos segue a tabela SIGTAP vigente",
			Tipo:  TipoManual,
			Ano:   2022,
		},
		{
			ID:    "portaria_2023_001",
			Texto: "Portaria que redefine os valores de internação hospitalar para 2023",
			Tipo:  TipoPortaria,
			Ano:   2023,
		},
		{
			ID:    "anexo_001",
			Texto: "Anexo SIGTAP com os procedimentos de órtese e prótese",
			Tipo:  TipoAnexoSigtap,
			Ano:   2023,
		},
	}
}

func TestBleveLexicalIndex_IndexAndSearch(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Index(ctx, corpusChunks()))

	results, err := idx.Search(ctx, "internação hospitalar", 10, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	ids := make([]string, 0, len(results))
	for _, r := range results {
		assert.Greater(t, r.Score, 0.0)
		ids = append(ids, r.ID)
	}
	assert.Contains(t, ids, "manual_001")
	assert.Contains(t, ids, "portaria_2023_001")
}

func TestBleveLexicalIndex_AccentInsensitiveSearch(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, corpusChunks()))

	// Query without accents must match accented content
	results, err := idx.Search(ctx, "internacao", 10, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	assert.Contains(t, ids, "manual_001")
}

func TestBleveLexicalIndex_EmptyQuery(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, corpusChunks()))

	results, err := idx.Search(ctx, "   ", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBleveLexicalIndex_FilterByTipo(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, corpusChunks()))

	filter := NewFilter().WithTipo(TipoPortaria)
	results, err := idx.Search(ctx, "internação", 10, filter)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "portaria_2023_001", results[0].ID)
}

func TestBleveLexicalIndex_FilterByAno(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, corpusChunks()))

	filter := NewFilter().WithAno(2023)
	results, err := idx.Search(ctx, "sigtap", 10, filter)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "anexo_001", results[0].ID)
}

func TestBleveLexicalIndex_UnsupportedFilter(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, corpusChunks()))

	filter := NewFilter().With("fonte", "manual.pdf")
	_, err := idx.Search(ctx, "internação", 10, filter)
	assert.True(t, errors.Is(err, ErrFilterUnsupported))
}

func TestBleveLexicalIndex_Delete(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Index(ctx, corpusChunks()))

	require.NoError(t, idx.Delete(ctx, []string{"manual_001"}))

	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	results, err := idx.Search(ctx, "autorizada mediante", 10, nil)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "manual_001", r.ID)
	}
}

func TestBleveLexicalIndex_ReindexReplacesDocument(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()

	chunk := &Chunk{ID: "c1", Texto: "conteudo antigo sobre faturamento", Tipo: TipoManual}
	require.NoError(t, idx.Index(ctx, []*Chunk{chunk}))

	chunk.Texto = "conteudo novo sobre auditoria"
	require.NoError(t, idx.Index(ctx, []*Chunk{chunk}))

	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := idx.Search(ctx, "auditoria", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ID)
}

func TestBleveLexicalIndex_ClosedIndex(t *testing.T) {
	idx := newTestLexicalIndex(t)
	require.NoError(t, idx.Close())

	_, err := idx.Search(context.Background(), "internação", 10, nil)
	assert.Error(t, err)

	err = idx.Index(context.Background(), corpusChunks())
	assert.Error(t, err)
}

func TestBleveLexicalIndex_IndexTextPrefersContexto(t *testing.T) {
	idx := newTestLexicalIndex(t)
	ctx := context.Background()

	chunk := &Chunk{
		ID:       "c1",
		Texto:    "texto curto",
		Contexto: "[Manual SIH] capitulo sobre glosa de pagamento",
		Tipo:     TipoManual,
	}
	require.NoError(t, idx.Index(ctx, []*Chunk{chunk}))

	results, err := idx.Search(ctx, "glosa", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c1", results[0].ID)
}
