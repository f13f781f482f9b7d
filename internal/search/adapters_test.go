package search

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manual-sih/sihmcp/internal/store"
)

func TestStripContextHeader(t *testing.T) {
	t.Run("removes provenance header", func(t *testing.T) {
		texto := "[Manual SIH cap. 2, p. 14]\n\nA AIH deve ser preenchida..."
		assert.Equal(t, "A AIH deve ser preenchida...", stripContextHeader(texto))
	})

	t.Run("plain text untouched", func(t *testing.T) {
		assert.Equal(t, "texto simples", stripContextHeader("texto simples"))
	})

	t.Run("unterminated header untouched", func(t *testing.T) {
		texto := "[Manual sem fechamento"
		assert.Equal(t, texto, stripContextHeader(texto))
	})
}

func TestHitTitle(t *testing.T) {
	t.Run("chunk title wins", func(t *testing.T) {
		c := &store.Chunk{Titulo: "Diárias de UTI"}
		assert.Equal(t, "Diárias de UTI", hitTitle(c, "outra coisa\ncorpo"))
	})

	t.Run("multi-line title keeps only the heading", func(t *testing.T) {
		c := &store.Chunk{Titulo: "Diárias de UTI  \ndetalhe da seção"}
		assert.Equal(t, "Diárias de UTI", hitTitle(c, "corpo"))
	})

	t.Run("falls back to first line", func(t *testing.T) {
		c := &store.Chunk{}
		assert.Equal(t, "Primeira linha", hitTitle(c, "  Primeira linha  \nresto do texto"))
	})
}

func TestSearchManual(t *testing.T) {
	chunks := chunksFor(nil, "a", "b")
	chunks.chunks["a"].Texto = "[Manual SIH cap. 2]\n\nRegras de cobranca."
	chunks.chunks["a"].Titulo = ""

	p := newTestPipeline(t,
		&fakeLexical{hits: lexHits("a", "b")},
		&fakeVector{},
		chunks, nil, testSearchConfig())

	hits, err := p.SearchManual(context.Background(), "regras de cobranca de diarias", 5, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "Regras de cobranca.", hits[0].Texto)
	assert.Equal(t, "Regras de cobranca.", hits[0].Metadata.Titulo)
	assert.Equal(t, "2.1", hits[0].Metadata.Secao)
	assert.Equal(t, 10, hits[0].Metadata.Pagina)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestSearchMulti(t *testing.T) {
	t.Run("merges and deduplicates across queries", func(t *testing.T) {
		// Both queries hit "shared"; the second ranks it higher.
		lex := &fakeLexical{hits: lexHits("shared", "only1")}
		p := newTestPipeline(t, lex,
			&fakeVector{hits: vecHits("shared")},
			chunksFor(nil, "shared", "only1"),
			nil, testSearchConfig())

		hits, err := p.SearchMulti(context.Background(),
			[]string{"cobranca de diarias", "diarias de acompanhante"}, 3)
		require.NoError(t, err)
		require.Len(t, hits, 2)

		ids := []string{hits[0].ID, hits[1].ID}
		assert.Contains(t, ids, "shared")
		assert.Contains(t, ids, "only1")
		assert.GreaterOrEqual(t, hits[0].Relevancia, hits[1].Relevancia)
	})

	t.Run("relevance is rounded to three decimals", func(t *testing.T) {
		p := newTestPipeline(t,
			&fakeLexical{hits: lexHits("a")},
			&fakeVector{},
			chunksFor(nil, "a"),
			nil, testSearchConfig())

		hits, err := p.SearchMulti(context.Background(), []string{"cobranca de diarias"}, 3)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		// 1/61 rounds to 0.016.
		assert.Equal(t, 0.016, hits[0].Relevancia)
	})

	t.Run("origin query is truncated", func(t *testing.T) {
		long := strings.Repeat("consulta longa ", 10)
		p := newTestPipeline(t,
			&fakeLexical{hits: lexHits("a")},
			&fakeVector{},
			chunksFor(nil, "a"),
			nil, testSearchConfig())

		hits, err := p.SearchMulti(context.Background(), []string{long}, 3)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.LessOrEqual(t, len([]rune(hits[0].QueryOrigem)), 60)
	})

	t.Run("blank queries are skipped", func(t *testing.T) {
		p := newTestPipeline(t,
			&fakeLexical{hits: lexHits("a")},
			&fakeVector{},
			chunksFor(nil, "a"),
			nil, testSearchConfig())

		hits, err := p.SearchMulti(context.Background(), []string{"  ", "cobranca de diarias"}, 3)
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})

	t.Run("empty query list", func(t *testing.T) {
		p := newTestPipeline(t,
			&fakeLexical{}, &fakeVector{},
			chunksFor(nil), nil, testSearchConfig())

		hits, err := p.SearchMulti(context.Background(), nil, 0)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}
