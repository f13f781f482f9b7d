package search

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/manual-sih/sihmcp/internal/store"
)

// DefaultPerQueryLimit is the SearchMulti per-query result count.
const DefaultPerQueryLimit = 3

// ManualHit is the single-query result shape.
type ManualHit struct {
	ID       string      `json:"id"`
	Texto    string      `json:"texto"`
	Metadata HitMetadata `json:"metadata"`
	Score    float64     `json:"score"`
}

// HitMetadata carries the source location of a hit.
type HitMetadata struct {
	Secao  string `json:"secao"`
	Titulo string `json:"titulo"`
	Pagina int    `json:"pagina"`
}

// MultiHit is the multi-query result shape, flattened and tagged with
// the query that produced it.
type MultiHit struct {
	ID          string  `json:"id"`
	Secao       string  `json:"secao"`
	Titulo      string  `json:"titulo"`
	Pagina      int     `json:"pagina"`
	Texto       string  `json:"texto"`
	Relevancia  float64 `json:"relevancia"`
	QueryOrigem string  `json:"query_origem"`
}

// SearchManual runs the full pipeline for one query and formats the
// results for the buscar_manual tool.
func (p *Pipeline) SearchManual(ctx context.Context, query string, limit int, filter *store.Filter) ([]ManualHit, error) {
	opts := p.DefaultOptions()
	opts.Limit = limit
	opts.Filter = filter

	results, err := p.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	hits := make([]ManualHit, len(results))
	for i, res := range results {
		texto := stripContextHeader(res.Chunk.Texto)
		hits[i] = ManualHit{
			ID:    res.Chunk.ID,
			Texto: texto,
			Metadata: HitMetadata{
				Secao:  res.Chunk.Secao,
				Titulo: hitTitle(res.Chunk, texto),
				Pagina: res.Chunk.Pagina,
			},
			Score: res.Score,
		}
	}
	return hits, nil
}

// SearchMulti runs the pipeline once per query with decomposition off
// (each caller-supplied query is already a single aspect), merges the
// hits deduplicating by chunk ID at the highest relevance, and returns
// them sorted by relevance descending.
func (p *Pipeline) SearchMulti(ctx context.Context, queries []string, perQuery int) ([]MultiHit, error) {
	if perQuery <= 0 {
		perQuery = DefaultPerQueryLimit
	}

	opts := p.DefaultOptions()
	opts.Limit = perQuery
	opts.Decompose = false

	best := make(map[string]*MultiHit)
	order := make([]string, 0)

	for _, query := range queries {
		if strings.TrimSpace(query) == "" {
			continue
		}
		results, err := p.Search(ctx, query, opts)
		if err != nil {
			return nil, err
		}
		for _, res := range results {
			relevancia := round3(res.Score)
			if hit, ok := best[res.Chunk.ID]; ok {
				if relevancia > hit.Relevancia {
					hit.Relevancia = relevancia
					hit.QueryOrigem = truncateRunes(query, 60)
				}
				continue
			}
			texto := stripContextHeader(res.Chunk.Texto)
			best[res.Chunk.ID] = &MultiHit{
				ID:          res.Chunk.ID,
				Secao:       res.Chunk.Secao,
				Titulo:      hitTitle(res.Chunk, texto),
				Pagina:      res.Chunk.Pagina,
				Texto:       texto,
				Relevancia:  relevancia,
				QueryOrigem: truncateRunes(query, 60),
			}
			order = append(order, res.Chunk.ID)
		}
	}

	hits := make([]MultiHit, 0, len(order))
	for _, id := range order {
		hits = append(hits, *best[id])
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Relevancia > hits[j].Relevancia
	})
	return hits, nil
}

// stripContextHeader removes the "[Manual ...]" provenance header the
// indexer prepends to contextualized chunks, leaving display text.
func stripContextHeader(texto string) string {
	if !strings.HasPrefix(texto, "[Manual") {
		return texto
	}
	idx := strings.Index(texto, "]\n\n")
	if idx < 0 {
		return texto
	}
	return texto[idx+3:]
}

// hitTitle returns the first line of the chunk title, falling back to
// the first line of the display text. Stored titles can span lines and
// only the heading belongs in a result header.
func hitTitle(chunk *store.Chunk, texto string) string {
	source := chunk.Titulo
	if source == "" {
		source = texto
	}
	line, _, _ := strings.Cut(source, "\n")
	return strings.TrimSpace(line)
}

// round3 rounds to three decimal places.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// truncateRunes truncates s to at most n runes.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
