package mcp

import "github.com/manual-sih/sihmcp/internal/search"

// BuscarManualInput defines the input schema for the buscar_manual tool.
type BuscarManualInput struct {
	Query  string `json:"query" jsonschema:"pergunta em portugues sobre o SIH/SUS"`
	Limite int    `json:"limite,omitempty" jsonschema:"numero maximo de resultados, padrao 10"`
}

// BuscarManualOutput defines the output schema for the buscar_manual tool.
type BuscarManualOutput struct {
	Resultados []search.ManualHit `json:"resultados" jsonschema:"trechos do manual ordenados por relevancia"`
}

// BuscarMultiInput defines the input schema for the buscar_multi tool.
type BuscarMultiInput struct {
	Queries        []string `json:"queries" jsonschema:"lista de consultas independentes"`
	LimitePorQuery int      `json:"limite_por_query,omitempty" jsonschema:"resultados por consulta, padrao 3"`
}

// BuscarMultiOutput defines the output schema for the buscar_multi tool.
type BuscarMultiOutput struct {
	Resultados []search.MultiHit `json:"resultados" jsonschema:"trechos deduplicados ordenados por relevancia"`
}

// StatusInput defines the input schema for the status tool (no parameters).
type StatusInput struct{}

// StatusOutput defines the output schema for the status tool.
type StatusOutput struct {
	Chunks         int    `json:"chunks"`
	LexicalDocs    int    `json:"lexical_docs"`
	Vectors        int    `json:"vectors"`
	EmbedderModel  string `json:"embedder_model"`
	EmbedderOnline bool   `json:"embedder_online"`
	RerankerOnline bool   `json:"reranker_online"`
}
