package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/manual-sih/sihmcp/internal/config"
	"github.com/manual-sih/sihmcp/internal/embed"
	"github.com/manual-sih/sihmcp/internal/search"
	"github.com/manual-sih/sihmcp/internal/store"
	"github.com/manual-sih/sihmcp/pkg/version"
)

// ServerName is the MCP implementation name announced to clients.
const ServerName = "sihmcp"

// Server bridges MCP clients with the hybrid retrieval pipeline.
type Server struct {
	mcp      *mcp.Server
	pipeline *search.Pipeline
	chunks   store.ChunkStore
	lexical  store.LexicalIndex
	vector   store.VectorIndex
	embedder embed.Embedder
	reranker search.Reranker
	config   *config.Config
	logger   *slog.Logger
}

// Deps are the server's injected dependencies. Reranker may be nil.
type Deps struct {
	Pipeline *search.Pipeline
	Chunks   store.ChunkStore
	Lexical  store.LexicalIndex
	Vector   store.VectorIndex
	Embedder embed.Embedder
	Reranker search.Reranker
}

// NewServer creates an MCP server and registers the search tools.
func NewServer(deps Deps, cfg *config.Config) (*Server, error) {
	if deps.Pipeline == nil {
		return nil, errors.New("search pipeline is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		pipeline: deps.Pipeline,
		chunks:   deps.Chunks,
		lexical:  deps.Lexical,
		vector:   deps.Vector,
		embedder: deps.Embedder,
		reranker: deps.Reranker,
		config:   cfg,
		logger:   slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// registerTools registers the search tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "buscar_manual",
		Description: "Busca hibrida (BM25 + semantica) no Manual do SIH/SUS e " +
			"portarias relacionadas. Use para perguntas sobre AIH, faturamento, " +
			"criticas de rejeicao, procedimentos e regras de internacao.",
	}, s.buscarManualHandler)
	s.logger.Debug("Registered tool", slog.String("name", "buscar_manual"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "buscar_multi",
		Description: "Busca varias consultas independentes de uma vez e devolve " +
			"os trechos deduplicados por relevancia. Use quando a pergunta do " +
			"usuario cobre mais de um assunto do manual.",
	}, s.buscarMultiHandler)
	s.logger.Debug("Registered tool", slog.String("name", "buscar_multi"))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: "status",
		Description: "Mostra o estado do indice (chunks, documentos, vetores) e a " +
			"disponibilidade do embedder e do reranker.",
	}, s.statusHandler)
	s.logger.Debug("Registered tool", slog.String("name", "status"))

	s.logger.Info("MCP tools registered", slog.Int("count", 3))
}

// buscarManualHandler is the MCP SDK handler for the buscar_manual tool.
func (s *Server) buscarManualHandler(ctx context.Context, _ *mcp.CallToolRequest, input BuscarManualInput) (
	*mcp.CallToolResult,
	BuscarManualOutput,
	error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, BuscarManualOutput{}, NewInvalidParamsError("query parameter is required")
	}

	start := time.Now()
	hits, err := s.pipeline.SearchManual(ctx, input.Query, input.Limite, nil)
	if err != nil {
		s.logger.Error("buscar_manual failed",
			slog.String("query", input.Query),
			slog.String("error", err.Error()))
		return nil, BuscarManualOutput{}, MapError(err)
	}

	s.logger.Info("buscar_manual completed",
		slog.String("query", input.Query),
		slog.Int("results", len(hits)),
		slog.Duration("duration", time.Since(start)))

	if hits == nil {
		hits = []search.ManualHit{}
	}
	return nil, BuscarManualOutput{Resultados: hits}, nil
}

// buscarMultiHandler is the MCP SDK handler for the buscar_multi tool.
func (s *Server) buscarMultiHandler(ctx context.Context, _ *mcp.CallToolRequest, input BuscarMultiInput) (
	*mcp.CallToolResult,
	BuscarMultiOutput,
	error,
) {
	if len(input.Queries) == 0 {
		return nil, BuscarMultiOutput{}, NewInvalidParamsError("queries parameter must contain at least one query")
	}

	start := time.Now()
	hits, err := s.pipeline.SearchMulti(ctx, input.Queries, input.LimitePorQuery)
	if err != nil {
		s.logger.Error("buscar_multi failed",
			slog.Int("queries", len(input.Queries)),
			slog.String("error", err.Error()))
		return nil, BuscarMultiOutput{}, MapError(err)
	}

	s.logger.Info("buscar_multi completed",
		slog.Int("queries", len(input.Queries)),
		slog.Int("results", len(hits)),
		slog.Duration("duration", time.Since(start)))

	if hits == nil {
		hits = []search.MultiHit{}
	}
	return nil, BuscarMultiOutput{Resultados: hits}, nil
}

// statusHandler is the MCP SDK handler for the status tool.
func (s *Server) statusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ StatusInput) (
	*mcp.CallToolResult,
	*StatusOutput,
	error,
) {
	out := &StatusOutput{}

	if s.chunks != nil {
		if n, err := s.chunks.Count(ctx); err == nil {
			out.Chunks = n
		}
	}
	if s.lexical != nil {
		if n, err := s.lexical.DocCount(); err == nil {
			out.LexicalDocs = n
		}
	}
	if s.vector != nil {
		out.Vectors = s.vector.Count()
	}
	if s.embedder != nil {
		out.EmbedderModel = s.embedder.ModelName()
		out.EmbedderOnline = s.embedder.Available(ctx)
	}
	if s.reranker != nil {
		out.RerankerOnline = s.reranker.Available(ctx)
	}

	return nil, out, nil
}

// Serve starts the server on the given transport. Only stdio is
// supported.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server",
		slog.String("transport", transport),
		slog.String("version", version.Version))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error",
				slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped gracefully")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
