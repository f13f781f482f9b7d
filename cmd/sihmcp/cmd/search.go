package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/manual-sih/sihmcp/internal/logging"
	"github.com/manual-sih/sihmcp/internal/output"
	"github.com/manual-sih/sihmcp/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit  int
	format string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed manual",
		Long: `Search the indexed manual using hybrid search.

Combines BM25 (keyword) and semantic (embedding) search with
Reciprocal Rank Fusion, with optional cross-encoder reranking.

Examples:
  sihmcp search "diárias de UTI"
  sihmcp search "procedimento 0301060029" --limit 5
  sihmcp search "cobrança de AIH" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if _, cleanup, err := logging.Setup(logCfg); err == nil {
		defer cleanup()
	}

	slog.Info("search_started", slog.String("query", query), slog.Int("limit", opts.limit))

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := requireIndex(cfg); err != nil {
		return err
	}

	stack, err := openSearchStack(ctx, cfg, stackOptions{
		loadVector:   true,
		withReranker: true,
	})
	if err != nil {
		return err
	}
	defer stack.Close()

	hits, err := stack.pipeline.SearchManual(ctx, query, opts.limit, nil)
	if err != nil {
		return err
	}

	slog.Info("search_complete", slog.Int("results", len(hits)))
	return formatHits(cmd, query, hits, opts.format)
}

func formatHits(cmd *cobra.Command, query string, hits []search.ManualHit, format string) error {
	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}

	out := output.New(cmd.OutOrStdout())
	if len(hits) == 0 {
		out.Statusf("", "No results for %q", query)
		return nil
	}

	for i, hit := range hits {
		header := fmt.Sprintf("%d. %s (score: %.3f)", i+1, hit.Metadata.Titulo, hit.Score)
		if hit.Metadata.Secao != "" {
			header = fmt.Sprintf("%d. [%s] %s (score: %.3f)", i+1, hit.Metadata.Secao, hit.Metadata.Titulo, hit.Score)
		}
		out.Status("", header)
		if hit.Metadata.Pagina > 0 {
			out.Statusf("", "   página %d", hit.Metadata.Pagina)
		}
		out.Block(snippet(hit.Texto, 400))
	}

	return nil
}

// snippet truncates text to maxLen runes on a word boundary.
func snippet(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	cut := string(runes[:maxLen])
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "…"
}
