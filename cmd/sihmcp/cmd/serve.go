package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/manual-sih/sihmcp/internal/logging"
	"github.com/manual-sih/sihmcp/internal/mcp"
)

// serveOptions holds CLI flags for serve.
type serveOptions struct {
	transport string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP server exposing the search tools (buscar_manual,
buscar_multi, status) over the configured transport.

Stdout is reserved for JSON-RPC messages; logs go to the log file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", "", "Transport to serve on (default: stdio)")

	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// MCP clients own stdout, so logging must not touch it.
	cleanup, err := logging.SetupMCPMode(cfg.Server.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()

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

	server, err := mcp.NewServer(mcp.Deps{
		Pipeline: stack.pipeline,
		Chunks:   stack.chunks,
		Lexical:  stack.lexical,
		Vector:   stack.vector,
		Embedder: stack.embedder,
		Reranker: stack.reranker,
	}, cfg)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	transport := opts.transport
	if transport == "" {
		transport = cfg.Server.Transport
	}

	slog.Info("server_starting", slog.String("transport", transport))
	return server.Serve(ctx, transport)
}
