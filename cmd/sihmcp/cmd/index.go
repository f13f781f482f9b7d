package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/manual-sih/sihmcp/internal/index"
	"github.com/manual-sih/sihmcp/internal/logging"
	"github.com/manual-sih/sihmcp/internal/output"
)

// indexOptions holds CLI flags for index.
type indexOptions struct {
	batchSize int
	quiet     bool
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index <corpus.jsonl>",
		Short: "Build the search indexes from a corpus file",
		Long: `Build the chunk store, the BM25 index and the vector index from a
JSONL corpus file, one chunk per line.

Examples:
  sihmcp index corpus/manual_sih.jsonl
  sihmcp index corpus/manual_sih.jsonl --batch-size 64`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 0, "Embedding batch size (default: embedder's native batch)")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress progress output")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, corpusPath string, opts indexOptions) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if _, cleanup, err := logging.Setup(logCfg); err == nil {
		defer cleanup()
	}

	if _, err := os.Stat(corpusPath); err != nil {
		return fmt.Errorf("corpus file not found: %s", corpusPath)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	stack, err := openSearchStack(ctx, cfg, stackOptions{})
	if err != nil {
		return err
	}
	defer stack.Close()

	builder, err := index.NewBuilder(index.BuilderDeps{
		Chunks:   stack.chunks,
		Lexical:  stack.lexical,
		Vector:   stack.vector,
		Embedder: stack.embedder,
	})
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if !opts.quiet {
		out.Statusf("📚", "Indexing %s", filepath.Base(corpusPath))
	}

	buildCfg := index.BuildConfig{
		CorpusPath:      corpusPath,
		VectorIndexPath: cfg.VectorIndexPath(),
		EmbedBatchSize:  opts.batchSize,
	}
	if !opts.quiet {
		buildCfg.ProgressFunc = func(done, total int) {
			out.Progress(done, total, "embedding chunks")
		}
	}

	result, err := builder.Run(ctx, buildCfg)
	if err != nil {
		return fmt.Errorf("index build failed: %w", err)
	}

	slog.Info("index_command_complete",
		slog.Int("chunks", result.Chunks),
		slog.Int("warnings", result.Warnings),
		slog.Duration("duration", result.Duration))

	if !opts.quiet {
		out.Successf("Indexed %d chunks (%d parent sections, %d embedded) in %s",
			result.Chunks, result.Parents, result.Embedded, result.Duration.Round(10*time.Millisecond))
		if result.Warnings > 0 {
			out.Warningf("Skipped %d malformed corpus lines", result.Warnings)
		}
	}

	return nil
}
