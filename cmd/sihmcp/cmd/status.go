package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/manual-sih/sihmcp/internal/output"
)

// statusInfo is the collected index health snapshot.
type statusInfo struct {
	DataDir        string `json:"data_dir"`
	Chunks         int    `json:"chunks"`
	LexicalDocs    int    `json:"lexical_docs"`
	Vectors        int    `json:"vectors"`
	ChunkDBSize    int64  `json:"chunk_db_size"`
	LexicalSize    int64  `json:"lexical_size"`
	VectorSize     int64  `json:"vector_size"`
	EmbedderModel  string `json:"embedder_model"`
	EmbedderOnline bool   `json:"embedder_online"`
	RerankerOnline bool   `json:"reranker_online"`
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and status",
		Long: `Display information about the current index including:
  - Number of chunks, lexical documents and vectors
  - Storage sizes (chunk store, BM25, vectors)
  - Embedder status (model, availability)
  - Reranker availability`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
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

	info := statusInfo{
		DataDir:       cfg.Paths.DataDir,
		Vectors:       stack.vector.Count(),
		ChunkDBSize:   getFileSize(cfg.ChunkDBPath()),
		LexicalSize:   getDirSize(cfg.LexicalIndexPath()),
		VectorSize:    getFileSize(cfg.VectorIndexPath()),
		EmbedderModel: stack.embedder.ModelName(),
	}
	if n, err := stack.chunks.Count(ctx); err == nil {
		info.Chunks = n
	}
	if n, err := stack.lexical.DocCount(); err == nil {
		info.LexicalDocs = n
	}
	info.EmbedderOnline = stack.embedder.Available(ctx)
	if stack.reranker != nil {
		info.RerankerOnline = stack.reranker.Available(ctx)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	out := output.New(cmd.OutOrStdout())
	out.Statusf("📂", "Data directory: %s", info.DataDir)
	out.Statusf("", "Chunks:         %d (%s)", info.Chunks, formatSize(info.ChunkDBSize))
	out.Statusf("", "Lexical docs:   %d (%s)", info.LexicalDocs, formatSize(info.LexicalSize))
	out.Statusf("", "Vectors:        %d (%s)", info.Vectors, formatSize(info.VectorSize))
	if info.EmbedderOnline {
		out.Successf("Embedder online (%s)", info.EmbedderModel)
	} else {
		out.Warningf("Embedder offline (%s)", info.EmbedderModel)
	}
	if info.RerankerOnline {
		out.Success("Reranker online")
	} else {
		out.Status("", "Reranker offline (search degrades to fused order)")
	}

	return nil
}

func getFileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func getDirSize(path string) int64 {
	var total int64
	_ = filepath.Walk(path, func(_ string, fi os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !fi.IsDir() {
			total += fi.Size()
		}
		return nil
	})
	return total
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
