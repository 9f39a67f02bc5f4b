// Command indexer chunks source documents and writes them to the semantic
// and keyword indexes read by the retrieval service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/config"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/ports"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/usecase"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/infrastructure/chunking"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/infrastructure/lexical/bleve"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/infrastructure/llm/ollama"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/infrastructure/resilience"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/infrastructure/vector/qdrant"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/observability/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "indexer",
		Short:         "Populate the retrieval indexes",
		SilenceUsage: true,
	}
	root.AddCommand(newIndexCmd(), newCountCmd())
	return root
}

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index [documents-file]",
		Short: "Chunk, embed and index documents from a JSON or JSON lines file",
		Long: `Reads source documents (id, title, content, source_url, date, document_type),
strips markup from content, splits it into overlapping chunks and writes the
chunks to Qdrant and, when KEYWORD_BACKEND=bleve, to the local lexical index.
The lexical index is locked while open, so run this with the API stopped.`,
		Args: cobra.ExactArgs(1),
		RunE: runIndex,
	}
}

func newCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of chunks in the local lexical index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			index, err := bleve.Open(cfg.BlevePath)
			if err != nil {
				return err
			}
			defer index.Close()

			n, err := index.Count()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(logging.NewJSONLoggerTo(cmd.ErrOrStderr(), cfg.ServiceName+"-indexer", cfg.LogLevel))

	docs, err := loadDocuments(args[0])
	if err != nil {
		return err
	}

	exec := resilience.NewExecutor(cfg.ResilienceConfig())
	embedder := ollama.NewEmbedder(ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, cfg.OllamaTimeout, exec))
	vectors := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, cfg.QdrantTimeout)

	var keywords ports.KeywordIndexer
	if cfg.KeywordBackend == config.KeywordBackendBleve {
		index, err := bleve.Open(cfg.BlevePath)
		if err != nil {
			return err
		}
		defer index.Close()
		keywords = index
	}

	uc := usecase.NewIndexDocumentsUseCase(
		chunking.NewSplitter(cfg.IndexChunkSize, cfg.IndexChunkOverlap),
		embedder, vectors, keywords,
	)
	report, err := uc.IndexAll(cmd.Context(), docs)
	slog.Info("indexing_finished",
		"documents", report.Documents,
		"chunks", report.Chunks,
		"skipped", report.Skipped,
		"keyword_backend", cfg.KeywordBackend,
	)
	return err
}
