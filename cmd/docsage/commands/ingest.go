package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/docsage/docsage/internal/embedder"
	"github.com/docsage/docsage/internal/ingestion"
	"github.com/docsage/docsage/internal/logging"
)

// NewIngestCmd constructs the `docsage ingest` command, which indexes local
// files into the knowledge base without going through the HTTP API.
func NewIngestCmd() *cobra.Command {
	var files []string
	var user string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest local files into the DocSage knowledge base",
		Long: `Chunk, embed, and index local text files into the Qdrant vector store.

Ingested documents become searchable by the chat engine: ambient retrieval
grounds every answer in the most relevant passages, and the model can search
further via its knowledge tool.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: docsage-docs)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  MODEL_PROVIDER       Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Provider-specific overrides (see README)

Examples:
  docsage ingest --file ./handbook.md
  docsage ingest --file ./handbook.md --file ./expenses.md --user alice`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if len(files) == 0 {
				return fmt.Errorf("ingest: at least one --file is required")
			}

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised", slog.String("provider", embedder.ResolveBackend()))

			vectors, err := buildVectorStore(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = vectors.Close() }()

			st, err := openStore(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = st.Close() }()

			pipeline, err := ingestion.NewPipeline(emb, vectors, st, nil)
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			for _, path := range files {
				content, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("ingest: read %s: %w", path, err)
				}

				res, err := pipeline.Ingest(ctx, user, filepath.Base(path), string(content))
				if err != nil {
					return fmt.Errorf("ingest: %s: %w", path, err)
				}

				log.Info("document ingested",
					slog.String("file", path),
					slog.String("document_id", res.DocumentID),
					slog.Int("chunks", res.Chunks),
					slog.String("owner", user),
				)
			}

			log.Info("ingestion complete", slog.Int("files", len(files)))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "File to ingest (repeatable)")
	cmd.Flags().StringVarP(&user, "user", "u", "local", "User id to own the ingested documents")

	return cmd
}
