package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/docsage/docsage/internal/agent"
	"github.com/docsage/docsage/internal/config"
	"github.com/docsage/docsage/internal/embedder"
	"github.com/docsage/docsage/internal/ingestion"
	"github.com/docsage/docsage/internal/logging"
	"github.com/docsage/docsage/internal/provider"
	"github.com/docsage/docsage/internal/rag"
	"github.com/docsage/docsage/internal/server"
	"github.com/docsage/docsage/internal/session"
	"github.com/docsage/docsage/internal/tracing"
)

// NewServeCmd constructs the `docsage serve` command, which starts the HTTP
// server that streams grounded chat responses over SSE.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the DocSage HTTP server",
		Long: `Start the DocSage HTTP server on localhost.

The server exposes a REST/SSE API: POST /api/chat streams grounded answers,
document endpoints manage the knowledge base, and session endpoints list
past conversations.

Multi-user access is enabled by setting DOCSAGE_API_KEYS to a comma-separated
list of token=user pairs. Without it the server runs in single-user
development mode.

Examples:
  docsage serve
  docsage serve --port 9090
  DOCSAGE_API_KEYS=tok-alice=alice,tok-bob=bob docsage serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			providerCfg := provider.ConfigFromEnv()
			chatModel, err := provider.New(ctx, providerCfg)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise model provider: %w", err)
			}
			log.Info("provider initialised", slog.String("provider", string(providerCfg.Backend)))

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("serve: failed to initialise embedder: %w", err)
			}

			vectors, err := buildVectorStore(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = vectors.Close() }()

			retriever, err := rag.NewRetriever(emb, vectors, rag.AmbientTopK)
			if err != nil {
				return fmt.Errorf("serve: failed to create retriever: %w", err)
			}

			st, err := openStore(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = st.Close() }()

			engine, err := agent.New(&agent.Config{
				ChatModel:        chatModel,
				MaxContextTokens: getEnvInt("MODEL_MAX_CONTEXT_TOKENS", 0),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to initialise engine: %w", err)
			}

			pipeline, err := ingestion.NewPipeline(emb, vectors, st, nil)
			if err != nil {
				return fmt.Errorf("serve: failed to create ingestion pipeline: %w", err)
			}

			srv, err := server.New(
				&server.Deps{
					Engine:    engine,
					Sessions:  session.NewManager(st),
					Store:     st,
					Retriever: retriever,
					Pipeline:  pipeline,
				},
				&server.Config{
					Host:   host,
					Port:   port,
					Logger: log,
					Pingers: []server.Pinger{
						server.NewQdrantPinger(vectors.Client()),
						server.NewStorePinger(st),
					},
					APIKeys: config.ParseAPIKeys(os.Getenv("DOCSAGE_API_KEYS")),
				},
			)
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
