package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/spf13/cobra"

	"github.com/docsage/docsage/internal/agent"
	"github.com/docsage/docsage/internal/embedder"
	"github.com/docsage/docsage/internal/history"
	"github.com/docsage/docsage/internal/logging"
	"github.com/docsage/docsage/internal/provider"
	"github.com/docsage/docsage/internal/rag"
	"github.com/docsage/docsage/internal/tools"
)

// NewAskCmd constructs the `docsage ask` command, which answers a single
// question grounded in the user's documents and streams the reply to stdout.
func NewAskCmd() *cobra.Command {
	var user string
	var noRetrieval bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a one-shot question grounded in your documents",
		Long: `Ask DocSage a natural language question from the terminal.

The answer is grounded in the documents owned by --user: relevant passages
are retrieved before generation, and the model can search further or list
the available documents while answering. When Qdrant is unreachable the
question is answered ungrounded with a warning.

Examples:
  docsage ask "how many vacation days do I get?"
  docsage ask --user alice "what is the expense report deadline?"
  docsage ask --no-retrieval "summarise what a 401k match is"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return fmt.Errorf("ask: question must not be empty")
			}

			chatModel, err := provider.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise model provider: %w", err)
			}

			var passages []rag.Passage
			var runTools []tool.InvokableTool

			if !noRetrieval {
				retriever, cleanup, err := buildAskRetriever(ctx, log)
				if err != nil {
					// Retrieval backends down is non-fatal for ask — warn and answer ungrounded.
					fmt.Fprintf(os.Stderr, "warning: %v (answering without your documents)\n", err)
				} else {
					defer cleanup()
					passages, err = retriever.Retrieve(ctx, question, user, rag.AmbientTopK)
					if err != nil {
						fmt.Fprintf(os.Stderr, "warning: retrieval failed: %v\n", err)
						passages = nil
					}
					runTools = append(runTools, tools.NewQueryKnowledgeTool(retriever, user))
				}

				if st, stErr := openStore(log); stErr == nil {
					defer func() { _ = st.Close() }()
					runTools = append(runTools, tools.NewListDocumentsTool(st, user))
				} else {
					fmt.Fprintf(os.Stderr, "warning: %v (document listing unavailable)\n", stErr)
				}
			}

			engine, err := agent.New(&agent.Config{ChatModel: chatModel})
			if err != nil {
				return fmt.Errorf("ask: failed to initialise engine: %w", err)
			}

			events := engine.Run(ctx, &agent.Request{
				Turns:    []history.Turn{{Role: history.RoleUser, Content: question}},
				Passages: passages,
				Tools:    runTools,
			})

			for ev := range events {
				switch e := ev.(type) {
				case agent.TextDelta:
					fmt.Print(e.Text)
				case agent.StepBoundary:
					if len(e.ToolCalls) > 0 {
						fmt.Fprintf(os.Stderr, "[searching: %s]\n", strings.Join(e.ToolCalls, ", "))
					}
				case agent.Done:
					fmt.Println()
				case agent.Error:
					fmt.Println()
					return fmt.Errorf("ask: %s", e.Message)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "local", "User id whose documents ground the answer")
	cmd.Flags().BoolVar(&noRetrieval, "no-retrieval", false, "Answer without consulting the knowledge base")

	return cmd
}

// buildAskRetriever wires the embedder and vector store for a one-shot query.
// The returned cleanup closes the Qdrant connection.
func buildAskRetriever(ctx context.Context, log *slog.Logger) (rag.Retriever, func(), error) {
	if err := embedder.Validate(log); err != nil {
		return nil, nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	vectors, err := buildVectorStore(ctx, log)
	if err != nil {
		return nil, nil, err
	}

	retriever, err := rag.NewRetriever(emb, vectors, rag.AmbientTopK)
	if err != nil {
		_ = vectors.Close()
		return nil, nil, fmt.Errorf("failed to create retriever: %w", err)
	}

	return retriever, func() { _ = vectors.Close() }, nil
}
