package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/docsage/docsage/internal/rag"
)

// noMatchResult is returned when the search finds nothing relevant. It tells
// the model explicitly that the knowledge base has no answer, which prevents
// it from inventing one.
const noMatchResult = "No relevant information was found in the user's documents for this query."

// QueryKnowledgeTool is an Eino tool that searches the caller's uploaded
// documents for passages relevant to a query the model formulates. It is the
// model-directed counterpart to the ambient retrieval the chat handler runs
// before generation, with a slightly deeper result set.
type QueryKnowledgeTool struct {
	// retriever performs the embed-and-search round trip.
	retriever rag.Retriever
	// ownerID scopes every search to the calling user.
	ownerID string
}

// queryKnowledgeInput is the JSON-serialisable input schema for QueryKnowledgeTool.
type queryKnowledgeInput struct {
	// Query is the search phrase the model wants answered from the documents.
	Query string `json:"query"`
}

// NewQueryKnowledgeTool constructs a QueryKnowledgeTool bound to ownerID.
func NewQueryKnowledgeTool(r rag.Retriever, ownerID string) *QueryKnowledgeTool {
	return &QueryKnowledgeTool{retriever: r, ownerID: ownerID}
}

// Name returns the tool name registered with the engine.
func (t *QueryKnowledgeTool) Name() string { return "query_knowledge" }

// Description returns the LLM-facing description of this tool.
func (t *QueryKnowledgeTool) Description() string {
	return "Searches the user's uploaded documents for information relevant to a query. " +
		"Returns matching passages with their source document names. " +
		"Use this whenever the user asks about the content of their documents, or when " +
		"you need facts that may be in their knowledge base."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *QueryKnowledgeTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "The search phrase to look up in the user's documents.",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun executes the tool given a JSON-encoded input string.
func (t *QueryKnowledgeTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var input queryKnowledgeInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("query_knowledge: invalid input: %w", err)
	}
	if input.Query == "" {
		return "", fmt.Errorf("query_knowledge: query is required")
	}

	passages, err := t.retriever.Retrieve(ctx, input.Query, t.ownerID, rag.ToolTopK)
	if err != nil {
		// A degraded search must not kill the generation step — report it as
		// the tool result so the model can adjust its answer.
		return fmt.Sprintf("The document search is currently unavailable: %v", err), nil
	}

	if len(passages) == 0 {
		return noMatchResult, nil
	}

	return FormatPassages(passages), nil
}

// FormatPassages renders retrieved passages in the grounding format shared by
// the ambient retrieval path and this tool: each passage prefixed with its
// source label, passages separated by blank lines.
func FormatPassages(passages []rag.Passage) string {
	parts := make([]string, 0, len(passages))
	for _, p := range passages {
		parts = append(parts, fmt.Sprintf("[Source: %s] %s", p.Source, p.Text))
	}
	return strings.Join(parts, "\n\n")
}
